package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// slidingWindow trims the window, applies the trust policy and records the
// hit in one EVAL. Scores are microseconds so they stay exact as doubles.
var slidingWindow = redis.NewScript(`
	local key = KEYS[1]
	local now = tonumber(ARGV[1])
	local window_start = tonumber(ARGV[2])
	local limit = tonumber(ARGV[3])
	local trust = tonumber(ARGV[4])
	local ttl_ms = tonumber(ARGV[5])
	local member = ARGV[6]

	if trust < 30 then
		limit = math.floor(limit / 2)
	elseif trust < 50 then
		limit = math.floor(limit * 3 / 4)
	end
	if limit < 1 then
		limit = 1
	end

	redis.call('ZREMRANGEBYSCORE', key, 0, window_start)
	local current = redis.call('ZCARD', key)

	if current < limit then
		redis.call('ZADD', key, now, member)
		redis.call('PEXPIRE', key, ttl_ms)
		return {1, current + 1, limit}
	end
	return {0, current, limit}
`)

// RedisStore implements Store on Redis sorted sets.
type RedisStore struct {
	client *redis.Client
	now    func() time.Time
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, now: time.Now}
}

// NewRedisStoreFromURL connects to redisURL and verifies the connection.
func NewRedisStoreFromURL(redisURL string, maxRetries, poolSize int) (*RedisStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	if maxRetries > 0 {
		opt.MaxRetries = maxRetries
	}
	if poolSize > 0 {
		opt.PoolSize = poolSize
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return NewRedisStore(client), nil
}

func (s *RedisStore) Check(ctx context.Context, key string, limit int64, window time.Duration, trust float64) (Result, error) {
	now := s.now().UnixMicro()
	windowStart := now - window.Microseconds()

	raw, err := slidingWindow.Run(ctx, s.client, []string{key},
		now,
		windowStart,
		limit,
		strconv.FormatFloat(trust, 'f', 2, 64),
		window.Milliseconds(),
		strconv.FormatInt(now, 10)+"-"+uuid.NewString(),
	).Int64Slice()
	if err != nil {
		return Result{}, fmt.Errorf("rate limit check failed: %w", err)
	}
	if len(raw) != 3 {
		return Result{}, fmt.Errorf("rate limit check failed: unexpected reply %v", raw)
	}

	return Result{Allowed: raw[0] == 1, Count: raw[1], Limit: raw[2]}, nil
}

func (s *RedisStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}
