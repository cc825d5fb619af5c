package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryStore implements Store in process memory for single-instance
// deployments and tests.
type MemoryStore struct {
	mu      sync.Mutex
	windows map[string][]time.Time
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		windows: make(map[string][]time.Time),
		now:     time.Now,
	}
}

func (s *MemoryStore) Check(ctx context.Context, key string, limit int64, window time.Duration, trust float64) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	cutoff := now.Add(-window)

	hits := s.windows[key]
	kept := hits[:0]
	for _, t := range hits {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}

	effective := EffectiveLimit(limit, trust)
	current := int64(len(kept))
	if current >= effective {
		s.windows[key] = kept
		return Result{Allowed: false, Count: current, Limit: effective}, nil
	}

	s.windows[key] = append(kept, now)
	return Result{Allowed: true, Count: current + 1, Limit: effective}, nil
}

// Sweep drops keys with no hits newer than maxAge.
func (s *MemoryStore) Sweep(maxAge time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-maxAge)
	removed := 0
	for key, hits := range s.windows {
		if len(hits) == 0 || !hits[len(hits)-1].After(cutoff) {
			delete(s.windows, key)
			removed++
		}
	}
	return removed
}

func (s *MemoryStore) Close() error {
	return nil
}
