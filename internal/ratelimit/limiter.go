package ratelimit

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/telhawk-systems/guardrail/common/logging"
	"github.com/telhawk-systems/guardrail/internal/metrics"
	"github.com/telhawk-systems/guardrail/internal/models"
)

// DefaultAction is the quota key used for actions missing from the table.
const DefaultAction = "default"

// NeutralTrust is assumed when the caller supplies no trust score.
const NeutralTrust = 50

// EventRateLimitExceeded is logged on every denial.
const EventRateLimitExceeded = "rate_limit_exceeded_client"

// DefaultLimits is the per-action quota table.
func DefaultLimits() map[string]int64 {
	return map[string]int64{
		"login_attempt":       5,
		"consultation_submit": 3,
		"password_reset":      2,
		"api_call":            100,
		"admin_action":        20,
		DefaultAction:         10,
	}
}

// Config tunes the limiter.
type Config struct {
	Window           time.Duration
	WarningThreshold float64
	Limits           map[string]int64
}

func DefaultConfig() Config {
	return Config{
		Window:           time.Hour,
		WarningThreshold: 0.8,
		Limits:           DefaultLimits(),
	}
}

// EventLogger records denials as security events.
type EventLogger interface {
	Log(ctx context.Context, in models.EventInput) (*models.LogResult, error)
}

// Request is one rate-limit check.
type Request struct {
	// Identifier is the authenticated user id or the anonymous client address.
	Identifier string
	Action     string
	// CustomLimit overrides the quota table when positive.
	CustomLimit int64
	// TrustScore is the caller's behavioral trust; nil means neutral.
	TrustScore *float64
	ActorID    string
	IPAddress  string
	UserAgent  string
}

// Decision is the caller-facing result of a check.
type Decision struct {
	Allowed     bool    `json:"allowed"`
	Action      string  `json:"action"`
	Limit       int64   `json:"limit"`
	Count       int64   `json:"count"`
	Remaining   int64   `json:"remaining"`
	Utilization float64 `json:"utilization"`
	Warning     string  `json:"warning,omitempty"`
	Message     string  `json:"message,omitempty"`
}

// Limiter resolves quotas and delegates accounting to a Store. Any store
// failure denies the request.
type Limiter struct {
	store  Store
	events EventLogger
	cfg    Config
	logger *logging.Logger
}

func NewLimiter(store Store, events EventLogger, cfg Config, logger *logging.Logger) *Limiter {
	if cfg.Window <= 0 {
		cfg.Window = time.Hour
	}
	if cfg.WarningThreshold <= 0 {
		cfg.WarningThreshold = 0.8
	}
	if len(cfg.Limits) == 0 {
		cfg.Limits = DefaultLimits()
	}
	if _, ok := cfg.Limits[DefaultAction]; !ok {
		cfg.Limits[DefaultAction] = DefaultLimits()[DefaultAction]
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Limiter{store: store, events: events, cfg: cfg, logger: logger.Component("ratelimit")}
}

// LimitFor returns the configured quota for action.
func (l *Limiter) LimitFor(action string) int64 {
	if limit, ok := l.cfg.Limits[action]; ok {
		return limit
	}
	return l.cfg.Limits[DefaultAction]
}

// Check decides whether req may proceed. The returned error is non-nil only
// when the store failed; the decision is then a denial.
func (l *Limiter) Check(ctx context.Context, req Request) (Decision, error) {
	action := req.Action
	if action == "" {
		action = DefaultAction
	}
	limit := req.CustomLimit
	if limit <= 0 {
		limit = l.LimitFor(action)
	}
	trust := float64(NeutralTrust)
	if req.TrustScore != nil {
		trust = *req.TrustScore
	}

	d := Decision{Action: action, Limit: limit}

	res, err := l.store.Check(ctx, Key(action, req.Identifier), limit, l.cfg.Window, trust)
	if err != nil {
		metrics.RateLimitDecisions.WithLabelValues(action, "error").Inc()
		l.logger.ErrorContext(ctx, "rate limit check failed, denying",
			logging.Action(action),
			logging.Error(err),
		)
		d.Message = "Security check unavailable. Please try again shortly."
		return d, fmt.Errorf("rate limit %s: %w", action, err)
	}

	d.Allowed = res.Allowed
	d.Limit = res.Limit
	d.Count = res.Count
	if res.Limit > 0 {
		d.Utilization = float64(res.Count) / float64(res.Limit)
	}
	if d.Remaining = res.Limit - res.Count; d.Remaining < 0 {
		d.Remaining = 0
	}

	if !res.Allowed {
		metrics.RateLimitDecisions.WithLabelValues(action, "denied").Inc()
		d.Message = fmt.Sprintf("Too many %s requests. Please wait before trying again.", humanAction(action))
		l.recordDenial(ctx, req, d, trust)
		return d, nil
	}

	metrics.RateLimitDecisions.WithLabelValues(action, "allowed").Inc()
	if d.Utilization > l.cfg.WarningThreshold {
		d.Warning = fmt.Sprintf("You are approaching the limit for %s (%d of %d used).", humanAction(action), res.Count, res.Limit)
	}
	return d, nil
}

func (l *Limiter) recordDenial(ctx context.Context, req Request, d Decision, trust float64) {
	if l.events == nil {
		return
	}
	_, err := l.events.Log(ctx, models.EventInput{
		EventType: EventRateLimitExceeded,
		Severity:  models.SeverityMedium,
		EventData: map[string]interface{}{
			"action":      d.Action,
			"limit":       d.Limit,
			"count":       d.Count,
			"trust_score": trust,
		},
		ActorID:   req.ActorID,
		Source:    "rate_limiter",
		IPAddress: req.IPAddress,
		UserAgent: req.UserAgent,
	})
	if err != nil {
		l.logger.WarnContext(ctx, "failed to log rate limit denial", logging.Error(err))
	}
}

// Key builds the store key for action and identifier. The identifier is
// hashed so raw user or client ids never reach the store.
func Key(action, identifier string) string {
	sum := blake2b.Sum256([]byte(identifier))
	return "ratelimit:" + action + ":" + hex.EncodeToString(sum[:16])
}

func humanAction(action string) string {
	out := []byte(action)
	for i, c := range out {
		if c == '_' {
			out[i] = ' '
		}
	}
	return string(out)
}
