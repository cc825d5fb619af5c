package ratelimit

import (
	"context"
	"time"
)

// Result is the outcome of one sliding-window check.
type Result struct {
	Allowed bool
	// Count is the number of hits in the window including this one when
	// allowed.
	Count int64
	// Limit is the effective limit after trust tightening.
	Limit int64
}

// Store performs an atomic sliding-window check-and-record. The trust score
// (0-100) lets the store tighten the limit for low-trust callers.
type Store interface {
	Check(ctx context.Context, key string, limit int64, window time.Duration, trust float64) (Result, error)
	Close() error
}

// Trust thresholds below which the effective limit is reduced.
const (
	LowTrustThreshold     = 30
	ReducedTrustThreshold = 50
)

// EffectiveLimit applies the trust policy: below 30 the caller gets half the
// quota, below 50 three quarters, never less than one.
func EffectiveLimit(limit int64, trust float64) int64 {
	switch {
	case trust < LowTrustThreshold:
		limit = limit / 2
	case trust < ReducedTrustThreshold:
		limit = limit * 3 / 4
	}
	if limit < 1 {
		limit = 1
	}
	return limit
}
