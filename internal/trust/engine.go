// Package trust scores sessions from interaction cadence and duration.
package trust

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// Score bounds and adjustments.
const (
	InitialScore = 50
	MinScore     = 0
	MaxScore     = 100

	ShortSessionBonus = 5
	LongSessionBonus  = 10
	FastActionPenalty = 5
	AutomationPenalty = 20
)

// Cadence thresholds.
const (
	ShortSession       = 5 * time.Minute
	LongSession        = 15 * time.Minute
	FastActionInterval = 100 * time.Millisecond
	AutomationInterval = 50 * time.Millisecond
	AutomationSamples  = 5
	PatternSize        = 10
	DefaultThrottle    = time.Second
)

// InteractionKind is a tracked client interaction.
type InteractionKind string

const (
	KindClick     InteractionKind = "click"
	KindKeydown   InteractionKind = "keydown"
	KindScroll    InteractionKind = "scroll"
	KindMouseMove InteractionKind = "mousemove"
)

// ErrUnknownInteraction is returned for kinds outside the tracked set.
var ErrUnknownInteraction = errors.New("unknown interaction kind")

func ParseKind(s string) (InteractionKind, error) {
	switch k := InteractionKind(s); k {
	case KindClick, KindKeydown, KindScroll, KindMouseMove:
		return k, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownInteraction, s)
	}
}

// Snapshot is a point-in-time copy of a profile.
type Snapshot struct {
	TrustScore      int         `json:"trust_score"`
	SessionDuration int64       `json:"session_duration_ms"`
	ActionPattern   []time.Time `json:"action_pattern"`
	LastActivity    time.Time   `json:"last_activity"`
}

// Profile is the trust state of one session. Every interaction lands in the
// pattern buffer; the score is recomputed at most once per throttle period.
type Profile struct {
	mu           sync.Mutex
	score        int
	started      time.Time
	pattern      []time.Time
	lastActivity time.Time
	lastUpdate   time.Time
	shortBonus   bool
	longBonus    bool
	throttle     time.Duration
}

func NewProfile(started time.Time, throttle time.Duration) *Profile {
	if throttle <= 0 {
		throttle = DefaultThrottle
	}
	return &Profile{
		score:        InitialScore,
		started:      started,
		lastActivity: started,
		throttle:     throttle,
		pattern:      make([]time.Time, 0, PatternSize),
	}
}

// Record tracks one interaction at time at and reports whether the score was
// recomputed. Interactions older than the last tracked one are ignored.
func (p *Profile) Record(kind InteractionKind, at time.Time) (bool, error) {
	if _, err := ParseKind(string(kind)); err != nil {
		return false, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if n := len(p.pattern); n > 0 && at.Before(p.pattern[n-1]) {
		return false, nil
	}

	p.pattern = append(p.pattern, at)
	if len(p.pattern) > PatternSize {
		p.pattern = p.pattern[len(p.pattern)-PatternSize:]
	}
	p.lastActivity = at

	if !p.lastUpdate.IsZero() && at.Sub(p.lastUpdate) < p.throttle {
		return false, nil
	}
	p.lastUpdate = at
	p.recompute(at)
	return true, nil
}

func (p *Profile) recompute(now time.Time) {
	duration := now.Sub(p.started)
	if !p.shortBonus && duration > ShortSession {
		p.shortBonus = true
		p.score += ShortSessionBonus
	}
	if !p.longBonus && duration > LongSession {
		p.longBonus = true
		p.score += LongSessionBonus
	}

	if n := len(p.pattern); n >= 2 {
		if p.pattern[n-1].Sub(p.pattern[n-2]) < FastActionInterval {
			p.score -= FastActionPenalty
		}
	}

	if n := len(p.pattern); n >= AutomationSamples {
		avg := p.pattern[n-1].Sub(p.pattern[0]) / time.Duration(n-1)
		if avg < AutomationInterval {
			p.score -= AutomationPenalty
		}
	}

	p.score = clamp(p.score)
}

// Score returns the current trust score.
func (p *Profile) Score() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.score
}

// Snapshot copies the profile state as of now.
func (p *Profile) Snapshot(now time.Time) Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Snapshot{
		TrustScore:      p.score,
		SessionDuration: now.Sub(p.started).Milliseconds(),
		ActionPattern:   append([]time.Time(nil), p.pattern...),
		LastActivity:    p.lastActivity,
	}
}

func (p *Profile) idleSince(now time.Time) time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return now.Sub(p.lastActivity)
}

func clamp(score int) int {
	return max(MinScore, min(MaxScore, score))
}
