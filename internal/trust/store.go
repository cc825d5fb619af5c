package trust

import (
	"errors"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// ErrNoKey is returned when neither a session id nor a fingerprint is given.
var ErrNoKey = errors.New("session_id or device_fingerprint is required")

// Interaction is one client-reported interaction.
type Interaction struct {
	Kind string    `json:"type"`
	At   time.Time `json:"timestamp"`
}

// Store keeps profiles server-side so a page reload does not reset trust.
// Least recently used profiles are evicted at capacity and idle profiles are
// restarted.
type Store struct {
	mu       sync.Mutex
	profiles *lru.Cache[string, *Profile]
	idleTTL  time.Duration
	throttle time.Duration
	now      func() time.Time
}

func NewStore(capacity int, idleTTL, throttle time.Duration) (*Store, error) {
	cache, err := lru.New[string, *Profile](capacity)
	if err != nil {
		return nil, fmt.Errorf("failed to create trust cache: %w", err)
	}
	return &Store{
		profiles: cache,
		idleTTL:  idleTTL,
		throttle: throttle,
		now:      time.Now,
	}, nil
}

// Key picks the profile key: session id first, else device fingerprint.
func Key(sessionID, fingerprint string) (string, error) {
	switch {
	case sessionID != "":
		return "session:" + sessionID, nil
	case fingerprint != "":
		return "device:" + fingerprint, nil
	default:
		return "", ErrNoKey
	}
}

// profile returns the live profile for key, creating one when absent or idle.
func (s *Store) profile(key string) *Profile {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if p, ok := s.profiles.Get(key); ok {
		if s.idleTTL <= 0 || p.idleSince(now) < s.idleTTL {
			return p
		}
	}
	p := NewProfile(now, s.throttle)
	s.profiles.Add(key, p)
	return p
}

// Record applies interactions to the profile at key. Zero or future
// timestamps are replaced by the server clock.
func (s *Store) Record(key string, interactions []Interaction) (Snapshot, error) {
	kinds := make([]InteractionKind, len(interactions))
	for i, in := range interactions {
		k, err := ParseKind(in.Kind)
		if err != nil {
			return Snapshot{}, err
		}
		kinds[i] = k
	}

	p := s.profile(key)
	now := s.now()
	for i, in := range interactions {
		at := in.At
		if at.IsZero() || at.After(now) {
			at = now
		}
		if _, err := p.Record(kinds[i], at); err != nil {
			return Snapshot{}, err
		}
	}
	return p.Snapshot(now), nil
}

// Score returns the trust score at key if a live profile exists.
func (s *Store) Score(key string) (int, bool) {
	s.mu.Lock()
	p, ok := s.profiles.Peek(key)
	s.mu.Unlock()
	if !ok || (s.idleTTL > 0 && p.idleSince(s.now()) >= s.idleTTL) {
		return 0, false
	}
	return p.Score(), true
}

// Len reports the number of cached profiles.
func (s *Store) Len() int {
	return s.profiles.Len()
}
