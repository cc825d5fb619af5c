package trust

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, capacity int) (*Store, *time.Time) {
	t.Helper()
	s, err := NewStore(capacity, 30*time.Minute, time.Second)
	require.NoError(t, err)
	now := t0
	s.now = func() time.Time { return now }
	return s, &now
}

// fastBurst ends with two interactions 50ms apart on an accepted update.
func fastBurst() []Interaction {
	return []Interaction{
		{Kind: "click", At: t0},
		{Kind: "keydown", At: t0.Add(time.Second)},
		{Kind: "keydown", At: t0.Add(1950 * time.Millisecond)},
		{Kind: "keydown", At: t0.Add(2 * time.Second)},
	}
}

func TestKey(t *testing.T) {
	k, err := Key("sess-1", "fp-1")
	require.NoError(t, err)
	assert.Equal(t, "session:sess-1", k)

	k, err = Key("", "fp-1")
	require.NoError(t, err)
	assert.Equal(t, "device:fp-1", k)

	_, err = Key("", "")
	assert.ErrorIs(t, err, ErrNoKey)
}

func TestStore_PersistsAcrossRequests(t *testing.T) {
	s, now := newTestStore(t, 10)
	*now = t0.Add(2 * time.Second)

	snap, err := s.Record("session:a", fastBurst())
	require.NoError(t, err)
	assert.Equal(t, 45, snap.TrustScore)

	// A later request (e.g. after a page reload) sees the same profile.
	*now = t0.Add(time.Minute)
	snap, err = s.Record("session:a", []Interaction{{Kind: "scroll", At: t0.Add(time.Minute)}})
	require.NoError(t, err)
	assert.Equal(t, 45, snap.TrustScore)

	score, ok := s.Score("session:a")
	require.True(t, ok)
	assert.Equal(t, 45, score)
}

func TestStore_IdleProfilesRestart(t *testing.T) {
	s, now := newTestStore(t, 10)
	*now = t0.Add(2 * time.Second)

	snap, err := s.Record("session:a", fastBurst())
	require.NoError(t, err)
	require.Equal(t, 45, snap.TrustScore)

	*now = t0.Add(time.Hour)
	_, ok := s.Score("session:a")
	assert.False(t, ok)

	snap, err = s.Record("session:a", []Interaction{{Kind: "click"}})
	require.NoError(t, err)
	assert.Equal(t, InitialScore, snap.TrustScore)
}

func TestStore_EvictsLeastRecentlyUsed(t *testing.T) {
	s, _ := newTestStore(t, 2)

	for _, key := range []string{"a", "b", "c"} {
		_, err := s.Record(key, []Interaction{{Kind: "click"}})
		require.NoError(t, err)
	}
	assert.Equal(t, 2, s.Len())
	_, ok := s.Score("a")
	assert.False(t, ok)
}

func TestStore_RejectsUnknownKindWithoutSideEffects(t *testing.T) {
	s, _ := newTestStore(t, 2)

	_, err := s.Record("a", []Interaction{{Kind: "click"}, {Kind: "tap"}})
	assert.ErrorIs(t, err, ErrUnknownInteraction)
	assert.Equal(t, 0, s.Len())
}

func TestStore_FutureTimestampsUseServerClock(t *testing.T) {
	s, _ := newTestStore(t, 2)

	snap, err := s.Record("a", []Interaction{{Kind: "click", At: t0.Add(time.Hour)}})
	require.NoError(t, err)
	require.Len(t, snap.ActionPattern, 1)
	assert.Equal(t, t0, snap.ActionPattern[0])
}

func TestNewStore_InvalidCapacity(t *testing.T) {
	_, err := NewStore(0, time.Minute, time.Second)
	assert.Error(t, err)
}
