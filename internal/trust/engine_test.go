package trust

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func record(t *testing.T, p *Profile, at time.Time) bool {
	t.Helper()
	updated, err := p.Record(KindClick, at)
	require.NoError(t, err)
	return updated
}

func TestProfile_StartsNeutral(t *testing.T) {
	p := NewProfile(t0, time.Second)
	assert.Equal(t, InitialScore, p.Score())

	assert.True(t, record(t, p, t0))
	assert.Equal(t, InitialScore, p.Score())
}

func TestProfile_DurationBonusesApplyOnce(t *testing.T) {
	p := NewProfile(t0, time.Second)

	record(t, p, t0.Add(4*time.Minute))
	assert.Equal(t, 50, p.Score())

	record(t, p, t0.Add(6*time.Minute))
	assert.Equal(t, 55, p.Score())

	record(t, p, t0.Add(10*time.Minute))
	assert.Equal(t, 55, p.Score())

	record(t, p, t0.Add(16*time.Minute))
	assert.Equal(t, 65, p.Score())

	record(t, p, t0.Add(40*time.Minute))
	assert.Equal(t, 65, p.Score())
}

func TestProfile_FastActionPenalty(t *testing.T) {
	p := NewProfile(t0, time.Second)

	record(t, p, t0)
	assert.True(t, record(t, p, t0.Add(time.Second)))
	assert.False(t, record(t, p, t0.Add(1950*time.Millisecond)), "inside throttle window")
	assert.True(t, record(t, p, t0.Add(2*time.Second)))

	assert.Equal(t, 45, p.Score())
}

func TestProfile_AutomationPenalty(t *testing.T) {
	p := NewProfile(t0, time.Second)
	record(t, p, t0)
	record(t, p, t0.Add(time.Second))

	base := t0.Add(1910 * time.Millisecond)
	for i := 0; i < 10; i++ {
		record(t, p, base.Add(time.Duration(i)*10*time.Millisecond))
	}

	// Ten samples 10ms apart: automation and fast-action penalties together.
	assert.Equal(t, 50-AutomationPenalty-FastActionPenalty, p.Score())
}

func TestProfile_AutomationNeedsFiveSamples(t *testing.T) {
	p := NewProfile(t0, time.Second)
	for i := 0; i < AutomationSamples-1; i++ {
		p.pattern = append(p.pattern, t0.Add(time.Duration(i)*10*time.Millisecond))
	}
	p.recompute(t0)

	// Four samples 10ms apart: only the fast-action penalty applies.
	assert.Equal(t, 45, p.Score())

	p.pattern = append(p.pattern, t0.Add(40*time.Millisecond))
	p.recompute(t0)
	assert.Equal(t, 45-FastActionPenalty-AutomationPenalty, p.Score())
}

func TestProfile_PatternBounded(t *testing.T) {
	p := NewProfile(t0, time.Second)
	for i := 0; i < 50; i++ {
		record(t, p, t0.Add(time.Duration(i)*time.Second))
	}
	snap := p.Snapshot(t0.Add(time.Minute))
	assert.Len(t, snap.ActionPattern, PatternSize)
	assert.Equal(t, t0.Add(49*time.Second), snap.ActionPattern[PatternSize-1])
	assert.Equal(t, int64(60000), snap.SessionDuration)
}

func TestProfile_IgnoresOutOfOrder(t *testing.T) {
	p := NewProfile(t0, time.Second)
	record(t, p, t0.Add(time.Minute))
	assert.False(t, record(t, p, t0))
	assert.Len(t, p.Snapshot(t0.Add(time.Minute)).ActionPattern, 1)
}

func TestProfile_UnknownKind(t *testing.T) {
	p := NewProfile(t0, time.Second)
	_, err := p.Record("doubleclick", t0)
	assert.ErrorIs(t, err, ErrUnknownInteraction)
}

func TestProfile_ScoreStaysInBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	kinds := []InteractionKind{KindClick, KindKeydown, KindScroll, KindMouseMove}

	for run := 0; run < 200; run++ {
		p := NewProfile(t0, time.Second)
		at := t0
		burst := rng.Intn(2) == 0

		for i := 0; i < 500; i++ {
			var step time.Duration
			switch {
			case burst:
				step = time.Duration(rng.Intn(60)) * time.Millisecond
			default:
				step = time.Duration(rng.Intn(5000)) * time.Millisecond
			}
			at = at.Add(step)

			_, err := p.Record(kinds[rng.Intn(len(kinds))], at)
			require.NoError(t, err)

			score := p.Score()
			require.GreaterOrEqual(t, score, MinScore, "run %d step %d", run, i)
			require.LessOrEqual(t, score, MaxScore, "run %d step %d", run, i)
		}
	}
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 0, clamp(-40))
	assert.Equal(t, 100, clamp(140))
	assert.Equal(t, 42, clamp(42))
}
