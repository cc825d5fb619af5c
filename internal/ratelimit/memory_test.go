package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEffectiveLimit(t *testing.T) {
	tests := []struct {
		limit int64
		trust float64
		want  int64
	}{
		{100, 100, 100},
		{100, 50, 100},
		{100, 49.9, 75},
		{100, 30, 75},
		{100, 29, 50},
		{5, 0, 2},
		{1, 0, 1},
		{2, 40, 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, EffectiveLimit(tt.limit, tt.trust), "limit=%d trust=%v", tt.limit, tt.trust)
	}
}

func TestMemoryStore_Window(t *testing.T) {
	store := NewMemoryStore()
	now := time.Now()
	store.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		res, err := store.Check(ctx, "k", 2, time.Minute, 50)
		require.NoError(t, err)
		assert.True(t, res.Allowed)
	}
	res, err := store.Check(ctx, "k", 2, time.Minute, 50)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, int64(2), res.Count)

	now = now.Add(61 * time.Second)
	res, err = store.Check(ctx, "k", 2, time.Minute, 50)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, int64(1), res.Count)
}

func TestMemoryStore_CanceledContext(t *testing.T) {
	store := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.Check(ctx, "k", 2, time.Minute, 50)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMemoryStore_Sweep(t *testing.T) {
	store := NewMemoryStore()
	now := time.Now()
	store.now = func() time.Time { return now }

	_, err := store.Check(context.Background(), "old", 5, time.Minute, 50)
	require.NoError(t, err)
	now = now.Add(2 * time.Hour)
	_, err = store.Check(context.Background(), "fresh", 5, time.Minute, 50)
	require.NoError(t, err)

	assert.Equal(t, 1, store.Sweep(time.Hour))
	assert.Contains(t, store.windows, "fresh")
	assert.NotContains(t, store.windows, "old")
}
