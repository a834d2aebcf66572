package lock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClockedStore() (*MemoryStore, *time.Time) {
	now := time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)
	s := NewMemoryStore()
	s.now = func() time.Time { return now }
	return s, &now
}

func TestMemoryStore_SetIfAbsentAndExpiry(t *testing.T) {
	ctx := context.Background()
	s, now := newClockedStore()

	ok, err := s.SetIfAbsent(ctx, "slot:1", "a", 30*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, _ = s.SetIfAbsent(ctx, "slot:1", "b", 30*time.Second)
	assert.False(t, ok)

	*now = now.Add(31 * time.Second)
	_, err = s.Get(ctx, "slot:1")
	assert.ErrorIs(t, err, ErrNotHeld)

	ok, _ = s.SetIfAbsent(ctx, "slot:1", "b", 30*time.Second)
	assert.True(t, ok)
	owner, err := s.Get(ctx, "slot:1")
	require.NoError(t, err)
	assert.Equal(t, "b", owner)
}

func TestMemoryStore_CompareAndDeleteChecksOwner(t *testing.T) {
	ctx := context.Background()
	s, _ := newClockedStore()
	_, _ = s.SetIfAbsent(ctx, "slot:1", "a", time.Minute)

	ok, _ := s.CompareAndDelete(ctx, "slot:1", "b")
	assert.False(t, ok)
	ok, _ = s.CompareAndDelete(ctx, "slot:1", "a")
	assert.True(t, ok)
	ok, _ = s.CompareAndDelete(ctx, "slot:1", "a")
	assert.False(t, ok)
}

func TestMemoryStore_SweepDropsExpiredOnly(t *testing.T) {
	ctx := context.Background()
	s, now := newClockedStore()
	_, _ = s.SetIfAbsent(ctx, "slot:1", "a", time.Second)
	_, _ = s.SetIfAbsent(ctx, "slot:2", "a", time.Minute)

	*now = now.Add(2 * time.Second)
	assert.Equal(t, 1, s.Sweep())
	assert.Equal(t, 1, s.Len())
}

func TestMemoryStore_RunStopsOnCancel(t *testing.T) {
	s := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx, time.Millisecond)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}
