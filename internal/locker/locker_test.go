package locker

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_AcquireAndDuplicate(t *testing.T) {
	clock := clockwork.NewFakeClock()
	m := NewMemory(clock)
	ctx := context.Background()

	ok, err := m.Acquire(ctx, "stock-sync", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = m.Acquire(ctx, "stock-sync", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "duplicate acquisition within the TTL must fail")

	// A different key is unaffected.
	ok, err = m.Acquire(ctx, "other", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemory_TTLExpiry(t *testing.T) {
	clock := clockwork.NewFakeClock()
	m := NewMemory(clock)
	ctx := context.Background()

	ok, err := m.Acquire(ctx, "stock-sync", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	clock.Advance(time.Minute + time.Second)

	ok, err = m.Acquire(ctx, "stock-sync", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "lock must be reacquirable after TTL expiry")
}

func TestMemory_Release(t *testing.T) {
	clock := clockwork.NewFakeClock()
	m := NewMemory(clock)
	ctx := context.Background()

	ok, err := m.Acquire(ctx, "stock-sync", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, m.Release(ctx, "stock-sync"))

	ok, err = m.Acquire(ctx, "stock-sync", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "released lock must be reacquirable immediately")

	// Releasing an unheld lock is a no-op.
	require.NoError(t, m.Release(ctx, "never-held"))
}
