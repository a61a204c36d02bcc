package render_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quenchlabs/quench/internal/render"
	"github.com/quenchlabs/quench/internal/testutil"
)

func TestLock_AcquireRelease(t *testing.T) {
	clock := testutil.NewManualClock()
	l := render.NewLock(clock, 5*time.Second)

	require.NoError(t, l.Acquire())
	assert.True(t, l.Held())

	l.Release()
	assert.False(t, l.Held())
	assert.Equal(t, time.Duration(0), l.HeldFor())
}

func TestLock_HeldWithinWatchdogRejects(t *testing.T) {
	clock := testutil.NewManualClock()
	l := render.NewLock(clock, 5*time.Second)

	require.NoError(t, l.Acquire())
	clock.Advance(time.Second)

	err := l.Acquire()
	assert.ErrorIs(t, err, render.ErrLockHeld, "holder is within its watchdog window")
	assert.Equal(t, time.Second, l.HeldFor())
}

// TestLock_WatchdogForceReleaseAndRetry covers the LockTimeout recovery
// path: a holder wedged past the watchdog is force-released and the caller
// acquires on its one retry.
func TestLock_WatchdogForceReleaseAndRetry(t *testing.T) {
	clock := testutil.NewManualClock()
	l := render.NewLock(clock, 5*time.Second)

	require.NoError(t, l.Acquire())
	clock.Advance(6 * time.Second)

	require.NoError(t, l.Acquire(), "wedged lock is broken and re-acquired in one call")
	assert.True(t, l.Held())
	assert.Equal(t, time.Duration(0), l.HeldFor(), "new hold starts now")
}

func TestLock_ForceReleaseIfExpired(t *testing.T) {
	clock := testutil.NewManualClock()
	l := render.NewLock(clock, 5*time.Second)

	assert.False(t, l.ForceReleaseIfExpired(), "free lock: nothing to do")

	require.NoError(t, l.Acquire())
	clock.Advance(4 * time.Second)
	assert.False(t, l.ForceReleaseIfExpired(), "within watchdog: holder keeps the lock")
	assert.True(t, l.Held())

	clock.Advance(2 * time.Second)
	assert.True(t, l.ForceReleaseIfExpired(), "past watchdog: guardian may break the lock")
	assert.False(t, l.Held())
}

func TestLock_ReleaseIdempotent(t *testing.T) {
	clock := testutil.NewManualClock()
	l := render.NewLock(clock, 5*time.Second)

	l.Release()
	l.Release()
	assert.False(t, l.Held())
}
