package game

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatchdog_FeedingPreventsFiring(t *testing.T) {
	clock := newFakeClock()
	fired := 0
	w := NewWatchdog(clock, 5*time.Second, func() { fired++ })
	w.Arm()

	for i := 0; i < 50; i++ {
		clock.Advance(2 * time.Second)
		w.Feed()
	}
	require.Zero(t, fired)
	assert.Equal(t, 5*time.Second, w.Remaining())

	clock.Advance(4999 * time.Millisecond)
	require.Zero(t, fired)
	clock.Advance(time.Millisecond)
	require.Equal(t, 1, fired)
	assert.False(t, w.Armed())

	// fired watchdogs stay quiet until re-armed
	w.Feed()
	clock.Advance(time.Minute)
	assert.Equal(t, 1, fired)

	w.Arm()
	clock.Advance(5 * time.Second)
	assert.Equal(t, 2, fired)
}

func TestWatchdog_DisarmCancels(t *testing.T) {
	clock := newFakeClock()
	fired := 0
	w := NewWatchdog(clock, 5*time.Second, func() { fired++ })
	w.Arm()
	clock.Advance(3 * time.Second)
	assert.Equal(t, 2*time.Second, w.Remaining())

	w.Disarm()
	w.Disarm()
	clock.Advance(time.Minute)
	assert.Zero(t, fired)
	assert.Zero(t, w.Remaining())
	assert.Zero(t, clock.pending())
}
