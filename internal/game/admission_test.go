package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdmission_RoundRobinWraps(t *testing.T) {
	q := NewAdmissionQueue()

	var got []Slot
	var fullAt []int
	for i := 0; i < 5; i++ {
		s, full := q.Admit()
		got = append(got, s)
		if full {
			fullAt = append(fullAt, i)
		}
	}

	assert.Equal(t, []Slot{0, 1, 2, 3, 0}, got)
	assert.Equal(t, []int{3}, fullAt)
	assert.Equal(t, 3, q.Remaining())
}

func TestAdmission_ReleaseAndReset(t *testing.T) {
	q := NewAdmissionQueue()
	q.Admit()
	q.Admit()
	require.Equal(t, 2, q.Remaining())

	require.True(t, q.Release(0))
	require.False(t, q.Release(0), "already free")
	require.False(t, q.Release(Spectator))
	assert.Equal(t, 3, q.Remaining())

	// cursor keeps going before wrapping to the freed seat
	s, _ := q.Admit()
	assert.Equal(t, Slot(2), s)
	s, _ = q.Admit()
	assert.Equal(t, Slot(3), s)
	s, full := q.Admit()
	assert.Equal(t, Slot(0), s)
	assert.True(t, full)

	q.Reset()
	assert.Equal(t, NumSlots, q.Remaining())
	assert.False(t, q.Held(0))
	s, _ = q.Admit()
	assert.Equal(t, Slot(0), s)
}

func TestAdmission_DoubleAssignPanics(t *testing.T) {
	q := NewAdmissionQueue()
	q.assign(1)
	require.Panics(t, func() { q.assign(1) })
}
