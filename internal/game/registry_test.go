package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_BindAndLookup(t *testing.T) {
	r := NewRegistry(nil)
	a, b := newTestConn("a"), newTestConn("b")
	r.Add(a)
	r.Add(b)

	assert.Equal(t, Spectator, r.Identity("a"))
	require.True(t, r.Bind("a", 2))
	require.False(t, r.Bind("ghost", 1))
	assert.Equal(t, Slot(2), r.Identity("a"))

	id, ok := r.ConnOf(2)
	require.True(t, ok)
	assert.Equal(t, ConnID("a"), id)
	_, ok = r.ConnOf(1)
	assert.False(t, ok)

	assert.Panics(t, func() { r.Bind("b", 2) })

	assert.Equal(t, Slot(2), r.Remove("a"))
	assert.Equal(t, Spectator, r.Remove("a"))
	assert.Equal(t, 1, r.Count())

	r.Bind("b", 0)
	r.UnbindAll()
	assert.Equal(t, Spectator, r.Identity("b"))
}

func TestRegistry_FanOut(t *testing.T) {
	r := NewRegistry(nil)
	a, b, c := newTestConn("a"), newTestConn("b"), newTestConn("c")
	r.Add(a)
	r.Add(b)
	r.Add(c)

	r.Broadcast(EvVoteClosed)
	r.BroadcastExcept([]ConnID{"b"}, EvCountdownTick, 3)
	r.Reply("c", EvAssignedIdentity, Slot(1))

	envA := readEnvelopesNonBlocking(a)
	envB := readEnvelopesNonBlocking(b)
	envC := readEnvelopesNonBlocking(c)

	assert.Len(t, envA, 2)
	assert.Len(t, envB, 1)
	assert.Len(t, envC, 3)
	assert.Equal(t, 3, decodeArg[int](t, lastEnvelope(t, envA, EvCountdownTick), 0))
	assert.Empty(t, filterEnvelopes(envB, EvCountdownTick))
	assert.Equal(t, 1, decodeArg[int](t, lastEnvelope(t, envC, EvAssignedIdentity), 0))
	assert.Empty(t, envA[0].Args, "no-arg events carry no args")
}

func TestRegistry_SlowReaderDropsFrames(t *testing.T) {
	r := NewRegistry(nil)
	slow := &ClientConn{id: "slow", send: make(chan []byte, 1)}
	r.Add(slow)

	r.Broadcast(EvCountdownTick, 2)
	r.Broadcast(EvCountdownTick, 1)

	envs := readEnvelopesNonBlocking(slow)
	require.Len(t, envs, 1)
	assert.Equal(t, 2, decodeArg[int](t, envs[0], 0))

	slow.Close()
	slow.Close()
	r.Broadcast(EvVoteClosed)
}

func TestRegistry_BroadcastExceptSkipsEveryListedConn(t *testing.T) {
	r := NewRegistry(nil)
	a, b, c := newTestConn("a"), newTestConn("b"), newTestConn("c")
	r.Add(a)
	r.Add(b)
	r.Add(c)

	r.BroadcastExcept([]ConnID{"a", "c"}, EvTradeCancelled)

	assert.Empty(t, readEnvelopesNonBlocking(a))
	assert.Empty(t, readEnvelopesNonBlocking(c))
	assert.Len(t, filterEnvelopes(readEnvelopesNonBlocking(b), EvTradeCancelled), 1)
}
