package game

import (
	"encoding/json"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeClock is a virtual clock. Advance runs due callbacks in time order on
// the calling goroutine, without holding the clock lock.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	seq    int
	timers []*fakeTimer
}

type fakeTimer struct {
	c       *fakeClock
	at      time.Time
	seq     int
	fn      func()
	stopped bool
	fired   bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	t := &fakeTimer{c: c, at: c.now.Add(d), seq: c.seq, fn: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.c.mu.Lock()
	defer t.c.mu.Unlock()
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	end := c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		var next *fakeTimer
		for _, t := range c.timers {
			if t.stopped || t.fired || t.at.After(end) {
				continue
			}
			if next == nil || t.at.Before(next.at) || (t.at.Equal(next.at) && t.seq < next.seq) {
				next = t
			}
		}
		if next == nil {
			c.now = end
			c.mu.Unlock()
			return
		}
		next.fired = true
		if next.at.After(c.now) {
			c.now = next.at
		}
		c.mu.Unlock()
		next.fn()
	}
}

// pending counts timers that have neither fired nor been stopped.
func (c *fakeClock) pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

type sent struct {
	to        ConnID // empty for broadcasts
	skip      []ConnID
	broadcast bool
	event     string
	args      []any
}

// recorder is a Notifier that keeps every call instead of doing I/O.
type recorder struct {
	msgs []sent
}

func (r *recorder) Broadcast(event string, args ...any) {
	r.msgs = append(r.msgs, sent{broadcast: true, event: event, args: args})
}

func (r *recorder) BroadcastExcept(skip []ConnID, event string, args ...any) {
	r.msgs = append(r.msgs, sent{broadcast: true, skip: skip, event: event, args: args})
}

func (r *recorder) Reply(to ConnID, event string, args ...any) {
	r.msgs = append(r.msgs, sent{to: to, event: event, args: args})
}

func (r *recorder) events(event string) []sent {
	var out []sent
	for _, m := range r.msgs {
		if m.event == event {
			out = append(out, m)
		}
	}
	return out
}

func (r *recorder) count(event string) int { return len(r.events(event)) }

func (r *recorder) last(t *testing.T, event string) sent {
	t.Helper()
	evs := r.events(event)
	require.NotEmpty(t, evs, "no %s recorded", event)
	return evs[len(evs)-1]
}

func (r *recorder) repliesTo(to ConnID, event string) []sent {
	var out []sent
	for _, m := range r.events(event) {
		if !m.broadcast && m.to == to {
			out = append(out, m)
		}
	}
	return out
}

func (r *recorder) reset() { r.msgs = nil }

func newTestConn(id ConnID) *ClientConn {
	return &ClientConn{
		id:   id,
		ws:   nil,
		send: make(chan []byte, 1024),
	}
}

func readEnvelopesNonBlocking(c *ClientConn) []Envelope {
	var envs []Envelope
	for {
		select {
		case msg := <-c.send:
			var env Envelope
			if json.Unmarshal(msg, &env) == nil {
				envs = append(envs, env)
			}
		default:
			return envs
		}
	}
}

func filterEnvelopes(envs []Envelope, event string) []Envelope {
	var out []Envelope
	for _, e := range envs {
		if e.Type == event {
			out = append(out, e)
		}
	}
	return out
}

func lastEnvelope(t *testing.T, envs []Envelope, event string) Envelope {
	t.Helper()
	found := filterEnvelopes(envs, event)
	require.NotEmpty(t, found, "no %s frame", event)
	return found[len(found)-1]
}

func decodeArg[T any](t *testing.T, env Envelope, i int) T {
	t.Helper()
	require.Greater(t, len(env.Args), i, "%s has no arg %d", env.Type, i)
	var v T
	require.NoError(t, json.Unmarshal(env.Args[i], &v))
	return v
}

func testRand() *rand.Rand { return rand.New(rand.NewPCG(1, 2)) }
