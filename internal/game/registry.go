package game

import (
	"log/slog"
	"slices"
	"sync"
)

// Notifier is how components talk to clients: one-way broadcasts to every
// connection, or a directed reply to a single one.
type Notifier interface {
	Broadcast(event string, args ...any)
	BroadcastExcept(skip []ConnID, event string, args ...any)
	Reply(to ConnID, event string, args ...any)
}

type member struct {
	conn *ClientConn
	slot Slot
}

// Registry maps live connections to participant identities and fans out
// notifications to them.
type Registry struct {
	mu      sync.RWMutex
	members map[ConnID]*member
	log     *slog.Logger
}

func NewRegistry(log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{
		members: make(map[ConnID]*member),
		log:     log,
	}
}

// Add registers a connection as an unseated spectator.
func (r *Registry) Add(cc *ClientConn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.members[cc.id] = &member{conn: cc, slot: Spectator}
}

// Remove forgets the connection and returns the slot it held.
func (r *Registry) Remove(id ConnID) Slot {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.members[id]
	if !ok {
		return Spectator
	}
	delete(r.members, id)
	return m.slot
}

// Bind seats a connection. Two live connections holding one slot would break
// every per-slot invariant, so that panics.
func (r *Registry) Bind(id ConnID, s Slot) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.members[id]
	if !ok {
		return false
	}
	if s.Valid() {
		for other, o := range r.members {
			if other != id && o.slot == s {
				panic("registry: slot bound to two connections")
			}
		}
	}
	m.slot = s
	return true
}

// UnbindAll turns every connection back into a spectator.
func (r *Registry) UnbindAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.members {
		m.slot = Spectator
	}
}

func (r *Registry) Identity(id ConnID) Slot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if m, ok := r.members[id]; ok {
		return m.slot
	}
	return Spectator
}

// ConnOf returns the connection currently seated at s.
func (r *Registry) ConnOf(s Slot) (ConnID, bool) {
	if !s.Valid() {
		return "", false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for id, m := range r.members {
		if m.slot == s {
			return id, true
		}
	}
	return "", false
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

func (r *Registry) Broadcast(event string, args ...any) {
	r.BroadcastExcept(nil, event, args...)
}

func (r *Registry) BroadcastExcept(skip []ConnID, event string, args ...any) {
	frame, ok := r.encode(event, args)
	if !ok {
		return
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for id, m := range r.members {
		if slices.Contains(skip, id) {
			continue
		}
		r.sendLocked(m.conn, event, frame)
	}
}

func (r *Registry) Reply(to ConnID, event string, args ...any) {
	frame, ok := r.encode(event, args)
	if !ok {
		return
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if m, ok := r.members[to]; ok {
		r.sendLocked(m.conn, event, frame)
	}
}

func (r *Registry) encode(event string, args []any) ([]byte, bool) {
	frame, err := encodeFrame(event, args)
	if err != nil {
		r.log.Error("encode outbound frame", "event", event, "err", err)
		return nil, false
	}
	return frame, true
}

func (r *Registry) sendLocked(cc *ClientConn, event string, frame []byte) {
	if !cc.enqueue(frame) {
		// slow reader: drop rather than stall dispatch
		r.log.Debug("outbound frame dropped", "conn", cc.id, "event", event)
	}
}
