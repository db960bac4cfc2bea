package game

import "fmt"

// PhaseTracker is the single owner of the match phase. Every transition is
// broadcast before the entry hook of the new phase runs.
type PhaseTracker struct {
	current Phase
	notify  Notifier
	onEnter map[Phase]func()
}

func NewPhaseTracker(n Notifier) *PhaseTracker {
	return &PhaseTracker{
		current: PhaseLobby,
		notify:  n,
		onEnter: make(map[Phase]func()),
	}
}

func (t *PhaseTracker) Current() Phase { return t.current }

// OnEnter registers the side effects of entering p.
func (t *PhaseTracker) OnEnter(p Phase, fn func()) { t.onEnter[p] = fn }

// Set moves to p. Phases advance Lobby -> Active -> Ended -> Lobby; any other
// move is a programming error.
func (t *PhaseTracker) Set(p Phase) {
	if t.current.next() != p {
		panic(fmt.Sprintf("phase: illegal transition %s -> %s", t.current, p))
	}
	t.current = p
	t.notify.Broadcast(EvPhaseChanged, p)
	if fn := t.onEnter[p]; fn != nil {
		fn()
	}
}
