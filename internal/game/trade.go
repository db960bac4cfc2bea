package game

import "math/rand/v2"

// Random trade pairs are numbered 1 and 2; 0 is the free-form slot.
const (
	directPair  = 0
	randomPairs = 2
	pairSize    = 2
)

type OfferResult int

const (
	OfferIgnored OfferResult = iota
	OfferHeld
	OfferReplaced
	OfferCompleted
)

// TradeSlot holds at most one outstanding offer. A second offer from another
// identity completes the trade and empties the slot.
type TradeSlot struct {
	pair int

	active  bool
	offerer Slot
	conn    ConnID
	piece   Piece
}

func (t *TradeSlot) Active() bool { return t.active }

// Holder returns who is offering what, if anyone.
func (t *TradeSlot) Holder() (Slot, Piece, bool) {
	return t.offerer, t.piece, t.active
}

func (t *TradeSlot) reset() {
	t.active = false
	t.offerer = Spectator
	t.conn = ""
	t.piece = ""
}

func (t *TradeSlot) offer(who Slot, conn ConnID, piece Piece, policy SameOfferPolicy, n Notifier) OfferResult {
	if !t.active {
		t.active = true
		t.offerer = who
		t.conn = conn
		t.piece = piece
		return OfferHeld
	}
	if t.offerer == who {
		if policy == SameOfferOverwrite {
			t.conn = conn
			t.piece = piece
			return OfferReplaced
		}
		return OfferIgnored
	}

	if t.pair == directPair {
		n.Reply(conn, EvTradeCompleted, t.piece)
		n.Reply(t.conn, EvTradeCompleted, piece)
	} else {
		n.Reply(conn, EvTradeCompleted, t.piece, t.pair)
		n.Reply(t.conn, EvTradeCompleted, piece, t.pair)
	}
	t.reset()
	return OfferCompleted
}

// TradeBroker owns the free-form trade slot and the two system-paired slots.
type TradeBroker struct {
	policy SameOfferPolicy
	notify Notifier

	direct TradeSlot
	random [randomPairs]TradeSlot

	paired bool
	pairs  [randomPairs][pairSize]Slot
}

func NewTradeBroker(policy SameOfferPolicy, n Notifier) *TradeBroker {
	b := &TradeBroker{policy: policy, notify: n}
	b.direct.pair = directPair
	b.direct.reset()
	for i := range b.random {
		b.random[i].pair = i + 1
		b.random[i].reset()
	}
	return b
}

// Slot returns the trade slot for pair index 0 (direct), 1 or 2.
func (b *TradeBroker) Slot(pair int) *TradeSlot {
	if pair == directPair {
		return &b.direct
	}
	if pair >= 1 && pair <= randomPairs {
		return &b.random[pair-1]
	}
	return nil
}

// OfferDirect places or answers an offer on the free-form slot. A fresh offer
// is announced to everyone else so their clients can show it; once it is
// taken the bystanders are told the slot is empty again.
func (b *TradeBroker) OfferDirect(who Slot, conn ConnID, piece Piece) OfferResult {
	holder := b.direct.conn
	res := b.direct.offer(who, conn, piece, b.policy, b.notify)
	switch res {
	case OfferHeld:
		b.notify.BroadcastExcept([]ConnID{conn}, EvTradeOffered, who)
	case OfferCompleted:
		b.notify.BroadcastExcept([]ConnID{holder, conn}, EvTradeCancelled)
	}
	return res
}

// OfferRandom places or answers an offer on a system-paired slot. Once pairs
// are assigned only the two members of a pair may use its slot.
func (b *TradeBroker) OfferRandom(who Slot, conn ConnID, piece Piece, pair int) OfferResult {
	if pair < 1 || pair > randomPairs {
		return OfferIgnored
	}
	if b.paired && !b.inPair(who, pair) {
		return OfferIgnored
	}
	return b.random[pair-1].offer(who, conn, piece, b.policy, b.notify)
}

func (b *TradeBroker) inPair(who Slot, pair int) bool {
	p := b.pairs[pair-1]
	return p[0] == who || p[1] == who
}

// Clear empties a slot and tells everyone no trade is pending there.
func (b *TradeBroker) Clear(pair int) {
	t := b.Slot(pair)
	if t == nil {
		return
	}
	t.reset()
	if pair == directPair {
		b.notify.Broadcast(EvTradeCancelled)
		return
	}
	b.notify.Broadcast(EvTradeCancelled, pair)
}

// Cancel clears a slot on behalf of a seated player. Once pairs are assigned
// a random slot can only be cleared by a member of its pair.
func (b *TradeBroker) Cancel(who Slot, pair int) bool {
	if b.Slot(pair) == nil {
		return false
	}
	if pair != directPair && b.paired && !b.inPair(who, pair) {
		return false
	}
	b.Clear(pair)
	return true
}

// ClearAll empties every slot that holds an offer.
func (b *TradeBroker) ClearAll() {
	for pair := 0; pair <= randomPairs; pair++ {
		if b.Slot(pair).Active() {
			b.Clear(pair)
		}
	}
}

// AssignPairs shuffles the four slots into two pairs, clears both random slots
// and tells each seated participant who their partner is.
func (b *TradeBroker) AssignPairs(rng *rand.Rand, connOf func(Slot) (ConnID, bool)) [randomPairs][pairSize]Slot {
	perm := rng.Perm(NumSlots)
	for i := range b.pairs {
		b.pairs[i] = [pairSize]Slot{Slot(perm[2*i]), Slot(perm[2*i+1])}
	}
	b.paired = true

	for i := range b.random {
		pair := i + 1
		if b.random[i].Active() {
			b.Clear(pair)
		}
		for j, s := range b.pairs[i] {
			partner := b.pairs[i][1-j]
			if conn, ok := connOf(s); ok {
				b.notify.Reply(conn, EvRandomTradePaired, pair, partner)
			}
		}
	}
	return b.pairs
}

// Pairs reports the current system-assigned pairs.
func (b *TradeBroker) Pairs() ([randomPairs][pairSize]Slot, bool) {
	return b.pairs, b.paired
}

// ClearConn withdraws every offer placed by conn, e.g. when it disconnects.
func (b *TradeBroker) ClearConn(conn ConnID) {
	for pair := 0; pair <= randomPairs; pair++ {
		if t := b.Slot(pair); t.Active() && t.conn == conn {
			b.Clear(pair)
		}
	}
}
