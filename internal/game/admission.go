package game

import "fmt"

// AdmissionQueue hands out the four participant slots round-robin.
type AdmissionQueue struct {
	seats [NumSlots]bool
	next  int
}

func NewAdmissionQueue() *AdmissionQueue { return &AdmissionQueue{} }

// Admit assigns the next free slot starting at the round-robin cursor and
// reports whether the queue is now full. Admitting into a full queue starts a
// fresh cycle at slot 0.
func (q *AdmissionQueue) Admit() (Slot, bool) {
	if q.Remaining() == 0 {
		q.Reset()
	}
	for i := 0; i < NumSlots; i++ {
		s := (q.next + i) % NumSlots
		if q.seats[s] {
			continue
		}
		q.assign(Slot(s))
		q.next = (s + 1) % NumSlots
		return Slot(s), q.Remaining() == 0
	}
	panic("admission: no free slot after reset")
}

func (q *AdmissionQueue) assign(s Slot) {
	if q.seats[s] {
		panic(fmt.Sprintf("admission: slot %d assigned twice", s))
	}
	q.seats[s] = true
}

// Release frees a slot held by someone who left before the match started.
func (q *AdmissionQueue) Release(s Slot) bool {
	if !s.Valid() || !q.seats[s] {
		return false
	}
	q.seats[s] = false
	return true
}

func (q *AdmissionQueue) Held(s Slot) bool { return s.Valid() && q.seats[s] }

func (q *AdmissionQueue) Remaining() int {
	n := 0
	for _, held := range q.seats {
		if !held {
			n++
		}
	}
	return n
}

func (q *AdmissionQueue) Reset() {
	q.seats = [NumSlots]bool{}
	q.next = 0
}
