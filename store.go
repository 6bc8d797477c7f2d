package bakery

import (
	"strconv"

	"github.com/llxisdsh/bakery/internal/opt"
)

// Phase is where a participant is in its acquire/release cycle.
// It is written only by the owning participant and exists for observers;
// the protocol itself never reads it.
type Phase uint32

const (
	// PhaseIdle means the participant is not requesting entry.
	PhaseIdle Phase = iota
	// PhaseChoosing means the participant is computing its ticket.
	PhaseChoosing
	// PhaseWaiting means the ticket is published and the participant is
	// scanning its peers.
	PhaseWaiting
	// PhaseCritical means the participant is inside the critical section.
	PhaseCritical
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "Idle"
	case PhaseChoosing:
		return "Choosing"
	case PhaseWaiting:
		return "Waiting"
	case PhaseCritical:
		return "Critical"
	}
	return "Phase(" + strconv.Itoa(int(p)) + ")"
}

// SlotState is a point-in-time copy of one slot.
type SlotState struct {
	Choosing bool
	Ticket   uint64
	Phase    Phase
}

// Store is the shared state of a bakery: for each participant a choosing
// flag and a ticket number.
//
// Accessors are deliberately unsynchronized. A read may race with the
// owner's write and observe an older value; the bakery protocol is correct
// under such reads, so Store adds no locks or atomic operations of its own.
//
// A Store must not be copied after first use. Share it by pointer.
type Store struct {
	_     noCopy
	slots []opt.Slot_
}

// NewStore returns a store for n participants, all idle with ticket 0.
// It panics if n is not positive.
func NewStore(n int) *Store {
	if n <= 0 {
		panic("bakery: participant count must be positive, got " + strconv.Itoa(n))
	}
	return &Store{slots: make([]opt.Slot_, n)}
}

// Len returns the number of participants.
func (s *Store) Len() int {
	return len(s.slots)
}

// SetChoosing publishes participant i's choosing flag.
func (s *Store) SetChoosing(i int, choosing bool) {
	var v uint32
	if choosing {
		v = 1
	}
	storeUint32(&s.slots[i].Choosing, v)
}

// Choosing reports whether participant i is computing its ticket.
func (s *Store) Choosing(i int) bool {
	return loadUint32(&s.slots[i].Choosing) != 0
}

// SetTicket publishes participant i's ticket. Zero withdraws the request.
func (s *Store) SetTicket(i int, ticket uint64) {
	storeUint64(&s.slots[i].Ticket, ticket)
}

// Ticket returns participant i's ticket, 0 if it is not requesting entry.
func (s *Store) Ticket(i int) uint64 {
	return loadUint64(&s.slots[i].Ticket)
}

// Phase returns participant i's last published phase.
func (s *Store) Phase(i int) Phase {
	return Phase(loadUint32(&s.slots[i].Phase))
}

func (s *Store) setPhase(i int, p Phase) {
	storeUint32(&s.slots[i].Phase, uint32(p))
}

// maxTicket scans every slot once. The scan is not a snapshot: slots are
// read one at a time while their owners keep writing.
func (s *Store) maxTicket() uint64 {
	var m uint64
	for i := range s.slots {
		if t := loadUint64(&s.slots[i].Ticket); t > m {
			m = t
		}
	}
	return m
}

// Snapshot copies every slot. Like any other read of the store it is not
// atomic across slots.
func (s *Store) Snapshot() []SlotState {
	out := make([]SlotState, len(s.slots))
	for i := range s.slots {
		out[i] = SlotState{
			Choosing: s.Choosing(i),
			Ticket:   s.Ticket(i),
			Phase:    s.Phase(i),
		}
	}
	return out
}
