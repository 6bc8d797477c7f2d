package bakery

import (
	"context"
	"errors"
	"sync"
)

// ErrSpinLimit is returned by AcquireContext when the busy-wait exceeds the
// limit set with WithMaxSpins.
var ErrSpinLimit = errors.New("bakery: spin limit exceeded")

// Lock is Lamport's bakery lock for a fixed set of participants.
//
// Each participant is identified by an ID in [0, Len()) and must be driven by
// a single goroutine at a time. A participant entering takes a ticket one
// higher than every ticket it can see, then waits for each peer that holds a
// smaller (ticket, id) pair. Equal tickets are possible when two participants
// scan at the same time; the lower ID goes first.
//
// Implementation:
//   - Acquire(i): choosing[i] = true; ticket[i] = 1 + max(ticket);
//     choosing[i] = false; then for every j != i wait while j is choosing,
//     and while ticket[j] != 0 and (ticket[j], j) < (ticket[i], i).
//   - Release(i): ticket[i] = 0.
//
// Trade-offs:
//   - Pros: needs no atomic read-modify-write and tolerates stale reads of
//     the shared slots. Starvation-free: every waiter is served within a
//     bounded number of other participants' turns.
//   - Cons: O(N) scan per acquisition, busy-waiting, and a fixed participant
//     set known up front.
//
// Plain stores may linger in a CPU store buffer past the participant's
// later loads. Each doorway half therefore ends with a pass through the
// scheduler, whose locked instructions publish the slot before the peers are
// read. With -tags=bakery_fenced the accesses are sequentially consistent
// atomics and the yield is skipped.
//
// Under the race detector the slot accessors are not instrumented, so data
// protected by a Lock is invisible to the detector as synchronized. Protect
// such data with atomics if the program is also tested with -race.
type Lock struct {
	_        noCopy
	store    *Store
	hook     Hook
	maxSpins int
}

// Option configures a Lock.
type Option func(*Lock)

// WithHook installs a Hook invoked between the sub-steps of Acquire.
func WithHook(h Hook) Option {
	return func(l *Lock) {
		l.hook = h
	}
}

// WithMaxSpins bounds the number of busy-wait iterations of a single
// AcquireContext call. Zero means no limit. Acquire ignores it.
func WithMaxSpins(n int) Option {
	return func(l *Lock) {
		l.maxSpins = max(n, 0)
	}
}

// NewLock returns a bakery lock over store. The store may be inspected by
// observers while the lock is in use but must not be written by anyone else.
func NewLock(store *Store, opts ...Option) *Lock {
	if store == nil {
		panic("bakery: nil store")
	}
	l := &Lock{store: store}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Store returns the ticket store the lock operates on.
func (l *Lock) Store() *Store {
	return l.store
}

// Len returns the number of participants.
func (l *Lock) Len() int {
	return l.store.Len()
}

// Acquire blocks participant id until it may enter the critical section.
// It cannot fail; with a correct caller it always returns eventually.
func (l *Lock) Acquire(id int) {
	_ = l.acquire(context.Background(), id, 0)
}

// AcquireContext is Acquire bounded by ctx and by the WithMaxSpins limit.
// If either runs out first, the participant's request is withdrawn (its
// ticket reset to 0) and ctx.Err() or ErrSpinLimit is returned. A
// withdrawn participant never entered the critical section and must not
// call Release.
func (l *Lock) AcquireContext(ctx context.Context, id int) error {
	return l.acquire(ctx, id, l.maxSpins)
}

// Release lets the next waiter in. Only the participant that acquired may
// release, and only once per acquisition.
func (l *Lock) Release(id int) {
	s := l.store
	s.setPhase(id, PhaseIdle)
	s.SetTicket(id, 0)
}

// Locker returns a sync.Locker that acquires and releases as participant id.
func (l *Lock) Locker(id int) sync.Locker {
	_ = l.store.slots[id]
	return &participant{l: l, id: id}
}

type participant struct {
	l  *Lock
	id int
}

func (p *participant) Lock()   { p.l.Acquire(p.id) }
func (p *participant) Unlock() { p.l.Release(p.id) }

func (l *Lock) acquire(ctx context.Context, id int, limit int) error {
	s := l.store
	n := len(s.slots)
	_ = s.slots[id]

	// Doorway: announce, scan, publish.
	s.setPhase(id, PhaseChoosing)
	s.SetChoosing(id, true)
	publish()
	l.step(id, StepDoorway)
	mine := s.maxTicket() + 1
	l.step(id, StepPublish)
	s.SetTicket(id, mine)
	l.step(id, StepPublished)
	s.SetChoosing(id, false)
	s.setPhase(id, PhaseWaiting)
	publish()
	l.step(id, StepWait)

	w := waiter{ctx: ctx, limit: limit}
	for j := range n {
		if j == id {
			continue
		}
		for s.Choosing(j) {
			if err := w.wait(); err != nil {
				l.withdraw(id)
				return err
			}
		}
		for {
			t := s.Ticket(j)
			l.step(id, StepCompare)
			if t == 0 || !before(t, j, mine, id) {
				break
			}
			if err := w.wait(); err != nil {
				l.withdraw(id)
				return err
			}
		}
	}

	s.setPhase(id, PhaseCritical)
	return nil
}

func (l *Lock) step(id int, step Step) {
	if l.hook != nil {
		l.hook(id, step)
	}
}

func (l *Lock) withdraw(id int) {
	s := l.store
	s.setPhase(id, PhaseIdle)
	s.SetTicket(id, 0)
}

// before reports whether (t1, id1) orders ahead of (t2, id2).
func before(t1 uint64, id1 int, t2 uint64, id2 int) bool {
	return t1 < t2 || (t1 == t2 && id1 < id2)
}

// waiter counts the busy-wait iterations of one acquisition.
type waiter struct {
	ctx   context.Context
	limit int
	total int
	spins int
}

func (w *waiter) wait() error {
	if err := w.ctx.Err(); err != nil {
		return err
	}
	if w.limit > 0 && w.total >= w.limit {
		return ErrSpinLimit
	}
	w.total++
	delay(&w.spins)
	return nil
}
