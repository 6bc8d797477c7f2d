package harness

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/llxisdsh/pb"

	"github.com/llxisdsh/bakery/metrics"
)

var (
	// ErrMutualExclusion reports two participants inside the critical
	// section at the same time.
	ErrMutualExclusion = errors.New("mutual exclusion violated")
	// ErrStarvation reports participants that did not finish their
	// iterations before the run timeout.
	ErrStarvation = errors.New("participants starved")
)

// ParticipantStats accumulates one participant's activity.
type ParticipantStats struct {
	Entries   atomic.Int64
	Aborts    atomic.Int64
	TotalWait atomic.Int64 // nanoseconds
	MaxWait   atomic.Int64 // nanoseconds

	// expect is the shared counter value written on entry. Only the owning
	// participant touches it.
	expect int64
}

// Recorder watches the critical section from the outside. It never talks to
// the lock; participants report to it after Acquire and before Release.
type Recorder struct {
	inside     atomic.Int32
	counter    atomic.Int64
	violations atomic.Int64
	stats      pb.MapOf[int, *ParticipantStats]
}

// NewRecorder returns a Recorder for participants 0..n-1. Their stats exist
// up front, so participants running concurrently only ever read the map.
func NewRecorder(n int) *Recorder {
	r := &Recorder{}
	for id := range n {
		r.stats.Store(id, &ParticipantStats{})
	}
	return r
}

// Participant returns the stats of participant id. It panics if id was not
// registered with NewRecorder.
func (r *Recorder) Participant(id int) *ParticipantStats {
	st, ok := r.stats.Load(id)
	if !ok {
		panic(fmt.Sprintf("harness: unknown participant %d", id))
	}
	return st
}

// Enter records participant id entering the critical section after waiting
// for wait. Like the shared counter of the classic demo, the counter is read
// and written back in two steps; Exit checks nobody else moved it.
func (r *Recorder) Enter(id int, wait time.Duration) error {
	st := r.Participant(id)
	label := strconv.Itoa(id)
	metrics.AcquireCounter.WithLabelValues(label).Inc()
	metrics.WaitHistogram.Observe(wait.Seconds())
	metrics.CriticalGauge.Inc()

	var err error
	if n := r.inside.Add(1); n != 1 {
		err = r.violation("participant %d entered with %d others inside", id, n-1)
	}
	v := r.counter.Load() + 1
	r.counter.Store(v)
	st.expect = v

	st.Entries.Add(1)
	w := int64(wait)
	st.TotalWait.Add(w)
	for {
		m := st.MaxWait.Load()
		if w <= m || st.MaxWait.CompareAndSwap(m, w) {
			break
		}
	}
	return err
}

// Exit records participant id leaving the critical section.
func (r *Recorder) Exit(id int) error {
	st := r.Participant(id)
	var err error
	if got := r.counter.Load(); got != st.expect {
		err = r.violation("participant %d left with counter %d, wrote %d", id, got, st.expect)
	}
	r.inside.Add(-1)
	metrics.CriticalGauge.Dec()
	metrics.ReleaseCounter.WithLabelValues(strconv.Itoa(id)).Inc()
	return err
}

// Abort records an acquisition withdrawn before entry.
func (r *Recorder) Abort(id int) {
	r.Participant(id).Aborts.Add(1)
	metrics.AbortCounter.Inc()
}

// Counter returns the number of completed entries as seen through the
// shared counter.
func (r *Recorder) Counter() int64 {
	return r.counter.Load()
}

// Violations returns the number of overlaps observed.
func (r *Recorder) Violations() int64 {
	return r.violations.Load()
}

// IDs returns the registered participants in ascending order.
func (r *Recorder) IDs() []int {
	var ids []int
	r.stats.Range(func(id int, _ *ParticipantStats) bool {
		ids = append(ids, id)
		return true
	})
	sort.Ints(ids)
	return ids
}

func (r *Recorder) violation(format string, args ...any) error {
	r.violations.Add(1)
	metrics.ViolationCounter.Inc()
	return fmt.Errorf("%w: "+format, append([]any{ErrMutualExclusion}, args...)...)
}
