package bakery

import (
	"runtime"
	_ "unsafe" // for linkname

	"github.com/llxisdsh/bakery/internal/opt"
)

// noCopy marks a struct for go vet's copylocks check. Keep it as a named
// field; embedding would export Lock and Unlock.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

func trySpin(spins *int) bool {
	if runtime_canSpin(*spins) {
		*spins++
		runtime_doSpin()
		return true
	}
	return false
}

// delay is one busy-wait iteration: a short active spin while the runtime
// allows it, then a yield. It never sleeps, so a waiter re-polls as soon as
// it is scheduled again.
func delay(spins *int) {
	if trySpin(spins) {
		return
	}
	*spins = 0
	runtime.Gosched()
}

// publish makes the caller's own slot writes visible before it goes on to
// read its peers. Gosched takes the scheduler lock, and that locked
// instruction drains the store buffer.
func publish() {
	if !opt.Fenced_ {
		runtime.Gosched()
	}
}

// Active spinning as sync.Mutex does it.
//
//go:linkname runtime_canSpin sync.runtime_canSpin
func runtime_canSpin(i int) bool

//go:linkname runtime_doSpin sync.runtime_doSpin
func runtime_doSpin()
