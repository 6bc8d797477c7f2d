// Package gate provides a one-shot start gate for lining goroutines up
// before they race.
package gate

import (
	"sync/atomic"
	_ "unsafe" // for linkname
)

// Gate holds goroutines at Wait until Open is called.
// Once open, all current and future Wait calls return immediately.
// The zero value is a closed gate.
type Gate struct {
	_ noCopy
	// state 32-bit:
	//   bit 0: open flag (1 = open)
	//   bits 1-31: parked waiter count
	state atomic.Uint32
	sema  uint32
}

const (
	openFlag  = 1
	oneWaiter = 2 // 1 << 1
)

// Open releases every parked waiter. It is idempotent.
func (g *Gate) Open() {
	for {
		s := g.state.Load()
		if s&openFlag != 0 {
			return
		}
		if g.state.CompareAndSwap(s, s|openFlag) {
			for range s >> 1 {
				runtime_semrelease(&g.sema, false, 0)
			}
			return
		}
	}
}

// Wait parks the caller until Open is called.
func (g *Gate) Wait() {
	for {
		s := g.state.Load()
		if s&openFlag != 0 {
			return
		}
		if g.state.CompareAndSwap(s, s+oneWaiter) {
			runtime_semacquire(&g.sema)
			return
		}
	}
}

// Waiting returns the number of goroutines parked at the gate. It drops to
// zero once the gate opens.
func (g *Gate) Waiting() int {
	s := g.state.Load()
	if s&openFlag != 0 {
		return 0
	}
	return int(s >> 1)
}

// noCopy trips go vet's copylocks check on copied gates.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

//go:linkname runtime_semacquire sync.runtime_Semacquire
func runtime_semacquire(s *uint32)

//go:linkname runtime_semrelease sync.runtime_Semrelease
func runtime_semrelease(s *uint32, handoff bool, skipframes int)
