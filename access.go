//go:build !bakery_racecheck

package bakery

import (
	"sync/atomic"

	"github.com/llxisdsh/bakery/internal/opt"
)

// Ticket store access rules
//
// Slots are read and written with plain loads and stores. Every participant
// writes only its own slot and reads all of them, so the reads race with the
// writes on purpose: the bakery algorithm stays correct when a read returns a
// stale value. The accessors below are the only code touching slot memory.
//
// Under -race these functions are marked go:norace, so the detector does not
// report the races the algorithm is built to tolerate. Build with
// -tags=bakery_racecheck to keep instrumentation on and see them reported.
//
// Plain accesses give no store-to-load order, so Lock yields to the scheduler
// after each doorway half (see publish). With -tags=bakery_fenced every access
// goes through sync/atomic instead.

//go:norace
//go:nosplit
func loadUint32(addr *uint32) uint32 {
	if opt.Fenced_ {
		return atomic.LoadUint32(addr)
	}
	return *addr
}

//go:norace
//go:nosplit
func storeUint32(addr *uint32, val uint32) {
	if opt.Fenced_ {
		atomic.StoreUint32(addr, val)
		return
	}
	*addr = val
}

//go:norace
//go:nosplit
func loadUint64(addr *uint64) uint64 {
	if opt.Fenced_ {
		return atomic.LoadUint64(addr)
	}
	return *addr
}

//go:norace
//go:nosplit
func storeUint64(addr *uint64, val uint64) {
	if opt.Fenced_ {
		atomic.StoreUint64(addr, val)
		return
	}
	*addr = val
}
