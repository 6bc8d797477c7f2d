//go:build bakery_racecheck

package bakery

import (
	"sync/atomic"

	"github.com/llxisdsh/bakery/internal/opt"
)

// Instrumented variants of the slot accessors. With -race the detector reports
// every intentional race between a participant's writes and its peers' reads.

func loadUint32(addr *uint32) uint32 {
	if opt.Fenced_ {
		return atomic.LoadUint32(addr)
	}
	return *addr
}

func storeUint32(addr *uint32, val uint32) {
	if opt.Fenced_ {
		atomic.StoreUint32(addr, val)
		return
	}
	*addr = val
}

func loadUint64(addr *uint64) uint64 {
	if opt.Fenced_ {
		return atomic.LoadUint64(addr)
	}
	return *addr
}

func storeUint64(addr *uint64, val uint64) {
	if opt.Fenced_ {
		atomic.StoreUint64(addr, val)
		return
	}
	*addr = val
}
