//go:build !bakery_disable_padding

package opt

import (
	"unsafe"
)

// Slot_ is one participant's slot in the ticket store.
// Each slot is padded to a whole cache line, so a participant spinning on
// its neighbour does not keep invalidating the line its own writes land in.
type Slot_ struct {
	Choosing uint32
	Phase    uint32
	Ticket   uint64
	_        [(CacheLineSize_ - unsafe.Sizeof(struct {
		Choosing uint32
		Phase    uint32
		Ticket   uint64
	}{})%CacheLineSize_) % CacheLineSize_]byte
}
