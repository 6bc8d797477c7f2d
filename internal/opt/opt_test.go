package opt

import (
	"testing"
	"unsafe"
)

func TestCacheLineSize(t *testing.T) {
	if CacheLineSize_ < 32 || CacheLineSize_&(CacheLineSize_-1) != 0 {
		t.Fatalf("CacheLineSize_ = %d, want a power of two >= 32", CacheLineSize_)
	}
}

func TestSlotLayout(t *testing.T) {
	size := unsafe.Sizeof(Slot_{})
	if size < 16 {
		t.Fatalf("slot size = %d, want >= 16", size)
	}
	if unsafe.Offsetof(Slot_{}.Ticket)%8 != 0 {
		t.Fatalf("ticket offset %d is not 8-byte aligned", unsafe.Offsetof(Slot_{}.Ticket))
	}
	if size > 16 && size%CacheLineSize_ != 0 {
		t.Fatalf("padded slot size = %d, want a multiple of %d", size, CacheLineSize_)
	}
}
