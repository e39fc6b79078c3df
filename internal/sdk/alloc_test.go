package sdk

import (
	"testing"
	"unsafe"
)

func TestHeapAllocator_Alignment(t *testing.T) {
	for _, mode := range []Mode{ModeWide, ModeNarrow} {
		a := NewHeapAllocator(mode)
		for _, size := range []int{1, 7, 33, 128} {
			buf := a.Allocate(size, KindFoundation)
			if len(buf) != size {
				t.Fatalf("%v: len = %d, want %d", mode, len(buf), size)
			}
			addr := uintptr(unsafe.Pointer(&buf[0]))
			if addr%uintptr(Alignment(mode)) != 0 {
				t.Errorf("%v: block at %#x not aligned to %d", mode, addr, Alignment(mode))
			}
		}
	}
}

func TestHeapAllocator_Accounting(t *testing.T) {
	a := NewHeapAllocator(ModeWide)

	b1 := a.Allocate(64, KindPhysics)
	b2 := a.Allocate(32, KindScene)
	if a.LiveBytes() != 96 {
		t.Errorf("live bytes = %d, want 96", a.LiveBytes())
	}
	if a.LiveBlocks() != 2 {
		t.Errorf("live blocks = %d, want 2", a.LiveBlocks())
	}

	a.Deallocate(b1)
	a.Deallocate(b1)
	if a.LiveBytes() != 32 {
		t.Errorf("live bytes after free = %d, want 32", a.LiveBytes())
	}

	a.Deallocate(b2)
	if a.LiveBytes() != 0 || a.LiveBlocks() != 0 {
		t.Errorf("leak: %d bytes in %d blocks", a.LiveBytes(), a.LiveBlocks())
	}
	if a.Allocations() != 2 {
		t.Errorf("allocations = %d, want 2", a.Allocations())
	}

	if a.Allocate(0, KindScene) != nil {
		t.Error("zero-size allocation should return nil")
	}
}
