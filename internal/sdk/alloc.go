package sdk

import (
	"sync"
	"unsafe"
)

// Allocator services SDK allocation requests.
type Allocator interface {
	Allocate(size int, kind Kind) []byte
	Deallocate(buf []byte)
}

// HeapAllocator hands out aligned blocks from the Go heap and tracks the
// bytes still outstanding.
type HeapAllocator struct {
	align int

	mu     sync.Mutex
	live   map[uintptr]int
	bytes  int
	allocs int
}

func NewHeapAllocator(mode Mode) *HeapAllocator {
	return &HeapAllocator{
		align: Alignment(mode),
		live:  make(map[uintptr]int),
	}
}

func (a *HeapAllocator) Allocate(size int, kind Kind) []byte {
	if size <= 0 {
		return nil
	}
	raw := make([]byte, size+a.align-1)
	off := 0
	if rem := int(uintptr(unsafe.Pointer(&raw[0])) % uintptr(a.align)); rem != 0 {
		off = a.align - rem
	}
	buf := raw[off : off+size : off+size]

	a.mu.Lock()
	a.live[uintptr(unsafe.Pointer(&buf[0]))] = size
	a.bytes += size
	a.allocs++
	a.mu.Unlock()
	return buf
}

func (a *HeapAllocator) Deallocate(buf []byte) {
	if len(buf) == 0 {
		return
	}
	key := uintptr(unsafe.Pointer(&buf[0]))

	a.mu.Lock()
	defer a.mu.Unlock()
	if size, ok := a.live[key]; ok {
		a.bytes -= size
		delete(a.live, key)
	}
}

// LiveBytes returns the number of bytes allocated and not yet freed.
func (a *HeapAllocator) LiveBytes() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.bytes
}

func (a *HeapAllocator) LiveBlocks() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.live)
}

func (a *HeapAllocator) Allocations() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.allocs
}
