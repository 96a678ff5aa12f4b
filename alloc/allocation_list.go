package alloc

import (
	"sync"

	interpstate "github.com/hyperjson/interpstate"
)

// Allocation records one allocation made in a context's heap.
type Allocation struct {
	Ptr   uint32
	Size  uint32
	Align uint32
}

// AllocationList tracks the in-flight allocations of one operation so
// an error path can free them in bulk before any result is published.
// Lists are pooled; a list must not be touched after Release.
type AllocationList struct {
	allocations []Allocation
}

var allocationListPool = sync.Pool{
	New: func() any {
		return &AllocationList{allocations: make([]Allocation, 0, 8)}
	},
}

// NewAllocationList returns a pooled list.
func NewAllocationList() *AllocationList {
	return allocationListPool.Get().(*AllocationList)
}

const maxPooledAllocationCapacity = 128

// Release returns the list to the pool. Lists grown past the pooling
// cap are dropped so one oversized operation does not pin the capacity.
func (al *AllocationList) Release() {
	if cap(al.allocations) > maxPooledAllocationCapacity {
		return
	}
	al.Reset()
	allocationListPool.Put(al)
}

// Add records an allocation.
func (al *AllocationList) Add(ptr, size, align uint32) {
	al.allocations = append(al.allocations, Allocation{
		Ptr:   ptr,
		Size:  size,
		Align: align,
	})
}

// Free returns every recorded allocation to a. Null pointers are
// skipped.
func (al *AllocationList) Free(a interpstate.Allocator) {
	for _, x := range al.allocations {
		if x.Ptr != 0 {
			a.Free(x.Ptr, x.Size, x.Align)
		}
	}
}

// FreeAndRelease frees every recorded allocation and returns the list
// to the pool.
func (al *AllocationList) FreeAndRelease(a interpstate.Allocator) {
	al.Free(a)
	al.Release()
}

// Reset clears the list without freeing.
func (al *AllocationList) Reset() {
	al.allocations = al.allocations[:0]
}

// Count returns the number of recorded allocations.
func (al *AllocationList) Count() int {
	return len(al.allocations)
}
