package alloc

import (
	stderrors "errors"
	"fmt"
	"sync"
	"testing"

	interpstate "github.com/hyperjson/interpstate"
	"github.com/hyperjson/interpstate/errors"
)

// fakeAllocator is a bump allocator with a base offset so tests can tell
// two allocators' pointers apart.
type fakeAllocator struct {
	mu   sync.Mutex
	next uint32
	fail bool
}

func (f *fakeAllocator) Alloc(size, align uint32) (uint32, error) {
	if f.fail {
		return 0, fmt.Errorf("out of memory")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.next == 0 {
		f.next = 0x100
	}
	ptr := f.next
	f.next += size
	return ptr, nil
}

func (f *fakeAllocator) Realloc(ptr, oldSize, align, newSize uint32) (uint32, error) {
	return f.Alloc(newSize, align)
}

func (f *fakeAllocator) Free(ptr, size, align uint32) {}

func TestBinding_RoutesToOwner(t *testing.T) {
	b := NewBinding(1, &fakeAllocator{})

	ptr, err := b.Alloc(1, 16, 8)
	if err != nil {
		t.Fatalf("alloc: %v", err)
	}
	if ptr == 0 {
		t.Fatal("null pointer from successful alloc")
	}
	if b.Owner() != 1 {
		t.Fatalf("owner = %d, want 1", b.Owner())
	}
}

func TestBinding_CrossContextRejected(t *testing.T) {
	b := NewBinding(1, &fakeAllocator{})

	_, err := b.Alloc(2, 16, 8)
	if !stderrors.Is(err, &errors.Error{Kind: errors.KindCrossContext}) {
		t.Fatalf("want cross_context, got %v", err)
	}

	if _, err := b.Realloc(2, 0x100, 16, 8, 32); !stderrors.Is(err, &errors.Error{Kind: errors.KindCrossContext}) {
		t.Fatalf("realloc: want cross_context, got %v", err)
	}
	if err := b.Free(2, 0x100, 16, 8); !stderrors.Is(err, &errors.Error{Kind: errors.KindCrossContext}) {
		t.Fatalf("free: want cross_context, got %v", err)
	}
}

func TestBinding_DeadAfterInvalidate(t *testing.T) {
	b := NewBinding(1, &fakeAllocator{})
	if !b.Alive() {
		t.Fatal("fresh binding should be alive")
	}

	b.Invalidate()
	if b.Alive() {
		t.Fatal("binding should be dead after Invalidate")
	}

	_, err := b.Alloc(1, 16, 8)
	if !stderrors.Is(err, &errors.Error{Kind: errors.KindDeadContext}) {
		t.Fatalf("want dead_context, got %v", err)
	}
}

func TestBinding_StrictPanics(t *testing.T) {
	interpstate.SetStrict(true)
	defer interpstate.SetStrict(false)

	b := NewBinding(1, &fakeAllocator{})

	defer func() {
		if recover() == nil {
			t.Fatal("strict cross-context alloc should panic")
		}
	}()
	_, _ = b.Alloc(2, 16, 8)
}

func TestBinding_AllocFailureWrapped(t *testing.T) {
	b := NewBinding(3, &fakeAllocator{fail: true})

	_, err := b.Alloc(3, 64, 8)
	if !stderrors.Is(err, &errors.Error{Kind: errors.KindAllocation}) {
		t.Fatalf("want allocation error, got %v", err)
	}
	var e *errors.Error
	if !stderrors.As(err, &e) || e.Context != 3 {
		t.Fatalf("allocation error should carry the owner identity: %v", err)
	}
}

func TestCounting(t *testing.T) {
	c := NewCounting(&fakeAllocator{})

	ptr, err := c.Alloc(32, 8)
	if err != nil || ptr == 0 {
		t.Fatalf("alloc: ptr=%d err=%v", ptr, err)
	}
	if _, err := c.Realloc(ptr, 32, 8, 64); err != nil {
		t.Fatalf("realloc: %v", err)
	}
	c.Free(ptr, 64, 8)

	if c.Allocs() != 1 || c.Reallocs() != 1 || c.Frees() != 1 {
		t.Fatalf("counters = %d/%d/%d, want 1/1/1", c.Allocs(), c.Reallocs(), c.Frees())
	}
	if c.LiveBytes() != 0 {
		t.Fatalf("live bytes = %d after balanced traffic", c.LiveBytes())
	}
}

func TestAllocationList_FreeAndRelease(t *testing.T) {
	counting := NewCounting(&fakeAllocator{})

	al := NewAllocationList()
	for i := 0; i < 3; i++ {
		ptr, err := counting.Alloc(16, 8)
		if err != nil {
			t.Fatalf("alloc %d: %v", i, err)
		}
		al.Add(ptr, 16, 8)
	}
	if al.Count() != 3 {
		t.Fatalf("count = %d, want 3", al.Count())
	}

	al.FreeAndRelease(counting)
	if counting.Frees() != 3 {
		t.Fatalf("frees = %d, want 3", counting.Frees())
	}
}

func TestAllocationList_ResetAndNullSkip(t *testing.T) {
	counting := NewCounting(&fakeAllocator{})

	al := NewAllocationList()
	al.Add(0, 16, 8)
	al.Free(counting)
	if counting.Frees() != 0 {
		t.Fatal("null pointer must not be freed")
	}

	ptr, err := counting.Alloc(16, 8)
	if err != nil {
		t.Fatalf("alloc: %v", err)
	}
	al.Add(ptr, 16, 8)
	al.Reset()
	al.Free(counting)
	if counting.Frees() != 0 {
		t.Fatal("reset entries must not be freed")
	}
	al.Release()
}
