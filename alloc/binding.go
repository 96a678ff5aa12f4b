// Package alloc routes every native allocation performed by this module
// to the allocator belonging to the owning context. The process-wide
// default allocator is never consulted; each context carries its own
// Binding obtained from the host runtime's context-scoped memory API.
package alloc

import (
	"sync/atomic"

	interpstate "github.com/hyperjson/interpstate"
	"github.com/hyperjson/interpstate/errors"
)

// Binding is the allocate/reallocate/free function set owned by one
// context. Every operation verifies the caller's context identity
// against the owner before touching the allocator.
type Binding struct {
	allocator interpstate.Allocator
	owner     interpstate.ContextID
	dead      atomic.Bool
}

// NewBinding binds a context to its allocator function set.
func NewBinding(owner interpstate.ContextID, a interpstate.Allocator) *Binding {
	return &Binding{owner: owner, allocator: a}
}

// Owner returns the context the binding belongs to.
func (b *Binding) Owner() interpstate.ContextID { return b.owner }

// Alive reports whether the binding has not been invalidated.
func (b *Binding) Alive() bool { return !b.dead.Load() }

// Alloc allocates size bytes in the owning context's heap.
func (b *Binding) Alloc(owner interpstate.ContextID, size, align uint32) (uint32, error) {
	if err := b.check(owner); err != nil {
		return 0, err
	}
	ptr, err := b.allocator.Alloc(size, align)
	if err != nil {
		return 0, errors.AllocationFailed(uint64(b.owner), size, align, err)
	}
	return ptr, nil
}

// Realloc resizes an allocation in the owning context's heap.
func (b *Binding) Realloc(owner interpstate.ContextID, ptr, oldSize, align, newSize uint32) (uint32, error) {
	if err := b.check(owner); err != nil {
		return 0, err
	}
	p, err := b.allocator.Realloc(ptr, oldSize, align, newSize)
	if err != nil {
		return 0, errors.AllocationFailed(uint64(b.owner), newSize, align, err)
	}
	return p, nil
}

// Free releases an allocation in the owning context's heap.
func (b *Binding) Free(owner interpstate.ContextID, ptr, size, align uint32) error {
	if err := b.check(owner); err != nil {
		return err
	}
	b.allocator.Free(ptr, size, align)
	return nil
}

// Invalidate marks the binding dead. Subsequent operations fail fast;
// the binding is invalidated exactly once at context teardown.
func (b *Binding) Invalidate() {
	b.dead.Store(true)
}

func (b *Binding) check(owner interpstate.ContextID) error {
	if b.dead.Load() {
		err := errors.DeadContext(errors.PhaseAlloc, uint64(b.owner))
		if interpstate.Strict() {
			panic(err)
		}
		return err
	}
	if owner != b.owner {
		err := errors.CrossContext(errors.PhaseAlloc, uint64(b.owner), uint64(owner))
		if interpstate.Strict() {
			panic(err)
		}
		return err
	}
	return nil
}
