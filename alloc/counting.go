package alloc

import (
	"sync/atomic"

	interpstate "github.com/hyperjson/interpstate"
)

// Counting wraps an Allocator and counts the traffic that passes
// through it. Tests substitute one per context to verify that every
// allocation performed on behalf of a context is serviced by that
// context's allocator.
type Counting struct {
	inner     interpstate.Allocator
	allocs    atomic.Uint64
	reallocs  atomic.Uint64
	frees     atomic.Uint64
	liveBytes atomic.Int64
}

// NewCounting wraps inner with counters.
func NewCounting(inner interpstate.Allocator) *Counting {
	return &Counting{inner: inner}
}

func (c *Counting) Alloc(size, align uint32) (uint32, error) {
	ptr, err := c.inner.Alloc(size, align)
	if err != nil {
		return 0, err
	}
	c.allocs.Add(1)
	c.liveBytes.Add(int64(size))
	return ptr, nil
}

func (c *Counting) Realloc(ptr, oldSize, align, newSize uint32) (uint32, error) {
	p, err := c.inner.Realloc(ptr, oldSize, align, newSize)
	if err != nil {
		return 0, err
	}
	c.reallocs.Add(1)
	c.liveBytes.Add(int64(newSize) - int64(oldSize))
	return p, nil
}

func (c *Counting) Free(ptr, size, align uint32) {
	c.inner.Free(ptr, size, align)
	c.frees.Add(1)
	c.liveBytes.Add(-int64(size))
}

// Allocs returns the number of successful Alloc calls.
func (c *Counting) Allocs() uint64 { return c.allocs.Load() }

// Reallocs returns the number of successful Realloc calls.
func (c *Counting) Reallocs() uint64 { return c.reallocs.Load() }

// Frees returns the number of Free calls.
func (c *Counting) Frees() uint64 { return c.frees.Load() }

// LiveBytes returns allocated minus freed bytes.
func (c *Counting) LiveBytes() int64 { return c.liveBytes.Load() }
