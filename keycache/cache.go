// Package keycache amortizes the cost of materializing identical short
// string keys seen repeatedly while decoding structured data. The cache
// is fixed-capacity, direct-mapped by key hash, and replaces on
// collision unconditionally, which keeps insertion O(1) with no
// bookkeeping. Exactly one cache exists per live context.
package keycache

import (
	"sync"
	"sync/atomic"

	interpstate "github.com/hyperjson/interpstate"
	"github.com/hyperjson/interpstate/alloc"
	"github.com/hyperjson/interpstate/errors"
)

// DefaultCapacity is the design-default slot count.
const DefaultCapacity = 2048

// slotFootprint is the per-slot reservation made in the owning
// context's heap for the cache's backing storage.
const slotFootprint = 16

type slot struct {
	hash   uint64
	handle interpstate.Handle
	live   bool
}

// Stats reports cache traffic counters.
type Stats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

// Cache is a direct-mapped key interning cache owned by one context.
// Handles the cache drops, by eviction or at Close, are handed to the
// release hook so the owning host can reclaim them.
type Cache struct {
	owner   interpstate.ContextID
	binding *alloc.Binding
	release func(interpstate.Handle)
	slots   []slot
	mask    uint64
	region  uint32
	size    uint32

	mu        sync.Mutex
	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
	closed    atomic.Bool
}

// New builds a cache for the given context. capacity must be a power of
// two. The backing slot region is reserved through the owning context's
// allocator binding and released on Close. release, when non-nil, is
// invoked for every handle the cache stops holding, so cached key
// objects are returned to the host rather than leaked.
func New(owner interpstate.ContextID, capacity int, binding *alloc.Binding, release func(interpstate.Handle)) (*Cache, error) {
	if capacity <= 0 || capacity&(capacity-1) != 0 {
		return nil, errors.InvalidInput(errors.PhaseInit, "key cache capacity must be a power of two")
	}
	size := uint32(capacity) * slotFootprint
	region, err := binding.Alloc(owner, size, 8)
	if err != nil {
		return nil, err
	}
	return &Cache{
		owner:   owner,
		binding: binding,
		release: release,
		slots:   make([]slot, capacity),
		mask:    uint64(capacity - 1),
		region:  region,
		size:    size,
	}, nil
}

// Owner returns the context the cache belongs to.
func (c *Cache) Owner() interpstate.ContextID { return c.owner }

// Capacity returns the slot count.
func (c *Cache) Capacity() int { return len(c.slots) }

// GetOrCreate returns the cached handle for the key hash, or
// materializes a new one and stores it, evicting whatever occupied the
// slot.
//
// A slot-hash match is treated as a key match with no byte
// verification. A 64-bit hash collision between different keys
// therefore yields a wrong-but-valid key handle, never a crash; this
// precision trade-off is accepted for O(1) hit paths on short-lived
// key strings.
func (c *Cache) GetOrCreate(owner interpstate.ContextID, key []byte, hash uint64, materialize func([]byte) (interpstate.Handle, error)) (interpstate.Handle, error) {
	if c.closed.Load() {
		return interpstate.Handle{}, errors.TornDown(errors.PhaseKeyCache, uint64(c.owner))
	}
	if owner != c.owner {
		err := errors.CrossContext(errors.PhaseKeyCache, uint64(c.owner), uint64(owner))
		if interpstate.Strict() {
			panic(err)
		}
		return interpstate.Handle{}, err
	}

	idx := hash & c.mask

	c.mu.Lock()
	s := c.slots[idx]
	c.mu.Unlock()

	if s.live && s.hash == hash && s.handle.OwnedBy(owner) {
		c.hits.Add(1)
		return s.handle, nil
	}

	h, err := materialize(key)
	if err != nil {
		return interpstate.Handle{}, errors.Wrap(errors.PhaseKeyCache, errors.KindResolution, err, "materialize key")
	}
	if !h.OwnedBy(owner) {
		err := errors.CrossContext(errors.PhaseKeyCache, uint64(owner), uint64(h.Owner()))
		if interpstate.Strict() {
			panic(err)
		}
		return interpstate.Handle{}, err
	}

	c.mu.Lock()
	prev := c.slots[idx]
	c.slots[idx] = slot{hash: hash, handle: h, live: true}
	c.mu.Unlock()

	if prev.live {
		c.evictions.Add(1)
		if c.release != nil {
			c.release(prev.handle)
		}
	}
	c.misses.Add(1)
	return h, nil
}

// Peek returns the handle currently occupying the slot for hash, if its
// stored hash matches. It never materializes.
func (c *Cache) Peek(hash uint64) (interpstate.Handle, bool) {
	if c.closed.Load() {
		return interpstate.Handle{}, false
	}
	c.mu.Lock()
	s := c.slots[hash&c.mask]
	c.mu.Unlock()
	if !s.live || s.hash != hash {
		return interpstate.Handle{}, false
	}
	return s.handle, true
}

// Stats returns a snapshot of the traffic counters.
func (c *Cache) Stats() Stats {
	return Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
	}
}

// Close releases every resident handle through the release hook, frees
// the backing region through the owning context's binding, and rejects
// further operations.
func (c *Cache) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	var dropped []interpstate.Handle
	c.mu.Lock()
	for i := range c.slots {
		if c.slots[i].live && c.release != nil {
			dropped = append(dropped, c.slots[i].handle)
		}
		c.slots[i] = slot{}
	}
	c.mu.Unlock()
	for _, h := range dropped {
		c.release(h)
	}
	return c.binding.Free(c.owner, c.region, c.size, 8)
}
