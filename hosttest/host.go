// Package hosttest provides an in-memory HostRuntime for tests. Each
// Host owns a private object table and a private heap, so two Hosts
// model two isolated runtime contexts. Every ABI call is counted, and
// lookups can be made to fail to exercise atomic-initialization paths.
package hosttest

import (
	"fmt"
	"sync"
	"sync/atomic"

	interpstate "github.com/hyperjson/interpstate"
	"github.com/hyperjson/interpstate/alloc"
)

// Kind classifies an object table entry.
type Kind uint8

const (
	KindSingleton Kind = iota
	KindType
	KindString
	KindException
)

type entry struct {
	payload string
	kind    Kind
	valid   bool
}

var singletonNames = []string{"true", "false", "none", "default", "option", "empty-string"}

// Counters holds per-host ABI call counts.
type Counters struct {
	Singletons uint64
	Lookups    uint64
	Interns    uint64
	NewStrings uint64
	Exceptions uint64
	Releases   uint64
}

// Host is an in-memory host runtime.
type Host struct {
	mu         sync.Mutex
	entries    []entry
	freeList   []interpstate.Ref
	singletons map[string]interpstate.Ref
	types      map[string]interpstate.Ref
	interned   map[string]interpstate.Ref
	closed     bool

	// FailLookup makes LookupType fail for "module.member" keys.
	// FailSingleton does the same for singleton names.
	FailLookup    map[string]bool
	FailSingleton map[string]bool

	singletonCalls atomic.Uint64
	lookupCalls    atomic.Uint64
	internCalls    atomic.Uint64
	newStringCalls atomic.Uint64
	exceptionCalls atomic.Uint64
	releases       atomic.Uint64

	counting *alloc.Counting
}

// New creates a host with its singleton values pre-created.
func New() *Host {
	h := &Host{
		entries:       make([]entry, 0, 64),
		freeList:      make([]interpstate.Ref, 0, 16),
		singletons:    make(map[string]interpstate.Ref, len(singletonNames)),
		types:         make(map[string]interpstate.Ref, 32),
		interned:      make(map[string]interpstate.Ref, 32),
		FailLookup:    make(map[string]bool),
		FailSingleton: make(map[string]bool),
		counting:      alloc.NewCounting(&bumpAllocator{next: heapBase}),
	}
	for _, name := range singletonNames {
		h.singletons[name] = h.create(KindSingleton, name)
	}
	return h
}

func (h *Host) create(kind Kind, payload string) interpstate.Ref {
	e := entry{kind: kind, payload: payload, valid: true}
	if n := len(h.freeList); n > 0 {
		ref := h.freeList[n-1]
		h.freeList = h.freeList[:n-1]
		h.entries[ref-1] = e
		return ref
	}
	h.entries = append(h.entries, e)
	return interpstate.Ref(len(h.entries))
}

// Singleton implements interpstate.HostRuntime.
func (h *Host) Singleton(name string) (interpstate.Ref, error) {
	h.singletonCalls.Add(1)
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return 0, fmt.Errorf("hosttest: host closed")
	}
	if h.FailSingleton[name] {
		return 0, fmt.Errorf("hosttest: singleton %q unavailable", name)
	}
	ref, ok := h.singletons[name]
	if !ok {
		return 0, fmt.Errorf("hosttest: unknown singleton %q", name)
	}
	return ref, nil
}

// LookupType implements interpstate.HostRuntime. Results are memoized
// per host, so repeated lookups of the same member return the same ref.
func (h *Host) LookupType(module, member string) (interpstate.Ref, error) {
	h.lookupCalls.Add(1)
	key := module + "." + member
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return 0, fmt.Errorf("hosttest: host closed")
	}
	if h.FailLookup[key] {
		return 0, fmt.Errorf("hosttest: module %q has no member %q", module, member)
	}
	if ref, ok := h.types[key]; ok {
		return ref, nil
	}
	ref := h.create(KindType, key)
	h.types[key] = ref
	return ref, nil
}

// InternString implements interpstate.HostRuntime.
func (h *Host) InternString(s string) (interpstate.Ref, error) {
	h.internCalls.Add(1)
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return 0, fmt.Errorf("hosttest: host closed")
	}
	if ref, ok := h.interned[s]; ok {
		return ref, nil
	}
	ref := h.create(KindString, s)
	h.interned[s] = ref
	return ref, nil
}

// NewString implements interpstate.HostRuntime. Every call materializes
// a fresh object and charges the byte payload to the host's allocator.
func (h *Host) NewString(b []byte) (interpstate.Ref, error) {
	h.newStringCalls.Add(1)
	if _, err := h.counting.Alloc(uint32(len(b)), 1); err != nil {
		return 0, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return 0, fmt.Errorf("hosttest: host closed")
	}
	return h.create(KindString, string(b)), nil
}

// NewException implements interpstate.HostRuntime.
func (h *Host) NewException(name string, base interpstate.Ref) (interpstate.Ref, error) {
	h.exceptionCalls.Add(1)
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return 0, fmt.Errorf("hosttest: host closed")
	}
	if !h.validLocked(base) {
		return 0, fmt.Errorf("hosttest: invalid exception base ref %d", base)
	}
	return h.create(KindException, name), nil
}

// Allocator implements interpstate.HostRuntime. The returned allocator
// is private to this host and instrumented.
func (h *Host) Allocator() interpstate.Allocator { return h.counting }

// Counting exposes the instrumented allocator for assertions.
func (h *Host) Counting() *alloc.Counting { return h.counting }

// Release implements interpstate.HostRuntime. String and exception
// entries return to the free list; singleton and type entries are
// host-owned and survive release.
func (h *Host) Release(ref interpstate.Ref) {
	h.releases.Add(1)
	h.mu.Lock()
	defer h.mu.Unlock()
	if ref == 0 || int(ref) > len(h.entries) {
		return
	}
	e := &h.entries[ref-1]
	if !e.valid || e.kind == KindSingleton || e.kind == KindType {
		return
	}
	if e.kind == KindString {
		delete(h.interned, e.payload)
	}
	e.valid = false
	e.payload = ""
	h.freeList = append(h.freeList, ref)
}

// Close implements interpstate.HostRuntime.
func (h *Host) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	h.entries = nil
	h.freeList = nil
	return nil
}

// Value returns the payload stored for a ref.
func (h *Host) Value(ref interpstate.Ref) (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.validLocked(ref) {
		return "", false
	}
	return h.entries[ref-1].payload, true
}

// Live returns the number of valid entries.
func (h *Host) Live() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, e := range h.entries {
		if e.valid {
			n++
		}
	}
	return n
}

// Counters returns a snapshot of the ABI call counts.
func (h *Host) Counters() Counters {
	return Counters{
		Singletons: h.singletonCalls.Load(),
		Lookups:    h.lookupCalls.Load(),
		Interns:    h.internCalls.Load(),
		NewStrings: h.newStringCalls.Load(),
		Exceptions: h.exceptionCalls.Load(),
		Releases:   h.releases.Load(),
	}
}

func (h *Host) validLocked(ref interpstate.Ref) bool {
	return ref != 0 && int(ref) <= len(h.entries) && h.entries[ref-1].valid
}

// heapBase keeps returned pointers nonzero.
const heapBase = 0x1000

// bumpAllocator is a trivial private heap. Free is a no-op; Realloc
// always moves.
type bumpAllocator struct {
	mu   sync.Mutex
	next uint32
}

func (b *bumpAllocator) Alloc(size, align uint32) (uint32, error) {
	if align == 0 {
		align = 1
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	ptr := (b.next + align - 1) &^ (align - 1)
	b.next = ptr + size
	return ptr, nil
}

func (b *bumpAllocator) Realloc(ptr, oldSize, align, newSize uint32) (uint32, error) {
	return b.Alloc(newSize, align)
}

func (b *bumpAllocator) Free(ptr, size, align uint32) {}
