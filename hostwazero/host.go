// Package hostwazero adapts a wazero guest module instance to the
// interpstate.HostRuntime contract. One attached Host corresponds to
// one isolated context: the guest instance owns the object space (its
// linear memory) and the allocator (its exported realloc function), so
// two attached instances can never observe each other's refs.
package hostwazero

import (
	"context"
	"fmt"
	"sync"

	"github.com/tetratelabs/wazero/api"

	interpstate "github.com/hyperjson/interpstate"
	"github.com/hyperjson/interpstate/alloc"
	"github.com/hyperjson/interpstate/errors"
	"github.com/hyperjson/interpstate/typeref"
)

// allocatorNames are tried in order when Config.AllocExport is empty.
var allocatorNames = []string{"cabi_realloc", "canonical_abi_realloc", "alloc", "malloc"}

// Config controls how a guest module is attached.
type Config struct {
	// MemoryExport is the exported memory name. Default "memory".
	MemoryExport string

	// AllocExport is the exported allocator function, with realloc
	// semantics (ptr, old_size, align, new_size) -> ptr. When empty the
	// adapter searches the conventional names.
	AllocExport string

	// Manifest overrides the required export surface. Nil uses
	// DefaultManifest.
	Manifest []ManifestEntry
}

func (c *Config) memoryExport() string {
	if c != nil && c.MemoryExport != "" {
		return c.MemoryExport
	}
	return "memory"
}

// Host implements interpstate.HostRuntime over one guest instance.
type Host struct {
	ctx     context.Context
	mod     api.Module
	mem     api.Memory
	realloc api.Function

	singletons map[string]interpstate.Ref
	types      map[string]interpstate.Ref

	mu       sync.Mutex
	interned map[string]interpstate.Ref
	closed   bool
}

// Capabilities reports the adapter's concurrency contract to the host.
// Each Host binds exactly one guest instance, so multi-context loading
// is supported.
func Capabilities() interpstate.Capabilities {
	return interpstate.DeclareCapabilities()
}

// Verify checks that the guest module exports the full ABI surface
// required by the manifest. It returns a MissingExportsError listing
// every absent export, so a host can refuse loading up front.
func Verify(mod api.Module, cfg *Config) error {
	manifest := manifestOf(cfg)
	if err := validateManifest(manifest); err != nil {
		return err
	}

	var missing []string
	if mod.ExportedMemory(cfg.memoryExport()) == nil {
		missing = append(missing, cfg.memoryExport())
	}
	if _, name := findAllocator(mod, cfg); name == "" {
		missing = append(missing, "allocator ("+allocatorSpec(cfg)+")")
	}
	for _, e := range manifest {
		if mod.ExportedGlobal(e.Export) == nil {
			missing = append(missing, e.Export)
		}
	}
	if len(missing) > 0 {
		return &errors.MissingExportsError{Exports: missing}
	}
	return nil
}

// Attach verifies and binds a guest instance. ctx is retained for
// allocator calls made on behalf of the attached context.
func Attach(ctx context.Context, mod api.Module, cfg *Config) (*Host, error) {
	if err := Verify(mod, cfg); err != nil {
		return nil, err
	}

	realloc, _ := findAllocator(mod, cfg)

	h := &Host{
		ctx:        ctx,
		mod:        mod,
		mem:        mod.ExportedMemory(cfg.memoryExport()),
		realloc:    realloc,
		singletons: make(map[string]interpstate.Ref),
		types:      make(map[string]interpstate.Ref),
		interned:   make(map[string]interpstate.Ref),
	}

	for _, e := range manifestOf(cfg) {
		g := mod.ExportedGlobal(e.Export)
		ref := interpstate.Ref(uint32(g.Get()))
		if ref == 0 {
			return nil, errors.New(errors.PhaseHost, errors.KindResolution).
				Name(e.Name).
				Detail("guest export %q carries a null ref", e.Export).
				Build()
		}
		switch e.Kind {
		case typeref.KindSingleton:
			h.singletons[e.Name] = ref
		case typeref.KindType:
			h.types[e.Export[len("type:"):]] = ref
		}
	}

	return h, nil
}

func manifestOf(cfg *Config) []ManifestEntry {
	if cfg != nil && cfg.Manifest != nil {
		return cfg.Manifest
	}
	return DefaultManifest()
}

func allocatorSpec(cfg *Config) string {
	if cfg != nil && cfg.AllocExport != "" {
		return cfg.AllocExport
	}
	return "cabi_realloc"
}

func findAllocator(mod api.Module, cfg *Config) (api.Function, string) {
	if cfg != nil && cfg.AllocExport != "" {
		if fn := mod.ExportedFunction(cfg.AllocExport); fn != nil {
			return fn, cfg.AllocExport
		}
		return nil, ""
	}
	for _, name := range allocatorNames {
		if fn := mod.ExportedFunction(name); fn != nil {
			return fn, name
		}
	}
	return nil, ""
}

// Singleton implements interpstate.HostRuntime.
func (h *Host) Singleton(name string) (interpstate.Ref, error) {
	ref, ok := h.singletons[name]
	if !ok {
		return 0, fmt.Errorf("hostwazero: unknown singleton %q", name)
	}
	return ref, nil
}

// LookupType implements interpstate.HostRuntime.
func (h *Host) LookupType(module, member string) (interpstate.Ref, error) {
	ref, ok := h.types[module+"."+member]
	if !ok {
		return 0, fmt.Errorf("hostwazero: module %q has no member %q", module, member)
	}
	return ref, nil
}

// InternString implements interpstate.HostRuntime. Interned strings are
// memoized per instance so repeated interning returns the same guest
// address.
func (h *Host) InternString(s string) (interpstate.Ref, error) {
	h.mu.Lock()
	if ref, ok := h.interned[s]; ok {
		h.mu.Unlock()
		return ref, nil
	}
	h.mu.Unlock()

	ref, err := h.writeString([]byte(s))
	if err != nil {
		return 0, err
	}

	h.mu.Lock()
	h.interned[s] = ref
	h.mu.Unlock()
	return ref, nil
}

// NewString implements interpstate.HostRuntime. The bytes are copied
// into guest memory allocated by the guest's own allocator.
func (h *Host) NewString(b []byte) (interpstate.Ref, error) {
	return h.writeString(b)
}

// NewException implements interpstate.HostRuntime. The exception class
// is represented by its materialized name; the base ref only needs to
// be valid.
func (h *Host) NewException(name string, base interpstate.Ref) (interpstate.Ref, error) {
	if base == 0 {
		return 0, fmt.Errorf("hostwazero: null exception base for %q", name)
	}
	return h.writeString([]byte(name))
}

func (h *Host) writeString(b []byte) (interpstate.Ref, error) {
	h.mu.Lock()
	closed := h.closed
	h.mu.Unlock()
	if closed {
		return 0, fmt.Errorf("hostwazero: instance closed")
	}

	size := uint32(len(b))
	if size == 0 {
		size = 1
	}

	a := h.Allocator()
	pending := alloc.NewAllocationList()
	defer pending.Release()

	ptr, err := a.Alloc(size, 1)
	if err != nil {
		return 0, err
	}
	pending.Add(ptr, size, 1)

	if len(b) > 0 && !h.mem.Write(ptr, b) {
		pending.Free(a)
		return 0, fmt.Errorf("hostwazero: write at %d exceeds guest memory", ptr)
	}
	pending.Reset()
	return interpstate.Ref(ptr), nil
}

// Allocator implements interpstate.HostRuntime. The returned allocator
// calls the guest's exported realloc.
func (h *Host) Allocator() interpstate.Allocator {
	return &guestAllocator{ctx: h.ctx, fn: h.realloc}
}

// Release implements interpstate.HostRuntime. Guest-side refs are
// reclaimed with the instance; individual release is a no-op because
// the guest allocator requires the allocation size, which raw refs do
// not carry.
func (h *Host) Release(interpstate.Ref) {}

// Close implements interpstate.HostRuntime.
func (h *Host) Close() error {
	h.mu.Lock()
	h.closed = true
	h.mu.Unlock()
	return h.mod.Close(h.ctx)
}

// guestAllocator adapts the guest's realloc export to
// interpstate.Allocator.
type guestAllocator struct {
	ctx context.Context
	fn  api.Function
}

func (a *guestAllocator) Alloc(size, align uint32) (uint32, error) {
	return a.call(0, 0, align, size)
}

func (a *guestAllocator) Realloc(ptr, oldSize, align, newSize uint32) (uint32, error) {
	return a.call(ptr, oldSize, align, newSize)
}

func (a *guestAllocator) Free(ptr, size, align uint32) {
	_, _ = a.fn.Call(a.ctx, uint64(ptr), uint64(size), uint64(align), 0)
}

func (a *guestAllocator) call(ptr, oldSize, align, newSize uint32) (uint32, error) {
	results, err := a.fn.Call(a.ctx, uint64(ptr), uint64(oldSize), uint64(align), uint64(newSize))
	if err != nil {
		return 0, fmt.Errorf("guest allocation failed: %w", err)
	}
	if len(results) == 0 {
		return 0, fmt.Errorf("guest allocator returned no result")
	}
	p := uint32(results[0])
	if p == 0 {
		return 0, fmt.Errorf("guest allocator returned null for %d bytes", newSize)
	}
	return p, nil
}
