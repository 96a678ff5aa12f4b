package interpstate

import "sync/atomic"

// Ref is a raw reference issued by a host runtime's embedding ABI.
// A Ref is only meaningful inside the context that issued it; Ref 0 is
// reserved and always invalid.
type Ref uint32

// ContextID identifies one isolated runtime context. IDs are
// process-unique, allocated from a monotonic counter, and never reused.
// ID 0 is reserved and always invalid.
type ContextID uint64

// Handle is a context-tagged reference to a runtime-owned object or
// type. Handles carry their owning ContextID so that two handles with
// equal raw refs but different owners never compare equal, and every
// operation can reject a handle presented under the wrong context.
type Handle struct {
	owner ContextID
	ref   Ref
}

// NewHandle tags a raw ref with its owning context.
func NewHandle(owner ContextID, ref Ref) Handle {
	return Handle{owner: owner, ref: ref}
}

// Owner returns the context that issued the handle.
func (h Handle) Owner() ContextID { return h.owner }

// Ref returns the raw runtime-local reference. The result must only be
// passed back to the host ABI of the owning context.
func (h Handle) Ref() Ref { return h.ref }

// Valid reports whether the handle carries both an owner and a ref.
func (h Handle) Valid() bool { return h.owner != 0 && h.ref != 0 }

// OwnedBy reports whether the handle belongs to the given context.
func (h Handle) OwnedBy(id ContextID) bool { return h.owner == id }

// Allocator allocates memory in a context's heap. Implementations are
// supplied by the host runtime's context-scoped memory API; this module
// never falls back to a process-wide allocator.
type Allocator interface {
	Alloc(size, align uint32) (uint32, error)
	Realloc(ptr, oldSize, align, newSize uint32) (uint32, error)
	Free(ptr, size, align uint32)
}

// HostRuntime is the embedding ABI of one isolated runtime context.
// All Refs returned by a HostRuntime are local to that context.
type HostRuntime interface {
	// Singleton returns the ref of a runtime-owned singleton value
	// (true, false, none, default, option, empty-string).
	Singleton(name string) (Ref, error)

	// LookupType resolves a runtime-owned type by module and member name.
	LookupType(module, member string) (Ref, error)

	// InternString returns a ref to the interned form of s. Repeated
	// calls with the same string may return the same ref.
	InternString(s string) (Ref, error)

	// NewString materializes a new string object from raw bytes.
	NewString(b []byte) (Ref, error)

	// NewException creates an exception class derived from base.
	NewException(name string, base Ref) (Ref, error)

	// Allocator returns the context's allocator function set.
	Allocator() Allocator

	// Release drops a ref obtained from this host.
	Release(Ref)

	// Close tears down the host binding itself. Callers own the host
	// lifetime; context teardown does not call Close.
	Close() error
}

// Capabilities describes what this layer declares to the host at module
// load. The declaration is a correctness contract: MultiContext must
// match the thread-safety properties actually implemented.
type Capabilities struct {
	MultiContext bool
}

// DeclareCapabilities reports the capabilities of this layer. Every
// piece of handle-bearing state is partitioned by ContextID, so
// concurrent instantiation in multiple contexts is supported.
func DeclareCapabilities() Capabilities {
	return Capabilities{MultiContext: true}
}

var strict atomic.Bool

// SetStrict toggles strict violation handling. When strict, presenting
// a handle or allocation request under the wrong or dead context panics
// instead of returning an error. Non-strict mode returns the error and
// leaves continuing to the caller; doing so after a cross-context
// violation risks corrupting the host runtime.
func SetStrict(v bool) { strict.Store(v) }

// Strict reports whether strict violation handling is enabled.
func Strict() bool { return strict.Load() }
