// Package typeref resolves and caches handles to runtime-owned types,
// singleton values, interned name strings and exception classes. One
// Bundle exists per live context; it is created during that context's
// first initialization and immutable after publication, so concurrent
// readers need no locking.
package typeref

import (
	interpstate "github.com/hyperjson/interpstate"
	"github.com/hyperjson/interpstate/errors"
)

// Bundle is the full set of handles the codec algorithms need, scoped
// to one context. All handles carry the owning ContextID.
type Bundle struct {
	owner  interpstate.ContextID
	byName map[string]interpstate.Handle
}

// Resolve builds a Bundle for the given context by resolving every
// entry of the fixed name set through the host. Resolution is atomic:
// on any failure all refs resolved so far are released and no partial
// bundle is returned.
func Resolve(host interpstate.HostRuntime, owner interpstate.ContextID) (*Bundle, error) {
	b := &Bundle{
		owner:  owner,
		byName: make(map[string]interpstate.Handle, len(entries)),
	}

	for _, e := range entries {
		ref, err := resolveEntry(host, b, e)
		if err != nil {
			b.Release(host)
			return nil, errors.Resolution(uint64(owner), e.Name, err)
		}
		b.byName[e.Name] = interpstate.NewHandle(owner, ref)
	}

	return b, nil
}

func resolveEntry(host interpstate.HostRuntime, b *Bundle, e Entry) (interpstate.Ref, error) {
	switch e.Kind {
	case KindSingleton:
		return host.Singleton(e.Name)
	case KindType:
		return host.LookupType(e.Module, e.Member)
	case KindIntern:
		return host.InternString(e.Member)
	case KindException:
		base, err := host.LookupType(e.Module, e.Member)
		if err != nil {
			return 0, err
		}
		return host.NewException(e.Base, base)
	default:
		return 0, errors.InvalidInput(errors.PhaseInit, "unknown entry kind")
	}
}

// Owner returns the context the bundle belongs to.
func (b *Bundle) Owner() interpstate.ContextID { return b.owner }

// Lookup returns the cached handle for name. It never returns a handle
// belonging to a different context; names outside the fixed set fail
// with an unknown_name error.
func (b *Bundle) Lookup(name string) (interpstate.Handle, error) {
	h, ok := b.byName[name]
	if !ok {
		return interpstate.Handle{}, errors.UnknownName(uint64(b.owner), name)
	}
	return h, nil
}

// Len returns the number of resolved entries.
func (b *Bundle) Len() int { return len(b.byName) }

// Release drops every resolved ref back to the host. Called at context
// teardown and on the atomic-failure path during Resolve.
func (b *Bundle) Release(host interpstate.HostRuntime) {
	for name, h := range b.byName {
		host.Release(h.Ref())
		delete(b.byName, name)
	}
}

// Typed accessors for the hot-path entries. The map is immutable after
// Resolve, so these are lock-free.

func (b *Bundle) True() interpstate.Handle        { return b.byName["true"] }
func (b *Bundle) False() interpstate.Handle       { return b.byName["false"] }
func (b *Bundle) None() interpstate.Handle        { return b.byName["none"] }
func (b *Bundle) EmptyString() interpstate.Handle { return b.byName["empty-string"] }
func (b *Bundle) StrType() interpstate.Handle     { return b.byName["str-type"] }
func (b *Bundle) DictType() interpstate.Handle    { return b.byName["dict-type"] }
func (b *Bundle) ListType() interpstate.Handle    { return b.byName["list-type"] }
func (b *Bundle) EncodeError() interpstate.Handle { return b.byName["encode-error"] }
func (b *Bundle) DecodeError() interpstate.Handle { return b.byName["decode-error"] }
