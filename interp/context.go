// Package interp manages the lifecycle of isolated runtime contexts.
// Each live context owns exactly one reference bundle, one key
// interning cache and one allocator binding, initialized exactly once
// even under concurrent first-use, and invalidated exactly once at
// teardown.
package interp

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	interpstate "github.com/hyperjson/interpstate"
	"github.com/hyperjson/interpstate/alloc"
	"github.com/hyperjson/interpstate/errors"
	"github.com/hyperjson/interpstate/keycache"
	"github.com/hyperjson/interpstate/typeref"
)

// State is the per-context initialization state.
type State uint32

const (
	StateUninitialized State = iota
	StateInitializing
	StateReady
	StateTornDown
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateTornDown:
		return "torn_down"
	default:
		return "unknown"
	}
}

// Context is one isolated runtime context tracked by this layer. All
// handle-bearing state hangs off the context; nothing is shared across
// contexts.
type Context struct {
	id   interpstate.ContextID
	host interpstate.HostRuntime

	// state transitions Uninitialized -> Initializing -> Ready ->
	// TornDown; a failed initialization reverts to Uninitialized.
	// The store of StateReady publishes refs/keys/binding.
	state  atomic.Uint32
	initMu sync.Mutex

	refs    *typeref.Bundle
	keys    *keycache.Cache
	binding *alloc.Binding

	log *zap.Logger
}

// ID returns the context identity. Identities are process-unique and
// never reused.
func (c *Context) ID() interpstate.ContextID { return c.id }

// State returns the current initialization state.
func (c *Context) State() State { return State(c.state.Load()) }

// Host returns the context's host runtime binding.
func (c *Context) Host() interpstate.HostRuntime { return c.host }

// EnsureInitialized brings the context to Ready. It is idempotent and
// safe under concurrent first-use: exactly one caller performs the
// work, the rest wait on the context's own mutex, bounded only by that
// work. After teardown it fails fast; the identity is not reusable.
//
// On failure nothing is published and the context reverts to
// Uninitialized, so retrying after host-side correction is legal.
func (c *Context) EnsureInitialized() error {
	switch State(c.state.Load()) {
	case StateReady:
		return nil
	case StateTornDown:
		return errors.TornDown(errors.PhaseInit, uint64(c.id))
	}

	c.initMu.Lock()
	defer c.initMu.Unlock()

	switch State(c.state.Load()) {
	case StateReady:
		return nil
	case StateTornDown:
		return errors.TornDown(errors.PhaseInit, uint64(c.id))
	}

	c.state.Store(uint32(StateInitializing))

	// Order matters: allocator binding first, then type and singleton
	// resolution, then key cache allocation through the binding.
	binding := alloc.NewBinding(c.id, c.host.Allocator())

	refs, err := typeref.Resolve(c.host, c.id)
	if err != nil {
		c.state.Store(uint32(StateUninitialized))
		c.log.Warn("context initialization failed",
			zap.Uint64("context", uint64(c.id)),
			zap.Error(err))
		return err
	}

	keys, err := keycache.New(c.id, keycache.DefaultCapacity, binding, func(h interpstate.Handle) {
		c.host.Release(h.Ref())
	})
	if err != nil {
		refs.Release(c.host)
		c.state.Store(uint32(StateUninitialized))
		c.log.Warn("context initialization failed",
			zap.Uint64("context", uint64(c.id)),
			zap.Error(err))
		return err
	}

	c.binding = binding
	c.refs = refs
	c.keys = keys
	c.state.Store(uint32(StateReady))

	c.log.Info("context initialized",
		zap.Uint64("context", uint64(c.id)),
		zap.Int("bundle_entries", refs.Len()),
		zap.Int("key_slots", keys.Capacity()))
	return nil
}

// Teardown invalidates the reference bundle, releases the key cache's
// resident handles and backing storage, invalidates the allocator
// binding, and marks the identity dead. Idempotent; a second call is a
// no-op.
func (c *Context) Teardown() error {
	c.initMu.Lock()
	defer c.initMu.Unlock()

	st := State(c.state.Load())
	if st == StateTornDown {
		return nil
	}

	if st == StateReady {
		c.refs.Release(c.host)
		if err := c.keys.Close(); err != nil {
			c.log.Warn("key cache close failed",
				zap.Uint64("context", uint64(c.id)),
				zap.Error(err))
		}
		c.binding.Invalidate()
	}

	c.state.Store(uint32(StateTornDown))
	c.log.Info("context torn down", zap.Uint64("context", uint64(c.id)))
	return nil
}

// Refs returns the context's reference bundle. Fails before Ready and
// after teardown.
func (c *Context) Refs() (*typeref.Bundle, error) {
	if err := c.ready(errors.PhaseResolve); err != nil {
		return nil, err
	}
	return c.refs, nil
}

// Keys returns the context's key interning cache.
func (c *Context) Keys() (*keycache.Cache, error) {
	if err := c.ready(errors.PhaseKeyCache); err != nil {
		return nil, err
	}
	return c.keys, nil
}

// Alloc returns the context's allocator binding.
func (c *Context) Alloc() (*alloc.Binding, error) {
	if err := c.ready(errors.PhaseAlloc); err != nil {
		return nil, err
	}
	return c.binding, nil
}

// Resolve is shorthand for Refs().Lookup(name).
func (c *Context) Resolve(name string) (interpstate.Handle, error) {
	refs, err := c.Refs()
	if err != nil {
		return interpstate.Handle{}, err
	}
	return refs.Lookup(name)
}

// InternKey interns a decoded object key through the context's key
// cache, materializing via the host on a miss.
func (c *Context) InternKey(key []byte) (interpstate.Handle, error) {
	keys, err := c.Keys()
	if err != nil {
		return interpstate.Handle{}, err
	}
	return keys.GetOrCreate(c.id, key, keycache.HashKey(key), func(b []byte) (interpstate.Handle, error) {
		ref, err := c.host.NewString(b)
		if err != nil {
			return interpstate.Handle{}, err
		}
		return interpstate.NewHandle(c.id, ref), nil
	})
}

func (c *Context) ready(phase errors.Phase) error {
	switch State(c.state.Load()) {
	case StateReady:
		return nil
	case StateTornDown:
		return errors.TornDown(phase, uint64(c.id))
	default:
		return errors.NotInitialized(phase, uint64(c.id))
	}
}
