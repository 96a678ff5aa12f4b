package interp

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	interpstate "github.com/hyperjson/interpstate"
	"github.com/hyperjson/interpstate/errors"
)

// nextContextID allocates process-unique context identities. IDs start
// at 1; 0 stays invalid.
var nextContextID atomic.Uint64

// Registry tracks every context the host has announced. Torn-down
// contexts remain as tombstones so a stale identity fails fast instead
// of silently reinitializing.
type Registry struct {
	mu       sync.RWMutex
	contexts map[interpstate.ContextID]*Context
	log      *zap.Logger
}

// NewRegistry creates an empty context registry.
func NewRegistry() *Registry {
	return &Registry{
		contexts: make(map[interpstate.ContextID]*Context),
		log:      interpstate.Logger(),
	}
}

// OnContextCreate is the host lifecycle hook for context creation. It
// mints a fresh identity and registers the context; initialization is
// deferred to the first EnsureInitialized.
func (r *Registry) OnContextCreate(host interpstate.HostRuntime) (*Context, error) {
	if host == nil {
		return nil, errors.InvalidInput(errors.PhaseHost, "nil host runtime")
	}

	c := &Context{
		id:   interpstate.ContextID(nextContextID.Add(1)),
		host: host,
		log:  r.log,
	}

	r.mu.Lock()
	r.contexts[c.id] = c
	r.mu.Unlock()

	r.log.Debug("context registered", zap.Uint64("context", uint64(c.id)))
	return c, nil
}

// OnContextDestroy is the host lifecycle hook for context destruction.
// The context is torn down and left in the registry as a tombstone.
func (r *Registry) OnContextDestroy(c *Context) error {
	if c == nil {
		return errors.InvalidInput(errors.PhaseTeardown, "nil context")
	}

	r.mu.RLock()
	_, known := r.contexts[c.id]
	r.mu.RUnlock()
	if !known {
		return errors.InvalidInput(errors.PhaseTeardown, "context not registered")
	}

	return c.Teardown()
}

// Get returns the context for an identity, including tombstones.
func (r *Registry) Get(id interpstate.ContextID) (*Context, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.contexts[id]
	return c, ok
}

// Live returns the number of contexts not yet torn down.
func (r *Registry) Live() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, c := range r.contexts {
		if c.State() != StateTornDown {
			n++
		}
	}
	return n
}

// Each calls fn for every registered context, tombstones included,
// until fn returns false.
func (r *Registry) Each(fn func(*Context) bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.contexts {
		if !fn(c) {
			return
		}
	}
}
