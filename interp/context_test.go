package interp

import (
	stderrors "errors"
	"fmt"
	"sync"
	"testing"

	"github.com/hyperjson/interpstate/errors"
	"github.com/hyperjson/interpstate/hosttest"
)

func newReadyContext(t *testing.T) (*Context, *hosttest.Host) {
	t.Helper()
	host := hosttest.New()
	c, err := NewRegistry().OnContextCreate(host)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := c.EnsureInitialized(); err != nil {
		t.Fatalf("init: %v", err)
	}
	return c, host
}

func TestEnsureInitialized_Lifecycle(t *testing.T) {
	host := hosttest.New()
	c, err := NewRegistry().OnContextCreate(host)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if c.State() != StateUninitialized {
		t.Fatalf("fresh context state = %v", c.State())
	}
	if _, err := c.Refs(); !stderrors.Is(err, &errors.Error{Kind: errors.KindNotInitialized}) {
		t.Fatalf("refs before init: %v", err)
	}

	if err := c.EnsureInitialized(); err != nil {
		t.Fatalf("init: %v", err)
	}
	if c.State() != StateReady {
		t.Fatalf("state after init = %v", c.State())
	}

	refs, err := c.Refs()
	if err != nil {
		t.Fatalf("refs: %v", err)
	}
	if refs.Len() == 0 {
		t.Fatal("empty bundle after init")
	}
	if _, err := c.Keys(); err != nil {
		t.Fatalf("keys: %v", err)
	}
	if _, err := c.Alloc(); err != nil {
		t.Fatalf("alloc: %v", err)
	}
}

func TestEnsureInitialized_ConcurrentOnce(t *testing.T) {
	// Reference traffic of one serial initialization.
	serialHost := hosttest.New()
	cs, err := NewRegistry().OnContextCreate(serialHost)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := cs.EnsureInitialized(); err != nil {
		t.Fatalf("serial init: %v", err)
	}
	want := serialHost.Counters()

	host := hosttest.New()
	c, err := NewRegistry().OnContextCreate(host)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	const goroutines = 32
	var wg sync.WaitGroup
	errs := make([]error, goroutines)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = c.EnsureInitialized()
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("goroutine %d: %v", i, err)
		}
	}

	got := host.Counters()
	if got != want {
		t.Fatalf("concurrent init performed different host traffic than one serial init:\n got %+v\nwant %+v", got, want)
	}
}

func TestEnsureInitialized_FailureIsRetryable(t *testing.T) {
	host := hosttest.New()
	host.FailLookup["datetime.datetime"] = true

	c, err := NewRegistry().OnContextCreate(host)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := c.EnsureInitialized(); err == nil {
		t.Fatal("init should fail while the lookup fails")
	}
	if c.State() != StateUninitialized {
		t.Fatalf("failed init left state %v, want uninitialized", c.State())
	}
	if _, err := c.Refs(); !stderrors.Is(err, &errors.Error{Kind: errors.KindNotInitialized}) {
		t.Fatalf("refs after failed init: %v", err)
	}

	// Host-side correction makes the same context initializable.
	delete(host.FailLookup, "datetime.datetime")
	if err := c.EnsureInitialized(); err != nil {
		t.Fatalf("retry after correction: %v", err)
	}
	if c.State() != StateReady {
		t.Fatalf("state after retry = %v", c.State())
	}
}

func TestTeardown_FailFastAndIdempotent(t *testing.T) {
	c, host := newReadyContext(t)

	if err := c.Teardown(); err != nil {
		t.Fatalf("teardown: %v", err)
	}
	if c.State() != StateTornDown {
		t.Fatalf("state = %v", c.State())
	}

	if err := c.EnsureInitialized(); !stderrors.Is(err, &errors.Error{Kind: errors.KindTornDown}) {
		t.Fatalf("init after teardown: %v", err)
	}
	if _, err := c.Resolve("true"); !stderrors.Is(err, &errors.Error{Kind: errors.KindTornDown}) {
		t.Fatalf("resolve after teardown: %v", err)
	}
	if _, err := c.InternKey([]byte("id")); !stderrors.Is(err, &errors.Error{Kind: errors.KindTornDown}) {
		t.Fatalf("intern after teardown: %v", err)
	}

	releases := host.Counters().Releases
	if releases == 0 {
		t.Fatal("teardown should release bundle refs")
	}

	// Second teardown is a no-op.
	if err := c.Teardown(); err != nil {
		t.Fatalf("second teardown: %v", err)
	}
	if host.Counters().Releases != releases {
		t.Fatal("second teardown released refs again")
	}
}

func TestTeardown_ReclaimsInternedKeys(t *testing.T) {
	c, host := newReadyContext(t)
	idle, idleHost := newReadyContext(t)

	// Far more distinct keys than slots, so handles are dropped both by
	// eviction during the run and by cache close at teardown.
	const keys = 3000
	for i := 0; i < keys; i++ {
		if _, err := c.InternKey([]byte(fmt.Sprintf("field-%d", i))); err != nil {
			t.Fatalf("intern %d: %v", i, err)
		}
	}
	if host.Live() <= idleHost.Live() {
		t.Fatal("interned keys should be live before teardown")
	}

	if err := c.Teardown(); err != nil {
		t.Fatalf("teardown: %v", err)
	}
	if err := idle.Teardown(); err != nil {
		t.Fatalf("idle teardown: %v", err)
	}

	// Every key handle, evicted or resident, went back to the host: the
	// busy context ends with exactly the live set of an idle one.
	if got, want := host.Live(), idleHost.Live(); got != want {
		t.Fatalf("interned key handles leaked: %d live, want %d", got, want)
	}
}

func TestContexts_IsolatedHandles(t *testing.T) {
	c1, _ := newReadyContext(t)
	c2, _ := newReadyContext(t)

	if c1.ID() == c2.ID() {
		t.Fatal("context identities must be unique")
	}

	h1, err := c1.Resolve("true")
	if err != nil {
		t.Fatalf("resolve in first context: %v", err)
	}
	h2, err := c2.Resolve("true")
	if err != nil {
		t.Fatalf("resolve in second context: %v", err)
	}

	if h1 == h2 {
		t.Fatal("the same name must resolve to distinct handles per context")
	}
	if !h1.OwnedBy(c1.ID()) || !h2.OwnedBy(c2.ID()) {
		t.Fatalf("handles carry wrong owners: %+v %+v", h1, h2)
	}

	// Tearing down the first context leaves the second fully usable.
	if err := c1.Teardown(); err != nil {
		t.Fatalf("teardown: %v", err)
	}
	h2again, err := c2.Resolve("true")
	if err != nil {
		t.Fatalf("resolve after sibling teardown: %v", err)
	}
	if h2again != h2 {
		t.Fatal("sibling teardown disturbed a live context's bundle")
	}
}

func TestInternKey_UsesOwnAllocator(t *testing.T) {
	c1, host1 := newReadyContext(t)
	_, host2 := newReadyContext(t)

	base1 := host1.Counting().Allocs()
	base2 := host2.Counting().Allocs()

	h, err := c1.InternKey([]byte("created_at"))
	if err != nil {
		t.Fatalf("intern: %v", err)
	}
	if !h.OwnedBy(c1.ID()) {
		t.Fatalf("interned key owned by %d, want %d", h.Owner(), c1.ID())
	}

	if host1.Counting().Allocs() == base1 {
		t.Fatal("intern did not allocate in the owning context's heap")
	}
	if host2.Counting().Allocs() != base2 {
		t.Fatal("intern touched a foreign context's allocator")
	}

	// A repeated key is a cache hit and allocates nothing further.
	allocs := host1.Counting().Allocs()
	again, err := c1.InternKey([]byte("created_at"))
	if err != nil {
		t.Fatalf("re-intern: %v", err)
	}
	if again != h {
		t.Fatal("repeated key produced a different handle")
	}
	if host1.Counting().Allocs() != allocs {
		t.Fatal("cache hit allocated")
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()

	if _, err := r.OnContextCreate(nil); !stderrors.Is(err, &errors.Error{Kind: errors.KindInvalidInput}) {
		t.Fatalf("nil host: %v", err)
	}

	c, err := r.OnContextCreate(hosttest.New())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if got, ok := r.Get(c.ID()); !ok || got != c {
		t.Fatal("registered context not retrievable")
	}
	if r.Live() != 1 {
		t.Fatalf("live = %d, want 1", r.Live())
	}

	if err := r.OnContextDestroy(c); err != nil {
		t.Fatalf("destroy: %v", err)
	}
	if r.Live() != 0 {
		t.Fatalf("live after destroy = %d", r.Live())
	}

	// Tombstone: the identity stays resolvable and fails fast.
	got, ok := r.Get(c.ID())
	if !ok || got.State() != StateTornDown {
		t.Fatal("destroyed context should remain as a tombstone")
	}

	stray := &Context{id: 999999}
	if err := r.OnContextDestroy(stray); !stderrors.Is(err, &errors.Error{Kind: errors.KindInvalidInput}) {
		t.Fatalf("unregistered destroy: %v", err)
	}
	if err := r.OnContextDestroy(nil); !stderrors.Is(err, &errors.Error{Kind: errors.KindInvalidInput}) {
		t.Fatalf("nil destroy: %v", err)
	}
}

func TestState_String(t *testing.T) {
	for s, want := range map[State]string{
		StateUninitialized: "uninitialized",
		StateInitializing:  "initializing",
		StateReady:         "ready",
		StateTornDown:      "torn_down",
		State(99):          "unknown",
	} {
		if s.String() != want {
			t.Fatalf("State(%d).String() = %q, want %q", s, s.String(), want)
		}
	}
}
