// Package interpstate provides the interpreter-scoped resource
// management layer for a native codec extension that embeds a managed
// guest runtime with multiple isolated contexts.
//
// Each context has its own object space, allocator and type registry.
// This module owns the state that must never leak between contexts:
// cached handles to runtime types and singletons, an interning cache
// for short object keys, and the allocator binding that routes every
// native allocation to the owning context's heap.
//
// # Architecture Overview
//
// The module is organized into packages with distinct responsibilities:
//
//	interpstate/       Root package with Ref, ContextID, Handle,
//	                   Allocator and HostRuntime interfaces
//	├── interp/        Context registry, lifecycle hooks and the
//	                   per-context initialization state machine
//	├── typeref/       Per-context reference bundle (types, singletons,
//	                   interned names, exception classes)
//	├── keycache/      Direct-mapped key interning cache
//	├── alloc/         Allocator binding and allocation bookkeeping
//	├── dispatch/      Process-wide CPU feature dispatch
//	├── hosttest/      In-memory host runtime for tests
//	├── hostwazero/    Host runtime adapter over a wazero guest module
//	└── errors/        Structured error types
//
// # Quick Start
//
// Bind a context and resolve handles:
//
//	reg := interp.NewRegistry()
//	cx, err := reg.OnContextCreate(host)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := cx.EnsureInitialized(); err != nil {
//	    log.Fatal(err)
//	}
//
//	refs, _ := cx.Refs()
//	truth, _ := refs.Lookup("true")
//
//	// ... decode work ...
//
//	reg.OnContextDestroy(cx)
//
// # Context Isolation
//
// A Handle resolved under one context is never equal to, nor accepted
// by, any operation scoped to another context. Handles carry their
// owning ContextID, caches are owned by exactly one context, and the
// allocator binding rejects requests tagged with a foreign or dead
// context. The partition is structural, not a usage convention.
//
// # Thread Safety
//
// EnsureInitialized may race freely within a context: exactly one
// goroutine performs the work, the rest wait on the context's own
// mutex. After publication the reference bundle is immutable and
// read lock-free. The dispatch selector is the only process-wide
// state; it holds no handles and is immutable after detection.
package interpstate
