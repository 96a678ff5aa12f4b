package errors

import (
	"fmt"
	"strconv"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseInit     Phase = "init"     // context initialization
	PhaseResolve  Phase = "resolve"  // reference bundle lookup
	PhaseKeyCache Phase = "keycache" // key interning
	PhaseAlloc    Phase = "alloc"    // allocator binding
	PhaseTeardown Phase = "teardown" // context teardown
	PhaseHost     Phase = "host"     // host runtime ABI
)

// Kind categorizes the error
type Kind string

const (
	KindNotInitialized Kind = "not_initialized"
	KindTornDown       Kind = "torn_down"
	KindCrossContext   Kind = "cross_context"
	KindUnknownName    Kind = "unknown_name"
	KindResolution     Kind = "resolution"
	KindAllocation     Kind = "allocation"
	KindDeadContext    Kind = "dead_context"
	KindInvalidInput   Kind = "invalid_input"
)

// Error is the structured error type used throughout the module
type Error struct {
	Cause   error
	Phase   Phase
	Kind    Kind
	Name    string
	Detail  string
	Context uint64
	Other   uint64
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Context != 0 {
		b.WriteString(" ctx=")
		b.WriteString(strconv.FormatUint(e.Context, 10))
	}
	if e.Other != 0 {
		b.WriteString(" other=")
		b.WriteString(strconv.FormatUint(e.Other, 10))
	}
	if e.Name != "" {
		b.WriteString(" name=")
		b.WriteString(strconv.Quote(e.Name))
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error. Two errors match when
// their Phase and Kind agree; empty fields on the target act as wildcards.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Phase != "" && t.Phase != e.Phase {
		return false
	}
	if t.Kind != "" && t.Kind != e.Kind {
		return false
	}
	return true
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Context sets the context identity the operation was scoped to
func (b *Builder) Context(id uint64) *Builder {
	b.err.Context = id
	return b
}

// Other sets the foreign context identity in a cross-context report
func (b *Builder) Other(id uint64) *Builder {
	b.err.Other = id
	return b
}

// Name sets the bundle or cache entry name
func (b *Builder) Name(name string) *Builder {
	b.err.Name = name
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// NotInitialized reports an operation against a context whose
// initialization never completed.
func NotInitialized(phase Phase, ctx uint64) *Error {
	return &Error{
		Phase:   phase,
		Kind:    KindNotInitialized,
		Context: ctx,
		Detail:  "context not initialized",
	}
}

// TornDown reports an operation against a context identity that has
// been invalidated. Identities are never reused, so this is permanent.
func TornDown(phase Phase, ctx uint64) *Error {
	return &Error{
		Phase:   phase,
		Kind:    KindTornDown,
		Context: ctx,
		Detail:  "context torn down",
	}
}

// CrossContext reports a handle or request from one context presented
// while another is active. Continuing after this error risks memory
// corruption in the host runtime.
func CrossContext(phase Phase, owner, got uint64) *Error {
	return &Error{
		Phase:   phase,
		Kind:    KindCrossContext,
		Context: owner,
		Other:   got,
		Detail:  "handle presented under foreign context",
	}
}

// UnknownName reports a lookup for a name outside the fixed bundle set.
func UnknownName(ctx uint64, name string) *Error {
	return &Error{
		Phase:   PhaseResolve,
		Kind:    KindUnknownName,
		Context: ctx,
		Name:    name,
	}
}

// Resolution reports a failed type or singleton resolution during
// context initialization.
func Resolution(ctx uint64, name string, cause error) *Error {
	return &Error{
		Phase:   PhaseInit,
		Kind:    KindResolution,
		Context: ctx,
		Name:    name,
		Cause:   cause,
	}
}

// AllocationFailed reports a failed allocation in a context's heap.
func AllocationFailed(ctx uint64, size, align uint32, cause error) *Error {
	return &Error{
		Phase:   PhaseAlloc,
		Kind:    KindAllocation,
		Context: ctx,
		Detail:  fmt.Sprintf("failed to allocate %d bytes (align %d)", size, align),
		Cause:   cause,
	}
}

// DeadContext reports an allocator operation against an invalidated binding.
func DeadContext(phase Phase, ctx uint64) *Error {
	return &Error{
		Phase:   phase,
		Kind:    KindDeadContext,
		Context: ctx,
		Detail:  "allocator binding invalidated",
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// Wrap wraps an existing error with phase and kind context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// MissingExportsError is returned when a guest module does not export
// the ABI surface a host adapter requires.
type MissingExportsError struct {
	Exports []string
}

func (e *MissingExportsError) Error() string {
	if len(e.Exports) == 0 {
		return "[host] missing_export: no exports specified"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "missing %d guest export(s):", len(e.Exports))
	for _, name := range e.Exports {
		b.WriteString("\n  - ")
		b.WriteString(name)
	}
	return b.String()
}

// Is reports whether target matches this error type
func (e *MissingExportsError) Is(target error) bool {
	_, ok := target.(*MissingExportsError)
	return ok
}
