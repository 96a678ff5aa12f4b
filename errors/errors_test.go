package errors

import (
	stderrors "errors"
	"strings"
	"testing"
)

func TestError_Format(t *testing.T) {
	err := New(PhaseInit, KindResolution).
		Context(3).
		Name("datetime-type").
		Detail("lookup failed").
		Build()

	msg := err.Error()
	if !strings.Contains(msg, "[init]") {
		t.Fatalf("missing phase in %q", msg)
	}
	if !strings.Contains(msg, "resolution") {
		t.Fatalf("missing kind in %q", msg)
	}
	if !strings.Contains(msg, "ctx=3") {
		t.Fatalf("missing context in %q", msg)
	}
	if !strings.Contains(msg, `"datetime-type"`) {
		t.Fatalf("missing name in %q", msg)
	}
}

func TestError_Is(t *testing.T) {
	err := TornDown(PhaseResolve, 7)

	if !stderrors.Is(err, &Error{Phase: PhaseResolve, Kind: KindTornDown}) {
		t.Fatal("exact phase+kind should match")
	}
	if !stderrors.Is(err, &Error{Kind: KindTornDown}) {
		t.Fatal("empty phase should act as wildcard")
	}
	if stderrors.Is(err, &Error{Kind: KindCrossContext}) {
		t.Fatal("different kind should not match")
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := stderrors.New("boom")
	err := Resolution(1, "uuid-type", cause)

	if !stderrors.Is(err, cause) {
		t.Fatal("cause should be reachable through Unwrap")
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Fatal("cause should appear in message")
	}
}

func TestCrossContext(t *testing.T) {
	err := CrossContext(PhaseAlloc, 1, 2)
	if err.Context != 1 || err.Other != 2 {
		t.Fatalf("wrong identities: %+v", err)
	}
	msg := err.Error()
	if !strings.Contains(msg, "ctx=1") || !strings.Contains(msg, "other=2") {
		t.Fatalf("identities missing from %q", msg)
	}
}

func TestMissingExportsError(t *testing.T) {
	err := &MissingExportsError{Exports: []string{"memory", "ref:true"}}
	msg := err.Error()
	if !strings.Contains(msg, "missing 2 guest export(s)") {
		t.Fatalf("unexpected message %q", msg)
	}
	if !strings.Contains(msg, "ref:true") {
		t.Fatalf("export name missing from %q", msg)
	}
	if !stderrors.Is(err, &MissingExportsError{}) {
		t.Fatal("Is should match by type")
	}
}
