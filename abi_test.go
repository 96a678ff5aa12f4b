package interpstate

import "testing"

func TestHandle_OwnerTagging(t *testing.T) {
	h1 := NewHandle(1, 42)
	h2 := NewHandle(2, 42)

	if h1 == h2 {
		t.Fatal("handles with equal refs but different owners must not compare equal")
	}
	if !h1.OwnedBy(1) || h1.OwnedBy(2) {
		t.Fatal("wrong ownership report")
	}
	if h1.Ref() != 42 || h1.Owner() != 1 {
		t.Fatalf("handle lost its parts: %+v", h1)
	}
}

func TestHandle_Valid(t *testing.T) {
	if (Handle{}).Valid() {
		t.Fatal("zero handle should be invalid")
	}
	if NewHandle(0, 7).Valid() {
		t.Fatal("handle without owner should be invalid")
	}
	if NewHandle(3, 0).Valid() {
		t.Fatal("handle with null ref should be invalid")
	}
	if !NewHandle(3, 7).Valid() {
		t.Fatal("complete handle should be valid")
	}
}

func TestStrict_Toggle(t *testing.T) {
	if Strict() {
		t.Fatal("strict should default off")
	}
	SetStrict(true)
	if !Strict() {
		t.Fatal("SetStrict(true) not observed")
	}
	SetStrict(false)
	if Strict() {
		t.Fatal("SetStrict(false) not observed")
	}
}

func TestDeclareCapabilities(t *testing.T) {
	if !DeclareCapabilities().MultiContext {
		t.Fatal("multi-context support must be declared")
	}
}
