package riskerr

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorIsMatchesByKind(t *testing.T) {
	t.Parallel()

	err := DuplicateKey("ord1")
	if !errors.Is(err, New(KindDuplicateKey, "")) {
		t.Error("errors.Is should match on Kind")
	}
	if errors.Is(err, New(KindUnknownKey, "")) {
		t.Error("errors.Is should not match a different Kind")
	}
}

func TestErrorUnwrap(t *testing.T) {
	t.Parallel()

	cause := fmt.Errorf("boom")
	err := Config("bad grouping").WithCause(cause)

	wrapped := fmt.Errorf("load config: %w", err)
	if !errors.Is(wrapped, cause) {
		t.Error("wrapped error should unwrap to the original cause")
	}

	var target *Error
	if !errors.As(wrapped, &target) {
		t.Fatal("errors.As should recover the *Error")
	}
	if target.Kind != KindConfig {
		t.Errorf("Kind = %s, want %s", target.Kind, KindConfig)
	}
}

func TestErrorMessageIncludesContext(t *testing.T) {
	t.Parallel()

	byKey := UnknownKey("ord7")
	if got := byKey.Error(); got == "" {
		t.Fatal("Error() returned empty string")
	}

	byField := Parse("ClOrdID", "missing required field")
	if byField.Field != "ClOrdID" {
		t.Errorf("Field = %q, want ClOrdID", byField.Field)
	}
}
