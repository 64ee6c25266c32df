package domainerrors

import (
	"errors"
	"fmt"
	"testing"
)

func TestCodeOf(t *testing.T) {
	cause := errors.New("connection refused")
	wrapped := Wrap(cause, CodeUnavailable, "store unreachable")

	if got := CodeOf(wrapped); got != CodeUnavailable {
		t.Fatalf("expected %s, got %s", CodeUnavailable, got)
	}
	if !errors.Is(wrapped, cause) {
		t.Fatalf("expected wrapped error to keep its cause")
	}
}

func TestCodeOfSurvivesFmtWrapping(t *testing.T) {
	err := New(CodeInvalidState, "already attested")
	outer := fmt.Errorf("attest: %w", err)

	if !Is(outer, CodeInvalidState) {
		t.Fatalf("expected code to survive fmt.Errorf wrapping")
	}
}

func TestCodeOfUnknownError(t *testing.T) {
	if got := CodeOf(errors.New("boom")); got != CodeInternal {
		t.Fatalf("expected unknown errors to map to internal, got %s", got)
	}
	if CodeOf(nil) != "" {
		t.Fatalf("expected empty code for nil error")
	}
}

func TestWrapNil(t *testing.T) {
	if Wrap(nil, CodeInternal, "ignored") != nil {
		t.Fatalf("wrapping nil must return nil")
	}
}
