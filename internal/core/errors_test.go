package core

import (
	"errors"
	"fmt"
	"testing"
)

func TestDomainError_Matching(t *testing.T) {
	err := ErrDoubleRelease(42)
	if !IsCategory(err, ErrCatLedger) {
		t.Fatalf("expected ledger category, got %s", GetCategory(err))
	}
	if !IsCode(err, CodeDoubleRelease) {
		t.Fatalf("expected DOUBLE_RELEASE code")
	}
	if IsCode(err, CodeUnknownHandle) {
		t.Fatalf("did not expect UNKNOWN_HANDLE code")
	}
}

func TestDomainError_Wrapping(t *testing.T) {
	cause := fmt.Errorf("boom")
	err := ErrDetector("age", cause)
	if !errors.Is(err, ErrDetector("age", nil)) {
		t.Fatalf("expected detector errors with same code to match")
	}
	if errors.Unwrap(err) != cause {
		t.Fatalf("expected unwrap to return cause")
	}

	wrapped := fmt.Errorf("running tick: %w", err)
	if !IsCategory(wrapped, ErrCatDetector) {
		t.Fatalf("expected category to survive wrapping")
	}
}

func TestDomainError_Details(t *testing.T) {
	err := ErrState(CodeStateCorrupted, "bad row").WithDetail("handle_id", 7)
	if err.Details["handle_id"] != 7 {
		t.Fatalf("expected detail to be recorded")
	}
	if GetCategory(fmt.Errorf("plain")) != ErrCatInternal {
		t.Fatalf("expected plain errors to map to internal category")
	}
}
