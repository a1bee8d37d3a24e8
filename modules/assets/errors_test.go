package assets

import (
	"errors"
	"fmt"
	"testing"
)

func TestCodeOf(t *testing.T) {
	err := NewError(CodeNotFound, "asset not found")
	if CodeOf(err) != CodeNotFound {
		t.Errorf("CodeOf() = %q, want %q", CodeOf(err), CodeNotFound)
	}

	wrapped := fmt.Errorf("handler: %w", err)
	if CodeOf(wrapped) != CodeNotFound {
		t.Errorf("CodeOf(wrapped) = %q, want %q", CodeOf(wrapped), CodeNotFound)
	}

	if CodeOf(errors.New("plain")) != "" {
		t.Errorf("CodeOf(plain) = %q, want empty", CodeOf(errors.New("plain")))
	}
	if CodeOf(nil) != "" {
		t.Error("CodeOf(nil) should be empty")
	}
}

func TestWrapError_PreservesCause(t *testing.T) {
	cause := errors.New("disk full")
	err := WrapError(CodeIntegrityError, "failed to verify object integrity", cause)

	if !errors.Is(err, cause) {
		t.Error("expected wrapped cause to be reachable via errors.Is")
	}
	if CodeOf(err) != CodeIntegrityError {
		t.Errorf("CodeOf() = %q, want %q", CodeOf(err), CodeIntegrityError)
	}
}
