package errors

import (
	"fmt"
	"testing"
)

func TestRecallError_Error(t *testing.T) {
	err := &RecallError{
		Code:    ErrNotFound,
		Status:  404,
		Message: "not found: /tmp/missing",
	}

	expected := "NOT_FOUND: not found: /tmp/missing"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

func TestNewInvalidRequest(t *testing.T) {
	err := NewInvalidRequest("limit must be positive")

	if err.Code != ErrInvalidRequest {
		t.Errorf("Code = %q, want %q", err.Code, ErrInvalidRequest)
	}
	if err.Status != 400 {
		t.Errorf("Status = %d, want 400", err.Status)
	}
	if err.Message != "limit must be positive" {
		t.Errorf("Message = %q, want %q", err.Message, "limit must be positive")
	}
}

func TestNewToolDisabled(t *testing.T) {
	err := NewToolDisabled("run_command")

	if err.Code != ErrToolDisabled {
		t.Errorf("Code = %q, want %q", err.Code, ErrToolDisabled)
	}
	if err.Status != 403 {
		t.Errorf("Status = %d, want 403", err.Status)
	}
	if err.Details["tool"] != "run_command" {
		t.Errorf("Details[tool] = %v, want %q", err.Details["tool"], "run_command")
	}
}

func TestNewNotFound(t *testing.T) {
	err := NewNotFound("/home/dev/project")

	if err.Code != ErrNotFound {
		t.Errorf("Code = %q, want %q", err.Code, ErrNotFound)
	}
	if err.Status != 404 {
		t.Errorf("Status = %d, want 404", err.Status)
	}
	if err.Details["identifier"] != "/home/dev/project" {
		t.Errorf("Details[identifier] = %v, want %q", err.Details["identifier"], "/home/dev/project")
	}
}

func TestNewTimeout(t *testing.T) {
	err := NewTimeout("cursor scan", 30)

	if err.Code != ErrTimeout {
		t.Errorf("Code = %q, want %q", err.Code, ErrTimeout)
	}
	if err.Status != 408 {
		t.Errorf("Status = %d, want 408", err.Status)
	}
	if err.Message != "cursor scan timed out after 30.0s" {
		t.Errorf("Message = %q, want %q", err.Message, "cursor scan timed out after 30.0s")
	}
	if err.Details["operation"] != "cursor scan" {
		t.Errorf("Details[operation] = %v, want %q", err.Details["operation"], "cursor scan")
	}
}

func TestNewUnreadableStore(t *testing.T) {
	t.Run("with cause", func(t *testing.T) {
		cause := fmt.Errorf("file is not a database")
		err := NewUnreadableStore("/tmp/state.vscdb", cause)

		if err.Code != ErrUnreadableStore {
			t.Errorf("Code = %q, want %q", err.Code, ErrUnreadableStore)
		}
		if err.Status != 422 {
			t.Errorf("Status = %d, want 422", err.Status)
		}
		if err.Details["path"] != "/tmp/state.vscdb" {
			t.Errorf("Details[path] = %v, want %q", err.Details["path"], "/tmp/state.vscdb")
		}
		if err.Details["cause"] != "file is not a database" {
			t.Errorf("Details[cause] = %v, want %q", err.Details["cause"], "file is not a database")
		}
	})

	t.Run("without cause", func(t *testing.T) {
		err := NewUnreadableStore("/tmp/state.vscdb", nil)

		if _, ok := err.Details["cause"]; ok {
			t.Error("Details[cause] should be absent when cause is nil")
		}
	})
}

func TestNewCommandFailed(t *testing.T) {
	err := NewCommandFailed("git status", fmt.Errorf("executable not found"))

	if err.Code != ErrCommandFailed {
		t.Errorf("Code = %q, want %q", err.Code, ErrCommandFailed)
	}
	if err.Status != 422 {
		t.Errorf("Status = %d, want 422", err.Status)
	}
	if err.Details["command"] != "git status" {
		t.Errorf("Details[command] = %v, want %q", err.Details["command"], "git status")
	}
}

func TestNewInternal(t *testing.T) {
	t.Run("with error", func(t *testing.T) {
		originalErr := fmt.Errorf("sqlite connection failed")
		err := NewInternal(originalErr)

		if err.Code != ErrInternal {
			t.Errorf("Code = %q, want %q", err.Code, ErrInternal)
		}
		if err.Status != 500 {
			t.Errorf("Status = %d, want 500", err.Status)
		}
		// Message should be generic (not leak internal details)
		if err.Message != "an internal error occurred" {
			t.Errorf("Message = %q, want %q", err.Message, "an internal error occurred")
		}
		// Original error should be stored in Details for logging
		if err.Details["internal_error"] != "sqlite connection failed" {
			t.Errorf("Details[internal_error] = %q, want %q", err.Details["internal_error"], "sqlite connection failed")
		}
	})

	t.Run("with nil", func(t *testing.T) {
		err := NewInternal(nil)

		if err.Message != "an internal error occurred" {
			t.Errorf("Message = %q, want %q", err.Message, "an internal error occurred")
		}
		// Details should be empty but not nil
		if err.Details == nil {
			t.Error("Details should not be nil")
		}
	})
}

func TestIs(t *testing.T) {
	t.Run("matching code", func(t *testing.T) {
		err := NewNotFound("test")
		if !Is(err, ErrNotFound) {
			t.Error("Is() = false, want true")
		}
	})

	t.Run("non-matching code", func(t *testing.T) {
		err := NewNotFound("test")
		if Is(err, ErrTimeout) {
			t.Error("Is() = true, want false")
		}
	})

	t.Run("non-RecallError", func(t *testing.T) {
		err := fmt.Errorf("plain error")
		if Is(err, ErrNotFound) {
			t.Error("Is() = true, want false for non-RecallError")
		}
	})

	t.Run("wrapped RecallError", func(t *testing.T) {
		inner := NewTimeout("windsurf scan", 30)
		wrapped := fmt.Errorf("scan: %w", inner)
		if !Is(wrapped, ErrTimeout) {
			t.Error("Is() = false, want true for wrapped RecallError")
		}
		if Is(wrapped, ErrNotFound) {
			t.Error("Is() = true, want false for wrong code on wrapped RecallError")
		}
	})
}
