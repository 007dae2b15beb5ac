package backend

import (
	"errors"
	"io/fs"
	"os"
	"testing"
)

func TestStatusString(t *testing.T) {
	cases := map[Status]string{
		StatusOK:             "ok",
		StatusNotInitialized: "not initialized",
		StatusModelNotLoaded: "model not loaded",
		StatusInvalidInput:   "invalid input",
		StatusBackendError:   "backend error",
		StatusIOError:        "i/o error",
		StatusUnknown:        "unknown error",
		Status(-99):          "unknown error",
	}
	for in, want := range cases {
		if got := in.String(); got != want {
			t.Fatalf("Status(%d).String() = %q, want %q", in, got, want)
		}
	}
}

func TestCodeOf(t *testing.T) {
	if CodeOf(nil) != StatusOK {
		t.Fatal("nil should map to OK")
	}
	if CodeOf(errInvalidInput("x")) != StatusInvalidInput {
		t.Fatal("StatusError code lost")
	}
	// wrapped StatusError still resolves
	wrapped := errors.Join(errors.New("outer"), errModelNotLoaded("inner"))
	if CodeOf(wrapped) != StatusModelNotLoaded {
		t.Fatalf("wrapped StatusError = %v", CodeOf(wrapped))
	}
	if CodeOf(&fs.PathError{Op: "open", Path: "/x", Err: os.ErrNotExist}) != StatusIOError {
		t.Fatal("path error should map to i/o")
	}
	if CodeOf(os.ErrPermission) != StatusIOError {
		t.Fatal("permission error should map to i/o")
	}
	if CodeOf(errors.New("???")) != StatusUnknown {
		t.Fatal("unrecognized error should map to unknown")
	}
}

func TestWrapBackendErr(t *testing.T) {
	if wrapBackendErr(nil) != nil {
		t.Fatal("nil should stay nil")
	}
	se := errBackend("native says no")
	if wrapBackendErr(se) != se {
		t.Fatal("typed error should pass through unchanged")
	}
	dep := ErrDependencyUnavailable("not built")
	if wrapBackendErr(dep) != dep {
		t.Fatal("dependency error should stay recognizable")
	}
	ioErr := wrapBackendErr(&fs.PathError{Op: "read", Path: "/m", Err: os.ErrNotExist})
	if CodeOf(ioErr) != StatusIOError {
		t.Fatalf("io classification lost: %v", ioErr)
	}
	generic := wrapBackendErr(errors.New("mystery"))
	if CodeOf(generic) != StatusBackendError {
		t.Fatalf("generic error should become backend error: %v", generic)
	}
}

func TestDependencyUnavailable(t *testing.T) {
	err := ErrDependencyUnavailable("llama support not built")
	if !IsDependencyUnavailable(err) {
		t.Fatal("predicate rejected its own constructor")
	}
	if IsDependencyUnavailable(errors.New("other")) {
		t.Fatal("predicate matched a plain error")
	}
}

func TestUnknownBackend(t *testing.T) {
	_, err := New("definitely-not-registered")
	if err == nil || !IsUnknownBackend(err) {
		t.Fatalf("expected unknown-backend error, got %v", err)
	}
}
