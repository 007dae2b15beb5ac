package nativelib

import (
	"errors"
	"testing"
	"unsafe"
)

// cBuf builds a null-terminated buffer and returns its address. The
// backing slice is returned too so it stays reachable for the test's
// duration.
func cBuf(s string) ([]byte, uintptr) {
	b := append([]byte(s), 0)
	return b, uintptr(unsafe.Pointer(&b[0]))
}

func TestGoString(t *testing.T) {
	keep, ptr := cBuf("héllo wörld")
	defer func() { _ = keep }()
	if got := goString(ptr); got != "héllo wörld" {
		t.Fatalf("goString = %q", got)
	}
	if got := goString(0); got != "" {
		t.Fatalf("nil pointer should yield empty, got %q", got)
	}
	keepEmpty, empty := cBuf("")
	defer func() { _ = keepEmpty }()
	if got := goString(empty); got != "" {
		t.Fatalf("empty buffer should yield empty, got %q", got)
	}
}

func TestBorrowedString(t *testing.T) {
	keep, ptr := cBuf("backend-name")
	defer func() { _ = keep }()
	if got := BorrowedString(ptr).String(); got != "backend-name" {
		t.Fatalf("borrowed = %q", got)
	}
}

func TestOwnedString_FreedExactlyOnce(t *testing.T) {
	keep, ptr := cBuf("generated text")
	defer func() { _ = keep }()
	var frees int
	o := newOwnedString(ptr, func(p uintptr) {
		if p != ptr {
			t.Fatalf("freed wrong pointer: %x != %x", p, ptr)
		}
		frees++
	})
	if got := o.String(); got != "generated text" {
		t.Fatalf("owned = %q", got)
	}
	if err := o.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := o.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if frees != 1 {
		t.Fatalf("free called %d times", frees)
	}
	// pointer is cleared so a late String returns empty, not garbage
	if got := o.String(); got != "" {
		t.Fatalf("string after close = %q", got)
	}
}

func TestOwnedString_NilFree(t *testing.T) {
	keep, ptr := cBuf("x")
	defer func() { _ = keep }()
	o := newOwnedString(ptr, nil)
	if err := o.Close(); err != nil {
		t.Fatalf("close with nil free: %v", err)
	}
}

func TestCallError(t *testing.T) {
	err := &CallError{Code: -3, Message: "prompt is empty"}
	if err.Error() != "prompt is empty" {
		t.Fatalf("message = %q", err.Error())
	}
	var ce *CallError
	if !errors.As(error(err), &ce) || ce.Code != -3 {
		t.Fatalf("errors.As failed: %v", ce)
	}
}

func TestLoadError_MatchesSentinel(t *testing.T) {
	cause := errors.New("libinferd.so not found")
	err := error(&loadError{cause: cause})
	if !errors.Is(err, ErrLibraryUnavailable) {
		t.Fatal("load error should match ErrLibraryUnavailable")
	}
	if !errors.Is(err, cause) {
		t.Fatal("load error should unwrap to its cause")
	}
}
