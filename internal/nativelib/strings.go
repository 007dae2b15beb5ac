package nativelib

import (
	"sync"
	"unsafe"
)

// BorrowedString wraps a null-terminated UTF-8 buffer owned by the native
// library (last_error, backend name, version). It must never be freed
// from the Go side and is only valid until the next native call.
type BorrowedString uintptr

func (b BorrowedString) String() string { return goString(uintptr(b)) }

// OwnedString wraps a heap-allocated native string whose ownership was
// transferred across the boundary. It must be released exactly once
// through the library's own free function; Close is idempotent so scoped
// acquisition (defer s.Close()) is always safe.
type OwnedString struct {
	ptr  uintptr
	free func(uintptr)
	once sync.Once
}

func newOwnedString(ptr uintptr, free func(uintptr)) *OwnedString {
	return &OwnedString{ptr: ptr, free: free}
}

// String copies the buffer into a Go string. Call before Close.
func (o *OwnedString) String() string { return goString(o.ptr) }

// Close returns the buffer to the native allocator. Second and later
// calls are no-ops.
func (o *OwnedString) Close() error {
	o.once.Do(func() {
		if o.ptr != 0 && o.free != nil {
			o.free(o.ptr)
		}
		o.ptr = 0
	})
	return nil
}

// goString copies a null-terminated C string into Go memory.
func goString(ptr uintptr) string {
	if ptr == 0 {
		return ""
	}
	n := 0
	for *(*byte)(unsafe.Pointer(ptr + uintptr(n))) != 0 {
		n++
	}
	if n == 0 {
		return ""
	}
	return string(unsafe.Slice((*byte)(unsafe.Pointer(ptr)), n))
}
