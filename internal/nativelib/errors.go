package nativelib

import (
	"errors"
	"fmt"
)

// ErrLibraryUnavailable is the single consistent failure every call
// reports once loading the shared library has failed. Callers check it
// with errors.Is rather than inspecting missing-symbol details.
var ErrLibraryUnavailable = errors.New("native inference library unavailable")

// CallError is a failed native call: the raw status code paired with the
// library's last-error message, untouched. Codes follow the shared
// contract (0 ok, negatives enumerate the taxonomy).
type CallError struct {
	Code    int
	Message string
}

func (e *CallError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("native call failed with status %d", e.Code)
	}
	return e.Message
}

// loadError wraps the underlying discovery or dlopen failure while
// keeping ErrLibraryUnavailable matchable.
type loadError struct{ cause error }

func (e *loadError) Error() string {
	return fmt.Sprintf("%v: %v", ErrLibraryUnavailable, e.cause)
}

func (e *loadError) Is(target error) bool { return target == ErrLibraryUnavailable }

func (e *loadError) Unwrap() error { return e.cause }
