package backend

import (
	"errors"
	"io/fs"
	"os"
)

// Status is the small-integer result code shared with the C export surface.
// Zero means success; negative values form the error taxonomy. The values
// are part of the binary contract and must not be renumbered.
type Status int

const (
	StatusOK             Status = 0
	StatusNotInitialized Status = -1
	StatusModelNotLoaded Status = -2
	StatusInvalidInput   Status = -3
	StatusBackendError   Status = -4
	StatusIOError        Status = -5
	StatusUnknown        Status = -6
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusNotInitialized:
		return "not initialized"
	case StatusModelNotLoaded:
		return "model not loaded"
	case StatusInvalidInput:
		return "invalid input"
	case StatusBackendError:
		return "backend error"
	case StatusIOError:
		return "i/o error"
	default:
		return "unknown error"
	}
}

// StatusError pairs a status code with a message. All errors crossing the
// session boundary are StatusError values so callers can translate them
// into their own idiom without string matching.
type StatusError struct {
	Code    Status
	Message string
}

func (e *StatusError) Error() string { return e.Message }

// Constructors for the taxonomy. Keep messages specific; they surface
// verbatim through last_error on the C side.

func errNotInitialized(msg string) *StatusError {
	return &StatusError{Code: StatusNotInitialized, Message: msg}
}

func errModelNotLoaded(msg string) *StatusError {
	return &StatusError{Code: StatusModelNotLoaded, Message: msg}
}

func errInvalidInput(msg string) *StatusError {
	return &StatusError{Code: StatusInvalidInput, Message: msg}
}

func errBackend(msg string) *StatusError {
	return &StatusError{Code: StatusBackendError, Message: msg}
}

func errIO(msg string) *StatusError {
	return &StatusError{Code: StatusIOError, Message: msg}
}

// CodeOf maps an arbitrary error to its status code. Filesystem errors
// that escaped a backend are classified as I/O; anything unrecognized is
// unknown rather than a panic or a misleading backend code.
func CodeOf(err error) Status {
	if err == nil {
		return StatusOK
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	var pe *fs.PathError
	if errors.As(err, &pe) || errors.Is(err, os.ErrNotExist) || errors.Is(err, os.ErrPermission) {
		return StatusIOError
	}
	return StatusUnknown
}

// IsInvalidInput reports whether err is a caller error (bad argument).
func IsInvalidInput(err error) bool { return CodeOf(err) == StatusInvalidInput }

// IsNotInitialized reports whether err indicates a missing Init.
func IsNotInitialized(err error) bool { return CodeOf(err) == StatusNotInitialized }

// IsModelNotLoaded reports whether err indicates no model is attached.
func IsModelNotLoaded(err error) bool { return CodeOf(err) == StatusModelNotLoaded }
