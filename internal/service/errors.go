package service

import "fmt"

// modelNotFoundError marks a request for a model id the registry does not
// carry.
type modelNotFoundError struct {
	id string
}

func (e modelNotFoundError) Error() string {
	return fmt.Sprintf("model not found: %s", e.id)
}

// ErrModelNotFound builds a missing-model error for the given id.
func ErrModelNotFound(id string) error { return modelNotFoundError{id: id} }

// IsModelNotFound reports whether err is a missing-model error.
func IsModelNotFound(err error) bool {
	_, ok := err.(modelNotFoundError)
	return ok
}

// invalidScanError wraps a fatal scan setup failure (bad root, not a
// directory). Per-file errors never surface here; they are counted in the
// stats instead.
type invalidScanError struct {
	cause error
}

func (e invalidScanError) Error() string { return e.cause.Error() }
func (e invalidScanError) Unwrap() error { return e.cause }

// ErrInvalidScan wraps a scan setup failure.
func ErrInvalidScan(cause error) error { return invalidScanError{cause: cause} }

// IsInvalidScan reports whether err is a scan setup failure.
func IsInvalidScan(err error) bool {
	_, ok := err.(invalidScanError)
	return ok
}
