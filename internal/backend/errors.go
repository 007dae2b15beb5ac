package backend

// dependencyUnavailableError signals a missing runtime dependency (e.g.,
// llama support not compiled in, shared library not found) so the HTTP
// layer can return 503 Service Unavailable instead of 500.
type dependencyUnavailableError struct{ msg string }

func (e dependencyUnavailableError) Error() string { return e.msg }

// ErrDependencyUnavailable constructs a dependencyUnavailableError.
func ErrDependencyUnavailable(msg string) error { return dependencyUnavailableError{msg: msg} }

// IsDependencyUnavailable reports whether err indicates a missing/failed runtime dependency.
func IsDependencyUnavailable(err error) bool {
	_, ok := err.(dependencyUnavailableError)
	return ok
}

// unknownBackendError is returned when Init names a backend that was not
// compiled into this binary.
type unknownBackendError struct{ name string }

func (e unknownBackendError) Error() string { return "unknown backend: " + e.name }

// IsUnknownBackend reports whether err names a backend missing from the registry.
func IsUnknownBackend(err error) bool {
	_, ok := err.(unknownBackendError)
	return ok
}
