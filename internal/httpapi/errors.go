package httpapi

import (
	"net/http"

	json "github.com/goccy/go-json"

	"inferd/internal/backend"
	"inferd/internal/service"
	"inferd/pkg/types"
)

// HTTPError allows services to provide an HTTP status code for an error.
type HTTPError interface {
	error
	StatusCode() int
}

// statusForErr maps service and backend errors to HTTP status codes.
func statusForErr(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case service.IsModelNotFound(err):
		return http.StatusNotFound
	case service.IsInvalidScan(err):
		return http.StatusBadRequest
	case backend.IsInvalidInput(err):
		return http.StatusBadRequest
	case backend.IsNotInitialized(err), backend.IsModelNotLoaded(err):
		return http.StatusConflict
	case backend.IsDependencyUnavailable(err):
		return http.StatusServiceUnavailable
	case backend.CodeOf(err) == backend.StatusIOError:
		return http.StatusNotFound
	}
	if he, ok := err.(HTTPError); ok {
		return he.StatusCode()
	}
	return http.StatusInternalServerError
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: msg, Code: status})
}
