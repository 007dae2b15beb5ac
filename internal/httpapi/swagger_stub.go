//go:build !swagger

package httpapi

import "github.com/go-chi/chi/v5"

// MountSwagger does nothing in default builds; the UI and its
// dependencies are pulled in only with -tags=swagger.
func MountSwagger(r chi.Router) {}
