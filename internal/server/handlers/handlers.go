// Package handlers implements the HTTP endpoints of the wiki server.
package handlers

import (
	"log/slog"
	"net/http"

	apierrors "github.com/maruel/mdwiki/internal/errors"
	"github.com/maruel/mdwiki/internal/server/ipgeo"
	"github.com/maruel/mdwiki/internal/storage"
	"github.com/maruel/mdwiki/internal/storage/identity"
	"github.com/maruel/mdwiki/internal/wiki"
)

// Handlers bundles the services the endpoints need.
type Handlers struct {
	Log      *slog.Logger
	Config   *storage.ServerConfig
	Users    *identity.UserService
	Sessions *identity.SessionService
	Wiki     *wiki.Service
	Uploader *wiki.Uploader
	// Geo is optional; nil disables country lookups.
	Geo *ipgeo.Checker
	// BookDir is the rendered site output directory.
	BookDir string
}

// errStatus maps an error to its HTTP status and user-facing message,
// defaulting to 500 for unstructured errors.
func errStatus(err error) (int, string) {
	if apiErr, ok := apierrors.AsAPIError(err); ok {
		return apiErr.StatusCode(), apiErr.Message()
	}
	return http.StatusInternalServerError, "Something went wrong"
}
