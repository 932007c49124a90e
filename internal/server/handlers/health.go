// Liveness endpoint.

package handlers

import (
	"encoding/json"
	"net/http"
)

// Health reports liveness plus a couple of cheap gauges.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":          "ok",
		"users":           h.Users.Count(),
		"active_sessions": h.Sessions.CountActive(),
	})
}
