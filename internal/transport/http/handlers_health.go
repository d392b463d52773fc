package httptransport

import "net/http"

// handleHealth pings every configured backend. The first failing dependency
// is named in the body so operators see what broke without reading logs.
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	for name, check := range h.health {
		if err := check(r.Context()); err != nil {
			h.logger.WarnContext(r.Context(), "health check failed",
				"dependency", name, "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status":     "unhealthy",
				"dependency": name,
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
