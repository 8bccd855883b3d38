package handlers

import (
	"net/http"

	"video-looper/internal/startup"
)

// GetVersion returns the application version and build information
func (h *Handlers) GetVersion(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Cache-Control", "no-cache")
	writeJSONStatusCode(w, startup.GetBuildInfo(), http.StatusOK)
}
