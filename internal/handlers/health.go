package handlers

import (
	"net/http"
	"runtime"
	"time"

	"video-looper/internal/startup"
)

const (
	statusHealthy  = "healthy"
	statusDegraded = "degraded"
)

var startTime = time.Now()

// HealthResponse contains the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Connected bool   `json:"connected"`
	Version   string `json:"version"`
	Uptime    string `json:"uptime"`
	Session   string `json:"session"`
	State     string `json:"state"`
	LastError string `json:"lastError,omitempty"`

	// System info
	GoVersion    string `json:"goVersion"`
	NumGoroutine int    `json:"numGoroutine"`
}

// HealthCheck reports whether VLC is connected. The process itself is up,
// so it always answers 200; use /readyz to gate on the VLC connection.
func (h *Handlers) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	st := h.player.Status()

	response := HealthResponse{
		Status:       statusHealthy,
		Connected:    st.Connected,
		Version:      startup.Version,
		Uptime:       time.Since(startTime).Round(time.Second).String(),
		Session:      st.Session,
		State:        st.State.String(),
		LastError:    st.LastError,
		GoVersion:    runtime.Version(),
		NumGoroutine: runtime.NumGoroutine(),
	}
	if !st.Connected {
		response.Status = statusDegraded
	}

	writeJSONStatusCode(w, response, http.StatusOK)
}

// LivenessCheck is a simple liveness probe (always returns 200 if server is running)
func (h *Handlers) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	// For HEAD requests, only send headers (no body)
	if r.Method != http.MethodHead {
		writeJSON(w, map[string]string{
			"status": "alive",
		})
	}
}

// ReadinessCheck returns 200 only while a VLC session is up
func (h *Handlers) ReadinessCheck(w http.ResponseWriter, _ *http.Request) {
	if h.player.Connected() {
		writeJSONStatus(w, "ready", http.StatusOK)
		return
	}
	writeJSONStatus(w, "not_ready", http.StatusServiceUnavailable)
}
