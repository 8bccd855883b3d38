package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"video-looper/internal/history"
	"video-looper/internal/mediatypes"
	"video-looper/internal/player"

	"github.com/gorilla/mux"
)

// PlayResponse is returned for an accepted trigger.
type PlayResponse struct {
	Status string `json:"status"`
	Media  string `json:"media"`
}

// HistoryResponse wraps the recent plays.
type HistoryResponse struct {
	Enabled bool            `json:"enabled"`
	Entries []history.Entry `json:"entries"`
}

// GetStatus returns the supervised player's status
func (h *Handlers) GetStatus(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Cache-Control", "no-cache")
	writeJSONStatusCode(w, h.player.Status(), http.StatusOK)
}

// PlayMedia triggers one-shot playback of the media named in the path.
// Playback runs in the background; 202 means the trigger was accepted.
func (h *Handlers) PlayMedia(w http.ResponseWriter, r *http.Request) {
	mediaID := mux.Vars(r)["media"]

	err := h.player.Trigger(mediaID)
	switch {
	case err == nil:
		log.Info("trigger accepted: %s", mediaID)
		writeJSONStatusCode(w, PlayResponse{Status: "accepted", Media: mediaID}, http.StatusAccepted)
	case errors.Is(err, mediatypes.ErrInvalidMedia):
		writeJSONError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, player.ErrDropped):
		writeJSONError(w, "a trigger is already playing", http.StatusConflict)
	case errors.Is(err, player.ErrNotConnected), errors.Is(err, player.ErrStopped):
		writeJSONError(w, "not connected to VLC", http.StatusServiceUnavailable)
	default:
		log.Error("trigger %s: %v", mediaID, err)
		writeJSONError(w, "trigger failed", http.StatusInternalServerError)
	}
}

// GetHistory returns recent trigger playbacks, newest first. The list is
// empty when history is disabled.
func (h *Handlers) GetHistory(w http.ResponseWriter, r *http.Request) {
	limit := history.DefaultLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeJSONError(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = min(n, history.MaxLimit)
	}

	if h.history == nil {
		writeJSONStatusCode(w, HistoryResponse{Entries: []history.Entry{}}, http.StatusOK)
		return
	}

	entries, err := h.history.Recent(r.Context(), limit)
	if err != nil {
		log.Error("failed to read history: %v", err)
		writeJSONError(w, "failed to read history", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []history.Entry{}
	}
	writeJSONStatusCode(w, HistoryResponse{Enabled: true, Entries: entries}, http.StatusOK)
}

// GetHistoryStats returns play counts by outcome.
func (h *Handlers) GetHistoryStats(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeJSONStatusCode(w, history.Stats{ByOutcome: map[string]int64{}}, http.StatusOK)
		return
	}

	stats, err := h.history.Stats(r.Context())
	if err != nil {
		log.Error("failed to read history stats: %v", err)
		writeJSONError(w, "failed to read history stats", http.StatusInternalServerError)
		return
	}
	writeJSONStatusCode(w, stats, http.StatusOK)
}
