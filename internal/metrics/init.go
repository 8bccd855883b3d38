package metrics

import (
	"video-looper/internal/playlist"
	"video-looper/internal/vlc"
)

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics() {
	// --- VLC commands ---
	for _, cmd := range vlc.CommandLabels() {
		VLCRequestsTotal.WithLabelValues(cmd, "success")
		VLCRequestsTotal.WithLabelValues(cmd, "error")
		VLCRequestDuration.WithLabelValues(cmd)
	}
	for _, s := range vlc.States {
		VLCSessionState.WithLabelValues(s.String()).Set(oneHot(s == vlc.Disconnected))
	}
	VLCConnectAttempts.WithLabelValues("success")
	VLCConnectAttempts.WithLabelValues("error")

	// --- Synchronizer ---
	for _, s := range playlist.States {
		SyncState.WithLabelValues(s.String())
	}
	for _, phase := range []playlist.State{playlist.AwaitingTriggerStart, playlist.AwaitingTriggerEnd} {
		SyncPollsTotal.WithLabelValues(phase.String())
	}
	for _, o := range playlist.Outcomes {
		TriggerPlaybacksTotal.WithLabelValues(string(o))
		HistoryEntries.WithLabelValues(string(o))
	}

	// --- Retry ---
	for _, op := range []string{"connect"} {
		RetryAttempts.WithLabelValues(op)
		RetrySuccess.WithLabelValues(op)
		RetryFailures.WithLabelValues(op)
		RetryDuration.WithLabelValues(op)
	}

	// --- History queries ---
	for _, op := range []string{"record", "recent", "stats", "prune"} {
		DBQueryTotal.WithLabelValues(op, "success")
		DBQueryTotal.WithLabelValues(op, "error")
		DBQueryDuration.WithLabelValues(op)
	}
	for _, file := range []string{"main", "wal", "shm"} {
		DBSizeBytes.WithLabelValues(file)
	}
}
