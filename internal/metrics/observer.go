package metrics

import (
	"time"

	"video-looper/internal/playlist"
	"video-looper/internal/vlc"
)

// sessionObserver implements vlc.Observer using the Prometheus metrics
// declared in this package.
type sessionObserver struct{}

// NewSessionObserver creates an observer that records VLC session metrics.
// Install it with vlc.SetObserver.
func NewSessionObserver() vlc.Observer {
	return &sessionObserver{}
}

func (o *sessionObserver) ObserveRequest(command string, durationSeconds float64, err error) {
	VLCRequestDuration.WithLabelValues(command).Observe(durationSeconds)
	VLCRequestsTotal.WithLabelValues(command, status(err)).Inc()
}

func (o *sessionObserver) ObserveState(state vlc.State) {
	for _, s := range vlc.States {
		VLCSessionState.WithLabelValues(s.String()).Set(oneHot(s == state))
	}
}

func (o *sessionObserver) ObserveConnect(err error) {
	VLCConnectAttempts.WithLabelValues(status(err)).Inc()
}

// playlistObserver implements playlist.Observer.
type playlistObserver struct{}

// NewPlaylistObserver creates an observer that records synchronizer
// metrics. Pass it to playlist.New.
func NewPlaylistObserver() playlist.Observer {
	return &playlistObserver{}
}

func (o *playlistObserver) StateChanged(_, to playlist.State, _ playlist.Media) {
	for _, s := range playlist.States {
		SyncState.WithLabelValues(s.String()).Set(oneHot(s == to))
	}
}

func (o *playlistObserver) Polled(phase playlist.State) {
	SyncPollsTotal.WithLabelValues(phase.String()).Inc()
}

func (o *playlistObserver) TriggerFinished(_ playlist.Media, outcome playlist.Outcome, d time.Duration) {
	TriggerPlaybacksTotal.WithLabelValues(string(outcome)).Inc()
	if outcome != playlist.OutcomeBusy {
		TriggerDuration.Observe(d.Seconds())
	}
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

func oneHot(active bool) float64 {
	if active {
		return 1
	}
	return 0
}
