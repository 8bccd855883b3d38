package handlers

import (
	"context"

	"video-looper/internal/history"
	"video-looper/internal/logging"
	"video-looper/internal/player"
)

var log = logging.For("http")

// Controller is the part of player.Supervisor the API drives.
type Controller interface {
	Trigger(mediaID string) error
	Status() player.Status
	Connected() bool
}

// HistoryReader reads the play log. It is nil when history is disabled.
type HistoryReader interface {
	Recent(ctx context.Context, limit int) ([]history.Entry, error)
	Stats(ctx context.Context) (history.Stats, error)
}

type Handlers struct {
	player  Controller
	history HistoryReader
	events  *EventHub
}

// New returns handlers for ctrl. hist and events may be nil.
func New(ctrl Controller, hist HistoryReader, events *EventHub) *Handlers {
	return &Handlers{
		player:  ctrl,
		history: hist,
		events:  events,
	}
}
