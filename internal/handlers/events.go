package handlers

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"video-looper/internal/metrics"
	"video-looper/internal/player"
	"video-looper/internal/playlist"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

const (
	eventBuffer       = 16
	eventWriteTimeout = 5 * time.Second
)

// Event types sent on /api/events.
const (
	EventStatus   = "status"
	EventState    = "state"
	EventFinished = "finished"
)

// Event is one message on the websocket feed.
type Event struct {
	Type       string         `json:"type"`
	Time       time.Time      `json:"time"`
	From       string         `json:"from,omitempty"`
	To         string         `json:"to,omitempty"`
	Media      string         `json:"media,omitempty"`
	Outcome    string         `json:"outcome,omitempty"`
	DurationMs int64          `json:"durationMs,omitempty"`
	Status     *player.Status `json:"status,omitempty"`
}

// EventHub fans synchronizer notifications out to websocket clients. A
// client that falls behind loses events instead of stalling the trigger.
type EventHub struct {
	playlist.NopObserver

	mu      sync.Mutex
	subs    map[chan Event]struct{}
	closed  bool
	dropped atomic.Uint64
}

// NewEventHub returns an empty hub.
func NewEventHub() *EventHub {
	return &EventHub{subs: make(map[chan Event]struct{})}
}

// Subscribe registers a client. The channel is closed by Close or by the
// returned cancel func.
func (hub *EventHub) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, eventBuffer)

	hub.mu.Lock()
	defer hub.mu.Unlock()
	if hub.closed {
		close(ch)
		return ch, func() {}
	}
	hub.subs[ch] = struct{}{}

	return ch, func() {
		hub.mu.Lock()
		defer hub.mu.Unlock()
		if _, ok := hub.subs[ch]; ok {
			delete(hub.subs, ch)
			close(ch)
		}
	}
}

// Clients returns the number of subscribers.
func (hub *EventHub) Clients() int {
	hub.mu.Lock()
	defer hub.mu.Unlock()
	return len(hub.subs)
}

// Dropped returns how many events were lost to slow clients.
func (hub *EventHub) Dropped() uint64 {
	return hub.dropped.Load()
}

// Close disconnects every subscriber. Later events are discarded.
func (hub *EventHub) Close() {
	hub.mu.Lock()
	defer hub.mu.Unlock()
	if hub.closed {
		return
	}
	hub.closed = true
	for ch := range hub.subs {
		delete(hub.subs, ch)
		close(ch)
	}
}

func (hub *EventHub) publish(ev Event) {
	hub.mu.Lock()
	defer hub.mu.Unlock()
	for ch := range hub.subs {
		select {
		case ch <- ev:
		default:
			hub.dropped.Add(1)
		}
	}
}

func (hub *EventHub) StateChanged(from, to playlist.State, media playlist.Media) {
	hub.publish(Event{
		Type:  EventState,
		Time:  time.Now(),
		From:  from.String(),
		To:    to.String(),
		Media: media.Title,
	})
}

func (hub *EventHub) TriggerFinished(media playlist.Media, outcome playlist.Outcome, d time.Duration) {
	hub.publish(Event{
		Type:       EventFinished,
		Time:       time.Now(),
		Media:      media.Title,
		Outcome:    string(outcome),
		DurationMs: d.Milliseconds(),
	})
}

// Events streams synchronizer events over a websocket. The first message
// is a status snapshot.
func (h *Handlers) Events(w http.ResponseWriter, r *http.Request) {
	if h.events == nil {
		writeJSONError(w, "event stream disabled", http.StatusNotFound)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// read-only feed, dashboards may be served from elsewhere
		InsecureSkipVerify: true,
	})
	if err != nil {
		log.Warn("websocket accept failed: %v", err)
		return
	}
	defer conn.CloseNow()

	// Clients never send; CloseRead handles pings and notices disconnects.
	ctx := conn.CloseRead(r.Context())

	events, cancel := h.events.Subscribe()
	defer cancel()

	metrics.WebsocketClients.Inc()
	defer metrics.WebsocketClients.Dec()

	st := h.player.Status()
	if err := writeEvent(ctx, conn, Event{Type: EventStatus, Time: time.Now(), Status: &st}); err != nil {
		log.Debug("websocket write failed: %v", err)
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				conn.Close(websocket.StatusGoingAway, "server shutting down")
				return
			}
			if err := writeEvent(ctx, conn, ev); err != nil {
				log.Debug("websocket write failed: %v", err)
				return
			}
		}
	}
}

func writeEvent(ctx context.Context, conn *websocket.Conn, ev Event) error {
	ctx, cancel := context.WithTimeout(ctx, eventWriteTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, ev)
}
