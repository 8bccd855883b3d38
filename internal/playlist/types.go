package playlist

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"video-looper/internal/vlc"
)

var (
	// ErrBusy is returned when a trigger is already in flight.
	ErrBusy = errors.New("playlist: trigger already in progress")
	// ErrMediaNotFound is returned when an enqueued title never shows up
	// in a playlist search.
	ErrMediaNotFound = errors.New("playlist: media not found")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("playlist: synchronizer closed")
	// ErrIdleMedia is returned when the idle media itself is triggered.
	ErrIdleMedia = errors.New("playlist: media is the idle loop")
)

const (
	DefaultPollInterval    = 2 * time.Second
	DefaultStartPolls      = 10
	DefaultResolveAttempts = 3
	DefaultResolveDelay    = 250 * time.Millisecond
	DefaultCleanupTimeout  = 5 * time.Second

	// maxReconcileSteps bounds the delete/re-search loops.
	maxReconcileSteps = 16
)

// Client is the subset of VLC commands the synchronizer issues.
// *vlc.Session satisfies it.
type Client interface {
	Enqueue(ctx context.Context, path string) error
	Delete(ctx context.Context, slot vlc.Slot) error
	Search(ctx context.Context, query string) (string, error)
	ResetSearch(ctx context.Context) error
	Goto(ctx context.Context, slot vlc.Slot) error
	Play(ctx context.Context) error
	Loop(ctx context.Context, on bool) error
	Clear(ctx context.Context) error
	Playlist(ctx context.Context) (string, error)
	SetVolume(ctx context.Context, volume int) error
}

// Media is a playable item. Path is what gets enqueued; Title is what VLC
// lists it as and what searches match.
type Media struct {
	Path  string `json:"path"`
	Title string `json:"title"`
}

// NewMedia builds a Media titled by the file name of path.
func NewMedia(path string) Media {
	return Media{Path: path, Title: filepath.Base(path)}
}

func (m Media) String() string {
	return m.Title
}

// Config tunes the synchronizer. Zero values take the defaults above.
type Config struct {
	// Idle is the media looped whenever no trigger plays.
	Idle Media
	// PollInterval is the wait between playlist polls.
	PollInterval time.Duration
	// StartPolls bounds how long a jump may take to be confirmed.
	StartPolls int
	// ResolveAttempts bounds the searches for a freshly enqueued title.
	// VLC adds items asynchronously, so the first search can miss.
	ResolveAttempts int
	// ResolveDelay is the wait between resolve attempts.
	ResolveDelay time.Duration
	// CleanupTimeout bounds best-effort cleanup after cancellation.
	CleanupTimeout time.Duration
	// ClearOnStart empties the playlist in Start.
	ClearOnStart bool
	// Volume is applied by Start when positive (0-512, 256 = 100%).
	Volume int
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.StartPolls <= 0 {
		c.StartPolls = DefaultStartPolls
	}
	if c.ResolveAttempts <= 0 {
		c.ResolveAttempts = DefaultResolveAttempts
	}
	if c.ResolveDelay <= 0 {
		c.ResolveDelay = DefaultResolveDelay
	}
	if c.CleanupTimeout <= 0 {
		c.CleanupTimeout = DefaultCleanupTimeout
	}
	return c
}

func (c Config) validate() error {
	if c.Idle.Path == "" || c.Idle.Title == "" {
		return fmt.Errorf("playlist: idle media is required")
	}
	return nil
}

// State is the synchronizer state.
type State int

const (
	Idle State = iota
	InsertingTrigger
	AwaitingTriggerStart
	PlayingTrigger
	AwaitingTriggerEnd
	Cleanup
	Closed
)

// States lists every state, in order.
var States = []State{Idle, InsertingTrigger, AwaitingTriggerStart, PlayingTrigger, AwaitingTriggerEnd, Cleanup, Closed}

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case InsertingTrigger:
		return "inserting_trigger"
	case AwaitingTriggerStart:
		return "awaiting_trigger_start"
	case PlayingTrigger:
		return "playing_trigger"
	case AwaitingTriggerEnd:
		return "awaiting_trigger_end"
	case Cleanup:
		return "cleanup"
	case Closed:
		return "closed"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// MarshalText lets State appear by name in JSON.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Trigger is the one-shot playback in flight.
type Trigger struct {
	Media    Media     `json:"media"`
	Slot     vlc.Slot  `json:"slot,omitempty"`
	Resolved bool      `json:"resolved"`
	Started  time.Time `json:"started"`
}

// Outcome classifies a finished trigger.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeBusy      Outcome = "busy"
	OutcomeNotFound  Outcome = "not_found"
	OutcomeCancelled Outcome = "cancelled"
	OutcomeFailed    Outcome = "failed"
)

// Outcomes lists every outcome.
var Outcomes = []Outcome{OutcomeCompleted, OutcomeBusy, OutcomeNotFound, OutcomeCancelled, OutcomeFailed}

// OutcomeOf maps the error returned by PlayTriggered to an Outcome.
func OutcomeOf(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeCompleted
	case errors.Is(err, ErrBusy):
		return OutcomeBusy
	case errors.Is(err, ErrMediaNotFound):
		return OutcomeNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded), errors.Is(err, ErrClosed):
		return OutcomeCancelled
	default:
		return OutcomeFailed
	}
}

// Observer is notified of synchronizer activity. Calls are made from the
// goroutine running the operation and must not block.
type Observer interface {
	StateChanged(from, to State, media Media)
	Polled(phase State)
	TriggerFinished(media Media, outcome Outcome, duration time.Duration)
}

// NopObserver ignores every notification. Embed it to implement only
// part of Observer.
type NopObserver struct{}

func (NopObserver) StateChanged(State, State, Media) {}

func (NopObserver) Polled(State) {}

func (NopObserver) TriggerFinished(Media, Outcome, time.Duration) {}
