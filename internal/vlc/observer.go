package vlc

import "sync"

// Observer records session metrics. Implementations are provided by the
// metrics package to break the import cycle between vlc and metrics.
type Observer interface {
	// ObserveRequest records one request/reply exchange. command is the
	// bounded command name ("playlist", "goto", ... or "other").
	ObserveRequest(command string, durationSeconds float64, err error)

	// ObserveState records a session lifecycle transition.
	ObserveState(state State)

	// ObserveConnect records the outcome of a Dial.
	ObserveConnect(err error)
}

var (
	observerMu      sync.RWMutex
	defaultObserver Observer
)

// SetObserver sets the package-level metrics observer.
// If nil, metric recording is silently skipped (safe for tests).
func SetObserver(o Observer) {
	observerMu.Lock()
	defaultObserver = o
	observerMu.Unlock()
}

func observe() Observer {
	observerMu.RLock()
	defer observerMu.RUnlock()
	return defaultObserver
}

func observeRequest(command string, durationSeconds float64, err error) {
	if o := observe(); o != nil {
		o.ObserveRequest(command, durationSeconds, err)
	}
}

func observeState(state State) {
	if o := observe(); o != nil {
		o.ObserveState(state)
	}
}

func observeConnect(err error) {
	if o := observe(); o != nil {
		o.ObserveConnect(err)
	}
}
