package history

import (
	"context"
	"errors"
	"time"

	"video-looper/internal/metrics"
	"video-looper/internal/playlist"
	"video-looper/internal/workers"
)

// recorderQueue bounds how many finished triggers may wait for SQLite.
const recorderQueue = 64

// Recorder is a playlist.Observer that writes every finished trigger to a
// Store. Writes run on their own worker so the synchronizer never waits
// for the database.
type Recorder struct {
	playlist.NopObserver

	store *Store
	keep  int
	jobs  *workers.Dispatcher
}

// NewRecorder returns a Recorder writing to store. When keep is positive
// the log is pruned to the newest keep entries after each write.
func NewRecorder(store *Store, keep int) *Recorder {
	return &Recorder{
		store: store,
		keep:  keep,
		jobs:  workers.NewDispatcher("history", 1, recorderQueue),
	}
}

// TriggerFinished queues an entry for media.
func (r *Recorder) TriggerFinished(media playlist.Media, outcome playlist.Outcome, d time.Duration) {
	e := Entry{
		Title:      media.Title,
		Path:       media.Path,
		Outcome:    string(outcome),
		StartedAt:  time.Now().Add(-d),
		DurationMs: d.Milliseconds(),
	}
	switch err := r.jobs.Submit(func(ctx context.Context) { r.write(ctx, e) }); {
	case errors.Is(err, workers.ErrClosed):
		log.Debug("recorder flushed, not recording %s entry for %s", e.Outcome, e.Title)
	case err != nil:
		log.Warn("write queue full, dropping %s entry for %s", e.Outcome, e.Title)
	}
}

func (r *Recorder) write(ctx context.Context, e Entry) {
	if _, err := r.store.Record(ctx, e); err != nil {
		log.Error("%v", err)
		return
	}
	if r.keep > 0 {
		if _, err := r.store.Prune(ctx, r.keep); err != nil {
			log.Warn("%v", err)
		}
	}
}

// Flush waits until every queued entry is written and stops the writer.
// Entries reported afterwards are dropped.
func (r *Recorder) Flush() {
	r.jobs.Close()
}

// GetStats implements metrics.StatsProvider.
func (s *Store) GetStats() metrics.Stats {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	stats, err := s.Stats(ctx)
	if err != nil {
		log.Warn("failed to collect stats: %v", err)
		return metrics.Stats{}
	}
	return metrics.Stats{
		TotalPlays:     stats.Total,
		PlaysByOutcome: stats.ByOutcome,
	}
}
