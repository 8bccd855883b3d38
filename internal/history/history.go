package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // SQLite3 driver

	"video-looper/internal/logging"
	"video-looper/internal/metrics"
)

// Default timeout for database operations
const defaultTimeout = 5 * time.Second

// DefaultLimit is used by Recent when limit is not positive.
const DefaultLimit = 50

// MaxLimit caps the number of entries Recent returns.
const MaxLimit = 1000

var log = logging.For("history")

// ErrClosed is returned by operations on a closed Store.
var ErrClosed = errors.New("history store closed")

// Entry is one finished trigger playback.
type Entry struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Path      string    `json:"path"`
	Outcome   string    `json:"outcome"`
	StartedAt time.Time `json:"startedAt"`

	// DurationMs is how long the trigger held the screen.
	DurationMs int64 `json:"durationMs"`
}

// Duration returns DurationMs as a time.Duration.
func (e Entry) Duration() time.Duration {
	return time.Duration(e.DurationMs) * time.Millisecond
}

// Stats summarizes the play log.
type Stats struct {
	Total      int64            `json:"total"`
	ByOutcome  map[string]int64 `json:"byOutcome"`
	LastPlayed time.Time        `json:"lastPlayed,omitzero"`
}

// Store is the SQLite backed play log.
type Store struct {
	db     *sql.DB
	dbPath string
	mu     sync.RWMutex
	closed bool
}

// Open opens (creating if needed) the database file at dbPath.
// The parent directory must already exist.
func Open(ctx context.Context, dbPath string) (*Store, error) {
	log.Info("Database path: %s", dbPath)

	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			log.Error("failed to close database after ping failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// one writer at a time keeps SQLite out of "database is locked"
	db.SetMaxOpenConns(1)

	s := &Store{db: db, dbPath: dbPath}
	if err := s.initialize(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			log.Error("failed to close database after initialization failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	log.Info("History initialized at %s", dbPath)
	return s, nil
}

func (s *Store) initialize(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS plays (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		path TEXT NOT NULL,
		outcome TEXT NOT NULL,
		started_at INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_plays_started_at ON plays(started_at);
	CREATE INDEX IF NOT EXISTS idx_plays_outcome ON plays(outcome);
	`

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return err
	}
	return s.runMigrations(ctx)
}

// runMigrations applies schema changes to databases created by older builds.
func (s *Store) runMigrations(ctx context.Context) error {
	var columnExists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) > 0
		FROM pragma_table_info('plays')
		WHERE name='duration_ms'
	`).Scan(&columnExists)
	if err != nil {
		return fmt.Errorf("failed to check for duration_ms column: %w", err)
	}

	if !columnExists {
		log.Info("Migrating database: adding duration_ms column to plays table")
		if _, err := s.db.ExecContext(ctx, `ALTER TABLE plays ADD COLUMN duration_ms INTEGER NOT NULL DEFAULT 0`); err != nil {
			return fmt.Errorf("failed to add duration_ms column: %w", err)
		}
	}
	return nil
}

// Record stores e. An empty ID is replaced by a new UUID and a zero
// StartedAt by the current time. The stored entry is returned.
func (s *Store) Record(ctx context.Context, e Entry) (Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return Entry{}, ErrClosed
	}

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.StartedAt.IsZero() {
		e.StartedAt = time.Now()
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	start := time.Now()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO plays (id, title, path, outcome, started_at, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?)
	`, e.ID, e.Title, e.Path, e.Outcome, e.StartedAt.UnixMilli(), e.DurationMs)
	recordQuery("record", start, err)
	if err != nil {
		return Entry{}, fmt.Errorf("failed to record play %s: %w", e.Title, err)
	}
	return e, nil
}

// Recent returns up to limit entries, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	start := time.Now()
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, path, outcome, started_at, duration_ms
		FROM plays
		ORDER BY started_at DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		recordQuery("recent", start, err)
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0, limit)
	for rows.Next() {
		var e Entry
		var startedAt int64
		if err := rows.Scan(&e.ID, &e.Title, &e.Path, &e.Outcome, &startedAt, &e.DurationMs); err != nil {
			recordQuery("recent", start, err)
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		e.StartedAt = time.UnixMilli(startedAt)
		entries = append(entries, e)
	}
	err = rows.Err()
	recordQuery("recent", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}
	return entries, nil
}

// Stats counts entries per outcome.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return Stats{}, ErrClosed
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	start := time.Now()
	rows, err := s.db.QueryContext(ctx, `
		SELECT outcome, COUNT(*), MAX(started_at)
		FROM plays
		GROUP BY outcome
	`)
	if err != nil {
		recordQuery("stats", start, err)
		return Stats{}, fmt.Errorf("failed to query stats: %w", err)
	}
	defer rows.Close()

	stats := Stats{ByOutcome: make(map[string]int64)}
	var last int64
	for rows.Next() {
		var outcome string
		var count, latest int64
		if err := rows.Scan(&outcome, &count, &latest); err != nil {
			recordQuery("stats", start, err)
			return Stats{}, fmt.Errorf("failed to scan stats row: %w", err)
		}
		stats.ByOutcome[outcome] = count
		stats.Total += count
		if latest > last {
			last = latest
		}
	}
	err = rows.Err()
	recordQuery("stats", start, err)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to read stats: %w", err)
	}
	if last > 0 {
		stats.LastPlayed = time.UnixMilli(last)
	}
	return stats, nil
}

// Prune deletes all but the newest keep entries and returns how many rows
// were removed.
func (s *Store) Prune(ctx context.Context, keep int) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, ErrClosed
	}
	if keep < 0 {
		keep = 0
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	start := time.Now()
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM plays WHERE rowid NOT IN (
			SELECT rowid FROM plays ORDER BY started_at DESC, rowid DESC LIMIT ?
		)
	`, keep)
	recordQuery("prune", start, err)
	if err != nil {
		return 0, fmt.Errorf("failed to prune history: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to prune history: %w", err)
	}
	if n > 0 {
		log.Debug("pruned %d entries", n)
	}
	return n, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.dbPath
}

// Close closes the database. It is safe to call more than once.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func recordQuery(operation string, start time.Time, err error) {
	duration := time.Since(start).Seconds()
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.DBQueryTotal.WithLabelValues(operation, status).Inc()
	metrics.DBQueryDuration.WithLabelValues(operation).Observe(duration)
}
