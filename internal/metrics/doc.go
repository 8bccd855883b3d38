// Package metrics provides Prometheus instrumentation for video-looper.
//
// All metrics are registered with the default registry through promauto
// and are prefixed with "video_looper_".
//
// # Metric Categories
//
// ## HTTP Metrics
//
//   - HTTPRequestsTotal: Counter of requests by method, path and status
//   - HTTPRequestDuration: Histogram of request duration by method and path
//   - HTTPRequestsInFlight: Gauge of requests being processed
//   - WebsocketClients: Gauge of connected event stream clients
//
// ## VLC Metrics
//
//   - VLCRequestsTotal: Counter of commands by command name and status
//   - VLCRequestDuration: Histogram of command round trips
//   - VLCSessionState: One-hot gauge of the session state
//   - VLCConnectAttempts: Counter of dials by status
//
// ## Synchronizer Metrics
//
//   - SyncState: One-hot gauge of the synchronizer state
//   - SyncPollsTotal: Counter of playlist polls by phase
//   - TriggerPlaybacksTotal: Counter of finished triggers by outcome
//   - TriggerDuration: Histogram of trigger durations (busy excluded)
//   - TriggersDropped: Counter of triggers dropped at the input
//
// ## Retry Metrics
//
//   - RetryAttempts, RetrySuccess, RetryFailures, RetryDuration by operation
//
// ## History Metrics
//
//   - DBQueryTotal / DBQueryDuration: history queries by operation
//   - DBSizeBytes: size of the database, WAL and SHM files
//   - HistoryEntries: stored entries by outcome
//
// ## Application Info
//
//   - AppInfo: version, commit and Go version labels
//
// # Observers
//
// The vlc and playlist packages do not import this package. Their
// metrics are recorded through observers:
//
//	vlc.SetObserver(metrics.NewSessionObserver())
//	syncer, err := playlist.New(client, cfg, metrics.NewPlaylistObserver())
//
// # Collector
//
// Collector refreshes gauges that are read rather than counted (history
// entries, database file sizes) on a ticker:
//
//	c := metrics.NewCollector(store, store.Path(), time.Minute)
//	c.Start()
//	defer c.Stop()
//
// Call InitializeMetrics once at startup so every label set is exported
// from the first scrape.
package metrics
