package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_looper_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "video_looper_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "video_looper_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	WebsocketClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "video_looper_websocket_clients",
			Help: "Number of connected /api/events websocket clients",
		},
	)
)

// VLC session metrics
var (
	VLCRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_looper_vlc_requests_total",
			Help: "Total number of commands sent to VLC",
		},
		[]string{"command", "status"},
	)

	VLCRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "video_looper_vlc_request_duration_seconds",
			Help:    "Round trip time of VLC commands in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"command"},
	)

	VLCSessionState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "video_looper_vlc_session_state",
			Help: "Current VLC session state (1 for the active state, 0 otherwise)",
		},
		[]string{"state"},
	)

	VLCConnectAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_looper_vlc_connect_attempts_total",
			Help: "Total number of VLC connection attempts",
		},
		[]string{"status"},
	)
)

// Playlist synchronizer metrics
var (
	SyncState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "video_looper_sync_state",
			Help: "Current synchronizer state (1 for the active state, 0 otherwise)",
		},
		[]string{"state"},
	)

	SyncPollsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_looper_sync_polls_total",
			Help: "Total number of playlist polls by phase",
		},
		[]string{"phase"},
	)

	TriggerPlaybacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_looper_trigger_playbacks_total",
			Help: "Total number of trigger playbacks by outcome",
		},
		[]string{"outcome"},
	)

	TriggerDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "video_looper_trigger_duration_seconds",
			Help:    "Time from trigger request to idle restored in seconds",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
		},
	)

	TriggersDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "video_looper_triggers_dropped_total",
			Help: "Total number of triggers dropped because one was already running",
		},
	)
)

// Retry metrics
var (
	RetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_looper_retry_attempts_total",
			Help: "Total number of retried attempts by operation",
		},
		[]string{"operation"},
	)

	RetrySuccess = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_looper_retry_success_total",
			Help: "Total number of operations that succeeded after at least one retry",
		},
		[]string{"operation"},
	)

	RetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_looper_retry_failures_total",
			Help: "Total number of operations that failed after retrying",
		},
		[]string{"operation"},
	)

	RetryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "video_looper_retry_duration_seconds",
			Help:    "Total time spent in retried operations in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 300},
		},
		[]string{"operation"},
	)
)

// History database metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_looper_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "video_looper_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	DBSizeBytes = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "video_looper_db_size_bytes",
			Help: "Size of the history database files in bytes",
		},
		[]string{"file"},
	)

	HistoryEntries = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "video_looper_history_entries",
			Help: "Number of play history entries by outcome",
		},
		[]string{"outcome"},
	)
)

// Application info
var (
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "video_looper_app_info",
			Help: "Application information",
		},
		[]string{"version", "commit", "go_version"},
	)
)

// SetAppInfo sets the application info metric
func SetAppInfo(version, commit, goVersion string) {
	AppInfo.WithLabelValues(version, commit, goVersion).Set(1)
}
