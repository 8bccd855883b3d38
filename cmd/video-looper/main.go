package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"video-looper/internal/handlers"
	"video-looper/internal/history"
	"video-looper/internal/logging"
	"video-looper/internal/metrics"
	"video-looper/internal/middleware"
	"video-looper/internal/player"
	"video-looper/internal/playlist"
	"video-looper/internal/retry"
	"video-looper/internal/startup"
	"video-looper/internal/vlc"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"
)

const (
	shutdownTimeout   = 30 * time.Second
	collectorInterval = time.Minute
)

func main() {
	startTime := time.Now()

	// Load configuration
	config, err := startup.LoadConfig(os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}
	if config.ShowVersion {
		fmt.Println(startup.GetBuildInfo())
		return
	}

	startup.PrintBanner()
	startup.LogConfig(config)
	startup.SetupDirectories(config)

	metrics.InitializeMetrics()
	metrics.SetAppInfo(startup.Version, startup.Commit, startup.GoVersion)
	vlc.SetObserver(metrics.NewSessionObserver())

	observers := []playlist.Observer{metrics.NewPlaylistObserver()}

	// Initialize play history
	var (
		store     *history.Store
		recorder  *history.Recorder
		reader    handlers.HistoryReader
		collector *metrics.Collector
	)
	if config.HistoryEnabled {
		histStart := time.Now()
		store, err = history.Open(context.Background(), config.DatabasePath)
		if err != nil {
			logging.Error("Failed to open history database, continuing without history: %v", err)
			store = nil
		} else {
			recorder = history.NewRecorder(store, config.HistoryKeep)
			observers = append(observers, recorder)
			reader = store
		}
		startup.LogHistoryInit(store != nil, config.DatabasePath, time.Since(histStart))
	} else {
		startup.LogHistoryInit(false, "", 0)
	}

	events := handlers.NewEventHub()
	observers = append(observers, events)

	// Start the player supervisor in background (non-blocking)
	playerCfg := playerConfig(config)
	startup.LogPlayerConnecting(playerCfg.VLC.Addr(), config.IdleMedia)
	supervisor := player.NewSupervisor(playerCfg, retryConfig(config), player.WithObservers(observers...))

	playerCtx, stopPlayer := context.WithCancel(context.Background())
	playerErr := make(chan error, 1)
	go func() {
		playerErr <- supervisor.Run(playerCtx)
	}()
	go func() {
		connectStart := time.Now()
		select {
		case <-supervisor.Ready():
			startup.LogPlayerConnected(supervisor.Status().ServerVersion, time.Since(connectStart))
		case <-playerCtx.Done():
		}
	}()

	// Start metrics server and collector
	var metricsSrv *http.Server
	if config.MetricsEnabled {
		if store != nil {
			collector = metrics.NewCollector(store, config.DatabasePath, collectorInterval)
			collector.Start()
		}
		metricsSrv = newMetricsServer(config.MetricsPort)
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logging.Error("Metrics server error: %v", err)
			}
		}()
	}

	// Initialize handlers and router
	h := handlers.New(supervisor, reader, events)
	router := setupRouter(h, config.APIPasswordHash)
	startup.LogHTTPRoutes(router, config.APIPasswordHash != "", config.LogHealthChecks)

	srv := &http.Server{
		Addr:         ":" + config.Port,
		Handler:      middleware.Logger(config.LogHealthChecks)(router),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // websocket streams are long-lived
		IdleTimeout:  60 * time.Second,
	}

	exitCode := make(chan int, 1)
	go func() {
		exitCode <- handleShutdown(shutdown{
			server:        srv,
			metricsServer: metricsSrv,
			events:        events,
			stopPlayer:    stopPlayer,
			playerErr:     playerErr,
			recorder:      recorder,
			store:         store,
			collector:     collector,
		})
	}()

	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsPort:     config.MetricsPort,
		MetricsEnabled:  config.MetricsEnabled,
		APIAuthEnabled:  config.APIPasswordHash != "",
		StartupDuration: time.Since(startTime),
	})
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		startup.LogFatal("Server error: %v", err)
	}
	os.Exit(<-exitCode)
}

func playerConfig(config *startup.Config) player.Config {
	return player.Config{
		VLC: vlc.Options{
			Host:     config.VLCHost,
			Port:     config.VLCPort,
			Password: config.VLCPassword,
			Timeout:  config.VLCTimeout,
		},
		MediaDir:  config.MediaDir,
		IdleMedia: config.IdleMedia,
		Playlist: playlist.Config{
			PollInterval: config.PollInterval,
			StartPolls:   config.StartPolls,
			ClearOnStart: config.ClearOnStart,
			Volume:       config.Volume,
		},
		HealthInterval: config.HealthInterval,
	}
}

func retryConfig(config *startup.Config) retry.Config {
	rc := retry.DefaultConfig()
	rc.InitialBackoff = config.ReconnectInitialBackoff
	rc.MaxBackoff = config.ReconnectMaxBackoff
	return rc
}

func setupRouter(h *handlers.Handlers, passwordHash string) *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.Metrics(middleware.DefaultMetricsConfig()))

	// Health check and version routes (no auth required)
	r.HandleFunc("/health", h.HealthCheck).Methods("GET")
	r.HandleFunc("/healthz", h.HealthCheck).Methods("GET")
	r.HandleFunc("/livez", h.LivenessCheck).Methods("GET", "HEAD")
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods("GET")
	r.HandleFunc("/version", h.GetVersion).Methods("GET")

	// Control API
	api := r.PathPrefix("/api").Subrouter()
	api.Use(middleware.BasicAuth(passwordHash))
	api.HandleFunc("/status", h.GetStatus).Methods("GET")
	api.HandleFunc("/play/{media}", h.PlayMedia).Methods("POST")
	api.HandleFunc("/history", h.GetHistory).Methods("GET")
	api.HandleFunc("/history/stats", h.GetHistoryStats).Methods("GET")
	api.HandleFunc("/events", h.Events).Methods("GET")

	return r
}

func newMetricsServer(port string) *http.Server {
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsMux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})

	return &http.Server{
		Addr:         ":" + port,
		Handler:      metricsMux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  30 * time.Second,
	}
}

// shutdown holds what handleShutdown tears down. metricsServer, recorder,
// store and collector may be nil.
type shutdown struct {
	server        *http.Server
	metricsServer *http.Server
	events        *handlers.EventHub
	stopPlayer    context.CancelFunc
	playerErr     <-chan error
	recorder      *history.Recorder
	store         *history.Store
	collector     *metrics.Collector
}

// handleShutdown waits for a signal, or for the supervisor to give up, and
// stops everything. It returns the process exit code.
func handleShutdown(s shutdown) int {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	exitCode := 0
	reason := "player stopped"
	playerRunning := true
	select {
	case sig := <-sigChan:
		reason = "received " + sig.String()
	case err := <-s.playerErr:
		playerRunning = false
		if err != nil {
			logging.Error("Player gave up: %v", err)
			exitCode = 1
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	startup.Shutdown(ctx, reason, s.steps(playerRunning))
	return exitCode
}

// steps lists the shutdown sequence. Hijacked websocket connections are not
// closed by Server.Shutdown, so the event streams go first.
func (s shutdown) steps(playerRunning bool) []startup.ShutdownStep {
	steps := []startup.ShutdownStep{
		{Name: "Event streams closed", Stop: func(context.Context) error {
			s.events.Close()
			return nil
		}},
		{Name: "HTTP server stopped", Stop: s.server.Shutdown},
	}
	if s.metricsServer != nil {
		steps = append(steps, startup.ShutdownStep{Name: "Metrics server stopped", Stop: s.metricsServer.Shutdown})
	}
	steps = append(steps, startup.ShutdownStep{Name: "Player stopped", Stop: func(ctx context.Context) error {
		s.stopPlayer()
		if !playerRunning {
			return nil
		}
		select {
		case err := <-s.playerErr:
			return err
		case <-ctx.Done():
			return fmt.Errorf("waiting for the player: %w", ctx.Err())
		}
	}})
	if s.collector != nil {
		steps = append(steps, startup.ShutdownStep{Name: "Metrics collector stopped", Stop: func(context.Context) error {
			s.collector.Stop()
			return nil
		}})
	}
	if s.recorder != nil {
		steps = append(steps, startup.ShutdownStep{Name: "Play history flushed", Stop: func(context.Context) error {
			s.recorder.Flush()
			return nil
		}})
	}
	if s.store != nil {
		steps = append(steps, startup.ShutdownStep{Name: "History database closed", Stop: func(context.Context) error {
			return s.store.Close()
		}})
	}
	return steps
}
