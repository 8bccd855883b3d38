// Package startup handles application initialization, configuration loading,
// and startup/shutdown logging.
//
// # Configuration
//
// [LoadConfig] layers its sources, each overriding the previous one:
//
//  1. built-in defaults ([DefaultConfig])
//  2. a TOML file named by --config or CONFIG_FILE
//  3. environment variables
//  4. command-line flags that were set explicitly
//
// Every key has all three spellings. The TOML key is the lower-case
// environment name:
//
//	# /etc/video-looper.toml
//	vlc_host = "kiosk.local"
//	idle_media = "attract.mp4"
//	poll_interval = "1s"
//
//	VLC_HOST=kiosk.local IDLE_MEDIA=attract.mp4 video-looper
//	video-looper --vlc-host kiosk.local --idle-media attract.mp4
//
// Boolean flags may be given bare: --metrics is --metrics=true.
//
// Supported keys:
//
//   - VLC_HOST, VLC_PORT, VLC_PASSWORD, VLC_TIMEOUT: VLC telnet interface
//     (localhost, 4212, admin, 5s)
//   - MEDIA_DIR: media directory as VLC sees it (default: /media)
//   - IDLE_MEDIA: idle loop file name (default: loop.mp4)
//   - POLL_INTERVAL, START_POLLS: trigger polling (2s, 10)
//   - CLEAR_ON_START: clear VLC's playlist on connect (default: true)
//   - VOLUME: volume applied on connect, 0 leaves it alone (default: 0)
//   - HEALTH_INTERVAL: idle loop check interval (default: 30s)
//   - PORT, METRICS_PORT, METRICS_ENABLED: HTTP servers (8080, 9090, true)
//   - API_PASSWORD_HASH: bcrypt hash enabling basic auth on /api
//   - DATABASE_DIR, HISTORY_ENABLED, HISTORY_KEEP: play history
//     (/database, true, 10000)
//   - RECONNECT_INITIAL_BACKOFF, RECONNECT_MAX_BACKOFF: reconnect delays
//     (1s, 30s)
//   - LOG_LEVEL, LOG_HEALTH_CHECKS: logging (info, true)
//
// # Directory Setup
//
// [SetupDirectories] creates the database directory and checks that it is
// writable. Unlike the media directory, which may only exist on the VLC
// host, an unusable database directory disables history.
//
// # Build Information
//
// Build-time variables are injected via ldflags and exposed via [GetBuildInfo]:
//
//	go build -ldflags "-X video-looper/internal/startup.Version=1.2.0"
//
// # Lifecycle Logging
//
//   - [PrintBanner]: banner, build and system information
//   - [LogConfig]: effective configuration, secrets masked
//   - [LogHistoryInit]: history database setup
//   - [LogPlayerConnecting], [LogPlayerConnected]: VLC connection
//   - [LogHTTPRoutes]: served routes, the basic-auth ones marked
//   - [LogServerStarted]: endpoints and startup duration
//
// # Shutdown
//
// [Shutdown] runs a list of [ShutdownStep] values in order and logs each
// one. A failing step does not stop the rest:
//
//	startup.Shutdown(ctx, "received terminated", []startup.ShutdownStep{
//		{Name: "HTTP server stopped", Stop: srv.Shutdown},
//		{Name: "History database closed", Stop: func(context.Context) error { return store.Close() }},
//	})
package startup
