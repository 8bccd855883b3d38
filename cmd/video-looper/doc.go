// Package main provides the entry point for the video looper daemon.
//
// The daemon keeps an idle clip looping in a VLC instance controlled over
// its telnet interface and plays one-shot trigger media on request,
// returning to the idle loop when each trigger ends.
//
// # Application Lifecycle
//
// The application follows a structured initialization sequence:
//
//  1. Configuration Loading: defaults, optional TOML file, environment, flags
//  2. Directory Setup: checks the media directory, prepares the database directory
//  3. History Initialization: opens the SQLite play log (if enabled)
//  4. Player Supervisor: connects to VLC in the background and reconnects
//     with backoff whenever the session is lost
//  5. HTTP Server Setup: configures routes and middleware, starts servers
//  6. Graceful Shutdown: handles SIGINT/SIGTERM, stops all components cleanly
//
// The HTTP server starts before VLC is reachable. /readyz reports 503 and
// /api/play answers 503 until the first session is up.
//
// # HTTP Server
//
// The application runs two HTTP servers:
//
//  1. Main Server (default port 8080):
//     - Health, liveness, readiness and version endpoints
//     - Control API under /api (basic auth when API_PASSWORD_HASH is set)
//     - Websocket event feed at /api/events
//
//  2. Metrics Server (default port 9090, optional):
//     - Prometheus metrics endpoint (/metrics)
//     - Health check endpoint (/health)
//
// # Environment Variables
//
// Every setting can come from the environment, a TOML file or a flag.
// The most common ones:
//
//   - VLC_HOST, VLC_PORT, VLC_PASSWORD: the VLC telnet interface
//   - MEDIA_DIR: directory VLC reads media from (default: /media)
//   - IDLE_MEDIA: file looped while no trigger plays (default: loop.mp4)
//   - POLL_INTERVAL: playlist poll interval (default: 2s)
//   - PORT: main HTTP server port (default: 8080)
//   - METRICS_PORT: metrics server port (default: 9090)
//   - DATABASE_DIR: directory for the play history database
//   - API_PASSWORD_HASH: bcrypt hash protecting /api (see vlcctl hash-password)
//   - LOG_LEVEL: logging level (debug/info/warn/error)
//
// Run with --help for the full list.
//
// # Graceful Shutdown
//
// On SIGINT or SIGTERM, or when the supervisor gives up (for example on
// a wrong VLC password), the daemon closes websocket streams, stops both
// HTTP servers, stops playback, flushes queued history writes and closes
// the database. A supervisor failure exits with status 1.
package main
