package startup

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sort"
	"strings"
	"time"

	"video-looper/internal/logging"

	"github.com/gorilla/mux"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetBuildInfo returns the current build information
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

func (b BuildInfo) String() string {
	return fmt.Sprintf("video-looper %s (commit %s, built %s, %s %s/%s)",
		b.Version, b.Commit, b.BuildTime, b.GoVersion, b.OS, b.Arch)
}

const rule = "------------------------------------------------------------"

// section starts a titled block of startup or shutdown output.
func section(title string) {
	logging.Info("")
	logging.Info(rule)
	logging.Info("%s", title)
	logging.Info(rule)
}

const banner = `
------------------------------------------------------------
 __   ___    _            _
 \ \ / (_)__| |___ ___   | |   ___  ___ _ __  ___ _ _
  \ V /| / _' / -_) _ \  | |__/ _ \/ _ \ '_ \/ -_) '_|
   \_/ |_\__,_\___\___/  |____\___/\___/ .__/\___|_|
                                       |_|
------------------------------------------------------------`

// PrintBanner prints the startup banner with build and host details.
func PrintBanner() {
	fmt.Println(banner)
	logging.Info("  %s", GetBuildInfo())
	logging.Info("  CPUs: %d (GOMAXPROCS %d)", runtime.NumCPU(), runtime.GOMAXPROCS(0))
	if host, err := os.Hostname(); err == nil {
		logging.Info("  Host: %s", host)
	}
	logging.Info("  Started: %s", time.Now().Format(time.RFC1123))
	logging.Info("")
}

// LogHistoryInit logs play history initialization
func LogHistoryInit(enabled bool, path string, duration time.Duration) {
	section("HISTORY")
	if !enabled {
		logging.Info("  History disabled, trigger playbacks will not be recorded")
		return
	}
	logging.Info("  [OK] History database %s opened in %v", path, duration)
}

// LogPlayerConnecting logs the start of the VLC connect loop
func LogPlayerConnecting(addr, idle string) {
	section("VLC CONNECTION")
	logging.Info("  VLC telnet:  %s", addr)
	logging.Info("  Idle media:  %s", idle)
	logging.Info("  Connecting (retrying in the background until VLC answers)...")
}

// LogPlayerConnected logs the first successful VLC connection
func LogPlayerConnected(version string, duration time.Duration) {
	logging.Info("  [OK] Connected to VLC %s in %v, idle loop running", version, duration)
}

// apiPrefix is the path prefix guarded by basic auth.
const apiPrefix = "/api"

// Route is one method and path served by the HTTP router.
type Route struct {
	Method string
	Path   string
	API    bool
}

// Routes lists the handler routes of router, public ones first, each group
// sorted by path. Subrouter prefixes are not listed.
func Routes(router *mux.Router) ([]Route, error) {
	var routes []Route
	err := router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		if route.GetHandler() == nil {
			return nil
		}
		path, err := route.GetPathTemplate()
		if err != nil {
			return err
		}
		methods, err := route.GetMethods()
		if err != nil {
			methods = []string{"ANY"}
		}
		api := path == apiPrefix || strings.HasPrefix(path, apiPrefix+"/")
		for _, m := range methods {
			routes = append(routes, Route{Method: m, Path: path, API: api})
		}
		return nil
	})
	sort.SliceStable(routes, func(i, j int) bool {
		if routes[i].API != routes[j].API {
			return !routes[i].API
		}
		return routes[i].Path < routes[j].Path
	})
	return routes, err
}

// LogHTTPRoutes lists the served routes, marking the ones behind basic auth.
func LogHTTPRoutes(router *mux.Router, authEnabled, logHealthChecks bool) {
	section("HTTP ROUTES")
	routes, err := Routes(router)
	if err != nil {
		logging.Warn("  Could not list routes: %v", err)
	}
	for _, rt := range routes {
		guard := ""
		if rt.API && authEnabled {
			guard = "  [auth]"
		}
		logging.Info("  %-5s %s%s", rt.Method, rt.Path, guard)
	}
	if !logHealthChecks {
		logging.Info("  Health check requests are not access-logged")
	}
}

// ServerConfig holds configuration for the server startup log
type ServerConfig struct {
	Port            string
	MetricsPort     string
	MetricsEnabled  bool
	APIAuthEnabled  bool
	StartupDuration time.Duration
}

// LogServerStarted logs the listening addresses once startup is done.
func LogServerStarted(config ServerConfig) {
	section("SERVER STARTED")
	logging.Info("  Startup time:  %v", config.StartupDuration)
	logging.Info("  Control API:   http://localhost:%s/api/status", config.Port)
	if config.APIAuthEnabled {
		logging.Info("  API auth:      basic (bcrypt)")
	} else {
		logging.Info("  API auth:      DISABLED (set API_PASSWORD_HASH to enable)")
	}
	if config.MetricsEnabled {
		logging.Info("  Metrics:       http://localhost:%s/metrics", config.MetricsPort)
	} else {
		logging.Info("  Metrics:       DISABLED")
	}
	logging.Info(rule)
}

// ShutdownStep is one stage of the shutdown sequence.
type ShutdownStep struct {
	Name string
	Stop func(ctx context.Context) error
}

// Shutdown runs steps in order and returns how many of them failed. A
// failed step is logged and does not stop the steps after it.
func Shutdown(ctx context.Context, reason string, steps []ShutdownStep) int {
	section("SHUTDOWN (" + reason + ")")
	failed := 0
	for _, step := range steps {
		start := time.Now()
		if err := step.Stop(ctx); err != nil {
			failed++
			logging.Warn("  [FAILED] %s: %v", step.Name, err)
			continue
		}
		logging.Info("  [OK] %s (%v)", step.Name, time.Since(start).Round(time.Millisecond))
	}
	logging.Info("  Shutdown complete")
	return failed
}

// LogFatal logs a fatal error and exits
func LogFatal(format string, args ...interface{}) {
	logging.Fatal(format, args...)
}

// writableDir creates dir when missing and checks a file can be created in it.
func writableDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, ".write-check-*")
	if err != nil {
		return fmt.Errorf("not writable: %w", err)
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}
