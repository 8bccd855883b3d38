package startup

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/pflag"
	"golang.org/x/crypto/bcrypt"

	"video-looper/internal/logging"
	"video-looper/internal/mediatypes"
	"video-looper/internal/vlc"
)

// Config holds all application configuration
type Config struct {
	VLCHost     string
	VLCPort     int
	VLCPassword string
	VLCTimeout  time.Duration

	MediaDir     string
	IdleMedia    string
	PollInterval time.Duration
	StartPolls   int
	ClearOnStart bool
	// Volume is applied at start when positive (0-512, 256 = 100%).
	Volume         int
	HealthInterval time.Duration

	Port            string
	MetricsPort     string
	MetricsEnabled  bool
	APIPasswordHash string

	DatabaseDir    string
	HistoryEnabled bool
	HistoryKeep    int

	ReconnectInitialBackoff time.Duration
	ReconnectMaxBackoff     time.Duration

	LogLevel        string
	LogHealthChecks bool

	// ConfigFile is the TOML file that was read, if any.
	ConfigFile string
	// ShowVersion is set by --version.
	ShowVersion bool

	// Derived paths
	DatabasePath string
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		VLCHost:                 "localhost",
		VLCPort:                 vlc.DefaultPort,
		VLCPassword:             "admin",
		VLCTimeout:              vlc.DefaultTimeout,
		MediaDir:                "/media",
		IdleMedia:               "loop.mp4",
		PollInterval:            2 * time.Second,
		StartPolls:              10,
		ClearOnStart:            true,
		HealthInterval:          30 * time.Second,
		Port:                    "8080",
		MetricsPort:             "9090",
		MetricsEnabled:          true,
		DatabaseDir:             "/database",
		HistoryEnabled:          true,
		HistoryKeep:             10000,
		ReconnectInitialBackoff: time.Second,
		ReconnectMaxBackoff:     30 * time.Second,
		LogHealthChecks:         true,
	}
}

// setting binds one configuration key to its TOML key, environment
// variable and command-line flag. TOML keys are the lower-case env names.
type setting struct {
	env    string
	flag   string
	usage  string
	secret bool
	toggle bool // flag may be given bare, meaning true
	get    func(*Config) string
	set    func(*Config, string) error
}

func (s setting) tomlKey() string {
	return strings.ToLower(s.env)
}

func stringSetting(env, flag, usage string, field func(*Config) *string) setting {
	return setting{
		env: env, flag: flag, usage: usage,
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error { *field(c) = v; return nil },
	}
}

func intSetting(env, flag, usage string, field func(*Config) *int) setting {
	return setting{
		env: env, flag: flag, usage: usage,
		get: func(c *Config) string { return strconv.Itoa(*field(c)) },
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return fmt.Errorf("invalid integer %q", v)
			}
			*field(c) = n
			return nil
		},
	}
}

func boolSetting(env, flag, usage string, field func(*Config) *bool) setting {
	return setting{
		env: env, flag: flag, usage: usage, toggle: true,
		get: func(c *Config) string { return strconv.FormatBool(*field(c)) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				return fmt.Errorf("invalid boolean %q", v)
			}
			*field(c) = b
			return nil
		},
	}
}

func durationSetting(env, flag, usage string, field func(*Config) *time.Duration) setting {
	return setting{
		env: env, flag: flag, usage: usage,
		get: func(c *Config) string { return field(c).String() },
		set: func(c *Config, v string) error {
			d, err := time.ParseDuration(strings.TrimSpace(v))
			if err != nil {
				return fmt.Errorf("invalid duration %q", v)
			}
			*field(c) = d
			return nil
		},
	}
}

func secretSetting(s setting) setting {
	s.secret = true
	return s
}

var settings = []setting{
	stringSetting("VLC_HOST", "vlc-host", "VLC telnet host", func(c *Config) *string { return &c.VLCHost }),
	intSetting("VLC_PORT", "vlc-port", "VLC telnet port", func(c *Config) *int { return &c.VLCPort }),
	secretSetting(stringSetting("VLC_PASSWORD", "vlc-password", "VLC telnet password", func(c *Config) *string { return &c.VLCPassword })),
	durationSetting("VLC_TIMEOUT", "vlc-timeout", "timeout for the handshake and each VLC command", func(c *Config) *time.Duration { return &c.VLCTimeout }),
	stringSetting("MEDIA_DIR", "media-dir", "media directory as seen by VLC", func(c *Config) *string { return &c.MediaDir }),
	stringSetting("IDLE_MEDIA", "idle-media", "idle loop file name inside the media directory", func(c *Config) *string { return &c.IdleMedia }),
	durationSetting("POLL_INTERVAL", "poll-interval", "playlist poll interval while a trigger plays", func(c *Config) *time.Duration { return &c.PollInterval }),
	intSetting("START_POLLS", "start-polls", "polls to wait for a trigger to start", func(c *Config) *int { return &c.StartPolls }),
	boolSetting("CLEAR_ON_START", "clear-on-start", "clear the VLC playlist when connecting", func(c *Config) *bool { return &c.ClearOnStart }),
	intSetting("VOLUME", "volume", "volume set when connecting (0 leaves it, 256 = 100%)", func(c *Config) *int { return &c.Volume }),
	durationSetting("HEALTH_INTERVAL", "health-interval", "idle loop check interval (negative disables)", func(c *Config) *time.Duration { return &c.HealthInterval }),
	stringSetting("PORT", "port", "HTTP API port", func(c *Config) *string { return &c.Port }),
	stringSetting("METRICS_PORT", "metrics-port", "Prometheus metrics port", func(c *Config) *string { return &c.MetricsPort }),
	boolSetting("METRICS_ENABLED", "metrics", "serve Prometheus metrics", func(c *Config) *bool { return &c.MetricsEnabled }),
	secretSetting(stringSetting("API_PASSWORD_HASH", "api-password-hash", "bcrypt hash protecting /api (empty disables auth)", func(c *Config) *string { return &c.APIPasswordHash })),
	stringSetting("DATABASE_DIR", "database-dir", "directory for the play history database", func(c *Config) *string { return &c.DatabaseDir }),
	boolSetting("HISTORY_ENABLED", "history", "record trigger playbacks", func(c *Config) *bool { return &c.HistoryEnabled }),
	intSetting("HISTORY_KEEP", "history-keep", "history entries to keep (0 keeps all)", func(c *Config) *int { return &c.HistoryKeep }),
	durationSetting("RECONNECT_INITIAL_BACKOFF", "reconnect-initial-backoff", "first reconnect delay", func(c *Config) *time.Duration { return &c.ReconnectInitialBackoff }),
	durationSetting("RECONNECT_MAX_BACKOFF", "reconnect-max-backoff", "maximum reconnect delay", func(c *Config) *time.Duration { return &c.ReconnectMaxBackoff }),
	stringSetting("LOG_LEVEL", "log-level", "debug, info, warn or error", func(c *Config) *string { return &c.LogLevel }),
	boolSetting("LOG_HEALTH_CHECKS", "log-health-checks", "log health check requests", func(c *Config) *bool { return &c.LogHealthChecks }),
}

// LoadConfig builds the configuration from, in increasing precedence:
// defaults, the TOML file named by --config or CONFIG_FILE, environment
// variables and command-line flags that were set explicitly.
// It returns pflag.ErrHelp when args ask for help.
func LoadConfig(args []string) (*Config, error) {
	defaults := DefaultConfig()

	fs := pflag.NewFlagSet("video-looper", pflag.ContinueOnError)
	fs.SortFlags = false
	configFlag := fs.StringP("config", "c", "", "TOML configuration file (or CONFIG_FILE)")
	showVersion := fs.BoolP("version", "v", false, "print version and exit")
	for _, s := range settings {
		def := s.get(&defaults)
		if s.secret {
			def = ""
		}
		fs.String(s.flag, def, s.usage+" ("+s.env+")")
		if s.toggle {
			fs.Lookup(s.flag).NoOptDefVal = "true"
		}
	}
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg := defaults
	cfg.ShowVersion = *showVersion
	if cfg.ShowVersion {
		return &cfg, nil
	}

	cfg.ConfigFile = os.Getenv("CONFIG_FILE")
	if fs.Changed("config") {
		cfg.ConfigFile = *configFlag
	}
	if cfg.ConfigFile != "" {
		if err := applyFile(&cfg, cfg.ConfigFile); err != nil {
			return nil, err
		}
	}

	for _, s := range settings {
		v, ok := os.LookupEnv(s.env)
		if !ok || v == "" {
			continue
		}
		if err := s.set(&cfg, v); err != nil {
			return nil, fmt.Errorf("%s: %w", s.env, err)
		}
	}

	for _, s := range settings {
		if !fs.Changed(s.flag) {
			continue
		}
		v, _ := fs.GetString(s.flag)
		if err := s.set(&cfg, v); err != nil {
			return nil, fmt.Errorf("--%s: %w", s.flag, err)
		}
	}

	if cfg.LogLevel != "" {
		level, ok := logging.ParseLevel(cfg.LogLevel)
		if !ok {
			return nil, fmt.Errorf("LOG_LEVEL: unknown level %q", cfg.LogLevel)
		}
		logging.SetLevel(level)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	cfg.DatabasePath = filepath.Join(cfg.DatabaseDir, "history.db")
	return &cfg, nil
}

// applyFile decodes a TOML file of the form
//
//	vlc_host = "kiosk.local"
//	vlc_port = 4212
//	poll_interval = "1s"
//	clear_on_start = false
func applyFile(cfg *Config, path string) error {
	var raw map[string]any
	md, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return fmt.Errorf("reading config file %s: %w", path, err)
	}

	known := make(map[string]setting, len(settings))
	for _, s := range settings {
		known[s.tomlKey()] = s
	}

	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		s, ok := known[k]
		if !ok {
			logging.Warn("config file %s: unknown key %q", path, k)
			continue
		}
		if err := s.set(cfg, fmt.Sprint(raw[k])); err != nil {
			return fmt.Errorf("config file %s: %s (%s): %w", path, k, md.Type(k), err)
		}
	}
	return nil
}

func (c *Config) validate() error {
	var errs []error
	if c.VLCHost == "" {
		errs = append(errs, errors.New("VLC_HOST must not be empty"))
	}
	if c.VLCPort < 1 || c.VLCPort > 65535 {
		errs = append(errs, fmt.Errorf("VLC_PORT %d out of range", c.VLCPort))
	}
	if c.VLCTimeout <= 0 {
		errs = append(errs, errors.New("VLC_TIMEOUT must be positive"))
	}
	if err := mediatypes.Validate(c.IdleMedia); err != nil {
		errs = append(errs, fmt.Errorf("IDLE_MEDIA: %w", err))
	}
	if c.PollInterval <= 0 {
		errs = append(errs, errors.New("POLL_INTERVAL must be positive"))
	}
	if c.StartPolls < 1 {
		errs = append(errs, errors.New("START_POLLS must be at least 1"))
	}
	if c.Volume < 0 || c.Volume > 512 {
		errs = append(errs, fmt.Errorf("VOLUME %d out of range 0-512", c.Volume))
	}
	if c.HistoryKeep < 0 {
		errs = append(errs, errors.New("HISTORY_KEEP must not be negative"))
	}
	if c.ReconnectInitialBackoff <= 0 || c.ReconnectMaxBackoff < c.ReconnectInitialBackoff {
		errs = append(errs, errors.New("reconnect backoff must be positive and max >= initial"))
	}
	if c.APIPasswordHash != "" {
		if _, err := bcrypt.Cost([]byte(c.APIPasswordHash)); err != nil {
			errs = append(errs, fmt.Errorf("API_PASSWORD_HASH is not a bcrypt hash: %w", err))
		}
	}
	for name, port := range map[string]string{"PORT": c.Port, "METRICS_PORT": c.MetricsPort} {
		if n, err := strconv.Atoi(port); err != nil || n < 1 || n > 65535 {
			errs = append(errs, fmt.Errorf("%s %q is not a valid port", name, port))
		}
	}
	return errors.Join(errs...)
}

// LogConfig prints the configuration, hiding secrets.
func LogConfig(cfg *Config) {
	section("CONFIGURATION")
	if cfg.ConfigFile != "" {
		logging.Info("  CONFIG_FILE:               %s", cfg.ConfigFile)
	}
	for _, s := range settings {
		v := s.get(cfg)
		if s.secret && v != "" {
			v = "********"
		}
		logging.Info("  %-26s %s", s.env+":", v)
	}
	logging.Info("  LOG_LEVEL (effective):     %s", logging.GetLevel())
}

// SetupDirectories checks the media directory and prepares the database
// directory. History is disabled when the database directory is not
// writable.
func SetupDirectories(cfg *Config) {
	section("DIRECTORIES")

	// VLC may run on another host, so a missing media directory is fine
	if info, err := os.Stat(cfg.MediaDir); err != nil || !info.IsDir() {
		logging.Info("  Media directory %s is not visible locally", cfg.MediaDir)
	} else {
		logging.Info("  [OK] Media directory: %s", cfg.MediaDir)
		if !fileExists(filepath.Join(cfg.MediaDir, cfg.IdleMedia)) {
			logging.Warn("  Idle media %s not found in %s", cfg.IdleMedia, cfg.MediaDir)
		}
	}

	if !cfg.HistoryEnabled {
		logging.Info("  History: DISABLED")
		return
	}
	if err := writableDir(cfg.DatabaseDir); err != nil {
		logging.Warn("  Database directory %s unusable, history disabled: %v", cfg.DatabaseDir, err)
		cfg.HistoryEnabled = false
		return
	}
	logging.Info("  [OK] Database directory is writable: %s", cfg.DatabaseDir)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
