package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"video-looper/internal/history"
	"video-looper/internal/mediatypes"
	"video-looper/internal/vlc"

	"github.com/spf13/pflag"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"
)

const (
	// Default timeout for VLC and API requests
	defaultTimeout = 10 * time.Second
	// Default database directory path
	defaultDatabaseDir = "/database"
	// Minimum length accepted by hash-password
	minPasswordLength = 6
)

// cli holds the parsed global flags and the process streams.
type cli struct {
	stdout io.Writer
	stderr io.Writer
	// readPassword prompts for a password without echoing it.
	readPassword func(prompt string) ([]byte, error)

	vlc         vlc.Options
	apiURL      string
	apiPassword string
	databaseDir string
	limit       int
}

func main() {
	// Create a context that cancels on interrupt signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c := &cli{
		stdout:       os.Stdout,
		stderr:       os.Stderr,
		readPassword: terminalPassword,
	}
	code := c.run(ctx, os.Args[1:])
	stop()
	os.Exit(code)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return fallback
}

func (c *cli) flags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("vlcctl", pflag.ContinueOnError)
	fs.SetOutput(c.stderr)
	fs.SetInterspersed(false)
	fs.Usage = func() { c.printUsage(fs) }

	fs.StringVar(&c.vlc.Host, "host", envOr("VLC_HOST", "localhost"), "VLC telnet host")
	fs.IntVar(&c.vlc.Port, "port", envIntOr("VLC_PORT", vlc.DefaultPort), "VLC telnet port")
	fs.StringVar(&c.vlc.Password, "password", envOr("VLC_PASSWORD", "admin"), "VLC telnet password")
	fs.DurationVar(&c.vlc.Timeout, "timeout", defaultTimeout, "request timeout")
	fs.StringVar(&c.apiURL, "api", envOr("VIDEO_LOOPER_URL", "http://localhost:8080"), "video looper daemon URL (play)")
	fs.StringVar(&c.apiPassword, "api-password", os.Getenv("API_PASSWORD"), "control API password (play)")
	fs.StringVar(&c.databaseDir, "database-dir", envOr("DATABASE_DIR", defaultDatabaseDir), "history database directory (history)")
	fs.IntVarP(&c.limit, "limit", "n", 20, "entries to show (history)")
	return fs
}

func (c *cli) printUsage(fs *pflag.FlagSet) {
	fmt.Fprintln(c.stderr, "Video Looper Control")
	fmt.Fprintln(c.stderr, "")
	fmt.Fprintln(c.stderr, "Usage: vlcctl [flags] <command> [args]")
	fmt.Fprintln(c.stderr, "")
	fmt.Fprintln(c.stderr, "Commands:")
	fmt.Fprintln(c.stderr, "  status                     - Show VLC's version, playback status and volume")
	fmt.Fprintln(c.stderr, "  raw <command...>           - Send one command line to VLC and print the reply")
	fmt.Fprintln(c.stderr, "  play <media>               - Ask the daemon to play a trigger")
	fmt.Fprintln(c.stderr, "  pause                      - Toggle pause")
	fmt.Fprintln(c.stderr, "  next | prev                - Skip to the next or previous playlist item")
	fmt.Fprintln(c.stderr, "  rewind                     - Play the current item backwards")
	fmt.Fprintln(c.stderr, "  seek <pos>                 - Seek to seconds, +/-seconds or a percentage")
	fmt.Fprintln(c.stderr, "  repeat on|off              - Set single-item repeat")
	fmt.Fprintln(c.stderr, "  random on|off              - Set random order")
	fmt.Fprintln(c.stderr, "  fullscreen on|off          - Set fullscreen")
	fmt.Fprintln(c.stderr, "  volume [N|up|down [steps]] - Show or change the volume (0-512)")
	fmt.Fprintln(c.stderr, "  info                       - Show metadata of the current item")
	fmt.Fprintln(c.stderr, "  history                    - Show recent trigger playbacks")
	fmt.Fprintln(c.stderr, "  hash-password              - Hash a password for API_PASSWORD_HASH")
	fmt.Fprintln(c.stderr, "")
	fmt.Fprintln(c.stderr, "Flags:")
	fmt.Fprint(c.stderr, fs.FlagUsages())
}

// run executes one command and returns the exit code.
func (c *cli) run(ctx context.Context, args []string) int {
	fs := c.flags()
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() == 0 {
		c.printUsage(fs)
		return 2
	}

	command, rest := fs.Arg(0), fs.Args()[1:]
	var err error
	switch command {
	case "status":
		err = c.status(ctx)
	case "raw":
		if len(rest) == 0 {
			err = errors.New("raw needs a command")
			break
		}
		err = c.raw(ctx, strings.Join(rest, " "))
	case "play":
		if len(rest) != 1 {
			err = errors.New("play needs exactly one media name")
			break
		}
		err = c.play(ctx, rest[0])
	case "pause", "next", "prev", "rewind", "seek", "repeat", "random", "fullscreen", "volume", "info":
		err = c.control(ctx, command, rest)
	case "history":
		err = c.history(ctx)
	case "hash-password":
		err = c.hashPassword()
	default:
		fmt.Fprintf(c.stderr, "Unknown command: %s\n", sanitizeCommand(command))
		c.printUsage(fs)
		return 2
	}

	if err != nil {
		fmt.Fprintf(c.stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// sanitizeCommand returns a safe representation of a command string for display.
// It uses an allowlist approach, replacing any character that is not alphanumeric,
// a hyphen, or an underscore with '_'.
func sanitizeCommand(cmd string) string {
	var b strings.Builder
	b.Grow(len(cmd))
	for _, r := range cmd {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}

func (c *cli) dial(ctx context.Context) (*vlc.Session, error) {
	session, err := vlc.Dial(ctx, c.vlc)
	if err != nil {
		return nil, fmt.Errorf("connecting to VLC at %s: %w", c.vlc.Addr(), err)
	}
	return session, nil
}

func (c *cli) status(ctx context.Context) error {
	session, err := c.dial(ctx)
	if err != nil {
		return err
	}
	defer session.Close()

	reply, err := session.Status(ctx)
	if err != nil {
		return err
	}
	volume, err := session.Volume(ctx)
	if err != nil {
		return err
	}
	slot, playing, err := session.PlayingSlot(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.stdout, "VLC %s at %s\n", session.ServerVersion(), session.Addr())
	if reply != "" {
		fmt.Fprintln(c.stdout, reply)
	}
	fmt.Fprintf(c.stdout, "Volume: %d\n", volume)
	if playing {
		fmt.Fprintf(c.stdout, "Playing item: %s\n", slot)
	} else {
		fmt.Fprintln(c.stdout, "Playing item: none")
	}
	return nil
}

func (c *cli) raw(ctx context.Context, line string) error {
	session, err := c.dial(ctx)
	if err != nil {
		return err
	}
	defer session.Close()

	reply, err := session.Raw(ctx, line)
	if err != nil {
		return err
	}
	if reply != "" {
		fmt.Fprintln(c.stdout, reply)
	}
	return nil
}

// vlcAction is one command run over an open VLC session. Its output, if
// any, is printed on stdout.
type vlcAction func(ctx context.Context, session *vlc.Session) (string, error)

// control runs a transport command directly against VLC. Malformed
// arguments are refused before connecting.
func (c *cli) control(ctx context.Context, command string, args []string) error {
	action, err := transportAction(command, args)
	if err != nil {
		return err
	}

	session, err := c.dial(ctx)
	if err != nil {
		return err
	}
	defer session.Close()

	out, err := action(ctx, session)
	if err != nil {
		return err
	}
	if out != "" {
		fmt.Fprintln(c.stdout, out)
	}
	return nil
}

func transportAction(command string, args []string) (vlcAction, error) {
	done := func(f func(*vlc.Session, context.Context) error) vlcAction {
		return func(ctx context.Context, s *vlc.Session) (string, error) {
			return "", f(s, ctx)
		}
	}

	switch command {
	case "pause", "next", "prev", "rewind", "info":
		if len(args) != 0 {
			return nil, fmt.Errorf("%s takes no arguments", command)
		}
	}

	switch command {
	case "pause":
		return done((*vlc.Session).Pause), nil
	case "next":
		return done((*vlc.Session).Next), nil
	case "prev":
		return done((*vlc.Session).Prev), nil
	case "rewind":
		return done((*vlc.Session).Rewind), nil
	case "info":
		return func(ctx context.Context, s *vlc.Session) (string, error) {
			return s.Info(ctx)
		}, nil
	case "seek":
		if len(args) != 1 {
			return nil, errors.New("seek needs exactly one position")
		}
		if !vlc.ValidSeekPosition(args[0]) {
			return nil, fmt.Errorf("invalid seek position %q", args[0])
		}
		return done(func(s *vlc.Session, ctx context.Context) error {
			return s.Seek(ctx, args[0])
		}), nil
	case "repeat", "random", "fullscreen":
		on, err := onOffArg(command, args)
		if err != nil {
			return nil, err
		}
		set := map[string]func(*vlc.Session, context.Context, bool) error{
			"repeat":     (*vlc.Session).Repeat,
			"random":     (*vlc.Session).Random,
			"fullscreen": (*vlc.Session).Fullscreen,
		}[command]
		return done(func(s *vlc.Session, ctx context.Context) error {
			return set(s, ctx, on)
		}), nil
	case "volume":
		return volumeAction(args)
	}
	return nil, fmt.Errorf("unknown transport command %s", command)
}

func onOffArg(command string, args []string) (bool, error) {
	if len(args) == 1 {
		switch args[0] {
		case "on":
			return true, nil
		case "off":
			return false, nil
		}
	}
	return false, fmt.Errorf("%s needs on or off", command)
}

// volumeAction shows the volume with no arguments, sets it to N, or steps
// it with up/down and an optional step count.
func volumeAction(args []string) (vlcAction, error) {
	show := func(v int, err error) (string, error) {
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Volume: %d", v), nil
	}

	if len(args) == 0 {
		return func(ctx context.Context, s *vlc.Session) (string, error) {
			return show(s.Volume(ctx))
		}, nil
	}

	switch args[0] {
	case "up", "down":
		steps := 1
		if len(args) > 2 {
			return nil, errors.New("volume up/down takes at most one step count")
		}
		if len(args) == 2 {
			n, err := strconv.Atoi(args[1])
			if err != nil || n < 1 {
				return nil, fmt.Errorf("invalid step count %q", args[1])
			}
			steps = n
		}
		step := (*vlc.Session).VolumeUp
		if args[0] == "down" {
			step = (*vlc.Session).VolumeDown
		}
		return func(ctx context.Context, s *vlc.Session) (string, error) {
			return show(step(s, ctx, steps))
		}, nil
	}

	if len(args) != 1 {
		return nil, errors.New("volume takes a level, up or down")
	}
	level, err := strconv.Atoi(args[0])
	if err != nil || level < 0 || level > 512 {
		return nil, fmt.Errorf("invalid volume %q, want 0-512", args[0])
	}
	return func(ctx context.Context, s *vlc.Session) (string, error) {
		if err := s.SetVolume(ctx, level); err != nil {
			return "", err
		}
		return fmt.Sprintf("Volume: %d", level), nil
	}, nil
}

// play goes through the daemon rather than VLC so the trigger runs under
// the daemon's synchronizer and the idle loop is restored afterwards.
func (c *cli) play(ctx context.Context, mediaID string) error {
	if err := mediatypes.Validate(mediaID); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, c.vlc.Timeout)
	defer cancel()

	endpoint := strings.TrimRight(c.apiURL, "/") + "/api/play/" + url.PathEscape(mediaID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, http.NoBody)
	if err != nil {
		return err
	}
	if c.apiPassword != "" {
		req.SetBasicAuth("vlcctl", c.apiPassword)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("contacting daemon: %w", err)
	}
	defer resp.Body.Close()

	var body struct {
		Status string `json:"status"`
		Error  string `json:"error"`
	}
	_ = json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&body)

	if resp.StatusCode != http.StatusAccepted {
		msg := body.Error
		if msg == "" {
			msg = resp.Status
		}
		return fmt.Errorf("daemon refused %s: %s (HTTP %d)", mediaID, msg, resp.StatusCode)
	}
	fmt.Fprintf(c.stdout, "Playing %s\n", mediaID)
	return nil
}

func (c *cli) history(ctx context.Context) error {
	dbPath := filepath.Join(c.databaseDir, "history.db")
	if _, err := os.Stat(dbPath); err != nil {
		return fmt.Errorf("no history database at %s (set DATABASE_DIR or --database-dir)", dbPath)
	}

	ctx, cancel := context.WithTimeout(ctx, c.vlc.Timeout)
	defer cancel()

	store, err := history.Open(ctx, dbPath)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(c.stderr, "Warning: failed to close database: %v\n", err)
		}
	}()

	entries, err := store.Recent(ctx, c.limit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(c.stdout, "No plays recorded")
		return nil
	}
	for _, e := range entries {
		fmt.Fprintf(c.stdout, "%s  %-10s %8s  %s\n",
			e.StartedAt.Local().Format("2006-01-02 15:04:05"),
			e.Outcome,
			e.Duration().Round(100*time.Millisecond),
			e.Title,
		)
	}
	return nil
}

func (c *cli) hashPassword() error {
	password, err := c.readPassword("New Password: ")
	if err != nil {
		return fmt.Errorf("reading password: %w", err)
	}
	confirm, err := c.readPassword("Confirm Password: ")
	if err != nil {
		return fmt.Errorf("reading password: %w", err)
	}

	if !bytes.Equal(password, confirm) {
		return errors.New("passwords do not match")
	}
	if len(password) < minPasswordLength {
		return fmt.Errorf("password must be at least %d characters", minPasswordLength)
	}

	hash, err := bcrypt.GenerateFromPassword(password, bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.stdout, string(hash))
	return nil
}

// terminalPassword reads a password from the terminal without echo, or a
// line from stdin when it is not a terminal.
func terminalPassword(prompt string) ([]byte, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return readLine(os.Stdin)
	}
	fmt.Fprint(os.Stderr, prompt)
	password, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	return password, err
}

// readLine reads up to a newline one byte at a time so that a second call
// on the same stream sees the next line.
func readLine(r io.Reader) ([]byte, error) {
	var line []byte
	buf := make([]byte, 1)
	for {
		n, err := r.Read(buf)
		if n == 1 {
			if buf[0] == '\n' {
				return bytes.TrimSuffix(line, []byte("\r")), nil
			}
			line = append(line, buf[0])
		}
		if err != nil {
			if errors.Is(err, io.EOF) && len(line) > 0 {
				return line, nil
			}
			return nil, err
		}
	}
}
