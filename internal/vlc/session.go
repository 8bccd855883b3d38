package vlc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"video-looper/internal/logging"
)

const (
	// DefaultPort is the port VLC's telnet interface listens on.
	DefaultPort = 4212
	// DefaultTimeout bounds the connect handshake and every request.
	DefaultTimeout = 5 * time.Second

	prompt         = "> "
	passwordPrompt = "Password:"
	readChunkSize  = 4096
)

var log = logging.For("vlc")

// State is the lifecycle state of a Session.
type State int

const (
	// Disconnected is the state before Dial.
	Disconnected State = iota
	// Connecting covers the TCP dial and the version banner.
	Connecting
	// Authenticating is entered once the password has been sent.
	Authenticating
	// Ready accepts requests.
	Ready
	// Closed is terminal.
	Closed
)

// States lists every state, in order.
var States = []State{Disconnected, Connecting, Authenticating, Ready, Closed}

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Authenticating:
		return "authenticating"
	case Ready:
		return "ready"
	case Closed:
		return "closed"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Options configures Dial.
type Options struct {
	Host     string
	Port     int
	Password string
	// Timeout bounds the handshake and each request. Zero means DefaultTimeout.
	Timeout time.Duration
}

// Addr returns host:port.
func (o Options) Addr() string {
	host := o.Host
	if host == "" {
		host = "localhost"
	}
	port := o.Port
	if port == 0 {
		port = DefaultPort
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}

func (o Options) timeout() time.Duration {
	if o.Timeout <= 0 {
		return DefaultTimeout
	}
	return o.Timeout
}

// Session is an authenticated connection to VLC's telnet interface.
// Requests are serialized: the interface has no request IDs, so replies
// can only be matched to commands by order.
type Session struct {
	addr    string
	timeout time.Duration
	conn    net.Conn

	mu sync.Mutex // held for a whole request/reply exchange

	stateMu sync.RWMutex
	state   State
	version string

	closeOnce sync.Once
}

// Dial connects to VLC, checks the version banner and logs in.
func Dial(ctx context.Context, opts Options) (*Session, error) {
	s := &Session{
		addr:    opts.Addr(),
		timeout: opts.timeout(),
	}

	err := s.connect(ctx, opts.Password)
	observeConnect(err)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Session) connect(ctx context.Context, password string) error {
	s.setState(Connecting)

	dialer := net.Dialer{Timeout: s.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", s.addr)
	if err != nil {
		s.setState(Closed)
		return fmt.Errorf("%w: dial %s: %w", ErrConnection, s.addr, err)
	}
	s.conn = conn

	if err := s.login(ctx, password); err != nil {
		_ = s.Close()
		return err
	}

	s.setState(Ready)
	log.Info("connected to VLC %s at %s", s.ServerVersion(), s.addr)
	return nil
}

func (s *Session) login(ctx context.Context, password string) error {
	stop := context.AfterFunc(ctx, s.abortIO)
	defer stop()

	if err := s.conn.SetDeadline(time.Now().Add(s.timeout)); err != nil {
		return fmt.Errorf("%w: set deadline: %w", ErrConnection, err)
	}

	banner, err := s.readUntil(func(buf []byte) bool {
		return bytes.Contains(buf, []byte(passwordPrompt))
	})
	if err != nil {
		return s.handshakeError(ctx, "reading banner", err)
	}

	head, _, _ := strings.Cut(string(banner), passwordPrompt)
	version := ParseVersion(head)
	if version == "" {
		return fmt.Errorf("%w: unexpected banner from %s: %q", ErrConnection, s.addr, strings.TrimSpace(head))
	}
	s.stateMu.Lock()
	s.version = version
	s.stateMu.Unlock()

	s.setState(Authenticating)
	if _, err := io.WriteString(s.conn, password+"\n"); err != nil {
		return s.handshakeError(ctx, "sending password", err)
	}

	reply, err := s.readUntil(func(buf []byte) bool {
		return bytes.Contains(buf, []byte(passwordPrompt)) || endsWithPrompt(buf)
	})
	if err != nil {
		return s.handshakeError(ctx, "reading login reply", err)
	}
	if bytes.Contains(reply, []byte(passwordPrompt)) {
		return fmt.Errorf("%w: password rejected by %s", ErrAuthentication, s.addr)
	}

	return s.conn.SetDeadline(time.Time{})
}

func (s *Session) handshakeError(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %s: %w", ErrConnection, op, ctxErr)
	}
	return fmt.Errorf("%w: %s from %s: %w", ErrConnection, op, s.addr, err)
}

// abortIO unblocks a pending read or write during the handshake.
func (s *Session) abortIO() {
	_ = s.conn.SetDeadline(time.Unix(1, 0))
}

// Request sends one command line and returns VLC's reply with the echoed
// command, the prompt and surrounding line breaks removed.
//
// ctx is checked before the command is written. Once written, the reply
// is always read up to the prompt (bounded by the session timeout) so that
// the next request starts on a reply boundary.
func (s *Session) Request(ctx context.Context, line string) (string, error) {
	if strings.ContainsAny(line, "\r\n") {
		return "", fmt.Errorf("vlc: command must be a single line: %q", line)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if state := s.State(); state != Ready {
		return "", fmt.Errorf("%w: session is %s", ErrConnection, state)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	start := time.Now()
	reply, err := s.roundTrip(line)
	observeRequest(commandName(line), time.Since(start).Seconds(), err)
	return reply, err
}

func (s *Session) roundTrip(line string) (string, error) {
	if err := s.conn.SetDeadline(time.Now().Add(s.timeout)); err != nil {
		return "", s.fail("set deadline", err)
	}

	log.Debug("> %s", line)
	if _, err := io.WriteString(s.conn, line+"\n"); err != nil {
		return "", s.fail("write", err)
	}

	raw, err := s.readUntil(endsWithPrompt)
	if err != nil {
		return "", s.fail("read", err)
	}

	reply := frameReply(string(raw), line)
	log.Debug("< %q", reply)
	return reply, nil
}

// fail closes the session: after a failed exchange the stream can no
// longer be split into replies.
func (s *Session) fail(op string, err error) error {
	_ = s.Close()

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: no prompt from %s within %v", ErrProtocol, s.addr, s.timeout)
	}
	return fmt.Errorf("%w: %s %s: %w", ErrConnection, op, s.addr, err)
}

// readUntil reads until done reports true for the data read so far, with
// telnet negotiation bytes removed.
func (s *Session) readUntil(done func([]byte) bool) ([]byte, error) {
	var raw []byte
	chunk := make([]byte, readChunkSize)
	for {
		n, err := s.conn.Read(chunk)
		if n > 0 {
			raw = append(raw, chunk[:n]...)
			if clean := stripTelnet(raw); done(clean) {
				return clean, nil
			}
		}
		if err != nil {
			return stripTelnet(raw), err
		}
	}
}

// Close releases the connection. It is safe to call more than once and
// from another goroutine while a request is blocked.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.setState(Closed)
		if s.conn != nil {
			err = s.conn.Close()
			log.Debug("connection to %s closed", s.addr)
		}
	})
	return err
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.state
}

// ServerVersion returns the version from the banner, e.g. "3.0.18".
func (s *Session) ServerVersion() string {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.version
}

// Addr returns the remote address the session was dialed to.
func (s *Session) Addr() string {
	return s.addr
}

func (s *Session) setState(state State) {
	s.stateMu.Lock()
	changed := s.state != state
	s.state = state
	s.stateMu.Unlock()

	if changed {
		observeState(state)
	}
}

// endsWithPrompt reports whether buf ends with the prompt at the start of
// a line. A reply line containing "> " mid-line does not count.
func endsWithPrompt(buf []byte) bool {
	if !bytes.HasSuffix(buf, []byte(prompt)) {
		return false
	}
	if len(buf) == len(prompt) {
		return true
	}
	prev := buf[len(buf)-len(prompt)-1]
	return prev == '\n' || prev == '\r'
}

// frameReply strips the prompt, an echoed command line and the CR/LF
// framing around a reply.
func frameReply(raw, line string) string {
	text := strings.TrimSuffix(raw, prompt)
	text = strings.TrimLeft(text, "\r\n")
	if rest, ok := strings.CutPrefix(text, line); ok && (rest == "" || rest[0] == '\r' || rest[0] == '\n') {
		text = rest
	}
	return strings.Trim(text, "\r\n")
}

// Telnet negotiation bytes (RFC 854).
const (
	telnetIAC  = 255
	telnetDONT = 254
	telnetWILL = 251
	telnetSB   = 250
	telnetSE   = 240
)

// stripTelnet removes IAC sequences. An incomplete sequence at the end of
// buf is dropped; it is removed in full once the rest arrives.
func stripTelnet(buf []byte) []byte {
	if bytes.IndexByte(buf, telnetIAC) < 0 {
		return buf
	}

	out := make([]byte, 0, len(buf))
	for i := 0; i < len(buf); i++ {
		if buf[i] != telnetIAC {
			out = append(out, buf[i])
			continue
		}
		if i+1 >= len(buf) {
			break
		}
		switch cmd := buf[i+1]; {
		case cmd == telnetIAC:
			out = append(out, telnetIAC)
			i++
		case cmd >= telnetWILL && cmd <= telnetDONT:
			i += 2
		case cmd == telnetSB:
			end := bytes.Index(buf[i:], []byte{telnetIAC, telnetSE})
			if end < 0 {
				return out
			}
			i += end + 1
		default:
			i++
		}
	}
	return out
}

var knownCommands = map[string]bool{
	"add": true, "enqueue": true, "delete": true, "search": true, "goto": true,
	"play": true, "stop": true, "pause": true, "next": true, "prev": true,
	"clear": true, "loop": true, "repeat": true, "random": true, "playlist": true,
	"status": true, "volume": true, "fullscreen": true, "help": true, "info": true,
	"seek": true, "rewind": true, "volup": true, "voldown": true,
}

// CommandLabels returns every label commandName can produce, sorted.
func CommandLabels() []string {
	labels := make([]string, 0, len(knownCommands)+1)
	for name := range knownCommands {
		labels = append(labels, name)
	}
	labels = append(labels, "other")
	sort.Strings(labels)
	return labels
}

// commandName returns a bounded label for metrics.
func commandName(line string) string {
	name, _, _ := strings.Cut(strings.TrimSpace(line), " ")
	name = strings.ToLower(name)
	if knownCommands[name] {
		return name
	}
	return "other"
}
