// Package vlctest provides an in-process fake of VLC's telnet interface.
//
// The fake keeps a playlist with VLC's numbering (items start at 4 after
// the "Playlist" and "Media Library" nodes), answers the commands the
// video looper uses, and advances playback on "playlist" polls so that
// tests can drive a whole trigger cycle without a real VLC.
package vlctest

import (
	"bufio"
	"fmt"
	"net"
	"path"
	"strconv"
	"strings"
	"sync"
	"testing"
)

const (
	// DefaultPassword is accepted unless WithPassword is used.
	DefaultPassword = "admin"
	// DefaultVersion is the version announced in the banner.
	DefaultVersion = "3.0.18 Vetinari"

	firstItemID = 4
	volumeStep  = 13

	telnetIAC  = 0xff
	telnetWILL = 0xfb
	telnetWONT = 0xfc
	telnetEcho = 0x01
)

type item struct {
	id    int
	title string
	path  string
}

// Server is a fake VLC telnet interface listening on 127.0.0.1.
type Server struct {
	ln       net.Listener
	password string
	banner   string
	echo     bool

	mu         sync.Mutex
	items      []item
	nextID     int
	current    int // item id, 0 when nothing is current
	remaining  int // polls left before the current item ends, 0 = forever
	durations  map[string]int
	rejected   map[string]bool
	stalled    map[string]bool
	ignoreGoto bool
	loop       bool
	repeat     bool
	random     bool
	fullscreen bool
	position   string
	volume     int
	playing    bool
	filter     string
	commands   []string
	conns      map[net.Conn]struct{}
	closed     bool

	wg sync.WaitGroup
}

// Option configures a Server.
type Option func(*Server)

// WithPassword sets the accepted password.
func WithPassword(password string) Option {
	return func(s *Server) { s.password = password }
}

// WithBanner replaces the whole banner line, e.g. to simulate a
// service that is not VLC.
func WithBanner(banner string) Option {
	return func(s *Server) { s.banner = banner }
}

// WithEcho makes the server echo each command line before its reply,
// as a telnet client in line mode sees it.
func WithEcho() Option {
	return func(s *Server) { s.echo = true }
}

// New starts a server on a random local port.
func New(opts ...Option) (*Server, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("vlctest: listen: %w", err)
	}

	s := &Server{
		ln:        ln,
		password:  DefaultPassword,
		banner:    "VLC media player " + DefaultVersion,
		nextID:    firstItemID,
		volume:    256,
		durations: make(map[string]int),
		rejected:  make(map[string]bool),
		stalled:   make(map[string]bool),
		conns:     make(map[net.Conn]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.wg.Add(1)
	go s.acceptLoop()
	return s, nil
}

// NewServer starts a server and closes it when the test ends.
func NewServer(t testing.TB, opts ...Option) *Server {
	t.Helper()
	s, err := New(opts...)
	if err != nil {
		t.Fatalf("failed to start fake VLC: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

// Host returns the listen host.
func (s *Server) Host() string {
	host, _, _ := net.SplitHostPort(s.ln.Addr().String())
	return host
}

// Port returns the listen port.
func (s *Server) Port() int {
	return s.ln.Addr().(*net.TCPAddr).Port
}

// Addr returns host:port.
func (s *Server) Addr() string {
	return s.ln.Addr().String()
}

// Close stops accepting, drops every connection and waits for handlers.
func (s *Server) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	for c := range s.conns {
		_ = c.Close()
	}
	s.mu.Unlock()

	_ = s.ln.Close()
	s.wg.Wait()
}

// DropConnections closes every open client connection while the server
// keeps listening, like a VLC restart seen from the client.
func (s *Server) DropConnections() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.conns {
		_ = c.Close()
	}
}

// SetDuration makes items titled title end after the given number of
// "playlist" polls. Zero means the item plays forever.
func (s *Server) SetDuration(title string, polls int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.durations[title] = polls
}

// Reject makes "enqueue" and "add" silently ignore paths whose base name
// is title, like VLC does for files it cannot open.
func (s *Server) Reject(title string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejected[title] = true
}

// Stall makes the server swallow the named command without replying.
func (s *Server) Stall(command string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stalled[command] = true
}

// IgnoreGoto makes "goto" a no-op so that a jump is never confirmed.
func (s *Server) IgnoreGoto(ignore bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ignoreGoto = ignore
}

// Seed appends items directly, bypassing the protocol.
func (s *Server) Seed(paths ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range paths {
		s.appendItem(p)
	}
}

// PlayTitle makes the first item titled title current, bypassing the
// protocol. It reports false when there is no such item.
func (s *Server) PlayTitle(title string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, it := range s.items {
		if it.title == title {
			s.setCurrent(it.id)
			s.playing = true
			return true
		}
	}
	return false
}

// Finish ends the current item now, as if it reached its end.
func (s *Server) Finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.advance()
}

// Titles returns the playlist titles in order.
func (s *Server) Titles() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	titles := make([]string, 0, len(s.items))
	for _, it := range s.items {
		titles = append(titles, it.title)
	}
	return titles
}

// Count returns how many playlist items are titled title.
func (s *Server) Count(title string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, it := range s.items {
		if it.title == title {
			n++
		}
	}
	return n
}

// Current returns the title of the current item, or "".
func (s *Server) Current() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if it, ok := s.find(s.current); ok {
		return it.title
	}
	return ""
}

// Playing reports whether playback is running.
func (s *Server) Playing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing
}

// Looping reports whether "loop on" is in effect.
func (s *Server) Looping() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loop
}

// Repeating reports whether single-item repeat is on.
func (s *Server) Repeating() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.repeat
}

// Shuffling reports whether random order is on.
func (s *Server) Shuffling() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.random
}

// Fullscreen reports whether fullscreen is on.
func (s *Server) Fullscreen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fullscreen
}

// Position returns the argument of the last seek.
func (s *Server) Position() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.position
}

// Volume returns the current volume.
func (s *Server) Volume() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.volume
}

// Commands returns every command line received after login, in order.
func (s *Server) Commands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.commands...)
}

// CommandCount returns how many received commands start with name.
func (s *Server) CommandCount(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.commands {
		if c == name || strings.HasPrefix(c, name+" ") {
			n++
		}
	}
	return n
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			_ = conn.Close()
			return
		}
		s.conns[conn] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go s.serve(conn)
	}
}

func (s *Server) serve(conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		_ = conn.Close()
	}()

	r := bufio.NewReader(conn)
	w := bufio.NewWriter(conn)

	fmt.Fprintf(w, "%s\r\nPassword: %s", s.banner, []byte{telnetIAC, telnetWILL, telnetEcho})
	if w.Flush() != nil {
		return
	}

	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		if strings.TrimRight(line, "\r\n") == s.password {
			fmt.Fprintf(w, "%s\r\nWelcome, Master\r\n> ", []byte{telnetIAC, telnetWONT, telnetEcho})
			break
		}
		w.WriteString("\r\nWrong password\r\nPassword: ")
		if w.Flush() != nil {
			return
		}
	}
	if w.Flush() != nil {
		return
	}

	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		cmd := strings.TrimRight(line, "\r\n")
		if s.echo {
			w.WriteString(cmd + "\r\n")
		}

		reply, keep := s.handle(cmd)
		if !keep {
			_ = w.Flush()
			return
		}
		if reply == nil {
			// stalled: swallow the command and wait for the client to give up
			_ = w.Flush()
			continue
		}
		for _, l := range reply {
			w.WriteString(l + "\r\n")
		}
		w.WriteString("> ")
		if w.Flush() != nil {
			return
		}
	}
}

// handle executes one command. A nil reply means no prompt is sent;
// keep is false when the client logged out.
func (s *Server) handle(cmd string) (reply []string, keep bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.commands = append(s.commands, cmd)
	name, arg, _ := strings.Cut(strings.TrimSpace(cmd), " ")
	arg = strings.TrimSpace(arg)

	if s.stalled[name] {
		return nil, true
	}

	switch name {
	case "enqueue", "add":
		if arg == "" || s.rejected[path.Base(arg)] {
			return []string{}, true
		}
		id := s.appendItem(arg)
		if name == "add" {
			s.setCurrent(id)
			s.playing = true
		}
	case "delete":
		if id, err := strconv.Atoi(arg); err == nil {
			s.remove(id)
		}
	case "search":
		s.filter = arg
		if arg == "" {
			return []string{}, true
		}
		return s.dump(), true
	case "goto", "gotoitem":
		id, err := strconv.Atoi(arg)
		if err != nil || s.ignoreGoto {
			break
		}
		if _, ok := s.find(id); ok {
			s.setCurrent(id)
			s.playing = true
		}
	case "play":
		if s.current == 0 && len(s.items) > 0 {
			s.setCurrent(s.items[0].id)
		}
		s.playing = s.current != 0
	case "stop":
		s.playing = false
		s.current = 0
	case "pause":
		s.playing = !s.playing
	case "next":
		s.advance()
	case "prev":
		s.back()
	case "clear":
		s.items = nil
		s.current = 0
		s.playing = false
	case "loop":
		s.loop = toggle(s.loop, arg)
	case "repeat":
		s.repeat = toggle(s.repeat, arg)
	case "random":
		s.random = toggle(s.random, arg)
	case "fullscreen", "f":
		s.fullscreen = toggle(s.fullscreen, arg)
	case "seek":
		s.position = arg
	case "rewind":
	case "volup", "voldown":
		steps := 1
		if n, err := strconv.Atoi(arg); err == nil {
			steps = n
		}
		if name == "voldown" {
			steps = -steps
		}
		s.volume = min(max(s.volume+steps*volumeStep, 0), 512)
		return []string{fmt.Sprintf("( audio volume: %d )", s.volume)}, true
	case "info":
		it, ok := s.find(s.current)
		if !ok {
			return []string{}, true
		}
		return []string{
			"+----[ Meta data ]",
			"| filename: " + it.title,
			"+----[ end of stream info ]",
		}, true
	case "playlist":
		s.tick()
		return s.dump(), true
	case "status":
		state := "stopped"
		if s.playing {
			state = "playing"
		}
		lines := []string{}
		if it, ok := s.find(s.current); ok {
			lines = append(lines, "( new input: file://"+it.path+" )")
		}
		return append(lines, fmt.Sprintf("( audio volume: %d )", s.volume), "( state "+state+" )"), true
	case "volume":
		if arg == "" {
			return []string{strconv.Itoa(s.volume)}, true
		}
		if v, err := strconv.Atoi(arg); err == nil {
			s.volume = v
		}
	case "logout", "quit":
		return []string{"Bye-bye!"}, false
	default:
		return []string{"Unknown command `" + name + "'. Type `help' for help."}, true
	}
	return []string{}, true
}

func toggle(cur bool, arg string) bool {
	switch arg {
	case "on":
		return true
	case "off":
		return false
	default:
		return !cur
	}
}

func (s *Server) appendItem(p string) int {
	id := s.nextID
	s.nextID++
	s.items = append(s.items, item{id: id, title: path.Base(p), path: p})
	return id
}

func (s *Server) find(id int) (item, bool) {
	for _, it := range s.items {
		if it.id == id {
			return it, true
		}
	}
	return item{}, false
}

func (s *Server) index(id int) int {
	for i, it := range s.items {
		if it.id == id {
			return i
		}
	}
	return -1
}

func (s *Server) remove(id int) {
	i := s.index(id)
	if i < 0 {
		return
	}
	if s.current == id {
		s.advance()
		if s.current == id {
			s.current = 0
			s.playing = false
		}
	}
	s.items = append(s.items[:i], s.items[i+1:]...)
}

func (s *Server) setCurrent(id int) {
	s.current = id
	s.remaining = 0
	if it, ok := s.find(id); ok {
		s.remaining = s.durations[it.title]
	}
}

// advance moves to the next item, wrapping when looping.
func (s *Server) advance() {
	i := s.index(s.current)
	switch {
	case i < 0:
		s.current = 0
		s.playing = false
	case i+1 < len(s.items):
		s.setCurrent(s.items[i+1].id)
	case s.loop:
		s.setCurrent(s.items[0].id)
	default:
		s.current = 0
		s.playing = false
	}
}

func (s *Server) back() {
	if i := s.index(s.current); i > 0 {
		s.setCurrent(s.items[i-1].id)
	}
}

// tick counts one playlist poll against the current item's duration.
func (s *Server) tick() {
	if !s.playing || s.current == 0 || s.remaining <= 0 {
		return
	}
	s.remaining--
	if s.remaining == 0 {
		s.advance()
	}
}

// dump renders the playlist the way VLC 3 does, applying the search
// filter if one is set.
func (s *Server) dump() []string {
	lines := []string{
		"+----[ Playlist - playlist ]",
		"| 1 - Playlist",
	}
	for _, it := range s.items {
		if s.filter != "" && !strings.Contains(it.title, s.filter) {
			continue
		}
		marker := ""
		if it.id == s.current {
			marker = "*"
		}
		lines = append(lines, fmt.Sprintf("|   %s%d - %s", marker, it.id, it.title))
	}
	return append(lines, "| 2 - Media Library", "+----[ End of playlist ]")
}
