package vlc

import (
	"context"
	"errors"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"video-looper/internal/vlc/vlctest"
)

func dialFake(t *testing.T, srv *vlctest.Server) *Session {
	t.Helper()
	s, err := Dial(context.Background(), Options{
		Host:     srv.Host(),
		Port:     srv.Port(),
		Password: vlctest.DefaultPassword,
		Timeout:  2 * time.Second,
	})
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestDial(t *testing.T) {
	srv := vlctest.NewServer(t)
	s := dialFake(t, srv)

	if s.State() != Ready {
		t.Errorf("State() = %v, want %v", s.State(), Ready)
	}
	if s.ServerVersion() != "3.0.18" {
		t.Errorf("ServerVersion() = %q, want %q", s.ServerVersion(), "3.0.18")
	}
}

func TestDialWrongPassword(t *testing.T) {
	srv := vlctest.NewServer(t, vlctest.WithPassword("secret"))

	_, err := Dial(context.Background(), Options{
		Host:     srv.Host(),
		Port:     srv.Port(),
		Password: "wrong",
		Timeout:  2 * time.Second,
	})
	if !errors.Is(err, ErrAuthentication) {
		t.Fatalf("Dial() error = %v, want ErrAuthentication", err)
	}
	if IsRetryable(err) {
		t.Error("authentication errors must not be retryable")
	}
}

func TestDialBannerMismatch(t *testing.T) {
	srv := vlctest.NewServer(t, vlctest.WithBanner("Welcome to some other service"))

	_, err := Dial(context.Background(), Options{
		Host:     srv.Host(),
		Port:     srv.Port(),
		Password: vlctest.DefaultPassword,
		Timeout:  2 * time.Second,
	})
	if !errors.Is(err, ErrConnection) {
		t.Fatalf("Dial() error = %v, want ErrConnection", err)
	}
}

func TestDialRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	_ = ln.Close()

	_, err = Dial(context.Background(), Options{Host: "127.0.0.1", Port: port, Timeout: time.Second})
	if !errors.Is(err, ErrConnection) {
		t.Fatalf("Dial() error = %v, want ErrConnection", err)
	}
	if !IsRetryable(err) {
		t.Error("connection errors should be retryable")
	}
}

func TestDialSilentServer(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		time.Sleep(2 * time.Second)
	}()

	start := time.Now()
	_, err = Dial(context.Background(), Options{
		Host:    "127.0.0.1",
		Port:    ln.Addr().(*net.TCPAddr).Port,
		Timeout: 200 * time.Millisecond,
	})
	if !errors.Is(err, ErrConnection) {
		t.Fatalf("Dial() error = %v, want ErrConnection", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Dial() took %v, want it bounded by the timeout", elapsed)
	}
}

func TestRequest(t *testing.T) {
	srv := vlctest.NewServer(t)
	srv.Seed("/media/idle.mp4", "/media/button1.mp4")
	s := dialFake(t, srv)
	ctx := context.Background()

	reply, err := s.Search(ctx, "button1.mp4")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	slot, ok := ParseSearchMatch(reply, "button1.mp4")
	if !ok || slot != 5 {
		t.Errorf("ParseSearchMatch() = %d, %v; want 5, true", slot, ok)
	}
	if strings.HasSuffix(reply, "> ") {
		t.Errorf("reply should not include the prompt: %q", reply)
	}
	if strings.HasPrefix(reply, "search") {
		t.Errorf("reply should not include the command: %q", reply)
	}
}

func TestRequestWithEcho(t *testing.T) {
	srv := vlctest.NewServer(t, vlctest.WithEcho())
	s := dialFake(t, srv)

	v, err := s.Volume(context.Background())
	if err != nil {
		t.Fatalf("Volume() error = %v", err)
	}
	if v != 256 {
		t.Errorf("Volume() = %d, want 256", v)
	}

	reply, err := s.Raw(context.Background(), "loop on")
	if err != nil {
		t.Fatalf("Raw() error = %v", err)
	}
	if reply != "" {
		t.Errorf("Raw(loop on) = %q, want empty reply", reply)
	}
}

func TestRequestTimeout(t *testing.T) {
	srv := vlctest.NewServer(t)
	srv.Stall("playlist")

	s, err := Dial(context.Background(), Options{
		Host:     srv.Host(),
		Port:     srv.Port(),
		Password: vlctest.DefaultPassword,
		Timeout:  150 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer s.Close()

	_, err = s.Playlist(context.Background())
	if !errors.Is(err, ErrProtocol) {
		t.Fatalf("Playlist() error = %v, want ErrProtocol", err)
	}
	if s.State() != Closed {
		t.Errorf("State() = %v, want %v after a protocol error", s.State(), Closed)
	}

	_, err = s.Status(context.Background())
	if !errors.Is(err, ErrConnection) {
		t.Errorf("request after close error = %v, want ErrConnection", err)
	}
}

func TestRequestServerGone(t *testing.T) {
	srv := vlctest.NewServer(t)
	s := dialFake(t, srv)

	srv.DropConnections()

	_, err := s.Playlist(context.Background())
	if !errors.Is(err, ErrConnection) {
		t.Fatalf("Playlist() error = %v, want ErrConnection", err)
	}
	if s.State() != Closed {
		t.Errorf("State() = %v, want %v", s.State(), Closed)
	}
}

func TestRequestCancelledContext(t *testing.T) {
	srv := vlctest.NewServer(t)
	s := dialFake(t, srv)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Playlist(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Playlist() error = %v, want context.Canceled", err)
	}
	if s.State() != Ready {
		t.Errorf("State() = %v, want session to stay %v", s.State(), Ready)
	}
	if n := srv.CommandCount("playlist"); n != 0 {
		t.Errorf("server saw %d playlist commands, want 0", n)
	}
}

func TestRequestRejectsLineBreaks(t *testing.T) {
	srv := vlctest.NewServer(t)
	s := dialFake(t, srv)

	if _, err := s.Raw(context.Background(), "enqueue a\nclear"); err == nil {
		t.Fatal("Raw() with an embedded newline should fail")
	}
	if n := srv.CommandCount("clear"); n != 0 {
		t.Errorf("server saw %d clear commands, want 0", n)
	}
}

func TestRequestsAreSerialized(t *testing.T) {
	srv := vlctest.NewServer(t)
	srv.Seed("/media/idle.mp4")
	s := dialFake(t, srv)

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := s.Volume(context.Background())
			if err == nil && v != 256 {
				err = errors.New("reply mixed up with another request")
			}
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("concurrent Volume() error = %v", err)
		}
	}
}

func TestCommands(t *testing.T) {
	srv := vlctest.NewServer(t)
	s := dialFake(t, srv)
	ctx := context.Background()

	steps := []func() error{
		func() error { return s.Loop(ctx, true) },
		func() error { return s.Enqueue(ctx, "/media/idle.mp4") },
		func() error { return s.Add(ctx, "/media/intro.mp4") },
		func() error { return s.Goto(ctx, 4) },
		func() error { return s.Delete(ctx, 5) },
		func() error { return s.SetVolume(ctx, 300) },
		func() error { return s.ResetSearch(ctx) },
		func() error { return s.Play(ctx) },
	}
	for i, step := range steps {
		if err := step(); err != nil {
			t.Fatalf("step %d error = %v", i, err)
		}
	}

	want := []string{
		"loop on",
		"enqueue /media/idle.mp4",
		"add /media/intro.mp4",
		"goto 4",
		"delete 5",
		"volume 300",
		"search",
		"play",
	}
	if diff := cmp.Diff(want, srv.Commands()); diff != "" {
		t.Errorf("commands mismatch (-want +got):\n%s", diff)
	}

	if diff := cmp.Diff([]string{"idle.mp4"}, srv.Titles()); diff != "" {
		t.Errorf("playlist mismatch (-want +got):\n%s", diff)
	}
	if !srv.Looping() {
		t.Error("loop should be on")
	}
	if srv.Volume() != 300 {
		t.Errorf("volume = %d, want 300", srv.Volume())
	}

	slot, ok, err := s.PlayingSlot(ctx)
	if err != nil {
		t.Fatalf("PlayingSlot() error = %v", err)
	}
	if !ok || slot != 4 {
		t.Errorf("PlayingSlot() = %d, %v; want 4, true", slot, ok)
	}
}

func TestTransportCommands(t *testing.T) {
	srv := vlctest.NewServer(t)
	s := dialFake(t, srv)
	ctx := context.Background()

	steps := []func() error{
		func() error { return s.Enqueue(ctx, "/media/a.mp4") },
		func() error { return s.Enqueue(ctx, "/media/b.mp4") },
		func() error { return s.Play(ctx) },
		func() error { return s.Next(ctx) },
		func() error { return s.Prev(ctx) },
		func() error { return s.Pause(ctx) },
		func() error { return s.Seek(ctx, "+10") },
		func() error { return s.Rewind(ctx) },
		func() error { return s.Repeat(ctx, true) },
		func() error { return s.Random(ctx, true) },
		func() error { return s.Fullscreen(ctx, true) },
		func() error { return s.Random(ctx, false) },
	}
	for i, step := range steps {
		if err := step(); err != nil {
			t.Fatalf("step %d error = %v", i, err)
		}
	}

	want := []string{
		"enqueue /media/a.mp4",
		"enqueue /media/b.mp4",
		"play",
		"next",
		"prev",
		"pause",
		"seek +10",
		"rewind",
		"repeat on",
		"random on",
		"fullscreen on",
		"random off",
	}
	if diff := cmp.Diff(want, srv.Commands()); diff != "" {
		t.Errorf("commands mismatch (-want +got):\n%s", diff)
	}
	if srv.Current() != "a.mp4" {
		t.Errorf("current = %q, want a.mp4", srv.Current())
	}
	if srv.Position() != "+10" {
		t.Errorf("position = %q, want +10", srv.Position())
	}
	if !srv.Repeating() || srv.Shuffling() || !srv.Fullscreen() {
		t.Errorf("repeat/random/fullscreen = %v/%v/%v, want true/false/true",
			srv.Repeating(), srv.Shuffling(), srv.Fullscreen())
	}

	info, err := s.Info(ctx)
	if err != nil {
		t.Fatalf("Info() error = %v", err)
	}
	if !strings.Contains(info, "filename: a.mp4") {
		t.Errorf("Info() = %q, want the current filename", info)
	}
}

func TestSeekRejectsBadPosition(t *testing.T) {
	srv := vlctest.NewServer(t)
	s := dialFake(t, srv)

	for _, pos := range []string{"", "abc", "10s", "1 0", "50%%", "+-5"} {
		if err := s.Seek(context.Background(), pos); err == nil {
			t.Errorf("Seek(%q) should fail", pos)
		}
	}
	if got := srv.CommandCount("seek"); got != 0 {
		t.Errorf("seek sent %d times, want 0", got)
	}
}

func TestVolumeSteps(t *testing.T) {
	srv := vlctest.NewServer(t)
	s := dialFake(t, srv)
	ctx := context.Background()

	tests := []struct {
		name    string
		step    func() (int, error)
		want    int
		wantErr bool
	}{
		{"up two", func() (int, error) { return s.VolumeUp(ctx, 2) }, 256 + 2*13, false},
		{"down one", func() (int, error) { return s.VolumeDown(ctx, 1) }, 256 + 13, false},
		{"down to zero", func() (int, error) { return s.VolumeDown(ctx, 100) }, 0, false},
		{"zero steps", func() (int, error) { return s.VolumeUp(ctx, 0) }, 0, true},
		{"negative steps", func() (int, error) { return s.VolumeDown(ctx, -1) }, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.step()
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("volume = %d, want %d", got, tt.want)
			}
		})
	}
	if srv.Volume() != 0 {
		t.Errorf("server volume = %d, want 0", srv.Volume())
	}
}

func TestSetVolumeOutOfRange(t *testing.T) {
	srv := vlctest.NewServer(t)
	s := dialFake(t, srv)

	if err := s.SetVolume(context.Background(), 600); err == nil {
		t.Error("SetVolume(600) should fail")
	}
}

func TestCloseIdempotent(t *testing.T) {
	srv := vlctest.NewServer(t)
	s := dialFake(t, srv)

	if err := s.Close(); err != nil {
		t.Errorf("first Close() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if s.State() != Closed {
		t.Errorf("State() = %v, want %v", s.State(), Closed)
	}

	_, err := s.Playlist(context.Background())
	if !errors.Is(err, ErrConnection) {
		t.Errorf("Playlist() after Close error = %v, want ErrConnection", err)
	}
}

func TestEndsWithPrompt(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"> ", true},
		{"256\r\n> ", true},
		{"line\n> ", true},
		{"a -> ", false},
		{"256\r\n", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := endsWithPrompt([]byte(tt.in)); got != tt.want {
			t.Errorf("endsWithPrompt(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestStripTelnet(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		want string
	}{
		{"plain", []byte("Password: "), "Password: "},
		{"will echo", append([]byte("Password: "), 0xff, 0xfb, 0x01), "Password: "},
		{"wont echo then prompt", append([]byte{0xff, 0xfc, 0x01}, []byte("\r\nWelcome\r\n> ")...), "\r\nWelcome\r\n> "},
		{"escaped IAC", []byte{'a', 0xff, 0xff, 'b'}, "a\xffb"},
		{"incomplete sequence", []byte{'a', 0xff, 0xfb}, "a"},
		{"subnegotiation", []byte{'a', 0xff, 0xfa, 0x18, 0x01, 0xff, 0xf0, 'b'}, "ab"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := string(stripTelnet(tt.in)); got != tt.want {
				t.Errorf("stripTelnet() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFrameReply(t *testing.T) {
	tests := []struct {
		raw, line, want string
	}{
		{"> ", "play", ""},
		{"256\r\n> ", "volume", "256"},
		{"volume\r\n256\r\n> ", "volume", "256"},
		{"\r\n| 1 - Playlist\r\n> ", "playlist", "| 1 - Playlist"},
		{"playlisting\r\n> ", "playlist", "playlisting"},
	}
	for _, tt := range tests {
		if got := frameReply(tt.raw, tt.line); got != tt.want {
			t.Errorf("frameReply(%q, %q) = %q, want %q", tt.raw, tt.line, got, tt.want)
		}
	}
}

func TestCommandName(t *testing.T) {
	tests := map[string]string{
		"playlist":               "playlist",
		"goto 5":                 "goto",
		"ENQUEUE /media/a.mp4":   "enqueue",
		"snapshot":               "other",
		"":                       "other",
		"  search button1.mp4  ": "search",
	}
	for in, want := range tests {
		if got := commandName(in); got != want {
			t.Errorf("commandName(%q) = %q, want %q", in, got, want)
		}
	}
}

type recordingObserver struct {
	mu       sync.Mutex
	commands []string
	states   []State
	connects []error
}

func (r *recordingObserver) ObserveRequest(command string, _ float64, _ error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands = append(r.commands, command)
}

func (r *recordingObserver) ObserveState(state State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, state)
}

func (r *recordingObserver) ObserveConnect(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connects = append(r.connects, err)
}

func TestObserver(t *testing.T) {
	rec := &recordingObserver{}
	SetObserver(rec)
	defer SetObserver(nil)

	srv := vlctest.NewServer(t)
	s := dialFake(t, srv)
	if _, err := s.Playlist(context.Background()); err != nil {
		t.Fatalf("Playlist() error = %v", err)
	}
	_ = s.Close()

	rec.mu.Lock()
	defer rec.mu.Unlock()

	if diff := cmp.Diff([]string{"playlist"}, rec.commands); diff != "" {
		t.Errorf("observed commands mismatch (-want +got):\n%s", diff)
	}
	wantStates := []State{Connecting, Authenticating, Ready, Closed}
	if diff := cmp.Diff(wantStates, rec.states); diff != "" {
		t.Errorf("observed states mismatch (-want +got):\n%s", diff)
	}
	if len(rec.connects) != 1 || rec.connects[0] != nil {
		t.Errorf("observed connects = %v, want one successful connect", rec.connects)
	}
}

func TestStateString(t *testing.T) {
	tests := map[State]string{
		Disconnected:   "disconnected",
		Connecting:     "connecting",
		Authenticating: "authenticating",
		Ready:          "ready",
		Closed:         "closed",
		State(99):      "unknown(99)",
	}
	for state, want := range tests {
		if got := state.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", int(state), got, want)
		}
	}
}

func TestOptionsAddr(t *testing.T) {
	if got := (Options{}).Addr(); got != "localhost:4212" {
		t.Errorf("default Addr() = %q, want localhost:4212", got)
	}
	if got := (Options{Host: "10.0.0.2", Port: 9999}).Addr(); got != "10.0.0.2:9999" {
		t.Errorf("Addr() = %q, want 10.0.0.2:9999", got)
	}
}
