package playlist

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"video-looper/internal/vlc"
	"video-looper/internal/vlc/vlctest"
)

const (
	idleTitle    = "idle.mp4"
	triggerTitle = "button1.mp4"
)

var triggerMedia = NewMedia("/media/" + triggerTitle)

func testConfig() Config {
	return Config{
		Idle:            NewMedia("/media/" + idleTitle),
		PollInterval:    5 * time.Millisecond,
		StartPolls:      5,
		ResolveAttempts: 2,
		ResolveDelay:    time.Millisecond,
		CleanupTimeout:  time.Second,
		ClearOnStart:    true,
	}
}

func dial(t *testing.T, srv *vlctest.Server) *vlc.Session {
	t.Helper()
	s, err := vlc.Dial(context.Background(), vlc.Options{
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

// newStarted returns a fake VLC and a started Synchronizer bound to it.
func newStarted(t *testing.T, observers ...Observer) (*vlctest.Server, *Synchronizer) {
	t.Helper()
	srv := vlctest.NewServer(t)
	syncer, err := New(dial(t, srv), testConfig(), observers...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := syncer.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	return srv, syncer
}

func waitForState(t *testing.T, s *Synchronizer, want State) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if s.State() == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("state = %v, want %v", s.State(), want)
}

func TestNewRequiresIdleMedia(t *testing.T) {
	if _, err := New(&scriptedClient{}, Config{}); err == nil {
		t.Fatal("New() without idle media should fail")
	}
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{Idle: NewMedia("/media/idle.mp4")}.withDefaults()

	if cfg.PollInterval != DefaultPollInterval {
		t.Errorf("PollInterval = %v, want %v", cfg.PollInterval, DefaultPollInterval)
	}
	if cfg.StartPolls != DefaultStartPolls {
		t.Errorf("StartPolls = %d, want %d", cfg.StartPolls, DefaultStartPolls)
	}
	if cfg.ResolveAttempts != DefaultResolveAttempts {
		t.Errorf("ResolveAttempts = %d, want %d", cfg.ResolveAttempts, DefaultResolveAttempts)
	}
	if cfg.CleanupTimeout != DefaultCleanupTimeout {
		t.Errorf("CleanupTimeout = %v, want %v", cfg.CleanupTimeout, DefaultCleanupTimeout)
	}
}

func TestNewMedia(t *testing.T) {
	m := NewMedia("/media/clips/button1.mp4")
	if m.Title != "button1.mp4" {
		t.Errorf("Title = %q, want %q", m.Title, "button1.mp4")
	}
	if m.Path != "/media/clips/button1.mp4" {
		t.Errorf("Path = %q", m.Path)
	}
}

func TestStart(t *testing.T) {
	srv := vlctest.NewServer(t)
	srv.Seed("/media/leftover.mp4")

	cfg := testConfig()
	cfg.Volume = 300
	syncer, err := New(dial(t, srv), cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := syncer.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if diff := cmp.Diff([]string{idleTitle}, srv.Titles()); diff != "" {
		t.Errorf("playlist mismatch (-want +got):\n%s", diff)
	}
	if srv.Current() != idleTitle || !srv.Playing() {
		t.Errorf("current = %q playing = %v, want idle playing", srv.Current(), srv.Playing())
	}
	if !srv.Looping() {
		t.Error("loop should be enabled")
	}
	if srv.Volume() != 300 {
		t.Errorf("volume = %d, want 300", srv.Volume())
	}
	if syncer.State() != Idle {
		t.Errorf("State() = %v, want %v", syncer.State(), Idle)
	}
}

func TestEnsureIdleLoadedIdempotent(t *testing.T) {
	srv := vlctest.NewServer(t)
	syncer, err := New(dial(t, srv), testConfig())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctx := context.Background()

	first, err := syncer.EnsureIdleLoaded(ctx)
	if err != nil {
		t.Fatalf("first EnsureIdleLoaded() error = %v", err)
	}
	second, err := syncer.EnsureIdleLoaded(ctx)
	if err != nil {
		t.Fatalf("second EnsureIdleLoaded() error = %v", err)
	}

	if first != second {
		t.Errorf("slots differ: %d then %d", first, second)
	}
	if n := srv.Count(idleTitle); n != 1 {
		t.Errorf("idle entries = %d, want 1", n)
	}
	if n := srv.CommandCount("enqueue"); n != 1 {
		t.Errorf("enqueue commands = %d, want 1", n)
	}
	if srv.Playing() {
		t.Error("EnsureIdleLoaded must not start playback")
	}
}

func TestEnsureIdleLoadedRemovesDuplicates(t *testing.T) {
	srv := vlctest.NewServer(t)
	srv.Seed("/media/idle.mp4", "/media/other.mp4", "/media/idle.mp4")
	session := dial(t, srv)
	ctx := context.Background()

	// the second copy (slot 6) is the one on screen
	if err := session.Goto(ctx, 6); err != nil {
		t.Fatalf("Goto() error = %v", err)
	}

	syncer, err := New(session, testConfig())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	slot, err := syncer.EnsureIdleLoaded(ctx)
	if err != nil {
		t.Fatalf("EnsureIdleLoaded() error = %v", err)
	}

	if slot != 6 {
		t.Errorf("slot = %d, want the playing copy 6", slot)
	}
	if diff := cmp.Diff([]string{"other.mp4", idleTitle}, srv.Titles()); diff != "" {
		t.Errorf("playlist mismatch (-want +got):\n%s", diff)
	}
}

func TestEnsureIdleLoadedMissingFile(t *testing.T) {
	srv := vlctest.NewServer(t)
	srv.Reject(idleTitle)

	syncer, err := New(dial(t, srv), testConfig())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	_, err = syncer.EnsureIdleLoaded(context.Background())
	if !errors.Is(err, ErrMediaNotFound) {
		t.Fatalf("EnsureIdleLoaded() error = %v, want ErrMediaNotFound", err)
	}
	if n := srv.CommandCount("enqueue"); n != 1 {
		t.Errorf("enqueue commands = %d, want 1", n)
	}
}

func TestPlayTriggeredEndToEnd(t *testing.T) {
	srv, syncer := newStarted(t)
	srv.SetDuration(triggerTitle, 3)

	if err := syncer.PlayTriggered(context.Background(), triggerMedia); err != nil {
		t.Fatalf("PlayTriggered() error = %v", err)
	}

	if syncer.State() != Idle {
		t.Errorf("State() = %v, want %v", syncer.State(), Idle)
	}
	if _, ok := syncer.Current(); ok {
		t.Error("Current() should be empty after the trigger finished")
	}
	if diff := cmp.Diff([]string{idleTitle}, srv.Titles()); diff != "" {
		t.Errorf("playlist mismatch (-want +got):\n%s", diff)
	}
	if srv.Current() != idleTitle {
		t.Errorf("current = %q, want %q", srv.Current(), idleTitle)
	}

	for _, want := range []string{"enqueue /media/button1.mp4", "goto 5", "delete 5"} {
		if srv.CommandCount(want) != 1 {
			t.Errorf("command %q sent %d times, want 1", want, srv.CommandCount(want))
		}
	}
}

func TestPlayTriggeredRepeatedly(t *testing.T) {
	srv, syncer := newStarted(t)
	srv.SetDuration(triggerTitle, 2)
	srv.SetDuration("button2.mp4", 2)

	for _, m := range []Media{triggerMedia, NewMedia("/media/button2.mp4"), triggerMedia} {
		if err := syncer.PlayTriggered(context.Background(), m); err != nil {
			t.Fatalf("PlayTriggered(%s) error = %v", m.Title, err)
		}
	}

	if diff := cmp.Diff([]string{idleTitle}, srv.Titles()); diff != "" {
		t.Errorf("playlist mismatch (-want +got):\n%s", diff)
	}
}

func TestPlayTriggeredMissingMedia(t *testing.T) {
	srv, syncer := newStarted(t)
	srv.Reject("missing.mp4")

	err := syncer.PlayTriggered(context.Background(), NewMedia("/media/missing.mp4"))
	if !errors.Is(err, ErrMediaNotFound) {
		t.Fatalf("PlayTriggered() error = %v, want ErrMediaNotFound", err)
	}

	if syncer.State() != Idle {
		t.Errorf("State() = %v, want %v", syncer.State(), Idle)
	}
	if srv.Current() != idleTitle || !srv.Playing() {
		t.Errorf("idle playback disrupted: current = %q playing = %v", srv.Current(), srv.Playing())
	}
	if diff := cmp.Diff([]string{idleTitle}, srv.Titles()); diff != "" {
		t.Errorf("playlist mismatch (-want +got):\n%s", diff)
	}
	if n := srv.CommandCount("goto"); n != 1 {
		t.Errorf("goto commands = %d, want only the one from Start", n)
	}
}

func TestPlayTriggeredReusesOrphan(t *testing.T) {
	srv, syncer := newStarted(t)
	srv.SetDuration(triggerTitle, 2)
	// a copy VLC added after an earlier attempt gave up on it
	srv.Seed("/media/" + triggerTitle)

	if err := syncer.PlayTriggered(context.Background(), triggerMedia); err != nil {
		t.Fatalf("PlayTriggered() error = %v", err)
	}

	if n := srv.CommandCount("enqueue /media/button1.mp4"); n != 0 {
		t.Errorf("trigger enqueued %d times, want the orphan reused", n)
	}
	if n := srv.Count(triggerTitle); n != 0 {
		t.Errorf("trigger entries = %d, want 0", n)
	}
}

func TestPlayTriggeredIdleMedia(t *testing.T) {
	_, syncer := newStarted(t)

	err := syncer.PlayTriggered(context.Background(), NewMedia("/media/"+idleTitle))
	if !errors.Is(err, ErrIdleMedia) {
		t.Fatalf("PlayTriggered(idle) error = %v, want ErrIdleMedia", err)
	}
}

func TestPlayTriggeredMutualExclusion(t *testing.T) {
	srv, syncer := newStarted(t)
	// plays until Finish

	results := make(chan error, 2)
	start := make(chan struct{})
	for i := 0; i < 2; i++ {
		go func() {
			<-start
			results <- syncer.PlayTriggered(context.Background(), triggerMedia)
		}()
	}
	close(start)

	first := <-results
	if !errors.Is(first, ErrBusy) {
		t.Fatalf("first result = %v, want ErrBusy", first)
	}

	waitForState(t, syncer, AwaitingTriggerEnd)
	if n := srv.Count(triggerTitle); n != 1 {
		t.Errorf("trigger entries while playing = %d, want 1", n)
	}
	if n := len(srv.Titles()); n != 2 {
		t.Errorf("playlist has %d entries while playing, want idle + trigger", n)
	}

	srv.Finish()

	select {
	case err := <-results:
		if err != nil {
			t.Fatalf("second result = %v, want nil", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("trigger did not finish")
	}

	if diff := cmp.Diff([]string{idleTitle}, srv.Titles()); diff != "" {
		t.Errorf("playlist mismatch (-want +got):\n%s", diff)
	}
}

func TestPlayTriggeredCancellation(t *testing.T) {
	srv, syncer := newStarted(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- syncer.PlayTriggered(ctx, triggerMedia)
	}()

	waitForState(t, syncer, AwaitingTriggerEnd)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("PlayTriggered() error = %v, want context.Canceled", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("cancellation did not interrupt polling")
	}

	if n := srv.Count(triggerTitle); n != 0 {
		t.Errorf("trigger entries after cancel = %d, want 0", n)
	}
	if syncer.State() != Idle {
		t.Errorf("State() = %v, want %v", syncer.State(), Idle)
	}
}

func TestCloseInterruptsTrigger(t *testing.T) {
	srv, syncer := newStarted(t)

	done := make(chan error, 1)
	go func() {
		done <- syncer.PlayTriggered(context.Background(), triggerMedia)
	}()
	waitForState(t, syncer, AwaitingTriggerEnd)

	syncer.Close()

	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("PlayTriggered() error = %v, want context.Canceled", err)
	}
	if syncer.State() != Closed {
		t.Errorf("State() = %v, want %v", syncer.State(), Closed)
	}
	if n := srv.Count(triggerTitle); n != 0 {
		t.Errorf("trigger entries after Close = %d, want 0", n)
	}

	if err := syncer.PlayTriggered(context.Background(), triggerMedia); !errors.Is(err, ErrClosed) {
		t.Errorf("PlayTriggered() after Close error = %v, want ErrClosed", err)
	}
	if _, err := syncer.EnsureIdleLoaded(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("EnsureIdleLoaded() after Close error = %v, want ErrClosed", err)
	}
}

func TestStartPhaseExhausted(t *testing.T) {
	srv, syncer := newStarted(t)
	srv.IgnoreGoto(true)

	err := syncer.PlayTriggered(context.Background(), triggerMedia)
	if !errors.Is(err, vlc.ErrProtocol) {
		t.Fatalf("PlayTriggered() error = %v, want ErrProtocol", err)
	}
	if n := srv.Count(triggerTitle); n != 0 {
		t.Errorf("trigger entries = %d, want it cleaned up", n)
	}
	if n := srv.CommandCount("playlist"); n < testConfig().StartPolls {
		t.Errorf("playlist polls = %d, want at least %d", n, testConfig().StartPolls)
	}
	if syncer.State() != Idle {
		t.Errorf("State() = %v, want %v", syncer.State(), Idle)
	}
}

func TestTieBreakIdleReportedBeforeTrigger(t *testing.T) {
	client := newScriptedClient(
		"|   *4 - idle.mp4\n|   5 - button1.mp4",
		"|   *4 - idle.mp4\n|   5 - button1.mp4",
		"|   4 - idle.mp4\n|   *5 - button1.mp4",
		"|   4 - idle.mp4\n|   5 - button1.mp4",
		"|   *4 - idle.mp4",
	)
	syncer, err := New(client, testConfig())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := syncer.PlayTriggered(context.Background(), triggerMedia); err != nil {
		t.Fatalf("PlayTriggered() error = %v", err)
	}

	// two idle reports, the start, a dump with nothing marked and the end
	if n := client.count("playlist"); n < 5 {
		t.Errorf("playlist polls = %d, want at least 5", n)
	}
	if !client.deleted(5) {
		t.Error("trigger slot 5 was not deleted")
	}
}

func TestShortTriggerSeenRightAfterGoto(t *testing.T) {
	client := newScriptedClient(
		"|   4 - idle.mp4\n|   *5 - button1.mp4",
		"|   *4 - idle.mp4",
	)
	cfg := testConfig()
	cfg.PollInterval = 300 * time.Millisecond
	syncer, err := New(client, cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := syncer.PlayTriggered(context.Background(), triggerMedia); err != nil {
		t.Fatalf("PlayTriggered() error = %v", err)
	}
	if d := client.pollDelay(); d >= cfg.PollInterval/2 {
		t.Errorf("first poll %v after goto, want it before one %v interval", d, cfg.PollInterval)
	}
	if !client.deleted(5) {
		t.Error("trigger slot 5 was not deleted")
	}
}

func TestClientFailureCleansUp(t *testing.T) {
	client := newScriptedClient("|   *4 - idle.mp4")
	client.gotoErr = vlc.ErrConnection

	var rec recorder
	syncer, err := New(client, testConfig(), &rec)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	err = syncer.PlayTriggered(context.Background(), triggerMedia)
	if !errors.Is(err, vlc.ErrConnection) {
		t.Fatalf("PlayTriggered() error = %v, want ErrConnection", err)
	}
	if !client.deleted(5) {
		t.Error("trigger should be deleted after a failure")
	}
	if syncer.State() != Idle {
		t.Errorf("State() = %v, want %v", syncer.State(), Idle)
	}
	if got := rec.outcomes(); len(got) != 1 || got[0] != OutcomeFailed {
		t.Errorf("outcomes = %v, want [failed]", got)
	}
}

func TestObserverNotifications(t *testing.T) {
	var rec recorder
	srv, syncer := newStarted(t, &rec)
	srv.SetDuration(triggerTitle, 2)

	if err := syncer.PlayTriggered(context.Background(), triggerMedia); err != nil {
		t.Fatalf("PlayTriggered() error = %v", err)
	}

	want := []State{InsertingTrigger, AwaitingTriggerStart, PlayingTrigger, AwaitingTriggerEnd, Cleanup, Idle}
	if diff := cmp.Diff(want, rec.states()); diff != "" {
		t.Errorf("state transitions mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]Outcome{OutcomeCompleted}, rec.outcomes()); diff != "" {
		t.Errorf("outcomes mismatch (-want +got):\n%s", diff)
	}
	if rec.polls() == 0 {
		t.Error("no polls observed")
	}
}

func TestOutcomeOf(t *testing.T) {
	tests := []struct {
		err  error
		want Outcome
	}{
		{nil, OutcomeCompleted},
		{ErrBusy, OutcomeBusy},
		{ErrMediaNotFound, OutcomeNotFound},
		{context.Canceled, OutcomeCancelled},
		{ErrClosed, OutcomeCancelled},
		{vlc.ErrProtocol, OutcomeFailed},
		{errors.Join(vlc.ErrConnection, errors.New("reset")), OutcomeFailed},
	}
	for _, tt := range tests {
		if got := OutcomeOf(tt.err); got != tt.want {
			t.Errorf("OutcomeOf(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestStateString(t *testing.T) {
	for _, s := range States {
		if s.String() == "" || s.String()[0] == 'u' {
			t.Errorf("State(%d) has no name", int(s))
		}
	}
	if got := State(42).String(); got != "unknown(42)" {
		t.Errorf("State(42).String() = %q", got)
	}
	text, _ := AwaitingTriggerEnd.MarshalText()
	if string(text) != "awaiting_trigger_end" {
		t.Errorf("MarshalText() = %q", text)
	}
}

// recorder collects observer notifications.
type recorder struct {
	mu       sync.Mutex
	changes  []State
	finished []Outcome
	polled   int
}

func (r *recorder) StateChanged(_, to State, _ Media) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, to)
}

func (r *recorder) Polled(State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.polled++
}

func (r *recorder) TriggerFinished(_ Media, outcome Outcome, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finished = append(r.finished, outcome)
}

func (r *recorder) states() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]State(nil), r.changes...)
}

func (r *recorder) outcomes() []Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Outcome(nil), r.finished...)
}

func (r *recorder) polls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.polled
}
