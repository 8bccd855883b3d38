package player

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"video-looper/internal/logging"
	"video-looper/internal/mediatypes"
	"video-looper/internal/metrics"
	"video-looper/internal/playlist"
	"video-looper/internal/vlc"
	"video-looper/internal/workers"
)

var log = logging.For("player")

const (
	// DefaultHealthInterval is how often an idle player checks the idle loop.
	DefaultHealthInterval = 30 * time.Second
	// stopTimeout bounds the final stop command.
	stopTimeout = 2 * time.Second
)

var (
	// ErrDropped is returned by Trigger when a trigger is already running.
	ErrDropped = errors.New("player: trigger dropped, another one is running")
	// ErrStopped is returned once the player has stopped or failed.
	ErrStopped = errors.New("player: stopped")
)

// Config configures Connect.
type Config struct {
	VLC vlc.Options
	// MediaDir is prepended to media identifiers.
	MediaDir string
	// IdleMedia is the identifier of the idle loop, relative to MediaDir.
	IdleMedia string
	// Playlist tunes the synchronizer. Its Idle field is filled from
	// MediaDir and IdleMedia.
	Playlist playlist.Config
	// HealthInterval is how often the idle loop is re-checked while no
	// trigger runs. Zero means DefaultHealthInterval, negative disables.
	HealthInterval time.Duration
}

// Option configures a Player.
type Option func(*Player)

// WithObservers registers synchronizer observers. Triggers dropped by
// Trigger are reported to them with playlist.OutcomeBusy.
func WithObservers(observers ...playlist.Observer) Option {
	return func(p *Player) {
		p.observers = append(p.observers, observers...)
	}
}

// Player is the surface the rest of the application uses: play a trigger,
// ask whether one is running, stop.
type Player struct {
	session   *vlc.Session
	syncer    *playlist.Synchronizer
	triggers  *workers.Dispatcher
	observers []playlist.Observer
	mediaDir  string

	ctx    context.Context
	cancel context.CancelFunc

	done     chan struct{}
	doneOnce sync.Once
	errMu    sync.Mutex
	err      error

	stopOnce sync.Once
	stopErr  error
	wg       sync.WaitGroup
}

// Connect dials VLC, starts the idle loop and returns a running Player.
func Connect(ctx context.Context, cfg Config, opts ...Option) (*Player, error) {
	idlePath, err := mediatypes.MediaPath(cfg.MediaDir, cfg.IdleMedia)
	if err != nil {
		return nil, fmt.Errorf("idle media: %w", err)
	}

	p := &Player{
		mediaDir: cfg.MediaDir,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}

	session, err := vlc.Dial(ctx, cfg.VLC)
	if err != nil {
		return nil, err
	}

	pcfg := cfg.Playlist
	pcfg.Idle = playlist.NewMedia(idlePath)
	syncer, err := playlist.New(session, pcfg, p.observers...)
	if err != nil {
		session.Close()
		return nil, err
	}
	if err := syncer.Start(ctx); err != nil {
		syncer.Close()
		session.Close()
		return nil, fmt.Errorf("starting idle loop: %w", err)
	}

	p.session = session
	p.syncer = syncer
	p.triggers = workers.NewDispatcher("trigger", 1, 0)
	p.ctx, p.cancel = context.WithCancel(context.Background())

	interval := cfg.HealthInterval
	if interval == 0 {
		interval = DefaultHealthInterval
	}
	if interval > 0 {
		p.wg.Add(1)
		go p.watch(interval)
	}

	log.Info("connected to VLC %s at %s", session.ServerVersion(), session.Addr())
	return p, nil
}

// Play runs one trigger and returns when the idle loop is back. A trigger
// arriving while another runs is dropped and Play returns nil. Connection
// and protocol errors stop the player; see Done and Err.
func (p *Player) Play(ctx context.Context, mediaID string) error {
	media, err := p.media(mediaID)
	if err != nil {
		return err
	}
	if p.stopped() {
		return ErrStopped
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(p.ctx, cancel)
	defer stop()

	err = p.syncer.PlayTriggered(ctx, media)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, playlist.ErrBusy):
		log.Debug("dropping %s: a trigger is already running", media.Title)
		return nil
	case vlc.IsFatal(err):
		p.fail(err)
	}
	return err
}

// Trigger runs Play on the trigger worker and returns immediately. It
// returns ErrDropped when a trigger is already running.
func (p *Player) Trigger(mediaID string) error {
	media, err := p.media(mediaID)
	if err != nil {
		return err
	}
	if p.stopped() {
		return ErrStopped
	}

	err = p.triggers.Submit(func(ctx context.Context) {
		if err := p.Play(ctx, mediaID); err != nil {
			log.Warn("trigger %s: %v", media.Title, err)
		}
	})
	switch {
	case errors.Is(err, workers.ErrClosed):
		// Stop won the race with this trigger
		return ErrStopped
	case err != nil:
		metrics.TriggersDropped.Inc()
		for _, o := range p.observers {
			o.TriggerFinished(media, playlist.OutcomeBusy, 0)
		}
		return ErrDropped
	}
	return nil
}

// IsPlaying reports whether a trigger is in flight.
func (p *Player) IsPlaying() bool {
	s := p.syncer.State()
	return s != playlist.Idle && s != playlist.Closed
}

// State returns the synchronizer state.
func (p *Player) State() playlist.State {
	return p.syncer.State()
}

// Current returns the trigger in flight, if any.
func (p *Player) Current() (playlist.Trigger, bool) {
	return p.syncer.Current()
}

// SessionState returns the state of the VLC session.
func (p *Player) SessionState() vlc.State {
	return p.session.State()
}

// ServerVersion returns the version from VLC's banner.
func (p *Player) ServerVersion() string {
	return p.session.ServerVersion()
}

// Done is closed when the player stops, by Stop or after a fatal error.
func (p *Player) Done() <-chan struct{} {
	return p.done
}

// Err returns the error that stopped the player, or nil.
func (p *Player) Err() error {
	p.errMu.Lock()
	defer p.errMu.Unlock()
	return p.err
}

// Stop interrupts a running trigger, waits for its cleanup, stops VLC
// playback and closes the session. It is safe to call more than once.
func (p *Player) Stop() error {
	p.stopOnce.Do(func() {
		p.cancel()
		p.triggers.Stop()
		p.wg.Wait()
		p.syncer.Close()

		if p.session.State() == vlc.Ready {
			ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
			if err := p.session.Stop(ctx); err != nil {
				p.stopErr = fmt.Errorf("stopping playback: %w", err)
			}
			cancel()
		}
		if err := p.session.Close(); err != nil && p.stopErr == nil {
			p.stopErr = err
		}
		p.doneOnce.Do(func() { close(p.done) })
		log.Info("player stopped")
	})
	return p.stopErr
}

// fail records err and tears the session down. It runs on the trigger or
// watch goroutine, so it must not wait for either.
func (p *Player) fail(err error) {
	p.errMu.Lock()
	if p.err == nil {
		p.err = err
	}
	p.errMu.Unlock()

	log.Error("VLC session failed: %v", err)
	p.cancel()
	p.syncer.Close()
	p.session.Close()
	p.doneOnce.Do(func() { close(p.done) })
}

func (p *Player) stopped() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

func (p *Player) media(mediaID string) (playlist.Media, error) {
	path, err := mediatypes.MediaPath(p.mediaDir, mediaID)
	if err != nil {
		return playlist.Media{}, err
	}
	return playlist.NewMedia(path), nil
}

// watch re-checks the idle loop while nothing else is happening, which
// is how a VLC that went away between triggers is noticed.
func (p *Player) watch(interval time.Duration) {
	defer p.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
		}
		if p.syncer.State() != playlist.Idle {
			continue
		}
		if _, err := p.syncer.EnsureIdleLoaded(p.ctx); err != nil {
			if p.ctx.Err() != nil {
				return
			}
			if vlc.IsFatal(err) {
				p.fail(err)
				return
			}
			log.Warn("idle loop check: %v", err)
		}
	}
}
