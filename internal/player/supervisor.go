package player

import (
	"context"
	"errors"
	"sync"
	"time"

	"video-looper/internal/playlist"
	"video-looper/internal/retry"
	"video-looper/internal/vlc"
)

// ErrNotConnected is returned by Supervisor.Trigger while no player runs.
var ErrNotConnected = errors.New("player: not connected to VLC")

// Status is a snapshot of the supervised player.
type Status struct {
	Connected      bool              `json:"connected"`
	Session        string            `json:"session"`
	State          playlist.State    `json:"state"`
	Playing        bool              `json:"playing"`
	ServerVersion  string            `json:"serverVersion,omitempty"`
	Trigger        *playlist.Trigger `json:"trigger,omitempty"`
	ConnectedSince time.Time         `json:"connectedSince,omitzero"`
	Reconnects     int               `json:"reconnects"`
	LastError      string            `json:"lastError,omitempty"`
}

// Supervisor keeps a Player connected, reconnecting with backoff when VLC
// goes away.
type Supervisor struct {
	cfg   Config
	retry retry.Config
	opts  []Option

	mu         sync.RWMutex
	current    *Player
	since      time.Time
	reconnects int
	lastErr    error
	ready      chan struct{}
	readyOnce  sync.Once
}

// NewSupervisor returns a Supervisor for cfg. Call Run to connect.
func NewSupervisor(cfg Config, rc retry.Config, opts ...Option) *Supervisor {
	if rc.Operation == "" {
		rc.Operation = "connect"
	}
	return &Supervisor{
		cfg:   cfg,
		retry: rc,
		opts:  opts,
		ready: make(chan struct{}),
	}
}

// Run connects and reconnects until ctx is cancelled, which returns nil
// after stopping the player. It returns an error when reconnecting cannot
// help, such as a rejected password.
func (s *Supervisor) Run(ctx context.Context) error {
	for {
		var p *Player
		err := retry.Do(ctx, s.retry, func(ctx context.Context) error {
			var err error
			p, err = Connect(ctx, s.cfg, s.opts...)
			if err != nil {
				s.setErr(err)
			}
			return err
		}, retryableConnect)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		s.setPlayer(p)

		select {
		case <-ctx.Done():
			s.setPlayer(nil)
			if err := p.Stop(); err != nil {
				log.Warn("stop: %v", err)
			}
			return nil
		case <-p.Done():
		}

		failure := p.Err()
		s.setPlayer(nil)
		p.Stop()
		s.setErr(failure)

		if failure != nil && !vlc.IsRetryable(failure) {
			return failure
		}
		s.mu.Lock()
		s.reconnects++
		s.mu.Unlock()
		log.Warn("lost VLC session (%v), reconnecting", failure)
	}
}

// Ready is closed after the first successful connect.
func (s *Supervisor) Ready() <-chan struct{} {
	return s.ready
}

// Trigger starts mediaID on the current player.
func (s *Supervisor) Trigger(mediaID string) error {
	p := s.player()
	if p == nil {
		return ErrNotConnected
	}
	return p.Trigger(mediaID)
}

// IsPlaying reports whether a trigger is in flight.
func (s *Supervisor) IsPlaying() bool {
	p := s.player()
	return p != nil && p.IsPlaying()
}

// Connected reports whether a player is running.
func (s *Supervisor) Connected() bool {
	return s.player() != nil
}

// Status returns a snapshot for the status API.
func (s *Supervisor) Status() Status {
	s.mu.RLock()
	p := s.current
	st := Status{
		Session:    vlc.Disconnected.String(),
		State:      playlist.Closed,
		Reconnects: s.reconnects,
	}
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
	}
	since := s.since
	s.mu.RUnlock()

	if p == nil {
		return st
	}
	st.Connected = true
	st.ConnectedSince = since
	st.Session = p.SessionState().String()
	st.State = p.State()
	st.Playing = p.IsPlaying()
	st.ServerVersion = p.ServerVersion()
	if t, ok := p.Current(); ok {
		st.Trigger = &t
	}
	return st
}

func (s *Supervisor) player() *Player {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

func (s *Supervisor) setPlayer(p *Player) {
	s.mu.Lock()
	s.current = p
	if p != nil {
		s.since = time.Now()
		s.lastErr = nil
	} else {
		s.since = time.Time{}
	}
	s.mu.Unlock()

	if p != nil {
		s.readyOnce.Do(func() { close(s.ready) })
	}
}

func (s *Supervisor) setErr(err error) {
	if err == nil {
		return
	}
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
}

// retryableConnect also retries a missing idle file, which may appear once
// the media volume is mounted.
func retryableConnect(err error) bool {
	return vlc.IsRetryable(err) || errors.Is(err, playlist.ErrMediaNotFound)
}
