package playlist

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"video-looper/internal/logging"
	"video-looper/internal/vlc"
)

var log = logging.For("playlist")

// Synchronizer keeps the idle loop in VLC's playlist and runs one trigger
// at a time through insert, jump, poll and delete.
type Synchronizer struct {
	client    Client
	cfg       Config
	observers []Observer

	// opMu spans a whole operation so that no two command sequences
	// interleave on the session.
	opMu sync.Mutex

	stateMu    sync.Mutex
	state      State
	closing    bool
	trigger    Trigger
	hasTrigger bool

	// done is cancelled by Close to interrupt polling.
	done   context.Context
	cancel context.CancelFunc
}

// New returns a Synchronizer in the Idle state. Call Start to put the
// idle loop on screen.
func New(client Client, cfg Config, observers ...Observer) (*Synchronizer, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	done, cancel := context.WithCancel(context.Background())
	return &Synchronizer{
		client:    client,
		cfg:       cfg.withDefaults(),
		observers: observers,
		state:     Idle,
		done:      done,
		cancel:    cancel,
	}, nil
}

// State returns the current state.
func (s *Synchronizer) State() State {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.state
}

// Current returns the trigger in flight, if any.
func (s *Synchronizer) Current() (Trigger, bool) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.trigger, s.hasTrigger
}

// Start enables playlist looping, optionally clears the playlist and sets
// the volume, makes sure the idle media is loaded and plays it.
func (s *Synchronizer) Start(ctx context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	if s.isClosing() {
		return ErrClosed
	}

	if err := s.client.Loop(ctx, true); err != nil {
		return err
	}
	if s.cfg.ClearOnStart {
		if err := s.client.Clear(ctx); err != nil {
			return err
		}
	}
	if s.cfg.Volume > 0 {
		if err := s.client.SetVolume(ctx, s.cfg.Volume); err != nil {
			return err
		}
	}

	idle, err := s.ensureIdleLoaded(ctx)
	if err != nil {
		return err
	}
	if err := s.restoreIdle(ctx, idle); err != nil {
		return err
	}
	if err := s.client.Play(ctx); err != nil {
		return err
	}

	log.Info("idle loop %s running at slot %d", s.cfg.Idle.Title, idle)
	return nil
}

// EnsureIdleLoaded makes sure exactly one idle item is in the playlist and
// returns its slot. It enqueues the idle media when it is missing and
// deletes extra copies, keeping the one that is playing. Playback is not
// changed. Calling it again is a no-op.
func (s *Synchronizer) EnsureIdleLoaded(ctx context.Context) (vlc.Slot, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	if s.isClosing() {
		return 0, ErrClosed
	}
	return s.ensureIdleLoaded(ctx)
}

func (s *Synchronizer) ensureIdleLoaded(ctx context.Context) (vlc.Slot, error) {
	idle := s.cfg.Idle
	enqueued := false
	misses := 0

	for step := 0; step < maxReconcileSteps; step++ {
		found, err := s.lookup(ctx, idle.Title)
		if err != nil {
			return 0, err
		}

		switch len(found.slots) {
		case 0:
			if !enqueued {
				log.Info("idle media %s missing, enqueueing %s", idle.Title, idle.Path)
				if err := s.client.Enqueue(ctx, idle.Path); err != nil {
					return 0, err
				}
				enqueued = true
				continue
			}
			misses++
			if misses >= s.cfg.ResolveAttempts {
				return 0, fmt.Errorf("%w: idle media %s", ErrMediaNotFound, idle.Title)
			}
			if err := sleep(ctx, s.cfg.ResolveDelay); err != nil {
				return 0, err
			}
		case 1:
			return found.slots[0], nil
		default:
			extra := found.extra()
			log.Warn("idle media %s listed %d times, deleting slot %d", idle.Title, len(found.slots), extra)
			if err := s.client.Delete(ctx, extra); err != nil {
				return 0, err
			}
		}
	}
	return 0, fmt.Errorf("%w: idle media %s did not settle", vlc.ErrProtocol, idle.Title)
}

// PlayTriggered plays media once and returns when VLC has moved past it
// and it has been deleted again. It returns ErrBusy when another trigger
// is in flight and ErrMediaNotFound when VLC never lists the media.
//
// The end of playback is awaited without a bound; cancel ctx or call Close
// to stop waiting. The trigger is then deleted on a detached context.
func (s *Synchronizer) PlayTriggered(ctx context.Context, media Media) (err error) {
	if media.Title == s.cfg.Idle.Title {
		return fmt.Errorf("%w: %s", ErrIdleMedia, media.Title)
	}
	if err := s.claim(media); err != nil {
		if errors.Is(err, ErrBusy) {
			s.notifyFinished(media, OutcomeBusy, 0)
		}
		return err
	}

	s.opMu.Lock()
	defer s.opMu.Unlock()

	start := time.Now()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(s.done, cancel)
	defer stop()

	resolved := false
	defer func() {
		if err != nil && resolved {
			s.discard(ctx, media)
		}
		s.setState(Idle, media)
		outcome := OutcomeOf(err)
		s.notifyFinished(media, outcome, time.Since(start))
		if err != nil {
			log.Warn("trigger %s ended with %s: %v", media.Title, outcome, err)
		}
	}()

	if err := ctx.Err(); err != nil {
		return err
	}

	// 1. insert, reusing a copy left behind by an earlier failed attempt
	found, err := s.lookup(ctx, media.Title)
	if err != nil {
		return err
	}
	if len(found.slots) > 0 {
		log.Info("reusing %s already in the playlist at slot %d", media.Title, found.slots[0])
	} else if err := s.client.Enqueue(ctx, media.Path); err != nil {
		return err
	}

	idle, err := s.ensureIdleLoaded(ctx)
	if err != nil {
		return err
	}

	// 2. resolve
	slot, err := s.resolve(ctx, media)
	if err != nil {
		return err
	}
	resolved = true
	s.setResolved(slot)

	// 3. jump and wait for VLC to confirm it
	if err := s.client.Goto(ctx, slot); err != nil {
		return err
	}
	s.setState(AwaitingTriggerStart, media)
	if err := s.awaitStart(ctx, media, slot, idle); err != nil {
		return err
	}
	s.setState(PlayingTrigger, media)
	log.Info("playing %s at slot %d", media.Title, slot)

	// 4. wait for playback to move on
	s.setState(AwaitingTriggerEnd, media)
	if err := s.awaitEnd(ctx, slot); err != nil {
		return err
	}

	// 5. remove the trigger and make sure the idle loop is still there
	s.setState(Cleanup, media)
	if err := s.deleteTitle(ctx, media.Title); err != nil {
		return err
	}
	resolved = false
	if idle, err = s.ensureIdleLoaded(ctx); err != nil {
		return err
	}
	if err := s.restoreIdle(ctx, idle); err != nil {
		return err
	}

	log.Info("trigger %s finished after %v", media.Title, time.Since(start).Round(time.Millisecond))
	return nil
}

// Close interrupts a trigger in flight, waits for its cleanup and moves to
// Closed. Later operations fail with ErrClosed.
func (s *Synchronizer) Close() {
	s.stateMu.Lock()
	s.closing = true
	s.stateMu.Unlock()

	s.cancel()

	s.opMu.Lock()
	defer s.opMu.Unlock()
	s.setState(Closed, Media{})
}

// claim moves Idle to InsertingTrigger atomically.
func (s *Synchronizer) claim(media Media) error {
	s.stateMu.Lock()
	if s.closing || s.state == Closed {
		s.stateMu.Unlock()
		return ErrClosed
	}
	if s.state != Idle {
		current := s.trigger.Media.Title
		s.stateMu.Unlock()
		log.Debug("dropping trigger %s: %s still in progress", media.Title, current)
		return ErrBusy
	}
	s.state = InsertingTrigger
	s.trigger = Trigger{Media: media, Started: time.Now()}
	s.hasTrigger = true
	s.stateMu.Unlock()

	s.notifyState(Idle, InsertingTrigger, media)
	return nil
}

func (s *Synchronizer) isClosing() bool {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.closing || s.state == Closed
}

func (s *Synchronizer) setState(to State, media Media) {
	s.stateMu.Lock()
	from := s.state
	if from == Closed || from == to {
		s.stateMu.Unlock()
		return
	}
	s.state = to
	if to == Idle || to == Closed {
		s.trigger = Trigger{}
		s.hasTrigger = false
	}
	s.stateMu.Unlock()

	log.Debug("state %s -> %s", from, to)
	s.notifyState(from, to, media)
}

func (s *Synchronizer) setResolved(slot vlc.Slot) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	s.trigger.Slot = slot
	s.trigger.Resolved = true
}

// resolve finds the slot of a just enqueued title, retrying while VLC is
// still adding it.
func (s *Synchronizer) resolve(ctx context.Context, media Media) (vlc.Slot, error) {
	for attempt := 1; ; attempt++ {
		found, err := s.lookup(ctx, media.Title)
		if err != nil {
			return 0, err
		}
		if len(found.slots) > 0 {
			return found.slots[0], nil
		}
		if attempt >= s.cfg.ResolveAttempts {
			return 0, fmt.Errorf("%w: %s", ErrMediaNotFound, media.Title)
		}
		if err := sleep(ctx, s.cfg.ResolveDelay); err != nil {
			return 0, err
		}
	}
}

// awaitStart polls right after the jump and then every PollInterval, so a
// clip shorter than one interval is still seen playing.
func (s *Synchronizer) awaitStart(ctx context.Context, media Media, slot, idle vlc.Slot) error {
	for poll := 1; poll <= s.cfg.StartPolls; poll++ {
		if poll > 1 {
			if err := sleep(ctx, s.cfg.PollInterval); err != nil {
				return err
			}
		}
		current, ok, err := s.poll(ctx, AwaitingTriggerStart)
		if err != nil {
			return err
		}
		switch {
		case ok && current == slot:
			return nil
		case ok && current == idle:
			// the jump has not taken effect yet; this is not the end of the trigger
			log.Debug("idle slot %d still playing, waiting for %s (poll %d/%d)", idle, media.Title, poll, s.cfg.StartPolls)
		}
	}
	return fmt.Errorf("%w: %s did not start after %d polls", vlc.ErrProtocol, media.Title, s.cfg.StartPolls)
}

// awaitEnd polls until another slot is playing. Nothing playing counts as
// not yet changed.
func (s *Synchronizer) awaitEnd(ctx context.Context, slot vlc.Slot) error {
	for {
		if err := sleep(ctx, s.cfg.PollInterval); err != nil {
			return err
		}
		current, ok, err := s.poll(ctx, AwaitingTriggerEnd)
		if err != nil {
			return err
		}
		if ok && current != slot {
			return nil
		}
	}
}

func (s *Synchronizer) poll(ctx context.Context, phase State) (vlc.Slot, bool, error) {
	dump, err := s.client.Playlist(ctx)
	if err != nil {
		return 0, false, err
	}
	for _, o := range s.observers {
		o.Polled(phase)
	}
	slot, ok := vlc.ParsePlayingIndex(dump)
	return slot, ok, nil
}

// restoreIdle jumps to the idle slot unless it is already playing.
func (s *Synchronizer) restoreIdle(ctx context.Context, idle vlc.Slot) error {
	dump, err := s.client.Playlist(ctx)
	if err != nil {
		return err
	}
	if current, ok := vlc.ParsePlayingIndex(dump); ok && current == idle {
		return nil
	}
	log.Debug("jumping back to idle slot %d", idle)
	return s.client.Goto(ctx, idle)
}

// deleteTitle deletes every entry listed under title, re-resolving before
// each delete.
func (s *Synchronizer) deleteTitle(ctx context.Context, title string) error {
	for step := 0; step < maxReconcileSteps; step++ {
		found, err := s.lookup(ctx, title)
		if err != nil {
			return err
		}
		if len(found.slots) == 0 {
			return nil
		}
		if err := s.client.Delete(ctx, found.slots[0]); err != nil {
			return err
		}
	}
	return fmt.Errorf("%w: %s still listed after %d deletes", vlc.ErrProtocol, title, maxReconcileSteps)
}

// discard removes a trigger after a failure. It runs on a detached context
// when ctx is already cancelled.
func (s *Synchronizer) discard(ctx context.Context, media Media) {
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.WithoutCancel(ctx), s.cfg.CleanupTimeout)
		defer cancel()
	}

	s.setState(Cleanup, media)
	if err := s.deleteTitle(ctx, media.Title); err != nil {
		log.Warn("could not remove %s from the playlist: %v", media.Title, err)
		return
	}
	log.Debug("removed %s after failure", media.Title)
}

type lookupResult struct {
	slots      []vlc.Slot
	playing    vlc.Slot
	hasPlaying bool
}

// extra picks a duplicate to delete, never the one that is playing.
func (r lookupResult) extra() vlc.Slot {
	for _, slot := range r.slots {
		if !r.hasPlaying || slot != r.playing {
			return slot
		}
	}
	return r.slots[len(r.slots)-1]
}

// lookup searches for title and clears the search filter again; VLC
// otherwise keeps the playlist view filtered.
func (s *Synchronizer) lookup(ctx context.Context, title string) (lookupResult, error) {
	reply, err := s.client.Search(ctx, title)
	if err != nil {
		return lookupResult{}, err
	}
	if err := s.client.ResetSearch(ctx); err != nil {
		return lookupResult{}, err
	}

	slots := vlc.ParseSearchMatches(reply, title)
	playing, ok := vlc.ParsePlayingIndex(reply)
	if ok && !slices.Contains(slots, playing) {
		ok = false
	}
	return lookupResult{slots: slots, playing: playing, hasPlaying: ok}, nil
}

func (s *Synchronizer) notifyState(from, to State, media Media) {
	for _, o := range s.observers {
		o.StateChanged(from, to, media)
	}
}

func (s *Synchronizer) notifyFinished(media Media, outcome Outcome, d time.Duration) {
	for _, o := range s.observers {
		o.TriggerFinished(media, outcome, d)
	}
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
