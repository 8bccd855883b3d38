/*
Package player is the surface the kiosk uses to drive VLC.

A Player owns one VLC session and the playlist synchronizer running on
it. Connect dials VLC and puts the idle loop on screen:

	p, err := player.Connect(ctx, player.Config{
		VLC:       vlc.Options{Host: "localhost", Password: "admin"},
		MediaDir:  "/media",
		IdleMedia: "loop.mp4",
	})
	defer p.Stop()

# Triggers

Play blocks until the trigger has played and the idle loop is back.
Trigger runs the same thing on a single background worker and returns at
once, which is what input handlers want:

	if err := p.Trigger("button1.mp4"); errors.Is(err, player.ErrDropped) {
		// another trigger is on screen
	}

A trigger that arrives while another one runs is dropped: Play returns
nil and Trigger returns ErrDropped. IsPlaying is true from the moment a
trigger is claimed until the idle loop is restored.

# Failures

Media errors (an identifier that is not a playable file name, a file VLC
cannot open) are returned to the caller and the player keeps running.
Connection and protocol errors stop the player: Done is closed and Err
reports the cause. An idle player checks the idle loop every
HealthInterval, so a VLC that goes away between triggers is noticed too.

# Supervisor

Supervisor wraps Connect in a reconnect loop with exponential backoff
(package retry). It gives up only on errors reconnecting cannot fix, such
as a rejected password:

	sup := player.NewSupervisor(cfg, retry.DefaultConfig())
	go func() { errc <- sup.Run(ctx) }()
	...
	sup.Trigger("button1.mp4")
*/
package player
