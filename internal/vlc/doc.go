/*
Package vlc is a client for VLC's telnet remote-control interface.

# Protocol

VLC started with the telnet interface (vlc -I telnet or --extraintf telnet)
greets a client with a version banner and a password prompt:

	VLC media player 3.0.18 Vetinari
	Password:

After a correct password every reply ends with the "> " prompt. The
interface has no request IDs and no event push, so a Session allows one
request in flight and callers poll for playback changes.

# Usage

	s, err := vlc.Dial(ctx, vlc.Options{Host: "localhost", Port: 4212, Password: "admin"})
	if err != nil {
	    return err
	}
	defer s.Close()

	if err := s.Enqueue(ctx, "/media/button1.mp4"); err != nil {
	    return err
	}
	reply, err := s.Search(ctx, "button1.mp4")
	if err != nil {
	    return err
	}
	slot, ok := vlc.ParseSearchMatch(reply, "button1.mp4")

# Playlist slots

Playlist indexes (Slot) shift when other items are added or removed. They
must be resolved by title immediately before use and never cached across
mutating commands.

# Errors

  - ErrConnection: dial, read or write failure, a non-VLC banner, or a closed session
  - ErrAuthentication: VLC asked for the password again; do not retry
  - ErrProtocol: the prompt was not seen within the session timeout

ErrConnection and ErrProtocol close the session; a new one must be dialed.

# Metrics

Request durations and session state changes are reported to the Observer
installed with SetObserver. The metrics package provides the implementation.
*/
package vlc
