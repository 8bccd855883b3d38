// Command vlcctl is an operator CLI for the video looper.
//
// Usage:
//
//	vlcctl [flags] <command> [args]
//
// Commands:
//
//	status            Connect to VLC and print its version, playback
//	                  status, volume and the playing playlist item.
//
//	raw <command...>  Send one command line to VLC's telnet interface
//	                  and print the reply, e.g. "vlcctl raw volume 256".
//
//	play <media>      Ask the running daemon to play a trigger. This goes
//	                  through the daemon's HTTP API so the idle loop is
//	                  restored afterwards; see --api and --api-password.
//
//	pause             Toggle pause.
//
//	next, prev        Skip to the next or previous playlist item.
//
//	rewind            Play the current item backwards.
//
//	seek <pos>        Seek within the current item: seconds ("90"),
//	                  relative seconds ("+10", "-10") or percent ("50%").
//
//	repeat on|off, random on|off, fullscreen on|off
//	                  Set VLC's repeat, random and fullscreen modes.
//
//	volume [N | up [steps] | down [steps]]
//	                  Print the volume, set it (0-512, 256 is 100%) or
//	                  step it up or down.
//
//	info              Print the metadata of the current item.
//
//	history           Print recent trigger playbacks from the daemon's
//	                  history database (--database-dir, -n).
//
//	hash-password     Prompt for a password and print its bcrypt hash,
//	                  for use as API_PASSWORD_HASH.
//
// Environment:
//
//	VLC_HOST, VLC_PORT, VLC_PASSWORD - VLC telnet interface
//	VIDEO_LOOPER_URL                 - daemon URL (default: http://localhost:8080)
//	API_PASSWORD                     - control API password
//	DATABASE_DIR                     - history database directory (default: /database)
//
// The transport commands talk to VLC directly, so a daemon running a
// trigger will see the change on its next poll.
//
// When stdin is not a terminal, hash-password reads the password and its
// confirmation as two lines, so it can be scripted.
package main
