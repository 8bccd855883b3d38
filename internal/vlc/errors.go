package vlc

import "errors"

// Error taxonomy for the telnet interface. Callers test with errors.Is;
// the underlying cause, when there is one, is wrapped alongside.
var (
	// ErrConnection reports a transport failure: dial, read or write
	// errors, a banner that is not VLC's, or use of a closed session.
	// Fatal for the session.
	ErrConnection = errors.New("vlc: connection error")

	// ErrAuthentication reports that VLC asked for the password again.
	// Retrying with the same credentials cannot succeed.
	ErrAuthentication = errors.New("vlc: authentication failed")

	// ErrProtocol reports that an expected reply was not observed in time,
	// either the prompt after a command or a playback transition.
	ErrProtocol = errors.New("vlc: protocol error")
)

// IsFatal reports whether err ends the session. Authentication errors are
// fatal too but must not be retried; see IsRetryable.
func IsFatal(err error) bool {
	return errors.Is(err, ErrConnection) || errors.Is(err, ErrProtocol) || errors.Is(err, ErrAuthentication)
}

// IsRetryable reports whether reconnecting a new session may succeed.
func IsRetryable(err error) bool {
	if errors.Is(err, ErrAuthentication) {
		return false
	}
	return errors.Is(err, ErrConnection) || errors.Is(err, ErrProtocol)
}
