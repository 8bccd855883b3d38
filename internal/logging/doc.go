// Package logging provides a simple leveled logging interface for the
// video looper.
//
// It supports the following log levels:
//   - DEBUG: Verbose debugging information, including every VLC command
//   - INFO: General operational messages
//   - WARN: Warning conditions
//   - ERROR: Error conditions
//   - FATAL: Fatal errors that terminate the application
//
// The log level is configured via the LOG_LEVEL environment variable (or
// DEBUG=true) and can be overridden at startup with [SetLevel].
//
// Components log through a [Logger] obtained from [For], which prefixes
// each message with the component name:
//
//	var log = logging.For("vlc")
//	log.Debug("> %s", line)
package logging
