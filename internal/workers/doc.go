/*
Package workers runs jobs off latency-sensitive goroutines.

# Overview

Trigger playback blocks for as long as the triggered media plays, and an
input handler (an HTTP request, a button poller) must not wait for that.
A Dispatcher owns a fixed set of worker goroutines and hands them jobs
without ever blocking the submitter.

# Dropping versus queueing

The queue capacity decides what happens when every worker is busy:

	// one trigger at a time; a second one is dropped, not delayed
	triggers := workers.NewDispatcher("trigger", 1, 0)

	// history writes are queued so none are lost while SQLite is busy
	writes := workers.NewDispatcher("history", 1, 64)

Submit returns ErrFull when the job was refused because every worker is
busy, and ErrClosed once the dispatcher is shutting down, so callers can
tell a dropped job from a late one:

	switch err := triggers.Submit(job); {
	case errors.Is(err, workers.ErrClosed):
		// shutting down
	case err != nil:
		// busy, dropped
	}

# Shutdown

Close stops accepting jobs and waits for queued ones to finish. Stop
additionally cancels the context passed to running jobs, which is how a
trigger blocked in its poll loop is interrupted on shutdown.

# Thread Safety

All methods are safe for concurrent use. A job that panics is logged and
does not take its worker down.
*/
package workers
