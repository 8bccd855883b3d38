// Package retry runs an operation again with exponential backoff until it
// succeeds, fails permanently or its context ends.
package retry

import (
	"context"
	"errors"
	"time"

	"video-looper/internal/logging"
	"video-looper/internal/metrics"
)

var log = logging.For("retry")

// Config configures Do.
type Config struct {
	// MaxRetries caps the retries after the first attempt. Zero retries
	// until the context ends.
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// Operation labels log lines and metrics, e.g. "connect".
	Operation string
}

// DefaultConfig returns the backoff used to reconnect to VLC.
func DefaultConfig() Config {
	return Config{
		MaxRetries:     0,
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     30 * time.Second,
		Operation:      "connect",
	}
}

// Backoff returns the wait before retry number attempt (starting at 1).
func (c Config) Backoff(attempt int) time.Duration {
	backoff := c.InitialBackoff
	if backoff <= 0 {
		backoff = time.Millisecond
	}
	for i := 1; i < attempt; i++ {
		// Exponential backoff with cap
		backoff *= 2
		if c.MaxBackoff > 0 && backoff >= c.MaxBackoff {
			return c.MaxBackoff
		}
	}
	if c.MaxBackoff > 0 && backoff > c.MaxBackoff {
		return c.MaxBackoff
	}
	return backoff
}

// ErrExhausted wraps the last error when MaxRetries is reached.
var ErrExhausted = errors.New("retry: attempts exhausted")

// Do calls fn until it returns nil. It stops early when retryable reports
// false for an error (nil retryable retries everything), when MaxRetries is
// reached, or when ctx is done, returning the last error in each case.
func Do(ctx context.Context, cfg Config, fn func(ctx context.Context) error, retryable func(error) bool) error {
	start := time.Now()
	op := cfg.Operation
	if op == "" {
		op = "operation"
	}
	defer func() {
		metrics.RetryDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}()

	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			if attempt > 0 {
				log.Info("%s succeeded on retry %d", op, attempt)
				metrics.RetrySuccess.WithLabelValues(op).Inc()
			}
			return nil
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return errors.Join(ctxErr, err)
		}
		if retryable != nil && !retryable(err) {
			log.Error("%s failed permanently: %v", op, err)
			metrics.RetryFailures.WithLabelValues(op).Inc()
			return err
		}
		if cfg.MaxRetries > 0 && attempt >= cfg.MaxRetries {
			log.Warn("%s failed after %d retries: %v", op, cfg.MaxRetries, err)
			metrics.RetryFailures.WithLabelValues(op).Inc()
			return errors.Join(ErrExhausted, err)
		}

		backoff := cfg.Backoff(attempt + 1)
		metrics.RetryAttempts.WithLabelValues(op).Inc()
		log.Warn("%s failed: %v; retrying in %v (attempt %d)", op, err, backoff, attempt+1)

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return errors.Join(ctx.Err(), err)
		case <-timer.C:
		}
	}
}
