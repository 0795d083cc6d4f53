// Package retry provides exponential backoff for transient failures.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"
)

// Config configures retry behavior. Zero values fall back to the defaults
// noted per field.
type Config struct {
	// MaxRetries is the number of retry attempts after the first try
	// (default: 3). Zero executes the function once.
	MaxRetries int

	// InitialBackoff is the delay before the first retry (default: 100ms).
	InitialBackoff time.Duration

	// MaxBackoff caps the backoff duration (default: 30s).
	MaxBackoff time.Duration

	// Multiplier grows the backoff after each retry (default: 2.0).
	Multiplier float64

	// Jitter randomizes each backoff by +/- this fraction, clamped to
	// [0, 1] (default: 0.1).
	Jitter float64

	// IsRetryable decides whether an error is worth another attempt.
	// Defaults to DefaultIsRetryable.
	IsRetryable func(error) bool
}

// DefaultConfig returns a Config with the documented defaults filled in.
func DefaultConfig() Config {
	return Config{}.withDefaults()
}

func (c Config) withDefaults() Config {
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = 100 * time.Millisecond
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 30 * time.Second
	}
	if c.Multiplier <= 0 {
		c.Multiplier = 2.0
	}
	if c.Jitter < 0 {
		c.Jitter = 0
	}
	if c.Jitter > 1 {
		c.Jitter = 1
	}
	if c.IsRetryable == nil {
		c.IsRetryable = DefaultIsRetryable
	}
	return c
}

// backoff computes the delay before retry number attempt (0-indexed).
func (c Config) backoff(attempt int) time.Duration {
	d := float64(c.InitialBackoff) * math.Pow(c.Multiplier, float64(attempt))
	if d > float64(c.MaxBackoff) {
		d = float64(c.MaxBackoff)
	}
	if c.Jitter > 0 {
		spread := d * c.Jitter
		d = d - spread + rand.Float64()*2*spread
	}
	return time.Duration(d)
}

// Sentinel errors.
var (
	// ErrNotRetryable reports that retrying stopped on a permanent error.
	ErrNotRetryable = errors.New("retry: error is not retryable")

	// ErrMaxRetries reports that every attempt failed.
	ErrMaxRetries = errors.New("retry: max retries exceeded")

	// ErrContextCanceled reports that the context ended mid-retry.
	ErrContextCanceled = errors.New("retry: context canceled")
)

// RetryError reports why a retried operation gave up.
type RetryError struct {
	// Cause is the last error returned by the function.
	Cause error

	// Attempts is the number of attempts made.
	Attempts int

	// Err is ErrMaxRetries, ErrNotRetryable, or ErrContextCanceled.
	Err error
}

func (e *RetryError) Error() string {
	return fmt.Sprintf("retry failed after %d attempts (%s): %s", e.Attempts, e.Err, e.Cause)
}

func (e *RetryError) Unwrap() error {
	return e.Cause
}

func (e *RetryError) Is(target error) bool {
	return errors.Is(e.Err, target) || errors.Is(e.Cause, target)
}

// Do executes fn, retrying per cfg until it succeeds, the error is
// permanent, the attempts run out, or the context ends.
func Do(ctx context.Context, cfg Config, fn func(ctx context.Context) error) error {
	cfg = cfg.withDefaults()

	var lastErr error
	for attempt := 0; ; attempt++ {
		if ctx.Err() != nil {
			if lastErr == nil {
				return ctx.Err()
			}
			return &RetryError{Cause: lastErr, Attempts: attempt, Err: ErrContextCanceled}
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !cfg.IsRetryable(lastErr) {
			return &RetryError{Cause: lastErr, Attempts: attempt + 1, Err: ErrNotRetryable}
		}
		if attempt == cfg.MaxRetries {
			return &RetryError{Cause: lastErr, Attempts: attempt + 1, Err: ErrMaxRetries}
		}

		select {
		case <-ctx.Done():
			return &RetryError{Cause: lastErr, Attempts: attempt + 1, Err: ErrContextCanceled}
		case <-time.After(cfg.backoff(attempt)):
		}
	}
}

// DoWithResult executes fn with retries and returns its result value.
func DoWithResult[T any](ctx context.Context, cfg Config, fn func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := Do(ctx, cfg, func(ctx context.Context) error {
		var fnErr error
		result, fnErr = fn(ctx)
		return fnErr
	})
	return result, err
}

// DefaultIsRetryable treats errors as transient unless they are marked
// otherwise or implement Retryable() false.
func DefaultIsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNotRetryable) {
		return false
	}
	var r interface{ Retryable() bool }
	if errors.As(err, &r) {
		return r.Retryable()
	}
	return true
}

// MarkNotRetryable wraps an error so DefaultIsRetryable rejects it.
func MarkNotRetryable(err error) error {
	if err == nil {
		return nil
	}
	return &markedError{cause: err, retryable: false}
}

// MarkRetryable wraps an error so DefaultIsRetryable accepts it.
func MarkRetryable(err error) error {
	if err == nil {
		return nil
	}
	return &markedError{cause: err, retryable: true}
}

type markedError struct {
	cause     error
	retryable bool
}

func (e *markedError) Error() string   { return e.cause.Error() }
func (e *markedError) Unwrap() error   { return e.cause }
func (e *markedError) Retryable() bool { return e.retryable }
