package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastConfig() Config {
	return Config{
		MaxRetries:     3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Jitter:         0,
	}
}

func TestDoSucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestDoExhaustsRetries(t *testing.T) {
	cause := errors.New("still failing")
	calls := 0
	err := Do(context.Background(), fastConfig(), func(context.Context) error {
		calls++
		return cause
	})
	if !errors.Is(err, ErrMaxRetries) {
		t.Fatalf("err = %v, want ErrMaxRetries", err)
	}
	if !errors.Is(err, cause) {
		t.Errorf("cause not preserved: %v", err)
	}
	if calls != 4 {
		t.Errorf("calls = %d, want 4 (1 try + 3 retries)", calls)
	}

	var re *RetryError
	if !errors.As(err, &re) {
		t.Fatal("expected *RetryError")
	}
	if re.Attempts != 4 {
		t.Errorf("attempts = %d, want 4", re.Attempts)
	}
}

func TestDoStopsOnPermanentError(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(), func(context.Context) error {
		calls++
		return MarkNotRetryable(errors.New("permanent"))
	})
	if !errors.Is(err, ErrNotRetryable) {
		t.Fatalf("err = %v, want ErrNotRetryable", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestDoHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	err := Do(ctx, fastConfig(), func(context.Context) error {
		cancel()
		return errors.New("transient")
	})
	if !errors.Is(err, ErrContextCanceled) {
		t.Fatalf("err = %v, want ErrContextCanceled", err)
	}
}

func TestDoWithResult(t *testing.T) {
	calls := 0
	got, err := DoWithResult(context.Background(), fastConfig(), func(context.Context) (int, error) {
		calls++
		if calls < 2 {
			return 0, errors.New("transient")
		}
		return 42, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 42 {
		t.Errorf("result = %d, want 42", got)
	}
}

func TestBackoffIsCapped(t *testing.T) {
	cfg := Config{
		InitialBackoff: time.Second,
		MaxBackoff:     2 * time.Second,
		Multiplier:     10,
		Jitter:         0,
	}.withDefaults()
	if d := cfg.backoff(5); d != 2*time.Second {
		t.Errorf("backoff = %v, want capped at 2s", d)
	}
}
