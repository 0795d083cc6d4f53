package postbox

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/absurdlabs/postbox/retry"
)

func TestNewOptionsDefaults(t *testing.T) {
	opts := newOptions()

	if opts.trashRetention != DefaultTrashRetention {
		t.Errorf("trashRetention: got %v, want %v", opts.trashRetention, DefaultTrashRetention)
	}
	if opts.maxSubjectLength != DefaultMaxSubjectLength {
		t.Errorf("maxSubjectLength: got %v, want %v", opts.maxSubjectLength, DefaultMaxSubjectLength)
	}
	if opts.maxBodySize != DefaultMaxBodySize {
		t.Errorf("maxBodySize: got %v, want %v", opts.maxBodySize, DefaultMaxBodySize)
	}
	if opts.maxAttachmentSize != DefaultMaxAttachmentSize {
		t.Errorf("maxAttachmentSize: got %v, want %v", opts.maxAttachmentSize, DefaultMaxAttachmentSize)
	}
	if opts.maxAttachmentCount != DefaultMaxAttachmentCount {
		t.Errorf("maxAttachmentCount: got %v, want %v", opts.maxAttachmentCount, DefaultMaxAttachmentCount)
	}
	if opts.maxRecipientCount != DefaultMaxRecipientCount {
		t.Errorf("maxRecipientCount: got %v, want %v", opts.maxRecipientCount, DefaultMaxRecipientCount)
	}
	if opts.maxLabelsPerMsg != DefaultMaxLabelsPerMsg {
		t.Errorf("maxLabelsPerMsg: got %v, want %v", opts.maxLabelsPerMsg, DefaultMaxLabelsPerMsg)
	}
	if opts.maxConcurrentSends != DefaultMaxConcurrentSends {
		t.Errorf("maxConcurrentSends: got %v, want %v", opts.maxConcurrentSends, DefaultMaxConcurrentSends)
	}
	if opts.shutdownTimeout != DefaultShutdownTimeout {
		t.Errorf("shutdownTimeout: got %v, want %v", opts.shutdownTimeout, DefaultShutdownTimeout)
	}
	if opts.logger == nil {
		t.Error("logger: got nil")
	}
	if opts.onEventPublishFailure == nil {
		t.Error("onEventPublishFailure: got nil")
	}
	if opts.threadRetry.IsRetryable == nil {
		t.Error("threadRetry.IsRetryable: got nil")
	}
}

func TestWithLogger(t *testing.T) {
	custom := slog.New(slog.NewTextHandler(io.Discard, nil))
	opts := newOptions(WithLogger(custom))
	if opts.logger != custom {
		t.Error("custom logger not set")
	}

	opts = newOptions(WithLogger(nil))
	if opts.logger == nil {
		t.Error("nil logger accepted")
	}
}

func TestWithTrashRetention(t *testing.T) {
	opts := newOptions(WithTrashRetention(48 * time.Hour))
	if opts.trashRetention != 48*time.Hour {
		t.Errorf("got %v, want 48h", opts.trashRetention)
	}

	// Below the minimum the default is kept.
	opts = newOptions(WithTrashRetention(time.Minute))
	if opts.trashRetention != DefaultTrashRetention {
		t.Errorf("sub-minimum retention: got %v, want default", opts.trashRetention)
	}
}

func TestWithShutdownTimeout(t *testing.T) {
	opts := newOptions(WithShutdownTimeout(5 * time.Second))
	if opts.shutdownTimeout != 5*time.Second {
		t.Errorf("got %v, want 5s", opts.shutdownTimeout)
	}

	opts = newOptions(WithShutdownTimeout(time.Millisecond))
	if opts.shutdownTimeout != DefaultShutdownTimeout {
		t.Errorf("sub-minimum timeout: got %v, want default", opts.shutdownTimeout)
	}
}

func TestWithMessageLimits(t *testing.T) {
	opts := newOptions(
		WithMaxBodySize(1024),
		WithMaxAttachmentSize(2048),
		WithMaxRecipients(5),
		WithMaxSubjectLength(80),
		WithMaxAttachmentCount(3),
		WithMaxLabelsPerMessage(4),
	)
	limits := opts.getLimits()

	if limits.MaxBodySize != 1024 {
		t.Errorf("MaxBodySize: got %d", limits.MaxBodySize)
	}
	if limits.MaxAttachmentSize != 2048 {
		t.Errorf("MaxAttachmentSize: got %d", limits.MaxAttachmentSize)
	}
	if limits.MaxRecipientCount != 5 {
		t.Errorf("MaxRecipientCount: got %d", limits.MaxRecipientCount)
	}
	if limits.MaxSubjectLength != 80 {
		t.Errorf("MaxSubjectLength: got %d", limits.MaxSubjectLength)
	}
	if limits.MaxAttachmentCount != 3 {
		t.Errorf("MaxAttachmentCount: got %d", limits.MaxAttachmentCount)
	}
	if limits.MaxLabelsPerMsg != 4 {
		t.Errorf("MaxLabelsPerMsg: got %d", limits.MaxLabelsPerMsg)
	}
}

func TestLimitOptionsIgnoreNonPositive(t *testing.T) {
	opts := newOptions(
		WithMaxBodySize(0),
		WithMaxRecipients(-1),
		WithMaxConcurrentSends(0),
	)
	if opts.maxBodySize != DefaultMaxBodySize {
		t.Errorf("maxBodySize: got %d, want default", opts.maxBodySize)
	}
	if opts.maxRecipientCount != DefaultMaxRecipientCount {
		t.Errorf("maxRecipientCount: got %d, want default", opts.maxRecipientCount)
	}
	if opts.maxConcurrentSends != DefaultMaxConcurrentSends {
		t.Errorf("maxConcurrentSends: got %d, want default", opts.maxConcurrentSends)
	}
}

func TestWithThreadRetry(t *testing.T) {
	opts := newOptions(WithThreadRetry(retry.Config{MaxRetries: 7}))
	if opts.threadRetry.MaxRetries != 7 {
		t.Errorf("MaxRetries: got %d, want 7", opts.threadRetry.MaxRetries)
	}
	// A config without a classifier gets the package default.
	if opts.threadRetry.IsRetryable == nil {
		t.Error("IsRetryable: got nil")
	}
}
