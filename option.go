package postbox

import (
	"log/slog"
	"time"

	"github.com/rbaliyan/event/v3/transport"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/absurdlabs/postbox/delivery"
	"github.com/absurdlabs/postbox/retry"
	"github.com/absurdlabs/postbox/store"
)

// Default configuration values.
const (
	DefaultTrashRetention  = 30 * 24 * time.Hour // 30 days
	MinTrashRetention      = 24 * time.Hour      // 1 day minimum
	DefaultShutdownTimeout = 30 * time.Second    // default graceful shutdown timeout
	MinShutdownTimeout     = 1 * time.Second     // minimum shutdown timeout

	// Default message limits
	DefaultMaxSubjectLength   = 998              // RFC 5322 max line length
	DefaultMaxBodySize        = 10 * 1024 * 1024 // 10 MB
	DefaultMaxAttachmentSize  = 25 * 1024 * 1024 // 25 MB per attachment
	DefaultMaxAttachmentCount = 20               // max attachments per message
	DefaultMaxRecipientCount  = 100              // max recipients across to/cc/bcc
	DefaultMaxLabelsPerMsg    = 50               // max labels on one message

	// Concurrency limits
	DefaultMaxConcurrentSends = 10 // max concurrent send operations per service
)

// options holds postbox configuration.
type options struct {
	store       store.Store
	attachments store.AttachmentFileStore
	deliverer   delivery.Deliverer
	logger      *slog.Logger

	// Trash cleanup configuration (for manual cleanup via CleanupTrash method)
	trashRetention time.Duration

	// Message limits
	maxSubjectLength   int
	maxBodySize        int
	maxAttachmentSize  int64
	maxAttachmentCount int
	maxRecipientCount  int
	maxLabelsPerMsg    int

	// Concurrency limits
	maxConcurrentSends int

	// Shutdown
	shutdownTimeout time.Duration

	// Retry policy for the conversation side-effect after a message is
	// persisted.
	threadRetry retry.Config

	// OpenTelemetry
	tracingEnabled bool
	metricsEnabled bool
	serviceName    string
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider

	// Event handling
	eventErrorsFatal      bool                    // If true, event publishing failures cause operation to fail
	eventTransport        transport.Transport     // Event transport (optional, uses noop if nil)
	redisClient           redis.UniversalClient   // Redis client for event transport (optional, uses noop if nil)
	onEventPublishFailure EventPublishFailureFunc // Callback for event publish failures (always set)

	plugins  []Plugin
	resolver RecipientResolver
}

// EventPublishFailureFunc is called when an event fails to publish.
// The eventName is the name of the event (e.g., "MessageSent"), and err is the publish error.
type EventPublishFailureFunc func(eventName string, err error)

// safeEventPublishFailure calls the event failure callback with panic recovery.
// If the callback panics, the panic is logged and suppressed to prevent cascading failures.
func (o *options) safeEventPublishFailure(eventName string, err error) {
	if o.onEventPublishFailure == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("panic in event publish failure handler",
				"event", eventName,
				"original_error", err,
				"panic", r,
			)
		}
	}()
	o.onEventPublishFailure(eventName, err)
}

// newOptions creates options with defaults and applies provided options.
func newOptions(opts ...Option) *options {
	o := &options{
		logger:         slog.Default(),
		trashRetention: DefaultTrashRetention,
		// Message limits defaults
		maxSubjectLength:   DefaultMaxSubjectLength,
		maxBodySize:        DefaultMaxBodySize,
		maxAttachmentSize:  DefaultMaxAttachmentSize,
		maxAttachmentCount: DefaultMaxAttachmentCount,
		maxRecipientCount:  DefaultMaxRecipientCount,
		maxLabelsPerMsg:    DefaultMaxLabelsPerMsg,
		// Concurrency limits defaults
		maxConcurrentSends: DefaultMaxConcurrentSends,
		// Shutdown defaults
		shutdownTimeout: DefaultShutdownTimeout,
		// Conversation updates retry briefly before surfacing a
		// reconciliation error.
		threadRetry: retry.Config{
			MaxRetries:     2,
			InitialBackoff: 50 * time.Millisecond,
			MaxBackoff:     500 * time.Millisecond,
			Multiplier:     2.0,
			Jitter:         0.2,
			IsRetryable:    IsRetryableError,
		},
	}
	for _, opt := range opts {
		opt(o)
	}

	// Ensure event failure callback is always set
	if o.onEventPublishFailure == nil {
		o.onEventPublishFailure = func(eventName string, err error) {
			o.logger.Error("failed to publish event", "event", eventName, "error", err)
		}
	}

	return o
}

// Option configures a postbox service.
type Option func(*options)

// --- Core Options ---

// WithStore sets the storage backend (required).
func WithStore(s store.Store) Option {
	return func(o *options) {
		if s != nil {
			o.store = s
		}
	}
}

// WithDeliverer sets the outbound delivery collaborator (required for sends).
func WithDeliverer(d delivery.Deliverer) Option {
	return func(o *options) {
		if d != nil {
			o.deliverer = d
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithAttachmentStore sets the blob store backing attachment upload and
// retrieval. Without it, messages may still carry attachment descriptors
// produced elsewhere, but UploadAttachment and OpenAttachment are
// unavailable.
func WithAttachmentStore(s store.AttachmentFileStore) Option {
	return func(o *options) {
		if s != nil {
			o.attachments = s
		}
	}
}

// --- Trash Options ---

// WithTrashRetention sets how long messages stay in trash before cleanup.
// Default is 30 days. Minimum is 1 day.
func WithTrashRetention(d time.Duration) Option {
	return func(o *options) {
		if d >= MinTrashRetention {
			o.trashRetention = d
		}
	}
}

// --- OTel Options ---

// WithTracing enables or disables OpenTelemetry tracing.
// When enabled, spans are created for all mailbox operations.
// Default is disabled.
func WithTracing(enabled bool) Option {
	return func(o *options) {
		o.tracingEnabled = enabled
	}
}

// WithMetrics enables or disables OpenTelemetry metrics.
// When enabled, metrics are collected for all mailbox operations.
// Default is disabled.
func WithMetrics(enabled bool) Option {
	return func(o *options) {
		o.metricsEnabled = enabled
	}
}

// WithOTel enables both OpenTelemetry tracing and metrics.
// This is a convenience function equivalent to calling
// WithTracing(true) and WithMetrics(true).
func WithOTel(enabled bool) Option {
	return func(o *options) {
		o.tracingEnabled = enabled
		o.metricsEnabled = enabled
	}
}

// WithServiceName sets the service name for OpenTelemetry telemetry.
// Default is "postbox".
func WithServiceName(name string) Option {
	return func(o *options) {
		if name != "" {
			o.serviceName = name
		}
	}
}

// WithTracerProvider sets a custom OpenTelemetry tracer provider.
// Default uses the global tracer provider from otel.GetTracerProvider().
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) {
		if tp != nil {
			o.tracerProvider = tp
		}
	}
}

// WithMeterProvider sets a custom OpenTelemetry meter provider.
// Default uses the global meter provider from otel.GetMeterProvider().
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) {
		if mp != nil {
			o.meterProvider = mp
		}
	}
}

// --- Message Limit Options ---

// WithMaxBodySize sets the maximum text body size in bytes.
// Default is 10 MB.
func WithMaxBodySize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxBodySize = n
		}
	}
}

// WithMaxAttachmentSize sets the maximum size per attachment in bytes.
// Default is 25 MB.
func WithMaxAttachmentSize(n int64) Option {
	return func(o *options) {
		if n > 0 {
			o.maxAttachmentSize = n
		}
	}
}

// WithMaxRecipients sets the maximum number of recipients per message,
// counted across to, cc and bcc. Default is 100.
func WithMaxRecipients(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxRecipientCount = n
		}
	}
}

// WithMaxSubjectLength sets the maximum subject length in characters.
// Default is 998 (RFC 5322 max line length).
func WithMaxSubjectLength(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxSubjectLength = n
		}
	}
}

// WithMaxAttachmentCount sets the maximum number of attachments per message.
// Default is 20.
func WithMaxAttachmentCount(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxAttachmentCount = n
		}
	}
}

// WithMaxLabelsPerMessage sets the maximum number of labels on one message.
// Default is 50.
func WithMaxLabelsPerMessage(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxLabelsPerMsg = n
		}
	}
}

// --- Concurrency Options ---

// WithMaxConcurrentSends sets the maximum number of concurrent send operations.
// This prevents resource exhaustion when many messages are being sent simultaneously.
// Default is 10.
func WithMaxConcurrentSends(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxConcurrentSends = n
		}
	}
}

// WithShutdownTimeout sets the maximum time to wait for in-flight operations
// during graceful shutdown. When Close() is called, the service waits up to
// this duration for ongoing send operations to complete.
// Default is 30 seconds. Minimum is 1 second.
func WithShutdownTimeout(d time.Duration) Option {
	return func(o *options) {
		if d >= MinShutdownTimeout {
			o.shutdownTimeout = d
		}
	}
}

// WithThreadRetry overrides the retry policy used when a conversation
// update fails after its message was persisted.
func WithThreadRetry(cfg retry.Config) Option {
	return func(o *options) {
		o.threadRetry = cfg
		if o.threadRetry.IsRetryable == nil {
			o.threadRetry.IsRetryable = IsRetryableError
		}
	}
}

// --- Event Options ---

// WithEventErrorsFatal configures whether event publishing failures should
// cause the operation to fail. By default, event failures are logged but
// the operation succeeds (the message is still sent).
//
// Set to true if your application requires guaranteed event delivery,
// for example when events drive critical downstream processes.
// Set to false (default) for fire-and-forget event publishing.
func WithEventErrorsFatal(fatal bool) Option {
	return func(o *options) {
		o.eventErrorsFatal = fatal
	}
}

// WithEventTransport sets the event transport for publishing and subscribing.
// When provided, events are published via the given transport for reliable delivery.
// If not provided, a noop transport is used (events are silently dropped).
func WithEventTransport(t transport.Transport) Option {
	return func(o *options) {
		if t != nil {
			o.eventTransport = t
		}
	}
}

// WithPlugin registers a plugin. Plugins are initialized in registration
// order on Connect and closed in reverse order on Close. SendHook plugins
// participate in the send pipeline.
func WithPlugin(p Plugin) Option {
	return func(o *options) {
		if p != nil {
			o.plugins = append(o.plugins, p)
		}
	}
}

// WithRecipientResolver sets a directory resolver. When configured, the
// send pipeline fills in missing display names on outbound recipients.
func WithRecipientResolver(r RecipientResolver) Option {
	return func(o *options) {
		o.resolver = r
	}
}

// WithRedisClient sets a Redis client for the event transport.
// When provided, events are published to Redis Streams for reliable delivery.
// If not provided, a noop transport is used (events are silently dropped).
//
// Compatible with *redis.Client, *redis.ClusterClient, and redis.UniversalClient.
func WithRedisClient(client redis.UniversalClient) Option {
	return func(o *options) {
		if client != nil {
			o.redisClient = client
		}
	}
}

// WithEventPublishFailureHandler sets a callback for event publishing failures.
// This callback is invoked whenever an event fails to publish (and eventErrorsFatal is false).
// Use this for custom logging, metrics, or alerting on event failures.
//
// By default, failures are logged using the configured logger.
func WithEventPublishFailureHandler(fn EventPublishFailureFunc) Option {
	return func(o *options) {
		if fn != nil {
			o.onEventPublishFailure = fn
		}
	}
}

// getLimits returns the configured message limits.
func (o *options) getLimits() MessageLimits {
	return MessageLimits{
		MaxSubjectLength:   o.maxSubjectLength,
		MaxBodySize:        o.maxBodySize,
		MaxAttachmentSize:  o.maxAttachmentSize,
		MaxAttachmentCount: o.maxAttachmentCount,
		MaxRecipientCount:  o.maxRecipientCount,
		MaxLabelsPerMsg:    o.maxLabelsPerMsg,
	}
}
