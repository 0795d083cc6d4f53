package cached

import (
	"log/slog"
	"time"
)

// Default configuration values.
const (
	DefaultKeyPrefix = "postbox"
	DefaultTTL       = 5 * time.Minute
)

// options holds cache configuration.
type options struct {
	prefix string
	ttl    time.Duration
	logger *slog.Logger
}

func newOptions(opts ...Option) *options {
	o := &options{
		prefix: DefaultKeyPrefix,
		ttl:    DefaultTTL,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Option configures the cached store.
type Option func(*options)

// WithKeyPrefix sets the Redis key prefix.
// Default is "postbox".
func WithKeyPrefix(prefix string) Option {
	return func(o *options) {
		if prefix != "" {
			o.prefix = prefix
		}
	}
}

// WithTTL sets the time-to-live for cached records.
// Default is 5 minutes.
func WithTTL(ttl time.Duration) Option {
	return func(o *options) {
		if ttl > 0 {
			o.ttl = ttl
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
