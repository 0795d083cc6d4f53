package delivery

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Loopback is a Deliverer that accepts every message without touching the
// network. Useful for development and tests; mirrors a mock SMTP transport.
type Loopback struct {
	logger *slog.Logger

	// failWith, when set, is returned for every delivery. Lets tests
	// exercise the abort path.
	failWith error
}

// LoopbackOption configures a Loopback deliverer.
type LoopbackOption func(*Loopback)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) LoopbackOption {
	return func(lb *Loopback) {
		if l != nil {
			lb.logger = l
		}
	}
}

// WithFailure makes every delivery fail with err. Pass nil to restore
// normal behavior.
func WithFailure(err error) LoopbackOption {
	return func(lb *Loopback) {
		lb.failWith = err
	}
}

// NewLoopback creates a loopback deliverer.
func NewLoopback(opts ...LoopbackOption) *Loopback {
	lb := &Loopback{logger: slog.Default()}
	for _, opt := range opts {
		opt(lb)
	}
	return lb
}

var _ Deliverer = (*Loopback)(nil)

// Deliver accepts the message and fabricates a delivery id.
func (lb *Loopback) Deliver(_ context.Context, env Envelope, content Content) (*Result, error) {
	if lb.failWith != nil {
		return nil, lb.failWith
	}

	now := time.Now().UTC()
	res := &Result{
		DeliveryID:  fmt.Sprintf("loopback-%d-%s", now.UnixMilli(), uuid.NewString()[:8]),
		DeliveredAt: now,
	}
	lb.logger.Debug("loopback delivery",
		"delivery_id", res.DeliveryID,
		"from", env.From.Email,
		"recipients", len(env.To)+len(env.Cc)+len(env.Bcc),
		"subject", content.Subject,
	)
	return res, nil
}
