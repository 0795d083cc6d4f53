package postbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rbaliyan/event/v3"
	"github.com/rbaliyan/event/v3/transport/noop"
	eventredis "github.com/rbaliyan/event/v3/transport/redis"
	"golang.org/x/sync/semaphore"

	"github.com/absurdlabs/postbox/delivery"
	"github.com/absurdlabs/postbox/store"
)

// Connection states for the service.
const (
	stateDisconnected int32 = 0
	stateConnecting   int32 = 1
	stateConnected    int32 = 2
)

// service is the default implementation of Service.
type service struct {
	store       store.Store
	attachments store.AttachmentFileStore
	deliverer   delivery.Deliverer
	logger      *slog.Logger
	opts        *options
	state       int32 // stateDisconnected, stateConnecting, or stateConnected
	otel        *otelInstrumentation
	sendSem     *semaphore.Weighted // Limits concurrent sends to prevent resource exhaustion
	eventBus    *event.Bus          // Event bus for publishing events
	events      *ServiceEvents      // Per-service event instances
	plugins     *pluginRegistry
}

// New creates a new postbox service.
// Call Connect() to establish connections to backends.
//
// Caching is not included in this library; wrap the store with a caching
// decorator (see store/cached) to control the caching strategy yourself.
func New(opts ...Option) (Service, error) {
	o := newOptions(opts...)

	if o.store == nil {
		return nil, ErrStoreRequired
	}
	if o.deliverer == nil {
		return nil, ErrDelivererRequired
	}

	otelInstr, err := newOtelInstrumentation(o)
	if err != nil {
		return nil, fmt.Errorf("init otel: %w", err)
	}

	return &service{
		store:       o.store,
		attachments: o.attachments,
		deliverer:   o.deliverer,
		logger:      o.logger,
		opts:        o,
		otel:        otelInstr,
		sendSem:     semaphore.NewWeighted(int64(o.maxConcurrentSends)),
		plugins:     newPluginRegistry(o.logger),
	}, nil
}

// Events returns per-service event instances for subscribing and publishing.
func (s *service) Events() *ServiceEvents {
	return s.events
}

// IsConnected returns true if the service is connected and ready.
func (s *service) IsConnected() bool {
	return atomic.LoadInt32(&s.state) == stateConnected
}

// Connect establishes connections to storage backends.
func (s *service) Connect(ctx context.Context) error {
	// Three-state CAS prevents Client operations from seeing partial
	// initialization: stateDisconnected -> stateConnecting -> stateConnected.
	if !atomic.CompareAndSwapInt32(&s.state, stateDisconnected, stateConnecting) {
		return ErrAlreadyConnected
	}

	success := false
	defer func() {
		if success {
			atomic.StoreInt32(&s.state, stateConnected)
		} else {
			atomic.StoreInt32(&s.state, stateDisconnected)
		}
	}()

	if err := s.store.Connect(ctx); err != nil {
		return fmt.Errorf("connect store: %w", err)
	}

	if err := s.initEventBus(ctx); err != nil {
		s.store.Close(ctx)
		return fmt.Errorf("init event bus: %w", err)
	}

	for _, p := range s.opts.plugins {
		s.plugins.register(p)
	}
	if err := s.plugins.initAll(ctx); err != nil {
		s.closeEventBus(ctx)
		s.store.Close(ctx)
		return fmt.Errorf("init plugins: %w", err)
	}

	success = true
	s.logger.Info("postbox service connected")
	return nil
}

// busCounter generates unique suffixes for event bus names.
var busCounter int64

// initEventBus initializes the event bus for this service.
func (s *service) initEventBus(ctx context.Context) error {
	serviceName := s.opts.serviceName
	if serviceName == "" {
		serviceName = "postbox"
	}
	// Each bus needs a unique name, so append a counter suffix
	busName := fmt.Sprintf("%s-%d", serviceName, atomic.AddInt64(&busCounter, 1))

	var bus *event.Bus
	var err error

	switch {
	case s.opts.eventTransport != nil:
		s.logger.Info("initializing event bus with custom transport")
		bus, err = event.NewBus(busName, event.WithTransport(s.opts.eventTransport))
	case s.opts.redisClient != nil:
		s.logger.Info("initializing event bus with Redis transport")
		t, transportErr := eventredis.New(s.opts.redisClient)
		if transportErr != nil {
			return fmt.Errorf("create redis transport: %w", transportErr)
		}
		bus, err = event.NewBus(busName, event.WithTransport(t))
	default:
		s.logger.Debug("initializing event bus with noop transport")
		bus, err = event.NewBus(busName, event.WithTransport(noop.New()))
	}

	if err != nil {
		return fmt.Errorf("create event bus: %w", err)
	}
	s.eventBus = bus

	s.events = newServiceEvents(busName)
	if err := registerServiceEvents(ctx, bus, s.events); err != nil {
		bus.Close(ctx)
		return fmt.Errorf("register service events: %w", err)
	}

	return nil
}

// closeEventBus closes the bus when a real transport backs it. For noop
// the bus holds no resources.
func (s *service) closeEventBus(ctx context.Context) error {
	if s.eventBus == nil {
		return nil
	}
	if s.opts.eventTransport == nil && s.opts.redisClient == nil {
		return nil
	}
	return s.eventBus.Close(ctx)
}

// Close closes connections to storage backends.
func (s *service) Close(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&s.state, stateConnected, stateDisconnected) {
		return nil
	}

	var errs []error

	// Wait for in-flight send operations to complete (graceful shutdown).
	// After the state flips, no new sends can start because checkAccess
	// fails; acquiring every semaphore slot waits out the existing ones.
	s.logger.Info("waiting for in-flight operations to complete...", "timeout", s.opts.shutdownTimeout)
	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, s.opts.shutdownTimeout)
	defer shutdownCancel()
	if err := s.sendSem.Acquire(shutdownCtx, int64(s.opts.maxConcurrentSends)); err != nil {
		s.logger.Warn("timeout waiting for in-flight operations, proceeding with shutdown",
			"error", err)
		errs = append(errs, fmt.Errorf("graceful shutdown timeout: %w", err))
	} else {
		s.sendSem.Release(int64(s.opts.maxConcurrentSends))
		s.logger.Info("all in-flight operations completed")
	}

	if err := s.plugins.closeAll(ctx); err != nil {
		errs = append(errs, fmt.Errorf("close plugins: %w", err))
	}

	if err := s.closeEventBus(ctx); err != nil {
		errs = append(errs, fmt.Errorf("close event bus: %w", err))
	}

	if err := s.store.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}

	return errors.Join(errs...)
}

// Client returns a mailbox client for the given identity.
func (s *service) Client(identity Identity) Mailbox {
	identity.Address = store.Address{Email: identity.Address}.Normalize().Email
	return &clientMailbox{
		identity: identity,
		service:  s,
		valid: isValidOwnerID(identity.OwnerID) &&
			ValidateAddress(identity.From()) == nil,
	}
}

// CleanupTrashResult contains the result of a trash cleanup operation.
type CleanupTrashResult struct {
	// DeletedCount is the number of messages permanently deleted.
	DeletedCount int
	// Interrupted indicates if the cleanup was interrupted (e.g., context cancelled).
	Interrupted bool
}

// CleanupTrash permanently deletes messages that have been in trash longer
// than the configured retention period (default 30 days).
//
// The library does not schedule cleanup itself; call this periodically from
// your application's scheduler (cron job, background worker, ticker).
func (s *service) CleanupTrash(ctx context.Context) (*CleanupTrashResult, error) {
	if atomic.LoadInt32(&s.state) != stateConnected {
		return nil, ErrNotConnected
	}

	result := &CleanupTrashResult{}
	cutoff := time.Now().UTC().Add(-s.opts.trashRetention)

	// Process in batches until no more expired messages
	const batchSize = 100
	for {
		if ctx.Err() != nil {
			result.Interrupted = true
			return result, ctx.Err()
		}

		deleted, err := s.store.PurgeExpiredTrash(ctx, cutoff, batchSize)
		if err != nil {
			return result, fmt.Errorf("purge expired trash: %w", err)
		}
		result.DeletedCount += int(deleted)
		if deleted > 0 {
			s.logger.Debug("purged expired trash batch", "count", deleted)
		}

		if deleted < batchSize {
			break
		}
	}

	return result, nil
}

// clientMailbox is the default implementation of Mailbox.
type clientMailbox struct {
	identity Identity
	service  *service
	valid    bool // set by Client() after identity validation
}

// Identity returns the identity this mailbox operates for.
func (m *clientMailbox) Identity() Identity {
	return m.identity
}

func (m *clientMailbox) ownerID() string {
	return m.identity.OwnerID
}

// checkAccess verifies the mailbox is ready for operations.
// Returns ErrNotConnected if the service isn't connected,
// or ErrInvalidIdentity if the identity failed validation.
func (m *clientMailbox) checkAccess() error {
	if atomic.LoadInt32(&m.service.state) != stateConnected {
		return ErrNotConnected
	}
	if !m.valid {
		return ErrInvalidIdentity
	}
	return nil
}

// newID returns a fresh opaque identifier.
func newID() string {
	return uuid.NewString()
}

// nowUTC is the single clock used for entity timestamps.
func nowUTC() time.Time {
	return time.Now().UTC()
}
