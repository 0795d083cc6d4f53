package postbox

import (
	"context"
	"errors"
	"log/slog"

	"github.com/absurdlabs/postbox/store"
)

// Plugin is the interface for engine extensions. Plugins hook into the
// send pipeline for custom behavior such as outbound filtering, rate
// limiting or content validation. For observing other operations (read,
// trash, purge) subscribe to the event system instead.
type Plugin interface {
	// Name returns the plugin identifier.
	Name() string
	// Init is called when the service connects.
	Init(ctx context.Context) error
	// Close is called when the service closes.
	Close(ctx context.Context) error
}

// SendHook is called around message finalization.
type SendHook interface {
	Plugin
	// BeforeSend runs after validation but before delivery. Returning an
	// error aborts the send with nothing mutated.
	BeforeSend(ctx context.Context, ownerID string, content store.DraftContent) error
	// AfterSend runs once the message is delivered and persisted. The send
	// cannot be rolled back at this point; an error is surfaced to the
	// caller alongside the finalized message.
	AfterSend(ctx context.Context, ownerID string, msg *store.Message) error
}

// PluginError reports a failure from a named plugin hook.
type PluginError struct {
	Plugin string
	Op     string
	Err    error
}

func (e *PluginError) Error() string {
	return "postbox: plugin " + e.Plugin + " " + e.Op + ": " + e.Err.Error()
}

func (e *PluginError) Unwrap() error {
	return e.Err
}

type pluginRegistry struct {
	all    []Plugin
	send   []SendHook
	logger *slog.Logger
}

func newPluginRegistry(logger *slog.Logger) *pluginRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &pluginRegistry{logger: logger}
}

func (r *pluginRegistry) register(p Plugin) {
	r.all = append(r.all, p)
	if h, ok := p.(SendHook); ok {
		r.send = append(r.send, h)
	}
}

// initAll initializes plugins in registration order. On failure the
// already-initialized plugins are closed in reverse order.
func (r *pluginRegistry) initAll(ctx context.Context) error {
	for i, p := range r.all {
		if err := p.Init(ctx); err != nil {
			for j := i - 1; j >= 0; j-- {
				if closeErr := r.all[j].Close(ctx); closeErr != nil {
					r.logger.Error("failed to close plugin during init rollback",
						"plugin", r.all[j].Name(), "error", closeErr)
				}
			}
			return &PluginError{Plugin: p.Name(), Op: "init", Err: err}
		}
	}
	return nil
}

func (r *pluginRegistry) closeAll(ctx context.Context) error {
	var errs []error
	for i := len(r.all) - 1; i >= 0; i-- {
		if err := r.all[i].Close(ctx); err != nil {
			errs = append(errs, &PluginError{Plugin: r.all[i].Name(), Op: "close", Err: err})
		}
	}
	return errors.Join(errs...)
}

func (r *pluginRegistry) beforeSend(ctx context.Context, ownerID string, content store.DraftContent) error {
	for _, h := range r.send {
		if err := h.BeforeSend(ctx, ownerID, content); err != nil {
			return &PluginError{Plugin: h.Name(), Op: "BeforeSend", Err: err}
		}
	}
	return nil
}

func (r *pluginRegistry) afterSend(ctx context.Context, ownerID string, msg *store.Message) error {
	for _, h := range r.send {
		if err := h.AfterSend(ctx, ownerID, msg); err != nil {
			return &PluginError{Plugin: h.Name(), Op: "AfterSend", Err: err}
		}
	}
	return nil
}
