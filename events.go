package postbox

import (
	"context"
	"fmt"
	"time"

	"github.com/rbaliyan/event/v3"
)

// Event names for postbox events.
const (
	EventNameDraftSaved          = "postbox.draft.saved"
	EventNameMessageSent         = "postbox.message.sent"
	EventNameMessageRead         = "postbox.message.read"
	EventNameMessageTrashed      = "postbox.message.trashed"
	EventNameMessagePurged       = "postbox.message.purged"
	EventNameConversationCreated = "postbox.conversation.created"
)

// DraftSavedEvent is published when a draft is created or its content replaced.
type DraftSavedEvent struct {
	MessageID string    `json:"message_id"`
	OwnerID   string    `json:"owner_id"`
	Created   bool      `json:"created"`
	SavedAt   time.Time `json:"saved_at"`
}

// MessageSentEvent is published when a draft or direct payload is finalized
// and accepted by the outbound transport.
type MessageSentEvent struct {
	MessageID  string    `json:"message_id"`
	OwnerID    string    `json:"owner_id"`
	ThreadID   string    `json:"thread_id"`
	DeliveryID string    `json:"delivery_id"`
	Subject    string    `json:"subject"`
	SentAt     time.Time `json:"sent_at"`
}

// MessageReadEvent is published when an unread message is flipped to read,
// either by viewing it or by an explicit flag update.
type MessageReadEvent struct {
	MessageID string    `json:"message_id"`
	OwnerID   string    `json:"owner_id"`
	ReadAt    time.Time `json:"read_at"`
}

// MessageTrashedEvent is published when a message is soft-deleted to trash.
type MessageTrashedEvent struct {
	MessageID  string    `json:"message_id"`
	OwnerID    string    `json:"owner_id"`
	FromFolder string    `json:"from_folder"`
	TrashedAt  time.Time `json:"trashed_at"`
}

// MessagePurgedEvent is published when a message is permanently deleted.
// This event is only published for permanent deletions, not moves to trash.
type MessagePurgedEvent struct {
	MessageID string    `json:"message_id"`
	OwnerID   string    `json:"owner_id"`
	PurgedAt  time.Time `json:"purged_at"`
}

// ConversationCreatedEvent is published when a finalized message starts a
// new conversation.
type ConversationCreatedEvent struct {
	ThreadID  string    `json:"thread_id"`
	OwnerID   string    `json:"owner_id"`
	Subject   string    `json:"subject"`
	CreatedAt time.Time `json:"created_at"`
}

// ServiceEvents provides access to per-service event instances.
// Each service creates its own events bound to its own event bus,
// enabling independent event routing and parallel testing.
//
// Subscribe to events:
//
//	svc.Events().MessageSent.Subscribe(ctx, handler)
//	svc.Events().MessageRead.Subscribe(ctx, handler)
type ServiceEvents struct {
	DraftSaved          event.Event[DraftSavedEvent]
	MessageSent         event.Event[MessageSentEvent]
	MessageRead         event.Event[MessageReadEvent]
	MessageTrashed      event.Event[MessageTrashedEvent]
	MessagePurged       event.Event[MessagePurgedEvent]
	ConversationCreated event.Event[ConversationCreatedEvent]
}

// newServiceEvents creates per-service event instances with a unique name prefix.
func newServiceEvents(namePrefix string) *ServiceEvents {
	return &ServiceEvents{
		DraftSaved:          event.New[DraftSavedEvent](namePrefix + "." + EventNameDraftSaved),
		MessageSent:         event.New[MessageSentEvent](namePrefix + "." + EventNameMessageSent),
		MessageRead:         event.New[MessageReadEvent](namePrefix + "." + EventNameMessageRead),
		MessageTrashed:      event.New[MessageTrashedEvent](namePrefix + "." + EventNameMessageTrashed),
		MessagePurged:       event.New[MessagePurgedEvent](namePrefix + "." + EventNameMessagePurged),
		ConversationCreated: event.New[ConversationCreatedEvent](namePrefix + "." + EventNameConversationCreated),
	}
}

// registerServiceEvents registers per-service events with the given bus.
func registerServiceEvents(ctx context.Context, bus *event.Bus, events *ServiceEvents) error {
	if err := event.Register(ctx, bus, events.DraftSaved); err != nil {
		return fmt.Errorf("register DraftSaved: %w", err)
	}
	if err := event.Register(ctx, bus, events.MessageSent); err != nil {
		return fmt.Errorf("register MessageSent: %w", err)
	}
	if err := event.Register(ctx, bus, events.MessageRead); err != nil {
		return fmt.Errorf("register MessageRead: %w", err)
	}
	if err := event.Register(ctx, bus, events.MessageTrashed); err != nil {
		return fmt.Errorf("register MessageTrashed: %w", err)
	}
	if err := event.Register(ctx, bus, events.MessagePurged); err != nil {
		return fmt.Errorf("register MessagePurged: %w", err)
	}
	if err := event.Register(ctx, bus, events.ConversationCreated); err != nil {
		return fmt.Errorf("register ConversationCreated: %w", err)
	}
	return nil
}
