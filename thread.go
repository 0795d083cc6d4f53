package postbox

import (
	"context"
	"fmt"
	"time"

	"github.com/absurdlabs/postbox/retry"
	"github.com/absurdlabs/postbox/store"
)

// resolveExistingThread maps a send request to the id of an existing
// conversation, or "" when the message should start a fresh one.
//
// An explicit ThreadID wins over ReplyToID. Dangling references resolve
// to "" rather than failing the send: the referenced record may have been
// deleted between compose and send.
func (m *clientMailbox) resolveExistingThread(ctx context.Context, req SendRequest) string {
	if req.ThreadID != "" {
		if _, err := m.service.store.GetConversation(ctx, m.ownerID(), req.ThreadID); err == nil {
			return req.ThreadID
		} else if !store.IsNotFound(err) {
			m.service.logger.Warn("thread lookup failed, starting fresh conversation",
				"thread_id", req.ThreadID, "error", err)
		}
	}
	if req.ReplyToID != "" {
		parent, err := m.service.store.GetMessage(ctx, m.ownerID(), req.ReplyToID)
		if err == nil && parent.ThreadID != "" {
			return parent.ThreadID
		}
		if err != nil && !store.IsNotFound(err) {
			m.service.logger.Warn("reply-to lookup failed, starting fresh conversation",
				"reply_to_id", req.ReplyToID, "error", err)
		}
	}
	return ""
}

// createConversation starts a fresh conversation for msg, created before
// the message itself is persisted. If the message persist later fails, the
// empty conversation is harmless and is simply never listed.
func (m *clientMailbox) createConversation(ctx context.Context, msg *store.Message) (*Conversation, error) {
	now := msg.CreatedAt
	conv := &store.Conversation{
		ID:             newID(),
		OwnerID:        m.ownerID(),
		Subject:        msg.Subject,
		Participants:   msg.Participants(),
		MessageCount:   1,
		LastActivityAt: now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := m.service.store.CreateConversation(ctx, conv); err != nil {
		return nil, fmt.Errorf("create conversation: %w", mapStoreError(err))
	}
	return conv, nil
}

// joinConversation folds a persisted message into an existing
// conversation, retrying transient store failures. If reconciliation
// still fails the message stays persisted and the caller surfaces a
// ThreadSyncError instead of unwinding the send.
func (m *clientMailbox) joinConversation(ctx context.Context, msg *store.Message) error {
	err := retry.Do(ctx, m.service.opts.threadRetry, func(ctx context.Context) error {
		return m.service.store.JoinConversation(ctx, m.ownerID(), msg.ThreadID, msg.Participants(), msg.CreatedAt)
	})
	if err != nil {
		return &ThreadSyncError{MessageID: msg.ID, ThreadID: msg.ThreadID, Err: err}
	}
	return nil
}

// publishConversationCreated publishes the fresh-conversation event,
// honoring the event-errors-fatal policy.
func (m *clientMailbox) publishConversationCreated(ctx context.Context, conv *Conversation, at time.Time) error {
	return m.publishEvent(ctx, "ConversationCreated", func() error {
		return m.service.events.ConversationCreated.Publish(ctx, ConversationCreatedEvent{
			ThreadID:  conv.ID,
			OwnerID:   m.ownerID(),
			Subject:   conv.Subject,
			CreatedAt: at,
		})
	})
}
