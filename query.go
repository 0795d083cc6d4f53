package postbox

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/absurdlabs/postbox/store"
)

// Get retrieves a single message by id, including its rich body.
//
// Read-on-view: if the message was unread it is marked read as part of the
// same operation and the updated state is returned. A second Get on an
// already-read message returns identical results with no further mutation.
func (m *clientMailbox) Get(ctx context.Context, messageID string) (*Message, error) {
	if err := m.checkAccess(); err != nil {
		return nil, err
	}
	if messageID == "" {
		return nil, ErrInvalidID
	}

	ctx, endSpan := m.service.otel.startSpan(ctx, "postbox.Get",
		attribute.String("message_id", messageID))
	start := time.Now()

	msg, marked, err := m.service.store.ViewMessage(ctx, m.ownerID(), messageID)
	m.service.otel.recordGet(ctx, time.Since(start), err)
	endSpan(err)
	if err != nil {
		return nil, fmt.Errorf("get message: %w", mapStoreError(err))
	}

	if marked {
		if err := m.publishMessageRead(ctx, msg.ID); err != nil {
			return msg, err
		}
	}
	return msg, nil
}

// List returns one page of messages matching the filter.
//
// The folder defaults to the inbox. Results are ordered by creation time
// descending, ties broken by id descending, and omit rich bodies.
func (m *clientMailbox) List(ctx context.Context, filter MessageFilter, page Page) (*MessageList, error) {
	if err := m.checkAccess(); err != nil {
		return nil, err
	}
	if filter.Folder == "" {
		filter.Folder = store.FolderInbox
	}
	if !store.IsValidFolder(filter.Folder) {
		return nil, invalidField("folder", "unknown folder")
	}

	ctx, endSpan := m.service.otel.startSpan(ctx, "postbox.List",
		attribute.String("folder", filter.Folder))
	start := time.Now()

	list, err := m.service.store.FindMessages(ctx, m.ownerID(), filter, page.Normalize())
	resultCount := 0
	if list != nil {
		resultCount = len(list.Messages)
	}
	m.service.otel.recordList(ctx, time.Since(start), filter.Folder, resultCount, err)
	endSpan(err)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", mapStoreError(err))
	}
	return list, nil
}

// Search returns one page of full-text matches over subject and text body.
//
// Results are ordered by relevance descending, ties broken by creation
// time descending. An empty or whitespace-only query is a validation
// error, not an empty result.
func (m *clientMailbox) Search(ctx context.Context, query string, filter MessageFilter, page Page) (*MessageList, error) {
	if err := m.checkAccess(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptySearchQuery
	}
	if filter.Folder != "" && !store.IsValidFolder(filter.Folder) {
		return nil, invalidField("folder", "unknown folder")
	}

	ctx, endSpan := m.service.otel.startSpan(ctx, "postbox.Search")
	start := time.Now()

	list, err := m.service.store.SearchMessages(ctx, m.ownerID(), store.SearchQuery{
		Query:  query,
		Filter: filter,
		Page:   page.Normalize(),
	})
	resultCount := 0
	if list != nil {
		resultCount = len(list.Messages)
	}
	m.service.otel.recordSearch(ctx, time.Since(start), resultCount, err)
	endSpan(err)
	if err != nil {
		return nil, fmt.Errorf("search messages: %w", mapStoreError(err))
	}
	return list, nil
}

// Conversation returns the thread record and its messages ordered by
// creation time ascending, rich bodies omitted.
func (m *clientMailbox) Conversation(ctx context.Context, threadID string) (*ConversationView, error) {
	if err := m.checkAccess(); err != nil {
		return nil, err
	}
	if threadID == "" {
		return nil, ErrInvalidID
	}

	ctx, endSpan := m.service.otel.startSpan(ctx, "postbox.Conversation",
		attribute.String("thread_id", threadID))

	conv, err := m.service.store.GetConversation(ctx, m.ownerID(), threadID)
	if err != nil {
		endSpan(err)
		return nil, fmt.Errorf("get conversation: %w", mapStoreError(err))
	}
	msgs, err := m.service.store.ConversationMessages(ctx, m.ownerID(), threadID)
	endSpan(err)
	if err != nil {
		return nil, fmt.Errorf("conversation messages: %w", mapStoreError(err))
	}

	return &ConversationView{Conversation: conv, Messages: msgs}, nil
}

func (m *clientMailbox) publishMessageRead(ctx context.Context, messageID string) error {
	return m.publishEvent(ctx, "MessageRead", func() error {
		return m.service.events.MessageRead.Publish(ctx, MessageReadEvent{
			MessageID: messageID,
			OwnerID:   m.ownerID(),
			ReadAt:    nowUTC(),
		})
	})
}
