package postbox

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/absurdlabs/postbox/delivery"
	"github.com/absurdlabs/postbox/store"
)

// Send finalizes a message: delivers it through the outbound transport,
// persists it to the sent folder and assigns it to a conversation.
//
// When req.DraftID is set, envelope and content come from the stored
// draft and the inline payload fields are ignored; the draft record is
// removed after a successful send. Delivery failure aborts the send with
// a DeliveryError and no state mutated. If the message persists but the
// existing conversation cannot be updated, the message is returned
// together with a ThreadSyncError.
func (m *clientMailbox) Send(ctx context.Context, req SendRequest) (*Message, error) {
	if err := m.checkAccess(); err != nil {
		return nil, err
	}

	content, draftID, err := m.resolveSendContent(ctx, req)
	if err != nil {
		return nil, err
	}
	limits := m.service.opts.getLimits()
	if err := validateRecipients(content.To, content.Cc, content.Bcc, limits, true); err != nil {
		return nil, err
	}
	if err := validateContent(content.Subject, content.TextBody, content.Attachments, limits, true); err != nil {
		return nil, err
	}
	if content.HTMLBody == "" {
		content.HTMLBody = content.TextBody
	}
	if err := m.service.plugins.beforeSend(ctx, m.ownerID(), content); err != nil {
		return nil, err
	}

	if err := m.service.sendSem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("acquire send slot: %w", err)
	}
	defer m.service.sendSem.Release(1)

	ctx, endSpan := m.service.otel.startSpan(ctx, "postbox.Send",
		attribute.Bool("from_draft", draftID != ""))
	start := time.Now()

	msg, err := m.send(ctx, req, content, draftID)
	recipients := len(content.To) + len(content.Cc) + len(content.Bcc)
	m.service.otel.recordSend(ctx, time.Since(start), recipients, err)
	endSpan(err)
	return msg, err
}

// resolveSendContent returns the content to finalize: the stored draft
// when req.DraftID is set, the inline payload otherwise.
func (m *clientMailbox) resolveSendContent(ctx context.Context, req SendRequest) (store.DraftContent, string, error) {
	if req.DraftID == "" {
		return store.DraftContent{
			To:          req.To,
			Cc:          req.Cc,
			Bcc:         req.Bcc,
			Subject:     req.Subject,
			TextBody:    req.TextBody,
			HTMLBody:    req.HTMLBody,
			Attachments: req.Attachments,
			Headers:     req.Headers,
		}, "", nil
	}

	draft, err := m.service.store.GetMessage(ctx, m.ownerID(), req.DraftID)
	if err != nil {
		return store.DraftContent{}, "", fmt.Errorf("get draft: %w", mapStoreError(err))
	}
	if !draft.IsDraft {
		return store.DraftContent{}, "", fmt.Errorf("send draft: %w", store.ErrNotDraft)
	}
	return store.DraftContent{
		To:          draft.To,
		Cc:          draft.Cc,
		Bcc:         draft.Bcc,
		Subject:     draft.Subject,
		TextBody:    draft.TextBody,
		HTMLBody:    draft.HTMLBody,
		Attachments: draft.Attachments,
		Headers:     draft.Headers,
	}, draft.ID, nil
}

func (m *clientMailbox) send(ctx context.Context, req SendRequest, content store.DraftContent, draftID string) (*Message, error) {
	content = m.resolveDisplayNames(ctx, content)

	res, err := m.service.deliverer.Deliver(ctx,
		delivery.Envelope{
			From: m.identity.From(),
			To:   content.To,
			Cc:   content.Cc,
			Bcc:  content.Bcc,
		},
		delivery.Content{
			Subject:     content.Subject,
			TextBody:    content.TextBody,
			HTMLBody:    content.HTMLBody,
			Attachments: content.Attachments,
		})
	if err != nil {
		return nil, &DeliveryError{Err: err}
	}

	now := nowUTC()
	msg := &store.Message{
		ID:          newID(),
		OwnerID:     m.ownerID(),
		From:        m.identity.From(),
		To:          content.To,
		Cc:          content.Cc,
		Bcc:         content.Bcc,
		Subject:     content.Subject,
		TextBody:    content.TextBody,
		HTMLBody:    content.HTMLBody,
		Attachments: content.Attachments,
		Headers:     content.Headers,
		Folder:      store.FolderSent,
		IsRead:      true,
		ReplyToID:   req.ReplyToID,
		DeliveryID:  res.DeliveryID,
		SentAt:      res.DeliveredAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	threadID := m.resolveExistingThread(ctx, req)
	var newConv *Conversation
	if threadID == "" {
		conv, err := m.createConversation(ctx, msg)
		if err != nil {
			return nil, err
		}
		msg.ThreadID = conv.ID
		newConv = conv
	} else {
		msg.ThreadID = threadID
	}

	if err := m.service.store.CreateMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("persist message: %w", mapStoreError(err))
	}

	if threadID != "" {
		if err := m.joinConversation(ctx, msg); err != nil {
			return msg, err
		}
	} else if perr := m.publishConversationCreated(ctx, newConv, now); perr != nil {
		return msg, perr
	}

	// Best effort: the message is already finalized, a lingering draft is
	// cosmetic.
	if draftID != "" {
		if err := m.service.store.HardDeleteMessage(ctx, m.ownerID(), draftID); err != nil && !store.IsNotFound(err) {
			m.service.logger.Warn("failed to remove sent draft",
				"draft_id", draftID, "error", err)
		}
	}

	if perr := m.publishEvent(ctx, "MessageSent", func() error {
		return m.service.events.MessageSent.Publish(ctx, MessageSentEvent{
			MessageID:  msg.ID,
			OwnerID:    m.ownerID(),
			ThreadID:   msg.ThreadID,
			DeliveryID: msg.DeliveryID,
			Subject:    msg.Subject,
			SentAt:     msg.SentAt,
		})
	}); perr != nil {
		return msg, perr
	}

	if err := m.service.plugins.afterSend(ctx, m.ownerID(), msg); err != nil {
		return msg, err
	}
	return msg, nil
}

// resolveDisplayNames fills in missing recipient display names from the
// configured directory resolver. Best effort: resolver failures leave the
// names as composed.
func (m *clientMailbox) resolveDisplayNames(ctx context.Context, content store.DraftContent) store.DraftContent {
	resolver := m.service.opts.resolver
	if resolver == nil {
		return content
	}

	var missing []string
	for _, group := range [][]store.Address{content.To, content.Cc, content.Bcc} {
		for _, a := range group {
			if a.Name == "" && a.Email != "" {
				missing = append(missing, a.Email)
			}
		}
	}
	if len(missing) == 0 {
		return content
	}

	resolved, err := resolver.ResolveBatch(ctx, missing)
	if err != nil {
		m.service.logger.Warn("recipient resolution failed", "error", err)
		return content
	}
	names := make(map[string]string, len(resolved))
	for _, r := range resolved {
		if r != nil && r.Name != "" {
			names[r.Email] = r.Name
		}
	}
	fill := func(group []store.Address) []store.Address {
		for i, a := range group {
			if a.Name == "" {
				if name, ok := names[a.Email]; ok {
					group[i].Name = name
				}
			}
		}
		return group
	}
	content.To = fill(content.To)
	content.Cc = fill(content.Cc)
	content.Bcc = fill(content.Bcc)
	return content
}
