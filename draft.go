package postbox

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/absurdlabs/postbox/store"
)

// SaveDraft creates a draft or fully replaces the content of an existing
// one. An empty draftID creates; a non-empty draftID that does not resolve
// to an owner-matching draft is ErrNotFound, never an implicit create.
//
// Drafts are validated leniently: recipients, subject and body may all be
// empty, but size and count limits still apply. An empty HTML body is
// defaulted to the text body.
func (m *clientMailbox) SaveDraft(ctx context.Context, draftID string, content DraftContent) (*Message, error) {
	if err := m.checkAccess(); err != nil {
		return nil, err
	}
	limits := m.service.opts.getLimits()
	if err := validateRecipients(content.To, content.Cc, content.Bcc, limits, false); err != nil {
		return nil, err
	}
	if err := validateContent(content.Subject, content.TextBody, content.Attachments, limits, false); err != nil {
		return nil, err
	}
	if content.HTMLBody == "" {
		content.HTMLBody = content.TextBody
	}

	created := draftID == ""

	ctx, endSpan := m.service.otel.startSpan(ctx, "postbox.SaveDraft",
		attribute.Bool("created", created))
	start := time.Now()

	var msg *Message
	var err error
	if created {
		msg, err = m.createDraft(ctx, content)
	} else {
		msg, err = m.service.store.UpdateDraft(ctx, m.ownerID(), draftID, content)
		if err != nil {
			err = fmt.Errorf("update draft: %w", mapStoreError(err))
		}
	}
	m.service.otel.recordDraft(ctx, time.Since(start), created, err)
	endSpan(err)
	if err != nil {
		return nil, err
	}

	if perr := m.publishEvent(ctx, "DraftSaved", func() error {
		return m.service.events.DraftSaved.Publish(ctx, DraftSavedEvent{
			MessageID: msg.ID,
			OwnerID:   m.ownerID(),
			Created:   created,
			SavedAt:   nowUTC(),
		})
	}); perr != nil {
		return msg, perr
	}
	return msg, nil
}

func (m *clientMailbox) createDraft(ctx context.Context, content DraftContent) (*Message, error) {
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
		Folder:      store.FolderDrafts,
		IsRead:      true,
		IsDraft:     true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := m.service.store.CreateMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("create draft: %w", mapStoreError(err))
	}
	return msg, nil
}

// Drafts lists the account's drafts, newest first.
func (m *clientMailbox) Drafts(ctx context.Context, page Page) (*MessageList, error) {
	return m.List(ctx, MessageFilter{Folder: store.FolderDrafts}, page)
}

// DeleteDraft removes a draft permanently. Drafts never pass through
// trash; targeting a non-draft message is an error.
func (m *clientMailbox) DeleteDraft(ctx context.Context, draftID string) error {
	if err := m.checkAccess(); err != nil {
		return err
	}
	if draftID == "" {
		return ErrInvalidID
	}

	ctx, endSpan := m.service.otel.startSpan(ctx, "postbox.DeleteDraft",
		attribute.String("message_id", draftID))
	start := time.Now()

	err := m.deleteDraft(ctx, draftID)
	m.service.otel.recordDelete(ctx, time.Since(start), true, err)
	endSpan(err)
	return err
}

func (m *clientMailbox) deleteDraft(ctx context.Context, draftID string) error {
	msg, err := m.service.store.GetMessage(ctx, m.ownerID(), draftID)
	if err != nil {
		return fmt.Errorf("get draft: %w", mapStoreError(err))
	}
	if !msg.IsDraft {
		return fmt.Errorf("delete draft: %w", store.ErrNotDraft)
	}
	return m.purge(ctx, draftID)
}
