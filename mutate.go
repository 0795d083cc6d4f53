package postbox

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/absurdlabs/postbox/store"
)

// Update applies a sparse, field-optional update to a message.
//
// Each present field is validated before anything is applied: folder moves
// must target a known folder (custom moves require an owner-matching custom
// folder record) and label sets may only reference the owner's labels.
// Absent fields are left untouched.
func (m *clientMailbox) Update(ctx context.Context, messageID string, upd MessageUpdate) (*Message, error) {
	if err := m.checkAccess(); err != nil {
		return nil, err
	}
	if messageID == "" {
		return nil, ErrInvalidID
	}
	if upd.IsZero() {
		return nil, invalidField("update", "no fields to update")
	}
	if err := upd.Validate(); err != nil {
		return nil, invalidField("folder", "invalid folder target")
	}

	ctx, endSpan := m.service.otel.startSpan(ctx, "postbox.Update",
		attribute.String("message_id", messageID))
	start := time.Now()

	msg, err := m.applyUpdate(ctx, messageID, upd)
	m.service.otel.recordUpdate(ctx, time.Since(start), "update", err)
	endSpan(err)
	if err != nil {
		return nil, err
	}

	if upd.IsRead != nil && *upd.IsRead {
		if err := m.publishMessageRead(ctx, msg.ID); err != nil {
			return msg, err
		}
	}
	return msg, nil
}

func (m *clientMailbox) applyUpdate(ctx context.Context, messageID string, upd MessageUpdate) (*Message, error) {
	// Referenced entities must resolve to owner-matching records before the
	// update is applied; the store does not enforce this itself.
	if upd.Folder != nil && *upd.Folder == store.FolderCustom {
		if _, err := m.service.store.GetFolder(ctx, m.ownerID(), *upd.CustomFolderID); err != nil {
			return nil, fmt.Errorf("resolve folder: %w", mapStoreError(err))
		}
	}
	if upd.LabelIDs != nil {
		if err := validateLabelIDs(*upd.LabelIDs, m.service.opts.getLimits()); err != nil {
			return nil, err
		}
		for _, labelID := range *upd.LabelIDs {
			if _, err := m.service.store.GetLabel(ctx, m.ownerID(), labelID); err != nil {
				return nil, fmt.Errorf("resolve label: %w", mapStoreError(err))
			}
		}
	}

	msg, err := m.service.store.UpdateMessage(ctx, m.ownerID(), messageID, upd)
	if err != nil {
		return nil, fmt.Errorf("update message: %w", mapStoreError(err))
	}
	return msg, nil
}

// MarkRead marks a message as read.
func (m *clientMailbox) MarkRead(ctx context.Context, messageID string) error {
	_, err := m.Update(ctx, messageID, MessageUpdate{IsRead: ptrTrue})
	return err
}

// MarkUnread marks a message as unread.
func (m *clientMailbox) MarkUnread(ctx context.Context, messageID string) error {
	_, err := m.Update(ctx, messageID, MessageUpdate{IsRead: ptrFalse})
	return err
}

// Star marks a message as starred.
func (m *clientMailbox) Star(ctx context.Context, messageID string) error {
	_, err := m.Update(ctx, messageID, MessageUpdate{IsStarred: ptrTrue})
	return err
}

// Unstar removes the star from a message.
func (m *clientMailbox) Unstar(ctx context.Context, messageID string) error {
	_, err := m.Update(ctx, messageID, MessageUpdate{IsStarred: ptrFalse})
	return err
}

// MoveToFolder moves a message to a built-in folder or, when folder is
// FolderCustom, to the given user-defined folder.
func (m *clientMailbox) MoveToFolder(ctx context.Context, messageID, folder, customFolderID string) error {
	upd := MessageUpdate{Folder: &folder}
	if folder == store.FolderCustom {
		upd.CustomFolderID = &customFolderID
	}
	_, err := m.Update(ctx, messageID, upd)
	return err
}

// AddLabel adds a label to a message. Adding a label the message already
// carries is a no-op.
func (m *clientMailbox) AddLabel(ctx context.Context, messageID, labelID string) error {
	if err := m.checkAccess(); err != nil {
		return err
	}
	msg, err := m.service.store.GetMessage(ctx, m.ownerID(), messageID)
	if err != nil {
		return fmt.Errorf("get message: %w", mapStoreError(err))
	}
	if msg.HasLabel(labelID) {
		return nil
	}
	labels := append(append([]string(nil), msg.LabelIDs...), labelID)
	_, err = m.Update(ctx, messageID, MessageUpdate{LabelIDs: &labels})
	return err
}

// RemoveLabel removes a label from a message. Removing an absent label is
// a no-op.
func (m *clientMailbox) RemoveLabel(ctx context.Context, messageID, labelID string) error {
	if err := m.checkAccess(); err != nil {
		return err
	}
	msg, err := m.service.store.GetMessage(ctx, m.ownerID(), messageID)
	if err != nil {
		return fmt.Errorf("get message: %w", mapStoreError(err))
	}
	if !msg.HasLabel(labelID) {
		return nil
	}
	labels := make([]string, 0, len(msg.LabelIDs))
	for _, id := range msg.LabelIDs {
		if id != labelID {
			labels = append(labels, id)
		}
	}
	_, err = m.Update(ctx, messageID, MessageUpdate{LabelIDs: &labels})
	return err
}

// Delete soft-deletes a message to trash.
//
// Policy for repeated deletes: a message already in trash is escalated to
// a permanent delete, and drafts are always removed permanently since they
// never pass through trash.
func (m *clientMailbox) Delete(ctx context.Context, messageID string) error {
	if err := m.checkAccess(); err != nil {
		return err
	}
	if messageID == "" {
		return ErrInvalidID
	}

	ctx, endSpan := m.service.otel.startSpan(ctx, "postbox.Delete",
		attribute.String("message_id", messageID))
	start := time.Now()

	err := m.deleteMessage(ctx, messageID)
	m.service.otel.recordDelete(ctx, time.Since(start), false, err)
	endSpan(err)
	return err
}

func (m *clientMailbox) deleteMessage(ctx context.Context, messageID string) error {
	msg, err := m.service.store.GetMessage(ctx, m.ownerID(), messageID)
	if err != nil {
		return fmt.Errorf("get message: %w", mapStoreError(err))
	}

	if msg.IsDraft || msg.InTrash() {
		return m.purge(ctx, messageID)
	}

	fromFolder := msg.Folder
	if _, err := m.service.store.SoftDeleteMessage(ctx, m.ownerID(), messageID); err != nil {
		// The message may have been trashed concurrently; honor the
		// escalation policy instead of failing.
		if store.IsAlreadyInTrash(err) {
			return m.purge(ctx, messageID)
		}
		return fmt.Errorf("soft delete: %w", mapStoreError(err))
	}

	return m.publishEvent(ctx, "MessageTrashed", func() error {
		return m.service.events.MessageTrashed.Publish(ctx, MessageTrashedEvent{
			MessageID:  messageID,
			OwnerID:    m.ownerID(),
			FromFolder: fromFolder,
			TrashedAt:  nowUTC(),
		})
	})
}

// DeletePermanent removes a message permanently regardless of folder.
// This transition is terminal.
func (m *clientMailbox) DeletePermanent(ctx context.Context, messageID string) error {
	if err := m.checkAccess(); err != nil {
		return err
	}
	if messageID == "" {
		return ErrInvalidID
	}

	ctx, endSpan := m.service.otel.startSpan(ctx, "postbox.DeletePermanent",
		attribute.String("message_id", messageID))
	start := time.Now()

	err := m.purge(ctx, messageID)
	m.service.otel.recordDelete(ctx, time.Since(start), true, err)
	endSpan(err)
	return err
}

func (m *clientMailbox) purge(ctx context.Context, messageID string) error {
	if err := m.service.store.HardDeleteMessage(ctx, m.ownerID(), messageID); err != nil {
		return fmt.Errorf("hard delete: %w", mapStoreError(err))
	}
	return m.publishEvent(ctx, "MessagePurged", func() error {
		return m.service.events.MessagePurged.Publish(ctx, MessagePurgedEvent{
			MessageID: messageID,
			OwnerID:   m.ownerID(),
			PurgedAt:  nowUTC(),
		})
	})
}

// publishEvent runs publish and applies the event-errors-fatal policy.
func (m *clientMailbox) publishEvent(ctx context.Context, name string, publish func() error) error {
	err := publish()
	if err == nil {
		return nil
	}
	if m.service.opts.eventErrorsFatal {
		return &EventPublishError{EventName: name, Err: err}
	}
	m.service.opts.safeEventPublishFailure(name, err)
	return nil
}
