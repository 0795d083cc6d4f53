package postbox

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/absurdlabs/postbox/store"
)

// Folders lists the account's custom folders, sorted by name.
func (m *clientMailbox) Folders(ctx context.Context) ([]*Folder, error) {
	if err := m.checkAccess(); err != nil {
		return nil, err
	}
	folders, err := m.service.store.ListFolders(ctx, m.ownerID())
	if err != nil {
		return nil, fmt.Errorf("list folders: %w", mapStoreError(err))
	}
	return folders, nil
}

// CreateFolder creates a custom folder. Names are unique per account;
// a duplicate name is ErrConflict. Empty color and icon get defaults.
func (m *clientMailbox) CreateFolder(ctx context.Context, name, color, icon string) (*Folder, error) {
	if err := m.checkAccess(); err != nil {
		return nil, err
	}
	if err := validateName(name); err != nil {
		return nil, err
	}
	if color == "" {
		color = store.DefaultFolderColor
	}
	if icon == "" {
		icon = store.DefaultFolderIcon
	}

	now := nowUTC()
	folder := &store.Folder{
		ID:        newID(),
		OwnerID:   m.ownerID(),
		Name:      name,
		Color:     color,
		Icon:      icon,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := m.service.store.CreateFolder(ctx, folder); err != nil {
		return nil, fmt.Errorf("create folder: %w", mapStoreError(err))
	}
	return folder, nil
}

// DeleteFolder removes a custom folder. Its member messages are relocated
// to the inbox first so no message is left pointing at a missing folder.
func (m *clientMailbox) DeleteFolder(ctx context.Context, folderID string) error {
	if err := m.checkAccess(); err != nil {
		return err
	}
	if folderID == "" {
		return ErrInvalidID
	}

	ctx, endSpan := m.service.otel.startSpan(ctx, "postbox.DeleteFolder",
		attribute.String("folder_id", folderID))

	err := m.deleteFolder(ctx, folderID)
	endSpan(err)
	return err
}

func (m *clientMailbox) deleteFolder(ctx context.Context, folderID string) error {
	if _, err := m.service.store.GetFolder(ctx, m.ownerID(), folderID); err != nil {
		return fmt.Errorf("get folder: %w", mapStoreError(err))
	}
	relocated, err := m.service.store.RelocateFolderMessages(ctx, m.ownerID(), folderID, store.FolderInbox)
	if err != nil {
		return fmt.Errorf("relocate folder messages: %w", mapStoreError(err))
	}
	if relocated > 0 {
		m.service.logger.Info("relocated messages from deleted folder",
			"folder_id", folderID, "count", relocated)
	}
	if err := m.service.store.DeleteFolder(ctx, m.ownerID(), folderID); err != nil {
		return fmt.Errorf("delete folder: %w", mapStoreError(err))
	}
	return nil
}

// Labels lists the account's labels, sorted by name.
func (m *clientMailbox) Labels(ctx context.Context) ([]*Label, error) {
	if err := m.checkAccess(); err != nil {
		return nil, err
	}
	labels, err := m.service.store.ListLabels(ctx, m.ownerID())
	if err != nil {
		return nil, fmt.Errorf("list labels: %w", mapStoreError(err))
	}
	return labels, nil
}

// CreateLabel creates a label. Names are unique per account; a duplicate
// name is ErrConflict. An empty color gets the default.
func (m *clientMailbox) CreateLabel(ctx context.Context, name, color string) (*Label, error) {
	if err := m.checkAccess(); err != nil {
		return nil, err
	}
	if err := validateName(name); err != nil {
		return nil, err
	}
	if color == "" {
		color = store.DefaultLabelColor
	}

	now := nowUTC()
	label := &store.Label{
		ID:        newID(),
		OwnerID:   m.ownerID(),
		Name:      name,
		Color:     color,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := m.service.store.CreateLabel(ctx, label); err != nil {
		return nil, fmt.Errorf("create label: %w", mapStoreError(err))
	}
	return label, nil
}

// DeleteLabel removes a label and strips it from every message that
// carries it.
func (m *clientMailbox) DeleteLabel(ctx context.Context, labelID string) error {
	if err := m.checkAccess(); err != nil {
		return err
	}
	if labelID == "" {
		return ErrInvalidID
	}

	ctx, endSpan := m.service.otel.startSpan(ctx, "postbox.DeleteLabel",
		attribute.String("label_id", labelID))

	err := m.deleteLabel(ctx, labelID)
	endSpan(err)
	return err
}

func (m *clientMailbox) deleteLabel(ctx context.Context, labelID string) error {
	if _, err := m.service.store.GetLabel(ctx, m.ownerID(), labelID); err != nil {
		return fmt.Errorf("get label: %w", mapStoreError(err))
	}
	cleared, err := m.service.store.ClearLabel(ctx, m.ownerID(), labelID)
	if err != nil {
		return fmt.Errorf("clear label: %w", mapStoreError(err))
	}
	if cleared > 0 {
		m.service.logger.Info("stripped deleted label from messages",
			"label_id", labelID, "count", cleared)
	}
	if err := m.service.store.DeleteLabel(ctx, m.ownerID(), labelID); err != nil {
		return fmt.Errorf("delete label: %w", mapStoreError(err))
	}
	return nil
}
