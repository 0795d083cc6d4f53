package memory

import (
	"context"
	"time"

	"github.com/absurdlabs/postbox/store"
)

// GetMessage retrieves a message without side effects.
func (s *Store) GetMessage(_ context.Context, ownerID, id string) (*store.Message, error) {
	if !s.isConnected() {
		return nil, store.ErrNotConnected
	}
	if id == "" {
		return nil, store.ErrInvalidID
	}
	m, err := s.loadMessage(ownerID, id)
	if err != nil {
		return nil, err
	}
	return m.Clone(), nil
}

// ViewMessage retrieves a message and atomically marks it read if unread.
func (s *Store) ViewMessage(_ context.Context, ownerID, id string) (*store.Message, bool, error) {
	if !s.isConnected() {
		return nil, false, store.ErrNotConnected
	}
	if id == "" {
		return nil, false, store.ErrInvalidID
	}

	lock := s.getMsgLock(id)
	lock.Lock()
	defer lock.Unlock()

	m, err := s.loadMessage(ownerID, id)
	if err != nil {
		return nil, false, err
	}
	if m.IsRead {
		return m.Clone(), false, nil
	}

	updated := m.Clone()
	updated.IsRead = true
	updated.UpdatedAt = time.Now().UTC()
	s.messages.Store(id, updated)
	return updated.Clone(), true, nil
}

// CreateMessage persists a new message.
func (s *Store) CreateMessage(_ context.Context, m *store.Message) error {
	if !s.isConnected() {
		return store.ErrNotConnected
	}
	if m.ID == "" || m.OwnerID == "" {
		return store.ErrInvalidID
	}
	if _, loaded := s.messages.LoadOrStore(m.ID, m.Clone()); loaded {
		return store.ErrDuplicateEntry
	}
	return nil
}

// UpdateMessage applies a sparse update atomically.
func (s *Store) UpdateMessage(_ context.Context, ownerID, id string, upd store.MessageUpdate) (*store.Message, error) {
	if !s.isConnected() {
		return nil, store.ErrNotConnected
	}
	if id == "" {
		return nil, store.ErrInvalidID
	}
	if err := upd.Validate(); err != nil {
		return nil, err
	}

	lock := s.getMsgLock(id)
	lock.Lock()
	defer lock.Unlock()

	m, err := s.loadMessage(ownerID, id)
	if err != nil {
		return nil, err
	}
	if m.IsDraft && upd.Folder != nil {
		return nil, store.ErrNotDraft
	}

	updated := m.Clone()
	upd.Apply(updated, time.Now().UTC())
	s.messages.Store(id, updated)
	return updated.Clone(), nil
}

// UpdateDraft atomically replaces the content of an existing draft.
func (s *Store) UpdateDraft(_ context.Context, ownerID, id string, content store.DraftContent) (*store.Message, error) {
	if !s.isConnected() {
		return nil, store.ErrNotConnected
	}
	if id == "" {
		return nil, store.ErrInvalidID
	}

	lock := s.getMsgLock(id)
	lock.Lock()
	defer lock.Unlock()

	m, err := s.loadMessage(ownerID, id)
	if err != nil {
		return nil, err
	}
	if !m.IsDraft {
		return nil, store.ErrNotDraft
	}

	updated := m.Clone()
	updated.To = content.To
	updated.Cc = content.Cc
	updated.Bcc = content.Bcc
	updated.Subject = content.Subject
	updated.TextBody = content.TextBody
	updated.HTMLBody = content.HTMLBody
	updated.Attachments = content.Attachments
	updated.Headers = content.Headers
	updated.UpdatedAt = time.Now().UTC()
	s.messages.Store(id, updated)
	return updated.Clone(), nil
}

// SoftDeleteMessage moves a finalized message to trash.
func (s *Store) SoftDeleteMessage(_ context.Context, ownerID, id string) (*store.Message, error) {
	if !s.isConnected() {
		return nil, store.ErrNotConnected
	}
	if id == "" {
		return nil, store.ErrInvalidID
	}

	lock := s.getMsgLock(id)
	lock.Lock()
	defer lock.Unlock()

	m, err := s.loadMessage(ownerID, id)
	if err != nil {
		return nil, err
	}
	if m.IsDraft {
		return nil, store.ErrNotDraft
	}
	if m.InTrash() {
		return nil, store.ErrAlreadyInTrash
	}

	updated := m.Clone()
	updated.Folder = store.FolderTrash
	updated.CustomFolderID = ""
	updated.UpdatedAt = time.Now().UTC()
	s.messages.Store(id, updated)
	return updated.Clone(), nil
}

// HardDeleteMessage removes a message permanently.
func (s *Store) HardDeleteMessage(_ context.Context, ownerID, id string) error {
	if !s.isConnected() {
		return store.ErrNotConnected
	}
	if id == "" {
		return store.ErrInvalidID
	}

	lock := s.getMsgLock(id)
	lock.Lock()
	defer lock.Unlock()

	if _, err := s.loadMessage(ownerID, id); err != nil {
		return err
	}
	s.messages.Delete(id)
	return nil
}

// ClearLabel removes the label from every message carrying it.
func (s *Store) ClearLabel(_ context.Context, ownerID, labelID string) (int64, error) {
	if !s.isConnected() {
		return 0, store.ErrNotConnected
	}

	var cleared int64
	now := time.Now().UTC()
	s.messages.Range(func(key, value any) bool {
		m := value.(*store.Message)
		if m.OwnerID != ownerID || !m.HasLabel(labelID) {
			return true
		}
		id := key.(string)
		lock := s.getMsgLock(id)
		lock.Lock()
		if v, ok := s.messages.Load(id); ok {
			cur := v.(*store.Message)
			if cur.OwnerID == ownerID && cur.HasLabel(labelID) {
				updated := cur.Clone()
				updated.LabelIDs = removeString(updated.LabelIDs, labelID)
				updated.UpdatedAt = now
				s.messages.Store(id, updated)
				cleared++
			}
		}
		lock.Unlock()
		return true
	})
	return cleared, nil
}

// RelocateFolderMessages moves all messages in a custom folder to a built-in.
func (s *Store) RelocateFolderMessages(_ context.Context, ownerID, customFolderID, toFolder string) (int64, error) {
	if !s.isConnected() {
		return 0, store.ErrNotConnected
	}
	if !store.IsValidFolder(toFolder) || toFolder == store.FolderCustom || toFolder == store.FolderDrafts {
		return 0, store.ErrInvalidFolder
	}

	var moved int64
	now := time.Now().UTC()
	s.messages.Range(func(key, value any) bool {
		m := value.(*store.Message)
		if m.OwnerID != ownerID || m.Folder != store.FolderCustom || m.CustomFolderID != customFolderID {
			return true
		}
		id := key.(string)
		lock := s.getMsgLock(id)
		lock.Lock()
		if v, ok := s.messages.Load(id); ok {
			cur := v.(*store.Message)
			if cur.OwnerID == ownerID && cur.Folder == store.FolderCustom && cur.CustomFolderID == customFolderID {
				updated := cur.Clone()
				updated.Folder = toFolder
				updated.CustomFolderID = ""
				updated.UpdatedAt = now
				s.messages.Store(id, updated)
				moved++
			}
		}
		lock.Unlock()
		return true
	})
	return moved, nil
}

func removeString(in []string, target string) []string {
	out := in[:0]
	for _, v := range in {
		if v != target {
			out = append(out, v)
		}
	}
	return out
}
