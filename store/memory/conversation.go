package memory

import (
	"context"
	"time"

	"github.com/absurdlabs/postbox/store"
)

// CreateConversation persists a new conversation record.
func (s *Store) CreateConversation(_ context.Context, c *store.Conversation) error {
	if !s.isConnected() {
		return store.ErrNotConnected
	}
	if c.ID == "" || c.OwnerID == "" {
		return store.ErrInvalidID
	}
	if _, loaded := s.conversations.LoadOrStore(c.ID, c.Clone()); loaded {
		return store.ErrDuplicateEntry
	}
	return nil
}

// GetConversation returns the owner's conversation by id.
func (s *Store) GetConversation(_ context.Context, ownerID, id string) (*store.Conversation, error) {
	if !s.isConnected() {
		return nil, store.ErrNotConnected
	}
	if id == "" {
		return nil, store.ErrInvalidID
	}
	v, ok := s.conversations.Load(id)
	if !ok {
		return nil, store.ErrNotFound
	}
	c := v.(*store.Conversation)
	if c.OwnerID != ownerID {
		return nil, store.ErrNotFound
	}
	return c.Clone(), nil
}

// JoinConversation atomically applies a message joining the conversation:
// count incremented, last activity raised, participants unioned.
func (s *Store) JoinConversation(_ context.Context, ownerID, id string, participants []store.Address, at time.Time) error {
	if !s.isConnected() {
		return store.ErrNotConnected
	}
	if id == "" {
		return store.ErrInvalidID
	}

	lock := s.getConvLock(id)
	lock.Lock()
	defer lock.Unlock()

	v, ok := s.conversations.Load(id)
	if !ok {
		return store.ErrNotFound
	}
	c := v.(*store.Conversation)
	if c.OwnerID != ownerID {
		return store.ErrNotFound
	}

	updated := c.Clone()
	updated.MessageCount++
	if at.After(updated.LastActivityAt) {
		updated.LastActivityAt = at
	}
	updated.MergeParticipants(participants)
	updated.UpdatedAt = time.Now().UTC()
	s.conversations.Store(id, updated)
	return nil
}
