// Package memory provides an in-memory Store implementation for testing.
// This store is not suitable for production use - data is not persisted.
package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/absurdlabs/postbox/store"
)

// Store implements store.Store with in-memory storage.
// Thread-safe for concurrent use. Not suitable for production.
type Store struct {
	messages      sync.Map // map[string]*store.Message
	conversations sync.Map // map[string]*store.Conversation
	folders       sync.Map // map[string]*store.Folder
	labels        sync.Map // map[string]*store.Label

	msgLocks  sync.Map // map[string]*sync.Mutex (per-message mutation locks)
	convLocks sync.Map // map[string]*sync.Mutex (per-conversation mutation locks)

	// registryMu serializes folder/label creation so per-owner name
	// uniqueness checks are atomic with the insert.
	registryMu sync.Mutex

	connected int32
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{}
}

// Connect marks the store as connected.
func (s *Store) Connect(_ context.Context) error {
	if !atomic.CompareAndSwapInt32(&s.connected, 0, 1) {
		return store.ErrAlreadyConnected
	}
	return nil
}

// Close marks the store as disconnected.
func (s *Store) Close(_ context.Context) error {
	atomic.StoreInt32(&s.connected, 0)
	return nil
}

func (s *Store) isConnected() bool {
	return atomic.LoadInt32(&s.connected) == 1
}

// getMsgLock returns the mutex for a message ID, creating one if needed.
// Uses LoadOrStore for atomic get-or-create.
func (s *Store) getMsgLock(id string) *sync.Mutex {
	lock, _ := s.msgLocks.LoadOrStore(id, &sync.Mutex{})
	return lock.(*sync.Mutex)
}

func (s *Store) getConvLock(id string) *sync.Mutex {
	lock, _ := s.convLocks.LoadOrStore(id, &sync.Mutex{})
	return lock.(*sync.Mutex)
}

// loadMessage returns the live record for (owner, id). Wrong-owner lookups
// are indistinguishable from missing records.
func (s *Store) loadMessage(ownerID, id string) (*store.Message, error) {
	v, ok := s.messages.Load(id)
	if !ok {
		return nil, store.ErrNotFound
	}
	m := v.(*store.Message)
	if m.OwnerID != ownerID {
		return nil, store.ErrNotFound
	}
	return m, nil
}

// PurgeExpiredTrash permanently deletes up to limit trashed messages whose
// last update is older than cutoff, across all owners.
func (s *Store) PurgeExpiredTrash(_ context.Context, cutoff time.Time, limit int) (int64, error) {
	if !s.isConnected() {
		return 0, store.ErrNotConnected
	}

	var deleted int64
	s.messages.Range(func(key, value any) bool {
		m := value.(*store.Message)
		if m.Folder != store.FolderTrash || !m.UpdatedAt.Before(cutoff) {
			return true
		}
		id := key.(string)
		lock := s.getMsgLock(id)
		lock.Lock()
		// Re-check under the lock: the message may have moved since Range
		// observed it. The lock entry is dropped only for messages that
		// were actually purged; a surviving message keeps its mutex so
		// in-flight mutators never race on two different locks.
		if v, ok := s.messages.Load(id); ok {
			if cur := v.(*store.Message); cur.Folder == store.FolderTrash && cur.UpdatedAt.Before(cutoff) {
				s.messages.Delete(id)
				s.msgLocks.Delete(id)
				deleted++
			}
		}
		lock.Unlock()
		return limit <= 0 || deleted < int64(limit)
	})
	return deleted, nil
}
