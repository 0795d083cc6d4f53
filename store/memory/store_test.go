package memory

import (
	"context"
	"testing"
	"time"

	"github.com/absurdlabs/postbox/store"
)

func setupStore(t *testing.T) *Store {
	t.Helper()

	s := New()
	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { s.Close(context.Background()) })
	return s
}

func seedTrashed(t *testing.T, s *Store, id string, updatedAt time.Time) *store.Message {
	t.Helper()

	m := &store.Message{
		ID:        id,
		OwnerID:   "alice",
		From:      store.Address{Email: "carol@example.com"},
		To:        []store.Address{{Email: "alice@example.com"}},
		Subject:   "old news",
		TextBody:  "body",
		Folder:    store.FolderTrash,
		IsRead:    true,
		CreatedAt: updatedAt,
		UpdatedAt: updatedAt,
	}
	if err := s.CreateMessage(context.Background(), m); err != nil {
		t.Fatalf("create message: %v", err)
	}
	return m
}

func TestPurgeExpiredTrash(t *testing.T) {
	ctx := context.Background()
	s := setupStore(t)
	cutoff := time.Now().UTC()

	seedTrashed(t, s, "old1", cutoff.Add(-time.Hour))
	seedTrashed(t, s, "old2", cutoff.Add(-time.Minute))
	seedTrashed(t, s, "fresh", cutoff.Add(time.Hour))

	deleted, err := s.PurgeExpiredTrash(ctx, cutoff, 100)
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if deleted != 2 {
		t.Errorf("deleted = %d, want 2", deleted)
	}
	if _, err := s.GetMessage(ctx, "alice", "old1"); !store.IsNotFound(err) {
		t.Errorf("old1 err = %v, want not found", err)
	}
	if _, err := s.GetMessage(ctx, "alice", "fresh"); err != nil {
		t.Errorf("fresh err = %v, want nil", err)
	}
}

func TestPurgeExpiredTrashLimit(t *testing.T) {
	ctx := context.Background()
	s := setupStore(t)
	cutoff := time.Now().UTC()

	for _, id := range []string{"a", "b", "c"} {
		seedTrashed(t, s, id, cutoff.Add(-time.Hour))
	}

	deleted, err := s.PurgeExpiredTrash(ctx, cutoff, 2)
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if deleted != 2 {
		t.Errorf("deleted = %d, want 2", deleted)
	}
}

// A message that survives the under-lock re-check must keep its mutex
// entry. Minting a new mutex for a live message would let two mutators
// clone-modify-store it concurrently.
func TestPurgeKeepsLockOfSurvivor(t *testing.T) {
	ctx := context.Background()
	s := setupStore(t)
	cutoff := time.Now().UTC()
	m := seedTrashed(t, s, "m1", cutoff.Add(-time.Hour))

	lock := s.getMsgLock(m.ID)
	lock.Lock()

	done := make(chan error, 1)
	go func() {
		_, err := s.PurgeExpiredTrash(ctx, cutoff, 100)
		done <- err
	}()

	// While the purger is parked on the lock, move the message out of
	// trash the way a mutator holding this lock would.
	moved := m.Clone()
	moved.Folder = store.FolderInbox
	moved.UpdatedAt = time.Now().UTC()
	s.messages.Store(m.ID, moved)
	lock.Unlock()

	if err := <-done; err != nil {
		t.Fatalf("purge: %v", err)
	}
	if _, err := s.GetMessage(ctx, "alice", m.ID); err != nil {
		t.Fatalf("survivor err = %v, want nil", err)
	}
	if got := s.getMsgLock(m.ID); got != lock {
		t.Errorf("survivor lock remapped: old %p, new %p", lock, got)
	}
}

func TestPurgeDropsLockOfDeleted(t *testing.T) {
	ctx := context.Background()
	s := setupStore(t)
	cutoff := time.Now().UTC()
	m := seedTrashed(t, s, "m1", cutoff.Add(-time.Hour))

	s.getMsgLock(m.ID)
	if _, err := s.PurgeExpiredTrash(ctx, cutoff, 100); err != nil {
		t.Fatalf("purge: %v", err)
	}
	if _, ok := s.msgLocks.Load(m.ID); ok {
		t.Error("lock entry retained for purged message")
	}
}
