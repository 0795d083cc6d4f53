package cached

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/absurdlabs/postbox/store"
	"github.com/absurdlabs/postbox/store/memory"
)

func setupCached(t *testing.T) (*Store, *memory.Store, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	inner := memory.New()
	s := New(inner, client)
	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { s.Close(context.Background()) })
	return s, inner, mr
}

func seedMessage(t *testing.T, s store.MessageWriter, ownerID, id string) *store.Message {
	t.Helper()

	now := time.Now().UTC()
	m := &store.Message{
		ID:        id,
		OwnerID:   ownerID,
		From:      store.Address{Email: "alice@example.com"},
		To:        []store.Address{{Email: "bob@example.com"}},
		Subject:   "hello",
		TextBody:  "body",
		Folder:    store.FolderInbox,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.CreateMessage(context.Background(), m); err != nil {
		t.Fatalf("create message: %v", err)
	}
	return m
}

func TestGetMessageReadThrough(t *testing.T) {
	ctx := context.Background()
	s, inner, _ := setupCached(t)
	seedMessage(t, s, "alice", "m1")

	got, err := s.GetMessage(ctx, "alice", "m1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Subject != "hello" {
		t.Errorf("subject = %q, want %q", got.Subject, "hello")
	}

	// Mutate behind the cache. The cached copy should still be served.
	if _, err := inner.UpdateMessage(ctx, "alice", "m1", store.MessageUpdate{IsStarred: boolPtr(true)}); err != nil {
		t.Fatalf("update behind cache: %v", err)
	}
	got, err = s.GetMessage(ctx, "alice", "m1")
	if err != nil {
		t.Fatalf("get cached: %v", err)
	}
	if got.IsStarred {
		t.Error("expected stale cached copy, got refreshed record")
	}
}

func TestGetMessageExpiry(t *testing.T) {
	ctx := context.Background()
	s, inner, mr := setupCached(t)
	seedMessage(t, s, "alice", "m1")

	if _, err := s.GetMessage(ctx, "alice", "m1"); err != nil {
		t.Fatalf("get: %v", err)
	}
	if _, err := inner.UpdateMessage(ctx, "alice", "m1", store.MessageUpdate{IsStarred: boolPtr(true)}); err != nil {
		t.Fatalf("update behind cache: %v", err)
	}

	mr.FastForward(DefaultTTL + time.Second)

	got, err := s.GetMessage(ctx, "alice", "m1")
	if err != nil {
		t.Fatalf("get after expiry: %v", err)
	}
	if !got.IsStarred {
		t.Error("expected refreshed record after TTL expiry")
	}
}

func TestUpdateMessageRefreshesCache(t *testing.T) {
	ctx := context.Background()
	s, _, _ := setupCached(t)
	seedMessage(t, s, "alice", "m1")

	if _, err := s.GetMessage(ctx, "alice", "m1"); err != nil {
		t.Fatalf("prime cache: %v", err)
	}
	if _, err := s.UpdateMessage(ctx, "alice", "m1", store.MessageUpdate{IsRead: boolPtr(true)}); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := s.GetMessage(ctx, "alice", "m1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.IsRead {
		t.Error("cache not refreshed after update")
	}
}

func TestHardDeleteDropsCache(t *testing.T) {
	ctx := context.Background()
	s, _, _ := setupCached(t)
	seedMessage(t, s, "alice", "m1")

	if _, err := s.GetMessage(ctx, "alice", "m1"); err != nil {
		t.Fatalf("prime cache: %v", err)
	}
	if err := s.HardDeleteMessage(ctx, "alice", "m1"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if _, err := s.GetMessage(ctx, "alice", "m1"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestClearLabelInvalidatesOwner(t *testing.T) {
	ctx := context.Background()
	s, _, _ := setupCached(t)

	m := seedMessage(t, s, "alice", "m1")
	if _, err := s.UpdateMessage(ctx, "alice", m.ID, store.MessageUpdate{LabelIDs: labelsPtr("work")}); err != nil {
		t.Fatalf("label: %v", err)
	}
	if _, err := s.GetMessage(ctx, "alice", "m1"); err != nil {
		t.Fatalf("prime cache: %v", err)
	}

	n, err := s.ClearLabel(ctx, "alice", "work")
	if err != nil {
		t.Fatalf("clear label: %v", err)
	}
	if n != 1 {
		t.Fatalf("cleared = %d, want 1", n)
	}

	got, err := s.GetMessage(ctx, "alice", "m1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.HasLabel("work") {
		t.Error("stale cached copy served after label clear")
	}
}

func TestConversationCache(t *testing.T) {
	ctx := context.Background()
	s, _, _ := setupCached(t)

	now := time.Now().UTC()
	conv := &store.Conversation{
		ID:             "c1",
		OwnerID:        "alice",
		Subject:        "thread",
		Participants:   []store.Address{{Email: "alice@example.com"}},
		MessageCount:   1,
		LastActivityAt: now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.CreateConversation(ctx, conv); err != nil {
		t.Fatalf("create conversation: %v", err)
	}

	got, err := s.GetConversation(ctx, "alice", "c1")
	if err != nil {
		t.Fatalf("get conversation: %v", err)
	}
	if got.MessageCount != 1 {
		t.Fatalf("message count = %d, want 1", got.MessageCount)
	}

	// Join drops the cached record; the next read sees the new count.
	err = s.JoinConversation(ctx, "alice", "c1", []store.Address{{Email: "bob@example.com"}}, now.Add(time.Minute))
	if err != nil {
		t.Fatalf("join conversation: %v", err)
	}
	got, err = s.GetConversation(ctx, "alice", "c1")
	if err != nil {
		t.Fatalf("get conversation after join: %v", err)
	}
	if got.MessageCount != 2 {
		t.Errorf("message count = %d, want 2", got.MessageCount)
	}
	if len(got.Participants) != 2 {
		t.Errorf("participants = %d, want 2", len(got.Participants))
	}
}

func TestStatsDelegates(t *testing.T) {
	ctx := context.Background()
	s, _, _ := setupCached(t)
	seedMessage(t, s, "alice", "m1")

	stats, err := s.MailboxStats(ctx, "alice")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalMessages != 1 {
		t.Errorf("total = %d, want 1", stats.TotalMessages)
	}
}

// statsless hides the memory store's stats capability.
type statsless struct {
	store.Store
}

func TestStatsUnsupportedWrapped(t *testing.T) {
	ctx := context.Background()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	s := New(statsless{memory.New()}, client)
	if err := s.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { s.Close(context.Background()) })

	_, err := s.MailboxStats(ctx, "alice")
	if !errors.Is(err, store.ErrStatsUnsupported) {
		t.Fatalf("stats err = %v, want ErrStatsUnsupported", err)
	}
}

func boolPtr(v bool) *bool { return &v }

func labelsPtr(ids ...string) *[]string { return &ids }
