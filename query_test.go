package postbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/absurdlabs/postbox/store"
)

func TestGetMarksRead(t *testing.T) {
	ctx := context.Background()
	mb, st := newTestMailbox(t)
	seeded := seedInbox(t, st, "alice", "unread", time.Now().UTC())

	msg, err := mb.Get(ctx, seeded.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !msg.IsRead {
		t.Error("IsRead after Get: got false")
	}

	// Read-on-view persists; a second Get returns the same state.
	stored, err := st.GetMessage(ctx, "alice", seeded.ID)
	if err != nil {
		t.Fatalf("GetMessage: %v", err)
	}
	if !stored.IsRead {
		t.Error("stored IsRead: got false")
	}
	again, err := mb.Get(ctx, seeded.ID)
	if err != nil {
		t.Fatalf("second Get: %v", err)
	}
	if !again.IsRead || again.UpdatedAt != stored.UpdatedAt {
		t.Error("second Get mutated the message")
	}
}

func TestGetErrors(t *testing.T) {
	ctx := context.Background()
	mb, _ := newTestMailbox(t)

	if _, err := mb.Get(ctx, "no-such-message"); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown id: got %v, want ErrNotFound", err)
	}
	if _, err := mb.Get(ctx, ""); !errors.Is(err, ErrInvalidID) {
		t.Errorf("empty id: got %v, want ErrInvalidID", err)
	}
}

func TestGetScopedToOwner(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)
	other := seedInbox(t, st, "mallory", "secret", time.Now().UTC())

	mb := svc.Client(aliceIdentity())
	if _, err := mb.Get(ctx, other.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("cross-owner Get: got %v, want ErrNotFound", err)
	}
}

func TestListDefaultsToInbox(t *testing.T) {
	ctx := context.Background()
	mb, st := newTestMailbox(t)

	now := time.Now().UTC()
	for i := 0; i < 3; i++ {
		seedInbox(t, st, "alice", "inbox", now.Add(time.Duration(i)*time.Second))
	}
	sendSimple(t, ctx, mb, "in sent, not inbox")

	list, err := mb.List(ctx, MessageFilter{}, Page{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if list.Page.Total != 3 {
		t.Errorf("Total: got %d, want 3", list.Page.Total)
	}
	for _, m := range list.Messages {
		if m.Folder != FolderInbox {
			t.Errorf("message %s in folder %q", m.ID, m.Folder)
		}
	}
}

func TestListNewestFirst(t *testing.T) {
	ctx := context.Background()
	mb, st := newTestMailbox(t)

	now := time.Now().UTC()
	oldest := seedInbox(t, st, "alice", "oldest", now.Add(-2*time.Hour))
	middle := seedInbox(t, st, "alice", "middle", now.Add(-time.Hour))
	newest := seedInbox(t, st, "alice", "newest", now)

	list, err := mb.List(ctx, MessageFilter{}, Page{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	want := []string{newest.ID, middle.ID, oldest.ID}
	if len(list.Messages) != len(want) {
		t.Fatalf("got %d messages, want %d", len(list.Messages), len(want))
	}
	for i, id := range want {
		if list.Messages[i].ID != id {
			t.Errorf("position %d: got %s, want %s", i, list.Messages[i].ID, id)
		}
	}
}

func TestListPagination(t *testing.T) {
	ctx := context.Background()
	mb, st := newTestMailbox(t)

	now := time.Now().UTC()
	for i := 0; i < 5; i++ {
		seedInbox(t, st, "alice", "msg", now.Add(time.Duration(i)*time.Second))
	}

	list, err := mb.List(ctx, MessageFilter{}, Page{Number: 2, Limit: 2})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list.Messages) != 2 {
		t.Errorf("page 2 size: got %d, want 2", len(list.Messages))
	}
	if list.Page.Total != 5 {
		t.Errorf("Total: got %d, want 5", list.Page.Total)
	}
	if list.Page.Pages != 3 {
		t.Errorf("Pages: got %d, want 3", list.Page.Pages)
	}
	if !list.Page.HasNext || !list.Page.HasPrev {
		t.Error("page 2 of 3 should have both neighbors")
	}

	// Out-of-range page is empty, not an error.
	empty, err := mb.List(ctx, MessageFilter{}, Page{Number: 9, Limit: 2})
	if err != nil {
		t.Fatalf("List page 9: %v", err)
	}
	if len(empty.Messages) != 0 {
		t.Errorf("page 9 size: got %d, want 0", len(empty.Messages))
	}
}

func TestListPaginationBoundary(t *testing.T) {
	ctx := context.Background()
	mb, st := newTestMailbox(t)

	now := time.Now().UTC()
	for i := 0; i < 20; i++ {
		seedInbox(t, st, "alice", "msg", now.Add(time.Duration(i)*time.Second))
	}

	// Exactly one full page: no successor.
	list, err := mb.List(ctx, MessageFilter{}, Page{Number: 1, Limit: 20})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list.Messages) != 20 {
		t.Fatalf("page size: got %d, want 20", len(list.Messages))
	}
	if list.Page.Total != 20 || list.Page.Pages != 1 {
		t.Errorf("Total/Pages: got %d/%d, want 20/1", list.Page.Total, list.Page.Pages)
	}
	if list.Page.HasNext {
		t.Error("full single page should not report a next page")
	}

	// One past the page boundary spills onto a second page.
	seedInbox(t, st, "alice", "spill", now.Add(time.Minute))

	list, err = mb.List(ctx, MessageFilter{}, Page{Number: 1, Limit: 20})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if list.Page.Total != 21 || list.Page.Pages != 2 {
		t.Errorf("Total/Pages: got %d/%d, want 21/2", list.Page.Total, list.Page.Pages)
	}
	if !list.Page.HasNext {
		t.Error("21 items at limit 20 should report a next page")
	}

	second, err := mb.List(ctx, MessageFilter{}, Page{Number: 2, Limit: 20})
	if err != nil {
		t.Fatalf("List page 2: %v", err)
	}
	if len(second.Messages) != 1 {
		t.Errorf("page 2 size: got %d, want 1", len(second.Messages))
	}
	if !second.Page.HasPrev || second.Page.HasNext {
		t.Error("final page should have only a previous neighbor")
	}
}

func TestListFilters(t *testing.T) {
	ctx := context.Background()
	mb, st := newTestMailbox(t)

	now := time.Now().UTC()
	starred := seedInbox(t, st, "alice", "starred", now)
	if err := mb.Star(ctx, starred.ID); err != nil {
		t.Fatalf("Star: %v", err)
	}
	read := seedInbox(t, st, "alice", "read", now.Add(time.Second))
	if err := mb.MarkRead(ctx, read.ID); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	seedInbox(t, st, "alice", "plain", now.Add(2*time.Second))

	isTrue := true
	isFalse := false

	list, err := mb.List(ctx, MessageFilter{IsStarred: &isTrue}, Page{})
	if err != nil {
		t.Fatalf("List starred: %v", err)
	}
	if list.Page.Total != 1 || list.Messages[0].ID != starred.ID {
		t.Errorf("starred filter: got %d messages", list.Page.Total)
	}

	list, err = mb.List(ctx, MessageFilter{IsRead: &isFalse}, Page{})
	if err != nil {
		t.Fatalf("List unread: %v", err)
	}
	if list.Page.Total != 2 {
		t.Errorf("unread filter: got %d messages, want 2", list.Page.Total)
	}

	list, err = mb.List(ctx, MessageFilter{AddressContains: "carol"}, Page{})
	if err != nil {
		t.Fatalf("List by address: %v", err)
	}
	if list.Page.Total != 3 {
		t.Errorf("address filter: got %d messages, want 3", list.Page.Total)
	}
}

func TestListUnknownFolder(t *testing.T) {
	ctx := context.Background()
	mb, _ := newTestMailbox(t)

	if _, err := mb.List(ctx, MessageFilter{Folder: "junk"}, Page{}); err == nil {
		t.Error("unknown folder: got nil error")
	} else if _, ok := IsValidationError(err); !ok {
		t.Errorf("unknown folder: got %v, want validation error", err)
	}
}

func TestSearch(t *testing.T) {
	ctx := context.Background()
	mb, st := newTestMailbox(t)

	now := time.Now().UTC()
	match := seedInbox(t, st, "alice", "quarterly budget review", now)
	seedInbox(t, st, "alice", "lunch plans", now.Add(time.Second))

	list, err := mb.Search(ctx, "budget", MessageFilter{}, Page{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if list.Page.Total != 1 || list.Messages[0].ID != match.ID {
		t.Errorf("got %d results", list.Page.Total)
	}
}

func TestSearchEmptyQuery(t *testing.T) {
	ctx := context.Background()
	mb, _ := newTestMailbox(t)

	for _, q := range []string{"", "   "} {
		if _, err := mb.Search(ctx, q, MessageFilter{}, Page{}); !errors.Is(err, ErrEmptySearchQuery) {
			t.Errorf("query %q: got %v, want ErrEmptySearchQuery", q, err)
		}
	}
}

func TestSearchExcludesDrafts(t *testing.T) {
	ctx := context.Background()
	mb, st := newTestMailbox(t)

	seedInbox(t, st, "alice", "project update", time.Now().UTC())
	if _, err := mb.SaveDraft(ctx, "", DraftContent{Subject: "project draft"}); err != nil {
		t.Fatalf("SaveDraft: %v", err)
	}

	list, err := mb.Search(ctx, "project", MessageFilter{}, Page{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if list.Page.Total != 1 {
		t.Errorf("got %d results, want 1 (drafts excluded)", list.Page.Total)
	}
}

func TestConversationUnknownThread(t *testing.T) {
	ctx := context.Background()
	mb, _ := newTestMailbox(t)

	if _, err := mb.Conversation(ctx, "no-such-thread"); !errors.Is(err, ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
	if _, err := mb.Conversation(ctx, ""); !errors.Is(err, ErrInvalidID) {
		t.Errorf("empty id: got %v, want ErrInvalidID", err)
	}
}

func TestConversationExcludesDrafts(t *testing.T) {
	ctx := context.Background()
	mb, st := newTestMailbox(t)

	sent := sendSimple(t, ctx, mb, "hello")

	// A draft carrying a thread id must never surface in the thread view.
	now := time.Now().UTC()
	draft := &store.Message{
		ID:        "draft-in-thread",
		OwnerID:   "alice",
		From:      store.Address{Email: "alice@example.com"},
		Subject:   "wip reply",
		ThreadID:  sent.ThreadID,
		Folder:    store.FolderDrafts,
		IsDraft:   true,
		IsRead:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := st.CreateMessage(ctx, draft); err != nil {
		t.Fatalf("CreateMessage: %v", err)
	}

	view, err := mb.Conversation(ctx, sent.ThreadID)
	if err != nil {
		t.Fatalf("Conversation: %v", err)
	}
	if len(view.Messages) != 1 {
		t.Fatalf("got %d messages, want 1", len(view.Messages))
	}
	if view.Messages[0].ID != sent.ID {
		t.Errorf("got message %s, want %s", view.Messages[0].ID, sent.ID)
	}
}

func TestConversationParticipants(t *testing.T) {
	ctx := context.Background()
	mb, _ := newTestMailbox(t)

	first := sendSimple(t, ctx, mb, "first")
	if _, err := mb.Send(ctx, SendRequest{
		To:       []Address{{Email: "dave@example.com"}},
		Subject:  "second",
		TextBody: "body",
		ThreadID: first.ThreadID,
	}); err != nil {
		t.Fatalf("Send: %v", err)
	}

	view, err := mb.Conversation(ctx, first.ThreadID)
	if err != nil {
		t.Fatalf("Conversation: %v", err)
	}
	emails := make(map[string]bool)
	for _, p := range view.Conversation.Participants {
		if emails[p.Email] {
			t.Errorf("duplicate participant %q", p.Email)
		}
		emails[p.Email] = true
	}
	for _, want := range []string{"alice@example.com", "bob@example.com", "dave@example.com"} {
		if !emails[want] {
			t.Errorf("missing participant %q", want)
		}
	}
}

// stored uses the raw store to observe state without the read-on-view
// side effect of Get.
func stored(t *testing.T, st store.Store, ownerID, id string) *store.Message {
	t.Helper()
	msg, err := st.GetMessage(context.Background(), ownerID, id)
	if err != nil {
		t.Fatalf("GetMessage %s: %v", id, err)
	}
	return msg
}
