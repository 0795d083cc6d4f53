package postbox

import (
	"context"
	"errors"
	"testing"

	"github.com/absurdlabs/postbox/store"
)

func TestSaveDraftCreate(t *testing.T) {
	ctx := context.Background()
	mb, _ := newTestMailbox(t)

	draft, err := mb.SaveDraft(ctx, "", DraftContent{Subject: "wip"})
	if err != nil {
		t.Fatalf("SaveDraft: %v", err)
	}
	if !draft.IsDraft {
		t.Error("IsDraft: got false")
	}
	if draft.Folder != FolderDrafts {
		t.Errorf("Folder: got %q, want %q", draft.Folder, FolderDrafts)
	}
	if !draft.IsRead {
		t.Error("IsRead: got false, drafts are always read")
	}
	if draft.From.Email != "alice@example.com" {
		t.Errorf("From: got %q", draft.From.Email)
	}
}

func TestSaveDraftAllowsEmptyContent(t *testing.T) {
	ctx := context.Background()
	mb, _ := newTestMailbox(t)

	if _, err := mb.SaveDraft(ctx, "", DraftContent{}); err != nil {
		t.Errorf("empty draft: got %v, want nil", err)
	}
}

func TestSaveDraftReplacesContent(t *testing.T) {
	ctx := context.Background()
	mb, _ := newTestMailbox(t)

	draft, err := mb.SaveDraft(ctx, "", DraftContent{
		To:       []Address{{Email: "bob@example.com"}},
		Subject:  "v1",
		TextBody: "first",
	})
	if err != nil {
		t.Fatalf("SaveDraft: %v", err)
	}

	updated, err := mb.SaveDraft(ctx, draft.ID, DraftContent{Subject: "v2"})
	if err != nil {
		t.Fatalf("SaveDraft update: %v", err)
	}
	if updated.ID != draft.ID {
		t.Errorf("ID changed on update: got %q, want %q", updated.ID, draft.ID)
	}
	if updated.Subject != "v2" {
		t.Errorf("Subject: got %q, want %q", updated.Subject, "v2")
	}
	// Replacement is wholesale, not a merge.
	if len(updated.To) != 0 {
		t.Errorf("To: got %d recipients, want 0", len(updated.To))
	}
	if updated.TextBody != "" {
		t.Errorf("TextBody: got %q, want empty", updated.TextBody)
	}
}

func TestSaveDraftUnknownID(t *testing.T) {
	ctx := context.Background()
	mb, _ := newTestMailbox(t)

	// A dangling draft id never falls back to creating a new draft.
	if _, err := mb.SaveDraft(ctx, "no-such-draft", DraftContent{Subject: "s"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
	drafts, err := mb.Drafts(ctx, Page{})
	if err != nil {
		t.Fatalf("Drafts: %v", err)
	}
	if drafts.Page.Total != 0 {
		t.Errorf("drafts: got %d, want 0", drafts.Page.Total)
	}
}

func TestSaveDraftRejectsNonDraft(t *testing.T) {
	ctx := context.Background()
	mb, _ := newTestMailbox(t)

	sent := sendSimple(t, ctx, mb, "sent")
	if _, err := mb.SaveDraft(ctx, sent.ID, DraftContent{Subject: "s"}); !errors.Is(err, store.ErrNotDraft) {
		t.Errorf("got %v, want ErrNotDraft", err)
	}
}

func TestDraftsListing(t *testing.T) {
	ctx := context.Background()
	mb, _ := newTestMailbox(t)

	for _, subject := range []string{"one", "two", "three"} {
		if _, err := mb.SaveDraft(ctx, "", DraftContent{Subject: subject}); err != nil {
			t.Fatalf("SaveDraft %q: %v", subject, err)
		}
	}
	sendSimple(t, ctx, mb, "not a draft")

	drafts, err := mb.Drafts(ctx, Page{})
	if err != nil {
		t.Fatalf("Drafts: %v", err)
	}
	if drafts.Page.Total != 3 {
		t.Errorf("Total: got %d, want 3", drafts.Page.Total)
	}
	for _, d := range drafts.Messages {
		if !d.IsDraft {
			t.Errorf("non-draft %q in drafts listing", d.Subject)
		}
	}
}

func TestDeleteDraft(t *testing.T) {
	ctx := context.Background()
	mb, st := newTestMailbox(t)

	draft, err := mb.SaveDraft(ctx, "", DraftContent{Subject: "doomed"})
	if err != nil {
		t.Fatalf("SaveDraft: %v", err)
	}
	if err := mb.DeleteDraft(ctx, draft.ID); err != nil {
		t.Fatalf("DeleteDraft: %v", err)
	}

	// Drafts never pass through trash.
	if _, err := st.GetMessage(ctx, "alice", draft.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("draft after delete: got %v, want ErrNotFound", err)
	}
}

func TestDeleteDraftUnknownID(t *testing.T) {
	ctx := context.Background()
	mb, _ := newTestMailbox(t)

	if err := mb.DeleteDraft(ctx, "no-such-draft"); !errors.Is(err, ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
	if err := mb.DeleteDraft(ctx, ""); !errors.Is(err, ErrInvalidID) {
		t.Errorf("empty id: got %v, want ErrInvalidID", err)
	}
}
