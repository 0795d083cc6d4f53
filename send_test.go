package postbox

import (
	"context"
	"errors"
	"testing"

	"github.com/absurdlabs/postbox/delivery"
	"github.com/absurdlabs/postbox/store"
)

func TestSendFinalizesMessage(t *testing.T) {
	ctx := context.Background()
	mb, _ := newTestMailbox(t)

	msg := sendSimple(t, ctx, mb, "hello")

	if msg.Folder != FolderSent {
		t.Errorf("Folder: got %q, want %q", msg.Folder, FolderSent)
	}
	if !msg.IsRead {
		t.Error("IsRead: got false, want true")
	}
	if msg.IsDraft {
		t.Error("IsDraft: got true")
	}
	if msg.DeliveryID == "" {
		t.Error("DeliveryID: got empty")
	}
	if msg.SentAt.IsZero() {
		t.Error("SentAt: not set")
	}
	if msg.From.Email != "alice@example.com" {
		t.Errorf("From: got %q", msg.From.Email)
	}
	if msg.HTMLBody != msg.TextBody {
		t.Errorf("HTMLBody not defaulted to text body: got %q", msg.HTMLBody)
	}
}

func TestSendCreatesConversation(t *testing.T) {
	ctx := context.Background()
	mb, _ := newTestMailbox(t)

	msg := sendSimple(t, ctx, mb, "fresh thread")
	if msg.ThreadID == "" {
		t.Fatal("ThreadID: got empty")
	}

	view, err := mb.Conversation(ctx, msg.ThreadID)
	if err != nil {
		t.Fatalf("Conversation: %v", err)
	}
	if view.Conversation.MessageCount != 1 {
		t.Errorf("MessageCount: got %d, want 1", view.Conversation.MessageCount)
	}
	if len(view.Messages) != 1 || view.Messages[0].ID != msg.ID {
		t.Errorf("Messages: got %d entries", len(view.Messages))
	}
}

func TestSendJoinsExplicitThread(t *testing.T) {
	ctx := context.Background()
	mb, _ := newTestMailbox(t)

	first := sendSimple(t, ctx, mb, "first")
	second, err := mb.Send(ctx, SendRequest{
		To:       []Address{{Email: "bob@example.com"}},
		Subject:  "second",
		TextBody: "body",
		ThreadID: first.ThreadID,
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if second.ThreadID != first.ThreadID {
		t.Fatalf("ThreadID: got %q, want %q", second.ThreadID, first.ThreadID)
	}

	view, err := mb.Conversation(ctx, first.ThreadID)
	if err != nil {
		t.Fatalf("Conversation: %v", err)
	}
	if view.Conversation.MessageCount != 2 {
		t.Errorf("MessageCount: got %d, want 2", view.Conversation.MessageCount)
	}
	if len(view.Messages) != 2 {
		t.Fatalf("Messages: got %d, want 2", len(view.Messages))
	}
	// Chronological order, oldest first.
	if view.Messages[0].ID != first.ID || view.Messages[1].ID != second.ID {
		t.Error("conversation messages out of order")
	}
}

func TestSendReplyJoinsParentThread(t *testing.T) {
	ctx := context.Background()
	mb, _ := newTestMailbox(t)

	parent := sendSimple(t, ctx, mb, "parent")
	reply, err := mb.Send(ctx, SendRequest{
		To:        []Address{{Email: "bob@example.com"}},
		Subject:   "re: parent",
		TextBody:  "body",
		ReplyToID: parent.ID,
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if reply.ThreadID != parent.ThreadID {
		t.Errorf("ThreadID: got %q, want %q", reply.ThreadID, parent.ThreadID)
	}
}

func TestSendDanglingReferencesFallBack(t *testing.T) {
	ctx := context.Background()
	mb, _ := newTestMailbox(t)

	t.Run("thread id", func(t *testing.T) {
		msg, err := mb.Send(ctx, SendRequest{
			To:       []Address{{Email: "bob@example.com"}},
			Subject:  "dangling thread",
			TextBody: "body",
			ThreadID: "no-such-thread",
		})
		if err != nil {
			t.Fatalf("Send: %v", err)
		}
		if msg.ThreadID == "" || msg.ThreadID == "no-such-thread" {
			t.Errorf("ThreadID: got %q, want fresh conversation", msg.ThreadID)
		}
	})

	t.Run("reply to id", func(t *testing.T) {
		msg, err := mb.Send(ctx, SendRequest{
			To:        []Address{{Email: "bob@example.com"}},
			Subject:   "dangling reply",
			TextBody:  "body",
			ReplyToID: "no-such-message",
		})
		if err != nil {
			t.Fatalf("Send: %v", err)
		}
		if msg.ThreadID == "" {
			t.Error("ThreadID: got empty, want fresh conversation")
		}
	})
}

func TestSendValidation(t *testing.T) {
	ctx := context.Background()
	mb, _ := newTestMailbox(t, WithMaxRecipients(2), WithMaxSubjectLength(16))

	cases := []struct {
		name string
		req  SendRequest
	}{
		{"no recipients", SendRequest{Subject: "s", TextBody: "b"}},
		{"empty subject", SendRequest{To: []Address{{Email: "bob@example.com"}}, TextBody: "b"}},
		{"empty body", SendRequest{To: []Address{{Email: "bob@example.com"}}, Subject: "s"}},
		{"malformed recipient", SendRequest{To: []Address{{Email: "nope"}}, Subject: "s", TextBody: "b"}},
		{"too many recipients", SendRequest{
			To:       []Address{{Email: "a@example.com"}, {Email: "b@example.com"}},
			Cc:       []Address{{Email: "c@example.com"}},
			Subject:  "s",
			TextBody: "b",
		}},
		{"subject too long", SendRequest{
			To:       []Address{{Email: "bob@example.com"}},
			Subject:  "this subject is far too long",
			TextBody: "b",
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := mb.Send(ctx, tc.req)
			if _, ok := IsValidationError(err); !ok {
				t.Errorf("got %v, want validation error", err)
			}
		})
	}
}

func TestSendDeliveryFailure(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("smtp is down")
	mb, st := newTestMailbox(t, WithDeliverer(delivery.NewLoopback(delivery.WithFailure(boom))))

	_, err := mb.Send(ctx, SendRequest{
		To:       []Address{{Email: "bob@example.com"}},
		Subject:  "doomed",
		TextBody: "body",
	})
	if !errors.Is(err, ErrDeliveryFailed) {
		t.Fatalf("got %v, want ErrDeliveryFailed", err)
	}
	var de *DeliveryError
	if !errors.As(err, &de) {
		t.Fatalf("got %T, want *DeliveryError", err)
	}

	// Nothing was persisted.
	list, err := st.FindMessages(ctx, "alice", MessageFilter{Folder: FolderSent}, Page{})
	if err != nil {
		t.Fatalf("FindMessages: %v", err)
	}
	if list.Page.Total != 0 {
		t.Errorf("sent messages after failed delivery: got %d, want 0", list.Page.Total)
	}
}

func TestSendFromDraft(t *testing.T) {
	ctx := context.Background()
	mb, _ := newTestMailbox(t)

	draft, err := mb.SaveDraft(ctx, "", DraftContent{
		To:       []Address{{Email: "bob@example.com"}},
		Subject:  "from draft",
		TextBody: "draft body",
	})
	if err != nil {
		t.Fatalf("SaveDraft: %v", err)
	}

	msg, err := mb.Send(ctx, SendRequest{
		DraftID: draft.ID,
		// Payload fields are ignored when DraftID is set.
		Subject: "ignored",
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if msg.Subject != "from draft" || msg.TextBody != "draft body" {
		t.Errorf("sent content: got subject %q body %q", msg.Subject, msg.TextBody)
	}

	// The draft is gone after a successful send.
	drafts, err := mb.Drafts(ctx, Page{})
	if err != nil {
		t.Fatalf("Drafts: %v", err)
	}
	if drafts.Page.Total != 0 {
		t.Errorf("drafts after send: got %d, want 0", drafts.Page.Total)
	}
}

func TestSendRejectsNonDraftID(t *testing.T) {
	ctx := context.Background()
	mb, _ := newTestMailbox(t)

	sent := sendSimple(t, ctx, mb, "already sent")
	_, err := mb.Send(ctx, SendRequest{DraftID: sent.ID})
	if !errors.Is(err, store.ErrNotDraft) {
		t.Errorf("got %v, want ErrNotDraft", err)
	}
}

func TestSendUnknownDraftID(t *testing.T) {
	ctx := context.Background()
	mb, _ := newTestMailbox(t)

	_, err := mb.Send(ctx, SendRequest{DraftID: "no-such-draft"})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

// testResolver is a fixed-map RecipientResolver for exercising display
// name resolution in the send pipeline.
type testResolver struct {
	names map[string]string
}

func (r *testResolver) Resolve(_ context.Context, email string) (*Recipient, error) {
	name, ok := r.names[email]
	if !ok {
		return nil, ErrRecipientNotFound
	}
	return &Recipient{Email: email, Name: name}, nil
}

func (r *testResolver) ResolveBatch(_ context.Context, emails []string) ([]*Recipient, error) {
	out := make([]*Recipient, len(emails))
	for i, e := range emails {
		if name, ok := r.names[e]; ok {
			out[i] = &Recipient{Email: e, Name: name}
		}
	}
	return out, nil
}

func TestSendResolvesDisplayNames(t *testing.T) {
	ctx := context.Background()
	mb, _ := newTestMailbox(t, WithRecipientResolver(&testResolver{
		names: map[string]string{"bob@example.com": "Bob Builder"},
	}))

	msg, err := mb.Send(ctx, SendRequest{
		To:       []Address{{Email: "bob@example.com"}, {Email: "unknown@example.com"}},
		Subject:  "hello",
		TextBody: "body",
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if msg.To[0].Name != "Bob Builder" {
		t.Errorf("resolved name: got %q, want %q", msg.To[0].Name, "Bob Builder")
	}
	if msg.To[1].Name != "" {
		t.Errorf("unknown recipient name: got %q, want empty", msg.To[1].Name)
	}
}
