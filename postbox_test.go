package postbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/absurdlabs/postbox/delivery"
	"github.com/absurdlabs/postbox/store"
	"github.com/absurdlabs/postbox/store/memory"
)

func aliceIdentity() Identity {
	return Identity{OwnerID: "alice", Address: "alice@example.com", DisplayName: "Alice"}
}

// newTestService builds a connected service on the in-memory store and a
// loopback deliverer. Extra options are applied after the defaults, so
// tests can override the deliverer or add plugins.
func newTestService(t *testing.T, opts ...Option) (Service, *memory.Store) {
	t.Helper()
	st := memory.New()
	base := []Option{WithStore(st), WithDeliverer(delivery.NewLoopback())}
	svc, err := New(append(base, opts...)...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := svc.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(func() { svc.Close(context.Background()) })
	return svc, st
}

func newTestMailbox(t *testing.T, opts ...Option) (Mailbox, *memory.Store) {
	t.Helper()
	svc, st := newTestService(t, opts...)
	return svc.Client(aliceIdentity()), st
}

// seedInbox plants an inbound message directly in the store, the way a
// delivery agent would on the receiving side.
func seedInbox(t *testing.T, st store.Store, ownerID, subject string, at time.Time) *store.Message {
	t.Helper()
	msg := &store.Message{
		ID:        newID(),
		OwnerID:   ownerID,
		From:      store.Address{Email: "carol@example.com", Name: "Carol"},
		To:        []store.Address{{Email: ownerID + "@example.com"}},
		Subject:   subject,
		TextBody:  "body of " + subject,
		HTMLBody:  "<p>body of " + subject + "</p>",
		Folder:    store.FolderInbox,
		CreatedAt: at,
		UpdatedAt: at,
	}
	if err := st.CreateMessage(context.Background(), msg); err != nil {
		t.Fatalf("seed message %q: %v", subject, err)
	}
	return msg
}

func sendSimple(t *testing.T, ctx context.Context, mb Mailbox, subject string) *Message {
	t.Helper()
	msg, err := mb.Send(ctx, SendRequest{
		To:       []Address{{Email: "bob@example.com"}},
		Subject:  subject,
		TextBody: "body of " + subject,
	})
	if err != nil {
		t.Fatalf("Send %q: %v", subject, err)
	}
	return msg
}

func TestNewRequiresCollaborators(t *testing.T) {
	if _, err := New(WithDeliverer(delivery.NewLoopback())); !errors.Is(err, ErrStoreRequired) {
		t.Errorf("New without store: got %v, want ErrStoreRequired", err)
	}
	if _, err := New(WithStore(memory.New())); !errors.Is(err, ErrDelivererRequired) {
		t.Errorf("New without deliverer: got %v, want ErrDelivererRequired", err)
	}
}

func TestConnectLifecycle(t *testing.T) {
	ctx := context.Background()
	svc, err := New(WithStore(memory.New()), WithDeliverer(delivery.NewLoopback()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if svc.IsConnected() {
		t.Error("IsConnected before Connect: got true")
	}
	if err := svc.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if !svc.IsConnected() {
		t.Error("IsConnected after Connect: got false")
	}
	if err := svc.Connect(ctx); !errors.Is(err, ErrAlreadyConnected) {
		t.Errorf("second Connect: got %v, want ErrAlreadyConnected", err)
	}
	if err := svc.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if svc.IsConnected() {
		t.Error("IsConnected after Close: got true")
	}
	if err := svc.Close(ctx); err != nil {
		t.Errorf("second Close: got %v, want nil", err)
	}
}

func TestOperationsRequireConnect(t *testing.T) {
	ctx := context.Background()
	svc, err := New(WithStore(memory.New()), WithDeliverer(delivery.NewLoopback()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	mb := svc.Client(aliceIdentity())

	if _, err := mb.Get(ctx, "some-id"); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Get before Connect: got %v, want ErrNotConnected", err)
	}
	if _, err := mb.Send(ctx, SendRequest{To: []Address{{Email: "bob@example.com"}}, Subject: "s", TextBody: "b"}); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Send before Connect: got %v, want ErrNotConnected", err)
	}
	if _, err := svc.CleanupTrash(ctx); !errors.Is(err, ErrNotConnected) {
		t.Errorf("CleanupTrash before Connect: got %v, want ErrNotConnected", err)
	}
}

func TestClientRejectsInvalidIdentity(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	cases := []struct {
		name     string
		identity Identity
	}{
		{"missing owner", Identity{Address: "alice@example.com"}},
		{"missing address", Identity{OwnerID: "alice"}},
		{"malformed address", Identity{OwnerID: "alice", Address: "not-an-address"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mb := svc.Client(tc.identity)
			if _, err := mb.Get(ctx, "some-id"); !errors.Is(err, ErrInvalidIdentity) {
				t.Errorf("got %v, want ErrInvalidIdentity", err)
			}
		})
	}
}

func TestClientNormalizesAddress(t *testing.T) {
	svc, _ := newTestService(t)
	mb := svc.Client(Identity{OwnerID: "alice", Address: "  Alice@Example.COM "})
	if got := mb.Identity().Address; got != "alice@example.com" {
		t.Errorf("normalized address: got %q", got)
	}
}

// seedTrash plants a message directly in the trash folder with the given
// last-update time, simulating a message trashed in the past.
func seedTrash(t *testing.T, st store.Store, ownerID string, updatedAt time.Time) *store.Message {
	t.Helper()
	msg := &store.Message{
		ID:        newID(),
		OwnerID:   ownerID,
		From:      store.Address{Email: "carol@example.com"},
		To:        []store.Address{{Email: ownerID + "@example.com"}},
		Subject:   "trashed",
		TextBody:  "body",
		Folder:    store.FolderTrash,
		IsRead:    true,
		CreatedAt: updatedAt,
		UpdatedAt: updatedAt,
	}
	if err := st.CreateMessage(context.Background(), msg); err != nil {
		t.Fatalf("seed trash: %v", err)
	}
	return msg
}

func TestCleanupTrash(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)

	now := time.Now().UTC()
	var expired []string
	for i := 0; i < 3; i++ {
		msg := seedTrash(t, st, "alice", now.Add(-31*24*time.Hour))
		expired = append(expired, msg.ID)
	}
	recent := seedTrash(t, st, "alice", now.Add(-time.Hour))
	kept := seedInbox(t, st, "alice", "kept", now)

	result, err := svc.CleanupTrash(ctx)
	if err != nil {
		t.Fatalf("CleanupTrash: %v", err)
	}
	if result.DeletedCount != 3 {
		t.Errorf("DeletedCount: got %d, want 3", result.DeletedCount)
	}
	if result.Interrupted {
		t.Error("Interrupted: got true")
	}

	for _, id := range expired {
		if _, err := st.GetMessage(ctx, "alice", id); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("expired message %s after cleanup: got %v, want ErrNotFound", id, err)
		}
	}
	if _, err := st.GetMessage(ctx, "alice", recent.ID); err != nil {
		t.Errorf("recently trashed message gone after cleanup: %v", err)
	}
	if _, err := st.GetMessage(ctx, "alice", kept.ID); err != nil {
		t.Errorf("inbox message gone after cleanup: %v", err)
	}
}

func TestCleanupTrashHonorsRetention(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t, WithTrashRetention(48*time.Hour))

	now := time.Now().UTC()
	old := seedTrash(t, st, "alice", now.Add(-72*time.Hour))
	fresh := seedTrash(t, st, "alice", now.Add(-24*time.Hour))

	result, err := svc.CleanupTrash(ctx)
	if err != nil {
		t.Fatalf("CleanupTrash: %v", err)
	}
	if result.DeletedCount != 1 {
		t.Errorf("DeletedCount: got %d, want 1", result.DeletedCount)
	}
	if _, err := st.GetMessage(ctx, "alice", old.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expired message: got %v, want ErrNotFound", err)
	}
	if _, err := st.GetMessage(ctx, "alice", fresh.ID); err != nil {
		t.Errorf("fresh trash purged early: %v", err)
	}
}
