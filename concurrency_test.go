package postbox

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestConcurrentSenders(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	const senders = 8
	const perSender = 5

	var wg sync.WaitGroup
	errs := make(chan error, senders*perSender)

	for i := 0; i < senders; i++ {
		owner := fmt.Sprintf("sender-%d", i)
		mb := svc.Client(Identity{OwnerID: owner, Address: owner + "@example.com"})
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perSender; j++ {
				_, err := mb.Send(ctx, SendRequest{
					To:       []Address{{Email: "bob@example.com"}},
					Subject:  fmt.Sprintf("message %d", j),
					TextBody: "body",
				})
				if err != nil {
					errs <- err
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("send error: %v", err)
	}

	// Each account sees exactly its own messages.
	for i := 0; i < senders; i++ {
		owner := fmt.Sprintf("sender-%d", i)
		mb := svc.Client(Identity{OwnerID: owner, Address: owner + "@example.com"})
		list, err := mb.List(ctx, MessageFilter{Folder: FolderSent}, Page{})
		if err != nil {
			t.Fatalf("List for %s: %v", owner, err)
		}
		if list.Page.Total != perSender {
			t.Errorf("%s sent count: got %d, want %d", owner, list.Page.Total, perSender)
		}
	}
}

func TestConcurrentMutations(t *testing.T) {
	ctx := context.Background()
	mb, st := newTestMailbox(t)
	msg := seedInbox(t, st, "alice", "contended", time.Now().UTC())

	var wg sync.WaitGroup
	errs := make(chan error, 60)
	for i := 0; i < 20; i++ {
		wg.Add(3)
		go func() {
			defer wg.Done()
			if _, err := mb.Get(ctx, msg.ID); err != nil {
				errs <- err
			}
		}()
		go func() {
			defer wg.Done()
			if err := mb.Star(ctx, msg.ID); err != nil {
				errs <- err
			}
		}()
		go func() {
			defer wg.Done()
			if err := mb.Unstar(ctx, msg.ID); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent op error: %v", err)
	}

	if got := stored(t, st, "alice", msg.ID); !got.IsRead {
		t.Error("IsRead after concurrent gets: got false")
	}
}

func TestConcurrentDrafts(t *testing.T) {
	ctx := context.Background()
	mb, _ := newTestMailbox(t)

	const writers = 10
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		subject := fmt.Sprintf("draft %d", i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := mb.SaveDraft(ctx, "", DraftContent{Subject: subject}); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("draft error: %v", err)
	}

	drafts, err := mb.Drafts(ctx, Page{})
	if err != nil {
		t.Fatalf("Drafts: %v", err)
	}
	if drafts.Page.Total != writers {
		t.Errorf("draft count: got %d, want %d", drafts.Page.Total, writers)
	}
}
