package postbox

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestStreamPagesThroughResults(t *testing.T) {
	ctx := context.Background()
	mb, st := newTestMailbox(t)

	now := time.Now().UTC()
	want := make(map[string]bool, 5)
	for i := 0; i < 5; i++ {
		msg := seedInbox(t, st, "alice", "stream", now.Add(time.Duration(i)*time.Second))
		want[msg.ID] = true
	}

	it, err := mb.Stream(ctx, MessageFilter{Folder: FolderInbox}, StreamOptions{BatchSize: 2})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}

	seen := make(map[string]bool)
	for {
		ok, err := it.Next(ctx)
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if !ok {
			break
		}
		msg, err := it.Message()
		if err != nil {
			t.Fatalf("Message: %v", err)
		}
		if seen[msg.ID] {
			t.Errorf("message %s yielded twice", msg.ID)
		}
		seen[msg.ID] = true
	}

	if len(seen) != len(want) {
		t.Errorf("got %d messages, want %d", len(seen), len(want))
	}
	for id := range want {
		if !seen[id] {
			t.Errorf("missing message %s", id)
		}
	}

	// Exhausted iterators stay exhausted.
	if ok, err := it.Next(ctx); ok || err != nil {
		t.Errorf("Next after done: got (%v, %v)", ok, err)
	}
}

func TestStreamEmptyResult(t *testing.T) {
	ctx := context.Background()
	mb, _ := newTestMailbox(t)

	it, err := mb.Stream(ctx, MessageFilter{Folder: FolderInbox}, StreamOptions{})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if ok, err := it.Next(ctx); ok || err != nil {
		t.Errorf("Next on empty mailbox: got (%v, %v)", ok, err)
	}
}

func TestStreamMessageBeforeNext(t *testing.T) {
	ctx := context.Background()
	mb, _ := newTestMailbox(t)

	it, err := mb.Stream(ctx, MessageFilter{}, StreamOptions{})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if _, err := it.Message(); !errors.Is(err, ErrIteratorOutOfBounds) {
		t.Errorf("Message before Next: got %v, want ErrIteratorOutOfBounds", err)
	}
}

func TestStreamUnknownFolder(t *testing.T) {
	ctx := context.Background()
	mb, _ := newTestMailbox(t)

	if _, err := mb.Stream(ctx, MessageFilter{Folder: "junk"}, StreamOptions{}); err == nil {
		t.Error("unknown folder: got nil error")
	}
}

func TestStreamSearch(t *testing.T) {
	ctx := context.Background()
	mb, st := newTestMailbox(t)

	now := time.Now().UTC()
	for i := 0; i < 3; i++ {
		seedInbox(t, st, "alice", "invoice overdue", now.Add(time.Duration(i)*time.Second))
	}
	seedInbox(t, st, "alice", "weekend plans", now)

	it, err := mb.StreamSearch(ctx, "invoice", MessageFilter{}, StreamOptions{BatchSize: 2})
	if err != nil {
		t.Fatalf("StreamSearch: %v", err)
	}
	count := 0
	for {
		ok, err := it.Next(ctx)
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if !ok {
			break
		}
		count++
	}
	if count != 3 {
		t.Errorf("got %d results, want 3", count)
	}
}
