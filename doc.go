// Package postbox provides a single-owner email store for Go.
//
// It models one person's mailbox: drafts, sending through a pluggable
// outbound deliverer, conversation threading, folders, labels, full-text
// search and trash retention. All functionality is exposed via interfaces,
// with pluggable storage backends (MongoDB, PostgreSQL, in-memory).
//
// # Basic Usage
//
//	// In-memory store and loopback deliverer for testing
//	st := memory.New()
//	dl := delivery.NewLoopback()
//
//	svc, err := postbox.New(
//	    postbox.WithStore(st),
//	    postbox.WithDeliverer(dl),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Connect initializes indexes/schema
//	if err := svc.Connect(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer svc.Close(ctx)
//
//	// Get a mailbox client for the owning account
//	mb := svc.Client(postbox.Identity{
//	    OwnerID: "user123",
//	    Address: "me@example.com",
//	})
//
//	// Compose and send
//	draft, _ := mb.SaveDraft(ctx, "", postbox.DraftContent{
//	    To:       []postbox.Address{{Email: "you@example.com"}},
//	    Subject:  "Hello",
//	    TextBody: "World",
//	})
//	msg, err := mb.Send(ctx, postbox.SendRequest{DraftID: draft.ID})
//
// # Mailbox Operations
//
//   - SaveDraft/Send: compose and finalize messages
//   - Get: retrieve a message by ID (marks unread messages read)
//   - List/Search: paginated listing and full-text search
//   - Conversation: thread views in chronological order
//   - Update/Delete: flags, folder moves, labels, trash
//   - Stream/StreamSearch: iterator-based streaming
//   - Folders/Labels: user-defined classification
//   - Stats: aggregate counts
//
// # Storage Backends
//
// The store package provides implementations for:
//   - MongoDB (store/mongo) - accepts *mongo.Client
//   - PostgreSQL (store/postgres) - accepts *sql.DB
//   - In-memory (store/memory) - for testing
//
// Attachment content lives outside the message records in an
// AttachmentFileStore (store/attachment/s3, store/attachment/gcs).
//
// # Events
//
// Postbox provides typed events for message lifecycle notifications.
// Events use the github.com/rbaliyan/event/v3 library which supports
// multiple transports (Redis Streams, NATS, Kafka, in-memory channel).
//
// To enable events, pass WithRedisClient or WithEventTransport when
// creating the service:
//
//	svc, err := postbox.New(
//	    postbox.WithStore(st),
//	    postbox.WithDeliverer(dl),
//	    postbox.WithRedisClient(redisClient),
//	)
//
// Events are registered during Connect(). Access per-service events via
// the Events() method:
//
//	events := svc.Events()
//	events.MessageSent.Subscribe(ctx, handler)
//	events.MessageRead.Subscribe(ctx, handler)
//
// Available events:
//   - DraftSaved - when a draft is created or replaced
//   - MessageSent - when a message is finalized and delivered
//   - MessageRead - when a message is marked as read
//   - MessageTrashed - when a message is soft-deleted to trash
//   - MessagePurged - when a message is permanently deleted
//   - ConversationCreated - when a send starts a fresh conversation
package postbox
