// Package store defines storage contracts for the postbox mailbox engine.
//
// # Consistency Model
//
// Backends do not use distributed locks. Correctness relies on:
//
//   - Single-entity atomic updates: every mutation of one message or one
//     conversation is applied atomically by the backend (per-record locking
//     in memory, single-document updates in MongoDB, single-row statements
//     in PostgreSQL). Two concurrent JoinConversation calls on the same
//     conversation both take effect.
//   - Owner scoping: reads and mutations are keyed by (owner, id). An id
//     owned by another account is reported as ErrNotFound, never as a
//     permission failure.
//   - Bounded operations: backends apply per-operation timeouts; callers
//     treat a timeout as transient and retry once at most.
//
// Cross-entity operations (message create plus conversation join) are not
// globally atomic. The mailbox layer orders them so a failure leaves either
// an orphaned conversation (harmless, never collected) or a message whose
// conversation join is retried and, if still failing, surfaced as a
// reconciliation error.
package store

import (
	"context"
	"time"
)

// DraftContent is the full replacement payload for a draft. Draft updates
// replace content wholesale rather than merging field by field.
type DraftContent struct {
	To          []Address
	Cc          []Address
	Bcc         []Address
	Subject     string
	TextBody    string
	HTMLBody    string
	Attachments []Attachment
	Headers     map[string]string
}

// MessageReader provides owner-scoped message retrieval.
type MessageReader interface {
	// GetMessage returns the message without side effects. The rich body is
	// included.
	GetMessage(ctx context.Context, ownerID, id string) (*Message, error)

	// ViewMessage returns the message and, if it was unread, atomically
	// marks it read as part of the same operation. The boolean reports
	// whether this call performed the flip. Idempotent on already read
	// messages.
	ViewMessage(ctx context.Context, ownerID, id string) (*Message, bool, error)

	// FindMessages returns one page of messages matching the filter,
	// ordered by creation time descending with ties broken by id
	// descending. Rich bodies are omitted.
	FindMessages(ctx context.Context, ownerID string, filter MessageFilter, page Page) (*MessageList, error)

	// SearchMessages returns one page of full-text matches over subject and
	// text body, ordered by relevance descending with ties broken by
	// creation time descending. Rich bodies are omitted.
	SearchMessages(ctx context.Context, ownerID string, q SearchQuery) (*MessageList, error)

	// ConversationMessages returns every message in the conversation,
	// ordered by creation time ascending. Rich bodies are omitted.
	ConversationMessages(ctx context.Context, ownerID, threadID string) ([]*Message, error)
}

// MessageWriter provides owner-scoped message mutation.
type MessageWriter interface {
	// CreateMessage persists a new message. The caller assigns the id and
	// timestamps. Returns ErrDuplicateEntry if the id already exists.
	CreateMessage(ctx context.Context, m *Message) error

	// UpdateMessage applies a sparse update atomically and returns the
	// updated message. Drafts reject folder moves (ErrNotDraft mismatch
	// between operation and state).
	UpdateMessage(ctx context.Context, ownerID, id string, upd MessageUpdate) (*Message, error)

	// UpdateDraft atomically replaces the content of an existing draft and
	// returns it. Returns ErrNotFound when the id does not resolve to an
	// owner-matching record, and ErrNotDraft when it resolves to a message
	// that is no longer drafting. It never creates a record.
	UpdateDraft(ctx context.Context, ownerID, id string, content DraftContent) (*Message, error)

	// SoftDeleteMessage moves the message to trash, flags unchanged.
	// Returns ErrAlreadyInTrash if it is already there and ErrNotDraft if
	// the target is a draft (drafts are hard-deleted, never trashed).
	SoftDeleteMessage(ctx context.Context, ownerID, id string) (*Message, error)

	// HardDeleteMessage removes the record permanently regardless of folder.
	HardDeleteMessage(ctx context.Context, ownerID, id string) error

	// ClearLabel removes the label from every message carrying it.
	ClearLabel(ctx context.Context, ownerID, labelID string) (int64, error)

	// RelocateFolderMessages moves all messages referencing the custom
	// folder into the given built-in folder, returning the number moved.
	RelocateFolderMessages(ctx context.Context, ownerID, customFolderID, toFolder string) (int64, error)
}

// ConversationStore manages conversation (thread) records.
type ConversationStore interface {
	// CreateConversation persists a new conversation record.
	CreateConversation(ctx context.Context, c *Conversation) error

	// GetConversation returns the owner's conversation by id.
	GetConversation(ctx context.Context, ownerID, id string) (*Conversation, error)

	// JoinConversation atomically increments the conversation's message
	// count, raises LastActivityAt to at if later, and unions the given
	// participants into its participant set.
	JoinConversation(ctx context.Context, ownerID, id string, participants []Address, at time.Time) error
}

// FolderStore manages user-defined folders.
type FolderStore interface {
	// CreateFolder persists a folder. Names are unique per owner; a
	// duplicate name returns ErrDuplicateName.
	CreateFolder(ctx context.Context, f *Folder) error
	GetFolder(ctx context.Context, ownerID, id string) (*Folder, error)
	ListFolders(ctx context.Context, ownerID string) ([]*Folder, error)
	DeleteFolder(ctx context.Context, ownerID, id string) error
}

// LabelStore manages user-defined labels.
type LabelStore interface {
	// CreateLabel persists a label. Names are unique per owner; a duplicate
	// name returns ErrDuplicateName.
	CreateLabel(ctx context.Context, l *Label) error
	GetLabel(ctx context.Context, ownerID, id string) (*Label, error)
	ListLabels(ctx context.Context, ownerID string) ([]*Label, error)
	DeleteLabel(ctx context.Context, ownerID, id string) error
}

// MaintenanceStore provides batch cleanup operations.
type MaintenanceStore interface {
	// PurgeExpiredTrash permanently deletes up to limit trashed messages
	// whose last update is older than cutoff, across all owners. Returns
	// the number deleted.
	PurgeExpiredTrash(ctx context.Context, cutoff time.Time, limit int) (int64, error)
}

// Store is the complete storage interface for the mailbox engine.
//
// Optional capabilities are discovered by type assertion:
//   - StatsStore: single-query aggregate statistics.
type Store interface {
	// Connect establishes the backend connection.
	Connect(ctx context.Context) error
	// Close releases the backend connection.
	Close(ctx context.Context) error

	MessageReader
	MessageWriter
	ConversationStore
	FolderStore
	LabelStore
	MaintenanceStore
}
