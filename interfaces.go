package postbox

import (
	"context"
	"io"

	"github.com/absurdlabs/postbox/store"
)

// Type aliases for commonly used store types.
// These allow users to work with the postbox package without importing store directly.
type (
	Address       = store.Address
	Attachment    = store.Attachment
	Message       = store.Message
	MessageList   = store.MessageList
	MessageFilter = store.MessageFilter
	MessageUpdate = store.MessageUpdate
	DraftContent  = store.DraftContent
	Conversation  = store.Conversation
	Folder        = store.Folder
	Label         = store.Label
	Page          = store.Page
	PageInfo      = store.PageInfo
	MailboxStats  = store.MailboxStats
)

// Re-exported folder constants.
const (
	FolderInbox  = store.FolderInbox
	FolderSent   = store.FolderSent
	FolderDrafts = store.FolderDrafts
	FolderTrash  = store.FolderTrash
	FolderCustom = store.FolderCustom
)

// Identity is the authenticated owner on whose behalf a client operates.
// The engine trusts it as already-authenticated input and performs no
// credential checks itself.
type Identity struct {
	// OwnerID scopes every read and mutation.
	OwnerID string
	// Address is the owner's own mail address, used as the sender of
	// drafts and sent messages.
	Address string
	// DisplayName is the optional display name paired with Address.
	DisplayName string
}

// From returns the identity as a sender address.
func (id Identity) From() Address {
	return Address{Email: id.Address, Name: id.DisplayName}
}

// Service manages the mailbox engine (server-side).
// It handles connections to storage and creates per-account clients.
type Service interface {
	// IsConnected returns true if the service is connected and ready.
	IsConnected() bool

	// Connect establishes connections to storage backends.
	Connect(ctx context.Context) error
	// Close closes all connections, draining in-flight sends first.
	Close(ctx context.Context) error
	// Client returns a mailbox client for the given identity.
	// The returned client shares the service's connections. Connection
	// state is checked lazily on each operation; if the service is not
	// connected, operations return ErrNotConnected.
	Client(identity Identity) Mailbox
	// CleanupTrash permanently deletes messages that have been in trash
	// longer than the configured retention period. Call this periodically
	// using your application's scheduler.
	CleanupTrash(ctx context.Context) (*CleanupTrashResult, error)
	// Events returns per-service event instances for subscribing and publishing.
	Events() *ServiceEvents
}

// MessageReader provides single message retrieval with read-on-view:
// fetching an unread message marks it read in the same operation.
type MessageReader interface {
	Get(ctx context.Context, messageID string) (*Message, error)
}

// MessageLister provides filtered, paginated message listing.
type MessageLister interface {
	List(ctx context.Context, filter MessageFilter, page Page) (*MessageList, error)
}

// MessageSearcher provides full-text message search.
type MessageSearcher interface {
	Search(ctx context.Context, query string, filter MessageFilter, page Page) (*MessageList, error)
}

// ConversationView is a conversation record plus its member messages in
// chronological order.
type ConversationView struct {
	Conversation *Conversation `json:"conversation"`
	Messages     []*Message    `json:"messages"`
}

// ConversationReader provides access to conversation threads.
type ConversationReader interface {
	// Conversation returns the thread record and its messages ordered by
	// creation time ascending.
	Conversation(ctx context.Context, threadID string) (*ConversationView, error)
}

// DraftWriter provides draft lifecycle operations.
type DraftWriter interface {
	// SaveDraft creates a draft (empty draftID) or fully replaces the
	// content of an existing one. A draftID that does not resolve to an
	// owner-matching draft is ErrNotFound; it never creates a fallback.
	SaveDraft(ctx context.Context, draftID string, content DraftContent) (*Message, error)
	// Drafts lists the account's drafts, newest first.
	Drafts(ctx context.Context, page Page) (*MessageList, error)
	// DeleteDraft removes a draft permanently. Drafts never pass through
	// trash.
	DeleteDraft(ctx context.Context, draftID string) error
}

// SendRequest contains the data needed to finalize and send a message.
// When DraftID is set, envelope and content come from the stored draft and
// the payload fields are ignored; the draft record is removed after a
// successful send.
type SendRequest struct {
	DraftID string

	To  []Address
	Cc  []Address
	Bcc []Address

	Subject     string
	TextBody    string
	HTMLBody    string
	Attachments []Attachment
	Headers     map[string]string

	// ThreadID explicitly joins an existing conversation; ReplyToID joins
	// the conversation of the referenced message. Dangling references fall
	// back to a fresh conversation rather than failing the send.
	ThreadID  string
	ReplyToID string
}

// MessageSender finalizes messages through the outbound deliverer.
type MessageSender interface {
	Send(ctx context.Context, req SendRequest) (*Message, error)
}

// MessageMutator provides mutation operations on messages by ID.
type MessageMutator interface {
	// Update applies a sparse, field-optional update.
	Update(ctx context.Context, messageID string, upd MessageUpdate) (*Message, error)
	MarkRead(ctx context.Context, messageID string) error
	MarkUnread(ctx context.Context, messageID string) error
	Star(ctx context.Context, messageID string) error
	Unstar(ctx context.Context, messageID string) error
	// MoveToFolder moves the message to a built-in folder or, given a
	// custom folder id, to that user-defined folder.
	MoveToFolder(ctx context.Context, messageID, folder, customFolderID string) error
	AddLabel(ctx context.Context, messageID, labelID string) error
	RemoveLabel(ctx context.Context, messageID, labelID string) error
	// Delete soft-deletes to trash; a message already in trash is
	// escalated to a permanent delete.
	Delete(ctx context.Context, messageID string) error
	// DeletePermanent removes the record regardless of folder. Terminal.
	DeletePermanent(ctx context.Context, messageID string) error
}

// BulkMutator applies mutations to many messages at once. Items fail
// independently; partial failure is reported per item in the result.
type BulkMutator interface {
	BulkUpdate(ctx context.Context, messageIDs []string, upd MessageUpdate) (*BulkResult, error)
	BulkDelete(ctx context.Context, messageIDs []string) (*BulkResult, error)
}

// MessageStreamer provides pull-based iteration for large result sets.
type MessageStreamer interface {
	Stream(ctx context.Context, filter MessageFilter, opts StreamOptions) (MessageIterator, error)
	StreamSearch(ctx context.Context, query string, filter MessageFilter, opts StreamOptions) (MessageIterator, error)
}

// FolderManager manages user-defined folders.
type FolderManager interface {
	Folders(ctx context.Context) ([]*Folder, error)
	CreateFolder(ctx context.Context, name, color, icon string) (*Folder, error)
	// DeleteFolder removes the folder and relocates its messages to the
	// inbox so no dangling references remain.
	DeleteFolder(ctx context.Context, folderID string) error
}

// LabelManager manages user-defined labels.
type LabelManager interface {
	Labels(ctx context.Context) ([]*Label, error)
	CreateLabel(ctx context.Context, name, color string) (*Label, error)
	// DeleteLabel removes the label and strips it from every message.
	DeleteLabel(ctx context.Context, labelID string) error
}

// StatsReader provides aggregate mailbox statistics.
type StatsReader interface {
	Stats(ctx context.Context) (*MailboxStats, error)
}

// AttachmentClient uploads and retrieves attachment content through the
// configured attachment file store.
type AttachmentClient interface {
	// UploadAttachment stores content and returns the descriptor to embed
	// in a draft or send request.
	UploadAttachment(ctx context.Context, filename, mimeType string, r io.Reader) (Attachment, error)
	// OpenAttachment returns a reader for a previously stored attachment.
	OpenAttachment(ctx context.Context, att Attachment) (io.ReadCloser, error)
}

// Mailbox provides mailbox operations for one owning account.
//
// Composed of focused client interfaces:
//   - MessageReader / MessageLister / MessageSearcher: retrieval
//   - ConversationReader: thread views
//   - DraftWriter / MessageSender: compose and finalize
//   - MessageMutator: flag, folder, label and delete transitions
//   - FolderManager / LabelManager: user-defined classification
//   - StatsReader: aggregates
//   - AttachmentClient: attachment blobs
type Mailbox interface {
	Identity() Identity

	MessageReader
	MessageLister
	MessageSearcher
	ConversationReader
	DraftWriter
	MessageSender
	MessageMutator
	BulkMutator
	MessageStreamer
	FolderManager
	LabelManager
	StatsReader
	AttachmentClient
}
