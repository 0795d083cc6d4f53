package store

import (
	"strings"
	"time"
)

// Built-in folder values. A message's Folder is always one of these; custom
// classification uses FolderCustom plus a CustomFolderID reference.
const (
	FolderInbox  = "inbox"
	FolderSent   = "sent"
	FolderDrafts = "drafts"
	FolderTrash  = "trash"
	FolderCustom = "custom"
)

// IsValidFolder reports whether f is a recognized folder value.
func IsValidFolder(f string) bool {
	switch f {
	case FolderInbox, FolderSent, FolderDrafts, FolderTrash, FolderCustom:
		return true
	}
	return false
}

// Address is a mail participant: an address plus an optional display name.
type Address struct {
	Email string `json:"email" bson:"email"`
	Name  string `json:"name,omitempty" bson:"name,omitempty"`
}

// Normalize lowercases the address portion. Display names are preserved.
func (a Address) Normalize() Address {
	a.Email = strings.ToLower(strings.TrimSpace(a.Email))
	return a
}

// Attachment describes a stored attachment. The Locator is an opaque
// retrieval reference understood by an AttachmentFileStore; the message
// record never carries attachment bytes.
type Attachment struct {
	Filename string `json:"filename" bson:"filename"`
	Locator  string `json:"locator" bson:"locator"`
	Size     int64  `json:"size" bson:"size"`
	MimeType string `json:"mime_type,omitempty" bson:"mime_type,omitempty"`
}

// Message is a single email-like unit owned by one account.
//
// A message is either a draft (IsDraft true, folder drafts, always read,
// content may be incomplete) or finalized (IsDraft false, at least one To
// recipient, non-empty subject and text body, a delivery ID, and a folder
// other than drafts).
type Message struct {
	ID      string `json:"id"`
	OwnerID string `json:"owner_id"`

	From Address   `json:"from"`
	To   []Address `json:"to,omitempty"`
	Cc   []Address `json:"cc,omitempty"`
	Bcc  []Address `json:"bcc,omitempty"`

	Subject     string       `json:"subject"`
	TextBody    string       `json:"text_body"`
	HTMLBody    string       `json:"html_body,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`

	// Headers carries extension headers, set at compose time and immutable
	// afterwards. Used by the content codec layer to mark structured bodies.
	Headers map[string]string `json:"headers,omitempty"`

	Folder         string   `json:"folder"`
	CustomFolderID string   `json:"custom_folder_id,omitempty"`
	LabelIDs       []string `json:"label_ids,omitempty"`

	IsRead    bool `json:"is_read"`
	IsStarred bool `json:"is_starred"`
	IsDraft   bool `json:"is_draft"`

	ThreadID  string `json:"thread_id,omitempty"`
	ReplyToID string `json:"reply_to_id,omitempty"`

	// DeliveryID is assigned by the outbound delivery collaborator when the
	// message is finalized. Empty for drafts.
	DeliveryID string `json:"delivery_id,omitempty"`

	SentAt    time.Time `json:"sent_at,omitzero"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// InTrash reports whether the message currently resides in the trash folder.
func (m *Message) InTrash() bool {
	return m.Folder == FolderTrash
}

// HasLabel reports whether the message carries the given label.
func (m *Message) HasLabel(labelID string) bool {
	for _, id := range m.LabelIDs {
		if id == labelID {
			return true
		}
	}
	return false
}

// Participants returns sender, To and Cc addresses deduplicated by exact
// address match. The first-seen display name wins on duplicates. Bcc is
// excluded: blind recipients never appear in conversation metadata.
func (m *Message) Participants() []Address {
	src := make([]Address, 0, 1+len(m.To)+len(m.Cc))
	src = append(src, m.From)
	src = append(src, m.To...)
	src = append(src, m.Cc...)

	seen := make(map[string]bool, len(src))
	out := make([]Address, 0, len(src))
	for _, a := range src {
		if a.Email == "" || seen[a.Email] {
			continue
		}
		seen[a.Email] = true
		out = append(out, a)
	}
	return out
}

// Clone returns a deep copy of the message.
func (m *Message) Clone() *Message {
	c := *m
	c.To = cloneAddresses(m.To)
	c.Cc = cloneAddresses(m.Cc)
	c.Bcc = cloneAddresses(m.Bcc)
	if m.Attachments != nil {
		c.Attachments = make([]Attachment, len(m.Attachments))
		copy(c.Attachments, m.Attachments)
	}
	if m.LabelIDs != nil {
		c.LabelIDs = make([]string, len(m.LabelIDs))
		copy(c.LabelIDs, m.LabelIDs)
	}
	if m.Headers != nil {
		c.Headers = make(map[string]string, len(m.Headers))
		for k, v := range m.Headers {
			c.Headers[k] = v
		}
	}
	return &c
}

func cloneAddresses(in []Address) []Address {
	if in == nil {
		return nil
	}
	out := make([]Address, len(in))
	copy(out, in)
	return out
}

// MessageUpdate is a sparse partial update. Nil fields are left untouched;
// non-nil fields replace the current value after validation. Moving to a
// built-in folder clears CustomFolderID; moving to FolderCustom requires it.
type MessageUpdate struct {
	IsRead         *bool
	IsStarred      *bool
	Folder         *string
	CustomFolderID *string
	LabelIDs       *[]string
}

// IsZero reports whether the update carries no changes.
func (u MessageUpdate) IsZero() bool {
	return u.IsRead == nil && u.IsStarred == nil && u.Folder == nil &&
		u.CustomFolderID == nil && u.LabelIDs == nil
}

// Validate checks the update's fields against folder invariants. Drafts
// never move between folders, so FolderDrafts is not a legal target.
func (u MessageUpdate) Validate() error {
	if u.Folder != nil {
		if !IsValidFolder(*u.Folder) || *u.Folder == FolderDrafts {
			return ErrInvalidFolder
		}
		if *u.Folder == FolderCustom && (u.CustomFolderID == nil || *u.CustomFolderID == "") {
			return ErrInvalidFolder
		}
	}
	return nil
}

// Apply merges the update into the message, returning whether anything
// changed. Folder invariants must already have been validated.
func (u MessageUpdate) Apply(m *Message, now time.Time) bool {
	changed := false
	if u.IsRead != nil && m.IsRead != *u.IsRead {
		m.IsRead = *u.IsRead
		changed = true
	}
	if u.IsStarred != nil && m.IsStarred != *u.IsStarred {
		m.IsStarred = *u.IsStarred
		changed = true
	}
	if u.Folder != nil && (m.Folder != *u.Folder || *u.Folder == FolderCustom) {
		m.Folder = *u.Folder
		if *u.Folder != FolderCustom {
			m.CustomFolderID = ""
		}
		changed = true
	}
	if u.CustomFolderID != nil && m.Folder == FolderCustom && m.CustomFolderID != *u.CustomFolderID {
		m.CustomFolderID = *u.CustomFolderID
		changed = true
	}
	if u.LabelIDs != nil {
		m.LabelIDs = append([]string(nil), (*u.LabelIDs)...)
		changed = true
	}
	if changed {
		m.UpdatedAt = now
	}
	return changed
}
