package store

import (
	"strings"
	"time"
)

// Pagination bounds. Page limits are clamped to [1, MaxPageLimit].
const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// Page is a 1-indexed pagination request.
type Page struct {
	Number int
	Limit  int
}

// Normalize clamps the page number to >= 1 and the limit to
// [1, MaxPageLimit], substituting DefaultPageLimit when unset.
func (p Page) Normalize() Page {
	if p.Number < 1 {
		p.Number = 1
	}
	if p.Limit <= 0 {
		p.Limit = DefaultPageLimit
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
	return p
}

// Offset returns the number of items preceding this page.
func (p Page) Offset() int {
	return (p.Number - 1) * p.Limit
}

// PageInfo describes the position of a result page within the full result set.
type PageInfo struct {
	Page    int   `json:"page"`
	Limit   int   `json:"limit"`
	Total   int64 `json:"total"`
	Pages   int   `json:"pages"`
	HasNext bool  `json:"has_next"`
	HasPrev bool  `json:"has_prev"`
}

// NewPageInfo computes page metadata for a normalized page and total count.
func NewPageInfo(p Page, total int64) PageInfo {
	pages := int((total + int64(p.Limit) - 1) / int64(p.Limit))
	return PageInfo{
		Page:    p.Number,
		Limit:   p.Limit,
		Total:   total,
		Pages:   pages,
		HasNext: p.Number < pages,
		HasPrev: p.Number > 1 && total > 0,
	}
}

// MessageList is one page of messages plus pagination metadata.
// List and search results omit each message's rich body.
type MessageList struct {
	Messages []*Message `json:"messages"`
	Page     PageInfo   `json:"page"`
}

// MessageFilter narrows message queries. Zero values mean "no constraint";
// the tri-state booleans use nil for unconstrained.
type MessageFilter struct {
	// Folder matches the message's folder exactly. For FolderCustom,
	// CustomFolderID narrows to one user-defined folder when set.
	Folder         string
	CustomFolderID string

	// LabelID requires the message to carry the label.
	LabelID string

	IsRead    *bool
	IsStarred *bool

	// DateFrom and DateTo bound CreatedAt inclusively. Zero time means open.
	DateFrom time.Time
	DateTo   time.Time

	// AddressContains matches case-insensitively against the sender and all
	// recipient addresses.
	AddressContains string

	// HasAttachments constrains attachment presence: true requires at least
	// one attachment, false requires none.
	HasAttachments *bool

	// ThreadID narrows to one conversation.
	ThreadID string

	// IncludeDrafts widens the result to draft messages. Listing the drafts
	// folder implies it.
	IncludeDrafts bool
}

// Matches reports whether the message satisfies every set constraint.
// Backends with native query capability (SQL, Mongo) compile the filter
// instead; this is the reference semantics they must agree with.
func (f MessageFilter) Matches(m *Message) bool {
	if f.Folder != "" {
		if m.Folder != f.Folder {
			return false
		}
		if f.Folder == FolderCustom && f.CustomFolderID != "" && m.CustomFolderID != f.CustomFolderID {
			return false
		}
	}
	if f.LabelID != "" && !m.HasLabel(f.LabelID) {
		return false
	}
	if f.IsRead != nil && m.IsRead != *f.IsRead {
		return false
	}
	if f.IsStarred != nil && m.IsStarred != *f.IsStarred {
		return false
	}
	if !f.DateFrom.IsZero() && m.CreatedAt.Before(f.DateFrom) {
		return false
	}
	if !f.DateTo.IsZero() && m.CreatedAt.After(f.DateTo) {
		return false
	}
	if f.AddressContains != "" && !matchesAddress(m, f.AddressContains) {
		return false
	}
	if f.HasAttachments != nil && (len(m.Attachments) > 0) != *f.HasAttachments {
		return false
	}
	if f.ThreadID != "" && m.ThreadID != f.ThreadID {
		return false
	}
	if m.IsDraft && !f.IncludeDrafts && f.Folder != FolderDrafts {
		return false
	}
	return true
}

func matchesAddress(m *Message, substr string) bool {
	needle := strings.ToLower(substr)
	if strings.Contains(strings.ToLower(m.From.Email), needle) {
		return true
	}
	for _, group := range [][]Address{m.To, m.Cc, m.Bcc} {
		for _, a := range group {
			if strings.Contains(strings.ToLower(a.Email), needle) {
				return true
			}
		}
	}
	return false
}

// SearchQuery is a full-text search request over subject and text body,
// combined with structured filter constraints.
type SearchQuery struct {
	Query  string
	Filter MessageFilter
	Page   Page
}

// Validate rejects empty or whitespace-only query strings.
func (q SearchQuery) Validate() error {
	if strings.TrimSpace(q.Query) == "" {
		return ErrEmptyQuery
	}
	return nil
}
