package store

import (
	"context"
	"maps"
)

// FolderCounts holds message totals for one folder.
type FolderCounts struct {
	MessageCount int64 `json:"message_count"`
	UnreadCount  int64 `json:"unread_count"`
}

// MailboxStats holds aggregate statistics for one account's mailbox.
type MailboxStats struct {
	// TotalMessages is the total number of non-draft messages.
	TotalMessages int64 `json:"total_messages"`
	// UnreadCount is the total number of unread non-draft messages.
	UnreadCount int64 `json:"unread_count"`
	// StarredCount is the number of starred non-draft messages.
	StarredCount int64 `json:"starred_count"`
	// DraftCount is the number of drafts.
	DraftCount int64 `json:"draft_count"`
	// Folders maps folder values (inbox, sent, trash, custom) to counts.
	Folders map[string]FolderCounts `json:"folders,omitempty"`
}

// Clone returns a deep copy of the stats.
func (s *MailboxStats) Clone() *MailboxStats {
	c := *s
	if s.Folders != nil {
		c.Folders = make(map[string]FolderCounts, len(s.Folders))
		maps.Copy(c.Folders, s.Folders)
	}
	return &c
}

// StatsStore is an optional capability for aggregate mailbox statistics.
// Implement it as a single efficient query (MongoDB $facet, PostgreSQL
// conditional aggregation) rather than multiple round-trips; callers fall
// back to per-folder counting when the capability is absent.
type StatsStore interface {
	MailboxStats(ctx context.Context, ownerID string) (*MailboxStats, error)
}
