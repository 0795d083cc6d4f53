package memory

import (
	"context"

	"github.com/absurdlabs/postbox/store"
)

// Ensure the optional stats capability is implemented.
var _ store.StatsStore = (*Store)(nil)

// MailboxStats aggregates per-owner statistics in a single pass.
func (s *Store) MailboxStats(_ context.Context, ownerID string) (*store.MailboxStats, error) {
	if !s.isConnected() {
		return nil, store.ErrNotConnected
	}

	stats := &store.MailboxStats{Folders: make(map[string]store.FolderCounts)}
	s.messages.Range(func(_, value any) bool {
		m := value.(*store.Message)
		if m.OwnerID != ownerID {
			return true
		}
		if m.IsDraft {
			stats.DraftCount++
			return true
		}
		stats.TotalMessages++
		if !m.IsRead {
			stats.UnreadCount++
		}
		if m.IsStarred {
			stats.StarredCount++
		}
		fc := stats.Folders[m.Folder]
		fc.MessageCount++
		if !m.IsRead {
			fc.UnreadCount++
		}
		stats.Folders[m.Folder] = fc
		return true
	})
	return stats, nil
}
