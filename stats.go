package postbox

import (
	"context"
	"errors"
	"fmt"

	"github.com/absurdlabs/postbox/store"
)

// Stats returns aggregate statistics for the account's mailbox.
//
// Backends implementing the optional store.StatsStore capability aggregate
// in a single pass; otherwise the counts are assembled from count-only
// queries, which is slower but gives identical results.
func (m *clientMailbox) Stats(ctx context.Context) (*MailboxStats, error) {
	if err := m.checkAccess(); err != nil {
		return nil, err
	}

	ctx, endSpan := m.service.otel.startSpan(ctx, "postbox.Stats")

	var stats *MailboxStats
	var err error
	if ss, ok := m.service.store.(store.StatsStore); ok {
		stats, err = ss.MailboxStats(ctx, m.ownerID())
		// Decorators satisfy StatsStore even when the wrapped store does
		// not; they report the gap at call time.
		if errors.Is(err, store.ErrStatsUnsupported) {
			stats, err = m.countStats(ctx)
		}
	} else {
		stats, err = m.countStats(ctx)
	}
	endSpan(err)
	if err != nil {
		return nil, fmt.Errorf("mailbox stats: %w", mapStoreError(err))
	}
	return stats, nil
}

// countStats assembles MailboxStats from count-only queries for backends
// without native aggregation.
func (m *clientMailbox) countStats(ctx context.Context) (*MailboxStats, error) {
	count := func(filter MessageFilter) (int64, error) {
		list, err := m.service.store.FindMessages(ctx, m.ownerID(), filter, store.Page{Number: 1, Limit: 1})
		if err != nil {
			return 0, err
		}
		return list.Page.Total, nil
	}

	stats := &store.MailboxStats{Folders: make(map[string]store.FolderCounts)}
	var err error
	if stats.TotalMessages, err = count(MessageFilter{}); err != nil {
		return nil, err
	}
	if stats.UnreadCount, err = count(MessageFilter{IsRead: ptrFalse}); err != nil {
		return nil, err
	}
	if stats.StarredCount, err = count(MessageFilter{IsStarred: ptrTrue}); err != nil {
		return nil, err
	}
	if stats.DraftCount, err = count(MessageFilter{Folder: store.FolderDrafts}); err != nil {
		return nil, err
	}

	for _, folder := range []string{store.FolderInbox, store.FolderSent, store.FolderTrash, store.FolderCustom} {
		total, err := count(MessageFilter{Folder: folder})
		if err != nil {
			return nil, err
		}
		if total == 0 {
			continue
		}
		unread, err := count(MessageFilter{Folder: folder, IsRead: ptrFalse})
		if err != nil {
			return nil, err
		}
		stats.Folders[folder] = store.FolderCounts{MessageCount: total, UnreadCount: unread}
	}
	return stats, nil
}
