package postgres

import (
	"context"
	"fmt"

	"github.com/absurdlabs/postbox/store"
)

// MailboxStats aggregates per-owner statistics in two queries: one
// conditional-aggregation pass for the totals, one GROUP BY for the
// per-folder breakdown. Drafts only contribute to DraftCount.
func (s *Store) MailboxStats(ctx context.Context, ownerID string) (*store.MailboxStats, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	totalsQuery := fmt.Sprintf(`
		SELECT
			COUNT(*) FILTER (WHERE NOT is_draft)                    AS total,
			COUNT(*) FILTER (WHERE NOT is_draft AND NOT is_read)    AS unread,
			COUNT(*) FILTER (WHERE NOT is_draft AND is_starred)     AS starred,
			COUNT(*) FILTER (WHERE is_draft)                        AS drafts
		FROM %s WHERE owner_id = $1
	`, s.messages)

	var totals struct {
		Total   int64 `db:"total"`
		Unread  int64 `db:"unread"`
		Starred int64 `db:"starred"`
		Drafts  int64 `db:"drafts"`
	}
	if err := s.db.GetContext(ctx, &totals, totalsQuery, ownerID); err != nil {
		return nil, fmt.Errorf("aggregate totals: %w", err)
	}

	foldersQuery := fmt.Sprintf(`
		SELECT
			folder,
			COUNT(*)                              AS total,
			COUNT(*) FILTER (WHERE NOT is_read)   AS unread
		FROM %s
		WHERE owner_id = $1 AND NOT is_draft
		GROUP BY folder
	`, s.messages)

	rows, err := s.db.QueryxContext(ctx, foldersQuery, ownerID)
	if err != nil {
		return nil, fmt.Errorf("aggregate folders: %w", err)
	}
	defer rows.Close()

	stats := &store.MailboxStats{
		TotalMessages: totals.Total,
		UnreadCount:   totals.Unread,
		StarredCount:  totals.Starred,
		DraftCount:    totals.Drafts,
		Folders:       make(map[string]store.FolderCounts),
	}
	for rows.Next() {
		var row struct {
			Folder string `db:"folder"`
			Total  int64  `db:"total"`
			Unread int64  `db:"unread"`
		}
		if err := rows.StructScan(&row); err != nil {
			return nil, fmt.Errorf("scan folder counts: %w", err)
		}
		stats.Folders[row.Folder] = store.FolderCounts{
			MessageCount: row.Total,
			UnreadCount:  row.Unread,
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate folder counts: %w", err)
	}
	return stats, nil
}
