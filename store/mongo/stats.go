package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/absurdlabs/postbox/store"
)

// MailboxStats aggregates per-owner statistics with a single $facet
// pipeline. Drafts only contribute to DraftCount; the folder branch groups
// non-draft messages by folder and the totals are summed from it.
func (s *Store) MailboxStats(ctx context.Context, ownerID string) (*store.MailboxStats, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	notDraft := bson.M{"is_draft": bson.M{"$ne": true}}
	unreadCond := bson.M{"$cond": bson.A{bson.M{"$ne": bson.A{"$is_read", true}}, 1, 0}}

	pipeline := bson.A{
		bson.M{"$match": bson.M{"owner_id": ownerID}},
		bson.M{"$facet": bson.M{
			"folders": bson.A{
				bson.M{"$match": notDraft},
				bson.M{"$group": bson.M{
					"_id":    "$folder",
					"total":  bson.M{"$sum": 1},
					"unread": bson.M{"$sum": unreadCond},
				}},
			},
			"starred": bson.A{
				bson.M{"$match": bson.M{"is_draft": bson.M{"$ne": true}, "is_starred": true}},
				bson.M{"$count": "n"},
			},
			"drafts": bson.A{
				bson.M{"$match": bson.M{"is_draft": true}},
				bson.M{"$count": "n"},
			},
		}},
	}

	cursor, err := s.messages.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("aggregate mailbox stats: %w", err)
	}
	defer cursor.Close(ctx)

	var results []struct {
		Folders []struct {
			Folder string `bson:"_id"`
			Total  int64  `bson:"total"`
			Unread int64  `bson:"unread"`
		} `bson:"folders"`
		Starred []struct {
			N int64 `bson:"n"`
		} `bson:"starred"`
		Drafts []struct {
			N int64 `bson:"n"`
		} `bson:"drafts"`
	}
	if err := cursor.All(ctx, &results); err != nil {
		return nil, fmt.Errorf("decode mailbox stats: %w", err)
	}

	stats := &store.MailboxStats{
		Folders: make(map[string]store.FolderCounts),
	}
	if len(results) == 0 {
		return stats, nil
	}

	r := results[0]
	for _, f := range r.Folders {
		stats.TotalMessages += f.Total
		stats.UnreadCount += f.Unread
		stats.Folders[f.Folder] = store.FolderCounts{
			MessageCount: f.Total,
			UnreadCount:  f.Unread,
		}
	}
	if len(r.Starred) > 0 {
		stats.StarredCount = r.Starred[0].N
	}
	if len(r.Drafts) > 0 {
		stats.DraftCount = r.Drafts[0].N
	}
	return stats, nil
}
