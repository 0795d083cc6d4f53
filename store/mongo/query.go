package mongo

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	mongoopts "go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/absurdlabs/postbox/store"
)

// regexMetaChars matches regex metacharacters that need escaping.
var regexMetaChars = regexp.MustCompile(`[\\^$.|?*+()[\]{}]`)

// escapeRegex escapes regex metacharacters to prevent regex injection.
func escapeRegex(s string) string {
	return regexMetaChars.ReplaceAllString(s, `\$0`)
}

// GetMessage retrieves a message by ID without side effects.
func (s *Store) GetMessage(ctx context.Context, ownerID, id string) (*store.Message, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, store.ErrInvalidID
	}

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var doc messageDoc
	err := s.messages.FindOne(ctx, ownerFilter(ownerID, id)).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("find message: %w", err)
	}
	return doc.toMessage(), nil
}

// buildFilter compiles a MessageFilter into a MongoDB query document.
// Semantics match store.MessageFilter.Matches.
func buildFilter(ownerID string, f store.MessageFilter) bson.M {
	q := bson.M{"owner_id": ownerID}

	if f.Folder != "" {
		q["folder"] = f.Folder
		if f.Folder == store.FolderCustom && f.CustomFolderID != "" {
			q["custom_folder_id"] = f.CustomFolderID
		}
	}
	if f.LabelID != "" {
		q["label_ids"] = f.LabelID
	}
	if f.IsRead != nil {
		q["is_read"] = *f.IsRead
	}
	if f.IsStarred != nil {
		q["is_starred"] = *f.IsStarred
	}
	if !f.DateFrom.IsZero() || !f.DateTo.IsZero() {
		created := bson.M{}
		if !f.DateFrom.IsZero() {
			created["$gte"] = f.DateFrom
		}
		if !f.DateTo.IsZero() {
			created["$lte"] = f.DateTo
		}
		q["created_at"] = created
	}
	if f.AddressContains != "" {
		re := bson.M{"$regex": escapeRegex(f.AddressContains), "$options": "i"}
		q["$or"] = bson.A{
			bson.M{"from.email": re},
			bson.M{"to.email": re},
			bson.M{"cc.email": re},
			bson.M{"bcc.email": re},
		}
	}
	if f.HasAttachments != nil {
		if *f.HasAttachments {
			q["attachments.0"] = bson.M{"$exists": true}
		} else {
			q["attachments.0"] = bson.M{"$exists": false}
		}
	}
	if f.ThreadID != "" {
		q["thread_id"] = f.ThreadID
	}
	// Drafts are excluded unless explicitly requested or the drafts folder
	// is being listed.
	if !f.IncludeDrafts && f.Folder != store.FolderDrafts {
		q["is_draft"] = bson.M{"$ne": true}
	}
	return q
}

// FindMessages returns one page of messages matching the filter, newest
// first. Rich bodies are omitted.
func (s *Store) FindMessages(ctx context.Context, ownerID string, filter store.MessageFilter, page store.Page) (*store.MessageList, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	page = page.Normalize()
	query := buildFilter(ownerID, filter)

	total, err := s.messages.CountDocuments(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("count messages: %w", err)
	}

	findOpts := mongoopts.Find().
		SetSort(bson.D{
			bson.E{Key: "created_at", Value: -1},
			bson.E{Key: "_id", Value: -1},
		}).
		SetSkip(int64(page.Offset())).
		SetLimit(int64(page.Limit)).
		SetProjection(listProjection)

	messages, err := s.findAll(ctx, query, findOpts)
	if err != nil {
		return nil, err
	}
	return &store.MessageList{
		Messages: messages,
		Page:     store.NewPageInfo(page, total),
	}, nil
}

// SearchMessages returns one page of full-text matches ranked by relevance.
// Rich bodies are omitted.
func (s *Store) SearchMessages(ctx context.Context, ownerID string, q store.SearchQuery) (*store.MessageList, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	page := q.Page.Normalize()
	query := buildFilter(ownerID, q.Filter)
	query["$text"] = bson.M{"$search": q.Query}

	total, err := s.messages.CountDocuments(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("count search matches: %w", err)
	}

	projection := bson.M{
		"html_body": 0,
		"score":     bson.M{"$meta": "textScore"},
	}
	findOpts := mongoopts.Find().
		SetSort(bson.D{
			bson.E{Key: "score", Value: bson.M{"$meta": "textScore"}},
			bson.E{Key: "created_at", Value: -1},
			bson.E{Key: "_id", Value: -1},
		}).
		SetSkip(int64(page.Offset())).
		SetLimit(int64(page.Limit)).
		SetProjection(projection)

	messages, err := s.findAll(ctx, query, findOpts)
	if err != nil {
		return nil, err
	}
	return &store.MessageList{
		Messages: messages,
		Page:     store.NewPageInfo(page, total),
	}, nil
}

// ConversationMessages returns every message in the conversation in
// chronological order. Rich bodies are omitted.
func (s *Store) ConversationMessages(ctx context.Context, ownerID, threadID string) ([]*store.Message, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}
	if threadID == "" {
		return nil, store.ErrInvalidID
	}

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	query := bson.M{
		"owner_id":  ownerID,
		"thread_id": threadID,
		"is_draft":  bson.M{"$ne": true},
	}
	findOpts := mongoopts.Find().
		SetSort(bson.D{
			bson.E{Key: "created_at", Value: 1},
			bson.E{Key: "_id", Value: 1},
		}).
		SetProjection(listProjection)

	return s.findAll(ctx, query, findOpts)
}

func (s *Store) findAll(ctx context.Context, query bson.M, opts *mongoopts.FindOptionsBuilder) ([]*store.Message, error) {
	cursor, err := s.messages.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("find messages: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []messageDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode messages: %w", err)
	}

	messages := make([]*store.Message, 0, len(docs))
	for i := range docs {
		messages = append(messages, docs[i].toMessage())
	}
	return messages, nil
}
