package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	mongoopts "go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/absurdlabs/postbox/store"
)

// CreateMessage persists a new message with the caller-assigned id.
func (s *Store) CreateMessage(ctx context.Context, m *store.Message) error {
	if err := s.checkConnected(); err != nil {
		return err
	}
	if m == nil || m.ID == "" {
		return store.ErrInvalidID
	}

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	if _, err := s.messages.InsertOne(ctx, messageToDoc(m)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return store.ErrDuplicateEntry
		}
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// ViewMessage returns the message and atomically marks it read if it was
// unread. The filter only matches unread documents, so already read
// messages fall through to a plain read.
func (s *Store) ViewMessage(ctx context.Context, ownerID, id string) (*store.Message, bool, error) {
	if err := s.checkConnected(); err != nil {
		return nil, false, err
	}
	if id == "" {
		return nil, false, store.ErrInvalidID
	}

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	filter := ownerFilter(ownerID, id)
	filter["is_read"] = false
	update := bson.M{"$set": bson.M{
		"is_read":    true,
		"updated_at": time.Now().UTC(),
	}}
	opts := mongoopts.FindOneAndUpdate().SetReturnDocument(mongoopts.After)

	var doc messageDoc
	err := s.messages.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	if err == nil {
		return doc.toMessage(), true, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, fmt.Errorf("view message: %w", err)
	}

	m, err := s.GetMessage(ctx, ownerID, id)
	if err != nil {
		return nil, false, err
	}
	return m, false, nil
}

// UpdateMessage applies a sparse update atomically and returns the updated
// message. A folder move on a draft is ErrNotDraft.
func (s *Store) UpdateMessage(ctx context.Context, ownerID, id string, upd store.MessageUpdate) (*store.Message, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, store.ErrInvalidID
	}
	if err := upd.Validate(); err != nil {
		return nil, err
	}
	if upd.IsZero() {
		return s.GetMessage(ctx, ownerID, id)
	}

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	set := bson.M{"updated_at": time.Now().UTC()}
	if upd.IsRead != nil {
		set["is_read"] = *upd.IsRead
	}
	if upd.IsStarred != nil {
		set["is_starred"] = *upd.IsStarred
	}
	filter := ownerFilter(ownerID, id)
	if upd.Folder != nil {
		// Drafts never move between folders.
		filter["is_draft"] = bson.M{"$ne": true}
		set["folder"] = *upd.Folder
		if *upd.Folder == store.FolderCustom {
			set["custom_folder_id"] = *upd.CustomFolderID
		} else {
			set["custom_folder_id"] = ""
		}
	}
	if upd.LabelIDs != nil {
		set["label_ids"] = *upd.LabelIDs
	}

	opts := mongoopts.FindOneAndUpdate().SetReturnDocument(mongoopts.After)

	var doc messageDoc
	err := s.messages.FindOneAndUpdate(ctx, filter, bson.M{"$set": set}, opts).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, s.classifyMiss(ctx, ownerID, id, upd.Folder != nil)
		}
		return nil, fmt.Errorf("update message: %w", err)
	}
	return doc.toMessage(), nil
}

// classifyMiss disambiguates a guarded update that matched no document.
func (s *Store) classifyMiss(ctx context.Context, ownerID, id string, draftGuard bool) error {
	m, err := s.GetMessage(ctx, ownerID, id)
	if err != nil {
		return err
	}
	if draftGuard && m.IsDraft {
		return store.ErrNotDraft
	}
	return store.ErrNotFound
}

// UpdateDraft atomically replaces the content of an existing draft and
// returns it. Content replacement is wholesale.
func (s *Store) UpdateDraft(ctx context.Context, ownerID, id string, content store.DraftContent) (*store.Message, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, store.ErrInvalidID
	}

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	filter := ownerFilter(ownerID, id)
	filter["is_draft"] = true
	update := bson.M{"$set": bson.M{
		"to":          content.To,
		"cc":          content.Cc,
		"bcc":         content.Bcc,
		"subject":     content.Subject,
		"text_body":   content.TextBody,
		"html_body":   content.HTMLBody,
		"attachments": content.Attachments,
		"headers":     content.Headers,
		"updated_at":  time.Now().UTC(),
	}}
	opts := mongoopts.FindOneAndUpdate().SetReturnDocument(mongoopts.After)

	var doc messageDoc
	err := s.messages.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			if _, getErr := s.GetMessage(ctx, ownerID, id); getErr != nil {
				return nil, getErr
			}
			return nil, store.ErrNotDraft
		}
		return nil, fmt.Errorf("update draft: %w", err)
	}
	return doc.toMessage(), nil
}

// SoftDeleteMessage moves the message to trash. Drafts and already trashed
// messages do not match the guarded filter and are classified afterwards.
func (s *Store) SoftDeleteMessage(ctx context.Context, ownerID, id string) (*store.Message, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, store.ErrInvalidID
	}

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	filter := ownerFilter(ownerID, id)
	filter["is_draft"] = bson.M{"$ne": true}
	filter["folder"] = bson.M{"$ne": store.FolderTrash}
	update := bson.M{"$set": bson.M{
		"folder":           store.FolderTrash,
		"custom_folder_id": "",
		"updated_at":       time.Now().UTC(),
	}}
	opts := mongoopts.FindOneAndUpdate().SetReturnDocument(mongoopts.After)

	var doc messageDoc
	err := s.messages.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			m, getErr := s.GetMessage(ctx, ownerID, id)
			if getErr != nil {
				return nil, getErr
			}
			if m.IsDraft {
				return nil, store.ErrNotDraft
			}
			return nil, store.ErrAlreadyInTrash
		}
		return nil, fmt.Errorf("soft delete message: %w", err)
	}
	return doc.toMessage(), nil
}

// HardDeleteMessage removes the record permanently regardless of folder.
func (s *Store) HardDeleteMessage(ctx context.Context, ownerID, id string) error {
	if err := s.checkConnected(); err != nil {
		return err
	}
	if id == "" {
		return store.ErrInvalidID
	}

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	result, err := s.messages.DeleteOne(ctx, ownerFilter(ownerID, id))
	if err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	if result.DeletedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

// ClearLabel removes the label from every message carrying it.
func (s *Store) ClearLabel(ctx context.Context, ownerID, labelID string) (int64, error) {
	if err := s.checkConnected(); err != nil {
		return 0, err
	}
	if labelID == "" {
		return 0, store.ErrInvalidID
	}

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	filter := bson.M{"owner_id": ownerID, "label_ids": labelID}
	update := bson.M{
		"$pull": bson.M{"label_ids": labelID},
		"$set":  bson.M{"updated_at": time.Now().UTC()},
	}
	result, err := s.messages.UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, fmt.Errorf("clear label: %w", err)
	}
	return result.ModifiedCount, nil
}

// RelocateFolderMessages moves all messages referencing the custom folder
// into the given built-in folder.
func (s *Store) RelocateFolderMessages(ctx context.Context, ownerID, customFolderID, toFolder string) (int64, error) {
	if err := s.checkConnected(); err != nil {
		return 0, err
	}
	if customFolderID == "" {
		return 0, store.ErrInvalidID
	}
	if !store.IsValidFolder(toFolder) || toFolder == store.FolderCustom {
		return 0, store.ErrInvalidFolder
	}

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	filter := bson.M{
		"owner_id":         ownerID,
		"folder":           store.FolderCustom,
		"custom_folder_id": customFolderID,
	}
	update := bson.M{"$set": bson.M{
		"folder":           toFolder,
		"custom_folder_id": "",
		"updated_at":       time.Now().UTC(),
	}}
	result, err := s.messages.UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, fmt.Errorf("relocate folder messages: %w", err)
	}
	return result.ModifiedCount, nil
}

// PurgeExpiredTrash permanently deletes up to limit trashed messages older
// than cutoff, across all owners. DeleteMany has no limit, so expired ids
// are collected first.
func (s *Store) PurgeExpiredTrash(ctx context.Context, cutoff time.Time, limit int) (int64, error) {
	if err := s.checkConnected(); err != nil {
		return 0, err
	}

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	filter := bson.M{
		"folder":     store.FolderTrash,
		"updated_at": bson.M{"$lt": cutoff},
	}
	findOpts := mongoopts.Find().SetProjection(bson.M{"_id": 1})
	if limit > 0 {
		findOpts.SetLimit(int64(limit))
	}

	cursor, err := s.messages.Find(ctx, filter, findOpts)
	if err != nil {
		return 0, fmt.Errorf("find expired trash: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []struct {
		ID string `bson:"_id"`
	}
	if err := cursor.All(ctx, &docs); err != nil {
		return 0, fmt.Errorf("decode expired trash: %w", err)
	}
	if len(docs) == 0 {
		return 0, nil
	}

	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.ID)
	}
	result, err := s.messages.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return 0, fmt.Errorf("purge expired trash: %w", err)
	}
	return result.DeletedCount, nil
}
