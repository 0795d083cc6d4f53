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

type folderDoc struct {
	ID        string    `bson:"_id"`
	OwnerID   string    `bson:"owner_id"`
	Name      string    `bson:"name"`
	Color     string    `bson:"color"`
	Icon      string    `bson:"icon"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

func (d *folderDoc) toFolder() *store.Folder {
	return &store.Folder{
		ID:        d.ID,
		OwnerID:   d.OwnerID,
		Name:      d.Name,
		Color:     d.Color,
		Icon:      d.Icon,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

type labelDoc struct {
	ID        string    `bson:"_id"`
	OwnerID   string    `bson:"owner_id"`
	Name      string    `bson:"name"`
	Color     string    `bson:"color"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

func (d *labelDoc) toLabel() *store.Label {
	return &store.Label{
		ID:        d.ID,
		OwnerID:   d.OwnerID,
		Name:      d.Name,
		Color:     d.Color,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

// CreateFolder inserts a custom folder. The unique (owner_id, name) index
// reports duplicates as ErrDuplicateName.
func (s *Store) CreateFolder(ctx context.Context, f *store.Folder) error {
	if err := s.checkConnected(); err != nil {
		return err
	}
	if f == nil || f.ID == "" {
		return store.ErrInvalidID
	}

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	doc := folderDoc{
		ID:        f.ID,
		OwnerID:   f.OwnerID,
		Name:      f.Name,
		Color:     f.Color,
		Icon:      f.Icon,
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.UpdatedAt,
	}
	if _, err := s.folders.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return store.ErrDuplicateName
		}
		return fmt.Errorf("insert folder: %w", err)
	}
	return nil
}

// GetFolder returns one owner-scoped folder.
func (s *Store) GetFolder(ctx context.Context, ownerID, id string) (*store.Folder, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, store.ErrInvalidID
	}

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var doc folderDoc
	err := s.folders.FindOne(ctx, ownerFilter(ownerID, id)).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("find folder: %w", err)
	}
	return doc.toFolder(), nil
}

// ListFolders returns the owner's folders sorted by name.
func (s *Store) ListFolders(ctx context.Context, ownerID string) ([]*store.Folder, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	opts := mongoopts.Find().SetSort(bson.D{bson.E{Key: "name", Value: 1}})
	cursor, err := s.folders.Find(ctx, bson.M{"owner_id": ownerID}, opts)
	if err != nil {
		return nil, fmt.Errorf("list folders: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []folderDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode folders: %w", err)
	}
	folders := make([]*store.Folder, 0, len(docs))
	for i := range docs {
		folders = append(folders, docs[i].toFolder())
	}
	return folders, nil
}

// DeleteFolder removes the folder record. Member messages are the caller's
// concern; relocate them first.
func (s *Store) DeleteFolder(ctx context.Context, ownerID, id string) error {
	return s.deleteRegistryDoc(ctx, s.folders, ownerID, id, "delete folder")
}

// CreateLabel inserts a label. The unique (owner_id, name) index reports
// duplicates as ErrDuplicateName.
func (s *Store) CreateLabel(ctx context.Context, l *store.Label) error {
	if err := s.checkConnected(); err != nil {
		return err
	}
	if l == nil || l.ID == "" {
		return store.ErrInvalidID
	}

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	doc := labelDoc{
		ID:        l.ID,
		OwnerID:   l.OwnerID,
		Name:      l.Name,
		Color:     l.Color,
		CreatedAt: l.CreatedAt,
		UpdatedAt: l.UpdatedAt,
	}
	if _, err := s.labels.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return store.ErrDuplicateName
		}
		return fmt.Errorf("insert label: %w", err)
	}
	return nil
}

// GetLabel returns one owner-scoped label.
func (s *Store) GetLabel(ctx context.Context, ownerID, id string) (*store.Label, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, store.ErrInvalidID
	}

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var doc labelDoc
	err := s.labels.FindOne(ctx, ownerFilter(ownerID, id)).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("find label: %w", err)
	}
	return doc.toLabel(), nil
}

// ListLabels returns the owner's labels sorted by name.
func (s *Store) ListLabels(ctx context.Context, ownerID string) ([]*store.Label, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	opts := mongoopts.Find().SetSort(bson.D{bson.E{Key: "name", Value: 1}})
	cursor, err := s.labels.Find(ctx, bson.M{"owner_id": ownerID}, opts)
	if err != nil {
		return nil, fmt.Errorf("list labels: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []labelDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode labels: %w", err)
	}
	labels := make([]*store.Label, 0, len(docs))
	for i := range docs {
		labels = append(labels, docs[i].toLabel())
	}
	return labels, nil
}

// DeleteLabel removes the label record. Stripping it from messages is the
// caller's concern.
func (s *Store) DeleteLabel(ctx context.Context, ownerID, id string) error {
	return s.deleteRegistryDoc(ctx, s.labels, ownerID, id, "delete label")
}

func (s *Store) deleteRegistryDoc(ctx context.Context, c *mongo.Collection, ownerID, id, op string) error {
	if err := s.checkConnected(); err != nil {
		return err
	}
	if id == "" {
		return store.ErrInvalidID
	}

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	result, err := c.DeleteOne(ctx, ownerFilter(ownerID, id))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if result.DeletedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}
