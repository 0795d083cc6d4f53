package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"time"

	"github.com/absurdlabs/postbox/store"
)

type folderRow struct {
	ID        string    `db:"id"`
	OwnerID   string    `db:"owner_id"`
	Name      string    `db:"name"`
	Color     string    `db:"color"`
	Icon      string    `db:"icon"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r *folderRow) toFolder() *store.Folder {
	return &store.Folder{
		ID:        r.ID,
		OwnerID:   r.OwnerID,
		Name:      r.Name,
		Color:     r.Color,
		Icon:      r.Icon,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

type labelRow struct {
	ID        string    `db:"id"`
	OwnerID   string    `db:"owner_id"`
	Name      string    `db:"name"`
	Color     string    `db:"color"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r *labelRow) toLabel() *store.Label {
	return &store.Label{
		ID:        r.ID,
		OwnerID:   r.OwnerID,
		Name:      r.Name,
		Color:     r.Color,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

// CreateFolder inserts a custom folder. A duplicate name for the same
// owner is ErrDuplicateName.
func (s *Store) CreateFolder(ctx context.Context, f *store.Folder) error {
	if err := s.checkConnected(); err != nil {
		return err
	}
	if f == nil || f.ID == "" {
		return store.ErrInvalidID
	}

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	query := fmt.Sprintf(`
		INSERT INTO %s (id, owner_id, name, color, icon, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, s.folders)

	_, err := s.db.ExecContext(ctx, query,
		f.ID, f.OwnerID, f.Name, f.Color, f.Icon, f.CreatedAt, f.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
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

	query := fmt.Sprintf(`
		SELECT id, owner_id, name, color, icon, created_at, updated_at
		FROM %s WHERE id = $1 AND owner_id = $2
	`, s.folders)

	var row folderRow
	if err := s.db.GetContext(ctx, &row, query, id, ownerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("get folder: %w", err)
	}
	return row.toFolder(), nil
}

// ListFolders returns the owner's folders sorted by name.
func (s *Store) ListFolders(ctx context.Context, ownerID string) ([]*store.Folder, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	query := fmt.Sprintf(`
		SELECT id, owner_id, name, color, icon, created_at, updated_at
		FROM %s WHERE owner_id = $1 ORDER BY name
	`, s.folders)

	var rows []folderRow
	if err := s.db.SelectContext(ctx, &rows, query, ownerID); err != nil {
		return nil, fmt.Errorf("list folders: %w", err)
	}
	folders := make([]*store.Folder, 0, len(rows))
	for i := range rows {
		folders = append(folders, rows[i].toFolder())
	}
	return folders, nil
}

// DeleteFolder removes the folder record. Member messages are the caller's
// concern; relocate them first.
func (s *Store) DeleteFolder(ctx context.Context, ownerID, id string) error {
	return s.deleteRegistryRow(ctx, s.folders, ownerID, id, "delete folder")
}

// CreateLabel inserts a label. A duplicate name for the same owner is
// ErrDuplicateName.
func (s *Store) CreateLabel(ctx context.Context, l *store.Label) error {
	if err := s.checkConnected(); err != nil {
		return err
	}
	if l == nil || l.ID == "" {
		return store.ErrInvalidID
	}

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	query := fmt.Sprintf(`
		INSERT INTO %s (id, owner_id, name, color, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, s.labels)

	_, err := s.db.ExecContext(ctx, query,
		l.ID, l.OwnerID, l.Name, l.Color, l.CreatedAt, l.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
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

	query := fmt.Sprintf(`
		SELECT id, owner_id, name, color, created_at, updated_at
		FROM %s WHERE id = $1 AND owner_id = $2
	`, s.labels)

	var row labelRow
	if err := s.db.GetContext(ctx, &row, query, id, ownerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("get label: %w", err)
	}
	return row.toLabel(), nil
}

// ListLabels returns the owner's labels sorted by name.
func (s *Store) ListLabels(ctx context.Context, ownerID string) ([]*store.Label, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	query := fmt.Sprintf(`
		SELECT id, owner_id, name, color, created_at, updated_at
		FROM %s WHERE owner_id = $1 ORDER BY name
	`, s.labels)

	var rows []labelRow
	if err := s.db.SelectContext(ctx, &rows, query, ownerID); err != nil {
		return nil, fmt.Errorf("list labels: %w", err)
	}
	labels := make([]*store.Label, 0, len(rows))
	for i := range rows {
		labels = append(labels, rows[i].toLabel())
	}
	return labels, nil
}

// DeleteLabel removes the label record. Stripping it from messages is the
// caller's concern.
func (s *Store) DeleteLabel(ctx context.Context, ownerID, id string) error {
	return s.deleteRegistryRow(ctx, s.labels, ownerID, id, "delete label")
}

func (s *Store) deleteRegistryRow(ctx context.Context, table, ownerID, id, op string) error {
	if err := s.checkConnected(); err != nil {
		return err
	}
	if id == "" {
		return store.ErrInvalidID
	}

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1 AND owner_id = $2`, table)
	result, err := s.db.ExecContext(ctx, query, id, ownerID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return store.ErrNotFound
	}
	return nil
}
