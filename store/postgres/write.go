package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/absurdlabs/postbox/store"
)

// uniqueViolation is the PostgreSQL error code for unique constraint
// violations.
const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

// CreateMessage inserts a new message. The caller assigns id and
// timestamps; a duplicate id is ErrDuplicateEntry.
func (s *Store) CreateMessage(ctx context.Context, m *store.Message) error {
	if err := s.checkConnected(); err != nil {
		return err
	}
	if m == nil || m.ID == "" {
		return store.ErrInvalidID
	}

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	toJSON, err := jsonArg(m.To)
	if err != nil {
		return err
	}
	ccJSON, err := jsonArg(m.Cc)
	if err != nil {
		return err
	}
	bccJSON, err := jsonArg(m.Bcc)
	if err != nil {
		return err
	}
	attJSON, err := jsonArg(m.Attachments)
	if err != nil {
		return err
	}
	hdrJSON, err := jsonMapArg(m.Headers)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, owner_id, from_email, from_name, to_addrs, cc_addrs, bcc_addrs,
		                subject, text_body, html_body, attachments, headers, folder,
		                custom_folder_id, label_ids, is_read, is_starred, is_draft,
		                thread_id, reply_to_id, delivery_id, sent_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16,
		        $17, $18, $19, $20, $21, $22, $23, $24)
	`, s.messages)

	_, err = s.db.ExecContext(ctx, query,
		m.ID, m.OwnerID, m.From.Email, m.From.Name, toJSON, ccJSON, bccJSON,
		m.Subject, m.TextBody, m.HTMLBody, attJSON, hdrJSON, m.Folder,
		m.CustomFolderID, labelArray(m.LabelIDs), m.IsRead, m.IsStarred, m.IsDraft,
		m.ThreadID, m.ReplyToID, m.DeliveryID, nullTime(m.SentAt), m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrDuplicateEntry
		}
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// ViewMessage returns the message and marks it read in the same statement.
// The second result reports whether the read flag flipped.
func (s *Store) ViewMessage(ctx context.Context, ownerID, id string) (*store.Message, bool, error) {
	if err := s.checkConnected(); err != nil {
		return nil, false, err
	}
	if id == "" {
		return nil, false, store.ErrInvalidID
	}

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	update := fmt.Sprintf(`
		UPDATE %s SET is_read = TRUE, updated_at = $3
		WHERE id = $1 AND owner_id = $2 AND NOT is_read
		RETURNING %s
	`, s.messages, messageColumns)

	var row messageRow
	err := s.db.GetContext(ctx, &row, update, id, ownerID, time.Now().UTC())
	if err == nil {
		m, convErr := row.toMessage()
		return m, true, convErr
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, fmt.Errorf("view message: %w", err)
	}

	// Already read, or missing.
	m, err := s.GetMessage(ctx, ownerID, id)
	if err != nil {
		return nil, false, err
	}
	return m, false, nil
}

// UpdateMessage applies a sparse update and returns the updated message.
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

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	set := []string{}
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if upd.IsRead != nil {
		set = append(set, "is_read = "+arg(*upd.IsRead))
	}
	if upd.IsStarred != nil {
		set = append(set, "is_starred = "+arg(*upd.IsStarred))
	}
	if upd.Folder != nil {
		set = append(set, "folder = "+arg(*upd.Folder))
		custom := ""
		if upd.CustomFolderID != nil {
			custom = *upd.CustomFolderID
		}
		set = append(set, "custom_folder_id = "+arg(custom))
	}
	if upd.LabelIDs != nil {
		set = append(set, "label_ids = "+arg(labelArray(*upd.LabelIDs)))
	}
	if len(set) == 0 {
		return s.GetMessage(ctx, ownerID, id)
	}
	set = append(set, "updated_at = "+arg(time.Now().UTC()))

	where := fmt.Sprintf("id = %s AND owner_id = %s", arg(id), arg(ownerID))
	if upd.Folder != nil {
		// Drafts cannot change folder.
		where += " AND NOT is_draft"
	}

	query := fmt.Sprintf(`UPDATE %s SET %s WHERE %s RETURNING %s`,
		s.messages, strings.Join(set, ", "), where, messageColumns)

	var row messageRow
	err := s.db.GetContext(ctx, &row, query, args...)
	if err == nil {
		return row.toMessage()
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("update message: %w", err)
	}
	return nil, s.classifyMiss(ctx, ownerID, id, upd.Folder != nil)
}

// classifyMiss distinguishes a missing row from one excluded by the draft
// guard of an UPDATE.
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

// UpdateDraft atomically replaces the content of an existing draft.
func (s *Store) UpdateDraft(ctx context.Context, ownerID, id string, content store.DraftContent) (*store.Message, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, store.ErrInvalidID
	}

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	toJSON, err := jsonArg(content.To)
	if err != nil {
		return nil, err
	}
	ccJSON, err := jsonArg(content.Cc)
	if err != nil {
		return nil, err
	}
	bccJSON, err := jsonArg(content.Bcc)
	if err != nil {
		return nil, err
	}
	attJSON, err := jsonArg(content.Attachments)
	if err != nil {
		return nil, err
	}
	hdrJSON, err := jsonMapArg(content.Headers)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		UPDATE %s
		SET to_addrs = $3, cc_addrs = $4, bcc_addrs = $5, subject = $6,
		    text_body = $7, html_body = $8, attachments = $9, headers = $10,
		    updated_at = $11
		WHERE id = $1 AND owner_id = $2 AND is_draft
		RETURNING %s
	`, s.messages, messageColumns)

	var row messageRow
	err = s.db.GetContext(ctx, &row, query, id, ownerID,
		toJSON, ccJSON, bccJSON, content.Subject, content.TextBody, content.HTMLBody,
		attJSON, hdrJSON, time.Now().UTC())
	if err == nil {
		return row.toMessage()
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("update draft: %w", err)
	}
	if _, getErr := s.GetMessage(ctx, ownerID, id); getErr != nil {
		return nil, getErr
	}
	return nil, store.ErrNotDraft
}

// SoftDeleteMessage moves the message to trash.
func (s *Store) SoftDeleteMessage(ctx context.Context, ownerID, id string) (*store.Message, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, store.ErrInvalidID
	}

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	query := fmt.Sprintf(`
		UPDATE %s SET folder = $3, custom_folder_id = '', updated_at = $4
		WHERE id = $1 AND owner_id = $2 AND folder <> $3 AND NOT is_draft
		RETURNING %s
	`, s.messages, messageColumns)

	var row messageRow
	err := s.db.GetContext(ctx, &row, query, id, ownerID, store.FolderTrash, time.Now().UTC())
	if err == nil {
		return row.toMessage()
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("soft delete message: %w", err)
	}

	m, getErr := s.GetMessage(ctx, ownerID, id)
	if getErr != nil {
		return nil, getErr
	}
	if m.IsDraft {
		return nil, store.ErrNotDraft
	}
	return nil, store.ErrAlreadyInTrash
}

// HardDeleteMessage removes the message row permanently.
func (s *Store) HardDeleteMessage(ctx context.Context, ownerID, id string) error {
	if err := s.checkConnected(); err != nil {
		return err
	}
	if id == "" {
		return store.ErrInvalidID
	}

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1 AND owner_id = $2`, s.messages)
	result, err := s.db.ExecContext(ctx, query, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete message: %w", err)
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

// ClearLabel strips the label from every message carrying it.
func (s *Store) ClearLabel(ctx context.Context, ownerID, labelID string) (int64, error) {
	if err := s.checkConnected(); err != nil {
		return 0, err
	}
	if labelID == "" {
		return 0, store.ErrInvalidID
	}

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	query := fmt.Sprintf(`
		UPDATE %s SET label_ids = array_remove(label_ids, $2), updated_at = $3
		WHERE owner_id = $1 AND $2 = ANY(label_ids)
	`, s.messages)

	result, err := s.db.ExecContext(ctx, query, ownerID, labelID, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("clear label: %w", err)
	}
	return result.RowsAffected()
}

// RelocateFolderMessages moves every message out of a custom folder.
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

	query := fmt.Sprintf(`
		UPDATE %s SET folder = $3, custom_folder_id = '', updated_at = $4
		WHERE owner_id = $1 AND folder = $5 AND custom_folder_id = $2
	`, s.messages)

	result, err := s.db.ExecContext(ctx, query, ownerID, customFolderID, toFolder,
		time.Now().UTC(), store.FolderCustom)
	if err != nil {
		return 0, fmt.Errorf("relocate folder messages: %w", err)
	}
	return result.RowsAffected()
}

// PurgeExpiredTrash deletes up to limit trashed messages whose trash entry
// is older than the cutoff, across all owners.
func (s *Store) PurgeExpiredTrash(ctx context.Context, cutoff time.Time, limit int) (int64, error) {
	if err := s.checkConnected(); err != nil {
		return 0, err
	}
	if limit <= 0 {
		return 0, nil
	}

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	query := fmt.Sprintf(`
		DELETE FROM %s WHERE id IN (
			SELECT id FROM %s WHERE folder = $1 AND updated_at < $2 LIMIT $3
		)
	`, s.messages, s.messages)

	result, err := s.db.ExecContext(ctx, query, store.FolderTrash, cutoff, limit)
	if err != nil {
		return 0, fmt.Errorf("purge expired trash: %w", err)
	}
	return result.RowsAffected()
}

// inTx runs fn inside a transaction.
func (s *Store) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %w", store.ErrTransactionFailed, err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %w", store.ErrTransactionFailed, err)
	}
	return nil
}
