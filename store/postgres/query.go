package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/absurdlabs/postbox/store"
)

// GetMessage returns one owner-scoped message including its rich body.
func (s *Store) GetMessage(ctx context.Context, ownerID, id string) (*store.Message, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, store.ErrInvalidID
	}

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1 AND owner_id = $2`,
		messageColumns, s.messages)

	var row messageRow
	if err := s.db.GetContext(ctx, &row, query, id, ownerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("get message: %w", err)
	}
	return row.toMessage()
}

// buildFilter compiles a MessageFilter into WHERE conditions. The returned
// args start at placeholder $1 plus the given offset.
func (s *Store) buildFilter(ownerID string, f store.MessageFilter) ([]string, []any) {
	conds := []string{"owner_id = $1"}
	args := []any{ownerID}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.Folder != "" {
		conds = append(conds, "folder = "+arg(f.Folder))
		if f.Folder == store.FolderCustom && f.CustomFolderID != "" {
			conds = append(conds, "custom_folder_id = "+arg(f.CustomFolderID))
		}
	}
	if f.LabelID != "" {
		conds = append(conds, arg(f.LabelID)+" = ANY(label_ids)")
	}
	if f.IsRead != nil {
		conds = append(conds, "is_read = "+arg(*f.IsRead))
	}
	if f.IsStarred != nil {
		conds = append(conds, "is_starred = "+arg(*f.IsStarred))
	}
	if !f.DateFrom.IsZero() {
		conds = append(conds, "created_at >= "+arg(f.DateFrom))
	}
	if !f.DateTo.IsZero() {
		conds = append(conds, "created_at <= "+arg(f.DateTo))
	}
	if f.AddressContains != "" {
		needle := "%" + strings.ToLower(f.AddressContains) + "%"
		p := arg(needle)
		conds = append(conds, fmt.Sprintf(`(lower(from_email) LIKE %s
			OR EXISTS (SELECT 1 FROM jsonb_array_elements(to_addrs || cc_addrs || bcc_addrs) a
			           WHERE lower(a->>'email') LIKE %s))`, p, p))
	}
	if f.HasAttachments != nil {
		if *f.HasAttachments {
			conds = append(conds, "jsonb_array_length(attachments) > 0")
		} else {
			conds = append(conds, "jsonb_array_length(attachments) = 0")
		}
	}
	if f.ThreadID != "" {
		conds = append(conds, "thread_id = "+arg(f.ThreadID))
	}
	if !f.IncludeDrafts && f.Folder != store.FolderDrafts {
		conds = append(conds, "NOT is_draft")
	}
	return conds, args
}

// FindMessages returns one page of filter matches ordered by creation time
// descending, id descending, with rich bodies omitted.
func (s *Store) FindMessages(ctx context.Context, ownerID string, filter store.MessageFilter, page store.Page) (*store.MessageList, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	page = page.Normalize()
	conds, args := s.buildFilter(ownerID, filter)
	where := strings.Join(conds, " AND ")

	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE %s`, s.messages, where)
	var total int64
	if err := s.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, fmt.Errorf("count messages: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE %s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d OFFSET $%d
	`, messageColumns, s.messages, where, len(args)+1, len(args)+2)
	args = append(args, page.Limit, page.Offset())

	msgs, err := s.queryMessages(ctx, query, args)
	if err != nil {
		return nil, err
	}
	return &store.MessageList{Messages: msgs, Page: store.NewPageInfo(page, total)}, nil
}

// SearchMessages ranks tsvector matches with ts_rank, subject weighted
// above body, ties broken by creation time then id descending.
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
	conds, args := s.buildFilter(ownerID, q.Filter)
	args = append(args, q.Query)
	tsQuery := fmt.Sprintf("plainto_tsquery('english', $%d)", len(args))
	conds = append(conds, "search_vec @@ "+tsQuery)
	where := strings.Join(conds, " AND ")

	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE %s`, s.messages, where)
	var total int64
	if err := s.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, fmt.Errorf("count search results: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE %s
		ORDER BY ts_rank(search_vec, %s) DESC, created_at DESC, id DESC
		LIMIT $%d OFFSET $%d
	`, messageColumns, s.messages, where, tsQuery, len(args)+1, len(args)+2)
	args = append(args, page.Limit, page.Offset())

	msgs, err := s.queryMessages(ctx, query, args)
	if err != nil {
		return nil, err
	}
	return &store.MessageList{Messages: msgs, Page: store.NewPageInfo(page, total)}, nil
}

// ConversationMessages returns every message of a thread in chronological
// order, rich bodies omitted.
func (s *Store) ConversationMessages(ctx context.Context, ownerID, threadID string) ([]*store.Message, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}
	if threadID == "" {
		return nil, store.ErrInvalidID
	}

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE owner_id = $1 AND thread_id = $2 AND NOT is_draft
		ORDER BY created_at ASC, id ASC
	`, messageColumns, s.messages)

	return s.queryMessages(ctx, query, []any{ownerID, threadID})
}

// queryMessages runs a multi-row message query and strips rich bodies.
func (s *Store) queryMessages(ctx context.Context, query string, args []any) ([]*store.Message, error) {
	rows, err := s.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	msgs := []*store.Message{}
	for rows.Next() {
		var row messageRow
		if err := rows.StructScan(&row); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m, err := row.toMessage()
		if err != nil {
			return nil, err
		}
		m.HTMLBody = ""
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return msgs, nil
}
