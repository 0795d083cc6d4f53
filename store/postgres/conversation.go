package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/absurdlabs/postbox/store"
)

type conversationRow struct {
	ID             string    `db:"id"`
	OwnerID        string    `db:"owner_id"`
	Subject        string    `db:"subject"`
	Participants   []byte    `db:"participants"`
	MessageCount   int64     `db:"message_count"`
	LastActivityAt time.Time `db:"last_activity_at"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

func (r *conversationRow) toConversation() (*store.Conversation, error) {
	c := &store.Conversation{
		ID:             r.ID,
		OwnerID:        r.OwnerID,
		Subject:        r.Subject,
		MessageCount:   r.MessageCount,
		LastActivityAt: r.LastActivityAt,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
	if len(r.Participants) > 0 {
		if err := json.Unmarshal(r.Participants, &c.Participants); err != nil {
			return nil, fmt.Errorf("unmarshal participants: %w", err)
		}
	}
	return c, nil
}

const conversationColumns = `id, owner_id, subject, participants, message_count,
       last_activity_at, created_at, updated_at`

// CreateConversation inserts a new conversation record.
func (s *Store) CreateConversation(ctx context.Context, c *store.Conversation) error {
	if err := s.checkConnected(); err != nil {
		return err
	}
	if c == nil || c.ID == "" {
		return store.ErrInvalidID
	}

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	participants, err := jsonArg(c.Participants)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (%s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, s.conversations, conversationColumns)

	_, err = s.db.ExecContext(ctx, query,
		c.ID, c.OwnerID, c.Subject, participants, c.MessageCount,
		c.LastActivityAt, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrDuplicateEntry
		}
		return fmt.Errorf("insert conversation: %w", err)
	}
	return nil
}

// GetConversation returns one owner-scoped conversation.
func (s *Store) GetConversation(ctx context.Context, ownerID, id string) (*store.Conversation, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, store.ErrInvalidID
	}

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1 AND owner_id = $2`,
		conversationColumns, s.conversations)

	var row conversationRow
	if err := s.db.GetContext(ctx, &row, query, id, ownerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	return row.toConversation()
}

// JoinConversation folds one message into the conversation: increments the
// count, advances the activity timestamp and merges participants. The
// participant merge requires a read-modify-write, done under a row lock.
func (s *Store) JoinConversation(ctx context.Context, ownerID, id string, participants []store.Address, at time.Time) error {
	if err := s.checkConnected(); err != nil {
		return err
	}
	if id == "" {
		return store.ErrInvalidID
	}

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1 AND owner_id = $2 FOR UPDATE`,
			conversationColumns, s.conversations)

		var row conversationRow
		if err := tx.GetContext(ctx, &row, query, id, ownerID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return store.ErrNotFound
			}
			return fmt.Errorf("lock conversation: %w", err)
		}
		conv, err := row.toConversation()
		if err != nil {
			return err
		}

		conv.MergeParticipants(participants)
		merged, err := jsonArg(conv.Participants)
		if err != nil {
			return err
		}

		update := fmt.Sprintf(`
			UPDATE %s
			SET message_count = message_count + 1,
			    last_activity_at = GREATEST(last_activity_at, $3),
			    participants = $4,
			    updated_at = $5
			WHERE id = $1 AND owner_id = $2
		`, s.conversations)

		if _, err := tx.ExecContext(ctx, update, id, ownerID, at, merged, time.Now().UTC()); err != nil {
			return fmt.Errorf("update conversation: %w", err)
		}
		return nil
	})
}
