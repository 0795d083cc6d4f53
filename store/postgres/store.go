// Package postgres provides a PostgreSQL implementation of store.Store.
//
// Full-text search uses a stored tsvector column with subject weighted
// above body, ranked with ts_rank. The caller owns the database handle;
// Close only marks the store disconnected.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/jmoiron/sqlx"

	"github.com/absurdlabs/postbox/store"
)

// Compile-time checks.
var (
	_ store.Store      = (*Store)(nil)
	_ store.StatsStore = (*Store)(nil)
)

// Store implements store.Store using PostgreSQL.
type Store struct {
	db        *sqlx.DB
	opts      *options
	connected int32
	logger    *slog.Logger

	messages      string
	conversations string
	folders       string
	labels        string
}

// New creates a new PostgreSQL store with the provided database connection.
// Call Connect() to initialize the schema and indexes.
func New(db *sqlx.DB, opts ...Option) *Store {
	o := newOptions(opts...)
	return &Store{
		db:            db,
		opts:          o,
		logger:        o.logger,
		messages:      o.prefix + "_messages",
		conversations: o.prefix + "_conversations",
		folders:       o.prefix + "_folders",
		labels:        o.prefix + "_labels",
	}
}

// NewFromDB creates a new PostgreSQL store from a standard sql.DB
// connection, wrapping it with sqlx.
func NewFromDB(db *sql.DB, opts ...Option) *Store {
	return New(sqlx.NewDb(db, "postgres"), opts...)
}

// Connect initializes the schema and indexes.
func (s *Store) Connect(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&s.connected, 0, 1) {
		return store.ErrAlreadyConnected
	}

	if s.db == nil {
		atomic.StoreInt32(&s.connected, 0)
		return fmt.Errorf("postgres: db is required")
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	if err := s.db.PingContext(ctx); err != nil {
		atomic.StoreInt32(&s.connected, 0)
		return fmt.Errorf("postgres ping: %w", err)
	}

	if err := s.ensureSchema(ctx); err != nil {
		atomic.StoreInt32(&s.connected, 0)
		return fmt.Errorf("ensure schema: %w", err)
	}

	s.logger.Info("connected to PostgreSQL", "prefix", s.opts.prefix)
	return nil
}

// Close marks the store as disconnected.
// The caller is responsible for closing the database connection.
func (s *Store) Close(ctx context.Context) error {
	atomic.StoreInt32(&s.connected, 0)
	return nil
}

// ensureSchema creates the required tables and indexes.
func (s *Store) ensureSchema(ctx context.Context) error {
	createMessages := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id VARCHAR(64) PRIMARY KEY,
			owner_id VARCHAR(255) NOT NULL,
			from_email VARCHAR(320) NOT NULL DEFAULT '',
			from_name VARCHAR(255) NOT NULL DEFAULT '',
			to_addrs JSONB NOT NULL DEFAULT '[]',
			cc_addrs JSONB NOT NULL DEFAULT '[]',
			bcc_addrs JSONB NOT NULL DEFAULT '[]',
			subject TEXT NOT NULL DEFAULT '',
			text_body TEXT NOT NULL DEFAULT '',
			html_body TEXT NOT NULL DEFAULT '',
			attachments JSONB NOT NULL DEFAULT '[]',
			headers JSONB NOT NULL DEFAULT '{}',
			folder VARCHAR(32) NOT NULL DEFAULT 'inbox',
			custom_folder_id VARCHAR(64) NOT NULL DEFAULT '',
			label_ids TEXT[] NOT NULL DEFAULT '{}',
			is_read BOOLEAN NOT NULL DEFAULT FALSE,
			is_starred BOOLEAN NOT NULL DEFAULT FALSE,
			is_draft BOOLEAN NOT NULL DEFAULT FALSE,
			thread_id VARCHAR(64) NOT NULL DEFAULT '',
			reply_to_id VARCHAR(64) NOT NULL DEFAULT '',
			delivery_id VARCHAR(255) NOT NULL DEFAULT '',
			sent_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL,
			search_vec tsvector GENERATED ALWAYS AS (
				setweight(to_tsvector('english', coalesce(subject, '')), 'A') ||
				setweight(to_tsvector('english', coalesce(text_body, '')), 'B')
			) STORED
		)
	`, s.messages)

	createConversations := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id VARCHAR(64) PRIMARY KEY,
			owner_id VARCHAR(255) NOT NULL,
			subject TEXT NOT NULL DEFAULT '',
			participants JSONB NOT NULL DEFAULT '[]',
			message_count BIGINT NOT NULL DEFAULT 0,
			last_activity_at TIMESTAMPTZ NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)
	`, s.conversations)

	createFolders := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id VARCHAR(64) PRIMARY KEY,
			owner_id VARCHAR(255) NOT NULL,
			name VARCHAR(255) NOT NULL,
			color VARCHAR(32) NOT NULL DEFAULT '',
			icon VARCHAR(64) NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL,
			UNIQUE (owner_id, name)
		)
	`, s.folders)

	createLabels := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id VARCHAR(64) PRIMARY KEY,
			owner_id VARCHAR(255) NOT NULL,
			name VARCHAR(255) NOT NULL,
			color VARCHAR(32) NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL,
			UNIQUE (owner_id, name)
		)
	`, s.labels)

	for _, ddl := range []string{createMessages, createConversations, createFolders, createLabels} {
		if _, err := s.db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}

	indexes := []string{
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_owner_folder ON %s(owner_id, folder, created_at DESC, id DESC)`, s.messages, s.messages),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_owner_thread ON %s(owner_id, thread_id, created_at)`, s.messages, s.messages),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_owner_draft ON %s(owner_id, is_draft, created_at DESC)`, s.messages, s.messages),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_labels ON %s USING GIN(label_ids)`, s.messages, s.messages),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_search ON %s USING GIN(search_vec)`, s.messages, s.messages),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_trash ON %s(updated_at) WHERE folder = 'trash'`, s.messages, s.messages),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_owner ON %s(owner_id)`, s.conversations, s.conversations),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_owner_name ON %s(owner_id, name)`, s.folders, s.folders),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_owner_name ON %s(owner_id, name)`, s.labels, s.labels),
	}
	for _, idx := range indexes {
		if _, err := s.db.ExecContext(ctx, idx); err != nil {
			s.logger.Warn("failed to create index", "error", err, "sql", idx)
		}
	}
	return nil
}

// checkConnected returns an error if the store is not connected.
func (s *Store) checkConnected() error {
	if atomic.LoadInt32(&s.connected) == 0 {
		return store.ErrNotConnected
	}
	return nil
}

// opCtx applies the per-operation timeout.
func (s *Store) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.opts.timeout)
}
