// Package cached provides a Redis read-through cache decorator for
// store.Store. Single-record reads (messages, conversations) are cached;
// list and search queries always hit the underlying store. Cache failures
// are soft: the decorator logs and serves from the backend.
package cached

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/absurdlabs/postbox/store"
)

// Compile-time checks.
var (
	_ store.Store      = (*Store)(nil)
	_ store.StatsStore = (*Store)(nil)
)

// Store decorates a store.Store with a Redis cache.
type Store struct {
	inner  store.Store
	client redis.UniversalClient
	opts   *options
	logger *slog.Logger
}

// New creates a cached store wrapping inner. The caller owns the Redis
// client.
func New(inner store.Store, client redis.UniversalClient, opts ...Option) *Store {
	o := newOptions(opts...)
	return &Store{
		inner:  inner,
		client: client,
		opts:   o,
		logger: o.logger,
	}
}

// Connect connects the wrapped store and verifies the Redis connection.
func (s *Store) Connect(ctx context.Context) error {
	if s.client == nil {
		return fmt.Errorf("cached: redis client is required")
	}
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return s.inner.Connect(ctx)
}

// Close closes the wrapped store. The caller owns the Redis client.
func (s *Store) Close(ctx context.Context) error {
	return s.inner.Close(ctx)
}

func (s *Store) messageKey(ownerID, id string) string {
	return fmt.Sprintf("%s:msg:%s:%s", s.opts.prefix, ownerID, id)
}

func (s *Store) conversationKey(ownerID, id string) string {
	return fmt.Sprintf("%s:conv:%s:%s", s.opts.prefix, ownerID, id)
}

// cacheSet stores a JSON-encoded record. Failures are logged, not returned.
func (s *Store) cacheSet(ctx context.Context, key string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		s.logger.Warn("cache encode failed", "key", key, "error", err)
		return
	}
	if err := s.client.Set(ctx, key, data, s.opts.ttl).Err(); err != nil {
		s.logger.Warn("cache set failed", "key", key, "error", err)
	}
}

// cacheGet loads a JSON-encoded record. A miss or failure returns false.
func (s *Store) cacheGet(ctx context.Context, key string, v any) bool {
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn("cache get failed", "key", key, "error", err)
		}
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		s.logger.Warn("cache decode failed", "key", key, "error", err)
		return false
	}
	return true
}

func (s *Store) cacheDel(ctx context.Context, keys ...string) {
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		s.logger.Warn("cache delete failed", "keys", keys, "error", err)
	}
}

// invalidatePattern drops every cached key matching the pattern. Used after
// batch mutations whose affected ids are unknown.
func (s *Store) invalidatePattern(ctx context.Context, pattern string) {
	iter := s.client.Scan(ctx, 0, pattern, 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		s.logger.Warn("cache scan failed", "pattern", pattern, "error", err)
		return
	}
	if len(keys) > 0 {
		s.cacheDel(ctx, keys...)
	}
}

// GetMessage serves from cache when possible.
func (s *Store) GetMessage(ctx context.Context, ownerID, id string) (*store.Message, error) {
	key := s.messageKey(ownerID, id)

	var cached store.Message
	if s.cacheGet(ctx, key, &cached) {
		return &cached, nil
	}

	m, err := s.inner.GetMessage(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	s.cacheSet(ctx, key, m)
	return m, nil
}

// ViewMessage always hits the backend (it may mutate) and refreshes the
// cache with the result.
func (s *Store) ViewMessage(ctx context.Context, ownerID, id string) (*store.Message, bool, error) {
	m, flipped, err := s.inner.ViewMessage(ctx, ownerID, id)
	if err != nil {
		return nil, false, err
	}
	s.cacheSet(ctx, s.messageKey(ownerID, id), m)
	return m, flipped, nil
}

func (s *Store) FindMessages(ctx context.Context, ownerID string, filter store.MessageFilter, page store.Page) (*store.MessageList, error) {
	return s.inner.FindMessages(ctx, ownerID, filter, page)
}

func (s *Store) SearchMessages(ctx context.Context, ownerID string, q store.SearchQuery) (*store.MessageList, error) {
	return s.inner.SearchMessages(ctx, ownerID, q)
}

func (s *Store) ConversationMessages(ctx context.Context, ownerID, threadID string) ([]*store.Message, error) {
	return s.inner.ConversationMessages(ctx, ownerID, threadID)
}

func (s *Store) CreateMessage(ctx context.Context, m *store.Message) error {
	return s.inner.CreateMessage(ctx, m)
}

// UpdateMessage refreshes the cache with the updated record.
func (s *Store) UpdateMessage(ctx context.Context, ownerID, id string, upd store.MessageUpdate) (*store.Message, error) {
	m, err := s.inner.UpdateMessage(ctx, ownerID, id, upd)
	if err != nil {
		return nil, err
	}
	s.cacheSet(ctx, s.messageKey(ownerID, id), m)
	return m, nil
}

// UpdateDraft refreshes the cache with the updated record.
func (s *Store) UpdateDraft(ctx context.Context, ownerID, id string, content store.DraftContent) (*store.Message, error) {
	m, err := s.inner.UpdateDraft(ctx, ownerID, id, content)
	if err != nil {
		return nil, err
	}
	s.cacheSet(ctx, s.messageKey(ownerID, id), m)
	return m, nil
}

// SoftDeleteMessage refreshes the cache with the trashed record.
func (s *Store) SoftDeleteMessage(ctx context.Context, ownerID, id string) (*store.Message, error) {
	m, err := s.inner.SoftDeleteMessage(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	s.cacheSet(ctx, s.messageKey(ownerID, id), m)
	return m, nil
}

// HardDeleteMessage drops the cached record.
func (s *Store) HardDeleteMessage(ctx context.Context, ownerID, id string) error {
	if err := s.inner.HardDeleteMessage(ctx, ownerID, id); err != nil {
		return err
	}
	s.cacheDel(ctx, s.messageKey(ownerID, id))
	return nil
}

// ClearLabel invalidates the owner's cached messages; the affected ids are
// unknown.
func (s *Store) ClearLabel(ctx context.Context, ownerID, labelID string) (int64, error) {
	n, err := s.inner.ClearLabel(ctx, ownerID, labelID)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.invalidatePattern(ctx, fmt.Sprintf("%s:msg:%s:*", s.opts.prefix, ownerID))
	}
	return n, nil
}

// RelocateFolderMessages invalidates the owner's cached messages.
func (s *Store) RelocateFolderMessages(ctx context.Context, ownerID, customFolderID, toFolder string) (int64, error) {
	n, err := s.inner.RelocateFolderMessages(ctx, ownerID, customFolderID, toFolder)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.invalidatePattern(ctx, fmt.Sprintf("%s:msg:%s:*", s.opts.prefix, ownerID))
	}
	return n, nil
}

// PurgeExpiredTrash spans owners, so it invalidates all cached messages.
func (s *Store) PurgeExpiredTrash(ctx context.Context, cutoff time.Time, limit int) (int64, error) {
	n, err := s.inner.PurgeExpiredTrash(ctx, cutoff, limit)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.invalidatePattern(ctx, fmt.Sprintf("%s:msg:*", s.opts.prefix))
	}
	return n, nil
}

func (s *Store) CreateConversation(ctx context.Context, c *store.Conversation) error {
	return s.inner.CreateConversation(ctx, c)
}

// GetConversation serves from cache when possible.
func (s *Store) GetConversation(ctx context.Context, ownerID, id string) (*store.Conversation, error) {
	key := s.conversationKey(ownerID, id)

	var cached store.Conversation
	if s.cacheGet(ctx, key, &cached) {
		return &cached, nil
	}

	c, err := s.inner.GetConversation(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	s.cacheSet(ctx, key, c)
	return c, nil
}

// JoinConversation drops the cached record rather than recomputing it.
func (s *Store) JoinConversation(ctx context.Context, ownerID, id string, participants []store.Address, at time.Time) error {
	if err := s.inner.JoinConversation(ctx, ownerID, id, participants, at); err != nil {
		return err
	}
	s.cacheDel(ctx, s.conversationKey(ownerID, id))
	return nil
}

// Folder and label registries are small and change rarely; they pass
// through uncached.

func (s *Store) CreateFolder(ctx context.Context, f *store.Folder) error {
	return s.inner.CreateFolder(ctx, f)
}

func (s *Store) GetFolder(ctx context.Context, ownerID, id string) (*store.Folder, error) {
	return s.inner.GetFolder(ctx, ownerID, id)
}

func (s *Store) ListFolders(ctx context.Context, ownerID string) ([]*store.Folder, error) {
	return s.inner.ListFolders(ctx, ownerID)
}

func (s *Store) DeleteFolder(ctx context.Context, ownerID, id string) error {
	return s.inner.DeleteFolder(ctx, ownerID, id)
}

func (s *Store) CreateLabel(ctx context.Context, l *store.Label) error {
	return s.inner.CreateLabel(ctx, l)
}

func (s *Store) GetLabel(ctx context.Context, ownerID, id string) (*store.Label, error) {
	return s.inner.GetLabel(ctx, ownerID, id)
}

func (s *Store) ListLabels(ctx context.Context, ownerID string) ([]*store.Label, error) {
	return s.inner.ListLabels(ctx, ownerID)
}

func (s *Store) DeleteLabel(ctx context.Context, ownerID, id string) error {
	return s.inner.DeleteLabel(ctx, ownerID, id)
}

// MailboxStats delegates to the wrapped store's stats capability. When the
// wrapped store has none it reports store.ErrStatsUnsupported so the client
// can fall back to count-only queries.
func (s *Store) MailboxStats(ctx context.Context, ownerID string) (*store.MailboxStats, error) {
	ss, ok := s.inner.(store.StatsStore)
	if !ok {
		return nil, store.ErrStatsUnsupported
	}
	return ss.MailboxStats(ctx, ownerID)
}
