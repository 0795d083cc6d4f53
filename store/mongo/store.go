// Package mongo provides a MongoDB implementation of store.Store.
//
// Full-text search uses a text index over subject and body with subject
// weighted higher, ranked with textScore. The caller owns the client;
// Close only marks the store disconnected.
package mongo

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	mongoopts "go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/absurdlabs/postbox/store"
)

// Compile-time checks.
var (
	_ store.Store      = (*Store)(nil)
	_ store.StatsStore = (*Store)(nil)
)

// Store implements store.Store using MongoDB.
type Store struct {
	client    *mongo.Client
	db        *mongo.Database
	opts      *options
	connected int32
	logger    *slog.Logger

	messages      *mongo.Collection
	conversations *mongo.Collection
	folders       *mongo.Collection
	labels        *mongo.Collection
}

// New creates a new MongoDB store with the provided client.
// Call Connect() to initialize the collections and indexes.
func New(client *mongo.Client, opts ...Option) *Store {
	o := newOptions(opts...)
	return &Store{
		client: client,
		opts:   o,
		logger: o.logger,
	}
}

// Connect initializes the database, collections, and indexes.
func (s *Store) Connect(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&s.connected, 0, 1) {
		return store.ErrAlreadyConnected
	}

	if s.client == nil {
		atomic.StoreInt32(&s.connected, 0)
		return fmt.Errorf("mongo: client is required")
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	if err := s.client.Ping(ctx, nil); err != nil {
		atomic.StoreInt32(&s.connected, 0)
		return fmt.Errorf("mongo ping: %w", err)
	}

	s.db = s.client.Database(s.opts.database)
	s.messages = s.db.Collection(messagesCollection)
	s.conversations = s.db.Collection(conversationsCollection)
	s.folders = s.db.Collection(foldersCollection)
	s.labels = s.db.Collection(labelsCollection)

	if err := s.ensureIndexes(ctx); err != nil {
		atomic.StoreInt32(&s.connected, 0)
		return fmt.Errorf("ensure indexes: %w", err)
	}

	s.logger.Info("connected to MongoDB", "database", s.opts.database)
	return nil
}

// Close marks the store as disconnected.
// The caller is responsible for closing the MongoDB client.
func (s *Store) Close(ctx context.Context) error {
	atomic.StoreInt32(&s.connected, 0)
	return nil
}

func (s *Store) checkConnected() error {
	if atomic.LoadInt32(&s.connected) == 0 {
		return store.ErrNotConnected
	}
	return nil
}

// opCtx bounds one storage operation with the configured timeout.
func (s *Store) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.opts.timeout)
}

// ensureIndexes creates required indexes.
func (s *Store) ensureIndexes(ctx context.Context) error {
	messageIndexes := []mongo.IndexModel{
		// Listing: owner scoped, newest first.
		{Keys: bson.D{
			bson.E{Key: "owner_id", Value: 1},
			bson.E{Key: "created_at", Value: -1},
		}},
		// Folder listing.
		{Keys: bson.D{
			bson.E{Key: "owner_id", Value: 1},
			bson.E{Key: "folder", Value: 1},
			bson.E{Key: "created_at", Value: -1},
		}},
		// Conversation membership.
		{Keys: bson.D{
			bson.E{Key: "owner_id", Value: 1},
			bson.E{Key: "thread_id", Value: 1},
		}},
		// Label membership (multikey).
		{Keys: bson.D{
			bson.E{Key: "owner_id", Value: 1},
			bson.E{Key: "label_ids", Value: 1},
		}},
		// Trash expiry sweep.
		{Keys: bson.D{
			bson.E{Key: "folder", Value: 1},
			bson.E{Key: "updated_at", Value: 1},
		}},
		// Full-text search over subject and body, subject weighted higher.
		{
			Keys: bson.D{
				bson.E{Key: "subject", Value: "text"},
				bson.E{Key: "text_body", Value: "text"},
			},
			Options: mongoopts.Index().SetWeights(bson.M{
				"subject":   4,
				"text_body": 1,
			}),
		},
	}
	if _, err := s.messages.Indexes().CreateMany(ctx, messageIndexes); err != nil {
		return fmt.Errorf("message indexes: %w", err)
	}

	convIndexes := []mongo.IndexModel{
		{Keys: bson.D{
			bson.E{Key: "owner_id", Value: 1},
			bson.E{Key: "last_activity_at", Value: -1},
		}},
	}
	if _, err := s.conversations.Indexes().CreateMany(ctx, convIndexes); err != nil {
		return fmt.Errorf("conversation indexes: %w", err)
	}

	// Names are unique per owner.
	nameUnique := []mongo.IndexModel{
		{
			Keys: bson.D{
				bson.E{Key: "owner_id", Value: 1},
				bson.E{Key: "name", Value: 1},
			},
			Options: mongoopts.Index().SetUnique(true),
		},
	}
	if _, err := s.folders.Indexes().CreateMany(ctx, nameUnique); err != nil {
		return fmt.Errorf("folder indexes: %w", err)
	}
	if _, err := s.labels.Indexes().CreateMany(ctx, nameUnique); err != nil {
		return fmt.Errorf("label indexes: %w", err)
	}
	return nil
}
