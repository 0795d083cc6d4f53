package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/absurdlabs/postbox/store"
)

// conversationDoc is the persisted form of store.Conversation.
type conversationDoc struct {
	ID             string          `bson:"_id"`
	OwnerID        string          `bson:"owner_id"`
	Subject        string          `bson:"subject"`
	Participants   []store.Address `bson:"participants,omitempty"`
	MessageCount   int64           `bson:"message_count"`
	LastActivityAt time.Time       `bson:"last_activity_at"`
	CreatedAt      time.Time       `bson:"created_at"`
	UpdatedAt      time.Time       `bson:"updated_at"`
}

func conversationToDoc(c *store.Conversation) *conversationDoc {
	return &conversationDoc{
		ID:             c.ID,
		OwnerID:        c.OwnerID,
		Subject:        c.Subject,
		Participants:   c.Participants,
		MessageCount:   c.MessageCount,
		LastActivityAt: c.LastActivityAt,
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
	}
}

func (d *conversationDoc) toConversation() *store.Conversation {
	return &store.Conversation{
		ID:             d.ID,
		OwnerID:        d.OwnerID,
		Subject:        d.Subject,
		Participants:   d.Participants,
		MessageCount:   d.MessageCount,
		LastActivityAt: d.LastActivityAt,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}
}

// CreateConversation persists a new conversation record.
func (s *Store) CreateConversation(ctx context.Context, c *store.Conversation) error {
	if err := s.checkConnected(); err != nil {
		return err
	}
	if c == nil || c.ID == "" {
		return store.ErrInvalidID
	}

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	if _, err := s.conversations.InsertOne(ctx, conversationToDoc(c)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return store.ErrDuplicateEntry
		}
		return fmt.Errorf("insert conversation: %w", err)
	}
	return nil
}

// GetConversation returns the owner's conversation by id.
func (s *Store) GetConversation(ctx context.Context, ownerID, id string) (*store.Conversation, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, store.ErrInvalidID
	}

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var doc conversationDoc
	err := s.conversations.FindOne(ctx, ownerFilter(ownerID, id)).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("find conversation: %w", err)
	}
	return doc.toConversation(), nil
}

// JoinConversation atomically increments the message count, raises
// LastActivityAt, and unions the participants into the conversation's set.
// A single pipeline update keeps concurrent joins from losing effects;
// addresses already present (by email) are filtered out server-side.
func (s *Store) JoinConversation(ctx context.Context, ownerID, id string, participants []store.Address, at time.Time) error {
	if err := s.checkConnected(); err != nil {
		return err
	}
	if id == "" {
		return store.ErrInvalidID
	}

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	incoming := bson.A{}
	for _, a := range participants {
		if a.Email == "" {
			continue
		}
		incoming = append(incoming, bson.M{"email": a.Email, "name": a.Name})
	}

	existing := bson.M{"$ifNull": bson.A{"$participants", bson.A{}}}
	pipeline := bson.A{
		bson.M{"$set": bson.M{
			"message_count":    bson.M{"$add": bson.A{"$message_count", 1}},
			"last_activity_at": bson.M{"$max": bson.A{"$last_activity_at", at}},
			"updated_at":       time.Now().UTC(),
			"participants": bson.M{"$concatArrays": bson.A{
				existing,
				bson.M{"$filter": bson.M{
					"input": incoming,
					"as":    "a",
					"cond": bson.M{"$not": bson.M{"$in": bson.A{
						"$$a.email",
						bson.M{"$ifNull": bson.A{"$participants.email", bson.A{}}},
					}}},
				}},
			}},
		}},
	}

	result, err := s.conversations.UpdateOne(ctx, ownerFilter(ownerID, id), pipeline)
	if err != nil {
		return fmt.Errorf("join conversation: %w", err)
	}
	if result.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}
