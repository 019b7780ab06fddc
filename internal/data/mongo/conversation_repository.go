package mongo

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/barterverse-backend/internal/domain/chat"
)

const (
	// ConversationCollectionName is the name of the conversation collection in MongoDB
	ConversationCollectionName = "conversations"
)

// ConversationRepository implements the chat.ConversationRepository interface
// for MongoDB. The (owner_id, other_id) pair is the upsert key, so each
// directional row exists at most once.
type ConversationRepository struct {
	db     *mongo.Database
	logger *slog.Logger
}

// NewConversationRepository creates a new MongoDB conversation repository
func NewConversationRepository(logger *slog.Logger, db *mongo.Database) chat.ConversationRepository {
	return &ConversationRepository{
		db:     db,
		logger: logger,
	}
}

// Upsert creates or refreshes the directional conversation row
func (r *ConversationRepository) Upsert(ctx context.Context, conv *chat.Conversation) error {
	collection := r.db.Collection(ConversationCollectionName)

	filter := bson.M{
		"owner_id": conv.OwnerID,
		"other_id": conv.OtherID,
	}
	update := bson.M{
		"$set": bson.M{
			"last_message":    conv.LastMessage,
			"last_message_at": conv.LastMessageAt,
		},
		"$setOnInsert": bson.M{
			"owner_id": conv.OwnerID,
			"other_id": conv.OtherID,
		},
	}
	opts := options.Update().SetUpsert(true)

	_, err := collection.UpdateOne(ctx, filter, update, opts)
	if err != nil {
		r.logger.Error("Failed to upsert conversation",
			"owner_id", conv.OwnerID.String(),
			"other_id", conv.OtherID.String(),
			"error", err)
		return fmt.Errorf("failed to upsert conversation: %w", err)
	}

	return nil
}

// ListByOwner retrieves the owner's conversations, most recent activity first
func (r *ConversationRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*chat.Conversation, error) {
	collection := r.db.Collection(ConversationCollectionName)

	filter := bson.M{"owner_id": ownerID}
	opts := options.Find().SetSort(bson.M{"last_message_at": -1})

	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		r.logger.Error("Failed to list conversations",
			"owner_id", ownerID.String(),
			"error", err)
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer cursor.Close(ctx)

	var conversations []*chat.Conversation
	if err := cursor.All(ctx, &conversations); err != nil {
		r.logger.Error("Failed to decode conversations",
			"owner_id", ownerID.String(),
			"error", err)
		return nil, fmt.Errorf("failed to decode conversations: %w", err)
	}

	return conversations, nil
}
