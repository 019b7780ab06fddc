// Package mongo provides MongoDB implementations of the chat repositories.
// Messages and conversation previews are high-volume append-mostly data, so
// they live in the document store rather than alongside the wallet tables.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/barterverse-backend/internal/domain/chat"
)

const (
	// MessageCollectionName is the name of the message collection in MongoDB
	MessageCollectionName = "messages"
)

// MessageRepository implements the chat.MessageRepository interface for MongoDB
type MessageRepository struct {
	db     *mongo.Database
	logger *slog.Logger
}

// NewMessageRepository creates a new MongoDB message repository
func NewMessageRepository(logger *slog.Logger, db *mongo.Database) chat.MessageRepository {
	return &MessageRepository{
		db:     db,
		logger: logger,
	}
}

// Create stores a new chat message
func (r *MessageRepository) Create(ctx context.Context, msg *chat.Message) error {
	collection := r.db.Collection(MessageCollectionName)

	_, err := collection.InsertOne(ctx, msg)
	if err != nil {
		r.logger.Error("Failed to create message",
			"message_id", msg.ID.String(),
			"error", err)
		return fmt.Errorf("failed to create message: %w", err)
	}

	return nil
}

// GetByID retrieves a message by its ID.
// Returns ErrMessageNotFound if no message exists.
func (r *MessageRepository) GetByID(ctx context.Context, id uuid.UUID) (*chat.Message, error) {
	collection := r.db.Collection(MessageCollectionName)

	filter := bson.M{"_id": id}
	var msg chat.Message
	err := collection.FindOne(ctx, filter).Decode(&msg)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, chat.ErrMessageNotFound{MessageID: id}
		}
		r.logger.Error("Failed to get message",
			"message_id", id.String(),
			"error", err)
		return nil, fmt.Errorf("failed to get message: %w", err)
	}

	return &msg, nil
}

// GetBetween retrieves paginated messages exchanged between two users,
// sorted by creation time in descending order (newest first).
func (r *MessageRepository) GetBetween(ctx context.Context, userA, userB uuid.UUID, limit, offset int) ([]*chat.Message, error) {
	collection := r.db.Collection(MessageCollectionName)

	filter := bson.M{
		"$or": bson.A{
			bson.M{"sender_id": userA, "receiver_id": userB},
			bson.M{"sender_id": userB, "receiver_id": userA},
		},
	}
	opts := findOptions(limit, offset)

	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		r.logger.Error("Failed to get messages",
			"user_a", userA.String(),
			"user_b", userB.String(),
			"error", err)
		return nil, fmt.Errorf("failed to get messages: %w", err)
	}
	defer cursor.Close(ctx)

	var messages []*chat.Message
	if err := cursor.All(ctx, &messages); err != nil {
		r.logger.Error("Failed to decode messages", "error", err)
		return nil, fmt.Errorf("failed to decode messages: %w", err)
	}

	return messages, nil
}

// MarkRead flags every unread message from senderID to receiverID as read,
// stamping read_at, and returns the number of messages updated.
func (r *MessageRepository) MarkRead(ctx context.Context, senderID, receiverID uuid.UUID) (int64, error) {
	collection := r.db.Collection(MessageCollectionName)

	filter := bson.M{
		"sender_id":   senderID,
		"receiver_id": receiverID,
		"is_read":     false,
	}
	update := bson.M{
		"$set": bson.M{
			"is_read": true,
			"read_at": time.Now().UTC(),
		},
	}

	result, err := collection.UpdateMany(ctx, filter, update)
	if err != nil {
		r.logger.Error("Failed to mark messages read",
			"sender_id", senderID.String(),
			"receiver_id", receiverID.String(),
			"error", err)
		return 0, fmt.Errorf("failed to mark messages read: %w", err)
	}

	return result.ModifiedCount, nil
}

// Delete permanently removes a message.
// Returns ErrMessageNotFound if the message doesn't exist.
func (r *MessageRepository) Delete(ctx context.Context, id uuid.UUID) error {
	collection := r.db.Collection(MessageCollectionName)

	result, err := collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		r.logger.Error("Failed to delete message",
			"message_id", id.String(),
			"error", err)
		return fmt.Errorf("failed to delete message: %w", err)
	}

	if result.DeletedCount == 0 {
		return chat.ErrMessageNotFound{MessageID: id}
	}

	return nil
}
