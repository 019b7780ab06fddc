package chat

import (
	"context"

	"github.com/google/uuid"
)

// MessageRepository manages chat message persistence
type MessageRepository interface {
	Create(ctx context.Context, msg *Message) error
	GetByID(ctx context.Context, id uuid.UUID) (*Message, error)
	// GetBetween returns messages exchanged between two users, newest first.
	GetBetween(ctx context.Context, userA, userB uuid.UUID, limit, offset int) ([]*Message, error)
	// MarkRead flags every unread message from senderID to receiverID as read
	// and returns the number of messages updated.
	MarkRead(ctx context.Context, senderID, receiverID uuid.UUID) (int64, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// ConversationRepository manages the directional conversation index
type ConversationRepository interface {
	// Upsert creates or refreshes the (ownerID, otherID) row with the latest
	// message preview. At most one row exists per directional pair.
	Upsert(ctx context.Context, conv *Conversation) error
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*Conversation, error)
}

// ErrMessageNotFound indicates missing chat message
type ErrMessageNotFound struct {
	MessageID uuid.UUID
}

func (e ErrMessageNotFound) Error() string {
	return "message not found: " + e.MessageID.String()
}

// Is implements the errors.Is interface for ErrMessageNotFound
func (e ErrMessageNotFound) Is(target error) bool {
	t, ok := target.(ErrMessageNotFound)
	if !ok {
		return false
	}
	if t.MessageID == uuid.Nil {
		return true
	}
	return e.MessageID == t.MessageID
}
