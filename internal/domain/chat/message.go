package chat

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Common errors
var (
	ErrEmptyContent     = errors.New("message content cannot be empty")
	ErrSelfMessage      = errors.New("cannot send a message to yourself")
	ErrNotMessageSender = errors.New("only the sender may delete a message")
)

// Message is a single chat message between two users. Immutable once stored
// except for the read flag (set by the receiver) until the sender deletes it.
type Message struct {
	ID         uuid.UUID  `json:"id" bson:"_id"`
	SenderID   uuid.UUID  `json:"sender_id" bson:"sender_id"`
	ReceiverID uuid.UUID  `json:"receiver_id" bson:"receiver_id"`
	Content    string     `json:"content" bson:"content"`
	IsRead     bool       `json:"is_read" bson:"is_read"`
	ReadAt     *time.Time `json:"read_at,omitempty" bson:"read_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at" bson:"created_at"`
}

// NewMessage validates and builds a message ready for persistence.
// Content is trimmed; a message to oneself or with empty content is rejected.
func NewMessage(senderID, receiverID uuid.UUID, content string) (*Message, error) {
	if senderID == receiverID {
		return nil, ErrSelfMessage
	}

	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyContent
	}

	return &Message{
		ID:         uuid.New(),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    content,
		IsRead:     false,
		CreatedAt:  time.Now().UTC(),
	}, nil
}
