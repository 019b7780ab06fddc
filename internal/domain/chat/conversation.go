package chat

import (
	"time"

	"github.com/google/uuid"
)

// Conversation is a directional inbox row: the pair (OwnerID, OtherID) is
// unique per direction, so every delivered message touches two rows, one for
// each participant's view. Rows are created on first contact and only ever
// updated afterwards.
type Conversation struct {
	OwnerID       uuid.UUID `json:"owner_id" bson:"owner_id"`
	OtherID       uuid.UUID `json:"other_id" bson:"other_id"`
	LastMessage   string    `json:"last_message" bson:"last_message"`
	LastMessageAt time.Time `json:"last_message_at" bson:"last_message_at"`
}
