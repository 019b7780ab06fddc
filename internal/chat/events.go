package chat

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	chatdom "github.com/barterverse-backend/internal/domain/chat"
	"github.com/google/uuid"
)

// Client-to-server event types
const (
	EventSendMessage   = "send_message"
	EventMarkRead      = "mark_read"
	EventTyping        = "typing"
	EventDeleteMessage = "delete_message"
	EventSetViewing    = "set_viewing"
)

// Server-to-client event types
const (
	EventNewMessage     = "new_message"
	EventMessageSent    = "message_sent"
	EventMessagesRead   = "messages_read"
	EventMessageDeleted = "message_deleted"
	EventUserOnline     = "user_online"
	EventUserOffline    = "user_offline"
	EventUserViewing    = "user_viewing_conversation"
	EventCoinUpdate     = "coin_update"
	EventError          = "error"
)

// ErrUnknownEventType is returned for envelope types not handled by the hub
var ErrUnknownEventType = errors.New("unknown event type")

// Envelope frames every websocket message in both directions. Ref is an
// opaque client token echoed back on acks and errors so the client can match
// responses to requests.
type Envelope struct {
	Type    string          `json:"type"`
	Ref     string          `json:"ref,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// SendMessagePayload asks for a message to be delivered to another user
type SendMessagePayload struct {
	ReceiverID uuid.UUID `json:"receiver_id"`
	Content    string    `json:"content"`
}

// MarkReadPayload marks every unread message from SenderID to the caller as read
type MarkReadPayload struct {
	SenderID uuid.UUID `json:"sender_id"`
}

// TypingPayload forwards a typing indicator to the receiver. Not persisted.
type TypingPayload struct {
	ReceiverID uuid.UUID `json:"receiver_id"`
	IsTyping   bool      `json:"is_typing"`
}

// DeleteMessagePayload asks for a previously sent message to be removed
type DeleteMessagePayload struct {
	MessageID uuid.UUID `json:"message_id"`
}

// SetViewingPayload records which conversation this connection has open.
// A nil OtherID clears the state.
type SetViewingPayload struct {
	OtherID *uuid.UUID `json:"other_id"`
}

// TypingNotice is pushed to the receiver's connections
type TypingNotice struct {
	SenderID uuid.UUID `json:"sender_id"`
	Username string    `json:"username"`
	IsTyping bool      `json:"is_typing"`
}

// MessagesReadNotice tells the original sender their messages were read
type MessagesReadNotice struct {
	ReaderID uuid.UUID `json:"reader_id"`
	Count    int64     `json:"count"`
}

// MessageDeletedNotice tells the receiver a message was removed
type MessageDeletedNotice struct {
	MessageID uuid.UUID `json:"message_id"`
	SenderID  uuid.UUID `json:"sender_id"`
}

// PresenceNotice announces a user going online or offline. Timestamp marks
// the transition; LastSeen is only set on the offline notice.
type PresenceNotice struct {
	UserID    uuid.UUID  `json:"user_id"`
	Username  string     `json:"username"`
	Timestamp time.Time  `json:"timestamp"`
	LastSeen  *time.Time `json:"last_seen,omitempty"`
}

// ViewingNotice tells a user the other party opened or left their
// conversation
type ViewingNotice struct {
	ViewerID  uuid.UUID `json:"viewer_id"`
	IsViewing bool      `json:"is_viewing"`
}

// ErrorNotice reports a failed client event
type ErrorNotice struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewEnvelope marshals a typed payload into a framed envelope
func NewEnvelope(eventType, ref string, payload interface{}) ([]byte, error) {
	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
		}
		raw = data
	}
	return json.Marshal(Envelope{Type: eventType, Ref: ref, Payload: raw})
}

// DecodeEnvelope parses an inbound frame
func DecodeEnvelope(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("malformed event frame: %w", err)
	}
	if env.Type == "" {
		return nil, fmt.Errorf("%w: missing type", ErrUnknownEventType)
	}
	return &env, nil
}

// DecodePayload parses an envelope payload into the given struct
func DecodePayload(env *Envelope, dst interface{}) error {
	if len(env.Payload) == 0 {
		return fmt.Errorf("event %s requires a payload", env.Type)
	}
	if err := json.Unmarshal(env.Payload, dst); err != nil {
		return fmt.Errorf("malformed %s payload: %w", env.Type, err)
	}
	return nil
}

// NewMessageEnvelope frames a stored message for push delivery
func NewMessageEnvelope(msg *chatdom.Message) ([]byte, error) {
	return NewEnvelope(EventNewMessage, "", msg)
}
