package chat

import (
	"context"
	"log/slog"
	"time"

	chatdom "github.com/barterverse-backend/internal/domain/chat"
	"github.com/barterverse-backend/internal/domain/profile"
	"github.com/google/uuid"
)

// DeliveryService persists chat messages and fans them out to live
// connections. Persistence is authoritative: a message is stored first and
// push failures never fail the operation, offline receivers simply catch up
// from history.
type DeliveryService struct {
	registry      *Registry
	messages      chatdom.MessageRepository
	conversations chatdom.ConversationRepository
	profiles      profile.Repository
	logger        *slog.Logger
}

// NewDeliveryService creates the message delivery engine
func NewDeliveryService(
	registry *Registry,
	messages chatdom.MessageRepository,
	conversations chatdom.ConversationRepository,
	profiles profile.Repository,
	logger *slog.Logger,
) *DeliveryService {
	return &DeliveryService{
		registry:      registry,
		messages:      messages,
		conversations: conversations,
		profiles:      profiles,
		logger:        logger,
	}
}

// Send stores a message and pushes it to every connection of the receiver.
// When the receiver currently has the conversation open the message is stored
// already read. The stored message is returned for the sender's ack.
func (s *DeliveryService) Send(ctx context.Context, senderID uuid.UUID, p SendMessagePayload) (*chatdom.Message, error) {
	msg, err := chatdom.NewMessage(senderID, p.ReceiverID, p.Content)
	if err != nil {
		return nil, err
	}

	if _, err := s.profiles.GetByID(ctx, p.ReceiverID); err != nil {
		return nil, err
	}

	if s.registry.IsViewing(p.ReceiverID, senderID) {
		now := time.Now().UTC()
		msg.IsRead = true
		msg.ReadAt = &now
	}

	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, err
	}
	s.touchConversations(ctx, msg)

	data, err := NewMessageEnvelope(msg)
	if err != nil {
		s.logger.Error("Failed to frame message for push", "message_id", msg.ID, "error", err)
		return msg, nil
	}
	delivered := s.registry.SendToUser(msg.ReceiverID, data)

	s.logger.Info("Message delivered",
		"message_id", msg.ID,
		"sender_id", msg.SenderID,
		"receiver_id", msg.ReceiverID,
		"pushed", delivered)
	return msg, nil
}

// MarkRead flags every unread message from senderID to readerID as read and
// notifies the sender's connections. Returns the number of messages updated.
func (s *DeliveryService) MarkRead(ctx context.Context, readerID, senderID uuid.UUID) (int64, error) {
	count, err := s.messages.MarkRead(ctx, senderID, readerID)
	if err != nil {
		return 0, err
	}
	if count == 0 {
		return 0, nil
	}

	data, err := NewEnvelope(EventMessagesRead, "", MessagesReadNotice{ReaderID: readerID, Count: count})
	if err != nil {
		s.logger.Error("Failed to frame read notice", "error", err)
		return count, nil
	}
	s.registry.SendToUser(senderID, data)
	return count, nil
}

// Typing forwards a typing indicator to the receiver's connections.
// Indicators are fire-and-forget; nothing is stored.
func (s *DeliveryService) Typing(senderID uuid.UUID, username string, p TypingPayload) {
	data, err := NewEnvelope(EventTyping, "", TypingNotice{SenderID: senderID, Username: username, IsTyping: p.IsTyping})
	if err != nil {
		s.logger.Error("Failed to frame typing notice", "error", err)
		return
	}
	s.registry.SendToUser(p.ReceiverID, data)
}

// DeleteMessage removes a message the caller sent and notifies the receiver
func (s *DeliveryService) DeleteMessage(ctx context.Context, callerID, messageID uuid.UUID) error {
	msg, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return err
	}
	if msg.SenderID != callerID {
		return chatdom.ErrNotMessageSender
	}

	if err := s.messages.Delete(ctx, messageID); err != nil {
		return err
	}

	data, err := NewEnvelope(EventMessageDeleted, "", MessageDeletedNotice{
		MessageID: messageID,
		SenderID:  msg.SenderID,
	})
	if err != nil {
		s.logger.Error("Failed to frame delete notice", "error", err)
		return nil
	}
	s.registry.SendToUser(msg.ReceiverID, data)
	return nil
}

// SetViewing records which conversation a connection has open. Opening a
// conversation marks its unread messages read immediately; the other party
// is told the viewer arrived or left.
func (s *DeliveryService) SetViewing(ctx context.Context, connID string, userID uuid.UUID, p SetViewingPayload) error {
	prev := s.registry.SetViewing(connID, p.OtherID)
	if prev != nil && (p.OtherID == nil || *p.OtherID != *prev) {
		s.notifyViewing(*prev, userID, false)
	}
	if p.OtherID == nil {
		return nil
	}
	if prev == nil || *prev != *p.OtherID {
		s.notifyViewing(*p.OtherID, userID, true)
	}
	_, err := s.MarkRead(ctx, userID, *p.OtherID)
	return err
}

func (s *DeliveryService) notifyViewing(targetID, viewerID uuid.UUID, viewing bool) {
	data, err := NewEnvelope(EventUserViewing, "", ViewingNotice{ViewerID: viewerID, IsViewing: viewing})
	if err != nil {
		s.logger.Error("Failed to frame viewing notice", "error", err)
		return
	}
	s.registry.SendToUser(targetID, data)
}

// History returns the message history between the caller and another user,
// newest first
func (s *DeliveryService) History(ctx context.Context, userID, otherID uuid.UUID, limit, offset int) ([]*chatdom.Message, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	if offset < 0 {
		offset = 0
	}
	return s.messages.GetBetween(ctx, userID, otherID, limit, offset)
}

// Conversations returns the caller's inbox sorted by recency
func (s *DeliveryService) Conversations(ctx context.Context, userID uuid.UUID) ([]*chatdom.Conversation, error) {
	return s.conversations.ListByOwner(ctx, userID)
}

// touchConversations refreshes both directional inbox rows. Failures are
// logged and swallowed: the message itself is already stored.
func (s *DeliveryService) touchConversations(ctx context.Context, msg *chatdom.Message) {
	for _, conv := range []*chatdom.Conversation{
		{OwnerID: msg.SenderID, OtherID: msg.ReceiverID, LastMessage: msg.Content, LastMessageAt: msg.CreatedAt},
		{OwnerID: msg.ReceiverID, OtherID: msg.SenderID, LastMessage: msg.Content, LastMessageAt: msg.CreatedAt},
	} {
		if err := s.conversations.Upsert(ctx, conv); err != nil {
			s.logger.Error("Failed to upsert conversation",
				"owner_id", conv.OwnerID,
				"other_id", conv.OtherID,
				"error", err)
		}
	}
}
