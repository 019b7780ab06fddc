package ws

import (
	"context"
	"errors"
	"log/slog"

	"github.com/barterverse-backend/internal/chat"
	chatdom "github.com/barterverse-backend/internal/domain/chat"
	"github.com/barterverse-backend/internal/domain/profile"
)

// Error codes reported to clients on failed events
const (
	codeBadEvent     = "BAD_EVENT"
	codeUnknownEvent = "UNKNOWN_EVENT"
	codeInvalid      = "INVALID_PAYLOAD"
	codeNotFound     = "NOT_FOUND"
	codeForbidden    = "FORBIDDEN"
	codeInternal     = "INTERNAL"
)

// Hub dispatches inbound client events to the delivery engine and writes
// acks and errors back to the originating connection. There is one hub for
// the whole process; per-connection state lives in the registry.
type Hub struct {
	delivery *chat.DeliveryService
	presence *chat.PresenceTracker
	logger   *slog.Logger
}

// NewHub creates the event dispatcher
func NewHub(delivery *chat.DeliveryService, presence *chat.PresenceTracker, logger *slog.Logger) *Hub {
	return &Hub{
		delivery: delivery,
		presence: presence,
		logger:   logger,
	}
}

// Serve announces the connection, pumps its frames until it dies and then
// withdraws it. Blocks for the lifetime of the connection.
func (h *Hub) Serve(c *Client) {
	h.presence.HandleConnect(c)
	defer h.presence.HandleDisconnect(c)
	c.Run(h.handleFrame)
}

func (h *Hub) handleFrame(c *Client, data []byte) {
	ctx := context.Background()

	env, err := chat.DecodeEnvelope(data)
	if err != nil {
		h.sendError(c, "", codeBadEvent, err)
		return
	}

	switch env.Type {
	case chat.EventSendMessage:
		h.handleSendMessage(ctx, c, env)
	case chat.EventMarkRead:
		h.handleMarkRead(ctx, c, env)
	case chat.EventTyping:
		h.handleTyping(c, env)
	case chat.EventDeleteMessage:
		h.handleDeleteMessage(ctx, c, env)
	case chat.EventSetViewing:
		h.handleSetViewing(ctx, c, env)
	default:
		h.sendError(c, env.Ref, codeUnknownEvent, chat.ErrUnknownEventType)
	}
}

// handleSendMessage stores and fans out a message, then acks the originating
// connection only. The sender's other connections learn about the message
// from history; only the tab that sent it needs the ref-matched ack.
func (h *Hub) handleSendMessage(ctx context.Context, c *Client, env *chat.Envelope) {
	var p chat.SendMessagePayload
	if err := chat.DecodePayload(env, &p); err != nil {
		h.sendError(c, env.Ref, codeBadEvent, err)
		return
	}

	msg, err := h.delivery.Send(ctx, c.UserID(), p)
	if err != nil {
		h.sendError(c, env.Ref, errorCode(err), err)
		return
	}
	h.push(c, chat.EventMessageSent, env.Ref, msg)
}

func (h *Hub) handleMarkRead(ctx context.Context, c *Client, env *chat.Envelope) {
	var p chat.MarkReadPayload
	if err := chat.DecodePayload(env, &p); err != nil {
		h.sendError(c, env.Ref, codeBadEvent, err)
		return
	}
	if _, err := h.delivery.MarkRead(ctx, c.UserID(), p.SenderID); err != nil {
		h.sendError(c, env.Ref, errorCode(err), err)
	}
}

func (h *Hub) handleTyping(c *Client, env *chat.Envelope) {
	var p chat.TypingPayload
	if err := chat.DecodePayload(env, &p); err != nil {
		h.sendError(c, env.Ref, codeBadEvent, err)
		return
	}
	h.delivery.Typing(c.UserID(), c.Username(), p)
}

func (h *Hub) handleDeleteMessage(ctx context.Context, c *Client, env *chat.Envelope) {
	var p chat.DeleteMessagePayload
	if err := chat.DecodePayload(env, &p); err != nil {
		h.sendError(c, env.Ref, codeBadEvent, err)
		return
	}

	if err := h.delivery.DeleteMessage(ctx, c.UserID(), p.MessageID); err != nil {
		h.sendError(c, env.Ref, errorCode(err), err)
		return
	}
	h.push(c, chat.EventMessageDeleted, env.Ref, chat.MessageDeletedNotice{
		MessageID: p.MessageID,
		SenderID:  c.UserID(),
	})
}

func (h *Hub) handleSetViewing(ctx context.Context, c *Client, env *chat.Envelope) {
	var p chat.SetViewingPayload
	if err := chat.DecodePayload(env, &p); err != nil {
		h.sendError(c, env.Ref, codeBadEvent, err)
		return
	}
	if err := h.delivery.SetViewing(ctx, c.ID(), c.UserID(), p); err != nil {
		h.sendError(c, env.Ref, errorCode(err), err)
	}
}

func (h *Hub) push(c *Client, eventType, ref string, payload interface{}) {
	data, err := chat.NewEnvelope(eventType, ref, payload)
	if err != nil {
		h.logger.Error("Failed to frame event", "type", eventType, "error", err)
		return
	}
	if err := c.Send(data); err != nil {
		h.logger.Warn("Failed to push event",
			"type", eventType,
			"conn_id", c.ID(),
			"error", err)
	}
}

func (h *Hub) sendError(c *Client, ref, code string, err error) {
	h.logger.Debug("Client event failed",
		"conn_id", c.ID(),
		"user_id", c.UserID(),
		"code", code,
		"error", err)
	h.push(c, chat.EventError, ref, chat.ErrorNotice{Code: code, Message: err.Error()})
}

// errorCode maps delivery errors to client-visible codes
func errorCode(err error) string {
	switch {
	case errors.Is(err, chatdom.ErrEmptyContent),
		errors.Is(err, chatdom.ErrSelfMessage):
		return codeInvalid
	case errors.Is(err, profile.ErrProfileNotFound{}),
		errors.Is(err, chatdom.ErrMessageNotFound{}):
		return codeNotFound
	case errors.Is(err, chatdom.ErrNotMessageSender):
		return codeForbidden
	default:
		return codeInternal
	}
}
