package handler

import (
	"log/slog"

	"github.com/barterverse-backend/internal/chat"
	"github.com/barterverse-backend/internal/server/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ChatHandler serves message history and the conversation inbox over REST.
// Live traffic goes over the websocket; these endpoints exist for catch-up
// after connect and for scrollback.
type ChatHandler struct {
	logger   *slog.Logger
	delivery *chat.DeliveryService
}

// NewChatHandler creates a new chat handler
func NewChatHandler(logger *slog.Logger, delivery *chat.DeliveryService) *ChatHandler {
	return &ChatHandler{logger: logger, delivery: delivery}
}

// Conversations handles GET /api/v1/chat/conversations
func (h *ChatHandler) Conversations(c *gin.Context) {
	conversations, err := h.delivery.Conversations(c.Request.Context(), middleware.CurrentUser(c))
	if err != nil {
		h.logger.Error("Failed to list conversations", "error", err)
		RespondInternalError(c)
		return
	}
	RespondOK(c, conversations)
}

// History handles GET /api/v1/chat/messages/:otherId
func (h *ChatHandler) History(c *gin.Context) {
	otherID, err := uuid.Parse(c.Param("otherId"))
	if err != nil {
		RespondBadRequest(c, "Invalid user ID format")
		return
	}

	var params PaginationParams
	if err := c.ShouldBindQuery(&params); err != nil {
		RespondBadRequest(c, "Invalid pagination parameters: "+err.Error())
		return
	}

	offset := (params.Page - 1) * params.PerPage
	messages, err := h.delivery.History(c.Request.Context(), middleware.CurrentUser(c), otherID, params.PerPage, offset)
	if err != nil {
		h.logger.Error("Failed to load message history", "other_id", otherID, "error", err)
		RespondInternalError(c)
		return
	}
	RespondOK(c, messages)
}
