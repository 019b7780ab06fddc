package handler

import (
	"errors"
	"log/slog"

	"github.com/barterverse-backend/internal/domain/profile"
	tradedom "github.com/barterverse-backend/internal/domain/trade"
	"github.com/barterverse-backend/internal/server/middleware"
	"github.com/barterverse-backend/internal/trade"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// TradeHandler serves the trade settlement endpoints
type TradeHandler struct {
	logger  *slog.Logger
	service trade.Service
}

// NewTradeHandler creates a new trade handler
func NewTradeHandler(logger *slog.Logger, service trade.Service) *TradeHandler {
	return &TradeHandler{logger: logger, service: service}
}

// Create handles POST /api/v1/trades
func (h *TradeHandler) Create(c *gin.Context) {
	userID := middleware.CurrentUser(c)

	var req CreateTradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request: "+err.Error())
		return
	}

	responderID, err := uuid.Parse(req.ResponderID)
	if err != nil {
		RespondBadRequest(c, "Invalid responder ID format")
		return
	}
	listingID, err := uuid.Parse(req.ListingID)
	if err != nil {
		RespondBadRequest(c, "Invalid listing ID format")
		return
	}
	var proposedListingID *uuid.UUID
	if req.ProposedListingID != nil {
		id, err := uuid.Parse(*req.ProposedListingID)
		if err != nil {
			RespondBadRequest(c, "Invalid proposed listing ID format")
			return
		}
		proposedListingID = &id
	}

	t, err := h.service.Create(c.Request.Context(), userID, responderID, listingID, proposedListingID, req.CoinAmount, req.Message)
	if err != nil {
		h.respondError(c, err)
		return
	}
	RespondCreated(c, toTradeResponse(t))
}

// GetByID handles GET /api/v1/trades/:id
func (h *TradeHandler) GetByID(c *gin.Context) {
	tradeID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "Invalid trade ID format")
		return
	}

	t, err := h.service.Get(c.Request.Context(), tradeID, middleware.CurrentUser(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	RespondOK(c, toTradeResponse(t))
}

// List handles GET /api/v1/trades
func (h *TradeHandler) List(c *gin.Context) {
	var params PaginationParams
	if err := c.ShouldBindQuery(&params); err != nil {
		RespondBadRequest(c, "Invalid pagination parameters: "+err.Error())
		return
	}

	offset := (params.Page - 1) * params.PerPage
	trades, err := h.service.List(c.Request.Context(), middleware.CurrentUser(c), params.PerPage, offset)
	if err != nil {
		h.respondError(c, err)
		return
	}

	responses := make([]TradeResponse, 0, len(trades))
	for _, t := range trades {
		responses = append(responses, toTradeResponse(t))
	}
	RespondOK(c, responses)
}

// Confirm handles POST /api/v1/trades/:id/confirm
func (h *TradeHandler) Confirm(c *gin.Context) {
	tradeID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "Invalid trade ID format")
		return
	}

	var req ConfirmTradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request: "+err.Error())
		return
	}

	t, err := h.service.Confirm(c.Request.Context(), tradeID, middleware.CurrentUser(c), *req.Accept)
	if err != nil {
		h.respondError(c, err)
		return
	}
	RespondOK(c, toTradeResponse(t))
}

// Complete handles POST /api/v1/trades/:id/complete
func (h *TradeHandler) Complete(c *gin.Context) {
	tradeID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "Invalid trade ID format")
		return
	}

	t, err := h.service.Complete(c.Request.Context(), tradeID, middleware.CurrentUser(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	RespondOK(c, toTradeResponse(t))
}

// Cancel handles POST /api/v1/trades/:id/cancel
func (h *TradeHandler) Cancel(c *gin.Context) {
	tradeID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "Invalid trade ID format")
		return
	}

	t, err := h.service.Cancel(c.Request.Context(), tradeID, middleware.CurrentUser(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	RespondOK(c, toTradeResponse(t))
}

func (h *TradeHandler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, tradedom.ErrSelfTrade),
		errors.Is(err, tradedom.ErrNegativeAmount),
		errors.Is(err, profile.ErrInvalidAmount):
		RespondBadRequest(c, err.Error())
	case errors.Is(err, tradedom.ErrNotResponder),
		errors.Is(err, tradedom.ErrNotParticipant),
		errors.Is(err, tradedom.ErrResponderCancel):
		RespondForbidden(c, err.Error())
	case errors.Is(err, tradedom.ErrTradeNotFound{}),
		errors.Is(err, profile.ErrProfileNotFound{}):
		RespondNotFound(c, err.Error())
	case errors.Is(err, tradedom.ErrInvalidTransition),
		errors.Is(err, profile.ErrInsufficientBalance):
		RespondConflict(c, err.Error())
	default:
		h.logger.Error("Trade operation failed", "error", err, "path", c.Request.URL.Path)
		RespondInternalError(c)
	}
}
