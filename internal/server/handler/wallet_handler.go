package handler

import (
	"errors"
	"log/slog"

	ledgerdom "github.com/barterverse-backend/internal/domain/ledger"
	"github.com/barterverse-backend/internal/domain/profile"
	"github.com/barterverse-backend/internal/ledger"
	"github.com/barterverse-backend/internal/server/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// WalletHandler serves the coin wallet endpoints
type WalletHandler struct {
	logger  *slog.Logger
	service ledger.Service
}

// NewWalletHandler creates a new wallet handler
func NewWalletHandler(logger *slog.Logger, service ledger.Service) *WalletHandler {
	return &WalletHandler{logger: logger, service: service}
}

// GetBalance handles GET /api/v1/wallet
func (h *WalletHandler) GetBalance(c *gin.Context) {
	userID := middleware.CurrentUser(c)

	balance, err := h.service.GetBalance(c.Request.Context(), userID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	RespondOK(c, BalanceResponse{UserID: userID.String(), Balance: balance})
}

// GetEntries handles GET /api/v1/wallet/entries
func (h *WalletHandler) GetEntries(c *gin.Context) {
	userID := middleware.CurrentUser(c)

	var params PaginationParams
	if err := c.ShouldBindQuery(&params); err != nil {
		RespondBadRequest(c, "Invalid pagination parameters: "+err.Error())
		return
	}

	offset := (params.Page - 1) * params.PerPage
	page, err := h.service.Entries(c.Request.Context(), userID, params.PerPage, offset)
	if err != nil {
		h.respondError(c, err)
		return
	}

	responses := make([]EntryResponse, 0, len(page.Entries))
	for _, entry := range page.Entries {
		responses = append(responses, toEntryResponse(entry))
	}
	RespondWithPaginatedData(c, 200, EntryListResponse{
		Entries:   responses,
		NetChange: page.Net,
	}, params.Page, params.PerPage, int(page.Total))
}

// GetEntry handles GET /api/v1/wallet/entries/:id
func (h *WalletHandler) GetEntry(c *gin.Context) {
	entryID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "Invalid entry ID format")
		return
	}

	entry, err := h.service.Entry(c.Request.Context(), middleware.CurrentUser(c), entryID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	RespondOK(c, toEntryResponse(entry))
}

// Credit handles POST /api/v1/wallet/credit
func (h *WalletHandler) Credit(c *gin.Context) {
	userID := middleware.CurrentUser(c)

	var req CoinMutationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request: "+err.Error())
		return
	}

	balance, err := h.service.Credit(c.Request.Context(), userID, req.Amount, req.Reason)
	if err != nil {
		h.respondError(c, err)
		return
	}
	RespondOK(c, BalanceResponse{UserID: userID.String(), Balance: balance})
}

// Debit handles POST /api/v1/wallet/debit
func (h *WalletHandler) Debit(c *gin.Context) {
	userID := middleware.CurrentUser(c)

	var req CoinMutationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request: "+err.Error())
		return
	}

	balance, err := h.service.Debit(c.Request.Context(), userID, req.Amount, req.Reason)
	if err != nil {
		h.respondError(c, err)
		return
	}
	RespondOK(c, BalanceResponse{UserID: userID.String(), Balance: balance})
}

// Transfer handles POST /api/v1/wallet/transfer
func (h *WalletHandler) Transfer(c *gin.Context) {
	userID := middleware.CurrentUser(c)

	var req TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request: "+err.Error())
		return
	}

	toUserID, err := uuid.Parse(req.ToUserID)
	if err != nil {
		RespondBadRequest(c, "Invalid recipient ID format")
		return
	}

	balance, err := h.service.Transfer(c.Request.Context(), userID, toUserID, req.Amount, req.Reason)
	if err != nil {
		h.respondError(c, err)
		return
	}
	RespondOK(c, BalanceResponse{UserID: userID.String(), Balance: balance})
}

func (h *WalletHandler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, profile.ErrInvalidAmount), errors.Is(err, ledgerdom.ErrSameParty):
		RespondBadRequest(c, err.Error())
	case errors.Is(err, profile.ErrProfileNotFound{}),
		errors.Is(err, ledgerdom.ErrEntryNotFound{}):
		RespondNotFound(c, err.Error())
	case errors.Is(err, profile.ErrInsufficientBalance):
		RespondConflict(c, err.Error())
	default:
		h.logger.Error("Wallet operation failed", "error", err, "path", c.Request.URL.Path)
		RespondInternalError(c)
	}
}
