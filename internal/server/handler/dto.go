package handler

import (
	"time"

	"github.com/barterverse-backend/internal/domain/ledger"
	"github.com/barterverse-backend/internal/domain/profile"
	"github.com/barterverse-backend/internal/domain/trade"
)

// CreateProfileRequest represents a request to register a new profile
type CreateProfileRequest struct {
	Username       string `json:"username" binding:"required"`
	InitialBalance int64  `json:"initial_balance" binding:"min=0"`
}

// ProfileResponse represents a profile in API responses
type ProfileResponse struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Balance   int64  `json:"balance"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// CoinMutationRequest represents a credit or debit against the caller's wallet
type CoinMutationRequest struct {
	Amount int64  `json:"amount" binding:"required,gt=0"`
	Reason string `json:"reason" binding:"required"`
}

// TransferRequest represents a coin transfer to another user
type TransferRequest struct {
	ToUserID string `json:"to_user_id" binding:"required,uuid"`
	Amount   int64  `json:"amount" binding:"required,gt=0"`
	Reason   string `json:"reason" binding:"required"`
}

// BalanceResponse represents a wallet balance in API responses
type BalanceResponse struct {
	UserID  string `json:"user_id"`
	Balance int64  `json:"balance"`
}

// EntryResponse represents a ledger entry in API responses
type EntryResponse struct {
	ID            string `json:"id"`
	UserID        string `json:"user_id"`
	Amount        int64  `json:"amount"`
	Reason        string `json:"reason"`
	CorrelationID string `json:"correlation_id,omitempty"`
	CreatedAt     string `json:"created_at"`
}

// EntryListResponse is one page of ledger entries. NetChange is the signed
// sum of the wallet's full history.
type EntryListResponse struct {
	Entries   []EntryResponse `json:"entries"`
	NetChange int64           `json:"net_change"`
}

// CreateTradeRequest represents a new trade proposal
type CreateTradeRequest struct {
	ResponderID       string  `json:"responder_id" binding:"required,uuid"`
	ListingID         string  `json:"listing_id" binding:"required,uuid"`
	ProposedListingID *string `json:"proposed_listing_id,omitempty" binding:"omitempty,uuid"`
	CoinAmount        int64   `json:"coin_amount" binding:"min=0"`
	Message           string  `json:"message"`
}

// ConfirmTradeRequest carries the responder's accept or reject decision
type ConfirmTradeRequest struct {
	Accept *bool `json:"accept" binding:"required"`
}

// TradeResponse represents a trade in API responses
type TradeResponse struct {
	ID                string  `json:"id"`
	InitiatorID       string  `json:"initiator_id"`
	ResponderID       string  `json:"responder_id"`
	ListingID         string  `json:"listing_id"`
	ProposedListingID *string `json:"proposed_listing_id,omitempty"`
	CoinAmount        int64   `json:"coin_amount"`
	Message           string  `json:"message,omitempty"`
	Status            string  `json:"status"`
	CreatedAt         string  `json:"created_at"`
	UpdatedAt         string  `json:"updated_at"`
}

// PaginationParams represents pagination parameters for list endpoints
type PaginationParams struct {
	Page    int `form:"page,default=1" binding:"min=1"`
	PerPage int `form:"per_page,default=20" binding:"min=1,max=100"`
}

func toProfileResponse(p *profile.Profile) ProfileResponse {
	return ProfileResponse{
		ID:        p.ID.String(),
		Username:  p.Username,
		Balance:   p.Balance,
		CreatedAt: p.CreatedAt.Format(time.RFC3339),
		UpdatedAt: p.UpdatedAt.Format(time.RFC3339),
	}
}

func toEntryResponse(e *ledger.Entry) EntryResponse {
	return EntryResponse{
		ID:            e.ID.String(),
		UserID:        e.UserID.String(),
		Amount:        e.Amount,
		Reason:        e.Reason,
		CorrelationID: e.CorrelationID,
		CreatedAt:     e.CreatedAt.Format(time.RFC3339),
	}
}

func toTradeResponse(t *trade.Trade) TradeResponse {
	resp := TradeResponse{
		ID:          t.ID.String(),
		InitiatorID: t.InitiatorID.String(),
		ResponderID: t.ResponderID.String(),
		ListingID:   t.ListingID.String(),
		CoinAmount:  t.CoinAmount,
		Message:     t.Message,
		Status:      string(t.Status),
		CreatedAt:   t.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   t.UpdatedAt.Format(time.RFC3339),
	}
	if t.ProposedListingID != nil {
		s := t.ProposedListingID.String()
		resp.ProposedListingID = &s
	}
	return resp
}
