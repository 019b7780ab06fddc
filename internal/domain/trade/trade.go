package trade

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Status defines the trade state machine. A trade starts PENDING, the
// responder moves it to ACCEPTED or REJECTED, and either party completes an
// accepted trade. COMPLETED and REJECTED are terminal.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusAccepted  Status = "ACCEPTED"
	StatusCompleted Status = "COMPLETED"
	StatusRejected  Status = "REJECTED"
)

// Common errors
var (
	ErrSelfTrade         = errors.New("initiator and responder must differ")
	ErrNegativeAmount    = errors.New("coin amount cannot be negative")
	ErrInvalidTransition = errors.New("trade is not in a state that allows this transition")
	ErrNotResponder      = errors.New("only the trade responder may confirm or reject")
	ErrNotParticipant    = errors.New("caller is not a participant of this trade")
	ErrResponderCancel   = errors.New("responder cannot cancel an accepted trade")
)

// Trade is a coin-backed exchange proposal against a listing. The coin amount
// is escrowed from the initiator when the trade is created and released to the
// responder on completion, or refunded on rejection and cancellation.
type Trade struct {
	ID                uuid.UUID  `json:"id"`
	InitiatorID       uuid.UUID  `json:"initiator_id"`
	ResponderID       uuid.UUID  `json:"responder_id"`
	ListingID         uuid.UUID  `json:"listing_id"`
	ProposedListingID *uuid.UUID `json:"proposed_listing_id,omitempty"`
	CoinAmount        int64      `json:"coin_amount"`
	Message           string     `json:"message"`
	Status            Status     `json:"status"`
	Version           int        `json:"version"` // For optimistic locking
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// NewTrade validates and builds a pending trade proposal
func NewTrade(initiatorID, responderID, listingID uuid.UUID, proposedListingID *uuid.UUID, coinAmount int64, message string) (*Trade, error) {
	if initiatorID == responderID {
		return nil, ErrSelfTrade
	}
	if coinAmount < 0 {
		return nil, ErrNegativeAmount
	}

	return &Trade{
		ID:                uuid.New(),
		InitiatorID:       initiatorID,
		ResponderID:       responderID,
		ListingID:         listingID,
		ProposedListingID: proposedListingID,
		CoinAmount:        coinAmount,
		Message:           message,
		Status:            StatusPending,
		Version:           1,
		CreatedAt:         time.Now(),
		UpdatedAt:         time.Now(),
	}, nil
}

// Accept moves a pending trade to ACCEPTED
func (t *Trade) Accept() error {
	if t.Status != StatusPending {
		return ErrInvalidTransition
	}
	t.transition(StatusAccepted)
	return nil
}

// Reject terminates a pending or accepted trade
func (t *Trade) Reject() error {
	if t.Status != StatusPending && t.Status != StatusAccepted {
		return ErrInvalidTransition
	}
	t.transition(StatusRejected)
	return nil
}

// Complete settles an accepted trade
func (t *Trade) Complete() error {
	if t.Status != StatusAccepted {
		return ErrInvalidTransition
	}
	t.transition(StatusCompleted)
	return nil
}

// IsParticipant reports whether the user is the initiator or the responder
func (t *Trade) IsParticipant(userID uuid.UUID) bool {
	return t.InitiatorID == userID || t.ResponderID == userID
}

// IsTerminal reports whether the trade can no longer change state
func (t *Trade) IsTerminal() bool {
	return t.Status == StatusCompleted || t.Status == StatusRejected
}

func (t *Trade) transition(next Status) {
	t.Status = next
	t.UpdatedAt = time.Now()
	t.Version++
}
