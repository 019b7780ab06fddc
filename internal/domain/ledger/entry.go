package ledger

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrSameParty is returned when a transfer names the same user on both sides
var ErrSameParty = errors.New("transfer requires two distinct parties")

// Entry represents a single signed balance change. Entries are append-only:
// they are written in the same database transaction as the balance mutation
// they describe and are never updated or deleted afterwards.
type Entry struct {
	ID            uuid.UUID `json:"id"`
	UserID        uuid.UUID `json:"user_id"`
	Amount        int64     `json:"amount"` // Positive = credit, negative = debit
	Reason        string    `json:"reason"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// NewEntry creates a ledger entry for a signed balance change
func NewEntry(userID uuid.UUID, amount int64, reason, correlationID string) *Entry {
	return &Entry{
		ID:            uuid.New(),
		UserID:        userID,
		Amount:        amount,
		Reason:        reason,
		CorrelationID: correlationID,
		CreatedAt:     time.Now().UTC(),
	}
}
