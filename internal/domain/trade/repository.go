package trade

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Repository defines trade persistence operations
type Repository interface {
	Create(ctx context.Context, t *Trade) error
	GetByID(ctx context.Context, id uuid.UUID) (*Trade, error)
	// LockForUpdate acquires a pessimistic row lock for a state transition.
	// Must be called within a transaction.
	LockForUpdate(ctx context.Context, id uuid.UUID) (*Trade, error)
	Update(ctx context.Context, t *Trade) error
	ListByParticipant(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*Trade, error)
	WithTx(tx pgx.Tx) Repository
}

// ErrTradeNotFound indicates missing trade
type ErrTradeNotFound struct {
	TradeID uuid.UUID
}

func (e ErrTradeNotFound) Error() string {
	return "trade not found: " + e.TradeID.String()
}

// Is implements the errors.Is interface for ErrTradeNotFound
func (e ErrTradeNotFound) Is(target error) bool {
	t, ok := target.(ErrTradeNotFound)
	if !ok {
		return false
	}
	if t.TradeID == uuid.Nil {
		return true
	}
	return e.TradeID == t.TradeID
}

// ErrStaleTrade indicates optimistic lock failure on update
type ErrStaleTrade struct {
	TradeID uuid.UUID
}

func (e ErrStaleTrade) Error() string {
	return "trade was modified concurrently: " + e.TradeID.String()
}
