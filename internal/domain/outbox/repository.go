package outbox

import (
	"context"
	"strconv"

	"github.com/barterverse-backend/internal/domain/shared"
	"github.com/jackc/pgx/v5"
)

// Repository manages transactional outbox event persistence
type Repository interface {
	Create(ctx context.Context, event *Event) error
	GetPending(ctx context.Context, limit int) ([]*Event, error)
	UpdateStatus(ctx context.Context, id int64, status shared.OutboxStatus) error
	IncrementAttempts(ctx context.Context, id int64) error
	Delete(ctx context.Context, id int64) error
	WithTx(tx pgx.Tx) Repository
}

// ErrEventNotFound indicates missing outbox event
type ErrEventNotFound struct {
	ID int64
}

func (e ErrEventNotFound) Error() string {
	return "outbox event not found: " + strconv.FormatInt(e.ID, 10)
}
