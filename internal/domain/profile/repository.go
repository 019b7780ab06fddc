package profile

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Repository defines profile persistence operations
type Repository interface {
	Create(ctx context.Context, p *Profile) error
	GetByID(ctx context.Context, id uuid.UUID) (*Profile, error)
	GetByUsername(ctx context.Context, username string) (*Profile, error)
	Update(ctx context.Context, p *Profile) error

	// LockForUpdate acquires a pessimistic row lock for balance mutation.
	// Must be called within a transaction.
	LockForUpdate(ctx context.Context, id uuid.UUID) (*Profile, error)
	WithTx(tx pgx.Tx) Repository
}

// ErrConcurrentModification indicates optimistic lock failure
type ErrConcurrentModification struct {
	ProfileID uuid.UUID
}

func (e ErrConcurrentModification) Error() string {
	return "concurrent modification detected for profile: " + e.ProfileID.String()
}

// ErrProfileNotFound indicates missing profile
type ErrProfileNotFound struct {
	ProfileID uuid.UUID
}

func (e ErrProfileNotFound) Error() string {
	return "profile not found: " + e.ProfileID.String()
}

// Is implements the errors.Is interface for ErrProfileNotFound
func (e ErrProfileNotFound) Is(target error) bool {
	t, ok := target.(ErrProfileNotFound)
	if !ok {
		return false
	}
	if t.ProfileID == uuid.Nil {
		return true
	}
	return e.ProfileID == t.ProfileID
}
