// Package postgres provides PostgreSQL implementations of the domain
// repositories. Wallet balances, trades and the coin-event outbox live here
// so that balance-affecting operations can share one transaction.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/barterverse-backend/internal/domain/profile"
	"github.com/barterverse-backend/internal/platform/persistence"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ProfileRepository implements the profile.Repository interface for PostgreSQL
type ProfileRepository struct {
	querier persistence.Querier // Can be *pgxpool.Pool or pgx.Tx
	logger  *slog.Logger
}

// NewProfileRepository creates a new PostgreSQL profile repository
func NewProfileRepository(logger *slog.Logger, db *persistence.PostgresDB) profile.Repository {
	return &ProfileRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction, allowing for atomic
// operations across multiple repository calls.
func (r *ProfileRepository) WithTx(tx pgx.Tx) profile.Repository {
	return &ProfileRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Create stores a new profile in the database
func (r *ProfileRepository) Create(ctx context.Context, p *profile.Profile) error {
	query := `
		INSERT INTO profiles (id, username, balance, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.querier.Exec(ctx, query,
		p.ID,
		p.Username,
		p.Balance,
		p.Version,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create profile", "error", err)
		return fmt.Errorf("failed to create profile: %w", err)
	}

	return nil
}

// GetByID retrieves a profile by its ID
func (r *ProfileRepository) GetByID(ctx context.Context, id uuid.UUID) (*profile.Profile, error) {
	query := `
		SELECT id, username, balance, version, created_at, updated_at
		FROM profiles
		WHERE id = $1
	`

	var p profile.Profile
	err := r.querier.QueryRow(ctx, query, id).Scan(
		&p.ID,
		&p.Username,
		&p.Balance,
		&p.Version,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, profile.ErrProfileNotFound{ProfileID: id}
		}
		r.logger.Error("Failed to get profile", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	return &p, nil
}

// GetByUsername retrieves a profile by username, returning nil when not found
func (r *ProfileRepository) GetByUsername(ctx context.Context, username string) (*profile.Profile, error) {
	query := `
		SELECT id, username, balance, version, created_at, updated_at
		FROM profiles
		WHERE username = $1
	`

	var p profile.Profile
	err := r.querier.QueryRow(ctx, query, username).Scan(
		&p.ID,
		&p.Username,
		&p.Balance,
		&p.Version,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error("Failed to get profile by username", "username", username, "error", err)
		return nil, fmt.Errorf("failed to get profile by username: %w", err)
	}

	return &p, nil
}

// Update updates an existing profile using optimistic locking
func (r *ProfileRepository) Update(ctx context.Context, p *profile.Profile) error {
	query := `
		UPDATE profiles
		SET username = $1, balance = $2, version = $3, updated_at = $4
		WHERE id = $5 AND version = $6
	`

	result, err := r.querier.Exec(ctx, query,
		p.Username,
		p.Balance,
		p.Version,
		p.UpdatedAt,
		p.ID,
		p.Version-1, // Check previous version for optimistic locking
	)
	if err != nil {
		r.logger.Error("Failed to update profile", "id", p.ID.String(), "error", err)
		return fmt.Errorf("failed to update profile: %w", err)
	}

	if result.RowsAffected() == 0 {
		return profile.ErrConcurrentModification{ProfileID: p.ID}
	}

	return nil
}

// LockForUpdate obtains a pessimistic lock on the profile row and returns its
// current state. This must be used within a transaction whenever the balance
// is about to change.
func (r *ProfileRepository) LockForUpdate(ctx context.Context, id uuid.UUID) (*profile.Profile, error) {
	query := `
		SELECT id, username, balance, version, created_at, updated_at
		FROM profiles
		WHERE id = $1
		FOR UPDATE
	`

	var p profile.Profile
	err := r.querier.QueryRow(ctx, query, id).Scan(
		&p.ID,
		&p.Username,
		&p.Balance,
		&p.Version,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, profile.ErrProfileNotFound{ProfileID: id}
		}
		r.logger.Error("Failed to lock profile for update", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to lock profile for update: %w", err)
	}

	return &p, nil
}
