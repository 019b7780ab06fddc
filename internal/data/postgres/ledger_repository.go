package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/barterverse-backend/internal/domain/ledger"
	"github.com/barterverse-backend/internal/platform/persistence"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// LedgerRepository implements the ledger.Repository interface for PostgreSQL.
// Entries are written inside the same transaction as the balance mutation
// they record; there are no update or delete paths.
type LedgerRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewLedgerRepository creates a new PostgreSQL ledger repository
func NewLedgerRepository(logger *slog.Logger, db *persistence.PostgresDB) ledger.Repository {
	return &LedgerRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction
func (r *LedgerRepository) WithTx(tx pgx.Tx) ledger.Repository {
	return &LedgerRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Create appends a ledger entry
func (r *LedgerRepository) Create(ctx context.Context, entry *ledger.Entry) error {
	query := `
		INSERT INTO ledger_entries (id, user_id, amount, reason, correlation_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.querier.Exec(ctx, query,
		entry.ID,
		entry.UserID,
		entry.Amount,
		entry.Reason,
		entry.CorrelationID,
		entry.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create ledger entry",
			"entry_id", entry.ID.String(),
			"user_id", entry.UserID.String(),
			"error", err,
		)
		return fmt.Errorf("failed to create ledger entry: %w", err)
	}

	return nil
}

// GetByID retrieves a ledger entry by its ID
func (r *LedgerRepository) GetByID(ctx context.Context, id uuid.UUID) (*ledger.Entry, error) {
	query := `
		SELECT id, user_id, amount, reason, correlation_id, created_at
		FROM ledger_entries
		WHERE id = $1
	`

	var entry ledger.Entry
	err := r.querier.QueryRow(ctx, query, id).Scan(
		&entry.ID,
		&entry.UserID,
		&entry.Amount,
		&entry.Reason,
		&entry.CorrelationID,
		&entry.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ledger.ErrEntryNotFound{EntryID: id}
		}
		r.logger.Error("Failed to get ledger entry", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get ledger entry: %w", err)
	}

	return &entry, nil
}

// GetByUserID retrieves paginated ledger entries for a user, newest first
func (r *LedgerRepository) GetByUserID(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*ledger.Entry, error) {
	query := `
		SELECT id, user_id, amount, reason, correlation_id, created_at
		FROM ledger_entries
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.querier.Query(ctx, query, userID, limit, offset)
	if err != nil {
		r.logger.Error("Failed to get ledger entries", "user_id", userID.String(), "error", err)
		return nil, fmt.Errorf("failed to get ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []*ledger.Entry
	for rows.Next() {
		var entry ledger.Entry
		err := rows.Scan(
			&entry.ID,
			&entry.UserID,
			&entry.Amount,
			&entry.Reason,
			&entry.CorrelationID,
			&entry.CreatedAt,
		)
		if err != nil {
			r.logger.Error("Failed to scan ledger entry", "error", err)
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		entries = append(entries, &entry)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("Error iterating over ledger entries", "error", err)
		return nil, fmt.Errorf("error iterating over ledger entries: %w", err)
	}

	return entries, nil
}

// CountByUserID counts the total number of ledger entries for a user
func (r *LedgerRepository) CountByUserID(ctx context.Context, userID uuid.UUID) (int64, error) {
	query := `
		SELECT COUNT(*)
		FROM ledger_entries
		WHERE user_id = $1
	`

	var count int64
	if err := r.querier.QueryRow(ctx, query, userID).Scan(&count); err != nil {
		r.logger.Error("Failed to count ledger entries", "user_id", userID.String(), "error", err)
		return 0, fmt.Errorf("failed to count ledger entries: %w", err)
	}

	return count, nil
}

// SumByUserID returns the sum of all signed entry amounts for a user.
// For a wallet that started at zero this equals the current balance.
func (r *LedgerRepository) SumByUserID(ctx context.Context, userID uuid.UUID) (int64, error) {
	query := `
		SELECT COALESCE(SUM(amount), 0)
		FROM ledger_entries
		WHERE user_id = $1
	`

	var sum int64
	if err := r.querier.QueryRow(ctx, query, userID).Scan(&sum); err != nil {
		r.logger.Error("Failed to sum ledger entries", "user_id", userID.String(), "error", err)
		return 0, fmt.Errorf("failed to sum ledger entries: %w", err)
	}

	return sum, nil
}
