package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/barterverse-backend/internal/domain/trade"
	"github.com/barterverse-backend/internal/platform/persistence"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// TradeRepository implements the trade.Repository interface for PostgreSQL
type TradeRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewTradeRepository creates a new PostgreSQL trade repository
func NewTradeRepository(logger *slog.Logger, db *persistence.PostgresDB) trade.Repository {
	return &TradeRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction
func (r *TradeRepository) WithTx(tx pgx.Tx) trade.Repository {
	return &TradeRepository{
		querier: tx,
		logger:  r.logger,
	}
}

const tradeColumns = `id, initiator_id, responder_id, listing_id, proposed_listing_id, coin_amount, message, status, version, created_at, updated_at`

// Create stores a new trade
func (r *TradeRepository) Create(ctx context.Context, t *trade.Trade) error {
	query := `
		INSERT INTO trades (id, initiator_id, responder_id, listing_id, proposed_listing_id, coin_amount, message, status, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.querier.Exec(ctx, query,
		t.ID,
		t.InitiatorID,
		t.ResponderID,
		t.ListingID,
		t.ProposedListingID,
		t.CoinAmount,
		t.Message,
		t.Status,
		t.Version,
		t.CreatedAt,
		t.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create trade", "trade_id", t.ID.String(), "error", err)
		return fmt.Errorf("failed to create trade: %w", err)
	}

	return nil
}

func (r *TradeRepository) scanTrade(row pgx.Row) (*trade.Trade, error) {
	var t trade.Trade
	err := row.Scan(
		&t.ID,
		&t.InitiatorID,
		&t.ResponderID,
		&t.ListingID,
		&t.ProposedListingID,
		&t.CoinAmount,
		&t.Message,
		&t.Status,
		&t.Version,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// GetByID retrieves a trade by its ID
func (r *TradeRepository) GetByID(ctx context.Context, id uuid.UUID) (*trade.Trade, error) {
	query := `SELECT ` + tradeColumns + ` FROM trades WHERE id = $1`

	t, err := r.scanTrade(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, trade.ErrTradeNotFound{TradeID: id}
		}
		r.logger.Error("Failed to get trade", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get trade: %w", err)
	}

	return t, nil
}

// LockForUpdate obtains a pessimistic lock on the trade row for a state
// transition. Must be called within a transaction.
func (r *TradeRepository) LockForUpdate(ctx context.Context, id uuid.UUID) (*trade.Trade, error) {
	query := `SELECT ` + tradeColumns + ` FROM trades WHERE id = $1 FOR UPDATE`

	t, err := r.scanTrade(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, trade.ErrTradeNotFound{TradeID: id}
		}
		r.logger.Error("Failed to lock trade for update", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to lock trade for update: %w", err)
	}

	return t, nil
}

// Update persists a state transition using optimistic locking
func (r *TradeRepository) Update(ctx context.Context, t *trade.Trade) error {
	query := `
		UPDATE trades
		SET status = $1, version = $2, updated_at = $3
		WHERE id = $4 AND version = $5
	`

	result, err := r.querier.Exec(ctx, query,
		t.Status,
		t.Version,
		t.UpdatedAt,
		t.ID,
		t.Version-1,
	)
	if err != nil {
		r.logger.Error("Failed to update trade", "id", t.ID.String(), "error", err)
		return fmt.Errorf("failed to update trade: %w", err)
	}

	if result.RowsAffected() == 0 {
		return trade.ErrStaleTrade{TradeID: t.ID}
	}

	return nil
}

// ListByParticipant retrieves paginated trades where the user is initiator or
// responder, newest first
func (r *TradeRepository) ListByParticipant(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*trade.Trade, error) {
	query := `
		SELECT ` + tradeColumns + `
		FROM trades
		WHERE initiator_id = $1 OR responder_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.querier.Query(ctx, query, userID, limit, offset)
	if err != nil {
		r.logger.Error("Failed to list trades", "user_id", userID.String(), "error", err)
		return nil, fmt.Errorf("failed to list trades: %w", err)
	}
	defer rows.Close()

	var trades []*trade.Trade
	for rows.Next() {
		t, err := r.scanTrade(rows)
		if err != nil {
			r.logger.Error("Failed to scan trade", "error", err)
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}
		trades = append(trades, t)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("Error iterating over trades", "error", err)
		return nil, fmt.Errorf("error iterating over trades: %w", err)
	}

	return trades, nil
}
