package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	ledgerdom "github.com/barterverse-backend/internal/domain/ledger"
	"github.com/barterverse-backend/internal/domain/outbox"
	"github.com/barterverse-backend/internal/domain/profile"
	"github.com/barterverse-backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Change describes a single signed balance mutation to apply to one wallet.
// Amount is positive for credits and negative for debits.
type Change struct {
	UserID        uuid.UUID
	Amount        int64
	Type          shared.CoinEventType
	Reason        string
	CorrelationID string
}

// Mover applies balance changes inside a caller-owned transaction. Every
// applied change writes the profile row, an append-only ledger entry and an
// outbox event atomically.
type Mover interface {
	// Apply locks the profile row, mutates the balance and records the change
	Apply(ctx context.Context, tx pgx.Tx, change Change) (*profile.Profile, error)

	// ApplyLocked records a change against a profile whose row lock the
	// caller already holds. Used when multiple rows must be locked in a
	// deterministic order before any of them is mutated.
	ApplyLocked(ctx context.Context, tx pgx.Tx, p *profile.Profile, change Change) error
}

// CoinMover implements Mover on the Postgres repositories
type CoinMover struct {
	profileRepo profile.Repository
	ledgerRepo  ledgerdom.Repository
	outboxRepo  outbox.Repository
	logger      *slog.Logger
}

// NewCoinMover creates a mover over the given repositories
func NewCoinMover(
	profileRepo profile.Repository,
	ledgerRepo ledgerdom.Repository,
	outboxRepo outbox.Repository,
	logger *slog.Logger,
) *CoinMover {
	return &CoinMover{
		profileRepo: profileRepo,
		ledgerRepo:  ledgerRepo,
		outboxRepo:  outboxRepo,
		logger:      logger,
	}
}

func (m *CoinMover) Apply(ctx context.Context, tx pgx.Tx, change Change) (*profile.Profile, error) {
	p, err := m.profileRepo.WithTx(tx).LockForUpdate(ctx, change.UserID)
	if err != nil {
		return nil, err
	}

	if err := m.ApplyLocked(ctx, tx, p, change); err != nil {
		return nil, err
	}
	return p, nil
}

func (m *CoinMover) ApplyLocked(ctx context.Context, tx pgx.Tx, p *profile.Profile, change Change) error {
	if change.Amount == 0 {
		return profile.ErrInvalidAmount
	}

	if change.Amount > 0 {
		if err := p.Credit(change.Amount); err != nil {
			return err
		}
	} else {
		if err := p.Debit(-change.Amount); err != nil {
			return err
		}
	}

	if err := m.profileRepo.WithTx(tx).Update(ctx, p); err != nil {
		return fmt.Errorf("failed to update profile balance: %w", err)
	}

	entry := ledgerdom.NewEntry(change.UserID, change.Amount, change.Reason, change.CorrelationID)
	if err := m.ledgerRepo.WithTx(tx).Create(ctx, entry); err != nil {
		return fmt.Errorf("failed to create ledger entry: %w", err)
	}

	event, err := outbox.NewEvent(&shared.CoinEvent{
		EventID:       entry.ID,
		UserID:        change.UserID,
		Type:          change.Type,
		Delta:         change.Amount,
		Balance:       p.Balance,
		Reason:        change.Reason,
		CorrelationID: change.CorrelationID,
		OccurredAt:    time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to build coin event: %w", err)
	}
	if err := m.outboxRepo.WithTx(tx).Create(ctx, event); err != nil {
		return fmt.Errorf("failed to create outbox event: %w", err)
	}

	m.logger.Debug("Applied balance change",
		"user_id", change.UserID,
		"delta", change.Amount,
		"balance", p.Balance,
		"type", change.Type)

	return nil
}
