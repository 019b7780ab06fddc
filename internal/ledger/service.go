package ledger

import (
	"bytes"
	"context"
	"log/slog"

	ledgerdom "github.com/barterverse-backend/internal/domain/ledger"
	"github.com/barterverse-backend/internal/domain/profile"
	"github.com/barterverse-backend/internal/domain/shared"
	"github.com/barterverse-backend/internal/platform/persistence"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const (
	defaultEntryPageSize = 20
	maxEntryPageSize     = 100
)

// Service exposes wallet operations. All mutations are atomic: the balance
// change, its ledger entry and the outbox event commit together or not at all.
type Service interface {
	GetBalance(ctx context.Context, userID uuid.UUID) (int64, error)
	Entries(ctx context.Context, userID uuid.UUID, limit, offset int) (*EntryPage, error)
	Entry(ctx context.Context, userID, entryID uuid.UUID) (*ledgerdom.Entry, error)
	Credit(ctx context.Context, userID uuid.UUID, amount int64, reason string) (int64, error)
	Debit(ctx context.Context, userID uuid.UUID, amount int64, reason string) (int64, error)
	Transfer(ctx context.Context, fromID, toID uuid.UUID, amount int64, reason string) (int64, error)
}

// EntryPage is one page of a wallet's ledger history. Net is the signed sum
// of the user's entire ledger, not just this page.
type EntryPage struct {
	Entries []*ledgerdom.Entry
	Total   int64
	Net     int64
}

// ServiceImpl implements Service on Postgres
type ServiceImpl struct {
	db          persistence.TxBeginner
	profileRepo profile.Repository
	ledgerRepo  ledgerdom.Repository
	mover       Mover
	logger      *slog.Logger
}

// NewService creates the wallet service
func NewService(
	db persistence.TxBeginner,
	profileRepo profile.Repository,
	ledgerRepo ledgerdom.Repository,
	mover Mover,
	logger *slog.Logger,
) *ServiceImpl {
	return &ServiceImpl{
		db:          db,
		profileRepo: profileRepo,
		ledgerRepo:  ledgerRepo,
		mover:       mover,
		logger:      logger,
	}
}

func (s *ServiceImpl) GetBalance(ctx context.Context, userID uuid.UUID) (int64, error) {
	p, err := s.profileRepo.GetByID(ctx, userID)
	if err != nil {
		return 0, err
	}
	return p.Balance, nil
}

func (s *ServiceImpl) Entries(ctx context.Context, userID uuid.UUID, limit, offset int) (*EntryPage, error) {
	if _, err := s.profileRepo.GetByID(ctx, userID); err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = defaultEntryPageSize
	}
	if limit > maxEntryPageSize {
		limit = maxEntryPageSize
	}
	if offset < 0 {
		offset = 0
	}

	entries, err := s.ledgerRepo.GetByUserID(ctx, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	total, err := s.ledgerRepo.CountByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	net, err := s.ledgerRepo.SumByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &EntryPage{Entries: entries, Total: total, Net: net}, nil
}

// Entry returns a single ledger entry of the caller's wallet. Entries owned
// by someone else read as not found.
func (s *ServiceImpl) Entry(ctx context.Context, userID, entryID uuid.UUID) (*ledgerdom.Entry, error) {
	entry, err := s.ledgerRepo.GetByID(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if entry.UserID != userID {
		return nil, ledgerdom.ErrEntryNotFound{EntryID: entryID}
	}
	return entry, nil
}

func (s *ServiceImpl) Credit(ctx context.Context, userID uuid.UUID, amount int64, reason string) (int64, error) {
	if amount <= 0 {
		return 0, profile.ErrInvalidAmount
	}
	return s.apply(ctx, Change{
		UserID:        userID,
		Amount:        amount,
		Type:          shared.CoinEventCredit,
		Reason:        reason,
		CorrelationID: shared.CorrelationIDFromContext(ctx),
	})
}

func (s *ServiceImpl) Debit(ctx context.Context, userID uuid.UUID, amount int64, reason string) (int64, error) {
	if amount <= 0 {
		return 0, profile.ErrInvalidAmount
	}
	return s.apply(ctx, Change{
		UserID:        userID,
		Amount:        -amount,
		Type:          shared.CoinEventDebit,
		Reason:        reason,
		CorrelationID: shared.CorrelationIDFromContext(ctx),
	})
}

func (s *ServiceImpl) apply(ctx context.Context, change Change) (int64, error) {
	if change.Amount == 0 {
		return 0, profile.ErrInvalidAmount
	}

	var balance int64
	err := persistence.ExecuteTx(ctx, s.db, func(tx pgx.Tx) error {
		p, err := s.mover.Apply(ctx, tx, change)
		if err != nil {
			return err
		}
		balance = p.Balance
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.logger.Info("Balance change committed",
		"user_id", change.UserID,
		"delta", change.Amount,
		"balance", balance,
		"type", change.Type)
	return balance, nil
}

func (s *ServiceImpl) Transfer(ctx context.Context, fromID, toID uuid.UUID, amount int64, reason string) (int64, error) {
	if fromID == toID {
		return 0, ledgerdom.ErrSameParty
	}
	if amount <= 0 {
		return 0, profile.ErrInvalidAmount
	}

	correlationID := shared.CorrelationIDFromContext(ctx)

	var senderBalance int64
	err := persistence.ExecuteTx(ctx, s.db, func(tx pgx.Tx) error {
		repo := s.profileRepo.WithTx(tx)

		// Lock both rows in UUID order so concurrent opposite-direction
		// transfers cannot deadlock.
		firstID, secondID := fromID, toID
		if bytes.Compare(secondID[:], firstID[:]) < 0 {
			firstID, secondID = secondID, firstID
		}

		first, err := repo.LockForUpdate(ctx, firstID)
		if err != nil {
			return err
		}
		second, err := repo.LockForUpdate(ctx, secondID)
		if err != nil {
			return err
		}

		sender, recipient := first, second
		if sender.ID != fromID {
			sender, recipient = second, first
		}

		if err := s.mover.ApplyLocked(ctx, tx, sender, Change{
			UserID:        fromID,
			Amount:        -amount,
			Type:          shared.CoinEventTransferOut,
			Reason:        reason,
			CorrelationID: correlationID,
		}); err != nil {
			return err
		}
		if err := s.mover.ApplyLocked(ctx, tx, recipient, Change{
			UserID:        toID,
			Amount:        amount,
			Type:          shared.CoinEventTransferIn,
			Reason:        reason,
			CorrelationID: correlationID,
		}); err != nil {
			return err
		}

		senderBalance = sender.Balance
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.logger.Info("Transfer committed",
		"from_user_id", fromID,
		"to_user_id", toID,
		"amount", amount,
		"sender_balance", senderBalance)
	return senderBalance, nil
}
