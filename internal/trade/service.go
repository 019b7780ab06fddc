package trade

import (
	"context"
	"log/slog"
	"time"

	"github.com/barterverse-backend/internal/domain/outbox"
	"github.com/barterverse-backend/internal/domain/profile"
	"github.com/barterverse-backend/internal/domain/shared"
	tradedom "github.com/barterverse-backend/internal/domain/trade"
	"github.com/barterverse-backend/internal/ledger"
	"github.com/barterverse-backend/internal/platform/persistence"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const (
	defaultTradePageSize = 20
	maxTradePageSize     = 100
)

// Service drives the trade state machine. Coin escrow is taken from the
// initiator when the trade is created, released to the responder on
// completion and refunded on rejection or cancellation. Every transition
// commits atomically with its coin movement.
type Service interface {
	Create(ctx context.Context, initiatorID, responderID, listingID uuid.UUID, proposedListingID *uuid.UUID, coinAmount int64, message string) (*tradedom.Trade, error)
	Get(ctx context.Context, tradeID, callerID uuid.UUID) (*tradedom.Trade, error)
	List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*tradedom.Trade, error)
	Confirm(ctx context.Context, tradeID, callerID uuid.UUID, accept bool) (*tradedom.Trade, error)
	Complete(ctx context.Context, tradeID, callerID uuid.UUID) (*tradedom.Trade, error)
	Cancel(ctx context.Context, tradeID, callerID uuid.UUID) (*tradedom.Trade, error)
}

// ServiceImpl implements Service on Postgres
type ServiceImpl struct {
	db          persistence.TxBeginner
	tradeRepo   tradedom.Repository
	profileRepo profile.Repository
	outboxRepo  outbox.Repository
	mover       ledger.Mover
	logger      *slog.Logger
}

// NewService creates the trade service
func NewService(
	db persistence.TxBeginner,
	tradeRepo tradedom.Repository,
	profileRepo profile.Repository,
	outboxRepo outbox.Repository,
	mover ledger.Mover,
	logger *slog.Logger,
) *ServiceImpl {
	return &ServiceImpl{
		db:          db,
		tradeRepo:   tradeRepo,
		profileRepo: profileRepo,
		outboxRepo:  outboxRepo,
		mover:       mover,
		logger:      logger,
	}
}

func (s *ServiceImpl) Create(ctx context.Context, initiatorID, responderID, listingID uuid.UUID, proposedListingID *uuid.UUID, coinAmount int64, message string) (*tradedom.Trade, error) {
	t, err := tradedom.NewTrade(initiatorID, responderID, listingID, proposedListingID, coinAmount, message)
	if err != nil {
		return nil, err
	}

	// Responder must exist before we escrow anything
	if _, err := s.profileRepo.GetByID(ctx, responderID); err != nil {
		return nil, err
	}

	correlationID := shared.CorrelationIDFromContext(ctx)

	err = persistence.ExecuteTx(ctx, s.db, func(tx pgx.Tx) error {
		if err := s.tradeRepo.WithTx(tx).Create(ctx, t); err != nil {
			return err
		}
		if t.CoinAmount == 0 {
			return nil
		}
		_, err := s.mover.Apply(ctx, tx, ledger.Change{
			UserID:        t.InitiatorID,
			Amount:        -t.CoinAmount,
			Type:          shared.CoinEventTradeEscrowed,
			Reason:        "escrow for trade " + t.ID.String(),
			CorrelationID: correlationID,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Trade created",
		"trade_id", t.ID,
		"initiator_id", t.InitiatorID,
		"responder_id", t.ResponderID,
		"coin_amount", t.CoinAmount)
	return t, nil
}

func (s *ServiceImpl) Get(ctx context.Context, tradeID, callerID uuid.UUID) (*tradedom.Trade, error) {
	t, err := s.tradeRepo.GetByID(ctx, tradeID)
	if err != nil {
		return nil, err
	}
	if !t.IsParticipant(callerID) {
		return nil, tradedom.ErrNotParticipant
	}
	return t, nil
}

func (s *ServiceImpl) List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*tradedom.Trade, error) {
	if limit <= 0 {
		limit = defaultTradePageSize
	}
	if limit > maxTradePageSize {
		limit = maxTradePageSize
	}
	if offset < 0 {
		offset = 0
	}
	return s.tradeRepo.ListByParticipant(ctx, userID, limit, offset)
}

// Confirm lets the responder accept or reject a pending trade. Rejection
// refunds the escrowed coins to the initiator.
func (s *ServiceImpl) Confirm(ctx context.Context, tradeID, callerID uuid.UUID, accept bool) (*tradedom.Trade, error) {
	return s.transition(ctx, tradeID, func(tx pgx.Tx, t *tradedom.Trade) error {
		if t.ResponderID != callerID {
			return tradedom.ErrNotResponder
		}
		if accept {
			return t.Accept()
		}
		if err := t.Reject(); err != nil {
			return err
		}
		return s.refund(ctx, tx, t)
	})
}

// Complete settles an accepted trade: the escrowed coins are released to the
// responder. Either participant may complete.
func (s *ServiceImpl) Complete(ctx context.Context, tradeID, callerID uuid.UUID) (*tradedom.Trade, error) {
	return s.transition(ctx, tradeID, func(tx pgx.Tx, t *tradedom.Trade) error {
		if !t.IsParticipant(callerID) {
			return tradedom.ErrNotParticipant
		}
		if err := t.Complete(); err != nil {
			return err
		}
		if t.CoinAmount > 0 {
			if _, err := s.mover.Apply(ctx, tx, ledger.Change{
				UserID:        t.ResponderID,
				Amount:        t.CoinAmount,
				Type:          shared.CoinEventTradeSettled,
				Reason:        "settlement for trade " + t.ID.String(),
				CorrelationID: shared.CorrelationIDFromContext(ctx),
			}); err != nil {
				return err
			}
		}
		return s.notifyListingTraded(ctx, tx, t)
	})
}

// Cancel backs a trade out before settlement and refunds the escrow to the
// initiator. The responder may only cancel while the trade is still pending;
// once they have accepted, backing out is the initiator's call alone.
func (s *ServiceImpl) Cancel(ctx context.Context, tradeID, callerID uuid.UUID) (*tradedom.Trade, error) {
	return s.transition(ctx, tradeID, func(tx pgx.Tx, t *tradedom.Trade) error {
		if !t.IsParticipant(callerID) {
			return tradedom.ErrNotParticipant
		}
		if callerID == t.ResponderID && t.Status != tradedom.StatusPending {
			return tradedom.ErrResponderCancel
		}
		if err := t.Reject(); err != nil {
			return err
		}
		return s.refund(ctx, tx, t)
	})
}

// transition locks the trade row, applies fn and persists the result
func (s *ServiceImpl) transition(ctx context.Context, tradeID uuid.UUID, fn func(tx pgx.Tx, t *tradedom.Trade) error) (*tradedom.Trade, error) {
	var t *tradedom.Trade
	err := persistence.ExecuteTx(ctx, s.db, func(tx pgx.Tx) error {
		repo := s.tradeRepo.WithTx(tx)

		var err error
		t, err = repo.LockForUpdate(ctx, tradeID)
		if err != nil {
			return err
		}
		if err := fn(tx, t); err != nil {
			return err
		}
		return repo.Update(ctx, t)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Trade transitioned", "trade_id", t.ID, "status", t.Status)
	return t, nil
}

func (s *ServiceImpl) refund(ctx context.Context, tx pgx.Tx, t *tradedom.Trade) error {
	if t.CoinAmount == 0 {
		return nil
	}
	_, err := s.mover.Apply(ctx, tx, ledger.Change{
		UserID:        t.InitiatorID,
		Amount:        t.CoinAmount,
		Type:          shared.CoinEventTradeRefunded,
		Reason:        "refund for trade " + t.ID.String(),
		CorrelationID: shared.CorrelationIDFromContext(ctx),
	})
	return err
}

// notifyListingTraded queues an informational event telling the initiator the
// listing changed hands. No balance is moved; Delta is zero.
func (s *ServiceImpl) notifyListingTraded(ctx context.Context, tx pgx.Tx, t *tradedom.Trade) error {
	p, err := s.profileRepo.WithTx(tx).GetByID(ctx, t.InitiatorID)
	if err != nil {
		return err
	}

	event, err := outbox.NewEvent(&shared.CoinEvent{
		EventID:       uuid.New(),
		UserID:        t.InitiatorID,
		Type:          shared.CoinEventListingTraded,
		Delta:         0,
		Balance:       p.Balance,
		Reason:        "listing traded: " + t.ListingID.String(),
		CorrelationID: shared.CorrelationIDFromContext(ctx),
		OccurredAt:    time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	return s.outboxRepo.WithTx(tx).Create(ctx, event)
}
