package trade

import (
	"context"
	"io"
	"log/slog"
	"testing"

	ledgerdom "github.com/barterverse-backend/internal/domain/ledger"
	"github.com/barterverse-backend/internal/domain/outbox"
	"github.com/barterverse-backend/internal/domain/profile"
	"github.com/barterverse-backend/internal/domain/shared"
	tradedom "github.com/barterverse-backend/internal/domain/trade"
	"github.com/barterverse-backend/internal/ledger"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeProfileRepo struct {
	profiles map[uuid.UUID]*profile.Profile
}

func newFakeProfileRepo() *fakeProfileRepo {
	return &fakeProfileRepo{profiles: make(map[uuid.UUID]*profile.Profile)}
}

func (r *fakeProfileRepo) seed(p *profile.Profile) {
	copied := *p
	r.profiles[p.ID] = &copied
}

func (r *fakeProfileRepo) Create(ctx context.Context, p *profile.Profile) error {
	r.seed(p)
	return nil
}

func (r *fakeProfileRepo) GetByID(ctx context.Context, id uuid.UUID) (*profile.Profile, error) {
	p, ok := r.profiles[id]
	if !ok {
		return nil, profile.ErrProfileNotFound{ProfileID: id}
	}
	copied := *p
	return &copied, nil
}

func (r *fakeProfileRepo) GetByUsername(ctx context.Context, username string) (*profile.Profile, error) {
	for _, p := range r.profiles {
		if p.Username == username {
			copied := *p
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *fakeProfileRepo) Update(ctx context.Context, p *profile.Profile) error {
	if _, ok := r.profiles[p.ID]; !ok {
		return profile.ErrProfileNotFound{ProfileID: p.ID}
	}
	copied := *p
	r.profiles[p.ID] = &copied
	return nil
}

func (r *fakeProfileRepo) LockForUpdate(ctx context.Context, id uuid.UUID) (*profile.Profile, error) {
	return r.GetByID(ctx, id)
}

func (r *fakeProfileRepo) WithTx(tx pgx.Tx) profile.Repository { return r }

type fakeLedgerRepo struct {
	entries []*ledgerdom.Entry
}

func (r *fakeLedgerRepo) Create(ctx context.Context, entry *ledgerdom.Entry) error {
	r.entries = append(r.entries, entry)
	return nil
}

func (r *fakeLedgerRepo) GetByID(ctx context.Context, id uuid.UUID) (*ledgerdom.Entry, error) {
	return nil, ledgerdom.ErrEntryNotFound{EntryID: id}
}

func (r *fakeLedgerRepo) GetByUserID(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*ledgerdom.Entry, error) {
	return nil, nil
}

func (r *fakeLedgerRepo) CountByUserID(ctx context.Context, userID uuid.UUID) (int64, error) {
	return int64(len(r.entries)), nil
}

func (r *fakeLedgerRepo) SumByUserID(ctx context.Context, userID uuid.UUID) (int64, error) {
	var sum int64
	for _, e := range r.entries {
		if e.UserID == userID {
			sum += e.Amount
		}
	}
	return sum, nil
}

func (r *fakeLedgerRepo) WithTx(tx pgx.Tx) ledgerdom.Repository { return r }

type fakeOutboxRepo struct {
	events []*outbox.Event
}

func (r *fakeOutboxRepo) Create(ctx context.Context, event *outbox.Event) error {
	event.ID = int64(len(r.events) + 1)
	r.events = append(r.events, event)
	return nil
}

func (r *fakeOutboxRepo) GetPending(ctx context.Context, limit int) ([]*outbox.Event, error) {
	return nil, nil
}

func (r *fakeOutboxRepo) UpdateStatus(ctx context.Context, id int64, status shared.OutboxStatus) error {
	return nil
}

func (r *fakeOutboxRepo) IncrementAttempts(ctx context.Context, id int64) error { return nil }

func (r *fakeOutboxRepo) Delete(ctx context.Context, id int64) error { return nil }

func (r *fakeOutboxRepo) WithTx(tx pgx.Tx) outbox.Repository { return r }

// fakeTradeRepo keeps trades in memory and hands out copies so transitions
// only stick via Update, mirroring the row store.
type fakeTradeRepo struct {
	trades map[uuid.UUID]*tradedom.Trade
}

func newFakeTradeRepo() *fakeTradeRepo {
	return &fakeTradeRepo{trades: make(map[uuid.UUID]*tradedom.Trade)}
}

func (r *fakeTradeRepo) Create(ctx context.Context, t *tradedom.Trade) error {
	copied := *t
	r.trades[t.ID] = &copied
	return nil
}

func (r *fakeTradeRepo) GetByID(ctx context.Context, id uuid.UUID) (*tradedom.Trade, error) {
	t, ok := r.trades[id]
	if !ok {
		return nil, tradedom.ErrTradeNotFound{TradeID: id}
	}
	copied := *t
	return &copied, nil
}

func (r *fakeTradeRepo) LockForUpdate(ctx context.Context, id uuid.UUID) (*tradedom.Trade, error) {
	return r.GetByID(ctx, id)
}

func (r *fakeTradeRepo) Update(ctx context.Context, t *tradedom.Trade) error {
	if _, ok := r.trades[t.ID]; !ok {
		return tradedom.ErrTradeNotFound{TradeID: t.ID}
	}
	copied := *t
	r.trades[t.ID] = &copied
	return nil
}

func (r *fakeTradeRepo) ListByParticipant(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*tradedom.Trade, error) {
	var out []*tradedom.Trade
	for _, t := range r.trades {
		if t.IsParticipant(userID) {
			copied := *t
			out = append(out, &copied)
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeTradeRepo) WithTx(tx pgx.Tx) tradedom.Repository { return r }

type tradeFixture struct {
	db       pgxmock.PgxPoolIface
	trades   *fakeTradeRepo
	profiles *fakeProfileRepo
	entries  *fakeLedgerRepo
	outbox   *fakeOutboxRepo
	service  *ServiceImpl

	initiator uuid.UUID
	responder uuid.UUID
	listing   uuid.UUID
}

func newTradeFixture(t *testing.T, initiatorBalance, responderBalance int64) *tradeFixture {
	t.Helper()
	db, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(db.Close)

	profiles := newFakeProfileRepo()
	entries := &fakeLedgerRepo{}
	ob := &fakeOutboxRepo{}
	trades := newFakeTradeRepo()
	logger := newTestLogger()
	mover := ledger.NewCoinMover(profiles, entries, ob, logger)

	initiator, err := profile.NewProfile("initiator", initiatorBalance)
	require.NoError(t, err)
	responder, err := profile.NewProfile("responder", responderBalance)
	require.NoError(t, err)
	profiles.seed(initiator)
	profiles.seed(responder)

	return &tradeFixture{
		db:        db,
		trades:    trades,
		profiles:  profiles,
		entries:   entries,
		outbox:    ob,
		service:   NewService(db, trades, profiles, ob, mover, logger),
		initiator: initiator.ID,
		responder: responder.ID,
		listing:   uuid.New(),
	}
}

func (f *tradeFixture) expectCommit() {
	f.db.ExpectBegin()
	f.db.ExpectCommit()
}

func (f *tradeFixture) expectRollback() {
	f.db.ExpectBegin()
	f.db.ExpectRollback()
}

func (f *tradeFixture) balance(t *testing.T, id uuid.UUID) int64 {
	t.Helper()
	p, err := f.profiles.GetByID(context.Background(), id)
	require.NoError(t, err)
	return p.Balance
}

func (f *tradeFixture) create(t *testing.T, coinAmount int64) *tradedom.Trade {
	t.Helper()
	f.expectCommit()
	tr, err := f.service.Create(context.Background(), f.initiator, f.responder, f.listing, nil, coinAmount, "deal?")
	require.NoError(t, err)
	return tr
}

func TestService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("escrows the coin amount", func(t *testing.T) {
		f := newTradeFixture(t, 100, 0)

		tr := f.create(t, 30)
		assert.Equal(t, tradedom.StatusPending, tr.Status)
		assert.Equal(t, int64(70), f.balance(t, f.initiator))

		require.Len(t, f.outbox.events, 1)
		ce, err := f.outbox.events[0].CoinEvent()
		require.NoError(t, err)
		assert.Equal(t, shared.CoinEventTradeEscrowed, ce.Type)
		assert.Equal(t, int64(-30), ce.Delta)

		assert.NoError(t, f.db.ExpectationsWereMet())
	})

	t.Run("pure barter moves no coins", func(t *testing.T) {
		f := newTradeFixture(t, 100, 0)

		f.create(t, 0)
		assert.Equal(t, int64(100), f.balance(t, f.initiator))
		assert.Empty(t, f.entries.entries)
		assert.Empty(t, f.outbox.events)
	})

	t.Run("insufficient balance rolls back the trade row", func(t *testing.T) {
		f := newTradeFixture(t, 10, 0)

		f.expectRollback()
		_, err := f.service.Create(ctx, f.initiator, f.responder, f.listing, nil, 50, "deal?")
		assert.ErrorIs(t, err, profile.ErrInsufficientBalance)
		assert.Equal(t, int64(10), f.balance(t, f.initiator))
		assert.Empty(t, f.trades.trades)
	})

	t.Run("unknown responder", func(t *testing.T) {
		f := newTradeFixture(t, 100, 0)

		_, err := f.service.Create(ctx, f.initiator, uuid.New(), f.listing, nil, 10, "deal?")
		assert.ErrorIs(t, err, profile.ErrProfileNotFound{})
		assert.Empty(t, f.trades.trades)
	})

	t.Run("self trade", func(t *testing.T) {
		f := newTradeFixture(t, 100, 0)

		_, err := f.service.Create(ctx, f.initiator, f.initiator, f.listing, nil, 10, "deal?")
		assert.ErrorIs(t, err, tradedom.ErrSelfTrade)
	})

	t.Run("negative amount", func(t *testing.T) {
		f := newTradeFixture(t, 100, 0)

		_, err := f.service.Create(ctx, f.initiator, f.responder, f.listing, nil, -5, "deal?")
		assert.ErrorIs(t, err, tradedom.ErrNegativeAmount)
	})
}

func TestService_Confirm(t *testing.T) {
	ctx := context.Background()

	t.Run("responder accepts", func(t *testing.T) {
		f := newTradeFixture(t, 100, 0)
		tr := f.create(t, 30)

		f.expectCommit()
		accepted, err := f.service.Confirm(ctx, tr.ID, f.responder, true)
		require.NoError(t, err)
		assert.Equal(t, tradedom.StatusAccepted, accepted.Status)

		// Escrow stays held until completion
		assert.Equal(t, int64(70), f.balance(t, f.initiator))
		assert.Zero(t, f.balance(t, f.responder))
	})

	t.Run("responder rejects and escrow is refunded", func(t *testing.T) {
		f := newTradeFixture(t, 100, 0)
		tr := f.create(t, 30)

		f.expectCommit()
		rejected, err := f.service.Confirm(ctx, tr.ID, f.responder, false)
		require.NoError(t, err)
		assert.Equal(t, tradedom.StatusRejected, rejected.Status)
		assert.Equal(t, int64(100), f.balance(t, f.initiator))

		sum, err := f.entries.SumByUserID(ctx, f.initiator)
		require.NoError(t, err)
		assert.Zero(t, sum)
	})

	t.Run("initiator cannot confirm", func(t *testing.T) {
		f := newTradeFixture(t, 100, 0)
		tr := f.create(t, 30)

		f.expectRollback()
		_, err := f.service.Confirm(ctx, tr.ID, f.initiator, true)
		assert.ErrorIs(t, err, tradedom.ErrNotResponder)

		stored, err := f.trades.GetByID(ctx, tr.ID)
		require.NoError(t, err)
		assert.Equal(t, tradedom.StatusPending, stored.Status)
	})

	t.Run("confirming a rejected trade", func(t *testing.T) {
		f := newTradeFixture(t, 100, 0)
		tr := f.create(t, 30)

		f.expectCommit()
		_, err := f.service.Confirm(ctx, tr.ID, f.responder, false)
		require.NoError(t, err)

		f.expectRollback()
		_, err = f.service.Confirm(ctx, tr.ID, f.responder, true)
		assert.ErrorIs(t, err, tradedom.ErrInvalidTransition)
	})

	t.Run("unknown trade", func(t *testing.T) {
		f := newTradeFixture(t, 100, 0)

		f.expectRollback()
		_, err := f.service.Confirm(ctx, uuid.New(), f.responder, true)
		assert.ErrorIs(t, err, tradedom.ErrTradeNotFound{})
	})
}

func TestService_Complete(t *testing.T) {
	ctx := context.Background()

	t.Run("releases escrow to the responder", func(t *testing.T) {
		f := newTradeFixture(t, 100, 5)
		tr := f.create(t, 30)

		f.expectCommit()
		_, err := f.service.Confirm(ctx, tr.ID, f.responder, true)
		require.NoError(t, err)

		f.expectCommit()
		completed, err := f.service.Complete(ctx, tr.ID, f.initiator)
		require.NoError(t, err)
		assert.Equal(t, tradedom.StatusCompleted, completed.Status)
		assert.Equal(t, int64(70), f.balance(t, f.initiator))
		assert.Equal(t, int64(35), f.balance(t, f.responder))

		// Escrow, settlement and the listing notice all hit the outbox
		types := map[shared.CoinEventType]int{}
		for _, ev := range f.outbox.events {
			ce, err := ev.CoinEvent()
			require.NoError(t, err)
			types[ce.Type]++
		}
		assert.Equal(t, 1, types[shared.CoinEventTradeEscrowed])
		assert.Equal(t, 1, types[shared.CoinEventTradeSettled])
		assert.Equal(t, 1, types[shared.CoinEventListingTraded])
	})

	t.Run("pending trade cannot complete", func(t *testing.T) {
		f := newTradeFixture(t, 100, 0)
		tr := f.create(t, 30)

		f.expectRollback()
		_, err := f.service.Complete(ctx, tr.ID, f.responder)
		assert.ErrorIs(t, err, tradedom.ErrInvalidTransition)
		assert.Equal(t, int64(70), f.balance(t, f.initiator))
	})

	t.Run("rejected trade cannot complete", func(t *testing.T) {
		f := newTradeFixture(t, 100, 0)
		tr := f.create(t, 30)

		f.expectCommit()
		_, err := f.service.Confirm(ctx, tr.ID, f.responder, false)
		require.NoError(t, err)

		f.expectRollback()
		_, err = f.service.Complete(ctx, tr.ID, f.responder)
		assert.ErrorIs(t, err, tradedom.ErrInvalidTransition)
	})

	t.Run("outsider cannot complete", func(t *testing.T) {
		f := newTradeFixture(t, 100, 0)
		tr := f.create(t, 30)

		f.expectCommit()
		_, err := f.service.Confirm(ctx, tr.ID, f.responder, true)
		require.NoError(t, err)

		f.expectRollback()
		_, err = f.service.Complete(ctx, tr.ID, uuid.New())
		assert.ErrorIs(t, err, tradedom.ErrNotParticipant)
	})
}

func TestService_Cancel(t *testing.T) {
	ctx := context.Background()

	t.Run("initiator backs out of a pending trade", func(t *testing.T) {
		f := newTradeFixture(t, 100, 0)
		tr := f.create(t, 30)

		f.expectCommit()
		cancelled, err := f.service.Cancel(ctx, tr.ID, f.initiator)
		require.NoError(t, err)
		assert.Equal(t, tradedom.StatusRejected, cancelled.Status)
		assert.Equal(t, int64(100), f.balance(t, f.initiator))
	})

	t.Run("initiator may cancel an accepted trade", func(t *testing.T) {
		f := newTradeFixture(t, 100, 0)
		tr := f.create(t, 30)

		f.expectCommit()
		_, err := f.service.Confirm(ctx, tr.ID, f.responder, true)
		require.NoError(t, err)

		f.expectCommit()
		cancelled, err := f.service.Cancel(ctx, tr.ID, f.initiator)
		require.NoError(t, err)
		assert.Equal(t, tradedom.StatusRejected, cancelled.Status)
		assert.Equal(t, int64(100), f.balance(t, f.initiator))
	})

	t.Run("responder may cancel a pending trade", func(t *testing.T) {
		f := newTradeFixture(t, 100, 0)
		tr := f.create(t, 30)

		f.expectCommit()
		_, err := f.service.Cancel(ctx, tr.ID, f.responder)
		require.NoError(t, err)
		assert.Equal(t, int64(100), f.balance(t, f.initiator))
	})

	t.Run("responder cannot cancel after accepting", func(t *testing.T) {
		f := newTradeFixture(t, 100, 0)
		tr := f.create(t, 30)

		f.expectCommit()
		_, err := f.service.Confirm(ctx, tr.ID, f.responder, true)
		require.NoError(t, err)

		f.expectRollback()
		_, err = f.service.Cancel(ctx, tr.ID, f.responder)
		assert.ErrorIs(t, err, tradedom.ErrResponderCancel)

		// Escrow stays held and the trade can still settle
		got, err := f.service.Get(ctx, tr.ID, f.initiator)
		require.NoError(t, err)
		assert.Equal(t, tradedom.StatusAccepted, got.Status)
		assert.Equal(t, int64(70), f.balance(t, f.initiator))
	})

	t.Run("completed trade cannot be cancelled", func(t *testing.T) {
		f := newTradeFixture(t, 100, 0)
		tr := f.create(t, 30)

		f.expectCommit()
		_, err := f.service.Confirm(ctx, tr.ID, f.responder, true)
		require.NoError(t, err)
		f.expectCommit()
		_, err = f.service.Complete(ctx, tr.ID, f.initiator)
		require.NoError(t, err)

		f.expectRollback()
		_, err = f.service.Cancel(ctx, tr.ID, f.initiator)
		assert.ErrorIs(t, err, tradedom.ErrInvalidTransition)
		assert.Equal(t, int64(30), f.balance(t, f.responder))
	})

	t.Run("outsider cannot cancel", func(t *testing.T) {
		f := newTradeFixture(t, 100, 0)
		tr := f.create(t, 30)

		f.expectRollback()
		_, err := f.service.Cancel(ctx, tr.ID, uuid.New())
		assert.ErrorIs(t, err, tradedom.ErrNotParticipant)
	})
}

func TestService_GetAndList(t *testing.T) {
	ctx := context.Background()
	f := newTradeFixture(t, 100, 0)
	tr := f.create(t, 10)

	t.Run("participants can read", func(t *testing.T) {
		got, err := f.service.Get(ctx, tr.ID, f.initiator)
		require.NoError(t, err)
		assert.Equal(t, tr.ID, got.ID)

		got, err = f.service.Get(ctx, tr.ID, f.responder)
		require.NoError(t, err)
		assert.Equal(t, tr.ID, got.ID)
	})

	t.Run("outsiders cannot", func(t *testing.T) {
		_, err := f.service.Get(ctx, tr.ID, uuid.New())
		assert.ErrorIs(t, err, tradedom.ErrNotParticipant)
	})

	t.Run("list by participant", func(t *testing.T) {
		trades, err := f.service.List(ctx, f.responder, 10, 0)
		require.NoError(t, err)
		assert.Len(t, trades, 1)

		trades, err = f.service.List(ctx, uuid.New(), 10, 0)
		require.NoError(t, err)
		assert.Empty(t, trades)
	})
}
