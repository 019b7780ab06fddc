package shared

import (
	"time"

	"github.com/google/uuid"
)

// CoinEventType categorizes balance-affecting events published on the bus
type CoinEventType string

const (
	CoinEventCredit         CoinEventType = "COIN_CREDIT"
	CoinEventDebit          CoinEventType = "COIN_DEBIT"
	CoinEventTransferIn     CoinEventType = "COIN_TRANSFER_IN"
	CoinEventTransferOut    CoinEventType = "COIN_TRANSFER_OUT"
	CoinEventTradeEscrowed  CoinEventType = "TRADE_ESCROWED"
	CoinEventTradeSettled   CoinEventType = "TRADE_SETTLED"
	CoinEventTradeRefunded  CoinEventType = "TRADE_REFUNDED"
	CoinEventListingTraded  CoinEventType = "LISTING_TRADED"
)

// OutboxStatus defines outbox event publishing states
type OutboxStatus string

const (
	OutboxStatusPending         OutboxStatus = "PENDING"
	OutboxStatusProcessed       OutboxStatus = "PROCESSED"
	OutboxStatusFailedToPublish OutboxStatus = "FAILED_TO_PUBLISH"
)

// CoinEvent is the bus payload pushed to a user's live connections after a
// balance change commits. Delivery is at-least-once; the client treats the
// carried balance as authoritative, so duplicates are harmless.
type CoinEvent struct {
	EventID       uuid.UUID     `json:"event_id"`
	UserID        uuid.UUID     `json:"user_id"`
	Type          CoinEventType `json:"type"`
	Delta         int64         `json:"delta"`
	Balance       int64         `json:"balance"`
	Reason        string        `json:"reason"`
	CorrelationID string        `json:"correlation_id,omitempty"`
	OccurredAt    time.Time     `json:"occurred_at"`
}
