package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/barterverse-backend/internal/domain/shared"
)

// Event stores a coin event for reliable publishing. Rows are written in the
// same database transaction as the balance change they describe, then picked
// up by the poller and pushed onto the Kafka coin-event topic.
type Event struct {
	ID            int64               `json:"id"`
	EventID       uuid.UUID           `json:"event_id"`
	UserID        uuid.UUID           `json:"user_id"`
	Payload       json.RawMessage     `json:"payload"`
	Status        shared.OutboxStatus `json:"status"`
	Attempts      int                 `json:"attempts"`
	CreatedAt     time.Time           `json:"created_at"`
	LastAttemptAt *time.Time          `json:"last_attempt_at,omitempty"`
}

// NewEvent wraps a coin event for outbox persistence
func NewEvent(coinEvent *shared.CoinEvent) (*Event, error) {
	payload, err := json.Marshal(coinEvent)
	if err != nil {
		return nil, err
	}

	return &Event{
		EventID:   coinEvent.EventID,
		UserID:    coinEvent.UserID,
		Payload:   payload,
		Status:    shared.OutboxStatusPending,
		Attempts:  0,
		CreatedAt: time.Now(),
	}, nil
}

// CoinEvent extracts the coin event from the payload
func (e *Event) CoinEvent() (*shared.CoinEvent, error) {
	var ce shared.CoinEvent
	if err := json.Unmarshal(e.Payload, &ce); err != nil {
		return nil, err
	}
	return &ce, nil
}
