package notifier

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/barterverse-backend/internal/chat"
	"github.com/barterverse-backend/internal/config"
	"github.com/barterverse-backend/internal/domain/shared"
	"github.com/barterverse-backend/internal/platform/messaging/producers"
	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
)

// Pusher consumes coin events from the bus and pushes coin_update frames to
// the affected user's live connections through a bounded worker pool. Events
// for offline users are dropped; the wallet endpoints are authoritative and
// the client reloads its balance on reconnect.
type Pusher struct {
	registry *chat.Registry
	pool     *ants.Pool
	dlq      producers.DeadLetterPublisher // May be nil when no DLQ topic is configured
	logger   *slog.Logger
}

// NewPusher creates the pusher with a worker pool of the configured size
func NewPusher(
	cfg *config.WorkerPoolConfig,
	registry *chat.Registry,
	dlq producers.DeadLetterPublisher,
	logger *slog.Logger,
) (*Pusher, error) {
	pool, err := ants.NewPool(cfg.Size)
	if err != nil {
		return nil, err
	}

	return &Pusher{
		registry: registry,
		pool:     pool,
		dlq:      dlq,
		logger:   logger,
	}, nil
}

// Handle processes one fetched bus message. It satisfies
// consumers.MessageHandler: returning nil commits the offset. Undecodable
// payloads go to the DLQ and are committed; redelivering them cannot help.
func (p *Pusher) Handle(ctx context.Context, key []byte, value []byte) error {
	var event shared.CoinEvent
	if err := json.Unmarshal(value, &event); err != nil {
		p.sendToDLQ(ctx, key, value, "failed to unmarshal coin event: "+err.Error())
		return nil
	}
	if event.UserID == uuid.Nil {
		p.sendToDLQ(ctx, key, value, "coin event has no user id")
		return nil
	}

	if !p.registry.IsOnline(event.UserID) {
		p.logger.Debug("Skipping coin event for offline user",
			"event_id", event.EventID,
			"user_id", event.UserID,
		)
		return nil
	}

	frame, err := chat.NewEnvelope(chat.EventCoinUpdate, "", event)
	if err != nil {
		p.logger.Error("Failed to frame coin event", "event_id", event.EventID, "error", err)
		return nil
	}

	if err := p.pool.Submit(func() {
		delivered := p.registry.SendToUser(event.UserID, frame)
		p.logger.Debug("Pushed coin update",
			"event_id", event.EventID,
			"user_id", event.UserID,
			"type", event.Type,
			"pushed", delivered,
		)
	}); err != nil {
		// Pool is exhausted or released; leave the offset uncommitted so the
		// event is redelivered.
		p.logger.Error("Failed to submit coin event to worker pool",
			"event_id", event.EventID,
			"error", err,
		)
		return err
	}
	return nil
}

func (p *Pusher) sendToDLQ(ctx context.Context, key []byte, value []byte, reason string) {
	p.logger.Error("Discarding undecodable coin event", "key", string(key), "reason", reason)
	if p.dlq == nil {
		return
	}
	if err := p.dlq.PublishToDLQ(ctx, string(key), value, reason); err != nil {
		p.logger.Error("Failed to publish coin event to DLQ", "key", string(key), "error", err)
	}
}

// Shutdown gracefully releases the worker pool
func (p *Pusher) Shutdown() {
	p.logger.Info("Shutting down coin update pusher", "running_workers", p.pool.Running())
	p.pool.Release()
}
