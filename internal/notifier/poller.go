package notifier

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/barterverse-backend/internal/config"
	"github.com/barterverse-backend/internal/domain/outbox"
	"github.com/barterverse-backend/internal/domain/shared"
	"github.com/barterverse-backend/internal/platform/messaging/producers"
)

// Poller drains the coin outbox onto the Kafka bus. Events are published
// keyed by user id; a published row is marked PROCESSED, a failing row is
// retried until the attempt limit and then parked as FAILED_TO_PUBLISH.
type Poller struct {
	outboxRepo       outbox.Repository
	publisher        producers.MessagePublisher
	logger           *slog.Logger
	pollInterval     time.Duration
	batchSize        int
	maxRetryAttempts int
}

func NewPoller(
	cfg *config.OutboxConfig,
	outboxRepo outbox.Repository,
	publisher producers.MessagePublisher,
	logger *slog.Logger,
) *Poller {
	return &Poller{
		outboxRepo:       outboxRepo,
		publisher:        publisher,
		logger:           logger,
		pollInterval:     cfg.PollingInterval,
		batchSize:        cfg.BatchSize,
		maxRetryAttempts: cfg.MaxRetryAttempts,
	}
}

// Start begins polling until context is canceled
func (p *Poller) Start(ctx context.Context) {
	p.logger.Info("Starting outbox poller",
		"poll_interval", p.pollInterval.String(),
		"batch_size", p.batchSize,
		"max_retry_attempts", p.maxRetryAttempts,
	)
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Outbox poller stopping due to context cancellation.")
			return
		case <-ticker.C:
			if err := p.processPendingEvents(ctx); err != nil {
				p.logger.Error("Error during batch processing of pending coin events", "error", err)
			}
		}
	}
}

func (p *Poller) processPendingEvents(ctx context.Context) error {
	events, err := p.outboxRepo.GetPending(ctx, p.batchSize)
	if err != nil {
		return fmt.Errorf("failed to get pending coin events: %w", err)
	}

	if len(events) == 0 {
		p.logger.Debug("No pending coin events found.")
		return nil
	}

	p.logger.Info("Fetched pending coin events", "count", len(events))

	for _, event := range events {
		logger := p.logger
		if ce, err := event.CoinEvent(); err == nil && ce.CorrelationID != "" {
			logger = p.logger.With("correlation_id", ce.CorrelationID)
		}

		if err := p.publisher.Publish(ctx, event.UserID.String(), event.Payload); err != nil {
			logger.Error("Failed to publish coin event",
				"outbox_id", event.ID, "event_id", event.EventID, "current_attempts", event.Attempts, "error", err,
			)

			if errInc := p.outboxRepo.IncrementAttempts(ctx, event.ID); errInc != nil {
				logger.Error("Failed to increment attempts for coin event", "outbox_id", event.ID, "error", errInc)
				continue
			}

			if event.Attempts+1 >= p.maxRetryAttempts {
				logger.Warn("Max retry attempts reached for coin event, marking as FAILED_TO_PUBLISH",
					"outbox_id", event.ID, "event_id", event.EventID, "attempts_made", event.Attempts+1,
				)
				if errUpdate := p.outboxRepo.UpdateStatus(ctx, event.ID, shared.OutboxStatusFailedToPublish); errUpdate != nil {
					logger.Error("Failed to park coin event after max retries", "outbox_id", event.ID, "error", errUpdate)
				}
			}
			continue
		}

		if err := p.outboxRepo.UpdateStatus(ctx, event.ID, shared.OutboxStatusProcessed); err != nil {
			// The event was published; a stale PENDING row only causes a
			// duplicate publish, which consumers tolerate.
			logger.Error("Failed to mark coin event as processed", "outbox_id", event.ID, "error", err)
			continue
		}
		logger.Debug("Published coin event", "outbox_id", event.ID, "event_id", event.EventID)
	}
	return nil
}
