package outbox_poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hospital-accounting-ledger/internal/config"
	"github.com/hospital-accounting-ledger/internal/domain/outbox"
)

// Poller delivers pending outbox messages
type Poller struct {
	outboxRepo       outbox.Repository
	deliverer        Deliverer
	logger           *slog.Logger
	pollInterval     time.Duration
	batchSize        int
	maxRetryAttempts int
}

func NewPoller(
	cfg *config.OutboxConfig,
	outboxRepo outbox.Repository,
	deliverer Deliverer,
	logger *slog.Logger,
) *Poller {
	return &Poller{
		outboxRepo:       outboxRepo,
		deliverer:        deliverer,
		logger:           logger,
		pollInterval:     cfg.PollingInterval,
		batchSize:        cfg.BatchSize,
		maxRetryAttempts: cfg.MaxRetryAttempts,
	}
}

// Start begins polling until context is canceled
func (p *Poller) Start(ctx context.Context) {
	p.logger.Info("Starting Outbox Poller",
		"poll_interval", p.pollInterval.String(),
		"batch_size", p.batchSize,
		"max_retry_attempts", p.maxRetryAttempts,
	)
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Outbox Poller stopping due to context cancellation.")
			return
		case <-ticker.C:
			p.logger.Debug("Outbox Poller tick: processing pending messages")
			if err := p.processPendingMessages(ctx); err != nil {
				p.logger.Error("Error during batch processing of pending outbox messages", "error", err)
			}
		}
	}
}

func (p *Poller) processPendingMessages(ctx context.Context) error {
	messages, err := p.outboxRepo.GetPending(ctx, p.batchSize)
	if err != nil {
		return fmt.Errorf("failed to get pending outbox messages: %w", err)
	}

	if len(messages) == 0 {
		p.logger.Debug("No pending outbox messages found.")
		return nil
	}

	p.logger.Info("Fetched pending outbox messages", "count", len(messages))

	for _, msg := range messages {
		logger := p.logger.With("outbox_id", msg.ID, "kind", msg.Kind)

		err := p.deliverer.Deliver(ctx, msg)
		if err != nil {
			logger.Error("Failed to deliver outbox message",
				"current_attempts", msg.Attempts, "error", err)

			var permanent *PermanentError
			if errors.As(err, &permanent) {
				if errUpdate := p.outboxRepo.UpdateStatus(ctx, msg.ID, outbox.StatusFailedToDeliver); errUpdate != nil {
					logger.Error("Failed to mark undeliverable outbox message as FAILED_TO_DELIVER", "error", errUpdate)
				}
				continue
			}

			if errInc := p.outboxRepo.IncrementAttempts(ctx, msg.ID); errInc != nil {
				logger.Error("Failed to increment attempts for outbox message", "error", errInc)
				// Continue to next message if increment fails
				continue
			}

			if msg.Attempts+1 >= p.maxRetryAttempts {
				logger.Warn("Max retry attempts reached for outbox message, marking as FAILED_TO_DELIVER",
					"attempts_made", msg.Attempts+1)
				if errUpdate := p.outboxRepo.UpdateStatus(ctx, msg.ID, outbox.StatusFailedToDeliver); errUpdate != nil {
					logger.Error("Failed to update outbox status to FAILED_TO_DELIVER after max retries", "error", errUpdate)
				}
			}
			continue
		}

		// Delivered rows are deleted rather than kept; the audit archive
		// and Kafka are the systems of record downstream.
		if err := p.outboxRepo.Delete(ctx, msg.ID); err != nil {
			logger.Error("Delivered outbox message but failed to delete it", "error", err)
			continue
		}
		logger.Info("Successfully delivered and removed outbox message")
	}
	return nil
}
