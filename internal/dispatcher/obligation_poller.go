package dispatcher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hospital-accounting-ledger/internal/config"
	"github.com/hospital-accounting-ledger/internal/domain/obligation"
)

// ObligationPoller re-dispatches pending posting obligations. Every
// failed posting is retried from its durable record until it posts or
// an operator abandons it; idempotency keys make the replays safe.
type ObligationPoller struct {
	obligationRepo  obligation.Repository
	dispatchService DispatchService
	logger          *slog.Logger
	pollInterval    time.Duration
	batchSize       int
	maxAge          time.Duration
}

func NewObligationPoller(
	cfg *config.DispatcherConfig,
	obligationRepo obligation.Repository,
	dispatchService DispatchService,
	logger *slog.Logger,
) *ObligationPoller {
	return &ObligationPoller{
		obligationRepo:  obligationRepo,
		dispatchService: dispatchService,
		logger:          logger,
		pollInterval:    cfg.ObligationPoll,
		batchSize:       cfg.ObligationBatch,
		maxAge:          cfg.ObligationMaxAge,
	}
}

// Start begins polling until context is canceled
func (p *ObligationPoller) Start(ctx context.Context) {
	p.logger.Info("Starting Obligation Poller",
		"poll_interval", p.pollInterval.String(),
		"batch_size", p.batchSize,
		"max_age", p.maxAge.String(),
	)
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Obligation Poller stopping due to context cancellation.")
			return
		case <-ticker.C:
			p.logger.Debug("Obligation Poller tick: retrying pending obligations")
			if err := p.processPendingObligations(ctx); err != nil {
				p.logger.Error("Error during batch retry of pending obligations", "error", err)
			}
		}
	}
}

func (p *ObligationPoller) processPendingObligations(ctx context.Context) error {
	pending, err := p.obligationRepo.GetPending(ctx, p.batchSize)
	if err != nil {
		return fmt.Errorf("failed to get pending obligations: %w", err)
	}

	if len(pending) == 0 {
		p.logger.Debug("No pending obligations found.")
		return nil
	}

	p.logger.Info("Fetched pending obligations for retry", "count", len(pending))

	for _, o := range pending {
		logger := p.logger.With("obligation_id", o.ID, "transaction_ref", o.TransactionRef)

		if age := time.Since(o.CreatedAt); age > p.maxAge {
			logger.Warn("Pending obligation outstanding beyond alert threshold, operator attention needed",
				"age", age.String(),
				"failure_code", o.FailureCode,
				"attempts", o.Attempts,
			)
		}

		event, err := o.SourceEvent()
		if err != nil {
			logger.Error("Failed to decode source event from obligation payload", "error", err)
			continue
		}

		if err := p.dispatchService.DispatchEvent(ctx, event); err != nil {
			logger.Error("Retry dispatch of pending obligation failed", "error", err)
			continue
		}
		// A successful dispatch resolves the obligation; a repeated
		// business failure re-upserted it with a bumped attempt count.
		logger.Info("Retried pending obligation", "attempts", o.Attempts)
	}
	return nil
}
