package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hospital-accounting-ledger/internal/config"
	"github.com/hospital-accounting-ledger/internal/domain/account"
	"github.com/hospital-accounting-ledger/internal/domain/currency"
	"github.com/hospital-accounting-ledger/internal/domain/invoice"
	"github.com/hospital-accounting-ledger/internal/domain/ledger"
	"github.com/hospital-accounting-ledger/internal/domain/obligation"
	"github.com/hospital-accounting-ledger/internal/domain/rule"
	"github.com/hospital-accounting-ledger/internal/domain/shared"
)

// Failure codes recorded on posting obligations.
const (
	FailureInvalidEvent        = "INVALID_EVENT"
	FailureNoPostingRule       = "NO_POSTING_RULE"
	FailureUnknownAccount      = "UNKNOWN_ACCOUNT"
	FailureUnknownCurrency     = "UNKNOWN_CURRENCY"
	FailurePeriodLocked        = "PERIOD_LOCKED"
	FailureInvalidRequest      = "INVALID_REQUEST"
	FailureUnbalancedBatch     = "UNBALANCED_BATCH"
	FailureConcurrencyConflict = "CONCURRENCY_CONFLICT"
)

// DispatchServiceImpl implements DispatchService. It resolves the
// posting rule for an event, expands the rule into a balanced batch
// request, and posts it through the engine with bounded retries on
// concurrency conflicts. Business failures are persisted as pending
// posting obligations and acknowledged; infrastructure failures
// propagate so the message is redelivered.
type DispatchServiceImpl struct {
	engine         BatchPoster
	ruleRepo       rule.Repository
	invoiceRepo    invoice.Repository
	obligationRepo obligation.Repository
	cfg            *config.DispatcherConfig
	logger         *slog.Logger
}

func NewDispatchService(
	engine BatchPoster,
	ruleRepo rule.Repository,
	invoiceRepo invoice.Repository,
	obligationRepo obligation.Repository,
	cfg *config.DispatcherConfig,
	logger *slog.Logger,
) *DispatchServiceImpl {
	return &DispatchServiceImpl{
		engine:         engine,
		ruleRepo:       ruleRepo,
		invoiceRepo:    invoiceRepo,
		obligationRepo: obligationRepo,
		cfg:            cfg,
		logger:         logger,
	}
}

// DispatchEvent posts the ledger batch for a source transition. A nil
// return means the event is fully handled (posted, or durably recorded
// as an obligation) and its offset can be committed.
func (s *DispatchServiceImpl) DispatchEvent(ctx context.Context, event *shared.SourceEvent) error {
	logger := s.logger
	if event.CorrelationID != "" {
		logger = s.logger.With("correlation_id", event.CorrelationID)
	}

	if err := event.Validate(); err != nil {
		logger.Error("Rejecting structurally invalid source event",
			"transaction_ref", event.TransactionRef(), "error", err)
		return s.recordObligation(ctx, logger, event, FailureInvalidEvent, err)
	}

	postingRule, err := s.ruleRepo.Get(ctx, event.HospitalID, event.Type, event.Transition)
	if err != nil {
		if errors.Is(err, rule.ErrRuleNotFound{}) {
			logger.Error("No posting rule configured for transition",
				"hospital_id", event.HospitalID, "type", event.Type, "transition", event.Transition)
			return s.recordObligation(ctx, logger, event, FailureNoPostingRule, err)
		}
		return fmt.Errorf("failed to load posting rule for %s: %w", event.TransactionRef(), err)
	}

	req := buildBatchRequest(event, postingRule)

	logger.Info("Dispatching source event to posting engine",
		"transaction_ref", req.TransactionRef,
		"hospital_id", event.HospitalID.String(),
		"lines", len(req.Lines),
	)

	batch, err := s.postWithRetry(ctx, logger, req, s.followUp(ctx, logger, event))
	if err != nil {
		if code, business := classifyFailure(err); business {
			logger.Error("Posting failed with business error, recording obligation",
				"transaction_ref", req.TransactionRef, "failure_code", code, "error", err)
			return s.recordObligation(ctx, logger, event, code, err)
		}
		return fmt.Errorf("dispatching %s failed: %w", req.TransactionRef, err)
	}

	// A prior failure for this transition may have left a pending
	// obligation; the successful post satisfies it.
	if err := s.obligationRepo.Resolve(ctx, req.TransactionRef); err != nil {
		logger.Error("Posted batch but failed to resolve pending obligation",
			"transaction_ref", req.TransactionRef, "error", err)
	}

	logger.Info("Successfully posted batch for source event",
		"transaction_ref", batch.TransactionRef, "batch_id", batch.ID.String())
	return nil
}

// postWithRetry retries concurrency conflicts with doubling backoff.
// Every other error, and conflict exhaustion, returns to the caller.
func (s *DispatchServiceImpl) postWithRetry(ctx context.Context, logger *slog.Logger, req *ledger.BatchRequest, followUp func(tx pgx.Tx) error) (*ledger.Batch, error) {
	backoff := s.cfg.InitialBackoff
	for attempt := 0; ; attempt++ {
		batch, err := s.engine.PostWithFollowUp(ctx, req, followUp)
		if err == nil {
			return batch, nil
		}
		if !errors.Is(err, ledger.ErrConcurrencyConflict{}) || attempt >= s.cfg.MaxRetries {
			return nil, err
		}

		logger.Warn("Concurrency conflict while posting, retrying",
			"transaction_ref", req.TransactionRef, "attempt", attempt+1, "backoff", backoff.String())
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}

// followUp returns the side-table update to run inside the posting
// transaction, or nil when the event has none. Invoice finalization
// seeds the receivable projection; cleared payments advance it.
func (s *DispatchServiceImpl) followUp(ctx context.Context, logger *slog.Logger, event *shared.SourceEvent) func(tx pgx.Tx) error {
	switch {
	case event.Type == shared.SourceInvoice && event.Transition == shared.TransitionFinalized:
		return func(tx pgx.Tx) error {
			projection := invoice.NewProjection(event.HospitalID, event.SourceID, event.AmountCents)
			if err := s.invoiceRepo.WithTx(tx).Upsert(ctx, projection); err != nil {
				return fmt.Errorf("failed to upsert invoice projection %s: %w", event.SourceID, err)
			}
			return nil
		}

	case event.Type == shared.SourcePayment && event.Transition == shared.TransitionCleared:
		invoiceID, err := uuid.Parse(event.Reference)
		if err != nil {
			logger.Warn("Payment event carries no parseable invoice reference, skipping projection update",
				"transaction_ref", event.TransactionRef(), "reference", event.Reference)
			return nil
		}
		return func(tx pgx.Tx) error {
			projection, err := s.invoiceRepo.WithTx(tx).ApplyPayment(ctx, event.HospitalID, invoiceID, event.AmountCents)
			if err != nil {
				// The projection may predate this service; the posting
				// itself must still commit.
				if errors.Is(err, invoice.ErrProjectionNotFound{}) {
					logger.Warn("No invoice projection for cleared payment",
						"invoice_id", invoiceID.String(), "transaction_ref", event.TransactionRef())
					return nil
				}
				return fmt.Errorf("failed to apply payment to invoice projection %s: %w", invoiceID, err)
			}
			logger.Info("Updated invoice projection from cleared payment",
				"invoice_id", invoiceID.String(), "paid_cents", projection.PaidCents, "status", projection.Status)
			return nil
		}
	}
	return nil
}

func (s *DispatchServiceImpl) recordObligation(ctx context.Context, logger *slog.Logger, event *shared.SourceEvent, failureCode string, cause error) error {
	o, err := obligation.NewObligation(event, failureCode, cause.Error())
	if err != nil {
		return fmt.Errorf("failed to build posting obligation for %s: %w", event.TransactionRef(), err)
	}
	if err := s.obligationRepo.Upsert(ctx, o); err != nil {
		return fmt.Errorf("failed to persist posting obligation for %s: %w", event.TransactionRef(), err)
	}
	logger.Info("Recorded pending posting obligation",
		"transaction_ref", o.TransactionRef, "failure_code", failureCode, "attempts", o.Attempts)
	return nil
}

// buildBatchRequest expands a posting rule into engine input. Rate
// lines that floor to zero are dropped rather than rejected.
func buildBatchRequest(event *shared.SourceEvent, postingRule *rule.Rule) *ledger.BatchRequest {
	lines := make([]ledger.Line, 0, len(postingRule.Lines))
	for _, ruleLine := range postingRule.Lines {
		amount := ruleLine.AmountCents(event.AmountCents)
		if amount <= 0 {
			continue
		}

		creditCode := ruleLine.CreditAccountCode
		if event.PaidInCash && ruleLine.CashCreditAccountCode != "" {
			creditCode = ruleLine.CashCreditAccountCode
		}

		description := ruleLine.Description
		if description == "" {
			description = fmt.Sprintf("%s %s", event.Type, event.Transition)
		}
		if event.Category != "" {
			description = description + " - " + event.Category
		}

		lines = append(lines, ledger.Line{
			DebitAccountCode:  ruleLine.DebitAccountCode,
			CreditAccountCode: creditCode,
			AmountCents:       amount,
			CurrencyCode:      event.CurrencyCode,
			Description:       description,
		})
	}

	return &ledger.BatchRequest{
		TransactionRef:  event.TransactionRef(),
		HospitalID:      event.HospitalID,
		TransactionDate: event.Date,
		Description:     fmt.Sprintf("%s %s for %s", event.Type, event.Transition, event.SourceID),
		Actor:           event.ActorID,
		Lines:           lines,
	}
}

// classifyFailure reports whether the posting error is a business
// failure that an obligation should absorb, and under which code.
// Anything unrecognized is treated as infrastructure and retried via
// message redelivery.
func classifyFailure(err error) (string, bool) {
	switch {
	case errors.Is(err, ledger.ErrPeriodLocked{}):
		return FailurePeriodLocked, true
	case errors.Is(err, account.ErrAccountNotFound{}):
		return FailureUnknownAccount, true
	case errors.Is(err, currency.ErrCurrencyNotFound{}):
		return FailureUnknownCurrency, true
	case errors.Is(err, ledger.ErrUnbalancedBatch{}):
		return FailureUnbalancedBatch, true
	case errors.Is(err, ledger.ValidationError{}):
		return FailureInvalidRequest, true
	case errors.Is(err, ledger.ErrConcurrencyConflict{}):
		return FailureConcurrencyConflict, true
	default:
		return "", false
	}
}
