package depreciation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hospital-accounting-ledger/internal/audit"
	"github.com/hospital-accounting-ledger/internal/config"
	"github.com/hospital-accounting-ledger/internal/domain/asset"
	domaudit "github.com/hospital-accounting-ledger/internal/domain/audit"
	"github.com/hospital-accounting-ledger/internal/domain/currency"
	"github.com/hospital-accounting-ledger/internal/domain/ledger"
)

// BatchPoster posts balanced batches with an in-transaction follow-up.
// Satisfied by *posting.Engine.
type BatchPoster interface {
	PostWithFollowUp(ctx context.Context, req *ledger.BatchRequest, followUp func(tx pgx.Tx) error) (*ledger.Batch, error)
}

// Runner posts monthly depreciation for every active asset. Each asset
// and month maps to the idempotency key "depreciation:<asset>:<YYYY-MM>",
// so repeated runs for the same month are no-ops: the engine returns the
// committed batch and the book-value write-down is skipped.
type Runner struct {
	engine       BatchPoster
	assetRepo    asset.Repository
	currencyRepo currency.Repository
	recorder     *audit.Recorder
	logger       *slog.Logger
	interval     time.Duration
	actor        string
	expenseCode  string
	accumCode    string
}

func NewRunner(
	cfg *config.DepreciationConfig,
	engine BatchPoster,
	assetRepo asset.Repository,
	currencyRepo currency.Repository,
	recorder *audit.Recorder,
	logger *slog.Logger,
) *Runner {
	return &Runner{
		engine:       engine,
		assetRepo:    assetRepo,
		currencyRepo: currencyRepo,
		recorder:     recorder,
		logger:       logger,
		interval:     cfg.CheckInterval,
		actor:        cfg.Actor,
		expenseCode:  cfg.ExpenseAccountCode,
		accumCode:    cfg.AccumulatedAccountCode,
	}
}

// Start runs the monthly check loop until context is canceled
func (r *Runner) Start(ctx context.Context) {
	r.logger.Info("Starting Depreciation Runner",
		"check_interval", r.interval.String(),
		"expense_account", r.expenseCode,
		"accumulated_account", r.accumCode,
	)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Depreciation Runner stopping due to context cancellation.")
			return
		case <-ticker.C:
			month := time.Now().UTC()
			if err := r.RunAll(ctx, month); err != nil {
				r.logger.Error("Error during depreciation run", "month", MonthKey(month), "error", err)
			}
		}
	}
}

// RunAll posts the given month's depreciation for every hospital with
// active assets
func (r *Runner) RunAll(ctx context.Context, month time.Time) error {
	hospitalIDs, err := r.assetRepo.HospitalsWithActiveAssets(ctx)
	if err != nil {
		return fmt.Errorf("failed to enumerate hospitals for depreciation: %w", err)
	}

	for _, hospitalID := range hospitalIDs {
		if err := r.RunMonth(ctx, hospitalID, month); err != nil {
			r.logger.Error("Depreciation run failed for hospital",
				"hospital_id", hospitalID.String(), "month", MonthKey(month), "error", err)
		}
	}
	return nil
}

// RunMonth posts one month of depreciation for a hospital's active
// assets. A failure on one asset does not stop the others; the failed
// asset is retried on the next tick via idempotent re-posting.
func (r *Runner) RunMonth(ctx context.Context, hospitalID uuid.UUID, month time.Time) error {
	assets, err := r.assetRepo.ListActive(ctx, hospitalID)
	if err != nil {
		return fmt.Errorf("failed to list active assets: %w", err)
	}
	if len(assets) == 0 {
		return nil
	}

	base, err := r.currencyRepo.GetBase(ctx, hospitalID)
	if err != nil {
		return fmt.Errorf("failed to resolve base currency: %w", err)
	}

	var failed int
	for _, a := range assets {
		if err := r.depreciateAsset(ctx, a, base.Code, month); err != nil {
			failed++
			r.logger.Error("Failed to depreciate asset",
				"asset_id", a.ID.String(), "month", MonthKey(month), "error", err)
		}
	}
	if failed > 0 {
		return fmt.Errorf("depreciation failed for %d of %d assets", failed, len(assets))
	}
	return nil
}

func (r *Runner) depreciateAsset(ctx context.Context, a *asset.FixedAsset, baseCurrencyCode string, month time.Time) error {
	strategy, err := ForMethod(a.DepreciationMethod)
	if err != nil {
		return err
	}

	amount := strategy.MonthlyCents(a)
	// Final month: clamp so book value never drops below salvage.
	if remaining := a.DepreciableCents(); amount > remaining {
		amount = remaining
	}
	if amount <= 0 {
		return nil
	}

	req := &ledger.BatchRequest{
		TransactionRef:  TransactionRef(a.ID, month),
		HospitalID:      a.HospitalID,
		TransactionDate: month,
		Description:     fmt.Sprintf("Monthly depreciation %s for %s", MonthKey(month), a.Name),
		Actor:           r.actor,
		Lines: []ledger.Line{
			{
				DebitAccountCode:  r.expenseCode,
				CreditAccountCode: r.accumCode,
				AmountCents:       amount,
				CurrencyCode:      baseCurrencyCode,
				Description:       fmt.Sprintf("Depreciation %s (%s)", a.Name, a.CostCenter),
			},
		},
	}

	batch, err := r.engine.PostWithFollowUp(ctx, req, func(tx pgx.Tx) error {
		before := *a
		if _, err := a.ApplyDepreciation(amount); err != nil {
			return err
		}
		if err := r.assetRepo.WithTx(tx).Update(ctx, a); err != nil {
			return fmt.Errorf("failed to write down asset %s: %w", a.ID, err)
		}
		return r.recorder.Record(ctx, tx, a.HospitalID, r.actor, domaudit.ActionUpdate,
			"fixed_assets", a.ID.String(), &before, a)
	})
	if err != nil {
		return err
	}

	r.logger.Info("Posted monthly depreciation",
		"asset_id", a.ID.String(),
		"transaction_ref", batch.TransactionRef,
		"amount_cents", amount,
		"book_value_cents", a.CurrentBookValueCents,
	)
	return nil
}

// TransactionRef derives the idempotency key for one asset-month
func TransactionRef(assetID uuid.UUID, month time.Time) string {
	return fmt.Sprintf("depreciation:%s:%s", assetID, MonthKey(month))
}

// MonthKey formats a month as YYYY-MM
func MonthKey(month time.Time) string {
	return month.Format("2006-01")
}
