// Package posting implements the journal posting engine: the single write
// path for ledger entries and account balances. Every posting commits
// atomically, balanced in base currency, with idempotency on the caller's
// transaction ref.
package posting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/hospital-accounting-ledger/internal/audit"
	"github.com/hospital-accounting-ledger/internal/domain/account"
	domaudit "github.com/hospital-accounting-ledger/internal/domain/audit"
	"github.com/hospital-accounting-ledger/internal/domain/booklock"
	"github.com/hospital-accounting-ledger/internal/domain/currency"
	"github.com/hospital-accounting-ledger/internal/domain/ledger"
	"github.com/hospital-accounting-ledger/internal/domain/outbox"
	"github.com/hospital-accounting-ledger/internal/platform/persistence"
)

// TxRunner abstracts transactional execution so the engine can be tested
// without a live pool.
type TxRunner interface {
	ExecuteTx(ctx context.Context, fn func(tx pgx.Tx) error) error
}

var _ TxRunner = (*persistence.PostgresDB)(nil)

// Engine posts balanced batches of ledger entries. All ledger and balance
// writes in the system flow through Post; nothing else mutates them.
type Engine struct {
	db           TxRunner
	accountRepo  account.Repository
	ledgerRepo   ledger.Repository
	lockRepo     booklock.Repository
	currencyRepo currency.Repository
	outboxRepo   outbox.Repository
	recorder     *audit.Recorder
	logger       *slog.Logger
}

func NewEngine(
	db TxRunner,
	accountRepo account.Repository,
	ledgerRepo ledger.Repository,
	lockRepo booklock.Repository,
	currencyRepo currency.Repository,
	outboxRepo outbox.Repository,
	recorder *audit.Recorder,
	logger *slog.Logger,
) *Engine {
	return &Engine{
		db:           db,
		accountRepo:  accountRepo,
		ledgerRepo:   ledgerRepo,
		lockRepo:     lockRepo,
		currencyRepo: currencyRepo,
		outboxRepo:   outboxRepo,
		recorder:     recorder,
		logger:       logger,
	}
}

// Post atomically posts one balanced batch. Posting the same
// TransactionRef twice returns the committed batch unchanged, so retries
// after timeouts are safe. Returns ErrConcurrencyConflict on retryable
// lock contention.
func (e *Engine) Post(ctx context.Context, req *ledger.BatchRequest) (*ledger.Batch, error) {
	return e.PostWithFollowUp(ctx, req, nil)
}

// PostWithFollowUp posts the batch and, when it is newly committed, runs
// followUp inside the same transaction. The dispatcher uses this to keep
// side-table updates (invoice payment progress) atomic with the posting.
// followUp does not run for duplicate requests.
func (e *Engine) PostWithFollowUp(ctx context.Context, req *ledger.BatchRequest, followUp func(tx pgx.Tx) error) (*ledger.Batch, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	var batch *ledger.Batch
	err := e.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		var duplicate bool
		var txErr error
		batch, duplicate, txErr = e.postInTx(ctx, tx, req)
		if txErr != nil {
			return txErr
		}
		if !duplicate && followUp != nil {
			return followUp(tx)
		}
		return nil
	})
	if err != nil {
		return nil, classifyTxError(req.TransactionRef, err)
	}

	return batch, nil
}

// Reverse posts the mirror image of a committed batch under the ref
// "<ref>:reversal" and flags the original as reversed. Reversal lines are
// denominated in base currency so they cancel the original exactly even
// if exchange rates have since moved. This is the only correction path;
// committed entries are never edited.
func (e *Engine) Reverse(ctx context.Context, hospitalID uuid.UUID, transactionRef, actor string) (*ledger.Batch, error) {
	var reversal *ledger.Batch
	err := e.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		if err := acquireHospitalLock(ctx, tx, hospitalID); err != nil {
			return err
		}

		original, err := e.ledgerRepo.WithTx(tx).GetBatchByRef(ctx, hospitalID, transactionRef)
		if err != nil {
			return err
		}

		base, err := e.currencyRepo.WithTx(tx).GetBase(ctx, hospitalID)
		if err != nil {
			return err
		}

		req := &ledger.BatchRequest{
			TransactionRef:  ledger.ReversalRef(transactionRef),
			HospitalID:      hospitalID,
			TransactionDate: time.Now().UTC(),
			Description:     "Reversal of " + transactionRef,
			Actor:           actor,
			Lines:           make([]ledger.Line, 0, len(original.Entries)),
		}
		for _, entry := range original.Entries {
			req.Lines = append(req.Lines, ledger.Line{
				DebitAccountCode:  entry.CreditAccountCode,
				CreditAccountCode: entry.DebitAccountCode,
				AmountCents:       entry.BaseAmountCents,
				CurrencyCode:      base.Code,
				Description:       "Reversal: " + entry.Description,
			})
		}
		if err := validateRequest(req); err != nil {
			return err
		}

		var duplicate bool
		reversal, duplicate, err = e.postInTx(ctx, tx, req)
		if err != nil {
			return err
		}
		if duplicate || original.Reversed {
			return nil
		}

		if err := e.ledgerRepo.WithTx(tx).MarkBatchReversed(ctx, original.ID); err != nil {
			return err
		}
		reversed := *original
		reversed.Reversed = true
		reversed.Entries = nil
		originalHeader := *original
		originalHeader.Entries = nil
		return e.recorder.Record(ctx, tx, hospitalID, actor, domaudit.ActionUpdate,
			"ledger_batches", original.ID.String(), &originalHeader, &reversed)
	})
	if err != nil {
		return nil, classifyTxError(transactionRef, err)
	}

	return reversal, nil
}

// postInTx runs the posting sequence inside an open transaction. The
// advisory lock taken first serializes all postings for one hospital
// while leaving other hospitals fully parallel. Returns the committed
// batch and whether it already existed.
func (e *Engine) postInTx(ctx context.Context, tx pgx.Tx, req *ledger.BatchRequest) (*ledger.Batch, bool, error) {
	if err := acquireHospitalLock(ctx, tx, req.HospitalID); err != nil {
		return nil, false, err
	}

	ledgerRepo := e.ledgerRepo.WithTx(tx)

	existing, err := ledgerRepo.GetBatchByRef(ctx, req.HospitalID, req.TransactionRef)
	if err == nil {
		e.logger.Info("Duplicate posting request, returning committed batch",
			"transaction_ref", req.TransactionRef,
			"batch_id", existing.ID.String(),
		)
		return existing, true, nil
	}
	if !errors.Is(err, ledger.ErrBatchNotFound{}) {
		return nil, false, err
	}

	if err := e.checkBookLock(ctx, tx, req); err != nil {
		return nil, false, err
	}

	accounts, err := e.lockAccounts(ctx, tx, req)
	if err != nil {
		return nil, false, err
	}

	batch, err := e.buildBatch(ctx, tx, req)
	if err != nil {
		return nil, false, err
	}

	if err := ledgerRepo.CreateBatch(ctx, batch); err != nil {
		return nil, false, err
	}

	accountRepo := e.accountRepo.WithTx(tx)
	for _, entry := range batch.Entries {
		debitAcc := accounts[entry.DebitAccountCode]
		creditAcc := accounts[entry.CreditAccountCode]
		if err := accountRepo.ApplyBalanceDelta(ctx, debitAcc.ID, debitAcc.DebitDelta(entry.BaseAmountCents)); err != nil {
			return nil, false, err
		}
		if err := accountRepo.ApplyBalanceDelta(ctx, creditAcc.ID, creditAcc.CreditDelta(entry.BaseAmountCents)); err != nil {
			return nil, false, err
		}
	}

	batchHeader := *batch
	batchHeader.Entries = nil
	if err := e.recorder.Record(ctx, tx, req.HospitalID, req.Actor, domaudit.ActionCreate,
		"ledger_batches", batch.ID.String(), nil, &batchHeader); err != nil {
		return nil, false, err
	}

	posted, err := outbox.NewPostedMessage(batch)
	if err != nil {
		return nil, false, fmt.Errorf("failed to build posted event for %s: %w", req.TransactionRef, err)
	}
	if err := e.outboxRepo.WithTx(tx).Create(ctx, posted); err != nil {
		return nil, false, err
	}

	e.logger.Info("Posted ledger batch",
		"transaction_ref", req.TransactionRef,
		"batch_id", batch.ID.String(),
		"hospital_id", req.HospitalID.String(),
		"entries", len(batch.Entries),
		"total_cents", batch.TotalCents,
	)
	return batch, false, nil
}

// checkBookLock enforces the period lock inside the posting transaction.
// An absent lock row means the books are fully open.
func (e *Engine) checkBookLock(ctx context.Context, tx pgx.Tx, req *ledger.BatchRequest) error {
	lock, err := e.lockRepo.WithTx(tx).Get(ctx, req.HospitalID)
	if err != nil {
		if errors.Is(err, booklock.ErrLockNotFound{}) {
			return nil
		}
		return err
	}
	if lock.Covers(req.TransactionDate) {
		return ledger.ErrPeriodLocked{
			HospitalID:      req.HospitalID,
			TransactionDate: req.TransactionDate,
			LockDate:        lock.LockDate,
		}
	}
	return nil
}

// lockAccounts resolves and row-locks every account the batch touches,
// in code order so concurrent batches cannot deadlock on account rows.
func (e *Engine) lockAccounts(ctx context.Context, tx pgx.Tx, req *ledger.BatchRequest) (map[string]*account.Account, error) {
	codes := make(map[string]struct{})
	for _, line := range req.Lines {
		codes[line.DebitAccountCode] = struct{}{}
		codes[line.CreditAccountCode] = struct{}{}
	}
	ordered := make([]string, 0, len(codes))
	for code := range codes {
		ordered = append(ordered, code)
	}
	sort.Strings(ordered)

	accountRepo := e.accountRepo.WithTx(tx)
	accounts := make(map[string]*account.Account, len(ordered))
	for _, code := range ordered {
		acc, err := accountRepo.LockForUpdate(ctx, req.HospitalID, code)
		if err != nil {
			return nil, err
		}
		accounts[code] = acc
	}
	return accounts, nil
}

// buildBatch converts every line to base currency with the current rate
// snapshot and verifies the batch balances in base cents.
func (e *Engine) buildBatch(ctx context.Context, tx pgx.Tx, req *ledger.BatchRequest) (*ledger.Batch, error) {
	currencyRepo := e.currencyRepo.WithTx(tx)
	currencies := make(map[string]*currency.Currency)

	now := time.Now().UTC()
	batch := &ledger.Batch{
		ID:              uuid.New(),
		TransactionRef:  req.TransactionRef,
		HospitalID:      req.HospitalID,
		TransactionDate: req.TransactionDate,
		Description:     req.Description,
		Actor:           req.Actor,
		CreatedAt:       now,
	}

	var totalDebits, totalCredits int64
	for _, line := range req.Lines {
		cur, ok := currencies[line.CurrencyCode]
		if !ok {
			var err error
			cur, err = currencyRepo.GetByCode(ctx, req.HospitalID, line.CurrencyCode)
			if err != nil {
				if errors.Is(err, currency.ErrCurrencyNotFound{}) {
					return nil, ledger.ValidationError{Reason: "unknown currency " + line.CurrencyCode}
				}
				return nil, err
			}
			currencies[line.CurrencyCode] = cur
		}

		baseCents := cur.ToBaseCents(line.AmountCents)
		if baseCents <= 0 {
			return nil, ledger.ValidationError{Reason: "line amount rounds to zero in base currency"}
		}
		totalDebits += baseCents
		totalCredits += baseCents

		batch.Entries = append(batch.Entries, &ledger.Entry{
			ID:                    uuid.New(),
			BatchID:               batch.ID,
			HospitalID:            req.HospitalID,
			TransactionDate:       req.TransactionDate,
			Description:           line.Description,
			DebitAccountCode:      line.DebitAccountCode,
			CreditAccountCode:     line.CreditAccountCode,
			AmountCents:           line.AmountCents,
			CurrencyCode:          line.CurrencyCode,
			ExchangeRateAtPosting: cur.ExchangeRate,
			BaseAmountCents:       baseCents,
			Actor:                 req.Actor,
			CreatedAt:             now,
		})
	}

	// Lines are debit/credit pairs over a single base amount, so the
	// totals only diverge if entry construction stops pairing the
	// sides. Until then this branch cannot fire.
	if totalDebits != totalCredits {
		return nil, ledger.ErrUnbalancedBatch{
			TransactionRef: req.TransactionRef,
			DebitCents:     totalDebits,
			CreditCents:    totalCredits,
		}
	}
	batch.TotalCents = totalDebits

	return batch, nil
}

func validateRequest(req *ledger.BatchRequest) error {
	if req.TransactionRef == "" {
		return ledger.ValidationError{Reason: "transaction ref is required"}
	}
	if req.HospitalID == uuid.Nil {
		return ledger.ValidationError{Reason: "hospital id is required"}
	}
	if req.TransactionDate.IsZero() {
		return ledger.ValidationError{Reason: "transaction date is required"}
	}
	if req.Actor == "" {
		return ledger.ValidationError{Reason: "actor is required"}
	}
	if len(req.Lines) == 0 {
		return ledger.ValidationError{Reason: "batch must contain at least one line"}
	}
	for i, line := range req.Lines {
		if line.AmountCents <= 0 {
			return ledger.ValidationError{Reason: fmt.Sprintf("line %d: amount must be positive", i)}
		}
		if line.DebitAccountCode == "" || line.CreditAccountCode == "" {
			return ledger.ValidationError{Reason: fmt.Sprintf("line %d: debit and credit accounts are required", i)}
		}
		if line.DebitAccountCode == line.CreditAccountCode {
			return ledger.ValidationError{Reason: fmt.Sprintf("line %d: debit and credit accounts must differ", i)}
		}
		if len(line.CurrencyCode) != 3 {
			return ledger.ValidationError{Reason: fmt.Sprintf("line %d: currency must be a 3-letter code", i)}
		}
	}
	return nil
}

// acquireHospitalLock serializes posting for one hospital. The lock is
// released automatically at transaction end.
func acquireHospitalLock(ctx context.Context, tx pgx.Tx, hospitalID uuid.UUID) error {
	_, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", hospitalID.String())
	if err != nil {
		return fmt.Errorf("failed to acquire hospital posting lock: %w", err)
	}
	return nil
}

// classifyTxError maps retryable Postgres contention errors to
// ErrConcurrencyConflict so callers can back off and retry.
func classifyTxError(transactionRef string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "55P03": // serialization failure, deadlock, lock not available
			return ledger.ErrConcurrencyConflict{TransactionRef: transactionRef, Cause: err}
		}
	}
	return err
}
