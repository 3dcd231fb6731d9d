package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hospital-accounting-ledger/internal/domain/ledger"
	"github.com/hospital-accounting-ledger/internal/platform/persistence"
	"github.com/jackc/pgx/v5"
)

// LedgerRepository implements the ledger.Repository interface for PostgreSQL.
// Batches and entries are append-only; the only mutation is the reversed
// marker set when a compensating batch is posted.
type LedgerRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewLedgerRepository creates a new PostgreSQL ledger repository
func NewLedgerRepository(logger *slog.Logger, db *persistence.PostgresDB) ledger.Repository {
	return &LedgerRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction for atomic operations
func (r *LedgerRepository) WithTx(tx pgx.Tx) ledger.Repository {
	return &LedgerRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// CreateBatch persists the batch header and all its entries. Callers run
// this inside the posting transaction so the whole batch commits or
// aborts as one unit.
func (r *LedgerRepository) CreateBatch(ctx context.Context, batch *ledger.Batch) error {
	batchQuery := `
		INSERT INTO ledger_batches (id, transaction_ref, hospital_id, transaction_date, description, actor, total_cents, reversed, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.querier.Exec(ctx, batchQuery,
		batch.ID,
		batch.TransactionRef,
		batch.HospitalID,
		batch.TransactionDate,
		batch.Description,
		batch.Actor,
		batch.TotalCents,
		batch.Reversed,
		batch.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create ledger batch", "transaction_ref", batch.TransactionRef, "error", err)
		return fmt.Errorf("failed to create ledger batch: %w", err)
	}

	entryQuery := `
		INSERT INTO ledger_entries (id, batch_id, hospital_id, transaction_date, description, debit_account_code, credit_account_code, amount_cents, currency_code, exchange_rate_at_posting, base_amount_cents, actor, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	for _, entry := range batch.Entries {
		_, err := r.querier.Exec(ctx, entryQuery,
			entry.ID,
			entry.BatchID,
			entry.HospitalID,
			entry.TransactionDate,
			entry.Description,
			entry.DebitAccountCode,
			entry.CreditAccountCode,
			entry.AmountCents,
			entry.CurrencyCode,
			entry.ExchangeRateAtPosting,
			entry.BaseAmountCents,
			entry.Actor,
			entry.CreatedAt,
		)
		if err != nil {
			r.logger.Error("Failed to create ledger entry", "batch_id", batch.ID.String(), "error", err)
			return fmt.Errorf("failed to create ledger entry: %w", err)
		}
	}

	return nil
}

// GetBatchByRef retrieves a batch and its entries by transaction ref.
// This is the idempotency lookup the posting engine relies on.
func (r *LedgerRepository) GetBatchByRef(ctx context.Context, hospitalID uuid.UUID, transactionRef string) (*ledger.Batch, error) {
	batchQuery := `
		SELECT id, transaction_ref, hospital_id, transaction_date, description, actor, total_cents, reversed, created_at
		FROM ledger_batches
		WHERE hospital_id = $1 AND transaction_ref = $2
	`

	var batch ledger.Batch
	err := r.querier.QueryRow(ctx, batchQuery, hospitalID, transactionRef).Scan(
		&batch.ID,
		&batch.TransactionRef,
		&batch.HospitalID,
		&batch.TransactionDate,
		&batch.Description,
		&batch.Actor,
		&batch.TotalCents,
		&batch.Reversed,
		&batch.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ledger.ErrBatchNotFound{TransactionRef: transactionRef}
		}
		r.logger.Error("Failed to get ledger batch", "transaction_ref", transactionRef, "error", err)
		return nil, fmt.Errorf("failed to get ledger batch: %w", err)
	}

	entryQuery := `
		SELECT id, batch_id, hospital_id, transaction_date, description, debit_account_code, credit_account_code, amount_cents, currency_code, exchange_rate_at_posting, base_amount_cents, actor, created_at
		FROM ledger_entries
		WHERE batch_id = $1
		ORDER BY created_at ASC, id ASC
	`

	rows, err := r.querier.Query(ctx, entryQuery, batch.ID)
	if err != nil {
		r.logger.Error("Failed to get batch entries", "batch_id", batch.ID.String(), "error", err)
		return nil, fmt.Errorf("failed to get batch entries: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var entry ledger.Entry
		err := rows.Scan(
			&entry.ID,
			&entry.BatchID,
			&entry.HospitalID,
			&entry.TransactionDate,
			&entry.Description,
			&entry.DebitAccountCode,
			&entry.CreditAccountCode,
			&entry.AmountCents,
			&entry.CurrencyCode,
			&entry.ExchangeRateAtPosting,
			&entry.BaseAmountCents,
			&entry.Actor,
			&entry.CreatedAt,
		)
		if err != nil {
			r.logger.Error("Failed to scan ledger entry", "error", err)
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		batch.Entries = append(batch.Entries, &entry)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("Error iterating over ledger entries", "error", err)
		return nil, fmt.Errorf("error iterating over ledger entries: %w", err)
	}

	return &batch, nil
}

// MarkBatchReversed flags a batch as compensated by a reversing batch
func (r *LedgerRepository) MarkBatchReversed(ctx context.Context, batchID uuid.UUID) error {
	query := `
		UPDATE ledger_batches
		SET reversed = TRUE
		WHERE id = $1
	`

	result, err := r.querier.Exec(ctx, query, batchID)
	if err != nil {
		r.logger.Error("Failed to mark batch reversed", "batch_id", batchID.String(), "error", err)
		return fmt.Errorf("failed to mark batch reversed: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ledger.ErrBatchNotFound{}
	}

	return nil
}

// ListEntriesByAccount retrieves paginated entries touching an account on
// either side, newest first.
func (r *LedgerRepository) ListEntriesByAccount(ctx context.Context, hospitalID uuid.UUID, accountCode string, limit, offset int) ([]*ledger.Entry, error) {
	query := `
		SELECT id, batch_id, hospital_id, transaction_date, description, debit_account_code, credit_account_code, amount_cents, currency_code, exchange_rate_at_posting, base_amount_cents, actor, created_at
		FROM ledger_entries
		WHERE hospital_id = $1 AND (debit_account_code = $2 OR credit_account_code = $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`

	rows, err := r.querier.Query(ctx, query, hospitalID, accountCode, limit, offset)
	if err != nil {
		r.logger.Error("Failed to list entries by account", "account_code", accountCode, "error", err)
		return nil, fmt.Errorf("failed to list entries by account: %w", err)
	}
	defer rows.Close()

	var entries []*ledger.Entry
	for rows.Next() {
		var entry ledger.Entry
		err := rows.Scan(
			&entry.ID,
			&entry.BatchID,
			&entry.HospitalID,
			&entry.TransactionDate,
			&entry.Description,
			&entry.DebitAccountCode,
			&entry.CreditAccountCode,
			&entry.AmountCents,
			&entry.CurrencyCode,
			&entry.ExchangeRateAtPosting,
			&entry.BaseAmountCents,
			&entry.Actor,
			&entry.CreatedAt,
		)
		if err != nil {
			r.logger.Error("Failed to scan ledger entry", "error", err)
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		entries = append(entries, &entry)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("Error iterating over ledger entries", "error", err)
		return nil, fmt.Errorf("error iterating over ledger entries: %w", err)
	}

	return entries, nil
}

// SumByAccount recomputes per-account debit and credit totals from raw
// entries up to asOf; a zero asOf sums the full entry set. The UNION
// folds both sides of every entry into one row per account code.
func (r *LedgerRepository) SumByAccount(ctx context.Context, hospitalID uuid.UUID, asOf time.Time) ([]ledger.AccountTotals, error) {
	query := `
		SELECT account_code, SUM(debit_cents)::BIGINT, SUM(credit_cents)::BIGINT
		FROM (
			SELECT debit_account_code AS account_code, base_amount_cents AS debit_cents, 0 AS credit_cents
			FROM ledger_entries
			WHERE hospital_id = $1 AND ($2::TIMESTAMPTZ IS NULL OR transaction_date <= $2)
			UNION ALL
			SELECT credit_account_code AS account_code, 0 AS debit_cents, base_amount_cents AS credit_cents
			FROM ledger_entries
			WHERE hospital_id = $1 AND ($2::TIMESTAMPTZ IS NULL OR transaction_date <= $2)
		) sides
		GROUP BY account_code
		ORDER BY account_code ASC
	`

	var cutoff any
	if !asOf.IsZero() {
		cutoff = asOf
	}
	rows, err := r.querier.Query(ctx, query, hospitalID, cutoff)
	if err != nil {
		r.logger.Error("Failed to sum entries by account", "hospital_id", hospitalID.String(), "error", err)
		return nil, fmt.Errorf("failed to sum entries by account: %w", err)
	}
	defer rows.Close()

	var totals []ledger.AccountTotals
	for rows.Next() {
		var t ledger.AccountTotals
		if err := rows.Scan(&t.AccountCode, &t.DebitCents, &t.CreditCents); err != nil {
			r.logger.Error("Failed to scan account totals", "error", err)
			return nil, fmt.Errorf("failed to scan account totals: %w", err)
		}
		totals = append(totals, t)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("Error iterating over account totals", "error", err)
		return nil, fmt.Errorf("error iterating over account totals: %w", err)
	}

	return totals, nil
}

// SumForAccount recomputes raw debit and credit totals for one account
func (r *LedgerRepository) SumForAccount(ctx context.Context, hospitalID uuid.UUID, accountCode string) (ledger.AccountTotals, error) {
	query := `
		SELECT
			COALESCE(SUM(base_amount_cents) FILTER (WHERE debit_account_code = $2), 0)::BIGINT,
			COALESCE(SUM(base_amount_cents) FILTER (WHERE credit_account_code = $2), 0)::BIGINT
		FROM ledger_entries
		WHERE hospital_id = $1 AND (debit_account_code = $2 OR credit_account_code = $2)
	`

	totals := ledger.AccountTotals{AccountCode: accountCode}
	err := r.querier.QueryRow(ctx, query, hospitalID, accountCode).Scan(&totals.DebitCents, &totals.CreditCents)
	if err != nil {
		r.logger.Error("Failed to sum entries for account", "account_code", accountCode, "error", err)
		return totals, fmt.Errorf("failed to sum entries for account: %w", err)
	}

	return totals, nil
}
