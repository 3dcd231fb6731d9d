package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hospital-accounting-ledger/internal/domain/ledger"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerRepository_CreateBatch(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &LedgerRepository{querier: mock, logger: logger}

	hospitalID := uuid.New()
	now := time.Now()
	batch := &ledger.Batch{
		ID:              uuid.New(),
		TransactionRef:  "INVOICE:3f2c:FINALIZED",
		HospitalID:      hospitalID,
		TransactionDate: now,
		Description:     "Invoice finalized",
		Actor:           "user:accountant-1",
		TotalCents:      295000,
		CreatedAt:       now,
	}
	batch.Entries = []*ledger.Entry{
		{
			ID:                    uuid.New(),
			BatchID:               batch.ID,
			HospitalID:            hospitalID,
			TransactionDate:       now,
			Description:           "Gross invoice amount",
			DebitAccountCode:      "1200",
			CreditAccountCode:     "4100",
			AmountCents:           250000,
			CurrencyCode:          "USD",
			ExchangeRateAtPosting: decimal.NewFromInt(1),
			BaseAmountCents:       250000,
			Actor:                 batch.Actor,
			CreatedAt:             now,
		},
		{
			ID:                    uuid.New(),
			BatchID:               batch.ID,
			HospitalID:            hospitalID,
			TransactionDate:       now,
			Description:           "Sales tax",
			DebitAccountCode:      "1200",
			CreditAccountCode:     "2300",
			AmountCents:           45000,
			CurrencyCode:          "USD",
			ExchangeRateAtPosting: decimal.NewFromInt(1),
			BaseAmountCents:       45000,
			Actor:                 batch.Actor,
			CreatedAt:             now,
		},
	}

	batchQuery := `
		INSERT INTO ledger_batches \(id, transaction_ref, hospital_id, transaction_date, description, actor, total_cents, reversed, created_at\)
		VALUES \(\$1, \$2, \$3, \$4, \$5, \$6, \$7, \$8, \$9\)
	`
	entryQuery := `
		INSERT INTO ledger_entries \(id, batch_id, hospital_id, transaction_date, description, debit_account_code, credit_account_code, amount_cents, currency_code, exchange_rate_at_posting, base_amount_cents, actor, created_at\)
		VALUES \(\$1, \$2, \$3, \$4, \$5, \$6, \$7, \$8, \$9, \$10, \$11, \$12, \$13\)
	`

	t.Run("success", func(t *testing.T) {
		mock.ExpectExec(batchQuery).
			WithArgs(batch.ID, batch.TransactionRef, batch.HospitalID, batch.TransactionDate, batch.Description, batch.Actor, batch.TotalCents, batch.Reversed, batch.CreatedAt).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		for _, e := range batch.Entries {
			mock.ExpectExec(entryQuery).
				WithArgs(e.ID, e.BatchID, e.HospitalID, e.TransactionDate, e.Description, e.DebitAccountCode, e.CreditAccountCode, e.AmountCents, e.CurrencyCode, e.ExchangeRateAtPosting, e.BaseAmountCents, e.Actor, e.CreatedAt).
				WillReturnResult(pgxmock.NewResult("INSERT", 1))
		}

		err := repo.CreateBatch(ctx, batch)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("header insert failure", func(t *testing.T) {
		dbErr := errors.New("db error")
		mock.ExpectExec(batchQuery).
			WithArgs(batch.ID, batch.TransactionRef, batch.HospitalID, batch.TransactionDate, batch.Description, batch.Actor, batch.TotalCents, batch.Reversed, batch.CreatedAt).
			WillReturnError(dbErr)

		err := repo.CreateBatch(ctx, batch)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to create ledger batch")
		assert.ErrorIs(t, err, dbErr)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestLedgerRepository_GetBatchByRef(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &LedgerRepository{querier: mock, logger: logger}

	hospitalID := uuid.New()
	batchID := uuid.New()
	now := time.Now()
	ref := "PAYMENT:9a1b:COMPLETED"

	batchQuery := `
		SELECT id, transaction_ref, hospital_id, transaction_date, description, actor, total_cents, reversed, created_at
		FROM ledger_batches
		WHERE hospital_id = \$1 AND transaction_ref = \$2
	`
	entryQuery := `
		SELECT id, batch_id, hospital_id, transaction_date, description, debit_account_code, credit_account_code, amount_cents, currency_code, exchange_rate_at_posting, base_amount_cents, actor, created_at
		FROM ledger_entries
		WHERE batch_id = \$1
		ORDER BY created_at ASC, id ASC
	`

	t.Run("success", func(t *testing.T) {
		batchRows := pgxmock.NewRows([]string{"id", "transaction_ref", "hospital_id", "transaction_date", "description", "actor", "total_cents", "reversed", "created_at"}).
			AddRow(batchID, ref, hospitalID, now, "Payment completed", "system:dispatcher", int64(100000), false, now)
		entryRows := pgxmock.NewRows([]string{"id", "batch_id", "hospital_id", "transaction_date", "description", "debit_account_code", "credit_account_code", "amount_cents", "currency_code", "exchange_rate_at_posting", "base_amount_cents", "actor", "created_at"}).
			AddRow(uuid.New(), batchID, hospitalID, now, "Cash received", "1000", "1200", int64(100000), "USD", decimal.NewFromInt(1), int64(100000), "system:dispatcher", now)

		mock.ExpectQuery(batchQuery).WithArgs(hospitalID, ref).WillReturnRows(batchRows)
		mock.ExpectQuery(entryQuery).WithArgs(batchID).WillReturnRows(entryRows)

		batch, err := repo.GetBatchByRef(ctx, hospitalID, ref)
		assert.NoError(t, err)
		require.NotNil(t, batch)
		assert.Equal(t, ref, batch.TransactionRef)
		require.Len(t, batch.Entries, 1)
		assert.Equal(t, "1000", batch.Entries[0].DebitAccountCode)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery(batchQuery).WithArgs(hospitalID, ref).WillReturnError(pgx.ErrNoRows)

		batch, err := repo.GetBatchByRef(ctx, hospitalID, ref)
		assert.Error(t, err)
		assert.Nil(t, batch)
		assert.ErrorIs(t, err, ledger.ErrBatchNotFound{})
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestLedgerRepository_MarkBatchReversed(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &LedgerRepository{querier: mock, logger: logger}
	batchID := uuid.New()

	query := `
		UPDATE ledger_batches
		SET reversed = TRUE
		WHERE id = \$1
	`

	t.Run("success", func(t *testing.T) {
		mock.ExpectExec(query).WithArgs(batchID).WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		err := repo.MarkBatchReversed(ctx, batchID)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing batch", func(t *testing.T) {
		mock.ExpectExec(query).WithArgs(batchID).WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err := repo.MarkBatchReversed(ctx, batchID)
		assert.Error(t, err)
		assert.ErrorIs(t, err, ledger.ErrBatchNotFound{})
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestLedgerRepository_SumByAccount(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &LedgerRepository{querier: mock, logger: logger}
	hospitalID := uuid.New()
	asOf := time.Now()

	t.Run("success", func(t *testing.T) {
		rows := pgxmock.NewRows([]string{"account_code", "sum_debit", "sum_credit"}).
			AddRow("1200", int64(295000), int64(0)).
			AddRow("2300", int64(0), int64(45000)).
			AddRow("4100", int64(0), int64(250000))
		mock.ExpectQuery(`SELECT account_code, SUM\(debit_cents\)::BIGINT, SUM\(credit_cents\)::BIGINT`).
			WithArgs(hospitalID, asOf).
			WillReturnRows(rows)

		totals, err := repo.SumByAccount(ctx, hospitalID, asOf)
		assert.NoError(t, err)
		require.Len(t, totals, 3)
		assert.Equal(t, ledger.AccountTotals{AccountCode: "1200", DebitCents: 295000, CreditCents: 0}, totals[0])

		var debits, credits int64
		for _, tot := range totals {
			debits += tot.DebitCents
			credits += tot.CreditCents
		}
		assert.Equal(t, debits, credits)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("zero asOf sums without a cutoff", func(t *testing.T) {
		rows := pgxmock.NewRows([]string{"account_code", "sum_debit", "sum_credit"}).
			AddRow("1200", int64(340000), int64(0)).
			AddRow("4100", int64(0), int64(340000))
		mock.ExpectQuery(`SELECT account_code, SUM\(debit_cents\)::BIGINT, SUM\(credit_cents\)::BIGINT`).
			WithArgs(hospitalID, nil).
			WillReturnRows(rows)

		totals, err := repo.SumByAccount(ctx, hospitalID, time.Time{})
		assert.NoError(t, err)
		require.Len(t, totals, 2)
		assert.Equal(t, int64(340000), totals[0].DebitCents)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("db error", func(t *testing.T) {
		dbErr := errors.New("db error")
		mock.ExpectQuery(`SELECT account_code, SUM\(debit_cents\)::BIGINT, SUM\(credit_cents\)::BIGINT`).
			WithArgs(hospitalID, asOf).
			WillReturnError(dbErr)

		totals, err := repo.SumByAccount(ctx, hospitalID, asOf)
		assert.Error(t, err)
		assert.Nil(t, totals)
		assert.ErrorIs(t, err, dbErr)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestLedgerRepository_SumForAccount(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &LedgerRepository{querier: mock, logger: logger}
	hospitalID := uuid.New()

	t.Run("success", func(t *testing.T) {
		rows := pgxmock.NewRows([]string{"sum_debit", "sum_credit"}).AddRow(int64(500000), int64(120000))
		mock.ExpectQuery(`COALESCE\(SUM\(base_amount_cents\) FILTER`).
			WithArgs(hospitalID, "1200").
			WillReturnRows(rows)

		totals, err := repo.SumForAccount(ctx, hospitalID, "1200")
		assert.NoError(t, err)
		assert.Equal(t, ledger.AccountTotals{AccountCode: "1200", DebitCents: 500000, CreditCents: 120000}, totals)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
