package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// AccountTotals holds the raw debit and credit sums posted against one account
type AccountTotals struct {
	AccountCode string
	DebitCents  int64
	CreditCents int64
}

// Repository manages batch and entry persistence. Entries are append-only;
// there is no update or delete operation.
type Repository interface {
	CreateBatch(ctx context.Context, batch *Batch) error
	GetBatchByRef(ctx context.Context, hospitalID uuid.UUID, transactionRef string) (*Batch, error)
	MarkBatchReversed(ctx context.Context, batchID uuid.UUID) error

	ListEntriesByAccount(ctx context.Context, hospitalID uuid.UUID, accountCode string, limit, offset int) ([]*Entry, error)

	// SumByAccount recomputes signed debit/credit totals per account from
	// raw entries up to and including asOf; a zero asOf covers every
	// entry. Used for trial-balance reporting and balance re-derivation.
	SumByAccount(ctx context.Context, hospitalID uuid.UUID, asOf time.Time) ([]AccountTotals, error)
	SumForAccount(ctx context.Context, hospitalID uuid.UUID, accountCode string) (AccountTotals, error)

	WithTx(tx pgx.Tx) Repository
}
