package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hospital-accounting-ledger/internal/domain/account"
	"github.com/hospital-accounting-ledger/internal/domain/asset"
	"github.com/hospital-accounting-ledger/internal/domain/audit"
	"github.com/hospital-accounting-ledger/internal/domain/booklock"
	"github.com/hospital-accounting-ledger/internal/domain/currency"
	"github.com/hospital-accounting-ledger/internal/domain/ledger"
	"github.com/hospital-accounting-ledger/internal/domain/obligation"
	"github.com/hospital-accounting-ledger/internal/domain/rule"
)

// TxRunner runs a function inside a transaction. Satisfied by
// *persistence.PostgresDB.
type TxRunner interface {
	ExecuteTx(ctx context.Context, fn func(tx pgx.Tx) error) error
}

// AccountService defines chart-of-accounts operations
type AccountService interface {
	// CreateAccount registers an account with a zero opening balance.
	// Returns ErrDuplicateCode if the code already exists for the hospital.
	CreateAccount(ctx context.Context, hospitalID uuid.UUID, code, name string, accountType account.Type, actor string) (*account.Account, error)

	GetAccount(ctx context.Context, hospitalID uuid.UUID, code string) (*account.Account, error)
	ListAccounts(ctx context.Context, hospitalID uuid.UUID) ([]*account.Account, error)
}

// LedgerService defines journal batch operations
type LedgerService interface {
	// PostBatch posts a balanced batch; posting an already-committed
	// transaction_ref returns the existing batch.
	PostBatch(ctx context.Context, req *ledger.BatchRequest) (*ledger.Batch, error)

	// ReverseBatch posts the compensating batch for a committed ref
	ReverseBatch(ctx context.Context, hospitalID uuid.UUID, transactionRef, actor string) (*ledger.Batch, error)

	GetBatch(ctx context.Context, hospitalID uuid.UUID, transactionRef string) (*ledger.Batch, error)
	ListAccountEntries(ctx context.Context, hospitalID uuid.UUID, accountCode string, limit, offset int) ([]*ledger.Entry, error)
}

// BookLockService defines period close operations
type BookLockService interface {
	GetLock(ctx context.Context, hospitalID uuid.UUID) (*booklock.Lock, error)

	// AdvanceLock closes the books through lockDate. Regressions are
	// rejected with ErrLockRegression.
	AdvanceLock(ctx context.Context, hospitalID uuid.UUID, lockDate time.Time, actor string) (*booklock.Lock, error)

	// RewindLock reopens a closed period. Allowed, and audited as UNLOCK.
	RewindLock(ctx context.Context, hospitalID uuid.UUID, lockDate time.Time, actor string) (*booklock.Lock, error)
}

// AuditService queries the Mongo audit archive
type AuditService interface {
	QueryAudit(ctx context.Context, filter audit.Filter, page, perPage int) ([]*audit.Entry, int64, error)
}

// ObligationService exposes pending posting obligations to operators
type ObligationService interface {
	ListObligations(ctx context.Context, hospitalID uuid.UUID, status obligation.Status, limit, offset int) ([]*obligation.Obligation, error)
	AbandonObligation(ctx context.Context, id int64, actor string) error
}

// AdminService maintains per-hospital configuration data: currency
// rates, posting rules, and the fixed-asset register
type AdminService interface {
	UpsertCurrency(ctx context.Context, c *currency.Currency, actor string) error
	UpsertRule(ctx context.Context, r *rule.Rule, actor string) error
	ListRules(ctx context.Context, hospitalID uuid.UUID) ([]*rule.Rule, error)

	// RegisterAsset places an asset on the books at full book value;
	// the monthly depreciation run picks it up from there.
	RegisterAsset(ctx context.Context, a *asset.FixedAsset, actor string) error

	// RetireAsset takes an asset out of service. Retiring an already
	// retired asset is a no-op.
	RetireAsset(ctx context.Context, hospitalID, assetID uuid.UUID, actor string) (*asset.FixedAsset, error)

	ListAssets(ctx context.Context, hospitalID uuid.UUID) ([]*asset.FixedAsset, error)
}
