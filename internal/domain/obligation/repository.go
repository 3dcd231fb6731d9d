package obligation

import (
	"context"
	"strconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Repository defines pending-posting-obligation persistence operations
type Repository interface {
	// Upsert records a failure, keyed by transaction_ref: recording the
	// same failed transition twice increments attempts on the one row.
	Upsert(ctx context.Context, obligation *Obligation) error

	GetByID(ctx context.Context, id int64) (*Obligation, error)
	GetPending(ctx context.Context, limit int) ([]*Obligation, error)
	ListByHospital(ctx context.Context, hospitalID uuid.UUID, status Status, limit, offset int) ([]*Obligation, error)

	// Resolve marks the obligation satisfied after a successful re-post.
	Resolve(ctx context.Context, transactionRef string) error

	// Abandon is the operator escape hatch; callers audit it.
	Abandon(ctx context.Context, id int64, actor string) error

	WithTx(tx pgx.Tx) Repository
}

// ErrObligationNotFound indicates a missing obligation row
type ErrObligationNotFound struct {
	ID int64
}

func (e ErrObligationNotFound) Error() string {
	return "posting obligation not found: " + strconv.FormatInt(e.ID, 10)
}

// Is matches any ErrObligationNotFound
func (e ErrObligationNotFound) Is(target error) bool {
	_, ok := target.(ErrObligationNotFound)
	return ok
}
