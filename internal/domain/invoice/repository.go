package invoice

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Repository defines invoice-projection persistence operations
type Repository interface {
	Upsert(ctx context.Context, projection *Projection) error
	GetBySourceID(ctx context.Context, hospitalID, sourceID uuid.UUID) (*Projection, error)

	// ApplyPayment atomically adds a cleared payment and derives the new
	// status. Called inside the payment's posting transaction.
	ApplyPayment(ctx context.Context, hospitalID, sourceID uuid.UUID, amountCents int64) (*Projection, error)

	WithTx(tx pgx.Tx) Repository
}

// ErrProjectionNotFound indicates a payment referenced an unknown invoice
type ErrProjectionNotFound struct {
	SourceID uuid.UUID
}

func (e ErrProjectionNotFound) Error() string {
	return "invoice projection not found: " + e.SourceID.String()
}

// Is matches any ErrProjectionNotFound
func (e ErrProjectionNotFound) Is(target error) bool {
	_, ok := target.(ErrProjectionNotFound)
	return ok
}
