package booklock

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Repository defines book-lock persistence operations. Get is called by
// the posting engine inside the posting transaction so the lock check and
// the ledger write share one atomic scope.
type Repository interface {
	Get(ctx context.Context, hospitalID uuid.UUID) (*Lock, error)

	// Advance moves the lock forward; it must reject regressions at the
	// storage level (guarding against concurrent lock writers).
	Advance(ctx context.Context, hospitalID uuid.UUID, lockDate time.Time, actor string) (*Lock, error)

	// Rewind moves the lock backwards. Callers audit this separately.
	Rewind(ctx context.Context, hospitalID uuid.UUID, lockDate time.Time, actor string) (*Lock, error)

	WithTx(tx pgx.Tx) Repository
}

// ErrLockNotFound indicates no lock row exists for the hospital yet;
// an absent lock means the books are fully open.
type ErrLockNotFound struct {
	HospitalID uuid.UUID
}

func (e ErrLockNotFound) Error() string {
	return "book lock not found for hospital: " + e.HospitalID.String()
}

// Is matches any ErrLockNotFound
func (e ErrLockNotFound) Is(target error) bool {
	_, ok := target.(ErrLockNotFound)
	return ok
}
