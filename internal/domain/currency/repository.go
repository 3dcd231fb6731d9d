package currency

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Repository defines currency persistence operations
type Repository interface {
	Upsert(ctx context.Context, currency *Currency) error
	GetByCode(ctx context.Context, hospitalID uuid.UUID, code string) (*Currency, error)
	GetBase(ctx context.Context, hospitalID uuid.UUID) (*Currency, error)
	WithTx(tx pgx.Tx) Repository
}

// ErrCurrencyNotFound indicates a missing currency code for a hospital
type ErrCurrencyNotFound struct {
	HospitalID uuid.UUID
	Code       string
}

func (e ErrCurrencyNotFound) Error() string {
	return "currency not found: " + e.Code + " (hospital " + e.HospitalID.String() + ")"
}

// Is matches any ErrCurrencyNotFound when the target carries no code
func (e ErrCurrencyNotFound) Is(target error) bool {
	t, ok := target.(ErrCurrencyNotFound)
	if !ok {
		return false
	}
	if t.Code == "" {
		return true
	}
	return e.Code == t.Code && e.HospitalID == t.HospitalID
}
