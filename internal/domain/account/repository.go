package account

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Repository defines chart-of-accounts persistence operations
type Repository interface {
	Create(ctx context.Context, account *Account) error
	GetByCode(ctx context.Context, hospitalID uuid.UUID, code string) (*Account, error)
	ListByHospital(ctx context.Context, hospitalID uuid.UUID) ([]*Account, error)

	// LockForUpdate acquires a row lock and returns the current state.
	// Must be called inside a posting transaction.
	LockForUpdate(ctx context.Context, hospitalID uuid.UUID, code string) (*Account, error)

	// ApplyBalanceDelta adds deltaCents to the running balance. Only the
	// posting engine calls this, inside the posting transaction.
	ApplyBalanceDelta(ctx context.Context, id uuid.UUID, deltaCents int64) error

	WithTx(tx pgx.Tx) Repository
}

// ErrAccountNotFound indicates a missing or cross-hospital account code
type ErrAccountNotFound struct {
	HospitalID uuid.UUID
	Code       string
}

func (e ErrAccountNotFound) Error() string {
	return "account not found: " + e.Code + " (hospital " + e.HospitalID.String() + ")"
}

// Is matches any ErrAccountNotFound when the target carries no code
func (e ErrAccountNotFound) Is(target error) bool {
	t, ok := target.(ErrAccountNotFound)
	if !ok {
		return false
	}
	if t.Code == "" {
		return true
	}
	return e.Code == t.Code && e.HospitalID == t.HospitalID
}

// ErrDuplicateCode indicates a per-hospital code uniqueness violation
type ErrDuplicateCode struct {
	HospitalID uuid.UUID
	Code       string
}

func (e ErrDuplicateCode) Error() string {
	return "account code already exists: " + e.Code + " (hospital " + e.HospitalID.String() + ")"
}

// Is matches any ErrDuplicateCode when the target carries no code
func (e ErrDuplicateCode) Is(target error) bool {
	t, ok := target.(ErrDuplicateCode)
	if !ok {
		return false
	}
	if t.Code == "" {
		return true
	}
	return e.Code == t.Code && e.HospitalID == t.HospitalID
}
