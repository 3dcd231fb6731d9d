package rule

import (
	"context"

	"github.com/google/uuid"
	"github.com/hospital-accounting-ledger/internal/domain/shared"
	"github.com/jackc/pgx/v5"
)

// Repository defines posting-rule persistence operations
type Repository interface {
	Upsert(ctx context.Context, rule *Rule) error
	Get(ctx context.Context, hospitalID uuid.UUID, sourceType shared.SourceType, transition shared.Transition) (*Rule, error)
	ListByHospital(ctx context.Context, hospitalID uuid.UUID) ([]*Rule, error)
	WithTx(tx pgx.Tx) Repository
}

// ErrRuleNotFound indicates no posting rule is configured for a transition
type ErrRuleNotFound struct {
	HospitalID uuid.UUID
	SourceType shared.SourceType
	Transition shared.Transition
}

func (e ErrRuleNotFound) Error() string {
	return "posting rule not found: " + string(e.SourceType) + "/" + string(e.Transition) +
		" (hospital " + e.HospitalID.String() + ")"
}

// Is matches any ErrRuleNotFound
func (e ErrRuleNotFound) Is(target error) bool {
	_, ok := target.(ErrRuleNotFound)
	return ok
}
