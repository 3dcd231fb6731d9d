package asset

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Repository defines fixed-asset persistence operations
type Repository interface {
	Create(ctx context.Context, asset *FixedAsset) error
	GetByID(ctx context.Context, id uuid.UUID) (*FixedAsset, error)
	ListActive(ctx context.Context, hospitalID uuid.UUID) ([]*FixedAsset, error)

	// HospitalsWithActiveAssets enumerates hospitals the monthly
	// depreciation runner must visit.
	HospitalsWithActiveAssets(ctx context.Context) ([]uuid.UUID, error)

	Update(ctx context.Context, asset *FixedAsset) error
	WithTx(tx pgx.Tx) Repository
}

// ErrAssetNotFound indicates a missing fixed asset
type ErrAssetNotFound struct {
	AssetID uuid.UUID
}

func (e ErrAssetNotFound) Error() string {
	return "fixed asset not found: " + e.AssetID.String()
}

// Is matches any ErrAssetNotFound when the target carries a nil ID
func (e ErrAssetNotFound) Is(target error) bool {
	t, ok := target.(ErrAssetNotFound)
	if !ok {
		return false
	}
	return t.AssetID == uuid.Nil || t.AssetID == e.AssetID
}
