package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hospital-accounting-ledger/internal/domain/asset"
	"github.com/hospital-accounting-ledger/internal/platform/persistence"
	"github.com/jackc/pgx/v5"
)

// AssetRepository implements the asset.Repository interface for PostgreSQL
type AssetRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewAssetRepository creates a new PostgreSQL fixed-asset repository
func NewAssetRepository(logger *slog.Logger, db *persistence.PostgresDB) asset.Repository {
	return &AssetRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction
func (r *AssetRepository) WithTx(tx pgx.Tx) asset.Repository {
	return &AssetRepository{
		querier: tx,
		logger:  r.logger,
	}
}

const assetColumns = `id, hospital_id, name, cost_center, purchase_cost_cents, salvage_value_cents,
		useful_life_years, depreciation_method, current_book_value_cents, retired, acquired_at, created_at, updated_at`

// Create stores a new fixed asset
func (r *AssetRepository) Create(ctx context.Context, a *asset.FixedAsset) error {
	query := `
		INSERT INTO fixed_assets (` + assetColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := r.querier.Exec(ctx, query,
		a.ID,
		a.HospitalID,
		a.Name,
		a.CostCenter,
		a.PurchaseCostCents,
		a.SalvageValueCents,
		a.UsefulLifeYears,
		a.DepreciationMethod,
		a.CurrentBookValueCents,
		a.Retired,
		a.AcquiredAt,
		a.CreatedAt,
		a.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create fixed asset", "asset_id", a.ID.String(), "error", err)
		return fmt.Errorf("failed to create fixed asset: %w", err)
	}

	return nil
}

// GetByID retrieves a fixed asset by ID
func (r *AssetRepository) GetByID(ctx context.Context, id uuid.UUID) (*asset.FixedAsset, error) {
	query := `SELECT ` + assetColumns + ` FROM fixed_assets WHERE id = $1`

	a, err := r.scanAsset(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, asset.ErrAssetNotFound{AssetID: id}
		}
		r.logger.Error("Failed to get fixed asset", "asset_id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get fixed asset: %w", err)
	}

	return a, nil
}

// ListActive retrieves the assets still generating depreciation runs:
// not retired and not yet written down to salvage value.
func (r *AssetRepository) ListActive(ctx context.Context, hospitalID uuid.UUID) ([]*asset.FixedAsset, error) {
	query := `
		SELECT ` + assetColumns + `
		FROM fixed_assets
		WHERE hospital_id = $1 AND retired = FALSE AND current_book_value_cents > salvage_value_cents
		ORDER BY acquired_at, id
	`

	rows, err := r.querier.Query(ctx, query, hospitalID)
	if err != nil {
		r.logger.Error("Failed to list active fixed assets", "hospital_id", hospitalID.String(), "error", err)
		return nil, fmt.Errorf("failed to list active fixed assets: %w", err)
	}
	defer rows.Close()

	var assets []*asset.FixedAsset
	for rows.Next() {
		a, err := r.scanAsset(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan fixed asset: %w", err)
		}
		assets = append(assets, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate fixed assets: %w", err)
	}

	return assets, nil
}

// HospitalsWithActiveAssets lists hospitals holding at least one
// depreciable asset
func (r *AssetRepository) HospitalsWithActiveAssets(ctx context.Context) ([]uuid.UUID, error) {
	query := `
		SELECT DISTINCT hospital_id
		FROM fixed_assets
		WHERE retired = FALSE AND current_book_value_cents > salvage_value_cents
	`

	rows, err := r.querier.Query(ctx, query)
	if err != nil {
		r.logger.Error("Failed to list hospitals with active assets", "error", err)
		return nil, fmt.Errorf("failed to list hospitals with active assets: %w", err)
	}
	defer rows.Close()

	var hospitalIDs []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan hospital id: %w", err)
		}
		hospitalIDs = append(hospitalIDs, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate hospital ids: %w", err)
	}

	return hospitalIDs, nil
}

// Update persists book-value and lifecycle changes
func (r *AssetRepository) Update(ctx context.Context, a *asset.FixedAsset) error {
	query := `
		UPDATE fixed_assets
		SET current_book_value_cents = $2, retired = $3, updated_at = $4
		WHERE id = $1
	`

	tag, err := r.querier.Exec(ctx, query, a.ID, a.CurrentBookValueCents, a.Retired, a.UpdatedAt)
	if err != nil {
		r.logger.Error("Failed to update fixed asset", "asset_id", a.ID.String(), "error", err)
		return fmt.Errorf("failed to update fixed asset: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return asset.ErrAssetNotFound{AssetID: a.ID}
	}

	return nil
}

func (r *AssetRepository) scanAsset(row pgx.Row) (*asset.FixedAsset, error) {
	var a asset.FixedAsset
	err := row.Scan(
		&a.ID,
		&a.HospitalID,
		&a.Name,
		&a.CostCenter,
		&a.PurchaseCostCents,
		&a.SalvageValueCents,
		&a.UsefulLifeYears,
		&a.DepreciationMethod,
		&a.CurrentBookValueCents,
		&a.Retired,
		&a.AcquiredAt,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}
