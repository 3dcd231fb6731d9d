package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hospital-accounting-ledger/internal/audit"
	"github.com/hospital-accounting-ledger/internal/domain/asset"
	domaudit "github.com/hospital-accounting-ledger/internal/domain/audit"
	"github.com/hospital-accounting-ledger/internal/domain/currency"
	"github.com/hospital-accounting-ledger/internal/domain/rule"
)

// AdminServiceImpl implements the AdminService interface
type AdminServiceImpl struct {
	db           TxRunner
	currencyRepo currency.Repository
	ruleRepo     rule.Repository
	assetRepo    asset.Repository
	recorder     *audit.Recorder
}

// NewAdminService creates a new configuration admin service
func NewAdminService(db TxRunner, currencyRepo currency.Repository, ruleRepo rule.Repository, assetRepo asset.Repository, recorder *audit.Recorder) AdminService {
	return &AdminServiceImpl{
		db:           db,
		currencyRepo: currencyRepo,
		ruleRepo:     ruleRepo,
		assetRepo:    assetRepo,
		recorder:     recorder,
	}
}

func (s *AdminServiceImpl) UpsertCurrency(ctx context.Context, c *currency.Currency, actor string) error {
	return s.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		if err := s.currencyRepo.WithTx(tx).Upsert(ctx, c); err != nil {
			return err
		}
		return s.recorder.Record(ctx, tx, c.HospitalID, actor, domaudit.ActionUpdate,
			"currencies", c.Code, nil, c)
	})
}

func (s *AdminServiceImpl) UpsertRule(ctx context.Context, r *rule.Rule, actor string) error {
	return s.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		if err := s.ruleRepo.WithTx(tx).Upsert(ctx, r); err != nil {
			return err
		}
		return s.recorder.Record(ctx, tx, r.HospitalID, actor, domaudit.ActionUpdate,
			"posting_rules", string(r.SourceType)+":"+string(r.Transition), nil, r)
	})
}

func (s *AdminServiceImpl) ListRules(ctx context.Context, hospitalID uuid.UUID) ([]*rule.Rule, error) {
	return s.ruleRepo.ListByHospital(ctx, hospitalID)
}

func (s *AdminServiceImpl) RegisterAsset(ctx context.Context, a *asset.FixedAsset, actor string) error {
	return s.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		if err := s.assetRepo.WithTx(tx).Create(ctx, a); err != nil {
			return err
		}
		return s.recorder.Record(ctx, tx, a.HospitalID, actor, domaudit.ActionCreate,
			"fixed_assets", a.ID.String(), nil, a)
	})
}

func (s *AdminServiceImpl) RetireAsset(ctx context.Context, hospitalID, assetID uuid.UUID, actor string) (*asset.FixedAsset, error) {
	var retired *asset.FixedAsset
	err := s.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		assetRepo := s.assetRepo.WithTx(tx)
		a, err := assetRepo.GetByID(ctx, assetID)
		if err != nil {
			return err
		}
		// Assets are hospital-scoped; an ID from another tenant is not found
		if a.HospitalID != hospitalID {
			return asset.ErrAssetNotFound{AssetID: assetID}
		}
		if a.Retired {
			retired = a
			return nil
		}

		before := *a
		a.Retire()
		if err := assetRepo.Update(ctx, a); err != nil {
			return err
		}
		retired = a
		return s.recorder.Record(ctx, tx, hospitalID, actor, domaudit.ActionUpdate,
			"fixed_assets", a.ID.String(), &before, a)
	})
	if err != nil {
		return nil, err
	}
	return retired, nil
}

func (s *AdminServiceImpl) ListAssets(ctx context.Context, hospitalID uuid.UUID) ([]*asset.FixedAsset, error) {
	return s.assetRepo.ListActive(ctx, hospitalID)
}
