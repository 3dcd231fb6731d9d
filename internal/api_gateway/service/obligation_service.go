package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hospital-accounting-ledger/internal/audit"
	domaudit "github.com/hospital-accounting-ledger/internal/domain/audit"
	"github.com/hospital-accounting-ledger/internal/domain/obligation"
)

// ObligationServiceImpl implements the ObligationService interface
type ObligationServiceImpl struct {
	db             TxRunner
	obligationRepo obligation.Repository
	recorder       *audit.Recorder
}

// NewObligationService creates a new obligation service
func NewObligationService(db TxRunner, obligationRepo obligation.Repository, recorder *audit.Recorder) ObligationService {
	return &ObligationServiceImpl{
		db:             db,
		obligationRepo: obligationRepo,
		recorder:       recorder,
	}
}

func (s *ObligationServiceImpl) ListObligations(ctx context.Context, hospitalID uuid.UUID, status obligation.Status, limit, offset int) ([]*obligation.Obligation, error) {
	return s.obligationRepo.ListByHospital(ctx, hospitalID, status, limit, offset)
}

// AbandonObligation is the operator escape hatch for a posting that will
// never succeed. The abandonment is audited with the obligation's last
// known state.
func (s *ObligationServiceImpl) AbandonObligation(ctx context.Context, id int64, actor string) error {
	before, err := s.obligationRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	return s.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		repo := s.obligationRepo.WithTx(tx)
		if err := repo.Abandon(ctx, id, actor); err != nil {
			return err
		}
		after, err := repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		return s.recorder.Record(ctx, tx, before.HospitalID, actor, domaudit.ActionUpdate,
			"posting_obligations", before.TransactionRef, before, after)
	})
}
