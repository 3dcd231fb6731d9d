package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/hospital-accounting-ledger/internal/domain/ledger"
	"github.com/hospital-accounting-ledger/internal/posting"
)

// LedgerServiceImpl implements the LedgerService interface. Posting and
// reversal go through the engine; reads go straight to the repository.
type LedgerServiceImpl struct {
	engine     *posting.Engine
	ledgerRepo ledger.Repository
}

// NewLedgerService creates a new ledger service
func NewLedgerService(engine *posting.Engine, ledgerRepo ledger.Repository) LedgerService {
	return &LedgerServiceImpl{
		engine:     engine,
		ledgerRepo: ledgerRepo,
	}
}

func (s *LedgerServiceImpl) PostBatch(ctx context.Context, req *ledger.BatchRequest) (*ledger.Batch, error) {
	return s.engine.Post(ctx, req)
}

func (s *LedgerServiceImpl) ReverseBatch(ctx context.Context, hospitalID uuid.UUID, transactionRef, actor string) (*ledger.Batch, error) {
	return s.engine.Reverse(ctx, hospitalID, transactionRef, actor)
}

func (s *LedgerServiceImpl) GetBatch(ctx context.Context, hospitalID uuid.UUID, transactionRef string) (*ledger.Batch, error) {
	return s.ledgerRepo.GetBatchByRef(ctx, hospitalID, transactionRef)
}

func (s *LedgerServiceImpl) ListAccountEntries(ctx context.Context, hospitalID uuid.UUID, accountCode string, limit, offset int) ([]*ledger.Entry, error) {
	return s.ledgerRepo.ListEntriesByAccount(ctx, hospitalID, accountCode, limit, offset)
}
