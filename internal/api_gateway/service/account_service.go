package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hospital-accounting-ledger/internal/audit"
	"github.com/hospital-accounting-ledger/internal/domain/account"
	domaudit "github.com/hospital-accounting-ledger/internal/domain/audit"
)

// AccountServiceImpl implements the AccountService interface
type AccountServiceImpl struct {
	db          TxRunner
	accountRepo account.Repository
	recorder    *audit.Recorder
}

// NewAccountService creates a new account service
func NewAccountService(db TxRunner, accountRepo account.Repository, recorder *audit.Recorder) AccountService {
	return &AccountServiceImpl{
		db:          db,
		accountRepo: accountRepo,
		recorder:    recorder,
	}
}

// CreateAccount registers an account and captures the creation in the
// audit trail, atomically.
func (s *AccountServiceImpl) CreateAccount(ctx context.Context, hospitalID uuid.UUID, code, name string, accountType account.Type, actor string) (*account.Account, error) {
	acc, err := account.NewAccount(hospitalID, code, name, accountType)
	if err != nil {
		return nil, err
	}

	err = s.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		if err := s.accountRepo.WithTx(tx).Create(ctx, acc); err != nil {
			return err
		}
		return s.recorder.Record(ctx, tx, hospitalID, actor, domaudit.ActionCreate,
			"accounts", acc.ID.String(), nil, acc)
	})
	if err != nil {
		return nil, err
	}

	return acc, nil
}

func (s *AccountServiceImpl) GetAccount(ctx context.Context, hospitalID uuid.UUID, code string) (*account.Account, error) {
	return s.accountRepo.GetByCode(ctx, hospitalID, code)
}

func (s *AccountServiceImpl) ListAccounts(ctx context.Context, hospitalID uuid.UUID) ([]*account.Account, error) {
	return s.accountRepo.ListByHospital(ctx, hospitalID)
}
