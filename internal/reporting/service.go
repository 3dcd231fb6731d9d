package reporting

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hospital-accounting-ledger/internal/domain/account"
	"github.com/hospital-accounting-ledger/internal/domain/ledger"
	"github.com/hospital-accounting-ledger/internal/platform/persistence"
)

// ReadTxRunner runs a function inside a repeatable-read transaction.
// Satisfied by *persistence.PostgresDB.
type ReadTxRunner interface {
	ExecuteRepeatableReadTx(ctx context.Context, fn func(tx pgx.Tx) error) error
}

var _ ReadTxRunner = (*persistence.PostgresDB)(nil)

// TrialBalanceRow is one account's line in a trial balance. Debit,
// credit, and recomputed figures are scoped to the report's AsOf;
// Consistent checks the cached balance against the full entry set, so
// it holds for historical reports too.
type TrialBalanceRow struct {
	AccountCode            string       `json:"account_code"`
	AccountName            string       `json:"account_name"`
	AccountType            account.Type `json:"account_type"`
	DebitCents             int64        `json:"debit_cents"`
	CreditCents            int64        `json:"credit_cents"`
	CachedBalanceCents     int64        `json:"cached_balance_cents"`
	RecomputedBalanceCents int64        `json:"recomputed_balance_cents"`
	Consistent             bool         `json:"consistent"`
}

// TrialBalance is a point-in-time debit/credit summary across the chart
// of accounts. Every committed batch balances, so TotalDebitCents must
// equal TotalCreditCents; a mismatch means corrupted ledger data.
type TrialBalance struct {
	HospitalID       uuid.UUID                      `json:"hospital_id"`
	AsOf             time.Time                      `json:"as_of"`
	Rows             []TrialBalanceRow              `json:"rows"`
	TotalDebitCents  int64                          `json:"total_debit_cents"`
	TotalCreditCents int64                          `json:"total_credit_cents"`
	IsBalanced       bool                           `json:"is_balanced"`
	Violations       []ledger.ErrIntegrityViolation `json:"violations,omitempty"`
	GeneratedAt      time.Time                      `json:"generated_at"`
}

// Service derives balances and trial balances from the ledger
type Service struct {
	db          ReadTxRunner
	accountRepo account.Repository
	ledgerRepo  ledger.Repository
	logger      *slog.Logger
}

func NewService(
	db ReadTxRunner,
	accountRepo account.Repository,
	ledgerRepo ledger.Repository,
	logger *slog.Logger,
) *Service {
	return &Service{
		db:          db,
		accountRepo: accountRepo,
		ledgerRepo:  ledgerRepo,
		logger:      logger,
	}
}

// GetAccountBalance returns the account with its cached running balance
func (s *Service) GetAccountBalance(ctx context.Context, hospitalID uuid.UUID, code string) (*account.Account, error) {
	acc, err := s.accountRepo.GetByCode(ctx, hospitalID, code)
	if err != nil {
		return nil, fmt.Errorf("failed to get account %s: %w", code, err)
	}
	return acc, nil
}

// RecomputeBalance re-derives the balance from raw entries, signed by
// the account's normal-balance side. Diverging from the cached balance
// indicates an integrity problem; callers compare the two.
func (s *Service) RecomputeBalance(ctx context.Context, hospitalID uuid.UUID, code string) (int64, error) {
	acc, err := s.accountRepo.GetByCode(ctx, hospitalID, code)
	if err != nil {
		return 0, fmt.Errorf("failed to get account %s: %w", code, err)
	}

	totals, err := s.ledgerRepo.SumForAccount(ctx, hospitalID, code)
	if err != nil {
		return 0, fmt.Errorf("failed to sum entries for account %s: %w", code, err)
	}

	return signedBalance(acc, totals), nil
}

// GenerateTrialBalance reads the chart and the raw entry sums in one
// repeatable-read transaction so the report is a consistent snapshot.
// Cached-vs-recomputed mismatches are surfaced on the report and logged
// as alerts; they never block the report or new postings.
func (s *Service) GenerateTrialBalance(ctx context.Context, hospitalID uuid.UUID, asOf time.Time) (*TrialBalance, error) {
	if asOf.IsZero() {
		asOf = time.Now().UTC()
	}

	report := &TrialBalance{
		HospitalID:  hospitalID,
		AsOf:        asOf,
		GeneratedAt: time.Now().UTC(),
	}

	err := s.db.ExecuteRepeatableReadTx(ctx, func(tx pgx.Tx) error {
		accounts, err := s.accountRepo.WithTx(tx).ListByHospital(ctx, hospitalID)
		if err != nil {
			return fmt.Errorf("failed to list accounts: %w", err)
		}

		ledgerRepo := s.ledgerRepo.WithTx(tx)
		sums, err := ledgerRepo.SumByAccount(ctx, hospitalID, asOf)
		if err != nil {
			return fmt.Errorf("failed to sum entries by account: %w", err)
		}
		totalsByCode := make(map[string]ledger.AccountTotals, len(sums))
		for _, t := range sums {
			totalsByCode[t.AccountCode] = t
		}

		// The cached balance always reflects the full entry set, so the
		// integrity cross-check sums without the asOf cutoff. Comparing
		// it against cutoff-scoped sums would flag every account that
		// has entries after asOf.
		fullSums, err := ledgerRepo.SumByAccount(ctx, hospitalID, time.Time{})
		if err != nil {
			return fmt.Errorf("failed to sum full entry set by account: %w", err)
		}
		fullByCode := make(map[string]ledger.AccountTotals, len(fullSums))
		for _, t := range fullSums {
			fullByCode[t.AccountCode] = t
		}

		report.Rows = make([]TrialBalanceRow, 0, len(accounts))
		for _, acc := range accounts {
			totals := totalsByCode[acc.Code]
			recomputed := signedBalance(acc, totals)
			fullRecomputed := signedBalance(acc, fullByCode[acc.Code])

			row := TrialBalanceRow{
				AccountCode:            acc.Code,
				AccountName:            acc.Name,
				AccountType:            acc.Type,
				DebitCents:             totals.DebitCents,
				CreditCents:            totals.CreditCents,
				CachedBalanceCents:     acc.BalanceCents,
				RecomputedBalanceCents: recomputed,
				Consistent:             fullRecomputed == acc.BalanceCents,
			}
			if !row.Consistent {
				violation := ledger.ErrIntegrityViolation{
					HospitalID:      hospitalID,
					CachedCents:     acc.BalanceCents,
					RecomputedCents: fullRecomputed,
					Detail:          fmt.Sprintf("account %s cached balance diverges from entries", acc.Code),
				}
				report.Violations = append(report.Violations, violation)
				s.logger.Error("ALERT: ledger integrity violation detected during trial balance",
					"hospital_id", hospitalID.String(),
					"account_code", acc.Code,
					"cached_cents", acc.BalanceCents,
					"recomputed_cents", fullRecomputed,
				)
			}

			report.TotalDebitCents += totals.DebitCents
			report.TotalCreditCents += totals.CreditCents
			report.Rows = append(report.Rows, row)
		}

		report.IsBalanced = report.TotalDebitCents == report.TotalCreditCents
		if !report.IsBalanced {
			s.logger.Error("ALERT: trial balance does not balance",
				"hospital_id", hospitalID.String(),
				"total_debits", report.TotalDebitCents,
				"total_credits", report.TotalCreditCents,
			)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate trial balance: %w", err)
	}

	return report, nil
}

// signedBalance folds raw debit/credit totals into a running balance on
// the account's normal side.
func signedBalance(acc *account.Account, totals ledger.AccountTotals) int64 {
	if acc.NormalBalance() == account.SideDebit {
		return totals.DebitCents - totals.CreditCents
	}
	return totals.CreditCents - totals.DebitCents
}
