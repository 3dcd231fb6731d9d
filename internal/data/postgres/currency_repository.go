package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hospital-accounting-ledger/internal/domain/currency"
	"github.com/hospital-accounting-ledger/internal/platform/persistence"
	"github.com/jackc/pgx/v5"
)

// CurrencyRepository implements the currency.Repository interface for PostgreSQL
type CurrencyRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewCurrencyRepository creates a new PostgreSQL currency repository
func NewCurrencyRepository(logger *slog.Logger, db *persistence.PostgresDB) currency.Repository {
	return &CurrencyRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction
func (r *CurrencyRepository) WithTx(tx pgx.Tx) currency.Repository {
	return &CurrencyRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Upsert writes a currency rate, replacing any existing rate for the code
func (r *CurrencyRepository) Upsert(ctx context.Context, cur *currency.Currency) error {
	query := `
		INSERT INTO currencies (id, hospital_id, code, exchange_rate, is_base, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (hospital_id, code) DO UPDATE
		SET exchange_rate = EXCLUDED.exchange_rate, is_base = EXCLUDED.is_base, updated_at = NOW()
	`

	_, err := r.querier.Exec(ctx, query,
		cur.ID,
		cur.HospitalID,
		cur.Code,
		cur.ExchangeRate,
		cur.IsBase,
	)
	if err != nil {
		r.logger.Error("Failed to upsert currency", "hospital_id", cur.HospitalID.String(), "code", cur.Code, "error", err)
		return fmt.Errorf("failed to upsert currency: %w", err)
	}

	return nil
}

// GetByCode retrieves the rate for a currency code
func (r *CurrencyRepository) GetByCode(ctx context.Context, hospitalID uuid.UUID, code string) (*currency.Currency, error) {
	query := `
		SELECT id, hospital_id, code, exchange_rate, is_base, updated_at
		FROM currencies
		WHERE hospital_id = $1 AND code = $2
	`

	return r.scanOne(ctx, query, hospitalID, code)
}

// GetBase retrieves the hospital's base currency
func (r *CurrencyRepository) GetBase(ctx context.Context, hospitalID uuid.UUID) (*currency.Currency, error) {
	query := `
		SELECT id, hospital_id, code, exchange_rate, is_base, updated_at
		FROM currencies
		WHERE hospital_id = $1 AND is_base = TRUE
	`

	return r.scanOne(ctx, query, hospitalID, "")
}

func (r *CurrencyRepository) scanOne(ctx context.Context, query string, hospitalID uuid.UUID, code string) (*currency.Currency, error) {
	args := []any{hospitalID}
	if code != "" {
		args = append(args, code)
	}

	var cur currency.Currency
	err := r.querier.QueryRow(ctx, query, args...).Scan(
		&cur.ID,
		&cur.HospitalID,
		&cur.Code,
		&cur.ExchangeRate,
		&cur.IsBase,
		&cur.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, currency.ErrCurrencyNotFound{HospitalID: hospitalID, Code: code}
		}
		r.logger.Error("Failed to get currency", "hospital_id", hospitalID.String(), "code", code, "error", err)
		return nil, fmt.Errorf("failed to get currency: %w", err)
	}

	return &cur, nil
}
