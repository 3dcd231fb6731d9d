// Package postgres provides PostgreSQL implementations of the domain
// repositories. It handles all database operations while maintaining
// transaction safety and proper error handling for the accounting core.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hospital-accounting-ledger/internal/domain/account"
	"github.com/hospital-accounting-ledger/internal/platform/persistence"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// AccountRepository implements the account.Repository interface for PostgreSQL
type AccountRepository struct {
	querier persistence.Querier // Can be *pgxpool.Pool or pgx.Tx
	logger  *slog.Logger
}

// NewAccountRepository creates a new PostgreSQL account repository
func NewAccountRepository(logger *slog.Logger, db *persistence.PostgresDB) account.Repository {
	return &AccountRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction, allowing atomic operations
// across multiple repository calls.
func (r *AccountRepository) WithTx(tx pgx.Tx) account.Repository {
	return &AccountRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Create stores a new account. A per-hospital unique constraint on the
// code surfaces as ErrDuplicateCode.
func (r *AccountRepository) Create(ctx context.Context, acc *account.Account) error {
	query := `
		INSERT INTO accounts (id, hospital_id, code, name, type, balance_cents, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.querier.Exec(ctx, query,
		acc.ID,
		acc.HospitalID,
		acc.Code,
		acc.Name,
		acc.Type,
		acc.BalanceCents,
		acc.Version,
		acc.CreatedAt,
		acc.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return account.ErrDuplicateCode{HospitalID: acc.HospitalID, Code: acc.Code}
		}
		r.logger.Error("Failed to create account", "code", acc.Code, "error", err)
		return fmt.Errorf("failed to create account: %w", err)
	}

	return nil
}

// GetByCode retrieves an account by code within a hospital's scope
func (r *AccountRepository) GetByCode(ctx context.Context, hospitalID uuid.UUID, code string) (*account.Account, error) {
	query := `
		SELECT id, hospital_id, code, name, type, balance_cents, version, created_at, updated_at
		FROM accounts
		WHERE hospital_id = $1 AND code = $2
	`

	var acc account.Account
	err := r.querier.QueryRow(ctx, query, hospitalID, code).Scan(
		&acc.ID,
		&acc.HospitalID,
		&acc.Code,
		&acc.Name,
		&acc.Type,
		&acc.BalanceCents,
		&acc.Version,
		&acc.CreatedAt,
		&acc.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, account.ErrAccountNotFound{HospitalID: hospitalID, Code: code}
		}
		r.logger.Error("Failed to get account", "code", code, "error", err)
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	return &acc, nil
}

// ListByHospital retrieves a hospital's full chart of accounts ordered by code
func (r *AccountRepository) ListByHospital(ctx context.Context, hospitalID uuid.UUID) ([]*account.Account, error) {
	query := `
		SELECT id, hospital_id, code, name, type, balance_cents, version, created_at, updated_at
		FROM accounts
		WHERE hospital_id = $1
		ORDER BY code ASC
	`

	rows, err := r.querier.Query(ctx, query, hospitalID)
	if err != nil {
		r.logger.Error("Failed to list accounts", "hospital_id", hospitalID.String(), "error", err)
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*account.Account
	for rows.Next() {
		var acc account.Account
		err := rows.Scan(
			&acc.ID,
			&acc.HospitalID,
			&acc.Code,
			&acc.Name,
			&acc.Type,
			&acc.BalanceCents,
			&acc.Version,
			&acc.CreatedAt,
			&acc.UpdatedAt,
		)
		if err != nil {
			r.logger.Error("Failed to scan account", "error", err)
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, &acc)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("Error iterating over accounts", "error", err)
		return nil, fmt.Errorf("error iterating over accounts: %w", err)
	}

	return accounts, nil
}

// LockForUpdate obtains a row lock on the account and returns its current
// state. Must run inside the posting transaction.
func (r *AccountRepository) LockForUpdate(ctx context.Context, hospitalID uuid.UUID, code string) (*account.Account, error) {
	query := `
		SELECT id, hospital_id, code, name, type, balance_cents, version, created_at, updated_at
		FROM accounts
		WHERE hospital_id = $1 AND code = $2
		FOR UPDATE
	`

	var acc account.Account
	err := r.querier.QueryRow(ctx, query, hospitalID, code).Scan(
		&acc.ID,
		&acc.HospitalID,
		&acc.Code,
		&acc.Name,
		&acc.Type,
		&acc.BalanceCents,
		&acc.Version,
		&acc.CreatedAt,
		&acc.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, account.ErrAccountNotFound{HospitalID: hospitalID, Code: code}
		}
		r.logger.Error("Failed to lock account for update", "code", code, "error", err)
		return nil, fmt.Errorf("failed to lock account for update: %w", err)
	}

	return &acc, nil
}

// ApplyBalanceDelta adds deltaCents to the account's running balance
func (r *AccountRepository) ApplyBalanceDelta(ctx context.Context, id uuid.UUID, deltaCents int64) error {
	query := `
		UPDATE accounts
		SET balance_cents = balance_cents + $1, version = version + 1, updated_at = NOW()
		WHERE id = $2
	`

	result, err := r.querier.Exec(ctx, query, deltaCents, id)
	if err != nil {
		r.logger.Error("Failed to apply balance delta", "id", id.String(), "error", err)
		return fmt.Errorf("failed to apply balance delta: %w", err)
	}

	if result.RowsAffected() == 0 {
		return account.ErrAccountNotFound{}
	}

	return nil
}
