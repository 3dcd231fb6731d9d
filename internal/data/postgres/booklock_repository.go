package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hospital-accounting-ledger/internal/domain/booklock"
	"github.com/hospital-accounting-ledger/internal/platform/persistence"
	"github.com/jackc/pgx/v5"
)

// BookLockRepository implements the booklock.Repository interface for PostgreSQL
type BookLockRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewBookLockRepository creates a new PostgreSQL book-lock repository
func NewBookLockRepository(logger *slog.Logger, db *persistence.PostgresDB) booklock.Repository {
	return &BookLockRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction. The posting engine uses
// this so the lock read shares the posting transaction's atomic scope.
func (r *BookLockRepository) WithTx(tx pgx.Tx) booklock.Repository {
	return &BookLockRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Get retrieves the current lock for a hospital
func (r *BookLockRepository) Get(ctx context.Context, hospitalID uuid.UUID) (*booklock.Lock, error) {
	query := `
		SELECT hospital_id, lock_date, updated_by, updated_at
		FROM book_locks
		WHERE hospital_id = $1
	`

	var lock booklock.Lock
	err := r.querier.QueryRow(ctx, query, hospitalID).Scan(
		&lock.HospitalID,
		&lock.LockDate,
		&lock.UpdatedBy,
		&lock.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, booklock.ErrLockNotFound{HospitalID: hospitalID}
		}
		r.logger.Error("Failed to get book lock", "hospital_id", hospitalID.String(), "error", err)
		return nil, fmt.Errorf("failed to get book lock: %w", err)
	}

	return &lock, nil
}

// Advance moves the lock date forward. The WHERE guard rejects regressions
// even under concurrent writers: a no-op update means the stored date is
// already ahead of the requested one.
func (r *BookLockRepository) Advance(ctx context.Context, hospitalID uuid.UUID, lockDate time.Time, actor string) (*booklock.Lock, error) {
	query := `
		INSERT INTO book_locks (hospital_id, lock_date, updated_by, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (hospital_id) DO UPDATE
		SET lock_date = EXCLUDED.lock_date, updated_by = EXCLUDED.updated_by, updated_at = NOW()
		WHERE book_locks.lock_date < EXCLUDED.lock_date
		RETURNING hospital_id, lock_date, updated_by, updated_at
	`

	var lock booklock.Lock
	err := r.querier.QueryRow(ctx, query, hospitalID, lockDate, actor).Scan(
		&lock.HospitalID,
		&lock.LockDate,
		&lock.UpdatedBy,
		&lock.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Conflict row was newer: regression attempt.
			current, getErr := r.Get(ctx, hospitalID)
			if getErr != nil {
				return nil, fmt.Errorf("failed to read current lock after rejected advance: %w", getErr)
			}
			return nil, booklock.ErrLockRegression{HospitalID: hospitalID, Current: current.LockDate, Requested: lockDate}
		}
		r.logger.Error("Failed to advance book lock", "hospital_id", hospitalID.String(), "error", err)
		return nil, fmt.Errorf("failed to advance book lock: %w", err)
	}

	return &lock, nil
}

// Rewind moves the lock date backwards. This is the audited unlock path;
// the repository itself imposes no monotonicity here.
func (r *BookLockRepository) Rewind(ctx context.Context, hospitalID uuid.UUID, lockDate time.Time, actor string) (*booklock.Lock, error) {
	query := `
		UPDATE book_locks
		SET lock_date = $2, updated_by = $3, updated_at = NOW()
		WHERE hospital_id = $1
		RETURNING hospital_id, lock_date, updated_by, updated_at
	`

	var lock booklock.Lock
	err := r.querier.QueryRow(ctx, query, hospitalID, lockDate, actor).Scan(
		&lock.HospitalID,
		&lock.LockDate,
		&lock.UpdatedBy,
		&lock.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, booklock.ErrLockNotFound{HospitalID: hospitalID}
		}
		r.logger.Error("Failed to rewind book lock", "hospital_id", hospitalID.String(), "error", err)
		return nil, fmt.Errorf("failed to rewind book lock: %w", err)
	}

	return &lock, nil
}
