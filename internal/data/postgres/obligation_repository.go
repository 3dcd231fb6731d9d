package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hospital-accounting-ledger/internal/domain/obligation"
	"github.com/hospital-accounting-ledger/internal/platform/persistence"
	"github.com/jackc/pgx/v5"
)

// ObligationRepository implements the obligation.Repository interface for PostgreSQL
type ObligationRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewObligationRepository creates a new PostgreSQL posting-obligation repository
func NewObligationRepository(logger *slog.Logger, db *persistence.PostgresDB) obligation.Repository {
	return &ObligationRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction
func (r *ObligationRepository) WithTx(tx pgx.Tx) obligation.Repository {
	return &ObligationRepository{
		querier: tx,
		logger:  r.logger,
	}
}

const obligationColumns = `id, hospital_id, transaction_ref, source_type, source_id, transition,
		payload, failure_code, failure_detail, attempts, status, created_at, resolved_at`

// Upsert records a failed dispatch. A repeat failure for the same
// transaction_ref increments attempts and refreshes the failure fields
// on the existing row rather than duplicating it.
func (r *ObligationRepository) Upsert(ctx context.Context, o *obligation.Obligation) error {
	query := `
		INSERT INTO posting_obligations
			(hospital_id, transaction_ref, source_type, source_id, transition, payload, failure_code, failure_detail, attempts, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 1, $9, NOW())
		ON CONFLICT (transaction_ref) DO UPDATE
		SET failure_code = EXCLUDED.failure_code,
			failure_detail = EXCLUDED.failure_detail,
			attempts = posting_obligations.attempts + 1,
			status = $9
		RETURNING id, attempts, created_at
	`

	err := r.querier.QueryRow(ctx, query,
		o.HospitalID,
		o.TransactionRef,
		o.SourceType,
		o.SourceID,
		o.Transition,
		o.Payload,
		o.FailureCode,
		o.FailureDetail,
		obligation.StatusPending,
	).Scan(&o.ID, &o.Attempts, &o.CreatedAt)
	if err != nil {
		r.logger.Error("Failed to upsert posting obligation", "transaction_ref", o.TransactionRef, "error", err)
		return fmt.Errorf("failed to upsert posting obligation: %w", err)
	}

	return nil
}

// GetByID retrieves one obligation
func (r *ObligationRepository) GetByID(ctx context.Context, id int64) (*obligation.Obligation, error) {
	query := `SELECT ` + obligationColumns + ` FROM posting_obligations WHERE id = $1`

	o, err := r.scanObligation(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, obligation.ErrObligationNotFound{ID: id}
		}
		r.logger.Error("Failed to get posting obligation", "obligation_id", id, "error", err)
		return nil, fmt.Errorf("failed to get posting obligation: %w", err)
	}

	return o, nil
}

// GetPending retrieves PENDING obligations oldest-first for the retry poller
func (r *ObligationRepository) GetPending(ctx context.Context, limit int) ([]*obligation.Obligation, error) {
	query := `
		SELECT ` + obligationColumns + `
		FROM posting_obligations
		WHERE status = $1
		ORDER BY created_at, id
		LIMIT $2
	`

	return r.scanList(ctx, query, obligation.StatusPending, limit)
}

// ListByHospital retrieves obligations for operator review, newest first
func (r *ObligationRepository) ListByHospital(ctx context.Context, hospitalID uuid.UUID, status obligation.Status, limit, offset int) ([]*obligation.Obligation, error) {
	query := `
		SELECT ` + obligationColumns + `
		FROM posting_obligations
		WHERE hospital_id = $1 AND status = $2
		ORDER BY created_at DESC, id DESC
		LIMIT $3 OFFSET $4
	`

	return r.scanList(ctx, query, hospitalID, status, limit, offset)
}

// Resolve marks the obligation for a transaction_ref as satisfied
func (r *ObligationRepository) Resolve(ctx context.Context, transactionRef string) error {
	query := `
		UPDATE posting_obligations
		SET status = $2, resolved_at = NOW()
		WHERE transaction_ref = $1 AND status = $3
	`

	_, err := r.querier.Exec(ctx, query, transactionRef, obligation.StatusResolved, obligation.StatusPending)
	if err != nil {
		r.logger.Error("Failed to resolve posting obligation", "transaction_ref", transactionRef, "error", err)
		return fmt.Errorf("failed to resolve posting obligation: %w", err)
	}

	return nil
}

// Abandon marks an obligation as permanently given up on
func (r *ObligationRepository) Abandon(ctx context.Context, id int64, actor string) error {
	query := `
		UPDATE posting_obligations
		SET status = $2, failure_detail = failure_detail || ' (abandoned by ' || $3 || ')', resolved_at = NOW()
		WHERE id = $1 AND status = $4
	`

	tag, err := r.querier.Exec(ctx, query, id, obligation.StatusAbandoned, actor, obligation.StatusPending)
	if err != nil {
		r.logger.Error("Failed to abandon posting obligation", "obligation_id", id, "error", err)
		return fmt.Errorf("failed to abandon posting obligation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return obligation.ErrObligationNotFound{ID: id}
	}

	return nil
}

func (r *ObligationRepository) scanList(ctx context.Context, query string, args ...any) ([]*obligation.Obligation, error) {
	rows, err := r.querier.Query(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list posting obligations", "error", err)
		return nil, fmt.Errorf("failed to list posting obligations: %w", err)
	}
	defer rows.Close()

	var obligations []*obligation.Obligation
	for rows.Next() {
		o, err := r.scanObligation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan posting obligation: %w", err)
		}
		obligations = append(obligations, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate posting obligations: %w", err)
	}

	return obligations, nil
}

func (r *ObligationRepository) scanObligation(row pgx.Row) (*obligation.Obligation, error) {
	var o obligation.Obligation
	err := row.Scan(
		&o.ID,
		&o.HospitalID,
		&o.TransactionRef,
		&o.SourceType,
		&o.SourceID,
		&o.Transition,
		&o.Payload,
		&o.FailureCode,
		&o.FailureDetail,
		&o.Attempts,
		&o.Status,
		&o.CreatedAt,
		&o.ResolvedAt,
	)
	if err != nil {
		return nil, err
	}
	return &o, nil
}
