package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hospital-accounting-ledger/internal/domain/invoice"
	"github.com/hospital-accounting-ledger/internal/platform/persistence"
	"github.com/jackc/pgx/v5"
)

// InvoiceRepository implements the invoice.Repository interface for PostgreSQL
type InvoiceRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewInvoiceRepository creates a new PostgreSQL invoice-projection repository
func NewInvoiceRepository(logger *slog.Logger, db *persistence.PostgresDB) invoice.Repository {
	return &InvoiceRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction
func (r *InvoiceRepository) WithTx(tx pgx.Tx) invoice.Repository {
	return &InvoiceRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Upsert writes the projection for a finalized invoice. Re-finalization
// refreshes the total without touching paid progress.
func (r *InvoiceRepository) Upsert(ctx context.Context, p *invoice.Projection) error {
	query := `
		INSERT INTO invoice_projections (source_id, hospital_id, total_cents, paid_cents, status, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (source_id) DO UPDATE
		SET total_cents = EXCLUDED.total_cents, updated_at = NOW()
	`

	_, err := r.querier.Exec(ctx, query, p.SourceID, p.HospitalID, p.TotalCents, p.PaidCents, p.Status)
	if err != nil {
		r.logger.Error("Failed to upsert invoice projection", "source_id", p.SourceID.String(), "error", err)
		return fmt.Errorf("failed to upsert invoice projection: %w", err)
	}

	return nil
}

// GetBySourceID retrieves the projection for one invoice
func (r *InvoiceRepository) GetBySourceID(ctx context.Context, hospitalID, sourceID uuid.UUID) (*invoice.Projection, error) {
	query := `
		SELECT source_id, hospital_id, total_cents, paid_cents, status, updated_at
		FROM invoice_projections
		WHERE hospital_id = $1 AND source_id = $2
	`

	var p invoice.Projection
	err := r.querier.QueryRow(ctx, query, hospitalID, sourceID).Scan(
		&p.SourceID,
		&p.HospitalID,
		&p.TotalCents,
		&p.PaidCents,
		&p.Status,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, invoice.ErrProjectionNotFound{SourceID: sourceID}
		}
		r.logger.Error("Failed to get invoice projection", "source_id", sourceID.String(), "error", err)
		return nil, fmt.Errorf("failed to get invoice projection: %w", err)
	}

	return &p, nil
}

// ApplyPayment adds a cleared payment and derives the status in one
// statement so concurrent payments cannot lose updates.
func (r *InvoiceRepository) ApplyPayment(ctx context.Context, hospitalID, sourceID uuid.UUID, amountCents int64) (*invoice.Projection, error) {
	query := `
		UPDATE invoice_projections
		SET paid_cents = paid_cents + $3,
			status = CASE WHEN paid_cents + $3 >= total_cents THEN 'PAID' ELSE 'PARTIALLY_PAID' END,
			updated_at = NOW()
		WHERE hospital_id = $1 AND source_id = $2
		RETURNING source_id, hospital_id, total_cents, paid_cents, status, updated_at
	`

	var p invoice.Projection
	err := r.querier.QueryRow(ctx, query, hospitalID, sourceID, amountCents).Scan(
		&p.SourceID,
		&p.HospitalID,
		&p.TotalCents,
		&p.PaidCents,
		&p.Status,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, invoice.ErrProjectionNotFound{SourceID: sourceID}
		}
		r.logger.Error("Failed to apply payment to invoice projection", "source_id", sourceID.String(), "error", err)
		return nil, fmt.Errorf("failed to apply payment to invoice projection: %w", err)
	}

	return &p, nil
}
