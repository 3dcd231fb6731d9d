// Package audit captures audit records inside mutating transactions.
// Records are written to the transactional outbox so they commit or abort
// together with the mutation, then archived asynchronously by the poller.
package audit

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	domaudit "github.com/hospital-accounting-ledger/internal/domain/audit"
	"github.com/hospital-accounting-ledger/internal/domain/outbox"
	"github.com/jackc/pgx/v5"
)

// Recorder writes audit entries into the outbox within a caller's
// transaction. Outbox and archive writes themselves are never audited.
type Recorder struct {
	outboxRepo outbox.Repository
	logger     *slog.Logger
}

func NewRecorder(outboxRepo outbox.Repository, logger *slog.Logger) *Recorder {
	return &Recorder{
		outboxRepo: outboxRepo,
		logger:     logger,
	}
}

// Record captures one audit entry in the given transaction. oldValues and
// newValues may be nil for CREATE and DELETE respectively.
func (r *Recorder) Record(ctx context.Context, tx pgx.Tx, hospitalID uuid.UUID, actor string, action domaudit.Action, tableName, recordID string, oldValues, newValues interface{}) error {
	entry, err := domaudit.NewEntry(hospitalID, actor, action, tableName, recordID, oldValues, newValues)
	if err != nil {
		return fmt.Errorf("failed to build audit entry for %s/%s: %w", tableName, recordID, err)
	}

	message, err := outbox.NewAuditMessage(entry)
	if err != nil {
		return fmt.Errorf("failed to wrap audit entry for %s/%s: %w", tableName, recordID, err)
	}

	if err := r.outboxRepo.WithTx(tx).Create(ctx, message); err != nil {
		r.logger.Error("Failed to capture audit entry",
			"table_name", tableName,
			"record_id", recordID,
			"action", string(action),
			"error", err,
		)
		return fmt.Errorf("failed to capture audit entry for %s/%s: %w", tableName, recordID, err)
	}

	return nil
}
