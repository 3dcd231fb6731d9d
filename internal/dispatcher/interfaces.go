package dispatcher

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/hospital-accounting-ledger/internal/domain/ledger"
	"github.com/hospital-accounting-ledger/internal/domain/shared"
)

// DispatchService turns a source transaction lifecycle event into a
// posted ledger batch.
type DispatchService interface {
	DispatchEvent(ctx context.Context, event *shared.SourceEvent) error
}

// BatchPoster posts balanced batches, optionally running a follow-up in
// the same transaction. Satisfied by *posting.Engine.
type BatchPoster interface {
	PostWithFollowUp(ctx context.Context, req *ledger.BatchRequest, followUp func(tx pgx.Tx) error) (*ledger.Batch, error)
}
