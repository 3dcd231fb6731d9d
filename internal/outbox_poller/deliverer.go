package outbox_poller

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hospital-accounting-ledger/internal/domain/audit"
	"github.com/hospital-accounting-ledger/internal/domain/outbox"
	"github.com/hospital-accounting-ledger/internal/platform/messaging/producers"
)

// Deliverer routes one outbox message to its destination
type Deliverer interface {
	Deliver(ctx context.Context, message *outbox.Message) error
}

// DelivererImpl implements Deliverer. Audit entries go to the Mongo
// archive, posted events go to Kafka.
type DelivererImpl struct {
	auditRepo      audit.Repository
	postedProducer producers.MessagePublisher
	logger         *slog.Logger
}

// NewDeliverer creates a new deliverer
func NewDeliverer(
	auditRepo audit.Repository,
	postedProducer producers.MessagePublisher,
	logger *slog.Logger,
) Deliverer {
	return &DelivererImpl{
		auditRepo:      auditRepo,
		postedProducer: postedProducer,
		logger:         logger,
	}
}

// Deliver routes the message by kind. Payload corruption is permanent
// and reported distinctly so the poller can park the row instead of
// retrying forever.
func (d *DelivererImpl) Deliver(ctx context.Context, message *outbox.Message) error {
	switch message.Kind {
	case outbox.KindAuditEntry:
		entry, err := message.AuditEntry()
		if err != nil {
			return &PermanentError{OutboxID: message.ID, Cause: fmt.Errorf("failed to unmarshal audit entry: %w", err)}
		}
		if err := d.auditRepo.Insert(ctx, entry); err != nil {
			return fmt.Errorf("failed to archive audit entry %s: %w", entry.ID, err)
		}
		d.logger.Info("Archived audit entry from outbox",
			"outbox_id", message.ID, "audit_id", entry.ID.String(), "table_name", entry.TableName)
		return nil

	case outbox.KindLedgerPosted:
		event, err := message.LedgerPostedEvent()
		if err != nil {
			return &PermanentError{OutboxID: message.ID, Cause: fmt.Errorf("failed to unmarshal posted event: %w", err)}
		}
		if err := d.postedProducer.Publish(ctx, event.TransactionRef, event); err != nil {
			return fmt.Errorf("failed to publish posted event %s: %w", event.TransactionRef, err)
		}
		d.logger.Info("Published ledger posted event from outbox",
			"outbox_id", message.ID, "transaction_ref", event.TransactionRef, "batch_id", event.BatchID.String())
		return nil

	default:
		return &PermanentError{OutboxID: message.ID, Cause: fmt.Errorf("unknown outbox kind %q", message.Kind)}
	}
}

// PermanentError marks a message that can never deliver
type PermanentError struct {
	OutboxID int64
	Cause    error
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("outbox message %d permanently undeliverable: %v", e.OutboxID, e.Cause)
}

func (e *PermanentError) Unwrap() error {
	return e.Cause
}
