package dispatcher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hospital-accounting-ledger/internal/domain/shared"
	"github.com/hospital-accounting-ledger/internal/platform/messaging/producers"
)

// SourceEventHandler handles incoming source transaction events from Kafka
type SourceEventHandler struct {
	dispatchService DispatchService
	producer        producers.DeadLetterPublisher
	logger          *slog.Logger
}

// NewSourceEventHandler creates a new handler
func NewSourceEventHandler(
	logger *slog.Logger,
	dispatchService DispatchService,
	producer producers.DeadLetterPublisher,
) *SourceEventHandler {
	return &SourceEventHandler{
		dispatchService: dispatchService,
		producer:        producer,
		logger:          logger,
	}
}

// HandleMessage processes Kafka messages
func (h *SourceEventHandler) HandleMessage(ctx context.Context, key []byte, value []byte) error {
	var event shared.SourceEvent
	if err := json.Unmarshal(value, &event); err != nil {
		unmarshalErrorMsg := "Failed to unmarshal source event from Kafka message"
		h.logger.Error(unmarshalErrorMsg,
			"error", err,
			"message_key", string(key),
		)

		// Send to DLQ if available
		if h.producer != nil {
			dlqReason := fmt.Sprintf("%s: %s", unmarshalErrorMsg, err.Error())
			if dlqErr := h.producer.PublishToDLQ(ctx, string(key), value, dlqReason); dlqErr != nil {
				h.logger.Error("Failed to publish message to DLQ after unmarshal error",
					"dlq_error", dlqErr,
					"original_error", err,
					"message_key", string(key),
				)
				// Return original error if DLQ fails
			} else {
				h.logger.Info("Successfully published unprocessable message to DLQ", "message_key", string(key), "reason", dlqReason)
				// Message handled, commit offset
				return nil
			}
		}
		// Allow Kafka retries
		return fmt.Errorf("failed to unmarshal message value: %w", err)
	}

	// Add correlation ID to logger
	logger := h.logger
	if event.CorrelationID != "" {
		logger = h.logger.With("correlation_id", event.CorrelationID)
	}

	logger.Info("Received source event for dispatch",
		"transaction_ref", event.TransactionRef(),
		"hospital_id", event.HospitalID.String(),
		"type", event.Type,
		"amount_cents", event.AmountCents,
	)

	if err := h.dispatchService.DispatchEvent(ctx, &event); err != nil {
		logger.Error("Failed to dispatch source event",
			"transaction_ref", event.TransactionRef(),
			"error", err,
		)
		return fmt.Errorf("dispatching event %s failed: %w", event.TransactionRef(), err)
	}

	logger.Info("Successfully handled source event", "transaction_ref", event.TransactionRef())
	return nil // Success, commit offset
}
