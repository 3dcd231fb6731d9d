package obligation

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/hospital-accounting-ledger/internal/domain/shared"
)

// Status tracks the remediation lifecycle of a pending posting obligation
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusResolved  Status = "RESOLVED"
	StatusAbandoned Status = "ABANDONED"
)

// Obligation is the durable record of a source transition whose posting
// failed. A finalized business document must never be left without a
// ledger record, so dispatch failures are persisted here instead of being
// logged and dropped. The retry poller re-dispatches PENDING rows;
// idempotency keys make replays safe.
type Obligation struct {
	ID             int64             `json:"id"`
	HospitalID     uuid.UUID         `json:"hospital_id"`
	TransactionRef string            `json:"transaction_ref"`
	SourceType     shared.SourceType `json:"source_type"`
	SourceID       uuid.UUID         `json:"source_id"`
	Transition     shared.Transition `json:"transition"`
	Payload        json.RawMessage   `json:"payload"` // Original source event
	FailureCode    string            `json:"failure_code"`
	FailureDetail  string            `json:"failure_detail"`
	Attempts       int               `json:"attempts"`
	Status         Status            `json:"status"`
	CreatedAt      time.Time         `json:"created_at"`
	ResolvedAt     *time.Time        `json:"resolved_at,omitempty"`
}

// NewObligation records a failed dispatch for the given event
func NewObligation(event *shared.SourceEvent, failureCode, failureDetail string) (*Obligation, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}
	return &Obligation{
		HospitalID:     event.HospitalID,
		TransactionRef: event.TransactionRef(),
		SourceType:     event.Type,
		SourceID:       event.SourceID,
		Transition:     event.Transition,
		Payload:        payload,
		FailureCode:    failureCode,
		FailureDetail:  failureDetail,
		Attempts:       1,
		Status:         StatusPending,
		CreatedAt:      time.Now(),
	}, nil
}

// SourceEvent extracts the original event for re-dispatch
func (o *Obligation) SourceEvent() (*shared.SourceEvent, error) {
	var event shared.SourceEvent
	if err := json.Unmarshal(o.Payload, &event); err != nil {
		return nil, err
	}
	return &event, nil
}
