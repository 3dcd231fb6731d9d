package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/hospital-accounting-ledger/internal/domain/audit"
	"github.com/hospital-accounting-ledger/internal/domain/ledger"
)

// Kind discriminates outbox payloads
type Kind string

const (
	KindAuditEntry   Kind = "AUDIT_ENTRY"   // Delivered to the Mongo audit archive
	KindLedgerPosted Kind = "LEDGER_POSTED" // Published to Kafka for observability
)

// Status tracks delivery state
type Status string

const (
	StatusPending         Status = "PENDING"
	StatusProcessed       Status = "PROCESSED"
	StatusFailedToDeliver Status = "FAILED_TO_DELIVER"
)

// Message is one transactional-outbox row. Rows are written in the same
// Postgres transaction as the mutation they describe, which is what makes
// audit capture and event publication atomic with the ledger write.
type Message struct {
	ID            int64           `json:"id"`
	HospitalID    uuid.UUID       `json:"hospital_id"`
	Kind          Kind            `json:"kind"`
	Payload       json.RawMessage `json:"payload"`
	Status        Status          `json:"status"`
	Attempts      int             `json:"attempts"`
	CreatedAt     time.Time       `json:"created_at"`
	LastAttemptAt *time.Time      `json:"last_attempt_at,omitempty"`
}

// NewAuditMessage wraps an audit entry for delivery
func NewAuditMessage(entry *audit.Entry) (*Message, error) {
	payload, err := json.Marshal(entry)
	if err != nil {
		return nil, err
	}
	return &Message{
		HospitalID: entry.HospitalID,
		Kind:       KindAuditEntry,
		Payload:    payload,
		Status:     StatusPending,
		CreatedAt:  time.Now(),
	}, nil
}

// PostedEvent is the LedgerEntryPosted payload published after commit
type PostedEvent struct {
	BatchID         uuid.UUID `json:"batch_id"`
	TransactionRef  string    `json:"transaction_ref"`
	HospitalID      uuid.UUID `json:"hospital_id"`
	TransactionDate time.Time `json:"transaction_date"`
	TotalCents      int64     `json:"total_cents"`
	EntryCount      int       `json:"entry_count"`
	Actor           string    `json:"actor"`
	PostedAt        time.Time `json:"posted_at"`
}

// NewPostedMessage wraps a LedgerEntryPosted event for a committed batch
func NewPostedMessage(batch *ledger.Batch) (*Message, error) {
	event := PostedEvent{
		BatchID:         batch.ID,
		TransactionRef:  batch.TransactionRef,
		HospitalID:      batch.HospitalID,
		TransactionDate: batch.TransactionDate,
		TotalCents:      batch.TotalCents,
		EntryCount:      len(batch.Entries),
		Actor:           batch.Actor,
		PostedAt:        batch.CreatedAt,
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}
	return &Message{
		HospitalID: batch.HospitalID,
		Kind:       KindLedgerPosted,
		Payload:    payload,
		Status:     StatusPending,
		CreatedAt:  time.Now(),
	}, nil
}

// AuditEntry extracts the audit payload
func (m *Message) AuditEntry() (*audit.Entry, error) {
	var entry audit.Entry
	if err := json.Unmarshal(m.Payload, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

// LedgerPostedEvent extracts the posted-event payload
func (m *Message) LedgerPostedEvent() (*PostedEvent, error) {
	var event PostedEvent
	if err := json.Unmarshal(m.Payload, &event); err != nil {
		return nil, err
	}
	return &event, nil
}

func (m *Message) IncrementAttempts() {
	m.Attempts++
	now := time.Now()
	m.LastAttemptAt = &now
}

func (m *Message) MarkAsProcessed() {
	m.Status = StatusProcessed
	now := time.Now()
	m.LastAttemptAt = &now
}

func (m *Message) MarkAsFailed() {
	m.Status = StatusFailedToDeliver
	now := time.Now()
	m.LastAttemptAt = &now
}
