package shared

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidSourceType = errors.New("invalid source transaction type")
	ErrInvalidTransition = errors.New("invalid lifecycle transition")
)

// SourceType identifies the business document behind a posting trigger
type SourceType string

const (
	SourceInvoice SourceType = "INVOICE"
	SourcePayment SourceType = "PAYMENT"
	SourceExpense SourceType = "EXPENSE"
	SourcePayroll SourceType = "PAYROLL"
)

// Transition is a source-transaction lifecycle status change that
// triggers a posting.
type Transition string

const (
	TransitionFinalized Transition = "FINALIZED" // Invoice DRAFT -> FINALIZED
	TransitionCleared   Transition = "CLEARED"   // Payment PENDING -> CLEARED
	TransitionApproved  Transition = "APPROVED"  // Expense/Payroll PENDING -> APPROVED
)

// SourceEvent is the Kafka message emitted by the surrounding platform
// when a source transaction changes state. The actor arrives
// pre-authorized; this core performs no permission checks.
type SourceEvent struct {
	EventID       uuid.UUID  `json:"event_id"`
	Type          SourceType `json:"type"`
	SourceID      uuid.UUID  `json:"id"`
	HospitalID    uuid.UUID  `json:"hospital_id"`
	Transition    Transition `json:"status"`
	AmountCents   int64      `json:"amount_cents"`
	CurrencyCode  string     `json:"currency_code"`
	Date          time.Time  `json:"date"`
	ActorID       string     `json:"actor_id"`
	Category      string     `json:"category,omitempty"`   // Expense category, payroll run label
	Reference     string     `json:"reference,omitempty"`  // Paid invoice ID for payments
	PaidInCash    bool       `json:"paid_in_cash"`         // Expense settled from cash, not payables
	CorrelationID string     `json:"correlation_id,omitempty"`
	Timestamp     time.Time  `json:"timestamp"`
}

// TransactionRef derives the idempotency key binding this event's
// transition to at most one ledger batch.
func (e *SourceEvent) TransactionRef() string {
	return fmt.Sprintf("%s:%s:%s", e.Type, e.SourceID, e.Transition)
}

// Validate checks structural validity before dispatch
func (e *SourceEvent) Validate() error {
	switch e.Type {
	case SourceInvoice, SourcePayment, SourceExpense, SourcePayroll:
	default:
		return ErrInvalidSourceType
	}
	switch e.Transition {
	case TransitionFinalized, TransitionCleared, TransitionApproved:
	default:
		return ErrInvalidTransition
	}
	if e.AmountCents <= 0 {
		return fmt.Errorf("amount must be positive: %d", e.AmountCents)
	}
	if len(e.CurrencyCode) != 3 {
		return fmt.Errorf("currency must be a 3-letter code: %q", e.CurrencyCode)
	}
	return nil
}
