package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Line is one debit/credit pair as submitted by a caller. Amounts are in
// the named currency; the engine snapshots the rate at posting time.
type Line struct {
	DebitAccountCode  string `json:"debit_account_code"`
	CreditAccountCode string `json:"credit_account_code"`
	AmountCents       int64  `json:"amount_cents"`
	CurrencyCode      string `json:"currency_code"`
	Description       string `json:"description,omitempty"`
}

// BatchRequest is the posting engine's input: a set of lines that must
// balance in base currency and commit or fail as one unit.
type BatchRequest struct {
	TransactionRef  string    `json:"transaction_ref"` // Idempotency key
	HospitalID      uuid.UUID `json:"hospital_id"`
	TransactionDate time.Time `json:"transaction_date"`
	Description     string    `json:"description"`
	Actor           string    `json:"actor"`
	Lines           []Line    `json:"lines"`
}

// Entry is one immutable debit+credit row of the ledger. Once persisted
// it is never edited; corrections are new reversing entries.
type Entry struct {
	ID                    uuid.UUID       `json:"id"`
	BatchID               uuid.UUID       `json:"batch_id"`
	HospitalID            uuid.UUID       `json:"hospital_id"`
	TransactionDate       time.Time       `json:"transaction_date"`
	Description           string          `json:"description"`
	DebitAccountCode      string          `json:"debit_account_code"`
	CreditAccountCode     string          `json:"credit_account_code"`
	AmountCents           int64           `json:"amount_cents"` // Original currency
	CurrencyCode          string          `json:"currency_code"`
	ExchangeRateAtPosting decimal.Decimal `json:"exchange_rate_at_posting"`
	BaseAmountCents       int64           `json:"base_amount_cents"` // After conversion
	Actor                 string          `json:"actor"`
	CreatedAt             time.Time       `json:"created_at"`
}

// Batch groups the entries committed for one transaction_ref
type Batch struct {
	ID              uuid.UUID `json:"id"`
	TransactionRef  string    `json:"transaction_ref"`
	HospitalID      uuid.UUID `json:"hospital_id"`
	TransactionDate time.Time `json:"transaction_date"`
	Description     string    `json:"description"`
	Actor           string    `json:"actor"`
	TotalCents      int64     `json:"total_cents"` // Sum of base debit amounts
	Reversed        bool      `json:"reversed"`
	CreatedAt       time.Time `json:"created_at"`
	Entries         []*Entry  `json:"entries"`
}

// ReversalRef names the compensating batch for a committed ref
func ReversalRef(transactionRef string) string {
	return transactionRef + ":reversal"
}
