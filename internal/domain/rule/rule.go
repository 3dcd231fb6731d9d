package rule

import (
	"github.com/google/uuid"
	"github.com/hospital-accounting-ledger/internal/domain/shared"
)

// Basis determines how a rule line derives its amount from the event amount
type Basis string

const (
	// BasisGross posts the full event amount.
	BasisGross Basis = "GROSS"
	// BasisRate posts floor(amount * RateBps / 10000). Tax lines and
	// payroll contribution splits are rate lines.
	BasisRate Basis = "RATE"
)

// Line is one debit/credit mapping inside a posting rule
type Line struct {
	DebitAccountCode  string `json:"debit_account_code"`
	CreditAccountCode string `json:"credit_account_code"`
	// CashCreditAccountCode, when set, replaces CreditAccountCode for
	// events settled in cash (expenses paid directly, not via payables).
	CashCreditAccountCode string `json:"cash_credit_account_code,omitempty"`
	Basis                 Basis  `json:"basis"`
	RateBps               int64  `json:"rate_bps,omitempty"` // Basis points, only for BasisRate
	Description           string `json:"description"`
}

// AmountCents derives the line amount from the event amount
func (l Line) AmountCents(eventAmountCents int64) int64 {
	if l.Basis == BasisRate {
		return eventAmountCents * l.RateBps / 10000
	}
	return eventAmountCents
}

// Rule maps one (source type, transition) to ledger lines for a hospital.
// The account-code mapping is configuration data, never hardcoded: each
// hospital seeds and maintains its own rule table.
type Rule struct {
	ID         uuid.UUID         `json:"id"`
	HospitalID uuid.UUID         `json:"hospital_id"`
	SourceType shared.SourceType `json:"source_type"`
	Transition shared.Transition `json:"transition"`
	Lines      []Line            `json:"lines"`
}
