package currency

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidCode = errors.New("currency must be a 3-letter code")
	ErrInvalidRate = errors.New("exchange rate must be positive")
)

// Currency holds the exchange rate between a currency and the hospital's
// base currency. Rates are supplied by collaborators, never computed here,
// and become immutable once a posted ledger entry references them.
type Currency struct {
	ID           uuid.UUID       `json:"id"`
	HospitalID   uuid.UUID       `json:"hospital_id"`
	Code         string          `json:"code"`
	ExchangeRate decimal.Decimal `json:"exchange_rate"` // Units of base currency per unit of this currency
	IsBase       bool            `json:"is_base"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// NewCurrency validates and builds a currency record
func NewCurrency(hospitalID uuid.UUID, code string, rate decimal.Decimal, isBase bool) (*Currency, error) {
	if len(code) != 3 {
		return nil, ErrInvalidCode
	}
	if !rate.IsPositive() {
		return nil, ErrInvalidRate
	}

	return &Currency{
		ID:           uuid.New(),
		HospitalID:   hospitalID,
		Code:         code,
		ExchangeRate: rate,
		IsBase:       isBase,
		UpdatedAt:    time.Now(),
	}, nil
}

// ToBaseCents converts amountCents of this currency into base-currency
// cents, flooring the fractional remainder.
func (c *Currency) ToBaseCents(amountCents int64) int64 {
	if c.IsBase {
		return amountCents
	}
	return decimal.NewFromInt(amountCents).Mul(c.ExchangeRate).Floor().IntPart()
}
