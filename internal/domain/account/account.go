package account

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Common errors
var (
	ErrEmptyCode       = errors.New("account code cannot be empty")
	ErrEmptyName       = errors.New("account name cannot be empty")
	ErrInvalidType     = errors.New("invalid account type")
	ErrEngineOnlyWrite = errors.New("account balance is mutated only by the posting engine")
)

// Type is the fundamental accounting classification of an account
type Type string

const (
	TypeAsset     Type = "ASSET"
	TypeLiability Type = "LIABILITY"
	TypeEquity    Type = "EQUITY"
	TypeIncome    Type = "INCOME"
	TypeExpense   Type = "EXPENSE"
)

// Side is a normal-balance side: the direction in which an account grows
type Side string

const (
	SideDebit  Side = "DEBIT"
	SideCredit Side = "CREDIT"
)

// Account is one entry in a hospital's chart of accounts.
// BalanceCents is a running balance maintained by the posting engine;
// it is denominated in the hospital's base currency.
type Account struct {
	ID           uuid.UUID `json:"id"`
	HospitalID   uuid.UUID `json:"hospital_id"`
	Code         string    `json:"code"` // Unique per hospital
	Name         string    `json:"name"`
	Type         Type      `json:"type"`
	BalanceCents int64     `json:"balance_cents"`
	Version      int       `json:"version"` // For optimistic locking
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// NewAccount creates an account with a zero opening balance
func NewAccount(hospitalID uuid.UUID, code, name string, accountType Type) (*Account, error) {
	if code == "" {
		return nil, ErrEmptyCode
	}
	if name == "" {
		return nil, ErrEmptyName
	}
	switch accountType {
	case TypeAsset, TypeLiability, TypeEquity, TypeIncome, TypeExpense:
	default:
		return nil, ErrInvalidType
	}

	return &Account{
		ID:         uuid.New(),
		HospitalID: hospitalID,
		Code:       code,
		Name:       name,
		Type:       accountType,
		Version:    1,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}, nil
}

// NormalBalance returns the side on which this account naturally increases:
// debit for assets and expenses, credit for liabilities, equity and income.
func (a *Account) NormalBalance() Side {
	if a.Type == TypeAsset || a.Type == TypeExpense {
		return SideDebit
	}
	return SideCredit
}

// DebitDelta is the signed running-balance change caused by debiting
// this account with amountCents.
func (a *Account) DebitDelta(amountCents int64) int64 {
	if a.NormalBalance() == SideDebit {
		return amountCents
	}
	return -amountCents
}

// CreditDelta is the signed running-balance change caused by crediting
// this account with amountCents.
func (a *Account) CreditDelta(amountCents int64) int64 {
	return -a.DebitDelta(amountCents)
}
