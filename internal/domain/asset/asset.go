package asset

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Common errors
var (
	ErrInvalidCost       = errors.New("purchase cost must be positive")
	ErrInvalidSalvage    = errors.New("salvage value must be non-negative and below purchase cost")
	ErrInvalidUsefulLife = errors.New("useful life must be at least one year")
	ErrRetired           = errors.New("asset is retired")
)

// Method names a depreciation strategy
type Method string

const (
	MethodStraightLine Method = "STRAIGHT_LINE"
)

// FixedAsset is a depreciable asset. Assets are never deleted; once fully
// depreciated or disposed of they are retired and stop generating postings.
type FixedAsset struct {
	ID                    uuid.UUID `json:"id"`
	HospitalID            uuid.UUID `json:"hospital_id"`
	Name                  string    `json:"name"`
	CostCenter            string    `json:"cost_center"`
	PurchaseCostCents     int64     `json:"purchase_cost_cents"`
	SalvageValueCents     int64     `json:"salvage_value_cents"`
	UsefulLifeYears       int       `json:"useful_life_years"`
	DepreciationMethod    Method    `json:"depreciation_method"`
	CurrentBookValueCents int64     `json:"current_book_value_cents"`
	Retired               bool      `json:"retired"`
	AcquiredAt            time.Time `json:"acquired_at"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}

// NewFixedAsset validates and builds an asset at full book value
func NewFixedAsset(hospitalID uuid.UUID, name, costCenter string, purchaseCostCents, salvageValueCents int64, usefulLifeYears int, method Method, acquiredAt time.Time) (*FixedAsset, error) {
	if purchaseCostCents <= 0 {
		return nil, ErrInvalidCost
	}
	if salvageValueCents < 0 || salvageValueCents >= purchaseCostCents {
		return nil, ErrInvalidSalvage
	}
	if usefulLifeYears < 1 {
		return nil, ErrInvalidUsefulLife
	}

	return &FixedAsset{
		ID:                    uuid.New(),
		HospitalID:            hospitalID,
		Name:                  name,
		CostCenter:            costCenter,
		PurchaseCostCents:     purchaseCostCents,
		SalvageValueCents:     salvageValueCents,
		UsefulLifeYears:       usefulLifeYears,
		DepreciationMethod:    method,
		CurrentBookValueCents: purchaseCostCents,
		AcquiredAt:            acquiredAt,
		CreatedAt:             time.Now(),
		UpdatedAt:             time.Now(),
	}, nil
}

// DepreciableCents is the remaining amount above the salvage floor
func (a *FixedAsset) DepreciableCents() int64 {
	remaining := a.CurrentBookValueCents - a.SalvageValueCents
	if remaining < 0 {
		return 0
	}
	return remaining
}

// FullyDepreciated reports whether the book value has reached salvage value
func (a *FixedAsset) FullyDepreciated() bool {
	return a.DepreciableCents() == 0
}

// ApplyDepreciation writes down the book value, clamping at salvage value,
// and returns the amount actually written down.
func (a *FixedAsset) ApplyDepreciation(amountCents int64) (int64, error) {
	if a.Retired {
		return 0, ErrRetired
	}
	if amountCents > a.DepreciableCents() {
		amountCents = a.DepreciableCents()
	}
	a.CurrentBookValueCents -= amountCents
	a.UpdatedAt = time.Now()
	return amountCents, nil
}

// Retire marks the asset as out of service. Retired assets stay on the books.
func (a *FixedAsset) Retire() {
	a.Retired = true
	a.UpdatedAt = time.Now()
}
