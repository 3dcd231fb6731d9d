package depreciation

import (
	"fmt"

	"github.com/hospital-accounting-ledger/internal/domain/asset"
)

// Strategy computes periodic depreciation amounts for one asset.
// Integer division floors; rounding residue stays in book value until
// the final clamped posting absorbs it.
type Strategy interface {
	AnnualCents(a *asset.FixedAsset) int64
	MonthlyCents(a *asset.FixedAsset) int64
}

// StraightLine spreads the depreciable base evenly over the useful life
type StraightLine struct{}

func (StraightLine) AnnualCents(a *asset.FixedAsset) int64 {
	return (a.PurchaseCostCents - a.SalvageValueCents) / int64(a.UsefulLifeYears)
}

func (s StraightLine) MonthlyCents(a *asset.FixedAsset) int64 {
	return s.AnnualCents(a) / 12
}

// ForMethod resolves the strategy for an asset's configured method
func ForMethod(method asset.Method) (Strategy, error) {
	switch method {
	case asset.MethodStraightLine:
		return StraightLine{}, nil
	default:
		return nil, fmt.Errorf("unknown depreciation method %q", method)
	}
}
