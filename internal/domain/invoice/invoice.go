// Package invoice holds the read-side projection of invoices the ledger
// cares about: how much of each finalized invoice has been paid.
package invoice

import (
	"time"

	"github.com/google/uuid"
)

// Status tracks payment progress of a finalized invoice
type Status string

const (
	StatusOpen          Status = "OPEN"
	StatusPartiallyPaid Status = "PARTIALLY_PAID"
	StatusPaid          Status = "PAID"
)

// Projection mirrors the billing system's invoice just enough to track
// settlements. It is updated inside the posting transaction of the
// payment so paid amounts and ledger entries never disagree.
type Projection struct {
	SourceID   uuid.UUID `json:"source_id"` // Invoice ID in the billing system
	HospitalID uuid.UUID `json:"hospital_id"`
	TotalCents int64     `json:"total_cents"`
	PaidCents  int64     `json:"paid_cents"`
	Status     Status    `json:"status"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// NewProjection records a freshly finalized invoice with nothing paid
func NewProjection(hospitalID, sourceID uuid.UUID, totalCents int64) *Projection {
	return &Projection{
		SourceID:   sourceID,
		HospitalID: hospitalID,
		TotalCents: totalCents,
		Status:     StatusOpen,
		UpdatedAt:  time.Now(),
	}
}

// ApplyPayment adds a cleared payment and derives the resulting status
func (p *Projection) ApplyPayment(amountCents int64) {
	p.PaidCents += amountCents
	if p.PaidCents >= p.TotalCents {
		p.Status = StatusPaid
	} else {
		p.Status = StatusPartiallyPaid
	}
	p.UpdatedAt = time.Now()
}
