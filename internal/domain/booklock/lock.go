package booklock

import (
	"time"

	"github.com/google/uuid"
)

// Lock is the administrative close boundary for one hospital's books.
// No posting may carry a transaction date on or before LockDate. The date
// only moves forward, except through the explicitly audited Unlock path.
type Lock struct {
	HospitalID uuid.UUID `json:"hospital_id"`
	LockDate   time.Time `json:"lock_date"`
	UpdatedBy  string    `json:"updated_by"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Covers reports whether a transaction date falls inside the closed
// period. The lock date is a calendar day, so the transaction date is
// truncated to its UTC day before comparing; a posting carrying any
// time-of-day on the lock day itself is still covered.
func (l *Lock) Covers(transactionDate time.Time) bool {
	y, m, d := transactionDate.UTC().Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return !day.After(l.LockDate)
}

// ErrLockRegression indicates an attempt to move the lock date backwards
// through the normal Lock operation.
type ErrLockRegression struct {
	HospitalID uuid.UUID
	Current    time.Time
	Requested  time.Time
}

func (e ErrLockRegression) Error() string {
	return "book lock cannot regress from " + e.Current.Format("2006-01-02") +
		" to " + e.Requested.Format("2006-01-02") + " (hospital " + e.HospitalID.String() + ")"
}

// Is matches any ErrLockRegression
func (e ErrLockRegression) Is(target error) bool {
	_, ok := target.(ErrLockRegression)
	return ok
}
