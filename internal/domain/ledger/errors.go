package ledger

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ValidationError indicates malformed posting input
type ValidationError struct {
	Reason string
}

func (e ValidationError) Error() string {
	return "invalid posting request: " + e.Reason
}

// Is matches any ValidationError when the target carries no reason
func (e ValidationError) Is(target error) bool {
	t, ok := target.(ValidationError)
	if !ok {
		return false
	}
	return t.Reason == "" || t.Reason == e.Reason
}

// ErrPeriodLocked indicates the transaction date falls inside a closed period
type ErrPeriodLocked struct {
	HospitalID      uuid.UUID
	TransactionDate time.Time
	LockDate        time.Time
}

func (e ErrPeriodLocked) Error() string {
	return fmt.Sprintf("period locked: %s is on or before the book lock %s (hospital %s)",
		e.TransactionDate.Format("2006-01-02"), e.LockDate.Format("2006-01-02"), e.HospitalID)
}

// Is matches any ErrPeriodLocked regardless of dates
func (e ErrPeriodLocked) Is(target error) bool {
	_, ok := target.(ErrPeriodLocked)
	return ok
}

// ErrUnbalancedBatch indicates debit and credit totals disagree in base cents
type ErrUnbalancedBatch struct {
	TransactionRef string
	DebitCents     int64
	CreditCents    int64
}

func (e ErrUnbalancedBatch) Error() string {
	return fmt.Sprintf("unbalanced batch %s: debits %d != credits %d", e.TransactionRef, e.DebitCents, e.CreditCents)
}

// Is matches any ErrUnbalancedBatch when the target carries no ref
func (e ErrUnbalancedBatch) Is(target error) bool {
	t, ok := target.(ErrUnbalancedBatch)
	if !ok {
		return false
	}
	return t.TransactionRef == "" || t.TransactionRef == e.TransactionRef
}

// ErrIntegrityViolation indicates a disagreement between cached balances
// and totals recomputed from raw entries. It never blocks new postings;
// it raises a standing alert.
type ErrIntegrityViolation struct {
	HospitalID      uuid.UUID
	CachedCents     int64
	RecomputedCents int64
	Detail          string
}

func (e ErrIntegrityViolation) Error() string {
	return fmt.Sprintf("ledger integrity violation (hospital %s): cached %d, recomputed %d: %s",
		e.HospitalID, e.CachedCents, e.RecomputedCents, e.Detail)
}

// Is matches any ErrIntegrityViolation
func (e ErrIntegrityViolation) Is(target error) bool {
	_, ok := target.(ErrIntegrityViolation)
	return ok
}

// ErrConcurrencyConflict indicates retryable lock contention
type ErrConcurrencyConflict struct {
	TransactionRef string
	Cause          error
}

func (e ErrConcurrencyConflict) Error() string {
	return "concurrency conflict while posting " + e.TransactionRef + ": " + e.Cause.Error()
}

func (e ErrConcurrencyConflict) Unwrap() error {
	return e.Cause
}

// Is matches any ErrConcurrencyConflict when the target carries no ref
func (e ErrConcurrencyConflict) Is(target error) bool {
	t, ok := target.(ErrConcurrencyConflict)
	if !ok {
		return false
	}
	return t.TransactionRef == "" || t.TransactionRef == e.TransactionRef
}

// ErrBatchNotFound indicates a missing batch for a transaction ref
type ErrBatchNotFound struct {
	TransactionRef string
}

func (e ErrBatchNotFound) Error() string {
	return "ledger batch not found: " + e.TransactionRef
}

// Is matches any ErrBatchNotFound when the target carries no ref
func (e ErrBatchNotFound) Is(target error) bool {
	t, ok := target.(ErrBatchNotFound)
	if !ok {
		return false
	}
	return t.TransactionRef == "" || t.TransactionRef == e.TransactionRef
}
