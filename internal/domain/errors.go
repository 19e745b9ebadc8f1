package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrInvalidInput        = errors.New("invalid input")
	ErrQuotaExceeded       = errors.New("quota exceeded")
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrTierRequired        = errors.New("tier required")
	ErrSubmissionFailed    = errors.New("submission failed")
	ErrProviderFailure     = errors.New("provider failure")
	ErrJobTerminal         = errors.New("job already terminal")
	ErrJobNotQueued        = errors.New("job not queued")
	ErrNotStale            = errors.New("job not stale")
	ErrDuplicateOperation  = errors.New("duplicate operation")
)

// QuotaExceededError carries the counters a client needs to explain the
// rejection.
type QuotaExceededError struct {
	Active int
	Max    int
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("too many concurrent jobs: %d of %d in progress", e.Active, e.Max)
}

func (e *QuotaExceededError) Unwrap() error { return ErrQuotaExceeded }

// InsufficientCreditsError reports the exact shortfall.
type InsufficientCreditsError struct {
	Balance int
	Cost    int
}

// Shortfall is the number of credits missing.
func (e *InsufficientCreditsError) Shortfall() int {
	if e.Cost <= e.Balance {
		return 0
	}
	return e.Cost - e.Balance
}

func (e *InsufficientCreditsError) Error() string {
	return fmt.Sprintf("insufficient credits: required %d, available %d", e.Cost, e.Balance)
}

func (e *InsufficientCreditsError) Unwrap() error { return ErrInsufficientCredits }

// SubmissionFailedError is returned after a failed submission has already
// been compensated.
type SubmissionFailedError struct {
	JobID  string
	Reason string
}

func (e *SubmissionFailedError) Error() string {
	return fmt.Sprintf("submission of job %s failed: %s", e.JobID, e.Reason)
}

func (e *SubmissionFailedError) Unwrap() error { return ErrSubmissionFailed }
