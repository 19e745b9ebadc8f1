package domain

import (
	"context"
	"time"
)

// ReserveParams is the validated, priced input to a reservation.
type ReserveParams struct {
	AccountID   string
	Kind        JobKind
	QualityTier QualityTier
	Epochs      int
	Cleaning    bool
	Name        string
	SourcePath  string
	Cost        int
	Policy      PricingPolicy
}

// PaymentGrant is a tier change and/or credit top-up from the payment provider
// or an operator. Reference makes the grant idempotent.
type PaymentGrant struct {
	AccountID        string
	StripeCustomerID string
	Tier             Tier
	Credits          int
	Kind             string
	Reference        string
}

// LedgerRepository owns every mutation of Account.CreditBalance and
// Account.ActiveJobCount. Each method is a single atomic statement.
type LedgerRepository interface {
	GetAccount(ctx context.Context, accountID string) (*Account, error)
	// Reserve creates a queued job, debits its cost and takes a quota slot,
	// or returns a typed rejection without side effects.
	Reserve(ctx context.Context, p ReserveParams) (*Job, error)
	// Compensate fails a non-terminal job, releases its slot and optionally
	// refunds its recorded cost. changed is false when the job was already
	// terminal.
	Compensate(ctx context.Context, jobID, reason string, refund bool) (job *Job, changed bool, err error)
	// Complete marks a non-terminal job completed and releases its slot.
	Complete(ctx context.Context, jobID string, outputRefs map[string]string) (job *Job, changed bool, err error)
	// ApplyGrant applies a payment grant once per reference.
	ApplyGrant(ctx context.Context, g PaymentGrant) (applied bool, err error)
	// FindAccountByCustomer resolves a payment-provider customer id.
	FindAccountByCustomer(ctx context.Context, customerID string) (*Account, error)
}

// JobRepository reads jobs and records submission.
type JobRepository interface {
	GetByID(ctx context.Context, jobID string) (*Job, error)
	GetByExternalHandle(ctx context.Context, handle string) (*Job, error)
	ListByOwner(ctx context.Context, ownerID string, limit int) ([]Job, error)
	ListActiveCreatedBefore(ctx context.Context, before time.Time, limit int) ([]Job, error)
	// MarkProcessing records the provider handle on a queued job.
	MarkProcessing(ctx context.Context, jobID, handle string) (changed bool, err error)
}

// SynthesisCacheRepository is the durable text-to-speech cache.
type SynthesisCacheRepository interface {
	Get(ctx context.Context, hash string) (storagePath string, err error)
	Put(ctx context.Context, hash, storagePath string) error
}

// AccountDirectory provisions accounts and exposes their ledger history.
type AccountDirectory interface {
	// EnsureAccount returns the account, creating it with welcomeCredits
	// on first sight.
	EnsureAccount(ctx context.Context, accountID, email string, welcomeCredits int) (*Account, error)
	ListTransactions(ctx context.Context, accountID string, limit int) ([]CreditTransaction, error)
}
