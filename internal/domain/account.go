package domain

import (
	"strings"
	"time"
)

// Tier enumerates subscription tiers.
type Tier string

const (
	TierBasic    Tier = "basic"
	TierStandard Tier = "standard"
	TierPremium  Tier = "premium"
)

// ParseTier normalizes a tier name. Legacy plan names from the payment catalog
// (free, pro, studio) are accepted as aliases.
func ParseTier(s string) (Tier, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "basic", "free":
		return TierBasic, true
	case "standard", "pro":
		return TierStandard, true
	case "premium", "studio":
		return TierPremium, true
	default:
		return "", false
	}
}

// MaxConcurrentJobs returns the number of non-terminal jobs an account of the
// given tier may hold at once.
func MaxConcurrentJobs(t Tier) int {
	switch t {
	case TierPremium:
		return 3
	case TierStandard, TierBasic:
		return 1
	default:
		return 1
	}
}

// Account holds the per-user credit balance and concurrency counter.
type Account struct {
	ID               string
	Email            string
	Tier             Tier
	CreditBalance    int
	ActiveJobCount   int
	StripeCustomerID string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// MaxConcurrentJobs is a convenience wrapper over the tier table.
func (a Account) MaxConcurrentJobs() int {
	return MaxConcurrentJobs(a.Tier)
}

// IsBasic reports whether the account is on the entry tier.
func (a Account) IsBasic() bool {
	return a.Tier == TierBasic
}

// CreditTransaction is one row of the credit ledger.
type CreditTransaction struct {
	ID           string
	JobID        string
	Kind         string
	Delta        int
	BalanceAfter int
	Reference    string
	CreatedAt    time.Time
}
