package domain

// Credit prices.
const (
	CostStandardTraining = 1
	CostPremiumTraining  = 5
	CostCleaningOption   = 2
	CostConversion       = 1
	CharactersPerCredit  = 1000
)

// PricingPolicy switches credit and quota enforcement for a single
// reservation. A policy with EnforceCredits disabled records the job with a
// zero cost, so compensation has nothing to refund.
type PricingPolicy struct {
	EnforceCredits bool
	EnforceQuota   bool
}

// DefaultPricingPolicy enforces everything.
func DefaultPricingPolicy() PricingPolicy {
	return PricingPolicy{EnforceCredits: true, EnforceQuota: true}
}

// PriceRequest describes the billable options of a job.
type PriceRequest struct {
	Kind        JobKind
	QualityTier QualityTier
	Cleaning    bool
	TextLength  int
}

// Price returns the credit cost of a job. The result is snapshotted on the job
// at reservation time and never recomputed.
func Price(req PriceRequest) int {
	switch req.Kind {
	case JobKindTraining:
		cost := CostStandardTraining
		if req.QualityTier == QualityPremium {
			cost = CostPremiumTraining
		}
		if req.Cleaning {
			cost += CostCleaningOption
		}
		return cost
	case JobKindConversion:
		return CostConversion
	case JobKindSynthesis:
		if req.TextLength <= 0 {
			return 0
		}
		return (req.TextLength + CharactersPerCredit - 1) / CharactersPerCredit
	default:
		return 0
	}
}
