package domain

// CheckReservation classifies why a reservation against a would be rejected,
// in the order quota, credits, tier. It returns nil when p fits.
func CheckReservation(a Account, p ReserveParams) error {
	if p.Policy.EnforceQuota && a.ActiveJobCount >= a.MaxConcurrentJobs() {
		return &QuotaExceededError{Active: a.ActiveJobCount, Max: a.MaxConcurrentJobs()}
	}
	if a.CreditBalance < p.Cost {
		return &InsufficientCreditsError{Balance: a.CreditBalance, Cost: p.Cost}
	}
	if p.QualityTier.RequiresPaidTier() && a.IsBasic() {
		return ErrTierRequired
	}
	return nil
}
