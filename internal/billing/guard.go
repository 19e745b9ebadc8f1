// Package billing prices jobs and reserves credits and quota for them.
package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"vocalizz/internal/domain"
	"vocalizz/internal/infra"
	"vocalizz/internal/metrics"
)

// ReserveRequest is a client request for billable work, before pricing.
type ReserveRequest struct {
	AccountID   string
	Kind        domain.JobKind
	QualityTier domain.QualityTier
	Epochs      int
	Cleaning    bool
	Name        string
	SourcePath  string
	// TextLength is the character count priced for synthesis.
	TextLength int
}

// Guard is the only entry point that creates jobs.
type Guard struct {
	ledger  domain.LedgerRepository
	metrics *metrics.Collector
	logger  infra.Logger
}

func NewGuard(ledger domain.LedgerRepository, m *metrics.Collector, logger infra.Logger) *Guard {
	return &Guard{ledger: ledger, metrics: m, logger: logger}
}

// Quote returns the cost req would be charged under policy.
func Quote(req ReserveRequest, policy domain.PricingPolicy) int {
	if !policy.EnforceCredits {
		return 0
	}
	return domain.Price(domain.PriceRequest{
		Kind:        req.Kind,
		QualityTier: req.QualityTier,
		Cleaning:    req.Cleaning,
		TextLength:  req.TextLength,
	})
}

// Reserve validates and prices req, then atomically debits the account, takes
// a quota slot and creates the queued job. Rejections wrap
// domain.ErrQuotaExceeded, domain.ErrInsufficientCredits or
// domain.ErrTierRequired and leave the account untouched.
func (g *Guard) Reserve(ctx context.Context, req ReserveRequest, policy domain.PricingPolicy) (*domain.Job, error) {
	req, err := normalize(req)
	if err != nil {
		g.metrics.RecordReservation(string(req.Kind), "invalid")
		return nil, err
	}
	params := domain.ReserveParams{
		AccountID:   req.AccountID,
		Kind:        req.Kind,
		QualityTier: req.QualityTier,
		Epochs:      req.Epochs,
		Cleaning:    req.Cleaning,
		Name:        req.Name,
		SourcePath:  req.SourcePath,
		Cost:        Quote(req, policy),
		Policy:      policy,
	}
	job, err := g.ledger.Reserve(ctx, params)
	outcome := outcomeOf(err)
	g.metrics.RecordReservation(string(req.Kind), outcome)
	if err != nil {
		g.logger.Info().Ctx(ctx).
			Err(err).
			Str("account_id", req.AccountID).
			Str("kind", string(req.Kind)).
			Int("cost", params.Cost).
			Str("outcome", outcome).
			Msg("reservation rejected")
		return nil, err
	}
	g.logger.Info().Ctx(ctx).
		Str("account_id", req.AccountID).
		Str("job_id", job.ID).
		Str("kind", string(job.Kind)).
		Int("cost", job.CostInCredits).
		Msg("reservation accepted")
	return job, nil
}

func normalize(req ReserveRequest) (ReserveRequest, error) {
	req.AccountID = strings.TrimSpace(req.AccountID)
	req.Name = strings.TrimSpace(req.Name)
	if req.AccountID == "" {
		return req, fmt.Errorf("account is required: %w", domain.ErrInvalidInput)
	}
	if !req.Kind.Valid() {
		return req, fmt.Errorf("unknown job kind %q: %w", req.Kind, domain.ErrInvalidInput)
	}
	switch req.QualityTier {
	case "":
		if req.Kind == domain.JobKindTraining && req.Epochs > 0 {
			req.QualityTier = domain.QualityFromEpochs(req.Epochs)
		} else {
			req.QualityTier = domain.QualityStandard
		}
	case domain.QualityStandard, domain.QualityPremium:
	default:
		return req, fmt.Errorf("unknown quality tier %q: %w", req.QualityTier, domain.ErrInvalidInput)
	}
	switch req.Kind {
	case domain.JobKindTraining:
		if req.Name == "" {
			return req, fmt.Errorf("model name is required: %w", domain.ErrInvalidInput)
		}
		if req.SourcePath == "" {
			return req, fmt.Errorf("source path is required: %w", domain.ErrInvalidInput)
		}
		req.Epochs = req.QualityTier.Epochs()
	case domain.JobKindSynthesis:
		if req.TextLength <= 0 {
			return req, fmt.Errorf("text is required: %w", domain.ErrInvalidInput)
		}
		req.Cleaning = false
	case domain.JobKindConversion:
		req.Cleaning = false
	}
	return req, nil
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "accepted"
	case errors.Is(err, domain.ErrQuotaExceeded):
		return "quota_exceeded"
	case errors.Is(err, domain.ErrInsufficientCredits):
		return "insufficient_credits"
	case errors.Is(err, domain.ErrTierRequired):
		return "tier_required"
	case errors.Is(err, domain.ErrNotFound):
		return "unknown_account"
	default:
		return "error"
	}
}
