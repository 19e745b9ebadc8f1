package jobs

import (
	"context"
	"fmt"
	"time"

	"vocalizz/internal/domain"
	"vocalizz/internal/infra"
	"vocalizz/internal/metrics"
)

// CancelReason selects the message stored on the job.
type CancelReason string

const (
	CancelManual  CancelReason = "manual"
	CancelTimeout CancelReason = "timeout"
)

// Message is the user-facing failure reason.
func (r CancelReason) Message() string {
	if r == CancelTimeout {
		return "exceeded maximum allowed duration for this quality tier"
	}
	return "cancelled by user"
}

// Principal is whoever asks for the cancel. System principals are operators
// and may only cancel stale jobs.
type Principal struct {
	AccountID string
	System    bool
}

type CancelRequest struct {
	JobID       string
	RequestedBy Principal
	Reason      CancelReason
}

// Canceller is the explicit escape hatch for jobs the provider never reports on.
type Canceller struct {
	jobs        domain.JobRepository
	compensator *Compensator
	provider    TrainingProvider
	metrics     *metrics.Collector
	logger      infra.Logger
	now         func() time.Time
}

func NewCanceller(jobs domain.JobRepository, compensator *Compensator, provider TrainingProvider, m *metrics.Collector, logger infra.Logger) *Canceller {
	return &Canceller{
		jobs:        jobs,
		compensator: compensator,
		provider:    provider,
		metrics:     m,
		logger:      logger,
		now:         time.Now,
	}
}

// Cancel fails a non-terminal job with a refund. A timeout cancel is refused
// until the job is stale.
func (c *Canceller) Cancel(ctx context.Context, req CancelRequest) (*domain.Job, error) {
	switch req.Reason {
	case CancelManual, CancelTimeout:
	case "":
		req.Reason = CancelManual
	default:
		return nil, fmt.Errorf("unknown cancel reason %q: %w", req.Reason, domain.ErrInvalidInput)
	}
	job, err := c.jobs.GetByID(ctx, req.JobID)
	if err != nil {
		return nil, err
	}
	if !c.allowed(req, *job) {
		return nil, domain.ErrUnauthorized
	}
	if _, changed := domain.Reduce(job.Status, domain.EventCancelled); !changed {
		return job, domain.ErrJobTerminal
	}
	if req.Reason == CancelTimeout && !domain.IsStale(*job, c.now()) {
		return job, fmt.Errorf("job %s is within its %s limit: %w", job.ID, domain.TimeoutFor(job.QualityTier), domain.ErrNotStale)
	}

	failed, changed, err := c.compensator.Compensate(ctx, job.ID, req.Reason.Message(), true)
	if err != nil {
		return nil, err
	}
	if !changed {
		// Reconciled between the read and the update.
		return failed, domain.ErrJobTerminal
	}
	c.metrics.RecordCancellation(string(req.Reason))
	if failed.ExternalHandle != "" && c.provider != nil {
		if err := c.provider.CancelJob(ctx, failed.ExternalHandle); err != nil {
			c.logger.Warn().Ctx(ctx).Err(err).Str("job_id", failed.ID).Str("external_handle", failed.ExternalHandle).Msg("provider cancel failed")
		}
	}
	return failed, nil
}

func (c *Canceller) allowed(req CancelRequest, job domain.Job) bool {
	if req.RequestedBy.System {
		return req.Reason == CancelTimeout
	}
	return req.RequestedBy.AccountID != "" && req.RequestedBy.AccountID == job.OwnerID
}
