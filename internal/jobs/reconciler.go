package jobs

import (
	"context"
	"errors"
	"fmt"

	"vocalizz/internal/domain"
	"vocalizz/internal/infra"
	"vocalizz/internal/metrics"
)

// Notification is a provider callback about one external job.
type Notification struct {
	ExternalHandle string
	Status         string
	OutputRefs     map[string]string
	Error          string
}

// Ack outcomes.
const (
	AckCompleted = "completed"
	AckFailed    = "failed"
	AckIgnored   = "ignored"
	AckUnknown   = "unknown"
	AckDuplicate = "duplicate"
)

// Ack is always returned to the provider with a success status; only storage
// errors are reported as errors so the provider redelivers.
type Ack struct {
	JobID   string `json:"job_id,omitempty"`
	Outcome string `json:"outcome"`
}

// Reconciler applies provider notifications. Redelivery is safe: every state
// change is a status-guarded statement.
type Reconciler struct {
	jobs        domain.JobRepository
	ledger      domain.LedgerRepository
	compensator *Compensator
	events      EventPublisher
	metrics     *metrics.Collector
	logger      infra.Logger
}

func NewReconciler(jobs domain.JobRepository, ledger domain.LedgerRepository, compensator *Compensator, events EventPublisher, m *metrics.Collector, logger infra.Logger) *Reconciler {
	return &Reconciler{
		jobs:        jobs,
		ledger:      ledger,
		compensator: compensator,
		events:      publisherOrNop(events),
		metrics:     m,
		logger:      logger,
	}
}

func (r *Reconciler) OnProviderNotification(ctx context.Context, n Notification) (Ack, error) {
	ack, err := r.apply(ctx, n)
	if err == nil {
		r.metrics.RecordReconciliation(ack.Outcome)
	}
	return ack, err
}

func (r *Reconciler) apply(ctx context.Context, n Notification) (Ack, error) {
	event, ok := domain.ProviderEvent(n.Status)
	if !ok {
		return Ack{Outcome: AckIgnored}, nil
	}
	job, err := r.jobs.GetByExternalHandle(ctx, n.ExternalHandle)
	if errors.Is(err, domain.ErrNotFound) {
		r.logger.Info().Ctx(ctx).Str("external_handle", n.ExternalHandle).Msg("notification for unknown job acknowledged")
		return Ack{Outcome: AckUnknown}, nil
	}
	if err != nil {
		return Ack{}, fmt.Errorf("load job for handle %s: %w", n.ExternalHandle, err)
	}
	next, changed := domain.Reduce(job.Status, event)
	if !changed {
		return Ack{JobID: job.ID, Outcome: AckDuplicate}, nil
	}

	switch next {
	case domain.JobStatusCompleted:
		done, changed, err := r.ledger.Complete(ctx, job.ID, n.OutputRefs)
		if err != nil {
			return Ack{}, fmt.Errorf("complete job %s: %w", job.ID, err)
		}
		if !changed {
			return Ack{JobID: job.ID, Outcome: AckDuplicate}, nil
		}
		r.logger.Info().Ctx(ctx).Str("job_id", done.ID).Str("external_handle", n.ExternalHandle).Msg("job completed")
		r.compensator.CleanupArtifacts(ctx, *done)
		if err := r.events.PublishJob(ctx, *done); err != nil {
			r.logger.Warn().Ctx(ctx).Err(err).Str("job_id", done.ID).Msg("publish job event failed")
		}
		return Ack{JobID: done.ID, Outcome: AckCompleted}, nil
	default:
		_, changed, err := r.compensator.Compensate(ctx, job.ID, failureReason(event, n.Error), true)
		if err != nil {
			return Ack{}, fmt.Errorf("compensate job %s: %w", job.ID, err)
		}
		if !changed {
			return Ack{JobID: job.ID, Outcome: AckDuplicate}, nil
		}
		return Ack{JobID: job.ID, Outcome: AckFailed}, nil
	}
}

func failureReason(event domain.JobEvent, detail string) string {
	if detail != "" {
		return detail
	}
	if event == domain.EventCancelled {
		return "cancelled by provider"
	}
	return "provider reported failure"
}
