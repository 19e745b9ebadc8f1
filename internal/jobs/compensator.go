package jobs

import (
	"context"
	"strings"

	"vocalizz/internal/domain"
	"vocalizz/internal/infra"
	"vocalizz/internal/metrics"
	"vocalizz/internal/storage"
)

// Compensator is the single failure path for every job. The ledger update is
// one guarded statement; artifact cleanup and event publishing are best
// effort and never returned as errors.
type Compensator struct {
	ledger  domain.LedgerRepository
	store   storage.Store
	events  EventPublisher
	metrics *metrics.Collector
	logger  infra.Logger
}

func NewCompensator(ledger domain.LedgerRepository, store storage.Store, events EventPublisher, m *metrics.Collector, logger infra.Logger) *Compensator {
	return &Compensator{
		ledger:  ledger,
		store:   store,
		events:  publisherOrNop(events),
		metrics: m,
		logger:  logger,
	}
}

// Compensate fails the job with reason, releases its quota slot and, when
// refund is set, returns its recorded cost. changed is false when the job was
// already terminal, in which case nothing else happens.
func (c *Compensator) Compensate(ctx context.Context, jobID, reason string, refund bool) (*domain.Job, bool, error) {
	job, changed, err := c.ledger.Compensate(ctx, jobID, reason, refund)
	if err != nil {
		return nil, false, err
	}
	if !changed {
		c.logger.Debug().Ctx(ctx).Str("job_id", jobID).Str("status", string(job.Status)).Msg("compensation skipped: job already terminal")
		return job, false, nil
	}
	c.metrics.RecordCompensation(refund && job.CostInCredits > 0)
	c.logger.Info().Ctx(ctx).
		Str("job_id", job.ID).
		Str("account_id", job.OwnerID).
		Str("reason", reason).
		Bool("refund", refund).
		Int("cost", job.CostInCredits).
		Msg("job compensated")

	c.CleanupArtifacts(ctx, *job)
	if err := c.events.PublishJob(ctx, *job); err != nil {
		c.logger.Warn().Ctx(ctx).Err(err).Str("job_id", job.ID).Msg("publish job event failed")
	}
	return job, true, nil
}

// CleanupArtifacts deletes the uploaded source of a job. A source path ending
// in a slash is a folder; anything else is a single object.
func (c *Compensator) CleanupArtifacts(ctx context.Context, job domain.Job) {
	path := job.SourceArtifactPath
	if path == "" || c.store == nil {
		return
	}
	var (
		deleted int
		err     error
	)
	if strings.HasSuffix(path, "/") {
		deleted, err = storage.DeletePrefix(ctx, c.store, path)
	} else {
		err = c.store.Delete(ctx, []string{path})
		if err == nil {
			deleted = 1
		}
	}
	if err != nil {
		c.metrics.RecordCleanupFailure()
		c.logger.Warn().Ctx(ctx).Err(err).Str("job_id", job.ID).Str("path", path).Msg("artifact cleanup failed")
		return
	}
	c.logger.Debug().Ctx(ctx).Str("job_id", job.ID).Str("path", path).Int("deleted", deleted).Msg("artifacts cleaned up")
}
