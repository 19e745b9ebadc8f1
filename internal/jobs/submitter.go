package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"vocalizz/internal/domain"
	"vocalizz/internal/infra"
	"vocalizz/internal/metrics"
	"vocalizz/internal/storage"
)

// SubmitterConfig carries the callback address and the validity of the
// signed source link handed to the provider.
type SubmitterConfig struct {
	CallbackURL  string
	SourceURLTTL time.Duration
}

// Submitter hands a queued training job to the provider exactly once.
type Submitter struct {
	jobs        domain.JobRepository
	compensator *Compensator
	provider    TrainingProvider
	store       storage.Store
	events      EventPublisher
	metrics     *metrics.Collector
	logger      infra.Logger
	cfg         SubmitterConfig
}

func NewSubmitter(jobs domain.JobRepository, compensator *Compensator, provider TrainingProvider, store storage.Store, events EventPublisher, m *metrics.Collector, logger infra.Logger, cfg SubmitterConfig) *Submitter {
	if cfg.SourceURLTTL <= 0 {
		cfg.SourceURLTTL = 24 * time.Hour
	}
	return &Submitter{
		jobs:        jobs,
		compensator: compensator,
		provider:    provider,
		store:       store,
		events:      publisherOrNop(events),
		metrics:     m,
		logger:      logger,
		cfg:         cfg,
	}
}

// Submit starts the provider job. On any failure the job has already been
// compensated with a refund when Submit returns a *domain.SubmissionFailedError.
// The call is never retried.
func (s *Submitter) Submit(ctx context.Context, jobID string) (*domain.Job, error) {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != domain.JobStatusQueued {
		return job, fmt.Errorf("submit job %s in status %s: %w", job.ID, job.Status, domain.ErrJobNotQueued)
	}

	sourceURL, err := s.sourceURL(ctx, *job)
	if err != nil {
		return nil, s.fail(ctx, job.ID, err.Error())
	}

	handle, err := s.provider.CreateJob(ctx, domain.TrainingRequest{
		JobID:       job.ID,
		SourceURL:   sourceURL,
		Epochs:      job.Epochs,
		Cleaning:    job.Cleaning,
		ModelName:   job.ID,
		CallbackURL: s.cfg.CallbackURL,
	})
	if err != nil {
		return nil, s.fail(ctx, job.ID, err.Error())
	}

	changed, err := s.jobs.MarkProcessing(ctx, job.ID, handle)
	if err != nil {
		// The provider accepted a job we cannot track; stop it and give the
		// credits back.
		s.cancelRemote(ctx, job.ID, handle)
		return nil, s.fail(ctx, job.ID, "record submission: "+err.Error())
	}
	if !changed {
		// Cancelled while the provider call was in flight.
		s.cancelRemote(ctx, job.ID, handle)
		current, err := s.jobs.GetByID(ctx, job.ID)
		if err != nil {
			return nil, err
		}
		return current, fmt.Errorf("job %s left queued during submission: %w", job.ID, domain.ErrJobTerminal)
	}

	s.metrics.RecordSubmission(true)
	job.Status = domain.JobStatusProcessing
	job.ExternalHandle = handle
	s.logger.Info().Ctx(ctx).Str("job_id", job.ID).Str("external_handle", handle).Msg("job submitted")
	if err := s.events.PublishJob(ctx, *job); err != nil {
		s.logger.Warn().Ctx(ctx).Err(err).Str("job_id", job.ID).Msg("publish job event failed")
	}
	return job, nil
}

func (s *Submitter) sourceURL(ctx context.Context, job domain.Job) (string, error) {
	if job.SourceArtifactPath == "" {
		return "", errors.New("no source audio for this job")
	}
	keys, err := storage.ListArtifacts(ctx, s.store, job.SourceArtifactPath)
	if err != nil {
		return "", fmt.Errorf("list source audio: %w", err)
	}
	if len(keys) == 0 {
		return "", fmt.Errorf("no source audio found under %s", job.SourceArtifactPath)
	}
	u, err := s.store.SignedURL(ctx, keys[0], s.cfg.SourceURLTTL)
	if err != nil {
		return "", fmt.Errorf("sign source audio: %w", err)
	}
	return u, nil
}

func (s *Submitter) fail(ctx context.Context, jobID, reason string) error {
	s.metrics.RecordSubmission(false)
	s.logger.Warn().Ctx(ctx).Str("job_id", jobID).Str("reason", reason).Msg("job submission failed")
	if _, _, err := s.compensator.Compensate(ctx, jobID, reason, true); err != nil {
		return fmt.Errorf("compensate job %s after failed submission: %w", jobID, err)
	}
	return &domain.SubmissionFailedError{JobID: jobID, Reason: reason}
}

func (s *Submitter) cancelRemote(ctx context.Context, jobID, handle string) {
	if err := s.provider.CancelJob(ctx, handle); err != nil {
		s.logger.Warn().Ctx(ctx).Err(err).Str("job_id", jobID).Str("external_handle", handle).Msg("provider cancel failed")
	}
}
