package repo

import (
	"context"
	"time"

	"vocalizz/internal/domain"
	"vocalizz/internal/infra"
	"vocalizz/internal/sqlinline"
)

// JobRepositoryPG implements domain.JobRepository.
type JobRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewJobRepository creates a new job repository backed by PostgreSQL.
func NewJobRepository(sql infra.SQLExecutor) *JobRepositoryPG {
	return &JobRepositoryPG{sql: sql}
}

// GetByID fetches a job by its identifier.
func (r *JobRepositoryPG) GetByID(ctx context.Context, jobID string) (*domain.Job, error) {
	return r.one(ctx, sqlinline.QSelectJobByID, jobID)
}

// GetByExternalHandle fetches the job the provider knows as handle.
func (r *JobRepositoryPG) GetByExternalHandle(ctx context.Context, handle string) (*domain.Job, error) {
	return r.one(ctx, sqlinline.QSelectJobByExternalHandle, handle)
}

func (r *JobRepositoryPG) one(ctx context.Context, query string, arg string) (*domain.Job, error) {
	job, err := scanJob(r.sql.QueryRow(ctx, query, arg))
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return job, nil
}

// ListByOwner returns the newest jobs of an account first.
func (r *JobRepositoryPG) ListByOwner(ctx context.Context, ownerID string, limit int) ([]domain.Job, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QListJobsByOwner, ownerID, limit)
	if err != nil {
		return nil, err
	}
	return collectJobs(rows)
}

// ListActiveCreatedBefore returns non-terminal jobs older than before, oldest first.
func (r *JobRepositoryPG) ListActiveCreatedBefore(ctx context.Context, before time.Time, limit int) ([]domain.Job, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QListActiveJobsCreatedBefore, before, limit)
	if err != nil {
		return nil, err
	}
	return collectJobs(rows)
}

// MarkProcessing records the provider handle. It is a no-op unless the job is
// still queued.
func (r *JobRepositoryPG) MarkProcessing(ctx context.Context, jobID, handle string) (bool, error) {
	tag, err := r.sql.Exec(ctx, sqlinline.QMarkJobProcessing, jobID, handle)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

var _ domain.JobRepository = (*JobRepositoryPG)(nil)
