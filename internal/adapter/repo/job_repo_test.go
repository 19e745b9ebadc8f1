package repo

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"

	"vocalizz/internal/domain"
	"vocalizz/internal/sqlinline"
)

func TestMarkProcessingReportsGuard(t *testing.T) {
	sql := newStubSQL()
	repo := NewJobRepository(sql)

	sql.execs[sqlinline.QMarkJobProcessing] = pgconn.NewCommandTag("UPDATE 1")
	changed, err := repo.MarkProcessing(context.Background(), "job-1", "pred-1")
	if err != nil || !changed {
		t.Fatalf("expected change, got changed=%v err=%v", changed, err)
	}

	sql.execs[sqlinline.QMarkJobProcessing] = pgconn.NewCommandTag("UPDATE 0")
	changed, err = repo.MarkProcessing(context.Background(), "job-1", "pred-1")
	if err != nil || changed {
		t.Fatalf("expected no-op, got changed=%v err=%v", changed, err)
	}
}

func TestGetByExternalHandle(t *testing.T) {
	sql := newStubSQL()
	sql.on(sqlinline.QSelectJobByExternalHandle, jobRow("processing", 1)...)
	sql.onNoRows(sqlinline.QSelectJobByExternalHandle)
	repo := NewJobRepository(sql)

	job, err := repo.GetByExternalHandle(context.Background(), "pred-1")
	if err != nil {
		t.Fatalf("GetByExternalHandle returned error: %v", err)
	}
	if job.ExternalHandle != "pred-1" || job.Kind != domain.JobKindTraining {
		t.Fatalf("unexpected job %+v", job)
	}
	if _, err := repo.GetByExternalHandle(context.Background(), "unknown"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSynthesisCacheMiss(t *testing.T) {
	sql := newStubSQL()
	sql.onNoRows(sqlinline.QSelectSynthesisCache)
	if _, err := NewSynthesisCacheRepository(sql).Get(context.Background(), "abc"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
