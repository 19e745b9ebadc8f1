// Package events publishes job lifecycle changes on NATS.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"vocalizz/internal/domain"
	"vocalizz/internal/infra"
)

// SubjectPrefix is followed by the job status, e.g. vocalizz.jobs.completed.
const SubjectPrefix = "vocalizz.jobs."

// JobEvent is the message body.
type JobEvent struct {
	JobID          string            `json:"job_id"`
	OwnerID        string            `json:"owner_id"`
	Kind           string            `json:"kind"`
	Status         string            `json:"status"`
	CostInCredits  int               `json:"cost_in_credits"`
	ExternalHandle string            `json:"external_handle,omitempty"`
	OutputRefs     map[string]string `json:"output_refs,omitempty"`
	Error          string            `json:"error,omitempty"`
	At             time.Time         `json:"at"`
}

// Subject returns the NATS subject for a status.
func Subject(status domain.JobStatus) string {
	return SubjectPrefix + string(status)
}

// Publisher sends JobEvents. A nil *Publisher drops every event.
type Publisher struct {
	conn   *nats.Conn
	logger infra.Logger
	now    func() time.Time
}

func NewPublisher(conn *nats.Conn, logger infra.Logger) *Publisher {
	if conn == nil {
		return nil
	}
	return &Publisher{conn: conn, logger: logger, now: time.Now}
}

// PublishJob emits the current state of job.
func (p *Publisher) PublishJob(ctx context.Context, job domain.Job) error {
	if p == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := json.Marshal(JobEvent{
		JobID:          job.ID,
		OwnerID:        job.OwnerID,
		Kind:           string(job.Kind),
		Status:         string(job.Status),
		CostInCredits:  job.CostInCredits,
		ExternalHandle: job.ExternalHandle,
		OutputRefs:     job.OutputRefs,
		Error:          job.ErrorDetail,
		At:             p.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("encode job event: %w", err)
	}
	subject := Subject(job.Status)
	if err := p.conn.Publish(subject, payload); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	p.logger.Debug().Str("subject", subject).Str("job_id", job.ID).Msg("job event published")
	return nil
}
