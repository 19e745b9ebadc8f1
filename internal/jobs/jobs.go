// Package jobs drives billable jobs from reservation to a terminal state:
// submission to the training provider, provider notifications, explicit
// cancellation and the shared compensation path.
package jobs

import (
	"context"

	"vocalizz/internal/domain"
)

// TrainingProvider runs voice-model training outside this system.
type TrainingProvider interface {
	CreateJob(ctx context.Context, req domain.TrainingRequest) (handle string, err error)
	CancelJob(ctx context.Context, handle string) error
}

// SpeechProvider renders audio synchronously.
type SpeechProvider interface {
	TextToSpeech(ctx context.Context, req domain.SpeechRequest) ([]byte, error)
	SpeechToSpeech(ctx context.Context, req domain.SpeechRequest) ([]byte, error)
}

// EventPublisher announces job state changes. *events.Publisher implements it.
type EventPublisher interface {
	PublishJob(ctx context.Context, job domain.Job) error
}

type nopPublisher struct{}

func (nopPublisher) PublishJob(context.Context, domain.Job) error { return nil }

func publisherOrNop(p EventPublisher) EventPublisher {
	if p == nil {
		return nopPublisher{}
	}
	return p
}
