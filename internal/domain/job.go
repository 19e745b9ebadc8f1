package domain

import "time"

// JobKind enumerates the kinds of billable work.
type JobKind string

const (
	JobKindTraining   JobKind = "training"
	JobKindConversion JobKind = "conversion"
	JobKindSynthesis  JobKind = "synthesis"
)

// Valid reports whether k is a known kind.
func (k JobKind) Valid() bool {
	switch k {
	case JobKindTraining, JobKindConversion, JobKindSynthesis:
		return true
	}
	return false
}

// JobStatus enumerates job lifecycle states.
type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Terminal reports whether no further transition is permitted.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// QualityTier selects the training effort for a voice model.
type QualityTier string

const (
	QualityStandard QualityTier = "standard"
	QualityPremium  QualityTier = "premium"
)

// Epoch counts sent to the training provider for each quality tier.
const (
	EpochsStandard = 500
	EpochsPremium  = 2000
)

// QualityFromEpochs maps an epoch count to its quality tier.
func QualityFromEpochs(epochs int) QualityTier {
	if epochs >= EpochsPremium {
		return QualityPremium
	}
	return QualityStandard
}

// Epochs returns the epoch count for q.
func (q QualityTier) Epochs() int {
	if q == QualityPremium {
		return EpochsPremium
	}
	return EpochsStandard
}

// RequiresPaidTier reports whether q is gated behind a non-basic subscription.
func (q QualityTier) RequiresPaidTier() bool {
	return q == QualityPremium
}

// Job is one training, conversion or synthesis request.
//
// CostInCredits is fixed at reservation time. ExternalHandle is empty until
// the provider accepted the job.
type Job struct {
	ID                 string
	OwnerID            string
	Kind               JobKind
	Status             JobStatus
	CostInCredits      int
	QualityTier        QualityTier
	Epochs             int
	Cleaning           bool
	Name               string
	SourceArtifactPath string
	ExternalHandle     string
	OutputRefs         map[string]string
	ErrorDetail        string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Submitted reports whether the provider returned a handle for this job.
func (j Job) Submitted() bool {
	return j.ExternalHandle != ""
}

// VoiceID returns the speech-provider voice produced by a completed training
// job. Providers that do not report a dedicated voice id fall back to the
// external handle.
func (j Job) VoiceID() string {
	if v := j.OutputRefs["voice_id"]; v != "" {
		return v
	}
	return j.ExternalHandle
}
