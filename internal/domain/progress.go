package domain

import "time"

// ExpectedDuration is the typical provider run time for a quality tier.
func ExpectedDuration(q QualityTier) time.Duration {
	switch q {
	case QualityPremium:
		return 60 * time.Minute
	case QualityStandard:
		return 15 * time.Minute
	default:
		return 30 * time.Minute
	}
}

// ExpectedDurationSeconds is ExpectedDuration expressed in seconds.
func ExpectedDurationSeconds(q QualityTier) int {
	return int(ExpectedDuration(q) / time.Second)
}

// TimeoutFor is the elapsed time after which a non-terminal job is considered
// possibly stuck.
func TimeoutFor(q QualityTier) time.Duration {
	if q == QualityPremium {
		return 2 * time.Hour
	}
	return 30 * time.Minute
}

// EstimateProgress derives a non-authoritative percentage from elapsed time.
// The value is capped at 99 until the job is observed as completed.
func EstimateProgress(createdAt time.Time, q QualityTier, now time.Time) int {
	elapsed := now.Sub(createdAt)
	if elapsed <= 0 {
		return 0
	}
	pct := int(elapsed * 100 / ExpectedDuration(q))
	if pct > 99 {
		return 99
	}
	return pct
}

// JobProgress applies EstimateProgress to a job, honouring terminal states.
func JobProgress(j Job, now time.Time) int {
	switch j.Status {
	case JobStatusCompleted:
		return 100
	case JobStatusFailed:
		return 0
	}
	return EstimateProgress(j.CreatedAt, j.QualityTier, now)
}

// IsStale reports whether a non-terminal job has exceeded its tier timeout.
// It is advisory: only an explicit cancel changes state.
func IsStale(j Job, now time.Time) bool {
	if j.Status.Terminal() {
		return false
	}
	return now.Sub(j.CreatedAt) > TimeoutFor(j.QualityTier)
}
