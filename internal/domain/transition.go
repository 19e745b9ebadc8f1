package domain

// JobEvent is an input to the job state machine.
type JobEvent string

const (
	EventSubmitted JobEvent = "submitted"
	EventSucceeded JobEvent = "succeeded"
	EventFailed    JobEvent = "failed"
	EventCancelled JobEvent = "cancelled"
)

type transitionKey struct {
	from  JobStatus
	event JobEvent
}

var transitions = map[transitionKey]JobStatus{
	{JobStatusQueued, EventSubmitted}:     JobStatusProcessing,
	{JobStatusQueued, EventSucceeded}:     JobStatusCompleted,
	{JobStatusQueued, EventFailed}:        JobStatusFailed,
	{JobStatusQueued, EventCancelled}:     JobStatusFailed,
	{JobStatusProcessing, EventSucceeded}: JobStatusCompleted,
	{JobStatusProcessing, EventFailed}:    JobStatusFailed,
	{JobStatusProcessing, EventCancelled}: JobStatusFailed,
}

// Reduce returns the status reached by applying event to current. Any pair
// not in the transition table is a no-op and reports changed=false.
func Reduce(current JobStatus, event JobEvent) (next JobStatus, changed bool) {
	if to, ok := transitions[transitionKey{current, event}]; ok {
		return to, true
	}
	return current, false
}

// ProviderEvent maps a provider-reported status onto a job event. Intermediate
// statuses return ok=false and must be ignored.
func ProviderEvent(status string) (JobEvent, bool) {
	switch status {
	case "succeeded", "completed":
		return EventSucceeded, true
	case "failed":
		return EventFailed, true
	case "canceled", "cancelled":
		return EventCancelled, true
	default:
		return "", false
	}
}
