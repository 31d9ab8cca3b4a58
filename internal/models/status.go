package models

// Status is the job lifecycle state. Values are stored as-is in the
// status column.
type Status string

const (
	StatusDraft      Status = "draft"      // uploaded, not yet queued
	StatusQueued     Status = "queued"     // waiting for the worker
	StatusProcessing Status = "processing" // ASR running
	StatusDiarizing  Status = "diarizing"  // speaker attribution running
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// IsTerminal reports whether the status admits no further transitions.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// transitions is the allowed edge set of the lifecycle. Queueing a
// draft requires an explicit start; uploads never auto-queue.
var transitions = map[Status][]Status{
	StatusDraft:      {StatusQueued},
	StatusQueued:     {StatusProcessing},
	StatusProcessing: {StatusDiarizing, StatusCompleted, StatusFailed},
	StatusDiarizing:  {StatusCompleted, StatusFailed},
}

// CanTransition reports whether moving from s to target is legal.
func (s Status) CanTransition(target Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}
