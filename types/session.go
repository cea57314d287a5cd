package types

import "time"

// SagaState is the position of an upload attempt in the saga.
type SagaState int

const (
	StateIdle SagaState = iota
	StateAwaitingUploadTarget
	StateUploadingBytes
	StateAwaitingSessionToken
	StateSubmittingJob
	StateAwaitingCompletion
	StateFetchingResult
	StateSucceeded
	StateFailed
)

var sagaStateNames = [...]string{
	"idle",
	"awaiting_upload_target",
	"uploading_bytes",
	"awaiting_session_token",
	"submitting_job",
	"awaiting_completion",
	"fetching_result",
	"succeeded",
	"failed",
}

func (s SagaState) String() string {
	if int(s) < len(sagaStateNames) {
		return sagaStateNames[s]
	}
	return "unknown"
}

// Terminal reports whether no further transition can happen except a new attempt.
func (s SagaState) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// Busy reports whether the saga holds a channel and an attempt.
func (s SagaState) Busy() bool {
	return s != StateIdle && !s.Terminal()
}

// AttemptSnapshot is the externally visible view of one attempt.
type AttemptSnapshot struct {
	ID         string    `json:"id"`
	ResourceID string    `json:"resourceId"`
	State      string    `json:"state"`
	Error      string    `json:"error,omitempty"`
	ResultURL  string    `json:"resultUrl,omitempty"`
	UpdatedAt  time.Time `json:"updatedAt"`
}
