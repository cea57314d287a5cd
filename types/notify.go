package types

// NotificationKind tags a decoded duplex frame.
type NotificationKind int

const (
	NotificationUnrecognized NotificationKind = iota
	NotificationSessionAssigned
	NotificationJobStatus
)

func (k NotificationKind) String() string {
	switch k {
	case NotificationSessionAssigned:
		return "session_assigned"
	case NotificationJobStatus:
		return "job_status"
	default:
		return "unrecognized"
	}
}

const (
	JobStatusPending   = "pending"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)

// JobNotification is a classified frame received on the duplex channel.
type JobNotification struct {
	Kind       NotificationKind
	Token      string // SessionAssigned
	ResourceID string // JobStatus, may be empty
	Status     string // JobStatus
	JobID      string // JobStatus, server-side job id when relayed
	Error      string // JobStatus failed
	Raw        string
}

// InitFrame is the only frame a client ever writes.
type InitFrame struct {
	Action string `json:"action"`
}

// Notification is broadcast to local UI clients on every saga state change.
type Notification struct {
	Type string          `json:"type"`
	Data AttemptSnapshot `json:"data"`
}

const NotifyTypeAttemptUpdate = "attempt_update"
