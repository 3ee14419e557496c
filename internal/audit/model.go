package audit

import "time"

// Action classifies an audit entry.
type Action string

const (
	ActionUserRegistered Action = "user.registered"
	ActionLoginSucceeded Action = "auth.login.succeeded"
	ActionLoginFailed    Action = "auth.login.failed"
)

// Entry is an immutable audit record.
type Entry struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Action    Action    `json:"action"`
	Details   *string   `json:"details,omitempty"`
	UserID    int64     `json:"user_id"`
}
