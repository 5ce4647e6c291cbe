package models

import "time"

// SessionState is the local state of one planning session.
type SessionState string

const (
	IdleSessionState             SessionState = "IDLE"
	SubmittingSessionState       SessionState = "SUBMITTING"
	PollingSessionState          SessionState = "POLLING"
	AwaitingApprovalSessionState SessionState = "AWAITING_APPROVAL"
	ProcessingSessionState       SessionState = "PROCESSING"
	CompletedSessionState        SessionState = "COMPLETED"
	FailedSessionState           SessionState = "FAILED"
)

// Finished reports whether the session can only be reset.
func (s SessionState) Finished() bool {
	return s == CompletedSessionState || s == FailedSessionState
}

// ApprovalDecision is sent once per workflow instance at the approval gate.
type ApprovalDecision struct {
	Approved bool   `json:"approved"`
	Comments string `json:"comments"`
}

type Role string

const (
	UserRole   Role = "user"
	SystemRole Role = "system"
)

// ChatMessage is one entry of the append-only session log.
type ChatMessage struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// SessionView is a copy of the session state, safe to hand to renderers.
type SessionView struct {
	SessionID  string            `json:"session_id"`
	State      SessionState      `json:"state"`
	InstanceID string            `json:"instance_id,omitempty"`
	Request    *TravelRequest    `json:"request,omitempty"`
	Status     *StatusSnapshot   `json:"status,omitempty"`
	Decision   *ApprovalDecision `json:"decision,omitempty"`
	Messages   []ChatMessage     `json:"messages"`
	Polling    bool              `json:"polling"`
	CanSubmit  bool              `json:"can_submit"` // No instance tracked and nothing in flight
	CanDecide  bool              `json:"can_decide"` // Approve/reject controls enabled
	Busy       bool              `json:"busy"`       // A start or approval call is outstanding
}
