package service

import (
	"context"

	"github.com/ignatij/tripflow/pkg/models"
)

type EventType string

const (
	MessageEvent EventType = "message" // A chat message was appended
	StatusEvent  EventType = "status"  // A polled snapshot was applied
	StateEvent   EventType = "state"   // The session state changed
	ResetEvent   EventType = "reset"   // The session was cleared
)

// Event describes one change of a planning session.
type Event struct {
	Type       EventType              `json:"type"`
	SessionID  string                 `json:"session_id"`
	InstanceID string                 `json:"instance_id,omitempty"`
	State      models.SessionState    `json:"state"`
	Message    *models.ChatMessage    `json:"message,omitempty"`
	Status     *models.StatusSnapshot `json:"status,omitempty"`
}

// Notifier receives session events in the order they happened.
// Notify must not call back into the client: events are delivered while the
// client serializes its own updates.
type Notifier interface {
	Notify(ctx context.Context, evt Event) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, evt Event) error

func (f NotifierFunc) Notify(ctx context.Context, evt Event) error {
	return f(ctx, evt)
}
