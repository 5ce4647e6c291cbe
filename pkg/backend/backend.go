package backend

import (
	"context"

	"github.com/ignatij/tripflow/pkg/models"
	"github.com/pkg/errors"
)

var (
	// ErrValidation marks input rejected before any network call.
	ErrValidation = errors.New("validation failed")
	// ErrTransport marks a backend that could not be reached or answered with an error.
	ErrTransport = errors.New("backend unavailable")
	// ErrNotFound marks an instance the backend does not know.
	ErrNotFound = errors.New("workflow instance not found")
)

// Backend defines the operations of the remote orchestration service.
type Backend interface {
	// StartWorkflow schedules a new planning workflow and returns its instance id.
	StartWorkflow(ctx context.Context, req models.TravelRequest) (string, error)
	// GetStatus returns the raw status payload of an instance.
	GetStatus(ctx context.Context, instanceID string) ([]byte, error)
	// SubmitApproval delivers the human decision to an instance waiting at the approval gate.
	SubmitApproval(ctx context.Context, instanceID string, decision models.ApprovalDecision) error
}
