package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/ignatij/tripflow/pkg/models"
	"github.com/ignatij/tripflow/pkg/service"
)

// printer writes session events to a terminal and signals the plan command when
// the session needs a decision or has finished.
type printer struct {
	out      io.Writer
	lastStep models.Step
	awaiting chan struct{}
	finished chan models.SessionState
}

func newPrinter(out io.Writer) *printer {
	return &printer{
		out:      out,
		awaiting: make(chan struct{}, 1),
		finished: make(chan models.SessionState, 1),
	}
}

func (p *printer) Notify(ctx context.Context, evt service.Event) error {
	switch evt.Type {
	case service.MessageEvent:
		if evt.Message == nil {
			return nil
		}
		who := "planner"
		if evt.Message.Role == models.UserRole {
			who = "you"
		}
		_, err := fmt.Fprintf(p.out, "%s> %s\n", who, evt.Message.Content)
		return err
	case service.StatusEvent:
		if evt.Status == nil || evt.Status.Step == p.lastStep {
			return nil
		}
		p.lastStep = evt.Status.Step
		_, err := fmt.Fprintf(p.out, "[%3d%%] %s\n", evt.Status.Progress, evt.Status.Message)
		return err
	case service.StateEvent:
		switch {
		case evt.State == models.AwaitingApprovalSessionState:
			trySend(p.awaiting, struct{}{})
		case evt.State.Finished():
			trySend(p.finished, evt.State)
		}
	case service.ResetEvent:
		p.lastStep = ""
	}
	return nil
}

func trySend[T any](ch chan T, v T) {
	select {
	case ch <- v:
	default:
	}
}
