package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ignatij/tripflow/pkg/backend"
	"github.com/ignatij/tripflow/pkg/models"
	"github.com/ignatij/tripflow/pkg/status"
	"github.com/pkg/errors"
	"golang.org/x/sync/semaphore"
)

// Logger defines the logging interface for WorkflowStatusClient
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

var (
	ErrBackendFailure = errors.New("workflow failed")
	ErrSessionActive  = errors.New("a workflow is already tracked by this session")
	ErrInvalidState   = errors.New("operation not allowed in the current session state")
	ErrPollingStopped = errors.New("polling is stopped")
	ErrStale          = errors.New("session was reset while the call was in flight")
)

// Marker names for messages appended at most once per workflow instance.
const (
	bookingMarker   = "booking"
	completedMarker = "completed"
	failedMarker    = "failed"
)

// WorkflowStatusClient keeps the local view of one remote planning workflow at a time.
// It starts the workflow, polls its status, drives the approval gate and keeps the chat log.
// All per-instance state lives in a session value that is replaced on Reset, so responses
// for a previous session are recognised by pointer and dropped.
type WorkflowStatusClient struct {
	ctx       context.Context
	backend   backend.Backend
	logger    Logger
	notifiers []Notifier
	interval  time.Duration
	autoPoll  bool
	inflight  *semaphore.Weighted
	poller    *poller
	session   *session
	mu        sync.Mutex
	emitMu    sync.Mutex
}

type session struct {
	id         string
	state      models.SessionState
	request    *models.TravelRequest
	instanceID string
	status     *models.StatusSnapshot
	decision   *models.ApprovalDecision
	messages   []models.ChatMessage
	busy       bool
	// displayedPlan is the instance whose plan was already rendered.
	displayedPlan string
	shown         map[string]bool // instance id + marker
}

func newSession() *session {
	return &session{
		id:    uuid.New().String(),
		state: models.IdleSessionState,
		shown: make(map[string]bool),
	}
}

// polling reports whether status polls are allowed.
func (s *session) polling() bool {
	if s.instanceID == "" || s.busy {
		return false
	}
	return s.state == models.PollingSessionState || s.state == models.ProcessingSessionState
}

// once reports whether marker was not yet used for the current instance, and marks it.
func (s *session) once(marker string) bool {
	key := s.instanceID + "/" + marker
	if s.shown[key] {
		return false
	}
	s.shown[key] = true
	return true
}

func (s *session) event(t EventType) Event {
	return Event{Type: t, SessionID: s.id, InstanceID: s.instanceID, State: s.state}
}

func (s *session) appendMessage(role models.Role, content string) Event {
	msg := models.ChatMessage{Role: role, Content: content, CreatedAt: time.Now()}
	s.messages = append(s.messages, msg)
	evt := s.event(MessageEvent)
	evt.Message = &msg
	return evt
}

func (s *session) setState(state models.SessionState) []Event {
	if s.state == state {
		return nil
	}
	s.state = state
	return []Event{s.event(StateEvent)}
}

type Option func(*WorkflowStatusClient)

// WithPollInterval sets the delay between two status polls.
func WithPollInterval(d time.Duration) Option {
	return func(c *WorkflowStatusClient) {
		c.interval = d
	}
}

// WithNotifier registers a receiver of session events.
func WithNotifier(n Notifier) Option {
	return func(c *WorkflowStatusClient) {
		c.notifiers = append(c.notifiers, n)
	}
}

// WithoutAutoPoll disables the background poller; callers drive Poll themselves.
func WithoutAutoPoll() Option {
	return func(c *WorkflowStatusClient) {
		c.autoPoll = false
	}
}

// NewWorkflowStatusClient creates an idle client. ctx bounds background polling.
func NewWorkflowStatusClient(ctx context.Context, b backend.Backend, logger Logger, opts ...Option) *WorkflowStatusClient {
	c := &WorkflowStatusClient{
		ctx:      ctx,
		backend:  b,
		logger:   logger,
		interval: DefaultPollInterval,
		autoPoll: true,
		inflight: semaphore.NewWeighted(1),
		session:  newSession(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.poller = newPoller(c.interval, c.inflight, c.pollTick, logger)
	return c
}

// StartWorkflow validates the request and starts one remote workflow for this session.
func (c *WorkflowStatusClient) StartWorkflow(ctx context.Context, req models.TravelRequest) (string, error) {
	c.mu.Lock()
	sess := c.session
	if sess.instanceID != "" || sess.state != models.IdleSessionState {
		c.mu.Unlock()
		return "", errors.Wrapf(ErrSessionActive, "session state %s", sess.state)
	}
	if err := req.Validate(); err != nil {
		evt := sess.appendMessage(models.SystemRole, fmt.Sprintf("Please check your request: %v.", err))
		c.unlockAndEmit([]Event{evt})
		return "", errors.Wrap(backend.ErrValidation, err.Error())
	}
	sess.busy = true
	sess.request = &req
	events := sess.setState(models.SubmittingSessionState)
	events = append(events, sess.appendMessage(models.UserRole, describeRequest(req)))
	c.unlockAndEmit(events)

	id, err := c.backend.StartWorkflow(ctx, req)

	c.mu.Lock()
	if c.session != sess {
		c.mu.Unlock()
		if err == nil {
			c.logger.Infof("Ignoring workflow %s started for a session that was reset", id)
		}
		return "", ErrStale
	}
	sess.busy = false
	if err != nil {
		c.logger.Errorf("Failed to start workflow: %v", err)
		sess.request = nil
		events = sess.setState(models.IdleSessionState)
		events = append(events, sess.appendMessage(models.SystemRole,
			fmt.Sprintf("Sorry, I could not start planning your trip: %v. Please try again.", err)))
		c.unlockAndEmit(events)
		return "", errors.Wrap(err, "start workflow")
	}

	c.logger.Infof("Started workflow %s for session %s", id, sess.id)
	sess.instanceID = id
	events = sess.setState(models.PollingSessionState)
	events = append(events, sess.appendMessage(models.SystemRole,
		fmt.Sprintf("Planning your trip to match your preferences (workflow %s). This may take a few minutes...", id)))
	c.startPolling()
	c.unlockAndEmit(events)
	return id, nil
}

// Poll issues one status request and applies the normalized snapshot.
// It waits for an outstanding poll to finish first.
func (c *WorkflowStatusClient) Poll(ctx context.Context) (models.StatusSnapshot, error) {
	if err := c.inflight.Acquire(ctx, 1); err != nil {
		return models.StatusSnapshot{}, err
	}
	defer c.inflight.Release(1)
	return c.poll(ctx)
}

func (c *WorkflowStatusClient) pollTick(ctx context.Context) {
	if _, err := c.poll(ctx); err != nil {
		switch {
		case errors.Is(err, ErrPollingStopped), errors.Is(err, ErrStale), errors.Is(err, context.Canceled):
			c.logger.Debugf("Poll result discarded: %v", err)
		case errors.Is(err, ErrBackendFailure):
			c.logger.Infof("Workflow reported a failure: %v", err)
		default:
			c.logger.Errorf("Failed to poll workflow status: %v", err)
		}
	}
}

// poll must be called with the inflight semaphore held.
func (c *WorkflowStatusClient) poll(ctx context.Context) (models.StatusSnapshot, error) {
	c.mu.Lock()
	sess := c.session
	if !sess.polling() {
		c.mu.Unlock()
		return models.StatusSnapshot{}, ErrPollingStopped
	}
	id := sess.instanceID
	c.mu.Unlock()

	raw, err := c.backend.GetStatus(ctx, id)
	if err != nil {
		c.mu.Lock()
		stale := c.session != sess
		c.mu.Unlock()
		if stale {
			return models.StatusSnapshot{}, ErrStale
		}
		return models.StatusSnapshot{}, errors.Wrapf(err, "get status of %s", id)
	}
	snap, err := status.Normalize(raw)
	if err != nil {
		return models.StatusSnapshot{}, errors.Wrapf(err, "normalize status of %s", id)
	}

	c.mu.Lock()
	if c.session != sess || sess.instanceID != id {
		c.mu.Unlock()
		return snap, ErrStale
	}
	if !sess.polling() {
		c.mu.Unlock()
		return snap, ErrPollingStopped
	}
	c.logger.Debugf("Workflow %s at step %s (%d%%)", id, snap.Step, snap.Progress)
	events := c.apply(sess, snap)
	c.unlockAndEmit(events)

	if snap.Step.Failure() {
		return snap, errors.Wrap(ErrBackendFailure, snap.Message)
	}
	return snap, nil
}

// apply advances the state machine with one snapshot. Must be called with c.mu held.
func (c *WorkflowStatusClient) apply(sess *session, snap models.StatusSnapshot) []Event {
	sess.status = &snap
	evt := sess.event(StatusEvent)
	evt.Status = &snap
	events := []Event{evt}

	switch {
	case snap.Step == models.WaitingForApprovalStep:
		if sess.decision != nil {
			// decision delivered, the remote gate has not released yet
			break
		}
		c.poller.Stop()
		events = append(events, sess.setState(models.AwaitingApprovalSessionState)...)
		if sess.displayedPlan != sess.instanceID {
			sess.displayedPlan = sess.instanceID
			events = append(events, sess.appendMessage(models.SystemRole, RenderPlan(snap)))
		}
	case snap.Step == models.BookingTripStep:
		events = append(events, sess.setState(models.ProcessingSessionState)...)
		if sess.once(bookingMarker) {
			msg := "Booking your trip..."
			if snap.Destination != "" {
				msg = fmt.Sprintf("Booking your trip to %s...", snap.Destination)
			}
			events = append(events, sess.appendMessage(models.SystemRole, msg))
		}
	case snap.Step == models.CompletedStep:
		c.poller.Stop()
		events = append(events, sess.setState(models.CompletedSessionState)...)
		if sess.decision != nil && sess.once(completedMarker) {
			msg := completionMessage(snap)
			if !sess.decision.Approved {
				msg = rejectionMessage(snap)
			}
			events = append(events, sess.appendMessage(models.SystemRole, msg))
		}
	case snap.Step == models.RejectedStep:
		c.poller.Stop()
		events = append(events, sess.setState(models.CompletedSessionState)...)
		if sess.once(completedMarker) {
			events = append(events, sess.appendMessage(models.SystemRole, rejectionMessage(snap)))
		}
	case snap.Step.Failure():
		c.poller.Stop()
		events = append(events, sess.setState(models.FailedSessionState)...)
		if sess.once(failedMarker) {
			events = append(events, sess.appendMessage(models.SystemRole, failureMessage(snap)))
		}
	default:
		if sess.state == models.ProcessingSessionState {
			events = append(events, sess.setState(models.PollingSessionState)...)
		}
	}
	return events
}

// SubmitApproval sends the decision for the instance waiting at the approval gate.
func (c *WorkflowStatusClient) SubmitApproval(ctx context.Context, decision models.ApprovalDecision) error {
	c.mu.Lock()
	sess := c.session
	if sess.instanceID == "" || sess.state != models.AwaitingApprovalSessionState || sess.busy {
		c.mu.Unlock()
		return errors.Wrapf(ErrInvalidState, "cannot submit a decision while %s", sess.state)
	}
	id := sess.instanceID
	sess.busy = true
	sess.decision = &decision
	events := sess.setState(models.ProcessingSessionState)
	events = append(events, sess.appendMessage(models.UserRole, describeDecision(decision)))
	c.unlockAndEmit(events)

	err := c.backend.SubmitApproval(ctx, id, decision)

	c.mu.Lock()
	if c.session != sess || sess.instanceID != id {
		c.mu.Unlock()
		return ErrStale
	}
	sess.busy = false
	if err != nil {
		c.logger.Errorf("Failed to submit decision for workflow %s: %v", id, err)
		sess.decision = nil
		events = sess.setState(models.AwaitingApprovalSessionState)
		events = append(events, sess.appendMessage(models.SystemRole,
			fmt.Sprintf("Sorry, I could not send your decision: %v. Please try again.", err)))
		c.unlockAndEmit(events)
		return errors.Wrap(err, "submit approval")
	}
	c.logger.Infof("Submitted decision for workflow %s (approved=%t)", id, decision.Approved)
	c.startPolling()
	c.unlockAndEmit(nil)
	return nil
}

// Reset starts a new plan: polling stops and every per-instance value is dropped.
// Responses still in flight for the old session are ignored when they arrive.
func (c *WorkflowStatusClient) Reset() {
	c.mu.Lock()
	c.poller.Stop()
	old := c.session
	c.session = newSession()
	c.logger.Infof("Session %s reset (was tracking %q)", old.id, old.instanceID)
	c.unlockAndEmit([]Event{c.session.event(ResetEvent)})
}

// View returns a copy of the current session.
func (c *WorkflowStatusClient) View() models.SessionView {
	c.mu.Lock()
	defer c.mu.Unlock()
	sess := c.session
	view := models.SessionView{
		SessionID:  sess.id,
		State:      sess.state,
		InstanceID: sess.instanceID,
		Messages:   append([]models.ChatMessage{}, sess.messages...),
		Polling:    sess.polling(),
		Busy:       sess.busy,
		CanSubmit:  sess.state == models.IdleSessionState && !sess.busy,
		CanDecide:  sess.state == models.AwaitingApprovalSessionState && !sess.busy,
	}
	if sess.request != nil {
		r := *sess.request
		view.Request = &r
	}
	if sess.status != nil {
		s := *sess.status
		view.Status = &s
	}
	if sess.decision != nil {
		d := *sess.decision
		view.Decision = &d
	}
	return view
}

// Close stops background polling and waits for the poll loop to exit.
func (c *WorkflowStatusClient) Close() {
	c.mu.Lock()
	c.poller.Stop()
	c.mu.Unlock()
	c.poller.Wait()
}

// startPolling must be called with c.mu held.
func (c *WorkflowStatusClient) startPolling() {
	if c.autoPoll {
		c.poller.Start(c.ctx)
	}
}

// unlockAndEmit releases c.mu and delivers events, keeping the order in which
// they were produced under the lock.
func (c *WorkflowStatusClient) unlockAndEmit(events []Event) {
	c.emitMu.Lock()
	c.mu.Unlock()
	defer c.emitMu.Unlock()
	for _, evt := range events {
		for _, n := range c.notifiers {
			if err := n.Notify(c.ctx, evt); err != nil {
				c.logger.Errorf("Failed to deliver %s event: %v", evt.Type, err)
			}
		}
	}
}
