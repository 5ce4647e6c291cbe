package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/ignatij/tripflow/pkg/models"
	"github.com/pkg/errors"
)

// MockBackend implements Backend in memory. Each instance replays a scripted list of
// status payloads, one per GetStatus call, repeating the last one once exhausted.
// A script can be split at the approval gate: payloads after the gate are only served
// once a decision was submitted.
type MockBackend struct {
	mu        sync.Mutex
	scripts   []instanceScript // consumed in order by StartWorkflow
	instances map[string]*mockInstance
	order     []string // ids handed out by StartWorkflow, in order
	nextID    int

	// Injected failures, consumed one per call.
	startErrs    []error
	statusErrs   []error
	approvalErrs []error

	starts    int
	polls     int
	approvals []models.ApprovalDecision
}

type instanceScript struct {
	id         string
	beforeGate []json.RawMessage
	afterGate  []json.RawMessage
}

type mockInstance struct {
	request  models.TravelRequest
	script   instanceScript
	cursor   int
	decision *models.ApprovalDecision
}

// NewMockBackend returns an empty in-memory backend.
func NewMockBackend() *MockBackend {
	return &MockBackend{
		instances: make(map[string]*mockInstance),
	}
}

// Script queues the payloads served for the next started instance, which gets id instanceID.
// An empty id assigns a generated one ("instance-1", ...). Payloads may be raw JSON strings,
// byte slices or values encoded with encoding/json.
func (m *MockBackend) Script(instanceID string, beforeGate []any, afterGate ...any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scripts = append(m.scripts, instanceScript{
		id:         instanceID,
		beforeGate: encodeAll(beforeGate),
		afterGate:  encodeAll(afterGate),
	})
}

// FailStart makes the next StartWorkflow call return err.
func (m *MockBackend) FailStart(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.startErrs = append(m.startErrs, err)
}

// FailStatus makes the next GetStatus call return err.
func (m *MockBackend) FailStatus(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statusErrs = append(m.statusErrs, err)
}

// FailApproval makes the next SubmitApproval call return err.
func (m *MockBackend) FailApproval(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.approvalErrs = append(m.approvalErrs, err)
}

func (m *MockBackend) StartWorkflow(ctx context.Context, req models.TravelRequest) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.starts++
	if err := pop(&m.startErrs); err != nil {
		return "", err
	}
	id, script := m.nextScript()
	m.instances[id] = &mockInstance{request: req, script: script}
	m.order = append(m.order, id)
	return id, nil
}

func (m *MockBackend) GetStatus(ctx context.Context, instanceID string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.polls++
	if err := pop(&m.statusErrs); err != nil {
		return nil, err
	}
	inst, ok := m.instances[instanceID]
	if !ok {
		return nil, errors.Wrap(ErrNotFound, instanceID)
	}
	payloads := inst.script.beforeGate
	if inst.decision != nil {
		payloads = append(payloads[:len(payloads):len(payloads)], inst.script.afterGate...)
	}
	if len(payloads) == 0 {
		return []byte(`{"runtimeStatus": "Pending"}`), nil
	}
	if inst.cursor >= len(payloads) {
		return payloads[len(payloads)-1], nil
	}
	p := payloads[inst.cursor]
	inst.cursor++
	return p, nil
}

func (m *MockBackend) SubmitApproval(ctx context.Context, instanceID string, decision models.ApprovalDecision) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := pop(&m.approvalErrs); err != nil {
		return err
	}
	inst, ok := m.instances[instanceID]
	if !ok {
		return errors.Wrap(ErrNotFound, instanceID)
	}
	if inst.decision != nil {
		return errors.New("approval already submitted")
	}
	inst.decision = &decision
	inst.cursor = len(inst.script.beforeGate)
	m.approvals = append(m.approvals, decision)
	return nil
}

// Starts returns the number of StartWorkflow calls.
func (m *MockBackend) Starts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.starts
}

// Polls returns the number of GetStatus calls.
func (m *MockBackend) Polls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.polls
}

// Approvals returns the decisions accepted so far.
func (m *MockBackend) Approvals() []models.ApprovalDecision {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.ApprovalDecision(nil), m.approvals...)
}

// Instances returns the ids handed out by StartWorkflow, in order.
func (m *MockBackend) Instances() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.order...)
}

// Request returns the travel request an instance was started with.
func (m *MockBackend) Request(instanceID string) (models.TravelRequest, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inst, ok := m.instances[instanceID]
	if !ok {
		return models.TravelRequest{}, false
	}
	return inst.request, true
}

func (m *MockBackend) nextScript() (string, instanceScript) {
	var script instanceScript
	if len(m.scripts) > 0 {
		script = m.scripts[0]
		m.scripts = m.scripts[1:]
	}
	id := script.id
	if id == "" {
		m.nextID++
		id = fmt.Sprintf("instance-%d", m.nextID)
	}
	return id, script
}

func pop(errs *[]error) error {
	if len(*errs) == 0 {
		return nil
	}
	err := (*errs)[0]
	*errs = (*errs)[1:]
	return err
}

func encodeAll(payloads []any) []json.RawMessage {
	out := make([]json.RawMessage, 0, len(payloads))
	for _, p := range payloads {
		switch v := p.(type) {
		case string:
			out = append(out, json.RawMessage(v))
		case []byte:
			out = append(out, json.RawMessage(v))
		default:
			data, err := json.Marshal(v)
			if err != nil {
				panic(fmt.Sprintf("mock backend: cannot encode payload %T: %v", p, err))
			}
			out = append(out, data)
		}
	}
	return out
}
