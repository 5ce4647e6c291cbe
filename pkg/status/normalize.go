// Package status turns the backend's status payloads into a models.StatusSnapshot.
//
// Backends report progress in one of three shapes:
//
//  1. flat:    {"step": "...", "message": "...", "progress": 20, "travelPlan": {...}}
//  2. nested:  {"runtimeStatus": "Running", "customStatus": {"step": "...", ...}}
//  3. encoded: {"runtimeStatus": "Running", "customStatus": "{\"step\": \"...\"}"}
//
// Normalize tries them in that order and uses the first that yields a step. When none does,
// the workflow is treated as Started. The coarse runtimeStatus and the orchestration output
// ("output", or the JSON-encoded "finalPlan" of flat backends) are applied on top of the
// extracted custom status.
package status

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/ignatij/tripflow/pkg/models"
	"github.com/pkg/errors"
)

// customStatusKeys are the accepted names of the nested custom status, in precedence order.
var customStatusKeys = []string{"customStatus", "custom_status"}

var (
	runtimeStatusKeys = []string{"runtimeStatus", "runtime_status"}
	// outputKeys hold the orchestration output. finalPlan is the flat backend's JSON-encoded copy.
	outputKeys = []string{"output", "finalPlan"}
)

// runtimeStatusNames maps the numeric orchestration status enum onto its names.
var runtimeStatusNames = map[int]string{
	0: "Running",
	1: "Completed",
	2: "ContinuedAsNew",
	3: "Failed",
	4: "Canceled",
	5: "Terminated",
	6: "Pending",
	7: "Suspended",
}

// fields is the custom status as published by the orchestration.
type fields struct {
	Step        string             `json:"step"`
	Message     string             `json:"message"`
	Progress    *int               `json:"progress"`
	Destination string             `json:"destination"`
	Itinerary   string             `json:"itinerary"`
	TravelPlan  *models.TravelPlan `json:"travelPlan"`
	DocumentURL string             `json:"documentUrl"`
	BookingID   string             `json:"booking_id"`
}

type output struct {
	Error               string `json:"error"`
	BookingConfirmation string `json:"bookingConfirmation"`
	DocumentURL         string `json:"documentUrl"`
	BookingResult       *struct {
		BookingID string `json:"booking_id"`
	} `json:"bookingResult"`
}

// Normalize parses a raw status payload. It fails only when the payload is not a JSON object.
func Normalize(raw []byte) (models.StatusSnapshot, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil {
		return models.StatusSnapshot{}, errors.Wrap(err, "decode status payload")
	}
	if top == nil {
		return models.StatusSnapshot{}, errors.New("status payload is null")
	}

	f, _ := extract(raw, top)
	snap := models.StatusSnapshot{
		Step:        models.StartedStep,
		Message:     f.Message,
		Destination: f.Destination,
		Itinerary:   f.Itinerary,
		TravelPlan:  f.TravelPlan,
		DocumentURL: f.DocumentURL,
		BookingID:   f.BookingID,
	}
	if step, ok := models.ParseStep(f.Step); ok {
		snap.Step = step
	}
	hasProgress := f.Progress != nil
	if hasProgress {
		snap.Progress = clamp(*f.Progress)
	}

	snap.RuntimeStatus = runtimeStatus(top)
	out := decodeOutput(firstPresent(top, outputKeys))
	if overlay(&snap, out) {
		hasProgress = false
		snap.Message = ""
		if snap.Step.Failure() {
			snap.Message = out.Error
		}
	}

	if snap.Message == "" {
		snap.Message = snap.Step.DefaultMessage()
	}
	if !hasProgress {
		snap.Progress = snap.Step.DefaultProgress()
	}
	return snap, nil
}

// extract returns the custom status fields following the documented precedence.
// The boolean is false when no shape carried a step.
func extract(raw []byte, top map[string]json.RawMessage) (fields, bool) {
	var f fields
	if err := json.Unmarshal(raw, &f); err == nil && f.Step != "" {
		return f, true
	}
	for _, key := range customStatusKeys {
		if f, ok := decodeFields(top[key]); ok {
			return f, true
		}
	}
	for _, key := range customStatusKeys {
		var encoded string
		if err := json.Unmarshal(top[key], &encoded); err != nil || encoded == "" {
			continue
		}
		if f, ok := decodeFields([]byte(encoded)); ok {
			return f, true
		}
	}
	return fields{}, false
}

// firstPresent returns the first non-null value stored under one of keys.
func firstPresent(top map[string]json.RawMessage, keys []string) json.RawMessage {
	for _, key := range keys {
		raw := bytes.TrimSpace(top[key])
		if len(raw) > 0 && !bytes.Equal(raw, []byte("null")) {
			return raw
		}
	}
	return nil
}

// runtimeStatus reads the coarse engine status, given either by name or by enum value.
func runtimeStatus(top map[string]json.RawMessage) string {
	raw := firstPresent(top, runtimeStatusKeys)
	if raw == nil {
		return ""
	}
	var name string
	if err := json.Unmarshal(raw, &name); err == nil {
		return name
	}
	var code int
	if err := json.Unmarshal(raw, &code); err == nil {
		if name, ok := runtimeStatusNames[code]; ok {
			return name
		}
	}
	return string(raw)
}

func decodeFields(raw json.RawMessage) (fields, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return fields{}, false
	}
	var f fields
	if err := json.Unmarshal(raw, &f); err != nil || f.Step == "" {
		return fields{}, false
	}
	return f, true
}

func decodeOutput(raw json.RawMessage) output {
	var out output
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return out
	}
	if raw[0] == '"' {
		var encoded string
		if err := json.Unmarshal(raw, &encoded); err != nil {
			return out
		}
		raw = []byte(encoded)
	}
	_ = json.Unmarshal(raw, &out)
	return out
}

// overlay applies the coarse runtime status and the orchestration output.
// It reports whether the step was overridden.
func overlay(snap *models.StatusSnapshot, out output) bool {
	if out.BookingConfirmation != "" {
		snap.Confirmation = out.BookingConfirmation
	}
	if snap.DocumentURL == "" {
		snap.DocumentURL = out.DocumentURL
	}
	if snap.BookingID == "" && out.BookingResult != nil {
		snap.BookingID = out.BookingResult.BookingID
	}

	runtime := strings.ToUpper(snap.RuntimeStatus)
	if i := strings.LastIndex(runtime, "."); i >= 0 {
		runtime = runtime[i+1:]
	}
	prev := snap.Step
	switch runtime {
	case "COMPLETED":
		if out.Error != "" {
			snap.Step = models.ErrorStep
		} else if !snap.Step.Terminal() {
			snap.Step = models.CompletedStep
		}
	case "FAILED", "TERMINATED", "CANCELED":
		if !snap.Step.Failure() {
			snap.Step = models.FailedStep
		}
	case "SUSPENDED":
		if snap.Step == models.StartedStep {
			snap.Step = models.WaitingForApprovalStep
		}
	}
	// flat backends report Completed even when the output carries an error
	if snap.Step == models.CompletedStep && out.Error != "" {
		snap.Step = models.ErrorStep
	}
	return snap.Step != prev
}

func clamp(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
