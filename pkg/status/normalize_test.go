package status_test

import (
	"encoding/json"
	"testing"

	"github.com/ignatij/tripflow/pkg/models"
	"github.com/ignatij/tripflow/pkg/status"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const approvalStatus = `{
	"step": "WaitingForApproval",
	"message": "Your travel plan is ready! Please review and approve.",
	"destination": "Lisbon",
	"travelPlan": {
		"dates": "July 1-4",
		"cost": "$1800",
		"dailyPlan": [{"Day": 1, "Date": "July 1", "Activities": [{"Time": "09:00", "ActivityName": "Belem Tower", "Location": "Belem", "EstimatedCost": "$10"}]}],
		"attractions": [{"Name": "Alfama", "Category": "Neighbourhood", "Rating": 4.8}],
		"restaurants": [{"Name": "Time Out Market", "Cuisine": "Portuguese", "PriceRange": "$$"}],
		"insiderTips": "Take tram 28 early."
	}
}`

func encodeString(t *testing.T, s string) string {
	data, err := json.Marshal(s)
	require.NoError(t, err)
	return string(data)
}

func TestNormalize_EquivalentShapes(t *testing.T) {
	shapes := map[string]string{
		"flat":           approvalStatus,
		"nested":         `{"id": "abc123", "runtimeStatus": "Running", "customStatus": ` + approvalStatus + `}`,
		"nested_snake":   `{"id": "abc123", "runtime_status": "Running", "custom_status": ` + approvalStatus + `}`,
		"encoded":        `{"id": "abc123", "runtimeStatus": "Running", "customStatus": ` + encodeString(t, approvalStatus) + `}`,
		"encoded_snake":  `{"id": "abc123", "custom_status": ` + encodeString(t, approvalStatus) + `}`,
		"nested_beats_s": `{"customStatus": ` + approvalStatus + `, "custom_status": {"step": "Started"}}`,
	}

	want, err := status.Normalize([]byte(approvalStatus))
	require.NoError(t, err)
	assert.Equal(t, models.WaitingForApprovalStep, want.Step)
	assert.Equal(t, 80, want.Progress)
	assert.Equal(t, "Lisbon", want.Destination)
	require.NotNil(t, want.TravelPlan)
	assert.Equal(t, "$1800", want.TravelPlan.Cost)
	require.Len(t, want.TravelPlan.DailyPlan, 1)
	assert.Equal(t, "Belem Tower", want.TravelPlan.DailyPlan[0].Activities[0].ActivityName)
	assert.Equal(t, 4.8, want.TravelPlan.Attractions[0].Rating)
	assert.Equal(t, "$$", want.TravelPlan.Restaurants[0].PriceRange)

	for name, payload := range shapes {
		t.Run(name, func(t *testing.T) {
			got, err := status.Normalize([]byte(payload))
			require.NoError(t, err)
			got.RuntimeStatus = ""
			assert.Equal(t, want, got)
		})
	}
}

func TestNormalize_Defaults(t *testing.T) {
	tests := []struct {
		name         string
		payload      string
		wantStep     models.Step
		wantProgress int
		wantMessage  string
	}{
		{
			name:         "Step only derives message and progress",
			payload:      `{"customStatus": {"step": "GettingDestinations"}}`,
			wantStep:     models.GettingDestinationsStep,
			wantProgress: 20,
			wantMessage:  models.GettingDestinationsStep.DefaultMessage(),
		},
		{
			name:         "Explicit progress and message win",
			payload:      `{"step": "CreatingItinerary", "message": "Creating itinerary for Rome...", "progress": 45}`,
			wantStep:     models.CreatingItineraryStep,
			wantProgress: 45,
			wantMessage:  "Creating itinerary for Rome...",
		},
		{
			name:         "Progress is clamped",
			payload:      `{"step": "BookingTrip", "progress": 140}`,
			wantStep:     models.BookingTripStep,
			wantProgress: 100,
			wantMessage:  models.BookingTripStep.DefaultMessage(),
		},
		{
			name:         "No custom status means started",
			payload:      `{"id": "abc123", "runtimeStatus": "Pending", "customStatus": null}`,
			wantStep:     models.StartedStep,
			wantProgress: 10,
			wantMessage:  models.StartedStep.DefaultMessage(),
		},
		{
			name:         "Unparseable encoded custom status means started",
			payload:      `{"customStatus": "not json"}`,
			wantStep:     models.StartedStep,
			wantProgress: 10,
			wantMessage:  models.StartedStep.DefaultMessage(),
		},
		{
			name:         "Step casing is ignored",
			payload:      `{"step": "waitingforapproval"}`,
			wantStep:     models.WaitingForApprovalStep,
			wantProgress: 80,
			wantMessage:  models.WaitingForApprovalStep.DefaultMessage(),
		},
		{
			name:         "Unknown step means started",
			payload:      `{"step": "Teleporting"}`,
			wantStep:     models.StartedStep,
			wantProgress: 10,
			wantMessage:  models.StartedStep.DefaultMessage(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap, err := status.Normalize([]byte(tt.payload))
			assert.NoError(t, err)
			assert.Equal(t, tt.wantStep, snap.Step)
			assert.Equal(t, tt.wantProgress, snap.Progress)
			assert.Equal(t, tt.wantMessage, snap.Message)
		})
	}
}

func TestNormalize_RuntimeStatusOverlay(t *testing.T) {
	tests := []struct {
		name        string
		payload     string
		wantStep    models.Step
		wantMessage string
	}{
		{
			name:     "Completed runtime completes an intermediate step",
			payload:  `{"runtimeStatus": "Completed", "customStatus": {"step": "WaitingForApproval"}, "output": {"BookingConfirmation": "Travel plan was not approved. Comments: too pricey"}}`,
			wantStep: models.CompletedStep,
		},
		{
			name:     "Prefixed enum name",
			payload:  `{"runtimeStatus": "OrchestrationStatus.COMPLETED", "customStatus": "{\"step\": \"BookingTrip\"}"}`,
			wantStep: models.CompletedStep,
		},
		{
			name:        "Completed with error output is an error",
			payload:     `{"runtimeStatus": "Completed", "customStatus": {"step": "GettingDestinations"}, "output": {"error": "No destinations found"}}`,
			wantStep:    models.ErrorStep,
			wantMessage: "No destinations found",
		},
		{
			name:     "Failed runtime",
			payload:  `{"runtimeStatus": "Failed", "customStatus": {"step": "CreatingItinerary"}}`,
			wantStep: models.FailedStep,
		},
		{
			name:     "Terminated runtime",
			payload:  `{"runtimeStatus": "TERMINATED"}`,
			wantStep: models.FailedStep,
		},
		{
			name:     "Custom error step is kept",
			payload:  `{"runtimeStatus": "Failed", "customStatus": {"step": "Error", "message": "agent timed out"}}`,
			wantStep: models.ErrorStep,
		},
		{
			name:     "Suspended without custom status waits for approval",
			payload:  `{"runtimeStatus": "Suspended"}`,
			wantStep: models.WaitingForApprovalStep,
		},
		{
			name:     "Rejected stays rejected",
			payload:  `{"runtimeStatus": "Completed", "customStatus": {"step": "Rejected"}}`,
			wantStep: models.RejectedStep,
		},
		{
			name:     "Numeric runtime status",
			payload:  `{"runtimeStatus": 3, "customStatus": {"step": "CreatingItinerary"}}`,
			wantStep: models.FailedStep,
		},
		{
			name:        "Flat completed with error in final plan",
			payload:     `{"id": "abc123", "step": "Completed", "progress": 100, "finalPlan": "{\"error\": \"boom\"}"}`,
			wantStep:    models.ErrorStep,
			wantMessage: "boom",
		},
		{
			name:     "Running leaves the step alone",
			payload:  `{"runtimeStatus": "Running", "customStatus": {"step": "CreatingItinerary"}}`,
			wantStep: models.CreatingItineraryStep,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap, err := status.Normalize([]byte(tt.payload))
			assert.NoError(t, err)
			assert.Equal(t, tt.wantStep, snap.Step)
			if tt.wantMessage != "" {
				assert.Equal(t, tt.wantMessage, snap.Message)
			} else {
				assert.NotEmpty(t, snap.Message)
			}
		})
	}
}

func TestNormalize_CompletedOutput(t *testing.T) {
	payload := `{
		"runtimeStatus": "Completed",
		"customStatus": {"step": "Completed", "destination": "Lisbon", "booking_id": "BK-42"},
		"output": "{\"BookingConfirmation\": \"Booking confirmed for your trip to Lisbon! Confirmation ID: BK-42\", \"DocumentUrl\": \"https://example.com/booking/abc123\", \"BookingResult\": {\"booking_id\": \"BK-42\"}}"
	}`
	snap, err := status.Normalize([]byte(payload))
	assert.NoError(t, err)
	assert.Equal(t, models.CompletedStep, snap.Step)
	assert.Equal(t, 100, snap.Progress)
	assert.Equal(t, "BK-42", snap.BookingID)
	assert.Equal(t, "https://example.com/booking/abc123", snap.DocumentURL)
	assert.Contains(t, snap.Confirmation, "Booking confirmed")
	assert.Equal(t, "Completed", snap.RuntimeStatus)
}

func TestNormalize_InvalidPayload(t *testing.T) {
	for _, payload := range []string{``, `not json`, `[1,2]`, `null`, `"string"`} {
		_, err := status.Normalize([]byte(payload))
		assert.Error(t, err, payload)
	}
}

func TestNormalize_FlatFinalPlan(t *testing.T) {
	payload := `{
		"id": "abc123",
		"step": "Completed",
		"message": "Processing your travel plan...",
		"progress": 100,
		"destination": "Lisbon",
		"finalPlan": "{\"BookingConfirmation\": \"Booking confirmed for your trip to Lisbon!\", \"DocumentUrl\": \"https://example.com/booking/abc123\", \"BookingResult\": {\"booking_id\": \"BK-7\"}}",
		"documentUrl": null,
		"travelPlan": null
	}`
	snap, err := status.Normalize([]byte(payload))
	require.NoError(t, err)
	assert.Equal(t, models.CompletedStep, snap.Step)
	assert.Equal(t, 100, snap.Progress)
	assert.Equal(t, "Booking confirmed for your trip to Lisbon!", snap.Confirmation)
	assert.Equal(t, "https://example.com/booking/abc123", snap.DocumentURL)
	assert.Equal(t, "BK-7", snap.BookingID)
	assert.Empty(t, snap.RuntimeStatus)

	t.Run("Output wins over final plan", func(t *testing.T) {
		snap, err := status.Normalize([]byte(`{"runtimeStatus": "Completed", "customStatus": {"step": "Completed"},
			"output": {"BookingConfirmation": "from output"}, "finalPlan": "{\"BookingConfirmation\": \"from final plan\"}"}`))
		require.NoError(t, err)
		assert.Equal(t, "from output", snap.Confirmation)
	})

	t.Run("Null output falls back to final plan", func(t *testing.T) {
		snap, err := status.Normalize([]byte(`{"step": "Completed", "output": null, "finalPlan": "{\"BookingConfirmation\": \"from final plan\"}"}`))
		require.NoError(t, err)
		assert.Equal(t, "from final plan", snap.Confirmation)
	})

	t.Run("Numeric runtime status is named", func(t *testing.T) {
		snap, err := status.Normalize([]byte(`{"runtimeStatus": 1, "customStatus": {"step": "BookingTrip"}}`))
		require.NoError(t, err)
		assert.Equal(t, "Completed", snap.RuntimeStatus)
		assert.Equal(t, models.CompletedStep, snap.Step)
	})
}
