package models

import "strings"

// Step is the orchestration-defined progress marker carried in the custom status.
type Step string

const (
	StartedStep                     Step = "Started"
	GettingDestinationsStep         Step = "GettingDestinations"
	CreatingItineraryStep           Step = "CreatingItinerary"
	GettingLocalRecommendationsStep Step = "GettingLocalRecommendations"
	WaitingForApprovalStep          Step = "WaitingForApproval"
	BookingTripStep                 Step = "BookingTrip"
	CompletedStep                   Step = "Completed"
	RejectedStep                    Step = "Rejected"
	FailedStep                      Step = "Failed"
	ErrorStep                       Step = "Error"
)

var stepDefaults = map[Step]struct {
	message  string
	progress int
}{
	StartedStep:                     {"Starting your travel plan...", 10},
	GettingDestinationsStep:         {"Finding perfect destinations for you...", 20},
	CreatingItineraryStep:           {"Creating your itinerary...", 40},
	GettingLocalRecommendationsStep: {"Getting local recommendations...", 60},
	WaitingForApprovalStep:          {"Your travel plan is ready! Please review and approve.", 80},
	BookingTripStep:                 {"Booking your trip...", 90},
	CompletedStep:                   {"Your trip has been booked!", 100},
	RejectedStep:                    {"Travel plan was not approved.", 100},
	FailedStep:                      {"Travel planning failed.", 0},
	ErrorStep:                       {"An error occurred during travel planning.", 0},
}

// ParseStep maps a wire value onto a known step, ignoring case.
// Unknown values yield false.
func ParseStep(s string) (Step, bool) {
	s = strings.TrimSpace(s)
	for step := range stepDefaults {
		if strings.EqualFold(string(step), s) {
			return step, true
		}
	}
	return "", false
}

// DefaultMessage is the progress text shown when the backend sends none.
func (s Step) DefaultMessage() string {
	return stepDefaults[s].message
}

// DefaultProgress is the progress percentage used when the backend sends none.
func (s Step) DefaultProgress() int {
	return stepDefaults[s].progress
}

// Failure reports whether the step means the workflow broke.
func (s Step) Failure() bool {
	return s == FailedStep || s == ErrorStep
}

// Terminal reports whether the remote workflow is finished.
func (s Step) Terminal() bool {
	return s == CompletedStep || s == RejectedStep || s.Failure()
}

// StatusSnapshot is the normalized view of one status poll.
type StatusSnapshot struct {
	Step          Step        `json:"step"`
	Message       string      `json:"message"`
	Progress      int         `json:"progress"`                // 0-100
	Destination   string      `json:"destination,omitempty"`   // Top destination, once chosen
	Itinerary     string      `json:"itinerary,omitempty"`     // Free-text itinerary, if the backend sends one
	TravelPlan    *TravelPlan `json:"travelPlan,omitempty"`    // Present at the approval gate
	DocumentURL   string      `json:"documentUrl,omitempty"`   // Booking document, once completed
	BookingID     string      `json:"bookingId,omitempty"`     // Booking reference, once completed
	Confirmation  string      `json:"confirmation,omitempty"`  // Final booking/rejection text from the output
	RuntimeStatus string      `json:"runtimeStatus,omitempty"` // Coarse engine status, verbatim
}
