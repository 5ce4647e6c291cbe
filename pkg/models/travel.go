package models

import (
	"strings"

	"github.com/pkg/errors"
)

// DefaultDurationInDays is used when a request leaves the duration unset.
const DefaultDurationInDays = 3

// TravelRequest is the user's planning input. It is sent as-is to the backend.
type TravelRequest struct {
	UserName            string `json:"userName" yaml:"userName"`                       // Required
	Preferences         string `json:"preferences" yaml:"preferences"`                 // Required, free text
	DurationInDays      int    `json:"durationInDays" yaml:"durationInDays"`           // Days, >= 1
	Budget              string `json:"budget" yaml:"budget"`                           // Free text (e.g. "$3000")
	TravelDates         string `json:"travelDates" yaml:"travelDates"`                 // Free text (e.g. "July 1-11")
	SpecialRequirements string `json:"specialRequirements" yaml:"specialRequirements"` // Free text
}

// Validate checks the required fields and fills the default duration.
func (r *TravelRequest) Validate() error {
	if strings.TrimSpace(r.UserName) == "" {
		return errors.New("user name cannot be empty")
	}
	if strings.TrimSpace(r.Preferences) == "" {
		return errors.New("preferences cannot be empty")
	}
	if r.DurationInDays < 0 {
		return errors.Errorf("duration must be at least 1 day, got %d", r.DurationInDays)
	}
	if r.DurationInDays == 0 {
		r.DurationInDays = DefaultDurationInDays
	}
	return nil
}

// Activity is a single entry of a day plan.
type Activity struct {
	Time          string `json:"time"`
	ActivityName  string `json:"activityName"`
	Description   string `json:"description"`
	Location      string `json:"location"`
	EstimatedCost string `json:"estimatedCost"`
}

// DayPlan is one day of the itinerary.
type DayPlan struct {
	Day        int        `json:"day"`
	Date       string     `json:"date"`
	Activities []Activity `json:"activities"`
}

type Attraction struct {
	Name          string  `json:"name"`
	Category      string  `json:"category"`
	Description   string  `json:"description"`
	Location      string  `json:"location"`
	VisitDuration string  `json:"visitDuration"`
	EstimatedCost string  `json:"estimatedCost"`
	Rating        float64 `json:"rating"`
}

type Restaurant struct {
	Name        string  `json:"name"`
	Cuisine     string  `json:"cuisine"`
	Description string  `json:"description"`
	Location    string  `json:"location"`
	PriceRange  string  `json:"priceRange"`
	Rating      float64 `json:"rating"`
}

// TravelPlan is the reviewable plan published by the backend at the approval gate.
type TravelPlan struct {
	Dates       string       `json:"dates"`
	Cost        string       `json:"cost"`
	DailyPlan   []DayPlan    `json:"dailyPlan"`
	Attractions []Attraction `json:"attractions"`
	Restaurants []Restaurant `json:"restaurants"`
	InsiderTips string       `json:"insiderTips"`
}

// Empty reports whether the plan carries nothing worth reviewing.
func (p *TravelPlan) Empty() bool {
	return p == nil || (len(p.DailyPlan) == 0 && len(p.Attractions) == 0 &&
		len(p.Restaurants) == 0 && p.InsiderTips == "" && p.Dates == "" && p.Cost == "")
}
