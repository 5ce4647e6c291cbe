package service

import (
	"fmt"
	"strings"

	"github.com/ignatij/tripflow/pkg/models"
)

func describeRequest(req models.TravelRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Plan a %d-day trip for %s. Preferences: %s.", req.DurationInDays, req.UserName, req.Preferences)
	if req.Budget != "" {
		fmt.Fprintf(&b, " Budget: %s.", req.Budget)
	}
	if req.TravelDates != "" {
		fmt.Fprintf(&b, " Dates: %s.", req.TravelDates)
	}
	if req.SpecialRequirements != "" {
		fmt.Fprintf(&b, " Special requirements: %s.", req.SpecialRequirements)
	}
	return b.String()
}

func describeDecision(d models.ApprovalDecision) string {
	msg := "I reject this travel plan."
	if d.Approved {
		msg = "I approve this travel plan."
	}
	if d.Comments != "" {
		msg += " Comments: " + d.Comments
	}
	return msg
}

// RenderPlan formats the plan surfaced at the approval gate.
func RenderPlan(snap models.StatusSnapshot) string {
	var b strings.Builder
	if snap.Destination != "" {
		fmt.Fprintf(&b, "Here is your travel plan for %s!\n", snap.Destination)
	} else {
		b.WriteString("Here is your travel plan!\n")
	}
	if snap.Itinerary != "" {
		fmt.Fprintf(&b, "\n%s\n", snap.Itinerary)
	}

	plan := snap.TravelPlan
	if !plan.Empty() {
		if plan.Dates != "" {
			fmt.Fprintf(&b, "Dates: %s\n", plan.Dates)
		}
		if plan.Cost != "" {
			fmt.Fprintf(&b, "Estimated cost: %s\n", plan.Cost)
		}
		for _, day := range plan.DailyPlan {
			fmt.Fprintf(&b, "\nDay %d", day.Day)
			if day.Date != "" {
				fmt.Fprintf(&b, " (%s)", day.Date)
			}
			b.WriteString(":\n")
			for _, a := range day.Activities {
				b.WriteString("  - ")
				if a.Time != "" {
					b.WriteString(a.Time + " ")
				}
				b.WriteString(a.ActivityName)
				if a.Location != "" {
					fmt.Fprintf(&b, " @ %s", a.Location)
				}
				if a.EstimatedCost != "" {
					fmt.Fprintf(&b, " [%s]", a.EstimatedCost)
				}
				if a.Description != "" {
					fmt.Fprintf(&b, ": %s", a.Description)
				}
				b.WriteString("\n")
			}
		}
		if len(plan.Attractions) > 0 {
			b.WriteString("\nAttractions:\n")
			for _, a := range plan.Attractions {
				fmt.Fprintf(&b, "  - %s", a.Name)
				if a.Category != "" {
					fmt.Fprintf(&b, " (%s)", a.Category)
				}
				if a.Rating > 0 {
					fmt.Fprintf(&b, " %.1f/5", a.Rating)
				}
				if a.Description != "" {
					fmt.Fprintf(&b, ": %s", a.Description)
				}
				b.WriteString("\n")
			}
		}
		if len(plan.Restaurants) > 0 {
			b.WriteString("\nRestaurants:\n")
			for _, r := range plan.Restaurants {
				fmt.Fprintf(&b, "  - %s", r.Name)
				details := make([]string, 0, 2)
				for _, d := range []string{r.Cuisine, r.PriceRange} {
					if d != "" {
						details = append(details, d)
					}
				}
				if len(details) > 0 {
					fmt.Fprintf(&b, " (%s)", strings.Join(details, ", "))
				}
				if r.Description != "" {
					fmt.Fprintf(&b, ": %s", r.Description)
				}
				b.WriteString("\n")
			}
		}
		if plan.InsiderTips != "" {
			fmt.Fprintf(&b, "\nInsider tips: %s\n", plan.InsiderTips)
		}
	}
	b.WriteString("\nPlease approve or reject this plan.")
	return b.String()
}

func completionMessage(snap models.StatusSnapshot) string {
	var b strings.Builder
	switch {
	case snap.Confirmation != "":
		b.WriteString(snap.Confirmation)
	case snap.Destination != "":
		fmt.Fprintf(&b, "Your trip to %s has been booked!", snap.Destination)
	default:
		b.WriteString(models.CompletedStep.DefaultMessage())
	}
	if snap.BookingID != "" && !strings.Contains(b.String(), snap.BookingID) {
		fmt.Fprintf(&b, " Booking ID: %s.", snap.BookingID)
	}
	if snap.DocumentURL != "" {
		fmt.Fprintf(&b, " Details: %s", snap.DocumentURL)
	}
	return b.String()
}

func rejectionMessage(snap models.StatusSnapshot) string {
	if snap.Confirmation != "" {
		return snap.Confirmation
	}
	return models.RejectedStep.DefaultMessage() + " Start a new plan whenever you like."
}

func failureMessage(snap models.StatusSnapshot) string {
	return fmt.Sprintf("Sorry, something went wrong while planning your trip: %s", snap.Message)
}
