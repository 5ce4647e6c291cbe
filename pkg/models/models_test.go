package models_test

import (
	"testing"

	"github.com/ignatij/tripflow/pkg/models"
	"github.com/stretchr/testify/assert"
)

func TestTravelRequest_Validate(t *testing.T) {
	tests := []struct {
		name     string
		req      models.TravelRequest
		wantErr  bool
		wantDays int
	}{
		{"Valid", models.TravelRequest{UserName: "Ana", Preferences: "beach", DurationInDays: 7}, false, 7},
		{"Zero duration defaults", models.TravelRequest{UserName: "Ana", Preferences: "beach"}, false, models.DefaultDurationInDays},
		{"Missing name", models.TravelRequest{Preferences: "beach"}, true, 0},
		{"Blank preferences", models.TravelRequest{UserName: "Ana", Preferences: "   "}, true, 0},
		{"Negative duration", models.TravelRequest{UserName: "Ana", Preferences: "beach", DurationInDays: -2}, true, -2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.wantDays, tt.req.DurationInDays)
		})
	}
}

func TestParseStep(t *testing.T) {
	step, ok := models.ParseStep(" bookingtrip ")
	assert.True(t, ok)
	assert.Equal(t, models.BookingTripStep, step)

	_, ok = models.ParseStep("")
	assert.False(t, ok)

	assert.True(t, models.RejectedStep.Terminal())
	assert.True(t, models.ErrorStep.Failure())
	assert.False(t, models.WaitingForApprovalStep.Terminal())
	assert.Equal(t, 100, models.CompletedStep.DefaultProgress())
	assert.Equal(t, 0, models.FailedStep.DefaultProgress())
}

func TestTravelPlan_Empty(t *testing.T) {
	var plan *models.TravelPlan
	assert.True(t, plan.Empty())
	assert.True(t, (&models.TravelPlan{}).Empty())
	assert.False(t, (&models.TravelPlan{Cost: "$100"}).Empty())
}
