package services

import (
	"testing"

	"github.com/airies-ai/backend/models"
)

func TestCalculateCredits(t *testing.T) {
	tests := []struct {
		name      string
		usageType string
		amount    float64
		expected  int
	}{
		{"one conversation", models.UsageConversation, 1, 1},
		{"three conversations", models.UsageConversation, 3, 3},
		{"voice minutes", models.UsageVoiceMinutes, 2.5, 5},
		{"phone minutes round up", models.UsagePhoneMinutes, 1.5, 5},
		{"short phone call still charged", models.UsagePhoneMinutes, 0.1, 1},
		{"storage", models.UsageStorage, 100, 10},
		{"fractional storage rounds up", models.UsageStorage, 0.5, 1},
		{"api call", models.UsageAPICall, 1, 1},
		{"many api calls", models.UsageAPICall, 250, 3},
		{"unknown type is free", "media_transcode", 10, 0},
		{"zero amount", models.UsagePhoneMinutes, 0, 0},
		{"negative amount", models.UsagePhoneMinutes, -5, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CalculateCredits(tt.usageType, tt.amount); got != tt.expected {
				t.Errorf("CalculateCredits(%q, %v) = %d, expected %d", tt.usageType, tt.amount, got, tt.expected)
			}
		})
	}
}
