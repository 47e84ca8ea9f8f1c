package services

import (
	"testing"
	"time"

	"github.com/airies-ai/backend/models"
)

func TestTrunkDue(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	checked := func(ago time.Duration) *time.Time {
		ts := now.Add(-ago)
		return &ts
	}

	tests := []struct {
		name  string
		trunk models.SipTrunk
		due   bool
	}{
		{
			name:  "never probed trunk is always due",
			trunk: models.SipTrunk{HealthCheckInterval: 300},
			due:   true,
		},
		{
			name:  "recently probed trunk is not due",
			trunk: models.SipTrunk{HealthCheckInterval: 300, LastHealthCheckAt: checked(30 * time.Second)},
			due:   false,
		},
		{
			name:  "interval elapsed",
			trunk: models.SipTrunk{HealthCheckInterval: 300, LastHealthCheckAt: checked(6 * time.Minute)},
			due:   true,
		},
		{
			name:  "exactly at the interval",
			trunk: models.SipTrunk{HealthCheckInterval: 300, LastHealthCheckAt: checked(5 * time.Minute)},
			due:   true,
		},
		{
			name:  "zero interval uses the five minute default",
			trunk: models.SipTrunk{LastHealthCheckAt: checked(4 * time.Minute)},
			due:   false,
		},
		{
			name:  "short custom interval",
			trunk: models.SipTrunk{HealthCheckInterval: 60, LastHealthCheckAt: checked(90 * time.Second)},
			due:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := trunkDue(&tt.trunk, now); got != tt.due {
				t.Errorf("trunkDue() = %v, expected %v", got, tt.due)
			}
		})
	}
}
