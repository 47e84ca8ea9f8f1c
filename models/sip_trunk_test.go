package models

import (
	"testing"
	"time"
)

func TestCanHandleCall(t *testing.T) {
	tests := []struct {
		name      string
		trunk     SipTrunk
		direction string
		expected  bool
	}{
		{
			name: "active bidirectional trunk with capacity",
			trunk: SipTrunk{
				Status:             TrunkStatusActive,
				Direction:          DirectionBidirectional,
				MaxConcurrentCalls: 10,
				CurrentActiveCalls: 3,
			},
			direction: DirectionOutbound,
			expected:  true,
		},
		{
			name: "inactive trunk is never eligible",
			trunk: SipTrunk{
				Status:             TrunkStatusInactive,
				Direction:          DirectionBidirectional,
				MaxConcurrentCalls: 10,
			},
			direction: DirectionOutbound,
			expected:  false,
		},
		{
			name: "direction mismatch",
			trunk: SipTrunk{
				Status:             TrunkStatusActive,
				Direction:          DirectionInbound,
				MaxConcurrentCalls: 10,
			},
			direction: DirectionOutbound,
			expected:  false,
		},
		{
			name: "exact direction match",
			trunk: SipTrunk{
				Status:             TrunkStatusActive,
				Direction:          DirectionOutbound,
				MaxConcurrentCalls: 10,
			},
			direction: DirectionOutbound,
			expected:  true,
		},
		{
			name: "trunk at capacity",
			trunk: SipTrunk{
				Status:             TrunkStatusActive,
				Direction:          DirectionBidirectional,
				MaxConcurrentCalls: 5,
				CurrentActiveCalls: 5,
			},
			direction: DirectionInbound,
			expected:  false,
		},
		{
			name: "error status trunk",
			trunk: SipTrunk{
				Status:             TrunkStatusError,
				Direction:          DirectionBidirectional,
				MaxConcurrentCalls: 10,
			},
			direction: DirectionOutbound,
			expected:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.trunk.CanHandleCall(tt.direction); got != tt.expected {
				t.Errorf("CanHandleCall(%q) = %v, expected %v", tt.direction, got, tt.expected)
			}
		})
	}
}

func TestUtilizationPercent(t *testing.T) {
	tests := []struct {
		name     string
		max      int
		current  int
		expected float64
	}{
		{"half utilized", 10, 5, 50},
		{"empty trunk", 10, 0, 0},
		{"full trunk", 4, 4, 100},
		{"zero capacity", 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trunk := SipTrunk{MaxConcurrentCalls: tt.max, CurrentActiveCalls: tt.current}
			if got := trunk.UtilizationPercent(); got != tt.expected {
				t.Errorf("UtilizationPercent() = %v, expected %v", got, tt.expected)
			}
		})
	}
}

func TestCalculateDuration(t *testing.T) {
	answered := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	ended := answered.Add(150 * time.Second)

	call := CallLog{AnsweredAt: &answered, EndedAt: &ended}
	if got := call.CalculateDuration(); got != 150 {
		t.Errorf("CalculateDuration() = %d, expected 150", got)
	}
	if call.DurationSeconds != 150 {
		t.Errorf("DurationSeconds = %d, expected 150", call.DurationSeconds)
	}
}

func TestCalculateDurationUnanswered(t *testing.T) {
	ended := time.Now()
	call := CallLog{EndedAt: &ended}
	if got := call.CalculateDuration(); got != 0 {
		t.Errorf("CalculateDuration() for unanswered call = %d, expected 0", got)
	}
}

func TestCalculateCost(t *testing.T) {
	tests := []struct {
		name     string
		duration int
		rate     float64
		expected float64
	}{
		{"two minutes at one cent", 120, 0.01, 0.02},
		{"ninety seconds", 90, 0.02, 0.03},
		{"zero duration is free", 0, 0.05, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			call := CallLog{DurationSeconds: tt.duration}
			got := call.CalculateCost(tt.rate)
			if diff := got - tt.expected; diff > 1e-9 || diff < -1e-9 {
				t.Errorf("CalculateCost(%v) = %v, expected %v", tt.rate, got, tt.expected)
			}
		})
	}
}

func TestIsTerminalStatus(t *testing.T) {
	terminal := []string{CallCompleted, CallFailed, CallBusy, CallNoAnswer, CallCancelled}
	for _, s := range terminal {
		if !IsTerminalStatus(s) {
			t.Errorf("IsTerminalStatus(%q) = false, expected true", s)
		}
	}
	for _, s := range []string{CallInitiated, CallRinging, CallAnswered, ""} {
		if IsTerminalStatus(s) {
			t.Errorf("IsTerminalStatus(%q) = true, expected false", s)
		}
	}
}

func TestMaxTrunksForTier(t *testing.T) {
	tests := []struct {
		tier     string
		expected int
	}{
		{TierFree, 1},
		{TierPro, 5},
		{TierEnterprise, 50},
		{"unknown", 1},
	}

	for _, tt := range tests {
		if got := MaxTrunksForTier(tt.tier); got != tt.expected {
			t.Errorf("MaxTrunksForTier(%q) = %d, expected %d", tt.tier, got, tt.expected)
		}
	}
}
