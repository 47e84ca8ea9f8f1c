package services

import (
	"testing"
	"time"

	"github.com/airies-ai/backend/models"
)

func TestMapTwilioStatus(t *testing.T) {
	tests := []struct {
		twilio   string
		expected string
		known    bool
	}{
		{"queued", models.CallInitiated, true},
		{"initiated", models.CallInitiated, true},
		{"ringing", models.CallRinging, true},
		{"in-progress", models.CallAnswered, true},
		{"completed", models.CallCompleted, true},
		{"busy", models.CallBusy, true},
		{"no-answer", models.CallNoAnswer, true},
		{"failed", models.CallFailed, true},
		{"canceled", models.CallCancelled, true},
		{"something-new", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		got, known := MapTwilioStatus(tt.twilio)
		if got != tt.expected || known != tt.known {
			t.Errorf("MapTwilioStatus(%q) = (%q, %v), expected (%q, %v)", tt.twilio, got, known, tt.expected, tt.known)
		}
	}
}

func TestMapTelnyxEvent(t *testing.T) {
	tests := []struct {
		event    string
		expected string
		known    bool
	}{
		{"call.initiated", models.CallInitiated, true},
		{"call.answered", models.CallAnswered, true},
		{"call.hangup", models.CallCompleted, true},
		{"call.recording.saved", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		got, known := MapTelnyxEvent(tt.event)
		if got != tt.expected || known != tt.known {
			t.Errorf("MapTelnyxEvent(%q) = (%q, %v), expected (%q, %v)", tt.event, got, known, tt.expected, tt.known)
		}
	}
}

func TestPinCandidates(t *testing.T) {
	candidates := []models.SipTrunk{
		{ID: "trunk-a", Priority: 1},
		{ID: "trunk-b", Priority: 2},
		{ID: "trunk-c", Priority: 3},
	}

	pinned := pinCandidates(candidates, "trunk-b")
	if len(pinned) != 1 || pinned[0].ID != "trunk-b" {
		t.Errorf("pinCandidates() = %v, expected only trunk-b", pinned)
	}

	if pinned := pinCandidates(candidates, "trunk-x"); pinned != nil {
		t.Errorf("pinCandidates() for ineligible trunk = %v, expected nil", pinned)
	}
}

func TestApplyUpdateFieldsTerminalStatusStampsEndedAt(t *testing.T) {
	status := models.CallCompleted
	call := &models.CallLog{CallID: "call-1", Status: models.CallAnswered}

	ended := applyUpdateFields(call, CallUpdate{Status: &status})
	if !ended {
		t.Fatal("expected terminal status update to end the call")
	}
	if call.EndedAt == nil {
		t.Fatal("expected ended_at stamped for terminal status")
	}
	if time.Since(*call.EndedAt) > time.Minute {
		t.Errorf("ended_at not recent: %v", *call.EndedAt)
	}
}

func TestApplyUpdateFieldsNonTerminalLeavesCallOpen(t *testing.T) {
	status := models.CallRinging
	call := &models.CallLog{CallID: "call-1", Status: models.CallInitiated}

	if ended := applyUpdateFields(call, CallUpdate{Status: &status}); ended {
		t.Fatal("ringing update must not end the call")
	}
	if call.EndedAt != nil {
		t.Errorf("ended_at = %v, expected nil", *call.EndedAt)
	}
}

func TestApplyUpdateFieldsEndsOnlyOnce(t *testing.T) {
	status := models.CallCompleted
	past := time.Now().UTC().Add(-time.Hour)
	call := &models.CallLog{CallID: "call-1", Status: models.CallCompleted, EndedAt: &past}

	if ended := applyUpdateFields(call, CallUpdate{Status: &status}); ended {
		t.Fatal("already-ended call must not end again")
	}
	if !call.EndedAt.Equal(past) {
		t.Errorf("ended_at = %v, expected original %v", *call.EndedAt, past)
	}
}

func TestApplyUpdateFieldsExplicitEndedAtWins(t *testing.T) {
	status := models.CallFailed
	endedAt := time.Now().UTC().Add(-30 * time.Second)
	call := &models.CallLog{CallID: "call-1", Status: models.CallAnswered}

	if ended := applyUpdateFields(call, CallUpdate{Status: &status, EndedAt: &endedAt}); !ended {
		t.Fatal("expected update to end the call")
	}
	if !call.EndedAt.Equal(endedAt) {
		t.Errorf("ended_at = %v, expected the provided %v", *call.EndedAt, endedAt)
	}
}

func TestPinCandidatesFollowsFailoverChain(t *testing.T) {
	failB := "trunk-b"
	failC := "trunk-c"
	candidates := []models.SipTrunk{
		{ID: "trunk-a", Priority: 1, FailoverTrunkID: &failB},
		{ID: "trunk-b", Priority: 2, FailoverTrunkID: &failC},
		{ID: "trunk-c", Priority: 3},
		{ID: "trunk-d", Priority: 4},
	}

	pinned := pinCandidates(candidates, "trunk-a")
	want := []string{"trunk-a", "trunk-b", "trunk-c"}
	if len(pinned) != len(want) {
		t.Fatalf("pinCandidates() returned %d trunks, expected %d", len(pinned), len(want))
	}
	for i, id := range want {
		if pinned[i].ID != id {
			t.Errorf("pinned[%d].ID = %q, expected %q", i, pinned[i].ID, id)
		}
	}
}

func TestPinCandidatesFailoverCycleStops(t *testing.T) {
	failA := "trunk-a"
	failB := "trunk-b"
	candidates := []models.SipTrunk{
		{ID: "trunk-a", Priority: 1, FailoverTrunkID: &failB},
		{ID: "trunk-b", Priority: 2, FailoverTrunkID: &failA},
	}

	pinned := pinCandidates(candidates, "trunk-a")
	if len(pinned) != 2 {
		t.Fatalf("pinCandidates() with a failover cycle returned %d trunks, expected 2", len(pinned))
	}
	if pinned[0].ID != "trunk-a" || pinned[1].ID != "trunk-b" {
		t.Errorf("pinned order = [%s %s], expected [trunk-a trunk-b]", pinned[0].ID, pinned[1].ID)
	}
}

func TestPinCandidatesIneligibleFailoverStopsChain(t *testing.T) {
	failX := "trunk-x"
	candidates := []models.SipTrunk{
		{ID: "trunk-a", Priority: 1, FailoverTrunkID: &failX},
		{ID: "trunk-b", Priority: 2},
	}

	pinned := pinCandidates(candidates, "trunk-a")
	if len(pinned) != 1 || pinned[0].ID != "trunk-a" {
		t.Errorf("pinCandidates() = %v, expected only trunk-a", pinned)
	}
}
