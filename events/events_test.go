package events

import (
	"encoding/json"
	"testing"
	"time"
)

func TestNewEnvelopeStampsMeta(t *testing.T) {
	data := CallStarted{CallID: "call-1", TrunkID: "trunk-1", Direction: "outbound"}
	env := NewEnvelope(TypeCallStarted, "ACC_TEST00000001", data)

	if env.Meta.ID == "" {
		t.Error("expected generated event ID")
	}
	if env.Meta.Type != TypeCallStarted {
		t.Errorf("type = %q, want %q", env.Meta.Type, TypeCallStarted)
	}
	if env.Meta.AccountID != "ACC_TEST00000001" {
		t.Errorf("account id = %q", env.Meta.AccountID)
	}
	if env.Meta.Producer != Producer {
		t.Errorf("producer = %q, want %q", env.Meta.Producer, Producer)
	}
	if time.Since(env.Meta.Time) > time.Minute {
		t.Errorf("time not recent: %v", env.Meta.Time)
	}
}

func TestEnvelopeJSONShape(t *testing.T) {
	env := NewEnvelope(TypeTrunkStatusChanged, "ACC_TEST00000001", TrunkStatusChanged{
		TrunkID:   "trunk-1",
		OldStatus: "active",
		NewStatus: "error",
	})
	raw, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded map[string]json.RawMessage
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := decoded["meta"]; !ok {
		t.Error("missing meta field")
	}
	if _, ok := decoded["data"]; !ok {
		t.Error("missing data field")
	}

	var payload struct {
		Data TrunkStatusChanged `json:"data"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		t.Fatalf("unmarshal data: %v", err)
	}
	if payload.Data.NewStatus != "error" {
		t.Errorf("new_status = %q, want error", payload.Data.NewStatus)
	}
}
