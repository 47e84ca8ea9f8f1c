// Package events defines the domain events the backend publishes to the
// message broker, and the publisher that delivers them.
package events

import (
	"time"

	"github.com/google/uuid"
)

// Routing keys. Consumers bind queues against these on the topic exchange.
const (
	TypeCallStarted        = "call.started"
	TypeCallEnded          = "call.ended"
	TypeTrunkStatusChanged = "trunk.status_changed"
)

// Producer identifies this service in event metadata.
const Producer = "airies-backend"

// Meta carries event identity and provenance.
type Meta struct {
	// Unique event ID
	ID string `json:"id"`
	// Event name, e.g. call.started
	Type string `json:"type"`
	// Owning tenant
	AccountID string `json:"account_id"`
	// Emitting service
	Producer string `json:"producer"`
	// Timestamp when the event was emitted
	Time time.Time `json:"time"`
}

type Envelope struct {
	Meta Meta `json:"meta"`
	Data any  `json:"data"`
}

// NewEnvelope stamps an envelope with a fresh ID and the current time.
func NewEnvelope(eventType, accountID string, data any) Envelope {
	return Envelope{
		Meta: Meta{
			ID:        uuid.NewString(),
			Type:      eventType,
			AccountID: accountID,
			Producer:  Producer,
			Time:      time.Now().UTC(),
		},
		Data: data,
	}
}

type CallStarted struct {
	CallID     string  `json:"call_id"`
	TrunkID    string  `json:"trunk_id"`
	AgentID    *string `json:"agent_id,omitempty"`
	Direction  string  `json:"direction"`
	FromNumber string  `json:"from_number"`
	ToNumber   string  `json:"to_number"`
	Provider   string  `json:"provider"`
}

type CallEnded struct {
	CallID          string  `json:"call_id"`
	TrunkID         string  `json:"trunk_id"`
	Status          string  `json:"status"`
	HangupCause     *string `json:"hangup_cause,omitempty"`
	DurationSeconds int     `json:"duration_seconds"`
	Cost            float64 `json:"cost"`
	CreditsUsed     int     `json:"credits_used"`
}

type TrunkStatusChanged struct {
	TrunkID             string `json:"trunk_id"`
	Name                string `json:"name"`
	Provider            string `json:"provider"`
	OldStatus           string `json:"old_status"`
	NewStatus           string `json:"new_status"`
	HealthStatus        string `json:"health_status"`
	ConsecutiveFailures int    `json:"consecutive_failures"`
}
