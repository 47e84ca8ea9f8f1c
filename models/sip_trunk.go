package models

import (
	"time"

	"gorm.io/gorm"
)

// SIP trunk statuses
const (
	TrunkStatusActive      = "active"
	TrunkStatusInactive    = "inactive"
	TrunkStatusSuspended   = "suspended"
	TrunkStatusMaintenance = "maintenance"
	TrunkStatusError       = "error"
)

// SIP trunk providers
const (
	ProviderTwilio    = "twilio"
	ProviderTelnyx    = "telnyx"
	ProviderBandwidth = "bandwidth"
	ProviderVonage    = "vonage"
	ProviderCustom    = "custom"
)

// Call directions
const (
	DirectionInbound       = "inbound"
	DirectionOutbound      = "outbound"
	DirectionBidirectional = "bidirectional"
)

// Trunk health statuses
const (
	HealthHealthy   = "healthy"
	HealthUnhealthy = "unhealthy"
	HealthError     = "error"
	HealthUnknown   = "unknown"
)

// Call statuses
const (
	CallInitiated = "initiated"
	CallRinging   = "ringing"
	CallAnswered  = "answered"
	CallCompleted = "completed"
	CallFailed    = "failed"
	CallBusy      = "busy"
	CallNoAnswer  = "no_answer"
	CallCancelled = "cancelled"
)

// SipTrunk is a configured telephony connection to a voice provider
type SipTrunk struct {
	ID          string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	AccountID   string `gorm:"size:32;not null;index" json:"account_id"`
	UserID      string `gorm:"type:uuid;not null;index" json:"user_id"`
	Name        string `gorm:"size:100;not null" json:"name"`
	Description string `gorm:"type:text" json:"description,omitempty"`
	Provider    string `gorm:"size:20;not null;check:provider IN ('twilio', 'telnyx', 'bandwidth', 'vonage', 'custom')" json:"provider"`
	Status      string `gorm:"size:20;not null;default:'inactive';check:status IN ('active', 'inactive', 'suspended', 'maintenance', 'error')" json:"status"`

	// SIP configuration
	SipDomain   string `gorm:"size:255;not null" json:"sip_domain"`
	SipUsername string `gorm:"size:100;not null" json:"sip_username"`
	SipPassword string `gorm:"size:512;not null" json:"-"` // envelope-encrypted at rest
	SipProxy    string `gorm:"size:255" json:"sip_proxy,omitempty"`
	SipPort     int    `gorm:"default:5060" json:"sip_port"`
	Transport   string `gorm:"size:10;default:'udp';check:transport IN ('udp', 'tcp', 'tls')" json:"transport"`

	// Optional separate auth credentials
	AuthUsername string `gorm:"size:100" json:"auth_username,omitempty"`
	AuthPassword string `gorm:"size:512" json:"-"` // envelope-encrypted at rest

	// Routing
	Direction    string     `gorm:"size:20;not null;default:'bidirectional';check:direction IN ('inbound', 'outbound', 'bidirectional')" json:"direction"`
	PhoneNumbers StringList `gorm:"type:jsonb" json:"phone_numbers,omitempty"`

	// Capacity
	MaxConcurrentCalls int `gorm:"default:10" json:"max_concurrent_calls"`
	CurrentActiveCalls int `gorm:"default:0" json:"current_active_calls"`

	// Quality
	CodecPreferences StringList `gorm:"type:jsonb" json:"codec_preferences,omitempty"`
	DTMFMode         string     `gorm:"size:20;default:'rfc2833'" json:"dtmf_mode"`

	// Health monitoring
	HealthCheckEnabled  bool       `gorm:"default:true" json:"health_check_enabled"`
	HealthCheckInterval int        `gorm:"default:300" json:"health_check_interval_seconds"`
	LastHealthCheckAt   *time.Time `json:"last_health_check_at,omitempty"`
	HealthStatus        string     `gorm:"size:20;not null;default:'unknown'" json:"health_status"`
	ConsecutiveFailures int        `gorm:"default:0" json:"consecutive_failures"`
	LatencyMs           *float64   `json:"latency_ms,omitempty"`

	// Billing
	CostPerMinute float64 `gorm:"default:0.01" json:"cost_per_minute"`
	MonthlyCost   float64 `gorm:"default:0" json:"monthly_cost"`

	// Caller identity
	CallerIDName   string `gorm:"size:100" json:"caller_id_name,omitempty"`
	CallerIDNumber string `gorm:"size:20" json:"caller_id_number,omitempty"`

	// Failover: lower priority number = preferred trunk
	FailoverTrunkID *string `gorm:"type:uuid" json:"failover_trunk_id,omitempty"`
	Priority        int     `gorm:"default:1" json:"priority"`

	// Provider-specific extras (twilio account_sid/auth_token, telnyx connection_id, ...)
	AdvancedConfig JSONMap `gorm:"type:jsonb" json:"advanced_config,omitempty"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	// Relationships
	User          User      `gorm:"foreignKey:UserID" json:"-"`
	FailoverTrunk *SipTrunk `gorm:"foreignKey:FailoverTrunkID" json:"-"`
	CallLogs      []CallLog `gorm:"foreignKey:TrunkID" json:"-"`
}

// IsUsable reports whether the trunk is active and currently healthy.
func (t *SipTrunk) IsUsable() bool {
	return t.Status == TrunkStatusActive && t.HealthStatus == HealthHealthy
}

// CanHandleCall reports whether the trunk can carry one more call in the
// given direction.
func (t *SipTrunk) CanHandleCall(direction string) bool {
	if t.Status != TrunkStatusActive {
		return false
	}
	if t.Direction != DirectionBidirectional && t.Direction != direction {
		return false
	}
	return t.CurrentActiveCalls < t.MaxConcurrentCalls
}

// UtilizationPercent returns the current capacity utilization.
func (t *SipTrunk) UtilizationPercent() float64 {
	if t.MaxConcurrentCalls == 0 {
		return 0
	}
	return float64(t.CurrentActiveCalls) / float64(t.MaxConcurrentCalls) * 100
}

// CallLog records a single call placed or received over a SIP trunk
type CallLog struct {
	ID             string  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	AccountID      string  `gorm:"size:32;not null;index" json:"account_id"`
	UserID         string  `gorm:"type:uuid;not null;index" json:"user_id"`
	TrunkID        string  `gorm:"type:uuid;not null;index" json:"trunk_id"`
	ConversationID *string `gorm:"type:uuid;index" json:"conversation_id,omitempty"`
	AgentID        *string `gorm:"type:uuid;index" json:"agent_id,omitempty"`

	CallID     string `gorm:"size:100;uniqueIndex;not null" json:"call_id"` // platform-assigned id
	Direction  string `gorm:"size:20;not null;check:direction IN ('inbound', 'outbound')" json:"direction"`
	FromNumber string `gorm:"size:20;not null" json:"from_number"`
	ToNumber   string `gorm:"size:20;not null" json:"to_number"`

	Status      string  `gorm:"size:20;not null;default:'initiated'" json:"status"`
	HangupCause *string `gorm:"size:50" json:"hangup_cause,omitempty"`

	StartedAt       time.Time  `gorm:"not null" json:"started_at"`
	AnsweredAt      *time.Time `json:"answered_at,omitempty"`
	EndedAt         *time.Time `json:"ended_at,omitempty"`
	DurationSeconds int        `gorm:"default:0" json:"duration_seconds"`

	// Provider-side identifiers
	ProviderCallID *string `gorm:"size:255;index" json:"provider_call_id,omitempty"` // Twilio CallSid / Telnyx call_control_id
	CodecUsed      string  `gorm:"size:20" json:"codec_used,omitempty"`
	RemoteIP       string  `gorm:"size:45" json:"remote_ip,omitempty"`

	QualityScore *float64 `json:"quality_score,omitempty"` // 1-5

	Cost        float64 `gorm:"default:0" json:"cost"`
	Currency    string  `gorm:"size:3;default:'USD'" json:"currency"`
	CreditsUsed int     `gorm:"default:0" json:"credits_used"`

	Metadata JSONMap `gorm:"type:jsonb" json:"metadata,omitempty"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relationships
	User  User     `gorm:"foreignKey:UserID" json:"-"`
	Trunk SipTrunk `gorm:"foreignKey:TrunkID" json:"-"`
}

// IsCompleted reports whether the call has ended.
func (c *CallLog) IsCompleted() bool {
	return c.EndedAt != nil
}

// WasAnswered reports whether the call was ever answered.
func (c *CallLog) WasAnswered() bool {
	return c.AnsweredAt != nil
}

// IsTerminalStatus reports whether a call status is final.
func IsTerminalStatus(status string) bool {
	switch status {
	case CallCompleted, CallFailed, CallBusy, CallNoAnswer, CallCancelled:
		return true
	}
	return false
}

// CalculateDuration sets DurationSeconds from the answered and ended
// timestamps. Calls that were never answered have zero duration.
func (c *CallLog) CalculateDuration() int {
	if c.AnsweredAt != nil && c.EndedAt != nil {
		c.DurationSeconds = int(c.EndedAt.Sub(*c.AnsweredAt).Seconds())
		if c.DurationSeconds < 0 {
			c.DurationSeconds = 0
		}
		return c.DurationSeconds
	}
	c.DurationSeconds = 0
	return 0
}

// CalculateCost sets Cost from the call duration and a per-minute rate.
func (c *CallLog) CalculateCost(ratePerMinute float64) float64 {
	if c.DurationSeconds > 0 {
		c.Cost = float64(c.DurationSeconds) / 60.0 * ratePerMinute
		return c.Cost
	}
	c.Cost = 0
	return 0
}
