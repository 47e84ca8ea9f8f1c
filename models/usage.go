package models

import (
	"time"
)

// Usage types
const (
	UsageConversation = "conversation"
	UsageVoiceMinutes = "voice_minutes"
	UsagePhoneMinutes = "phone_minutes"
	UsageStorage      = "storage"
	UsageAPICall      = "api_call"
)

// Credit transaction types
const (
	TransactionDeduction  = "deduction"
	TransactionTopup      = "topup"
	TransactionAdjustment = "adjustment"
)

// UsageLog records one metered unit of platform usage
type UsageLog struct {
	ID        string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	AccountID string `gorm:"size:32;not null;index" json:"account_id"`
	UserID    string `gorm:"type:uuid;not null;index" json:"user_id"`

	UsageType   string  `gorm:"size:50;not null;index" json:"usage_type"`
	Amount      float64 `gorm:"not null" json:"amount"`
	Unit        string  `gorm:"size:20;not null" json:"unit"` // minutes, mb, calls, conversations
	RatePerUnit float64 `gorm:"not null" json:"rate_per_unit"`
	CostCredits int     `gorm:"not null" json:"cost_credits"`

	ReferenceID *string `gorm:"size:100;index" json:"reference_id,omitempty"` // conversation or call log id
	Details     JSONMap `gorm:"type:jsonb" json:"details,omitempty"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

// CreditTransaction records one movement on the account credit ledger
type CreditTransaction struct {
	ID        string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	AccountID string `gorm:"size:32;not null;index" json:"account_id"`
	UserID    string `gorm:"type:uuid;not null;index" json:"user_id"`

	TransactionType string `gorm:"size:20;not null;check:transaction_type IN ('deduction', 'topup', 'adjustment')" json:"transaction_type"`
	Amount          int    `gorm:"not null" json:"amount"` // positive for credits added, negative for usage
	BalanceBefore   int    `gorm:"not null" json:"balance_before"`
	BalanceAfter    int    `gorm:"not null" json:"balance_after"`

	Description string  `gorm:"type:text" json:"description,omitempty"`
	ReferenceID *string `gorm:"size:100" json:"reference_id,omitempty"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

// UsageSummary is an aggregated view over usage_logs and conversations
type UsageSummary struct {
	AccountID            string           `json:"account_id"`
	PeriodDays           int              `json:"period_days"`
	TotalRecords         int64            `json:"total_records"`
	TotalCostCredits     int64            `json:"total_cost_credits"`
	TotalConversations   int64            `json:"total_conversations"`
	TotalDurationSeconds int64            `json:"total_duration_seconds"`
	CreditsBalance       int              `json:"credits_balance"`
	ByUsageType          map[string]int64 `json:"by_usage_type"`
}
