package models

import (
	"time"

	"gorm.io/gorm"
)

// Agent types
const (
	AgentTypeVoice = "voice"
	AgentTypeWeb   = "web"
	AgentTypePhone = "phone"
)

// Agent statuses
const (
	AgentStatusActive   = "active"
	AgentStatusPaused   = "paused"
	AgentStatusArchived = "archived"
)

// Agent represents a configured AI agent owned by an account
type Agent struct {
	ID          string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	AccountID   string `gorm:"size:32;not null;index" json:"account_id"`
	UserID      string `gorm:"type:uuid;not null;index" json:"user_id"`
	Name        string `gorm:"size:200;not null" json:"name"`
	Description string `gorm:"type:text" json:"description,omitempty"`
	AgentType   string `gorm:"size:20;not null;default:'web';check:agent_type IN ('voice', 'web', 'phone')" json:"agent_type"`
	Status      string `gorm:"size:20;not null;default:'active';check:status IN ('active', 'paused', 'archived')" json:"status"`

	// Behavior
	SystemPrompt   string `gorm:"type:text;not null" json:"system_prompt"`
	WelcomeMessage string `gorm:"type:text" json:"welcome_message,omitempty"`
	Language       string `gorm:"size:10;default:'en'" json:"language"`

	// Provider configuration, opaque to the backend
	VoiceConfig JSONMap `gorm:"type:jsonb" json:"voice_config,omitempty"`
	LLMConfig   JSONMap `gorm:"type:jsonb" json:"llm_config,omitempty"`

	// Telephony binding: the number this agent answers on, if any
	PhoneNumber *string `gorm:"size:20;index" json:"phone_number,omitempty"`

	// Statistics
	TotalConversations int        `gorm:"default:0" json:"total_conversations"`
	TotalMinutes       float64    `gorm:"default:0" json:"total_minutes"`
	AverageRating      *float64   `json:"average_rating,omitempty"`
	LastUsedAt         *time.Time `json:"last_used_at,omitempty"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	// Relationships
	User          User           `gorm:"foreignKey:UserID" json:"-"`
	Conversations []Conversation `gorm:"foreignKey:AgentID" json:"conversations,omitempty"`
}
