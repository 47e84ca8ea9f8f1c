package models

import (
	"time"

	"gorm.io/gorm"
)

// Conversation channels
const (
	ChannelWeb   = "web"
	ChannelVoice = "voice"
	ChannelPhone = "phone"
)

// Conversation statuses
const (
	ConversationActive    = "active"
	ConversationCompleted = "completed"
	ConversationAbandoned = "abandoned"
)

// Message roles
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Conversation records a single agent conversation across any channel
type Conversation struct {
	ID        string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	AccountID string `gorm:"size:32;not null;index" json:"account_id"`
	UserID    string `gorm:"type:uuid;not null;index" json:"user_id"`
	AgentID   string `gorm:"type:uuid;not null;index" json:"agent_id"`
	Channel   string `gorm:"size:20;not null;default:'web';check:channel IN ('web', 'voice', 'phone')" json:"channel"`
	Status    string `gorm:"size:20;not null;default:'active';check:status IN ('active', 'completed', 'abandoned')" json:"status"`

	// Phone-channel details
	CallerNumber *string `gorm:"size:20" json:"caller_number,omitempty"`
	CalleeNumber *string `gorm:"size:20" json:"callee_number,omitempty"`

	StartedAt       time.Time  `gorm:"not null" json:"started_at"`
	EndedAt         *time.Time `json:"ended_at,omitempty"`
	DurationSeconds int        `gorm:"default:0" json:"duration_seconds"`

	TotalMessages int `gorm:"default:0" json:"total_messages"`
	CreditsUsed   int `gorm:"default:0" json:"credits_used"`

	UserRating   *int    `gorm:"check:user_rating BETWEEN 1 AND 5" json:"user_rating,omitempty"`
	UserFeedback *string `gorm:"type:text" json:"user_feedback,omitempty"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	// Relationships
	User     User                  `gorm:"foreignKey:UserID" json:"-"`
	Agent    Agent                 `gorm:"foreignKey:AgentID" json:"agent,omitempty"`
	Messages []ConversationMessage `gorm:"foreignKey:ConversationID" json:"messages,omitempty"`
}

// IsEnded reports whether the conversation has reached a terminal status.
func (c *Conversation) IsEnded() bool {
	return c.Status == ConversationCompleted || c.Status == ConversationAbandoned
}

// ConversationMessage stores one ordered turn of a conversation
type ConversationMessage struct {
	ID             string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	ConversationID string `gorm:"type:uuid;not null;index" json:"conversation_id"`
	Role           string `gorm:"size:20;not null;check:role IN ('user', 'assistant', 'system')" json:"role"`
	Content        string `gorm:"type:text;not null" json:"content"`

	AudioDurationSeconds *float64 `json:"audio_duration_seconds,omitempty"`
	Credits              int      `gorm:"default:0" json:"credits"`

	CreatedAt time.Time `json:"created_at"`

	// Relationships
	Conversation Conversation `gorm:"foreignKey:ConversationID" json:"-"`
}

func (ConversationMessage) TableName() string {
	return "conversation_messages"
}
