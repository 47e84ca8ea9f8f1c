package models

import (
	"time"

	"gorm.io/gorm"
)

// Subscription tiers
const (
	TierFree       = "free"
	TierPro        = "pro"
	TierEnterprise = "enterprise"
)

// DefaultCredits is the credit balance granted to every new account.
const DefaultCredits = 1000

type User struct {
	ID             string         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	AccountID      string         `gorm:"size:32;uniqueIndex;not null" json:"account_id"`
	Email          string         `gorm:"uniqueIndex;not null" json:"email"`
	HashedPassword string         `gorm:"size:255" json:"-"`
	FirstName      string         `gorm:"size:100" json:"first_name"`
	LastName       string         `gorm:"size:100" json:"last_name"`
	Company        string         `gorm:"size:200" json:"company,omitempty"`
	Phone          string         `gorm:"size:20" json:"phone,omitempty"`
	Tier           string         `gorm:"size:20;not null;default:'free';check:tier IN ('free', 'pro', 'enterprise')" json:"tier"`
	Credits        int            `gorm:"not null;default:1000" json:"credits"`
	APIKeyHash     string         `gorm:"size:64;uniqueIndex" json:"-"` // SHA-256 of the issued key
	APIKeyCreated  *time.Time     `json:"api_key_created_at,omitempty"`
	IsActive       bool           `gorm:"default:true" json:"is_active"`
	Timezone       string         `gorm:"size:50;default:'UTC'" json:"timezone"`
	Language       string         `gorm:"size:10;default:'en'" json:"language"`
	LastLoginAt    *time.Time     `json:"last_login_at,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`

	// Relationships
	Agents    []Agent    `gorm:"foreignKey:UserID" json:"agents,omitempty"`
	SipTrunks []SipTrunk `gorm:"foreignKey:UserID" json:"sip_trunks,omitempty"`
}

// MaxTrunksForTier returns the SIP trunk limit for a subscription tier.
func MaxTrunksForTier(tier string) int {
	switch tier {
	case TierPro:
		return 5
	case TierEnterprise:
		return 50
	default:
		return 1
	}
}

// MaxConcurrentCallsForTier returns the account-wide concurrent call limit.
func MaxConcurrentCallsForTier(tier string) int {
	switch tier {
	case TierPro:
		return 10
	case TierEnterprise:
		return 50
	default:
		return 2
	}
}
