package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
)

// This file serves as the central export point for all database models
// Import this package to access all model types

// All models are automatically exported from their respective files:
// - User from user.go
// - Agent from agent.go
// - Conversation, ConversationMessage from conversation.go
// - KnowledgeBase, Document from knowledge.go
// - UsageLog, CreditTransaction from usage.go
// - SipTrunk, CallLog from sip_trunk.go

// Database schema overview:
// 1. users - Tenant owners; each user carries a unique account_id and an API key hash
// 2. agents - Voice/web agents configured per account
// 3. conversations - One record per agent conversation, with its ordered messages
// 4. knowledge_bases - Document collections registered for retrieval
// 5. usage_logs / credit_transactions - Metered usage and the credit ledger
// 6. sip_trunks - Telephony connections to providers, with health and capacity state
// 7. call_logs - One record per call placed or received over a trunk

// JSONMap is a JSON object column (jsonb in postgres).
type JSONMap map[string]any

func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

func (m *JSONMap) Scan(value any) error {
	if value == nil {
		*m = nil
		return nil
	}
	b, ok := value.([]byte)
	if !ok {
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("unsupported jsonb source type %T", value)
		}
		b = []byte(s)
	}
	return json.Unmarshal(b, m)
}

// StringList is a JSON array column of strings (jsonb in postgres).
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return nil, nil
	}
	return json.Marshal(l)
}

func (l *StringList) Scan(value any) error {
	if value == nil {
		*l = nil
		return nil
	}
	b, ok := value.([]byte)
	if !ok {
		s, ok := value.(string)
		if !ok {
			return errors.New("unsupported jsonb source type for string list")
		}
		b = []byte(s)
	}
	return json.Unmarshal(b, l)
}
