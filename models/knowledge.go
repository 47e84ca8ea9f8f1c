package models

import (
	"time"

	"gorm.io/gorm"
)

// Knowledge base statuses
const (
	KnowledgeBaseActive     = "active"
	KnowledgeBaseProcessing = "processing"
	KnowledgeBaseError      = "error"
)

// Document processing statuses
const (
	DocumentPending    = "pending"
	DocumentProcessing = "processing"
	DocumentCompleted  = "completed"
	DocumentFailed     = "failed"
)

// KnowledgeBase is a named collection of documents registered for retrieval
type KnowledgeBase struct {
	ID          string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	AccountID   string `gorm:"size:32;not null;index" json:"account_id"`
	UserID      string `gorm:"type:uuid;not null;index" json:"user_id"`
	Name        string `gorm:"size:200;not null" json:"name"`
	Description string `gorm:"type:text" json:"description,omitempty"`
	Status      string `gorm:"size:20;not null;default:'active';check:status IN ('active', 'processing', 'error')" json:"status"`

	// Retrieval configuration, recorded but not interpreted here
	EmbeddingModel string `gorm:"size:100;default:'text-embedding-3-small'" json:"embedding_model"`
	ChunkSize      int    `gorm:"default:1000" json:"chunk_size"`
	ChunkOverlap   int    `gorm:"default:200" json:"chunk_overlap"`

	DocumentCount int `gorm:"default:0" json:"document_count"`
	TotalChunks   int `gorm:"default:0" json:"total_chunks"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	// Relationships
	Documents []Document `gorm:"foreignKey:KnowledgeBaseID" json:"documents,omitempty"`
}

// Document is a registered source file or URL within a knowledge base
type Document struct {
	ID              string  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	KnowledgeBaseID string  `gorm:"type:uuid;not null;index" json:"knowledge_base_id"`
	AccountID       string  `gorm:"size:32;not null;index" json:"account_id"`
	FileName        string  `gorm:"size:255;not null" json:"file_name"`
	FileType        string  `gorm:"size:50" json:"file_type,omitempty"`
	FileSizeBytes   int64   `gorm:"default:0" json:"file_size_bytes"`
	SourceURL       *string `gorm:"size:500" json:"source_url,omitempty"`
	Status          string  `gorm:"size:20;not null;default:'pending';check:status IN ('pending', 'processing', 'completed', 'failed')" json:"status"`
	ChunkCount      int     `gorm:"default:0" json:"chunk_count"`
	ErrorMessage    *string `gorm:"type:text" json:"error_message,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relationships
	KnowledgeBase KnowledgeBase `gorm:"foreignKey:KnowledgeBaseID" json:"-"`
}
