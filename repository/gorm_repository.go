package repository

import (
	"context"
	"log/slog"

	"github.com/airies-ai/backend/models"
	"gorm.io/gorm"
)

type GORMRepository struct {
	db *gorm.DB
}

func NewGORMRepository(db *gorm.DB) *GORMRepository {
	return &GORMRepository{db: db}
}

// DB exposes the underlying handle for repositories that share it.
func (r *GORMRepository) DB() *gorm.DB {
	return r.db
}

// AutoMigrate runs database migrations
func (r *GORMRepository) AutoMigrate() error {
	return r.db.AutoMigrate(
		&models.User{},
		&models.Agent{},
		&models.Conversation{},
		&models.ConversationMessage{},
		&models.KnowledgeBase{},
		&models.Document{},
		&models.SipTrunk{},
		&models.CallLog{},
		&models.UsageLog{},
		&models.CreditTransaction{},
	)
}

// User operations
func (r *GORMRepository) CreateUser(ctx context.Context, user *models.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		slog.Error("Failed to create user", "error", err)
		return err
	}
	slog.Info("User created", "user_id", user.ID, "account_id", user.AccountID, "email", user.Email)
	return nil
}

func (r *GORMRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		slog.Error("Failed to get user by email", "error", err, "email", email)
		return nil, err
	}
	return &user, nil
}

func (r *GORMRepository) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		slog.Error("Failed to get user by ID", "error", err, "user_id", id)
		return nil, err
	}
	return &user, nil
}

func (r *GORMRepository) GetUserByAccountID(ctx context.Context, accountID string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("account_id = ?", accountID).First(&user).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		slog.Error("Failed to get user by account ID", "error", err, "account_id", accountID)
		return nil, err
	}
	return &user, nil
}

// GetUserByAPIKeyHash looks up the owner of an API key by its SHA-256 hash.
func (r *GORMRepository) GetUserByAPIKeyHash(ctx context.Context, hash string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("api_key_hash = ?", hash).First(&user).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		slog.Error("Failed to get user by API key hash", "error", err)
		return nil, err
	}
	return &user, nil
}

func (r *GORMRepository) UpdateUser(ctx context.Context, user *models.User) error {
	if err := r.db.WithContext(ctx).Save(user).Error; err != nil {
		slog.Error("Failed to update user", "error", err, "user_id", user.ID)
		return err
	}
	slog.Info("User updated", "user_id", user.ID, "account_id", user.AccountID)
	return nil
}

func (r *GORMRepository) UpdateLastLogin(ctx context.Context, userID string) error {
	if err := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", userID).
		Update("last_login_at", gorm.Expr("NOW()")).Error; err != nil {
		slog.Error("Failed to update last login", "error", err, "user_id", userID)
		return err
	}
	return nil
}

// Agent operations
func (r *GORMRepository) CreateAgent(ctx context.Context, agent *models.Agent) error {
	if err := r.db.WithContext(ctx).Create(agent).Error; err != nil {
		slog.Error("Failed to create agent", "error", err)
		return err
	}
	slog.Info("Agent created", "agent_id", agent.ID, "account_id", agent.AccountID, "name", agent.Name)
	return nil
}

func (r *GORMRepository) GetAgents(ctx context.Context, accountID string, agentType, status string) ([]models.Agent, error) {
	var agents []models.Agent
	query := r.db.WithContext(ctx).Where("account_id = ?", accountID)
	if agentType != "" {
		query = query.Where("agent_type = ?", agentType)
	}
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if err := query.Order("created_at DESC").Find(&agents).Error; err != nil {
		slog.Error("Failed to get agents", "error", err, "account_id", accountID)
		return nil, err
	}
	return agents, nil
}

func (r *GORMRepository) GetAgentByID(ctx context.Context, agentID, accountID string) (*models.Agent, error) {
	var agent models.Agent
	err := r.db.WithContext(ctx).Where("id = ? AND account_id = ?", agentID, accountID).First(&agent).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		slog.Error("Failed to get agent by ID", "error", err, "agent_id", agentID, "account_id", accountID)
		return nil, err
	}
	return &agent, nil
}

func (r *GORMRepository) UpdateAgent(ctx context.Context, agent *models.Agent) error {
	if err := r.db.WithContext(ctx).Save(agent).Error; err != nil {
		slog.Error("Failed to update agent", "error", err, "agent_id", agent.ID)
		return err
	}
	slog.Info("Agent updated", "agent_id", agent.ID, "name", agent.Name)
	return nil
}

func (r *GORMRepository) DeleteAgent(ctx context.Context, agentID, accountID string) error {
	if err := r.db.WithContext(ctx).
		Where("id = ? AND account_id = ?", agentID, accountID).
		Delete(&models.Agent{}).Error; err != nil {
		slog.Error("Failed to delete agent", "error", err, "agent_id", agentID)
		return err
	}
	slog.Info("Agent deleted", "agent_id", agentID, "account_id", accountID)
	return nil
}

// TouchAgentUsage bumps the agent's conversation counter when a new
// conversation starts.
func (r *GORMRepository) TouchAgentUsage(ctx context.Context, agentID string) error {
	if err := r.db.WithContext(ctx).
		Model(&models.Agent{}).
		Where("id = ?", agentID).
		Updates(map[string]interface{}{
			"total_conversations": gorm.Expr("total_conversations + 1"),
			"last_used_at":        gorm.Expr("NOW()"),
		}).Error; err != nil {
		slog.Error("Failed to touch agent usage", "error", err, "agent_id", agentID)
		return err
	}
	return nil
}

// GetAgentByPhoneNumber finds the agent bound to a phone number, used to
// route inbound calls and to keep numbers unique per account.
func (r *GORMRepository) GetAgentByPhoneNumber(ctx context.Context, accountID, phoneNumber string) (*models.Agent, error) {
	var agent models.Agent
	err := r.db.WithContext(ctx).Where("account_id = ? AND phone_number = ?", accountID, phoneNumber).First(&agent).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		slog.Error("Failed to get agent by phone number", "error", err, "account_id", accountID)
		return nil, err
	}
	return &agent, nil
}

// AddAgentMinutes accumulates conversation minutes on the agent rollup
// when a conversation ends.
func (r *GORMRepository) AddAgentMinutes(ctx context.Context, agentID string, minutes float64) error {
	if err := r.db.WithContext(ctx).
		Model(&models.Agent{}).
		Where("id = ?", agentID).
		Update("total_minutes", gorm.Expr("total_minutes + ?", minutes)).Error; err != nil {
		slog.Error("Failed to add agent minutes", "error", err, "agent_id", agentID)
		return err
	}
	return nil
}

// Knowledge base operations
func (r *GORMRepository) CreateKnowledgeBase(ctx context.Context, kb *models.KnowledgeBase) error {
	if err := r.db.WithContext(ctx).Create(kb).Error; err != nil {
		slog.Error("Failed to create knowledge base", "error", err)
		return err
	}
	slog.Info("Knowledge base created", "knowledge_base_id", kb.ID, "account_id", kb.AccountID, "name", kb.Name)
	return nil
}

func (r *GORMRepository) GetKnowledgeBases(ctx context.Context, accountID string) ([]models.KnowledgeBase, error) {
	var bases []models.KnowledgeBase
	if err := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("created_at DESC").
		Find(&bases).Error; err != nil {
		slog.Error("Failed to get knowledge bases", "error", err, "account_id", accountID)
		return nil, err
	}
	return bases, nil
}

func (r *GORMRepository) GetKnowledgeBaseByID(ctx context.Context, kbID, accountID string) (*models.KnowledgeBase, error) {
	var kb models.KnowledgeBase
	err := r.db.WithContext(ctx).Where("id = ? AND account_id = ?", kbID, accountID).First(&kb).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		slog.Error("Failed to get knowledge base by ID", "error", err, "knowledge_base_id", kbID)
		return nil, err
	}
	return &kb, nil
}

func (r *GORMRepository) UpdateKnowledgeBase(ctx context.Context, kb *models.KnowledgeBase) error {
	if err := r.db.WithContext(ctx).Save(kb).Error; err != nil {
		slog.Error("Failed to update knowledge base", "error", err, "knowledge_base_id", kb.ID)
		return err
	}
	slog.Info("Knowledge base updated", "knowledge_base_id", kb.ID)
	return nil
}

func (r *GORMRepository) DeleteKnowledgeBase(ctx context.Context, kbID, accountID string) error {
	if err := r.db.WithContext(ctx).
		Where("knowledge_base_id = ?", kbID).
		Delete(&models.Document{}).Error; err != nil {
		slog.Error("Failed to delete knowledge base documents", "error", err, "knowledge_base_id", kbID)
		return err
	}
	if err := r.db.WithContext(ctx).
		Where("id = ? AND account_id = ?", kbID, accountID).
		Delete(&models.KnowledgeBase{}).Error; err != nil {
		slog.Error("Failed to delete knowledge base", "error", err, "knowledge_base_id", kbID)
		return err
	}
	slog.Info("Knowledge base deleted", "knowledge_base_id", kbID, "account_id", accountID)
	return nil
}

// Document operations
func (r *GORMRepository) CreateDocument(ctx context.Context, doc *models.Document) error {
	if err := r.db.WithContext(ctx).Create(doc).Error; err != nil {
		slog.Error("Failed to create document", "error", err)
		return err
	}
	if err := r.db.WithContext(ctx).
		Model(&models.KnowledgeBase{}).
		Where("id = ?", doc.KnowledgeBaseID).
		Update("document_count", gorm.Expr("document_count + 1")).Error; err != nil {
		slog.Error("Failed to bump document count", "error", err, "knowledge_base_id", doc.KnowledgeBaseID)
		return err
	}
	slog.Info("Document created", "document_id", doc.ID, "knowledge_base_id", doc.KnowledgeBaseID, "file_name", doc.FileName)
	return nil
}

func (r *GORMRepository) GetDocuments(ctx context.Context, kbID string) ([]models.Document, error) {
	var docs []models.Document
	if err := r.db.WithContext(ctx).
		Where("knowledge_base_id = ?", kbID).
		Order("created_at DESC").
		Find(&docs).Error; err != nil {
		slog.Error("Failed to get documents", "error", err, "knowledge_base_id", kbID)
		return nil, err
	}
	return docs, nil
}

func (r *GORMRepository) GetDocumentByID(ctx context.Context, docID, accountID string) (*models.Document, error) {
	var doc models.Document
	err := r.db.WithContext(ctx).Where("id = ? AND account_id = ?", docID, accountID).First(&doc).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		slog.Error("Failed to get document by ID", "error", err, "document_id", docID)
		return nil, err
	}
	return &doc, nil
}

func (r *GORMRepository) DeleteDocument(ctx context.Context, docID, accountID string) error {
	doc, err := r.GetDocumentByID(ctx, docID, accountID)
	if err != nil {
		return err
	}
	if doc == nil {
		return nil
	}
	if err := r.db.WithContext(ctx).
		Where("id = ?", docID).
		Delete(&models.Document{}).Error; err != nil {
		slog.Error("Failed to delete document", "error", err, "document_id", docID)
		return err
	}
	if err := r.db.WithContext(ctx).
		Model(&models.KnowledgeBase{}).
		Where("id = ? AND document_count > 0", doc.KnowledgeBaseID).
		Update("document_count", gorm.Expr("document_count - 1")).Error; err != nil {
		slog.Error("Failed to lower document count", "error", err, "knowledge_base_id", doc.KnowledgeBaseID)
		return err
	}
	slog.Info("Document deleted", "document_id", docID)
	return nil
}
