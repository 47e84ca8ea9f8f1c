package repository

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/airies-ai/backend/models"
	"gorm.io/gorm"
)

type ConversationRepository struct {
	db *gorm.DB
}

func NewConversationRepository(db *gorm.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

// ConversationFilter narrows listing queries. Zero values are ignored.
type ConversationFilter struct {
	AgentID string
	Channel string
	Status  string
	Limit   int
	Offset  int
}

func (r *ConversationRepository) CreateConversation(ctx context.Context, conv *models.Conversation) error {
	if err := r.db.WithContext(ctx).Create(conv).Error; err != nil {
		slog.Error("Failed to create conversation", "error", err)
		return fmt.Errorf("failed to create conversation: %w", err)
	}
	slog.Info("Conversation created", "conversation_id", conv.ID, "account_id", conv.AccountID, "channel", conv.Channel)
	return nil
}

func (r *ConversationRepository) GetConversations(ctx context.Context, accountID string, filter ConversationFilter) ([]models.Conversation, error) {
	var conversations []models.Conversation

	query := r.db.WithContext(ctx).Where("account_id = ?", accountID)
	if filter.AgentID != "" {
		query = query.Where("agent_id = ?", filter.AgentID)
	}
	if filter.Channel != "" {
		query = query.Where("channel = ?", filter.Channel)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	query = query.Order("started_at DESC").Limit(limit).Offset(filter.Offset)

	if err := query.Find(&conversations).Error; err != nil {
		slog.Error("Failed to get conversations", "error", err, "account_id", accountID)
		return nil, fmt.Errorf("failed to get conversations: %w", err)
	}
	return conversations, nil
}

func (r *ConversationRepository) GetConversationByID(ctx context.Context, conversationID, accountID string) (*models.Conversation, error) {
	var conv models.Conversation
	err := r.db.WithContext(ctx).
		Where("id = ? AND account_id = ?", conversationID, accountID).
		First(&conv).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		slog.Error("Failed to get conversation", "error", err, "conversation_id", conversationID)
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	return &conv, nil
}

func (r *ConversationRepository) UpdateConversation(ctx context.Context, conv *models.Conversation) error {
	if err := r.db.WithContext(ctx).Save(conv).Error; err != nil {
		slog.Error("Failed to update conversation", "error", err, "conversation_id", conv.ID)
		return fmt.Errorf("failed to update conversation: %w", err)
	}
	slog.Info("Conversation updated", "conversation_id", conv.ID, "status", conv.Status)
	return nil
}

// EndConversation closes an active conversation and records its duration.
// Already-ended conversations are left untouched.
func (r *ConversationRepository) EndConversation(ctx context.Context, conversationID, accountID, status string) (*models.Conversation, error) {
	conv, err := r.GetConversationByID(ctx, conversationID, accountID)
	if err != nil || conv == nil {
		return conv, err
	}
	if conv.IsEnded() {
		return conv, nil
	}

	now := time.Now().UTC()
	conv.Status = status
	conv.EndedAt = &now
	conv.DurationSeconds = int(now.Sub(conv.StartedAt).Seconds())
	if conv.DurationSeconds < 0 {
		conv.DurationSeconds = 0
	}
	if err := r.UpdateConversation(ctx, conv); err != nil {
		return nil, err
	}
	return conv, nil
}

func (r *ConversationRepository) DeleteConversation(ctx context.Context, conversationID, accountID string) error {
	conv, err := r.GetConversationByID(ctx, conversationID, accountID)
	if err != nil {
		return err
	}
	if conv == nil {
		return nil
	}
	if err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Delete(&models.ConversationMessage{}).Error; err != nil {
		slog.Error("Failed to delete conversation messages", "error", err, "conversation_id", conversationID)
		return fmt.Errorf("failed to delete conversation messages: %w", err)
	}
	if err := r.db.WithContext(ctx).
		Where("id = ?", conversationID).
		Delete(&models.Conversation{}).Error; err != nil {
		slog.Error("Failed to delete conversation", "error", err, "conversation_id", conversationID)
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	slog.Info("Conversation deleted", "conversation_id", conversationID, "account_id", accountID)
	return nil
}

// AddMessage appends a message and bumps the conversation rollup counters.
func (r *ConversationRepository) AddMessage(ctx context.Context, message *models.ConversationMessage) error {
	if err := r.db.WithContext(ctx).Create(message).Error; err != nil {
		slog.Error("Failed to save message", "error", err, "conversation_id", message.ConversationID)
		return fmt.Errorf("failed to save message: %w", err)
	}

	if err := r.db.WithContext(ctx).
		Model(&models.Conversation{}).
		Where("id = ?", message.ConversationID).
		Updates(map[string]interface{}{
			"total_messages": gorm.Expr("total_messages + 1"),
			"credits_used":   gorm.Expr("credits_used + ?", message.Credits),
		}).Error; err != nil {
		slog.Error("Failed to bump conversation counters", "error", err, "conversation_id", message.ConversationID)
		return fmt.Errorf("failed to bump conversation counters: %w", err)
	}

	slog.Info("Message saved", "message_id", message.ID, "conversation_id", message.ConversationID, "role", message.Role)
	return nil
}

func (r *ConversationRepository) GetMessages(ctx context.Context, conversationID string, limit int) ([]models.ConversationMessage, error) {
	var messages []models.ConversationMessage

	query := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	if err := query.Find(&messages).Error; err != nil {
		slog.Error("Failed to get messages", "error", err, "conversation_id", conversationID)
		return nil, fmt.Errorf("failed to get messages: %w", err)
	}
	return messages, nil
}

// RefreshAgentRating recomputes the agent's average rating from its
// rated conversations.
func (r *ConversationRepository) RefreshAgentRating(ctx context.Context, agentID string) error {
	if err := r.db.WithContext(ctx).Exec(
		"UPDATE agents SET average_rating = (SELECT AVG(user_rating) FROM conversations WHERE agent_id = ? AND user_rating IS NOT NULL AND deleted_at IS NULL) WHERE id = ?",
		agentID, agentID).Error; err != nil {
		slog.Error("Failed to refresh agent rating", "error", err, "agent_id", agentID)
		return fmt.Errorf("failed to refresh agent rating: %w", err)
	}
	return nil
}

// CountActiveConversations reports how many conversations the account has
// open right now. Used for tier concurrency checks.
func (r *ConversationRepository) CountActiveConversations(ctx context.Context, accountID string) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.Conversation{}).
		Where("account_id = ? AND status = ?", accountID, models.ConversationActive).
		Count(&count).Error; err != nil {
		slog.Error("Failed to count active conversations", "error", err, "account_id", accountID)
		return 0, fmt.Errorf("failed to count active conversations: %w", err)
	}
	return count, nil
}
