package repository

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/airies-ai/backend/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type UsageRepository struct {
	db *gorm.DB
}

func NewUsageRepository(db *gorm.DB) *UsageRepository {
	return &UsageRepository{db: db}
}

// UsageFilter narrows usage log listings. Zero values are ignored.
type UsageFilter struct {
	UsageType string
	Since     time.Time
	Until     time.Time
	Limit     int
	Offset    int
}

// RecordUsage writes the usage log and charges the user in one
// transaction. The user row is locked so concurrent charges serialize;
// the balance may go negative, there is no hard cutoff.
func (r *UsageRepository) RecordUsage(ctx context.Context, userID string, usage *models.UsageLog) (int, error) {
	var balanceAfter int
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", userID).
			First(&user).Error; err != nil {
			return fmt.Errorf("failed to lock user for usage charge: %w", err)
		}

		if err := tx.Create(usage).Error; err != nil {
			return fmt.Errorf("failed to create usage log: %w", err)
		}

		before := user.Credits
		after := before - usage.CostCredits
		if err := tx.Model(&models.User{}).
			Where("id = ?", userID).
			Update("credits", after).Error; err != nil {
			return fmt.Errorf("failed to update credits: %w", err)
		}

		txn := &models.CreditTransaction{
			AccountID:       usage.AccountID,
			UserID:          userID,
			TransactionType: models.TransactionDeduction,
			Amount:          -usage.CostCredits,
			BalanceBefore:   before,
			BalanceAfter:    after,
			Description:     fmt.Sprintf("%s usage", usage.UsageType),
			ReferenceID:     usage.ReferenceID,
		}
		if err := tx.Create(txn).Error; err != nil {
			return fmt.Errorf("failed to create credit transaction: %w", err)
		}

		balanceAfter = after
		return nil
	})
	if err != nil {
		slog.Error("Failed to record usage", "error", err, "user_id", userID, "usage_type", usage.UsageType)
		return 0, err
	}
	slog.Info("Usage recorded",
		"account_id", usage.AccountID,
		"usage_type", usage.UsageType,
		"amount", usage.Amount,
		"cost_credits", usage.CostCredits,
		"balance_after", balanceAfter)
	return balanceAfter, nil
}

// AdjustCredits applies a topup or manual adjustment to the balance.
func (r *UsageRepository) AdjustCredits(ctx context.Context, userID, transactionType string, amount int, description string) (int, error) {
	var balanceAfter int
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", userID).
			First(&user).Error; err != nil {
			return fmt.Errorf("failed to lock user for credit adjustment: %w", err)
		}

		before := user.Credits
		after := before + amount
		if err := tx.Model(&models.User{}).
			Where("id = ?", userID).
			Update("credits", after).Error; err != nil {
			return fmt.Errorf("failed to update credits: %w", err)
		}

		txn := &models.CreditTransaction{
			AccountID:       user.AccountID,
			UserID:          userID,
			TransactionType: transactionType,
			Amount:          amount,
			BalanceBefore:   before,
			BalanceAfter:    after,
			Description:     description,
		}
		if err := tx.Create(txn).Error; err != nil {
			return fmt.Errorf("failed to create credit transaction: %w", err)
		}

		balanceAfter = after
		return nil
	})
	if err != nil {
		slog.Error("Failed to adjust credits", "error", err, "user_id", userID, "amount", amount)
		return 0, err
	}
	slog.Info("Credits adjusted", "user_id", userID, "amount", amount, "balance_after", balanceAfter)
	return balanceAfter, nil
}

func (r *UsageRepository) GetUsageLogs(ctx context.Context, accountID string, filter UsageFilter) ([]models.UsageLog, error) {
	var logs []models.UsageLog
	query := r.db.WithContext(ctx).Where("account_id = ?", accountID)
	if filter.UsageType != "" {
		query = query.Where("usage_type = ?", filter.UsageType)
	}
	if !filter.Since.IsZero() {
		query = query.Where("created_at >= ?", filter.Since)
	}
	if !filter.Until.IsZero() {
		query = query.Where("created_at <= ?", filter.Until)
	}
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if err := query.Order("created_at DESC").Limit(limit).Offset(filter.Offset).Find(&logs).Error; err != nil {
		slog.Error("Failed to get usage logs", "error", err, "account_id", accountID)
		return nil, err
	}
	return logs, nil
}

func (r *UsageRepository) GetCreditTransactions(ctx context.Context, accountID string, limit, offset int) ([]models.CreditTransaction, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var txns []models.CreditTransaction
	if err := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&txns).Error; err != nil {
		slog.Error("Failed to get credit transactions", "error", err, "account_id", accountID)
		return nil, err
	}
	return txns, nil
}

// Summarize aggregates the account's usage over the trailing period.
func (r *UsageRepository) Summarize(ctx context.Context, accountID string, periodDays int) (*models.UsageSummary, error) {
	if periodDays <= 0 {
		periodDays = 30
	}
	since := time.Now().UTC().AddDate(0, 0, -periodDays)

	summary := &models.UsageSummary{
		AccountID:  accountID,
		PeriodDays: periodDays,
	}

	type usageRow struct {
		TotalRecords     int64
		TotalCostCredits int64
	}
	var usage usageRow
	if err := r.db.WithContext(ctx).
		Model(&models.UsageLog{}).
		Where("account_id = ? AND created_at >= ?", accountID, since).
		Select("COUNT(*) AS total_records, COALESCE(SUM(cost_credits), 0) AS total_cost_credits").
		Scan(&usage).Error; err != nil {
		slog.Error("Failed to summarize usage logs", "error", err, "account_id", accountID)
		return nil, err
	}
	summary.TotalRecords = usage.TotalRecords
	summary.TotalCostCredits = usage.TotalCostCredits

	type typeRow struct {
		UsageType   string
		CostCredits int64
	}
	var byType []typeRow
	if err := r.db.WithContext(ctx).
		Model(&models.UsageLog{}).
		Where("account_id = ? AND created_at >= ?", accountID, since).
		Select("usage_type, COALESCE(SUM(cost_credits), 0) AS cost_credits").
		Group("usage_type").
		Scan(&byType).Error; err != nil {
		slog.Error("Failed to summarize usage by type", "error", err, "account_id", accountID)
		return nil, err
	}
	summary.ByUsageType = make(map[string]int64, len(byType))
	for _, row := range byType {
		summary.ByUsageType[row.UsageType] = row.CostCredits
	}

	type convRow struct {
		TotalConversations   int64
		TotalDurationSeconds int64
	}
	var conv convRow
	if err := r.db.WithContext(ctx).
		Model(&models.Conversation{}).
		Where("account_id = ? AND created_at >= ?", accountID, since).
		Select("COUNT(*) AS total_conversations, COALESCE(SUM(duration_seconds), 0) AS total_duration_seconds").
		Scan(&conv).Error; err != nil {
		slog.Error("Failed to summarize conversations", "error", err, "account_id", accountID)
		return nil, err
	}
	summary.TotalConversations = conv.TotalConversations
	summary.TotalDurationSeconds = conv.TotalDurationSeconds

	var user models.User
	if err := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		First(&user).Error; err != nil {
		if err != gorm.ErrRecordNotFound {
			slog.Error("Failed to load balance for summary", "error", err, "account_id", accountID)
			return nil, err
		}
	} else {
		summary.CreditsBalance = user.Credits
	}

	return summary, nil
}
