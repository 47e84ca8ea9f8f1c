package repository

import (
	"context"
	"log/slog"
	"time"

	"github.com/airies-ai/backend/models"
	"gorm.io/gorm"
)

type CallRepository struct {
	db *gorm.DB
}

func NewCallRepository(db *gorm.DB) *CallRepository {
	return &CallRepository{db: db}
}

// CallFilter narrows call log listings. Zero values are ignored.
type CallFilter struct {
	TrunkID   string
	Status    string
	Direction string
	Limit     int
	Offset    int
}

func (r *CallRepository) CreateCallLog(ctx context.Context, log *models.CallLog) error {
	if err := r.db.WithContext(ctx).Create(log).Error; err != nil {
		slog.Error("Failed to create call log", "error", err)
		return err
	}
	slog.Info("Call log created", "call_id", log.CallID, "trunk_id", log.TrunkID, "direction", log.Direction)
	return nil
}

func (r *CallRepository) GetCallLogs(ctx context.Context, accountID string, filter CallFilter) ([]models.CallLog, error) {
	var logs []models.CallLog
	query := r.db.WithContext(ctx).Where("account_id = ?", accountID)
	if filter.TrunkID != "" {
		query = query.Where("trunk_id = ?", filter.TrunkID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Direction != "" {
		query = query.Where("direction = ?", filter.Direction)
	}
	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if err := query.Order("started_at DESC").Limit(limit).Offset(filter.Offset).Find(&logs).Error; err != nil {
		slog.Error("Failed to get call logs", "error", err, "account_id", accountID)
		return nil, err
	}
	return logs, nil
}

func (r *CallRepository) GetCallLogByCallID(ctx context.Context, callID, accountID string) (*models.CallLog, error) {
	var log models.CallLog
	err := r.db.WithContext(ctx).Where("call_id = ? AND account_id = ?", callID, accountID).First(&log).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		slog.Error("Failed to get call log", "error", err, "call_id", callID)
		return nil, err
	}
	return &log, nil
}

// GetCallLogByProviderCallID resolves webhook deliveries, which carry only
// the provider's call identifier.
func (r *CallRepository) GetCallLogByProviderCallID(ctx context.Context, providerCallID string) (*models.CallLog, error) {
	var log models.CallLog
	err := r.db.WithContext(ctx).Where("provider_call_id = ?", providerCallID).First(&log).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		slog.Error("Failed to get call log by provider call ID", "error", err, "provider_call_id", providerCallID)
		return nil, err
	}
	return &log, nil
}

func (r *CallRepository) UpdateCallLog(ctx context.Context, log *models.CallLog) error {
	if err := r.db.WithContext(ctx).Save(log).Error; err != nil {
		slog.Error("Failed to update call log", "error", err, "call_id", log.CallID)
		return err
	}
	slog.Info("Call log updated", "call_id", log.CallID, "status", log.Status)
	return nil
}

// CallAggregates summarizes call activity over a window.
type CallAggregates struct {
	TotalCalls           int64
	AnsweredCalls        int64
	CompletedCalls       int64
	FailedCalls          int64
	TotalDurationSeconds int64
	TotalCost            float64
	AvgDurationSeconds   float64
}

// AggregateForTrunk computes call statistics for one trunk between two times.
func (r *CallRepository) AggregateForTrunk(ctx context.Context, trunkID string, since, until time.Time) (*CallAggregates, error) {
	var agg CallAggregates
	err := r.db.WithContext(ctx).
		Model(&models.CallLog{}).
		Where("trunk_id = ? AND created_at >= ? AND created_at <= ?", trunkID, since, until).
		Select(
			"COUNT(*) AS total_calls, " +
				"COUNT(answered_at) AS answered_calls, " +
				"COUNT(*) FILTER (WHERE status = 'completed') AS completed_calls, " +
				"COUNT(*) FILTER (WHERE status = 'failed') AS failed_calls, " +
				"COALESCE(SUM(duration_seconds), 0) AS total_duration_seconds, " +
				"COALESCE(SUM(cost), 0) AS total_cost, " +
				"COALESCE(AVG(duration_seconds), 0) AS avg_duration_seconds").
		Scan(&agg).Error
	if err != nil {
		slog.Error("Failed to aggregate trunk calls", "error", err, "trunk_id", trunkID)
		return nil, err
	}
	return &agg, nil
}

// AggregateForAccount computes call statistics across all the account's
// trunks, for the dashboard.
func (r *CallRepository) AggregateForAccount(ctx context.Context, accountID string, since, until time.Time) (*CallAggregates, error) {
	var agg CallAggregates
	err := r.db.WithContext(ctx).
		Model(&models.CallLog{}).
		Where("account_id = ? AND created_at >= ? AND created_at <= ?", accountID, since, until).
		Select(
			"COUNT(*) AS total_calls, " +
				"COUNT(answered_at) AS answered_calls, " +
				"COUNT(*) FILTER (WHERE status = 'completed') AS completed_calls, " +
				"COUNT(*) FILTER (WHERE status = 'failed') AS failed_calls, " +
				"COALESCE(SUM(duration_seconds), 0) AS total_duration_seconds, " +
				"COALESCE(SUM(cost), 0) AS total_cost, " +
				"COALESCE(AVG(duration_seconds), 0) AS avg_duration_seconds").
		Scan(&agg).Error
	if err != nil {
		slog.Error("Failed to aggregate account calls", "error", err, "account_id", accountID)
		return nil, err
	}
	return &agg, nil
}

// RecentCalls returns the account's latest call logs for the dashboard.
func (r *CallRepository) RecentCalls(ctx context.Context, accountID string, limit int) ([]models.CallLog, error) {
	if limit <= 0 {
		limit = 10
	}
	var logs []models.CallLog
	if err := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("started_at DESC").
		Limit(limit).
		Find(&logs).Error; err != nil {
		slog.Error("Failed to get recent calls", "error", err, "account_id", accountID)
		return nil, err
	}
	return logs, nil
}
