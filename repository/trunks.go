package repository

import (
	"context"
	"log/slog"
	"time"

	"github.com/airies-ai/backend/models"
	"gorm.io/gorm"
)

type TrunkRepository struct {
	db *gorm.DB
}

func NewTrunkRepository(db *gorm.DB) *TrunkRepository {
	return &TrunkRepository{db: db}
}

func (r *TrunkRepository) CreateTrunk(ctx context.Context, trunk *models.SipTrunk) error {
	if err := r.db.WithContext(ctx).Create(trunk).Error; err != nil {
		slog.Error("Failed to create trunk", "error", err)
		return err
	}
	slog.Info("Trunk created", "trunk_id", trunk.ID, "account_id", trunk.AccountID, "provider", trunk.Provider)
	return nil
}

func (r *TrunkRepository) CountTrunks(ctx context.Context, accountID string) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.SipTrunk{}).
		Where("account_id = ?", accountID).
		Count(&count).Error; err != nil {
		slog.Error("Failed to count trunks", "error", err, "account_id", accountID)
		return 0, err
	}
	return count, nil
}

func (r *TrunkRepository) GetTrunks(ctx context.Context, accountID string) ([]models.SipTrunk, error) {
	var trunks []models.SipTrunk
	if err := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("priority ASC, created_at ASC").
		Find(&trunks).Error; err != nil {
		slog.Error("Failed to get trunks", "error", err, "account_id", accountID)
		return nil, err
	}
	return trunks, nil
}

func (r *TrunkRepository) GetTrunkByID(ctx context.Context, trunkID, accountID string) (*models.SipTrunk, error) {
	var trunk models.SipTrunk
	err := r.db.WithContext(ctx).Where("id = ? AND account_id = ?", trunkID, accountID).First(&trunk).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		slog.Error("Failed to get trunk by ID", "error", err, "trunk_id", trunkID, "account_id", accountID)
		return nil, err
	}
	return &trunk, nil
}

func (r *TrunkRepository) UpdateTrunk(ctx context.Context, trunk *models.SipTrunk) error {
	if err := r.db.WithContext(ctx).Save(trunk).Error; err != nil {
		slog.Error("Failed to update trunk", "error", err, "trunk_id", trunk.ID)
		return err
	}
	slog.Info("Trunk updated", "trunk_id", trunk.ID, "status", trunk.Status)
	return nil
}

// DeleteTrunk deactivates and soft-deletes a trunk.
func (r *TrunkRepository) DeleteTrunk(ctx context.Context, trunkID, accountID string) error {
	if err := r.db.WithContext(ctx).
		Model(&models.SipTrunk{}).
		Where("id = ? AND account_id = ?", trunkID, accountID).
		Update("status", models.TrunkStatusInactive).Error; err != nil {
		slog.Error("Failed to deactivate trunk", "error", err, "trunk_id", trunkID)
		return err
	}
	if err := r.db.WithContext(ctx).
		Where("id = ? AND account_id = ?", trunkID, accountID).
		Delete(&models.SipTrunk{}).Error; err != nil {
		slog.Error("Failed to delete trunk", "error", err, "trunk_id", trunkID)
		return err
	}
	slog.Info("Trunk deleted", "trunk_id", trunkID, "account_id", accountID)
	return nil
}

// SelectCandidates returns the account's trunks that can carry a call in
// the given direction, cheapest first: lowest priority number wins, then
// the least loaded trunk.
func (r *TrunkRepository) SelectCandidates(ctx context.Context, accountID, direction string) ([]models.SipTrunk, error) {
	var trunks []models.SipTrunk
	if err := r.db.WithContext(ctx).
		Where("account_id = ? AND status = ?", accountID, models.TrunkStatusActive).
		Where("direction = ? OR direction = ?", models.DirectionBidirectional, direction).
		Where("current_active_calls < max_concurrent_calls").
		Order("priority ASC, current_active_calls ASC").
		Find(&trunks).Error; err != nil {
		slog.Error("Failed to select trunk candidates", "error", err, "account_id", accountID, "direction", direction)
		return nil, err
	}
	return trunks, nil
}

// IncrementActiveCalls reserves a call slot. Returns false when the trunk
// is already at capacity; the guard and the increment are a single UPDATE
// so concurrent calls cannot oversubscribe the trunk.
func (r *TrunkRepository) IncrementActiveCalls(ctx context.Context, trunkID string) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.SipTrunk{}).
		Where("id = ? AND current_active_calls < max_concurrent_calls", trunkID).
		Update("current_active_calls", gorm.Expr("current_active_calls + 1"))
	if result.Error != nil {
		slog.Error("Failed to increment active calls", "error", result.Error, "trunk_id", trunkID)
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// DecrementActiveCalls releases a call slot, never dropping below zero.
func (r *TrunkRepository) DecrementActiveCalls(ctx context.Context, trunkID string) error {
	if err := r.db.WithContext(ctx).
		Model(&models.SipTrunk{}).
		Where("id = ? AND current_active_calls > 0", trunkID).
		Update("current_active_calls", gorm.Expr("current_active_calls - 1")).Error; err != nil {
		slog.Error("Failed to decrement active calls", "error", err, "trunk_id", trunkID)
		return err
	}
	return nil
}

// SumActiveCalls totals in-flight calls across the account's trunks.
func (r *TrunkRepository) SumActiveCalls(ctx context.Context, accountID string) (int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).
		Model(&models.SipTrunk{}).
		Where("account_id = ?", accountID).
		Select("COALESCE(SUM(current_active_calls), 0)").
		Scan(&total).Error; err != nil {
		slog.Error("Failed to sum active calls", "error", err, "account_id", accountID)
		return 0, err
	}
	return total, nil
}

// ListHealthCheckCandidates returns every trunk whose health is monitored.
// The caller decides which are due against their per-trunk interval.
func (r *TrunkRepository) ListHealthCheckCandidates(ctx context.Context) ([]models.SipTrunk, error) {
	var trunks []models.SipTrunk
	if err := r.db.WithContext(ctx).
		Where("health_check_enabled = ?", true).
		Where("status IN ?", []string{models.TrunkStatusActive, models.TrunkStatusError}).
		Find(&trunks).Error; err != nil {
		slog.Error("Failed to list health check candidates", "error", err)
		return nil, err
	}
	return trunks, nil
}

// HealthState is the probe outcome written back after each check.
type HealthState struct {
	Status              string
	HealthStatus        string
	ConsecutiveFailures int
	LatencyMs           *float64
}

func (r *TrunkRepository) UpdateHealthState(ctx context.Context, trunkID string, state HealthState) error {
	updates := map[string]interface{}{
		"status":               state.Status,
		"health_status":        state.HealthStatus,
		"consecutive_failures": state.ConsecutiveFailures,
		"latency_ms":           state.LatencyMs,
		"last_health_check_at": time.Now().UTC(),
	}
	if err := r.db.WithContext(ctx).
		Model(&models.SipTrunk{}).
		Where("id = ?", trunkID).
		Updates(updates).Error; err != nil {
		slog.Error("Failed to update trunk health state", "error", err, "trunk_id", trunkID)
		return err
	}
	return nil
}

// CountByStatus groups the account's trunks by lifecycle status.
func (r *TrunkRepository) CountByStatus(ctx context.Context, accountID string) (map[string]int64, error) {
	type statusCount struct {
		Status string
		Count  int64
	}
	var rows []statusCount
	if err := r.db.WithContext(ctx).
		Model(&models.SipTrunk{}).
		Where("account_id = ?", accountID).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error; err != nil {
		slog.Error("Failed to count trunks by status", "error", err, "account_id", accountID)
		return nil, err
	}
	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

// CountHealthy reports trunks in service across all accounts, for metrics.
func (r *TrunkRepository) CountHealthy(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.SipTrunk{}).
		Where("status = ? AND health_status = ?", models.TrunkStatusActive, models.HealthHealthy).
		Count(&count).Error; err != nil {
		slog.Error("Failed to count healthy trunks", "error", err)
		return 0, err
	}
	return count, nil
}
