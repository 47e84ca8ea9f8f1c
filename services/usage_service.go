package services

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/airies-ai/backend/models"
	"github.com/airies-ai/backend/repository"
)

// Credit rates per unit of each usage type.
var usageRates = map[string]float64{
	models.UsageConversation: 1.0,
	models.UsageVoiceMinutes: 2.0,
	models.UsagePhoneMinutes: 3.0,
	models.UsageStorage:      0.1,
	models.UsageAPICall:      0.01,
}

var usageUnits = map[string]string{
	models.UsageConversation: "conversations",
	models.UsageVoiceMinutes: "minutes",
	models.UsagePhoneMinutes: "minutes",
	models.UsageStorage:      "mb",
	models.UsageAPICall:      "calls",
}

// CalculateCredits prices a usage amount in whole credits. Fractional
// costs round up; unknown usage types and non-positive amounts cost
// nothing.
func CalculateCredits(usageType string, amount float64) int {
	rate, ok := usageRates[usageType]
	if !ok || amount <= 0 {
		return 0
	}
	credits := int(math.Ceil(amount * rate))
	if credits < 0 {
		return 0
	}
	return credits
}

// UsageService meters platform usage and keeps the credit ledger.
type UsageService struct {
	repo *repository.UsageRepository
}

func NewUsageService(repo *repository.UsageRepository) *UsageService {
	return &UsageService{repo: repo}
}

// Record logs one unit of usage and deducts its credit cost from the
// account balance in the same transaction.
func (s *UsageService) Record(ctx context.Context, userID, accountID, usageType string, amount float64, referenceID *string, details models.JSONMap) (*models.UsageLog, error) {
	usage := &models.UsageLog{
		AccountID:   accountID,
		UserID:      userID,
		UsageType:   usageType,
		Amount:      amount,
		Unit:        usageUnits[usageType],
		RatePerUnit: usageRates[usageType],
		CostCredits: CalculateCredits(usageType, amount),
		ReferenceID: referenceID,
		Details:     details,
	}

	balance, err := s.repo.RecordUsage(ctx, userID, usage)
	if err != nil {
		return nil, err
	}

	slog.Info("Usage recorded",
		"account_id", accountID,
		"usage_type", usageType,
		"amount", amount,
		"cost_credits", usage.CostCredits,
		"balance", balance)
	return usage, nil
}

// Topup adds credits to the account.
func (s *UsageService) Topup(ctx context.Context, userID string, amount int, description string) (int, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("topup amount must be positive")
	}
	return s.repo.AdjustCredits(ctx, userID, models.TransactionTopup, amount, description)
}
