package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/airies-ai/backend/models"
	"github.com/airies-ai/backend/repository"
	"golang.org/x/crypto/bcrypt"
)

const demoEmail = "demo@airies.ai"

// DatabaseSeeder handles database seeding operations
type DatabaseSeeder struct {
	repo   *repository.GORMRepository
	trunks *repository.TrunkRepository
	usage  *UsageService
}

// NewDatabaseSeeder creates a new database seeder
func NewDatabaseSeeder(repo *repository.GORMRepository, trunks *repository.TrunkRepository, usage *UsageService) *DatabaseSeeder {
	return &DatabaseSeeder{repo: repo, trunks: trunks, usage: usage}
}

// SeedDatabase creates a demo tenant with an agent, a SIP trunk and a
// knowledge base (idempotent).
func (s *DatabaseSeeder) SeedDatabase() error {
	ctx := context.Background()

	existing, err := s.repo.GetUserByEmail(ctx, demoEmail)
	if err != nil {
		return fmt.Errorf("failed to check demo user: %w", err)
	}
	if existing != nil {
		slog.Info("Demo tenant already seeded, skipping")
		return nil
	}

	user, apiKey, err := s.seedDemoUser(ctx)
	if err != nil {
		return err
	}

	if err := s.seedDemoAgent(ctx, user); err != nil {
		slog.Error("Failed to seed demo agent", "error", err)
	}
	if err := s.seedDemoTrunk(ctx, user); err != nil {
		slog.Error("Failed to seed demo trunk", "error", err)
	}
	if err := s.seedDemoKnowledgeBase(ctx, user); err != nil {
		slog.Error("Failed to seed demo knowledge base", "error", err)
	}

	if s.usage != nil {
		if _, err := s.usage.Topup(ctx, user.ID, 500, "Welcome bonus"); err != nil {
			slog.Error("Failed to grant welcome bonus", "error", err)
		}
	}

	// The plaintext key cannot be recovered later; surface it once.
	slog.Info("Demo tenant seeded",
		"email", demoEmail,
		"account_id", user.AccountID,
		"api_key", apiKey,
	)
	return nil
}

func (s *DatabaseSeeder) seedDemoUser(ctx context.Context) (*models.User, string, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", fmt.Errorf("failed to hash password: %w", err)
	}

	accountID, err := GenerateAccountID()
	if err != nil {
		return nil, "", err
	}
	apiKey, err := GenerateAPIKey()
	if err != nil {
		return nil, "", err
	}

	now := time.Now().UTC()
	user := models.User{
		AccountID:      accountID,
		Email:          demoEmail,
		HashedPassword: string(hashedPassword),
		FirstName:      "Demo",
		LastName:       "User",
		Company:        "Airies Demo",
		Tier:           models.TierPro,
		Credits:        models.DefaultCredits,
		APIKeyHash:     HashAPIKey(apiKey),
		APIKeyCreated:  &now,
		IsActive:       true,
	}
	if err := s.repo.CreateUser(ctx, &user); err != nil {
		return nil, "", fmt.Errorf("failed to create demo user: %w", err)
	}

	slog.Info("Created demo user", "email", demoEmail, "account_id", accountID)
	return &user, apiKey, nil
}

func (s *DatabaseSeeder) seedDemoAgent(ctx context.Context, user *models.User) error {
	agent := models.Agent{
		AccountID:      user.AccountID,
		UserID:         user.ID,
		Name:           "Riley - Support Agent",
		Description:    "Answers product questions and routes callers to the right team",
		AgentType:      models.AgentTypeVoice,
		Status:         models.AgentStatusActive,
		SystemPrompt:   "You are Riley, a concise and friendly support agent. Answer product questions directly and hand off billing topics to a human.",
		WelcomeMessage: "Hi, you've reached Airies support. How can I help?",
		Language:       "en",
		VoiceConfig: models.JSONMap{
			"provider": "elevenlabs",
			"voice_id": "rachel",
			"speed":    1.0,
		},
		LLMConfig: models.JSONMap{
			"provider":    "openai",
			"model":       "gpt-4o-mini",
			"temperature": 0.4,
		},
	}
	if err := s.repo.CreateAgent(ctx, &agent); err != nil {
		return fmt.Errorf("failed to create agent %s: %w", agent.Name, err)
	}

	slog.Info("Created demo agent", "name", agent.Name)
	return nil
}

// seedDemoTrunk writes the trunk straight through the repository so no
// health probe fires against the placeholder SIP host.
func (s *DatabaseSeeder) seedDemoTrunk(ctx context.Context, user *models.User) error {
	trunk := models.SipTrunk{
		AccountID:           user.AccountID,
		UserID:              user.ID,
		Name:                "Demo Trunk",
		Description:         "Placeholder trunk for local development",
		Provider:            models.ProviderCustom,
		Status:              models.TrunkStatusInactive,
		SipDomain:           "sip.example.com",
		SipUsername:         "demo",
		SipPassword:         "demo-secret",
		SipPort:             5060,
		Transport:           "udp",
		Direction:           models.DirectionBidirectional,
		PhoneNumbers:        models.StringList{"+15550100"},
		MaxConcurrentCalls:  5,
		DTMFMode:            "rfc2833",
		HealthCheckEnabled:  false,
		HealthCheckInterval: 300,
		HealthStatus:        models.HealthUnknown,
		CostPerMinute:       0.01,
		CallerIDName:        "Airies Demo",
		CallerIDNumber:      "+15550100",
		Priority:            1,
	}
	if err := s.trunks.CreateTrunk(ctx, &trunk); err != nil {
		return fmt.Errorf("failed to create trunk %s: %w", trunk.Name, err)
	}

	slog.Info("Created demo trunk", "name", trunk.Name)
	return nil
}

func (s *DatabaseSeeder) seedDemoKnowledgeBase(ctx context.Context, user *models.User) error {
	kb := models.KnowledgeBase{
		AccountID:      user.AccountID,
		UserID:         user.ID,
		Name:           "Product FAQ",
		Description:    "Answers sourced from the public help center",
		EmbeddingModel: "text-embedding-3-small",
		ChunkSize:      1000,
		ChunkOverlap:   200,
		Status:         models.KnowledgeBaseActive,
	}
	if err := s.repo.CreateKnowledgeBase(ctx, &kb); err != nil {
		return fmt.Errorf("failed to create knowledge base %s: %w", kb.Name, err)
	}

	slog.Info("Created demo knowledge base", "name", kb.Name)
	return nil
}
