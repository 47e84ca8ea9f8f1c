package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/airies-ai/backend/models"
	"github.com/airies-ai/backend/repository"
)

const (
	accountIDAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	accountIDLength   = 12

	apiKeyAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	apiKeyLength   = 32
)

// AccountService owns tenant identity: account IDs and API keys.
type AccountService struct {
	repo *repository.GORMRepository
}

func NewAccountService(repo *repository.GORMRepository) *AccountService {
	return &AccountService{repo: repo}
}

func randomString(alphabet string, length int) (string, error) {
	out := make([]byte, length)
	max := big.NewInt(int64(len(alphabet)))
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to read randomness: %w", err)
		}
		out[i] = alphabet[n.Int64()]
	}
	return string(out), nil
}

// GenerateAccountID produces a new tenant identifier, ACC_ plus twelve
// uppercase alphanumerics.
func GenerateAccountID() (string, error) {
	random, err := randomString(accountIDAlphabet, accountIDLength)
	if err != nil {
		return "", err
	}
	return "ACC_" + random, nil
}

// GenerateAPIKey produces a new opaque key, ak_ plus thirty-two
// alphanumerics. Only its hash is ever stored.
func GenerateAPIKey() (string, error) {
	random, err := randomString(apiKeyAlphabet, apiKeyLength)
	if err != nil {
		return "", err
	}
	return "ak_" + random, nil
}

// HashAPIKey is the storable form of an API key.
func HashAPIKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// EnsureAccountID backfills the account ID on users that predate it.
func (s *AccountService) EnsureAccountID(ctx context.Context, user *models.User) (string, error) {
	if user.AccountID != "" {
		return user.AccountID, nil
	}

	accountID, err := GenerateAccountID()
	if err != nil {
		return "", err
	}
	user.AccountID = accountID
	if err := s.repo.UpdateUser(ctx, user); err != nil {
		return "", err
	}

	slog.Info("Generated account ID", "user_id", user.ID, "account_id", accountID, "email", user.Email)
	return accountID, nil
}

// RotateAPIKey issues a fresh API key and stores its hash. The plaintext
// key is returned exactly once; it cannot be recovered later.
func (s *AccountService) RotateAPIKey(ctx context.Context, user *models.User) (string, error) {
	key, err := GenerateAPIKey()
	if err != nil {
		return "", err
	}

	now := time.Now().UTC()
	user.APIKeyHash = HashAPIKey(key)
	user.APIKeyCreated = &now
	if err := s.repo.UpdateUser(ctx, user); err != nil {
		return "", err
	}

	slog.Info("API key rotated", "user_id", user.ID, "account_id", user.AccountID)
	return key, nil
}
