package services

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/airies-ai/backend/models"
	"github.com/airies-ai/backend/repository"
	"github.com/golang-jwt/jwt/v5"
)

// AuthService resolves the tenant behind every request. REST calls carry
// an API key; WebSocket streams carry a short-lived JWT minted from one.
type AuthService struct {
	repo         *repository.GORMRepository
	jwtSecret    []byte
	streamExpiry time.Duration
}

// StreamClaims is the payload of a stream token.
type StreamClaims struct {
	UserID    string `json:"user_id"`
	AccountID string `json:"account_id"`
	jwt.RegisteredClaims
}

func NewAuthService(repo *repository.GORMRepository, jwtSecret string) *AuthService {
	return &AuthService{
		repo:         repo,
		jwtSecret:    []byte(jwtSecret),
		streamExpiry: 5 * time.Minute,
	}
}

// apiKeyFromRequest pulls the key from X-API-Key or a bearer header.
func apiKeyFromRequest(r *http.Request) string {
	if key := r.Header.Get("X-API-Key"); key != "" {
		return key
	}
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

// VerifyAPIKey resolves an API key to its owning user.
func (s *AuthService) VerifyAPIKey(ctx context.Context, key string) (*models.User, error) {
	if !strings.HasPrefix(key, "ak_") {
		return nil, fmt.Errorf("malformed API key")
	}

	user, err := s.repo.GetUserByAPIKeyHash(ctx, HashAPIKey(key))
	if err != nil {
		return nil, fmt.Errorf("failed to look up API key: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("unknown API key")
	}
	return user, nil
}

// IssueStreamToken mints a short-lived token for the WebSocket stream,
// so browser clients never hold the long-lived API key.
func (s *AuthService) IssueStreamToken(user *models.User) (string, error) {
	now := time.Now()
	claims := &StreamClaims{
		UserID:    user.ID,
		AccountID: user.AccountID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.streamExpiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

// VerifyStreamToken validates a stream token and loads its user.
func (s *AuthService) VerifyStreamToken(ctx context.Context, token string) (*models.User, error) {
	claims := &StreamClaims{}

	parsedToken, err := jwt.ParseWithClaims(token, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	if !parsedToken.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	user, err := s.repo.GetUserByID(ctx, claims.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("user not found")
	}
	if !user.IsActive {
		return nil, fmt.Errorf("account disabled")
	}

	return user, nil
}

// Middleware authenticates API requests by key and attaches the user to
// the request context.
func (s *AuthService) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := apiKeyFromRequest(r)
		if key == "" {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		user, err := s.VerifyAPIKey(r.Context(), key)
		if err != nil {
			slog.Warn("API key rejected", "error", err, "path", r.URL.Path)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		if !user.IsActive {
			http.Error(w, "Account disabled", http.StatusForbidden)
			return
		}

		ctx := context.WithValue(r.Context(), "user", user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
