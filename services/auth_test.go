package services

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/airies-ai/backend/models"
	"github.com/golang-jwt/jwt/v5"
)

func TestAPIKeyFromRequest(t *testing.T) {
	tests := []struct {
		name     string
		headers  map[string]string
		expected string
	}{
		{
			name:     "X-API-Key header",
			headers:  map[string]string{"X-API-Key": "ak_abc"},
			expected: "ak_abc",
		},
		{
			name:     "bearer token",
			headers:  map[string]string{"Authorization": "Bearer ak_xyz"},
			expected: "ak_xyz",
		},
		{
			name:     "X-API-Key wins over bearer",
			headers:  map[string]string{"X-API-Key": "ak_abc", "Authorization": "Bearer ak_xyz"},
			expected: "ak_abc",
		},
		{
			name:     "basic auth is not an API key",
			headers:  map[string]string{"Authorization": "Basic dXNlcjpwYXNz"},
			expected: "",
		},
		{
			name:     "no credentials",
			headers:  map[string]string{},
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/api/v1/agents", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if got := apiKeyFromRequest(req); got != tt.expected {
				t.Errorf("apiKeyFromRequest() = %q, expected %q", got, tt.expected)
			}
		})
	}
}

func TestVerifyAPIKeyMalformed(t *testing.T) {
	svc := NewAuthService(nil, "secret")
	if _, err := svc.VerifyAPIKey(context.Background(), "not-a-key"); err == nil {
		t.Error("VerifyAPIKey() accepted a key without the ak_ prefix")
	}
}

func TestIssueStreamToken(t *testing.T) {
	svc := NewAuthService(nil, "stream-secret")
	user := &models.User{ID: "user-1", AccountID: "ACC_TEST12345678"}

	token, err := svc.IssueStreamToken(user)
	if err != nil {
		t.Fatalf("IssueStreamToken() error: %v", err)
	}

	claims := &StreamClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte("stream-secret"), nil
	})
	if err != nil || !parsed.Valid {
		t.Fatalf("issued token failed to parse: %v", err)
	}
	if claims.UserID != "user-1" || claims.AccountID != "ACC_TEST12345678" {
		t.Errorf("claims = (%q, %q), expected the user's identity", claims.UserID, claims.AccountID)
	}
	if claims.ExpiresAt == nil || time.Until(claims.ExpiresAt.Time) > 6*time.Minute {
		t.Error("stream token should expire within a few minutes")
	}
}

func TestVerifyStreamTokenRejectsForgery(t *testing.T) {
	svc := NewAuthService(nil, "stream-secret")
	user := &models.User{ID: "user-1", AccountID: "ACC_TEST12345678"}

	token, err := svc.IssueStreamToken(user)
	if err != nil {
		t.Fatalf("IssueStreamToken() error: %v", err)
	}

	// Signed under a different secret: verification must fail before any
	// user lookup happens.
	other := NewAuthService(nil, "different-secret")
	if _, err := other.VerifyStreamToken(context.Background(), token); err == nil {
		t.Error("VerifyStreamToken() accepted a token signed with another secret")
	}

	if _, err := svc.VerifyStreamToken(context.Background(), token+"tampered"); err == nil {
		t.Error("VerifyStreamToken() accepted a tampered token")
	}
}
