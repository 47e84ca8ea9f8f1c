package services

import (
	"regexp"
	"testing"
)

func TestGenerateAccountID(t *testing.T) {
	pattern := regexp.MustCompile(`^ACC_[A-Z0-9]{12}$`)

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		id, err := GenerateAccountID()
		if err != nil {
			t.Fatalf("GenerateAccountID() error: %v", err)
		}
		if !pattern.MatchString(id) {
			t.Errorf("GenerateAccountID() = %q, expected match for %s", id, pattern)
		}
		if seen[id] {
			t.Errorf("GenerateAccountID() repeated value %q", id)
		}
		seen[id] = true
	}
}

func TestGenerateAPIKey(t *testing.T) {
	pattern := regexp.MustCompile(`^ak_[A-Za-z0-9]{32}$`)

	key, err := GenerateAPIKey()
	if err != nil {
		t.Fatalf("GenerateAPIKey() error: %v", err)
	}
	if !pattern.MatchString(key) {
		t.Errorf("GenerateAPIKey() = %q, expected match for %s", key, pattern)
	}

	other, err := GenerateAPIKey()
	if err != nil {
		t.Fatalf("GenerateAPIKey() error: %v", err)
	}
	if key == other {
		t.Error("GenerateAPIKey() returned the same key twice")
	}
}

func TestHashAPIKey(t *testing.T) {
	hash := HashAPIKey("ak_test")
	if len(hash) != 64 {
		t.Errorf("HashAPIKey() length = %d, expected 64 hex chars", len(hash))
	}
	if hash != HashAPIKey("ak_test") {
		t.Error("HashAPIKey() is not deterministic")
	}
	if hash == HashAPIKey("ak_other") {
		t.Error("HashAPIKey() collided for different keys")
	}
}
