package services

import (
	"crypto/rand"
	"strings"
	"testing"

	"github.com/airies-ai/backend/crypto"
	"github.com/airies-ai/backend/models"
)

func TestNextTrunkStatus(t *testing.T) {
	tests := []struct {
		name     string
		current  string
		failures int
		expected string
	}{
		{"healthy active trunk stays active", models.TrunkStatusActive, 0, models.TrunkStatusActive},
		{"first failure keeps trunk in rotation", models.TrunkStatusActive, 1, models.TrunkStatusActive},
		{"second failure keeps trunk in rotation", models.TrunkStatusActive, 2, models.TrunkStatusActive},
		{"third failure takes trunk out", models.TrunkStatusActive, 3, models.TrunkStatusError},
		{"failures beyond threshold stay out", models.TrunkStatusActive, 7, models.TrunkStatusError},
		{"recovered errored trunk returns to service", models.TrunkStatusError, 0, models.TrunkStatusActive},
		{"errored trunk stays errored while failing", models.TrunkStatusError, 4, models.TrunkStatusError},
		{"suspended trunk never flips on recovery", models.TrunkStatusSuspended, 0, models.TrunkStatusSuspended},
		{"maintenance trunk never flips on failure", models.TrunkStatusMaintenance, 5, models.TrunkStatusMaintenance},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := nextTrunkStatus(tt.current, tt.failures); got != tt.expected {
				t.Errorf("nextTrunkStatus(%q, %d) = %q, expected %q", tt.current, tt.failures, got, tt.expected)
			}
		})
	}
}

func testKeyring(t *testing.T) *crypto.Keyring {
	t.Helper()
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		t.Fatalf("read randomness: %v", err)
	}
	keyring, err := crypto.NewKeyring("k1", map[string][]byte{"k1": key})
	if err != nil {
		t.Fatalf("NewKeyring() error: %v", err)
	}
	return keyring
}

func TestSealSecretsRoundTrip(t *testing.T) {
	svc := &SipTrunkService{keyring: testKeyring(t)}

	trunk := &models.SipTrunk{
		SipPassword:  "super-secret",
		AuthPassword: "other-secret",
	}
	if err := svc.sealSecrets(trunk); err != nil {
		t.Fatalf("sealSecrets() error: %v", err)
	}
	if trunk.SipPassword == "super-secret" || !crypto.IsSealed(trunk.SipPassword) {
		t.Errorf("SipPassword not sealed: %q", trunk.SipPassword)
	}
	if trunk.AuthPassword == "other-secret" || !crypto.IsSealed(trunk.AuthPassword) {
		t.Errorf("AuthPassword not sealed: %q", trunk.AuthPassword)
	}

	// Sealing again must not double-encrypt.
	sealed := trunk.SipPassword
	if err := svc.sealSecrets(trunk); err != nil {
		t.Fatalf("sealSecrets() second pass error: %v", err)
	}
	if trunk.SipPassword != sealed {
		t.Error("sealSecrets() re-encrypted an already sealed value")
	}

	plain, err := svc.decryptedCopy(trunk)
	if err != nil {
		t.Fatalf("decryptedCopy() error: %v", err)
	}
	if plain.SipPassword != "super-secret" || plain.AuthPassword != "other-secret" {
		t.Errorf("decryptedCopy() = (%q, %q), expected original secrets", plain.SipPassword, plain.AuthPassword)
	}
	if !crypto.IsSealed(trunk.SipPassword) {
		t.Error("decryptedCopy() unsealed the stored trunk")
	}
}

func TestSealSecretsWithoutKeyring(t *testing.T) {
	svc := &SipTrunkService{}

	trunk := &models.SipTrunk{SipPassword: "plaintext"}
	if err := svc.sealSecrets(trunk); err != nil {
		t.Fatalf("sealSecrets() error: %v", err)
	}
	if trunk.SipPassword != "plaintext" {
		t.Errorf("sealSecrets() without keyring changed the value to %q", trunk.SipPassword)
	}
	if strings.HasPrefix(trunk.SipPassword, "enc:") {
		t.Error("sealSecrets() without keyring produced an envelope")
	}
}
