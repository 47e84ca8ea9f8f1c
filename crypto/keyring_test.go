package crypto

import (
	"encoding/base64"
	"strings"
	"testing"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	ring, err := NewKeyring("k1", map[string][]byte{
		"k1": testKey(t, "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA="),
	})
	if err != nil {
		t.Fatalf("new keyring: %v", err)
	}

	sealed, err := ring.EncryptString("trunk-sip-password")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if !IsSealed(sealed) {
		t.Fatalf("expected sealed prefix, got %q", sealed)
	}
	if strings.Contains(sealed, "trunk-sip-password") {
		t.Fatalf("sealed value leaks plaintext: %q", sealed)
	}

	plain, err := ring.DecryptString(sealed)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if plain != "trunk-sip-password" {
		t.Fatalf("expected original secret, got %q", plain)
	}
}

func TestDecryptPassesThroughPlaintext(t *testing.T) {
	ring, err := NewKeyring("k1", map[string][]byte{
		"k1": testKey(t, "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA="),
	})
	if err != nil {
		t.Fatalf("new keyring: %v", err)
	}

	plain, err := ring.DecryptString("legacy-plaintext-password")
	if err != nil {
		t.Fatalf("decrypt plaintext: %v", err)
	}
	if plain != "legacy-plaintext-password" {
		t.Fatalf("expected passthrough, got %q", plain)
	}
}

func TestRotationDecryptsOldEncryptsNew(t *testing.T) {
	oldKey := testKey(t, "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA=")
	newKey := testKey(t, "AQEBAQEBAQEBAQEBAQEBAQEBAQEBAQEBAQEBAQEBAQE=")

	oldRing, err := NewKeyring("old", map[string][]byte{"old": oldKey})
	if err != nil {
		t.Fatalf("old keyring: %v", err)
	}
	sealed, err := oldRing.EncryptString("rotate-me")
	if err != nil {
		t.Fatalf("old encrypt: %v", err)
	}

	rotated, err := NewKeyring("new", map[string][]byte{"old": oldKey, "new": newKey})
	if err != nil {
		t.Fatalf("rotated keyring: %v", err)
	}

	plain, err := rotated.DecryptString(sealed)
	if err != nil {
		t.Fatalf("decrypt with old key: %v", err)
	}
	if plain != "rotate-me" {
		t.Fatalf("unexpected plaintext %q", plain)
	}

	resealed, err := rotated.Reseal(sealed)
	if err != nil {
		t.Fatalf("reseal: %v", err)
	}
	if resealed == sealed {
		t.Fatalf("reseal did not produce a new envelope")
	}
	plain, err = rotated.DecryptString(resealed)
	if err != nil {
		t.Fatalf("decrypt resealed: %v", err)
	}
	if plain != "rotate-me" {
		t.Fatalf("unexpected resealed plaintext %q", plain)
	}
}

func TestParseKeyring(t *testing.T) {
	spec := "primary=" + base64.StdEncoding.EncodeToString(make([]byte, 32))
	ring, err := ParseKeyring(spec)
	if err != nil {
		t.Fatalf("parse keyring: %v", err)
	}
	sealed, err := ring.EncryptString("secret")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	plain, err := ring.DecryptString(sealed)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if plain != "secret" {
		t.Fatalf("expected secret, got %q", plain)
	}
}

func TestParseKeyringRejectsBadSpec(t *testing.T) {
	for _, spec := range []string{"", "missing-separator", "short=QUJD"} {
		if _, err := ParseKeyring(spec); err == nil {
			t.Errorf("ParseKeyring(%q) expected error, got nil", spec)
		}
	}
}

func testKey(t *testing.T, b64 string) []byte {
	t.Helper()
	k, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		t.Fatalf("decode key: %v", err)
	}
	if len(k) != 32 {
		t.Fatalf("expected 32-byte key, got %d", len(k))
	}
	return k
}
