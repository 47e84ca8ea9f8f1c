// Package crypto seals SIP trunk credentials before they are stored.
// Secrets are encrypted with AES-256-GCM under a keyring that supports
// rotation: new writes use the current key, reads accept any known key.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

type sealedSecret struct {
	KeyID      string `json:"kid"`
	Nonce      string `json:"n"`
	Ciphertext string `json:"c"`
}

const sealedPrefix = "enc:"

type Keyring struct {
	currentID string
	keys      map[string][]byte
}

// NewKeyring builds a keyring from 32-byte keys indexed by id. currentID
// selects the key used for new encryptions.
func NewKeyring(currentID string, keys map[string][]byte) (*Keyring, error) {
	if currentID == "" {
		return nil, fmt.Errorf("current key id is empty")
	}
	if _, ok := keys[currentID]; !ok {
		return nil, fmt.Errorf("current key id %q not found in keyring", currentID)
	}
	cp := make(map[string][]byte, len(keys))
	for id, key := range keys {
		if len(key) != 32 {
			return nil, fmt.Errorf("key %q must be 32 bytes, got %d", id, len(key))
		}
		buf := make([]byte, len(key))
		copy(buf, key)
		cp[id] = buf
	}
	return &Keyring{currentID: currentID, keys: cp}, nil
}

// ParseKeyring builds a keyring from its config form:
// "id=base64key,id=base64key". The first entry is the current key.
func ParseKeyring(spec string) (*Keyring, error) {
	if strings.TrimSpace(spec) == "" {
		return nil, fmt.Errorf("keyring spec is empty")
	}
	keys := make(map[string][]byte)
	currentID := ""
	for _, entry := range strings.Split(spec, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		id, b64, ok := strings.Cut(entry, "=")
		if !ok {
			return nil, fmt.Errorf("keyring entry %q is not id=key", entry)
		}
		key, err := base64.StdEncoding.DecodeString(b64 + strings.Repeat("=", (4-len(b64)%4)%4))
		if err != nil {
			return nil, fmt.Errorf("decode key %q: %w", id, err)
		}
		keys[id] = key
		if currentID == "" {
			currentID = id
		}
	}
	return NewKeyring(currentID, keys)
}

// EncryptString seals a secret under the current key. The result is a
// self-describing string safe to store in a text column.
func (k *Keyring) EncryptString(plaintext string) (string, error) {
	aead, err := k.aead(k.currentID)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("nonce: %w", err)
	}
	ciphertext := aead.Seal(nil, nonce, []byte(plaintext), nil)

	blob, err := json.Marshal(sealedSecret{
		KeyID:      k.currentID,
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
		Ciphertext: base64.StdEncoding.EncodeToString(ciphertext),
	})
	if err != nil {
		return "", fmt.Errorf("marshal sealed secret: %w", err)
	}
	return sealedPrefix + string(blob), nil
}

// DecryptString opens a sealed secret. Values without the sealed prefix
// are returned unchanged so credentials imported in plaintext keep working
// until their next write re-seals them.
func (k *Keyring) DecryptString(stored string) (string, error) {
	if !IsSealed(stored) {
		return stored, nil
	}
	var sealed sealedSecret
	if err := json.Unmarshal([]byte(strings.TrimPrefix(stored, sealedPrefix)), &sealed); err != nil {
		return "", fmt.Errorf("unmarshal sealed secret: %w", err)
	}
	aead, err := k.aead(sealed.KeyID)
	if err != nil {
		return "", err
	}
	nonce, err := base64.StdEncoding.DecodeString(sealed.Nonce)
	if err != nil {
		return "", fmt.Errorf("decode nonce: %w", err)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(sealed.Ciphertext)
	if err != nil {
		return "", fmt.Errorf("decode ciphertext: %w", err)
	}
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("decrypt: %w", err)
	}
	return string(plaintext), nil
}

// Reseal re-encrypts a stored secret under the current key.
func (k *Keyring) Reseal(stored string) (string, error) {
	plain, err := k.DecryptString(stored)
	if err != nil {
		return "", err
	}
	return k.EncryptString(plain)
}

// IsSealed reports whether a stored value is an encrypted envelope.
func IsSealed(stored string) bool {
	return strings.HasPrefix(stored, sealedPrefix)
}

func (k *Keyring) aead(keyID string) (cipher.AEAD, error) {
	key, ok := k.keys[keyID]
	if !ok {
		return nil, fmt.Errorf("unknown key id %q", keyID)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("new cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("new gcm: %w", err)
	}
	return aead, nil
}
