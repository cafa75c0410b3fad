// Package vault encrypts and decrypts provider API keys with a process-wide
// symmetric key (AES-256-GCM). The key is loaded in order: environment
// variable, on-disk key file, or freshly generated and persisted.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"
	"strings"
)

const keySize = 32 // AES-256

// Vault encrypts and decrypts plaintext credential material.
type Vault struct {
	key []byte
}

// Load resolves the process-wide key: keyEnv (a base64-encoded key),
// then keyFile on disk, then generates and persists a new key to keyFile.
func Load(keyEnv, keyFile string) (*Vault, error) {
	if keyEnv != "" {
		if v := os.Getenv(keyEnv); v != "" {
			key, err := base64.StdEncoding.DecodeString(v)
			if err != nil {
				return nil, fmt.Errorf("decode %s: %w", keyEnv, err)
			}
			if len(key) != keySize {
				return nil, fmt.Errorf("%s must decode to %d bytes, got %d", keyEnv, keySize, len(key))
			}
			return &Vault{key: key}, nil
		}
	}

	if keyFile == "" {
		keyFile = "./.reviewforge_vault_key"
	}

	if data, err := os.ReadFile(keyFile); err == nil {
		key, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(data)))
		if err != nil {
			return nil, fmt.Errorf("decode key file %s: %w", keyFile, err)
		}
		if len(key) != keySize {
			return nil, fmt.Errorf("key file %s must decode to %d bytes, got %d", keyFile, keySize, len(key))
		}
		return &Vault{key: key}, nil
	}

	key := make([]byte, keySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	encoded := base64.StdEncoding.EncodeToString(key)
	if err := os.WriteFile(keyFile, []byte(encoded), 0o600); err != nil {
		return nil, fmt.Errorf("persist generated key to %s: %w", keyFile, err)
	}
	return &Vault{key: key}, nil
}

// Encrypt seals plaintext, returning ciphertext and the nonce used.
func (v *Vault) Encrypt(plaintext string) (ciphertext, nonce []byte, err error) {
	block, err := aes.NewCipher(v.key)
	if err != nil {
		return nil, nil, fmt.Errorf("new cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, nil, fmt.Errorf("new gcm: %w", err)
	}
	nonce = make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, fmt.Errorf("generate nonce: %w", err)
	}
	ciphertext = gcm.Seal(nil, nonce, []byte(plaintext), nil)
	return ciphertext, nonce, nil
}

// Decrypt opens ciphertext sealed with Encrypt.
func (v *Vault) Decrypt(ciphertext, nonce []byte) (string, error) {
	block, err := aes.NewCipher(v.key)
	if err != nil {
		return "", fmt.Errorf("new cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("new gcm: %w", err)
	}
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("decrypt: %w", err)
	}
	return string(plaintext), nil
}

// MaskKey returns the last 6 plaintext characters, padded with '*' when the
// key is shorter than 6 characters, as a display-only form.
func MaskKey(plaintext string) string {
	const tail = 6
	suffix := plaintext
	if len(suffix) > tail {
		suffix = suffix[len(suffix)-tail:]
	}
	for len(suffix) < tail {
		suffix = "*" + suffix
	}
	return "****" + suffix
}

// knownPrefixes maps a provider name to the prefix its keys are expected to
// carry. Unknown providers skip validation rather than failing, since this
// table cannot be exhaustive.
var knownPrefixes = map[string]string{
	"openai":    "sk-",
	"anthropic": "sk-ant-",
}

// ValidatePrefix checks plaintext against the known vendor prefix for
// provider, if one is registered.
func ValidatePrefix(provider, plaintext string) error {
	prefix, ok := knownPrefixes[strings.ToLower(provider)]
	if !ok {
		return nil
	}
	if !strings.HasPrefix(plaintext, prefix) {
		return fmt.Errorf("key for provider %q does not start with expected prefix %q", provider, prefix)
	}
	return nil
}
