package vault

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testVault(t *testing.T) *Vault {
	t.Helper()
	key := make([]byte, keySize)
	for i := range key {
		key[i] = byte(i)
	}
	return &Vault{key: key}
}

func TestVault_EncryptDecrypt_RoundTrips(t *testing.T) {
	v := testVault(t)

	ciphertext, nonce, err := v.Encrypt("sk-super-secret-key")
	require.NoError(t, err)
	assert.NotEmpty(t, ciphertext)
	assert.NotEmpty(t, nonce)

	plaintext, err := v.Decrypt(ciphertext, nonce)
	require.NoError(t, err)
	assert.Equal(t, "sk-super-secret-key", plaintext)
}

func TestVault_Decrypt_FailsOnTamperedCiphertext(t *testing.T) {
	v := testVault(t)

	ciphertext, nonce, err := v.Encrypt("sk-super-secret-key")
	require.NoError(t, err)
	ciphertext[0] ^= 0xFF

	_, err = v.Decrypt(ciphertext, nonce)
	assert.Error(t, err)
}

func TestVault_Decrypt_FailsWithWrongKey(t *testing.T) {
	v1 := testVault(t)
	v2 := testVault(t)
	v2.key[0] ^= 0xFF

	ciphertext, nonce, err := v1.Encrypt("sk-super-secret-key")
	require.NoError(t, err)

	_, err = v2.Decrypt(ciphertext, nonce)
	assert.Error(t, err)
}

func TestLoad_FromEnv(t *testing.T) {
	key := make([]byte, keySize)
	encoded := base64.StdEncoding.EncodeToString(key)
	t.Setenv("REVIEWFORGE_VAULT_KEY", encoded)

	v, err := Load("REVIEWFORGE_VAULT_KEY", "")
	require.NoError(t, err)
	assert.Equal(t, key, v.key)
}

func TestLoad_FromFile(t *testing.T) {
	key := make([]byte, keySize)
	key[0] = 7
	encoded := base64.StdEncoding.EncodeToString(key)
	keyFile := filepath.Join(t.TempDir(), "vault.key")
	require.NoError(t, os.WriteFile(keyFile, []byte(encoded), 0o600))

	v, err := Load("", keyFile)
	require.NoError(t, err)
	assert.Equal(t, key, v.key)
}

func TestLoad_GeneratesAndPersistsWhenNeitherSourceExists(t *testing.T) {
	keyFile := filepath.Join(t.TempDir(), "vault.key")

	v1, err := Load("", keyFile)
	require.NoError(t, err)
	assert.Len(t, v1.key, keySize)

	v2, err := Load("", keyFile)
	require.NoError(t, err)
	assert.Equal(t, v1.key, v2.key, "a second Load must reuse the persisted key, not regenerate it")
}

func TestMaskKey(t *testing.T) {
	assert.Equal(t, "****abcdef", MaskKey("sk-1234567890abcdef"))
	assert.Equal(t, "*******abc", MaskKey("abc"))
}

func TestValidatePrefix(t *testing.T) {
	assert.NoError(t, ValidatePrefix("openai", "sk-abc123"))
	assert.Error(t, ValidatePrefix("openai", "not-a-key"))
	assert.NoError(t, ValidatePrefix("unknown-provider", "anything"), "unregistered providers skip validation")
}
