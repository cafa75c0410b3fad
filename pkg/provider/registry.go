package provider

import (
	"context"
	"fmt"

	"github.com/comfydata276/reviewforge/pkg/store"
	"github.com/comfydata276/reviewforge/pkg/vault"
)

// Registry resolves a provider name to an instantiated Provider by looking
// up and decrypting its stored credential. Plaintext key material only ever
// flows from the vault into the adapter, never back to a caller.
type Registry struct {
	store *store.Store
	vault *vault.Vault
}

// NewRegistry builds a Registry over the given store and vault.
func NewRegistry(s *store.Store, v *vault.Vault) *Registry {
	return &Registry{store: s, vault: v}
}

// Get returns a Provider instance for providerName, decrypting its stored
// API key. Returns an error if no key is on file or the provider is unknown.
func (r *Registry) Get(ctx context.Context, providerName string) (Provider, error) {
	key, err := r.store.GetAPIKeyByProvider(ctx, providerName)
	if err != nil {
		return nil, fmt.Errorf("no API key found for provider %q: %w", providerName, err)
	}

	plaintext, err := r.vault.Decrypt(key.Ciphertext, key.Nonce)
	if err != nil {
		return nil, fmt.Errorf("decrypt key for provider %q: %w", providerName, err)
	}

	switch providerName {
	case "openai":
		return NewOpenAI(plaintext), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", providerName)
	}
}
