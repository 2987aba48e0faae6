package secrets

import (
	"context"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"

	"github.com/ericfisherdev/tokenvault/internal/domain/model"
	"github.com/ericfisherdev/tokenvault/internal/domain/port/driven"
)

// KeyringSource reads secrets from the OS keyring (macOS Keychain, Windows
// Credential Manager, Linux Secret Service). The secret name is the keyring user.
type KeyringSource struct {
	service string
}

// Compile-time check to ensure KeyringSource implements SecretSource
var _ driven.SecretSource = (*KeyringSource)(nil)

// NewKeyringSource creates a KeyringSource for service.
func NewKeyringSource(service string) (*KeyringSource, error) {
	if service == "" {
		return nil, fmt.Errorf("service cannot be empty")
	}
	return &KeyringSource{service: service}, nil
}

// Name identifies the backend.
func (k *KeyringSource) Name() string {
	return "keyring(" + k.service + ")"
}

// GetSecret returns the payload stored for name.
func (k *KeyringSource) GetSecret(ctx context.Context, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	secret, err := keyring.Get(k.service, name)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", fmt.Errorf("%w: %s", model.ErrSecretNotFound, name)
	}
	if err != nil {
		return "", err
	}
	return secret, nil
}

// Put stores payload under name, overwriting any existing value.
func (k *KeyringSource) Put(ctx context.Context, name, payload string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return keyring.Set(k.service, name, payload)
}
