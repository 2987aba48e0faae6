package secrets

import (
	"context"
	"fmt"
	"os"

	"github.com/ericfisherdev/tokenvault/internal/domain/model"
	"github.com/ericfisherdev/tokenvault/internal/domain/port/driven"
)

// EnvSource reads a secret payload from the environment variable called name.
// Suited to orchestrators that inject secrets as environment variables.
type EnvSource struct {
	lookup func(string) (string, bool)
}

// Compile-time check to ensure EnvSource implements SecretSource
var _ driven.SecretSource = (*EnvSource)(nil)

// NewEnvSource creates an EnvSource backed by the process environment.
func NewEnvSource() *EnvSource {
	return &EnvSource{lookup: os.LookupEnv}
}

// Name identifies the backend.
func (e *EnvSource) Name() string { return "env" }

// GetSecret returns the value of the variable name. Unset or empty variables
// are reported as missing secrets.
func (e *EnvSource) GetSecret(ctx context.Context, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	v, ok := e.lookup(name)
	if !ok || v == "" {
		return "", fmt.Errorf("%w: environment variable %s not set", model.ErrSecretNotFound, name)
	}
	return v, nil
}
