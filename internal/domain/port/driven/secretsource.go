package driven

import "context"

// SecretSource fetches the raw payload of a named secret from a secrets backend.
// Implementations wrap model.ErrSecretNotFound when the secret does not exist.
type SecretSource interface {
	GetSecret(ctx context.Context, name string) (string, error)

	// Name identifies the backend in errors and logs. It never includes secret material.
	Name() string
}
