package driven

import (
	"context"

	"github.com/ericfisherdev/tokenvault/internal/domain/model"
)

// TokenStore defines the driven port for refresh token persistence.
// Every method performs exactly one statement on its own connection checkout.
// Connection and execution failures are reported as *model.StorageUnavailableError;
// credential resolution failures pass through unchanged.
type TokenStore interface {
	// EnsureSchema creates the table backing kind if it does not exist.
	// Safe to call on every start; existing rows are never touched.
	EnsureSchema(ctx context.Context, kind model.EntityKind) error

	// StoreToken inserts the token for key, or overwrites the refresh token and
	// bumps updated_at when key already exists. created_at is left untouched.
	StoreToken(ctx context.Context, kind model.EntityKind, key, refreshToken string) error

	// FetchToken returns the stored refresh token for key.
	// Returns ("", false, nil) if no row matches.
	FetchToken(ctx context.Context, kind model.EntityKind, key string) (string, bool, error)

	// FetchRecord returns the whole row for key, timestamps included.
	// Returns (zero, false, nil) if no row matches.
	FetchRecord(ctx context.Context, kind model.EntityKind, key string) (model.TokenRecord, bool, error)

	// Ping verifies that credentials resolve and the store answers.
	Ping(ctx context.Context) error
}
