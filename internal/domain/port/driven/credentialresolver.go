package driven

import (
	"context"

	"github.com/ericfisherdev/tokenvault/internal/domain/model"
)

// CredentialResolver produces the parameters needed to reach the relational store.
// Implementations return *model.SecretRetrievalError or *model.SecretFormatError on failure
// and never fall back to partial or default values for required fields.
type CredentialResolver interface {
	Resolve(ctx context.Context) (model.ConnParams, error)
}
