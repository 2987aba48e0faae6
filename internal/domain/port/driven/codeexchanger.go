package driven

import "context"

// CodeExchanger trades an OAuth authorization code for a long-lived refresh token.
type CodeExchanger interface {
	Exchange(ctx context.Context, code string) (string, error)
}
