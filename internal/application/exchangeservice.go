package application

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ericfisherdev/tokenvault/internal/domain/model"
	"github.com/ericfisherdev/tokenvault/internal/domain/port/driven"
)

// ExchangeService redeems OAuth authorization codes and stores the resulting
// refresh token through the TokenService.
type ExchangeService struct {
	exchanger driven.CodeExchanger
	tokens    *TokenService
	tracer    trace.Tracer
	logger    *slog.Logger
}

// NewExchangeService creates a new ExchangeService.
func NewExchangeService(exchanger driven.CodeExchanger, tokens *TokenService, logger *slog.Logger) *ExchangeService {
	return &ExchangeService{
		exchanger: exchanger,
		tokens:    tokens,
		tracer:    otel.Tracer(tracerName),
		logger:    logger,
	}
}

// Exchange trades code for a refresh token and stores it under key. An empty key
// is stored as model.UnknownIdentityKey. Returns the key the token was stored under.
func (s *ExchangeService) Exchange(ctx context.Context, kind model.EntityKind, key, code string) (stored string, err error) {
	ctx, span := s.tracer.Start(ctx, "tokens.exchange", trace.WithAttributes(attribute.String("token.kind", string(kind))))
	defer func() { finish(span, err) }()

	if !kind.Valid() {
		return "", &model.ValidationError{Field: "kind", Reason: fmt.Sprintf("unknown entity kind %q", kind)}
	}
	if code == "" {
		return "", &model.ValidationError{Field: "authorization_code", Reason: "must not be empty"}
	}
	if key == "" {
		key = model.UnknownIdentityKey
		s.logger.WarnContext(ctx, "authorization carried no identity, storing under placeholder key", "kind", kind, "identity_key", key)
	}

	token, err := s.exchanger.Exchange(ctx, code)
	if err != nil {
		return "", fmt.Errorf("exchange authorization code: %w", err)
	}

	if err := s.tokens.StoreToken(ctx, kind, key, token); err != nil {
		return "", err
	}
	s.logger.InfoContext(ctx, "authorization exchanged", "kind", kind, "identity_key", key)
	return key, nil
}
