package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ericfisherdev/tokenvault/internal/domain/model"
	"github.com/ericfisherdev/tokenvault/internal/domain/port/driven"
)

const tracerName = "github.com/ericfisherdev/tokenvault/internal/application"

// tokenRef is the caller-supplied address of a stored token.
type tokenRef struct {
	Kind model.EntityKind `validate:"required,oneof=seller advertiser"`
	Key  string           `validate:"required"`
}

// TokenService is the entry point for refresh token operations. It validates
// input before any connection is opened and delegates to the TokenStore port.
// Token values are never logged.
type TokenService struct {
	store    driven.TokenStore
	validate *validator.Validate
	tracer   trace.Tracer
	logger   *slog.Logger
}

// NewTokenService creates a new TokenService backed by store.
func NewTokenService(store driven.TokenStore, logger *slog.Logger) *TokenService {
	return &TokenService{
		store:    store,
		validate: validator.New(),
		tracer:   otel.Tracer(tracerName),
		logger:   logger,
	}
}

// EnsureSchema creates the table for kind if it does not exist.
func (s *TokenService) EnsureSchema(ctx context.Context, kind model.EntityKind) (err error) {
	ctx, span := s.start(ctx, "tokens.ensure_schema", kind)
	defer func() { finish(span, err) }()

	if !kind.Valid() {
		return &model.ValidationError{Field: "kind", Reason: fmt.Sprintf("unknown entity kind %q", kind)}
	}

	if err := s.store.EnsureSchema(ctx, kind); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "schema ensured", "kind", kind, "table", kind.Table())
	return nil
}

// Bootstrap ensures the tables for every entity kind, stopping at the first failure.
func (s *TokenService) Bootstrap(ctx context.Context) error {
	for _, kind := range model.EntityKinds {
		if err := s.EnsureSchema(ctx, kind); err != nil {
			return fmt.Errorf("bootstrap %s: %w", kind.Table(), err)
		}
	}
	return nil
}

// StoreToken upserts refreshToken under key. Returns *model.ValidationError for an
// empty key or unknown kind.
func (s *TokenService) StoreToken(ctx context.Context, kind model.EntityKind, key, refreshToken string) (err error) {
	ctx, span := s.start(ctx, "tokens.store", kind)
	defer func() { finish(span, err) }()

	if err := s.check(kind, key); err != nil {
		return err
	}

	if err := s.store.StoreToken(ctx, kind, key, refreshToken); err != nil {
		return err
	}
	s.logger.DebugContext(ctx, "refresh token stored", "kind", kind, "identity_key", key)
	return nil
}

// FetchToken returns the refresh token stored under key. A missing row is
// reported as found == false, never as an error.
func (s *TokenService) FetchToken(ctx context.Context, kind model.EntityKind, key string) (token string, found bool, err error) {
	ctx, span := s.start(ctx, "tokens.fetch", kind)
	defer func() {
		span.SetAttributes(attribute.Bool("token.found", found))
		finish(span, err)
	}()

	if err := s.check(kind, key); err != nil {
		return "", false, err
	}

	token, found, err = s.store.FetchToken(ctx, kind, key)
	if err != nil {
		return "", false, err
	}
	s.logger.DebugContext(ctx, "refresh token fetched", "kind", kind, "identity_key", key, "found", found)
	return token, found, nil
}

// FetchRecord returns the stored row for key, timestamps included.
func (s *TokenService) FetchRecord(ctx context.Context, kind model.EntityKind, key string) (rec model.TokenRecord, found bool, err error) {
	ctx, span := s.start(ctx, "tokens.fetch_record", kind)
	defer func() { finish(span, err) }()

	if err := s.check(kind, key); err != nil {
		return model.TokenRecord{}, false, err
	}
	return s.store.FetchRecord(ctx, kind, key)
}

// Ping verifies that credentials resolve and the store answers.
func (s *TokenService) Ping(ctx context.Context) (err error) {
	ctx, span := s.tracer.Start(ctx, "tokens.ping")
	defer func() { finish(span, err) }()

	return s.store.Ping(ctx)
}

// check validates the token address and converts validator failures into
// *model.ValidationError.
func (s *TokenService) check(kind model.EntityKind, key string) error {
	err := s.validate.Struct(tokenRef{Kind: kind, Key: key})
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return &model.ValidationError{Field: "request", Reason: err.Error()}
	}

	switch fe := fieldErrs[0]; fe.Field() {
	case "Kind":
		return &model.ValidationError{Field: "kind", Reason: fmt.Sprintf("unknown entity kind %q", kind)}
	default:
		return &model.ValidationError{Field: "identity_key", Reason: "must not be empty"}
	}
}

func (s *TokenService) start(ctx context.Context, name string, kind model.EntityKind) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name, trace.WithAttributes(attribute.String("token.kind", string(kind))))
}

func finish(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
