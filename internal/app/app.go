// Package app builds the token service from configuration.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ericfisherdev/tokenvault/internal/adapter/driven/lwa"
	"github.com/ericfisherdev/tokenvault/internal/adapter/driven/secrets"
	"github.com/ericfisherdev/tokenvault/internal/adapter/driven/sqlstore"
	"github.com/ericfisherdev/tokenvault/internal/application"
	"github.com/ericfisherdev/tokenvault/internal/config"
	"github.com/ericfisherdev/tokenvault/internal/domain/port/driven"
)

// App owns the wired token service and the connector behind it.
type App struct {
	Tokens    *application.TokenService
	connector sqlstore.Connector
}

// New wires resolver → connector → store → service. No connection is opened and
// no secret is fetched until the first operation.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	dialect, err := sqlstore.ParseDialect(cfg.Database.Dialect)
	if err != nil {
		return nil, err
	}

	resolver, err := NewResolver(ctx, cfg, dialect)
	if err != nil {
		return nil, fmt.Errorf("failed to create credential resolver: %w", err)
	}

	opts := sqlstore.Options{
		Dialect:        dialect,
		SSLMode:        cfg.Database.SSLMode,
		ConnectTimeout: cfg.Database.ConnectTimeout,
		MaxOpenConns:   cfg.Database.Pool.MaxOpenConns,
	}

	var connector sqlstore.Connector
	if cfg.Database.Pool.Enabled {
		connector = sqlstore.NewPoolConnector(resolver, opts)
	} else {
		connector = sqlstore.NewDialConnector(resolver, opts)
	}

	logger.Debug("token store configured",
		"dialect", dialect,
		"credentials", cfg.Database.Credentials.Source,
		"pooled", cfg.Database.Pool.Enabled,
		"cache_ttl", cfg.Database.Credentials.CacheTTL,
	)

	return &App{
		Tokens:    application.NewTokenService(sqlstore.NewTokenRepo(connector), logger),
		connector: connector,
	}, nil
}

// Close releases pooled connections, if any.
func (a *App) Close() error {
	return a.connector.Close()
}

// NewResolver builds the credential resolver selected by configuration,
// wrapped in a time-bounded cache when cache_ttl is set.
func NewResolver(ctx context.Context, cfg *config.Config, dialect sqlstore.Dialect) (driven.CredentialResolver, error) {
	creds := cfg.Database.Credentials

	var resolver driven.CredentialResolver
	switch creds.Source {
	case config.CredentialSourceStatic:
		resolver = application.NewStaticResolver(cfg.StaticParams(), dialect.NeedsCredentials())
	case config.CredentialSourceSecrets:
		source, err := NewSecretSource(ctx, creds)
		if err != nil {
			return nil, err
		}
		resolver = application.NewSecretResolver(source, creds.SecretName)
	default:
		return nil, fmt.Errorf("unsupported credential source: %s", creds.Source)
	}

	if creds.CacheTTL > 0 {
		resolver = application.NewCachingResolver(resolver, creds.CacheTTL)
	}
	return resolver, nil
}

// NewSecretSource creates the secrets backend named by creds.Backend.
func NewSecretSource(ctx context.Context, creds config.CredentialsConfig) (driven.SecretSource, error) {
	switch creds.Backend {
	case config.SecretBackendAWS:
		return secrets.NewAWSSource(ctx, creds.Region)
	case config.SecretBackendKeyring:
		return secrets.NewKeyringSource(creds.KeyringService)
	case config.SecretBackendEnv:
		return secrets.NewEnvSource(), nil
	default:
		return nil, fmt.Errorf("unsupported secret backend: %s", creds.Backend)
	}
}

// NewExchanger creates the OAuth code exchanger from the oauth section.
func NewExchanger(cfg config.OAuthConfig) (driven.CodeExchanger, error) {
	exchanger, err := lwa.NewExchanger(lwa.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
		TokenURL:     cfg.TokenURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create code exchanger: %w", err)
	}
	return exchanger, nil
}
