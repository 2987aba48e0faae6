// Package config loads application configuration from a TOML file, environment
// variables and command-line overrides.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/ericfisherdev/tokenvault/internal/domain/model"
)

// EnvPrefix is stripped from environment variables during loading
// (e.g., TOKENVAULT_DATABASE__HOST → database.host).
const EnvPrefix = "TOKENVAULT_"

// LogFormat represents the logging output format.
type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
	LogFormatOTel LogFormat = "otel"
)

// CredentialSource selects where database credentials come from.
type CredentialSource string

const (
	CredentialSourceStatic  CredentialSource = "static"
	CredentialSourceSecrets CredentialSource = "secrets"
)

// SecretBackend selects the secrets backend used in secrets mode.
type SecretBackend string

const (
	SecretBackendAWS     SecretBackend = "aws"
	SecretBackendKeyring SecretBackend = "keyring"
	SecretBackendEnv     SecretBackend = "env"
)

// Default configuration values. The static user and password defaults are
// placeholders that are rejected at connect time.
const (
	DefaultLogFormat        = LogFormatText
	DefaultDialect          = "postgres"
	DefaultHost             = "localhost"
	DefaultSQLitePath       = "tokenvault.db"
	DefaultConnectTimeout   = 10 * time.Second
	DefaultCredentialSource = CredentialSourceStatic
	DefaultSecretBackend    = SecretBackendAWS
	DefaultSecretName       = "MyRDSSecret"
	DefaultRegion           = "us-east-2"
	DefaultKeyringService   = "tokenvault"
	DefaultPoolMaxOpenConns = 4
)

// CredentialsConfig describes how the credential resolver is built.
type CredentialsConfig struct {
	Source         CredentialSource `json:"source" validate:"required,oneof=static secrets"`
	Backend        SecretBackend    `json:"backend" validate:"omitempty,oneof=aws keyring env"`
	SecretName     string           `json:"secret_name"`
	Region         string           `json:"region"`
	KeyringService string           `json:"keyring_service"`
	// CacheTTL reuses resolved credentials for this long. Zero resolves on every connection.
	CacheTTL time.Duration `json:"cache_ttl" validate:"min=0"`
}

// PoolConfig controls connection reuse across operations.
type PoolConfig struct {
	Enabled      bool `json:"enabled"`
	MaxOpenConns int  `json:"max_open_conns" validate:"min=0"`
}

// DatabaseConfig holds the relational store settings. Host, port, name, user and
// password are used in static mode only; for sqlite, name is the file path.
type DatabaseConfig struct {
	Dialect        string            `json:"dialect" validate:"required,oneof=postgres sqlite"`
	Host           string            `json:"host"`
	Port           int               `json:"port" validate:"min=0,max=65535"`
	Name           string            `json:"name"`
	User           string            `json:"user"`
	Password       string            `json:"password"`
	SSLMode        string            `json:"sslmode" validate:"omitempty,oneof=disable allow prefer require verify-ca verify-full"`
	ConnectTimeout time.Duration     `json:"connect_timeout" validate:"min=0"`
	Credentials    CredentialsConfig `json:"credentials"`
	Pool           PoolConfig        `json:"pool"`
}

// OAuthConfig holds the client registration used by `token exchange`.
// An empty token URL selects the Login with Amazon endpoint.
type OAuthConfig struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	RedirectURL  string `json:"redirect_url" validate:"omitempty,url"`
	TokenURL     string `json:"token_url" validate:"omitempty,url"`
}

// Config holds the application's configuration.
type Config struct {
	// LogLevel for logging output (defaults to Info if unset).
	LogLevel  slog.Level     `json:"log_level"`
	LogFormat LogFormat      `json:"log_format" validate:"oneof=text json otel"`
	Database  DatabaseConfig `json:"database"`
	OAuth     OAuthConfig    `json:"oauth"`
}

// StaticParams returns the connection parameters configured for static mode.
func (c *Config) StaticParams() model.ConnParams {
	return model.ConnParams{
		Host:     c.Database.Host,
		Port:     c.Database.Port,
		Database: c.Database.Name,
		User:     c.Database.User,
		Password: c.Database.Password,
	}
}

// Sources lists where Load reads configuration from, in increasing precedence.
type Sources struct {
	// File is an optional TOML config file.
	File string
	// Environ returns the environment as key=value pairs; nil skips the environment.
	Environ func() []string
	// Overrides are dotted keys (e.g., "database.dialect") taken from CLI flags.
	Overrides map[string]any
}

// Load reads configuration with precedence config file → environment → overrides,
// then applies defaults and validates the result.
func Load(src Sources) (*Config, error) {
	k := koanf.New(".")

	if src.File != "" {
		if err := k.Load(file.Provider(src.File), toml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	if src.Environ != nil {
		envProvider := env.Provider(".", env.Opt{
			Prefix: EnvPrefix,
			TransformFunc: func(key, value string) (string, any) {
				stripped := strings.TrimPrefix(key, EnvPrefix)
				nested := strings.ToLower(strings.ReplaceAll(stripped, "__", "."))
				return nested, value
			},
			EnvironFunc: src.Environ,
		})
		if err := k.Load(envProvider, nil); err != nil {
			return nil, fmt.Errorf("loading environment variables: %w", err)
		}
	}

	if len(src.Overrides) > 0 {
		if err := k.Load(confmap.Provider(src.Overrides, "."), nil); err != nil {
			return nil, fmt.Errorf("loading CLI flags: %w", err)
		}
	}

	cfg := &Config{}
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// ApplyDefaults fills unset config fields with defaults.
func (c *Config) ApplyDefaults() {
	if c.LogFormat == "" {
		c.LogFormat = DefaultLogFormat
	}

	db := &c.Database
	if db.Dialect == "" {
		db.Dialect = DefaultDialect
	}
	db.Dialect = strings.ToLower(db.Dialect)
	if db.Host == "" {
		db.Host = DefaultHost
	}
	if db.Port == 0 {
		db.Port = model.DefaultDatabasePort
	}
	if db.Name == "" {
		if db.Dialect == "sqlite" {
			db.Name = DefaultSQLitePath
		} else {
			db.Name = model.DefaultDatabaseName
		}
	}
	if db.User == "" {
		db.User = model.PlaceholderCredential
	}
	if db.Password == "" {
		db.Password = model.PlaceholderCredential
	}
	if db.ConnectTimeout == 0 {
		db.ConnectTimeout = DefaultConnectTimeout
	}

	creds := &db.Credentials
	if creds.Source == "" {
		creds.Source = DefaultCredentialSource
	}
	if creds.Source == CredentialSourceSecrets {
		if creds.Backend == "" {
			creds.Backend = DefaultSecretBackend
		}
		if creds.SecretName == "" {
			creds.SecretName = DefaultSecretName
		}
		if creds.Region == "" {
			creds.Region = DefaultRegion
		}
		if creds.KeyringService == "" {
			creds.KeyringService = DefaultKeyringService
		}
	}

	if db.Pool.MaxOpenConns == 0 {
		db.Pool.MaxOpenConns = DefaultPoolMaxOpenConns
	}
}

// Validate validates the configuration using struct tags and cross-field rules.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}

	if c.Database.Credentials.Source == CredentialSourceSecrets {
		if c.Database.Credentials.Backend == "" {
			return errors.New("database.credentials.backend required for secrets source")
		}
		if c.Database.Credentials.SecretName == "" {
			return errors.New("database.credentials.secret_name required for secrets source")
		}
	}

	return nil
}
