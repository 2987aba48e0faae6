// Package lwa exchanges Login with Amazon authorization codes for refresh tokens.
// Selling partner and advertising consent flows share the same token endpoint.
package lwa

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/ericfisherdev/tokenvault/internal/domain/port/driven"
)

// DefaultTokenURL is the Login with Amazon token endpoint.
const DefaultTokenURL = "https://api.amazon.com/auth/o2/token"

// ErrNoRefreshToken is returned when the token endpoint answers without a refresh token.
var ErrNoRefreshToken = errors.New("no refresh token returned")

// Config holds the OAuth client registration.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	TokenURL     string
}

// Option configures an Exchanger.
type Option func(*Exchanger)

// WithHTTPClient sets the client used for token requests.
func WithHTTPClient(client *http.Client) Option {
	return func(e *Exchanger) {
		e.client = client
	}
}

// Exchanger performs the authorization_code grant against the token endpoint.
type Exchanger struct {
	config *oauth2.Config
	client *http.Client
}

// Compile-time check to ensure Exchanger implements CodeExchanger
var _ driven.CodeExchanger = (*Exchanger)(nil)

// NewExchanger creates an Exchanger. Client id and secret are required.
func NewExchanger(cfg Config, opts ...Option) (*Exchanger, error) {
	if cfg.ClientID == "" {
		return nil, errors.New("oauth client id is not configured")
	}
	if cfg.ClientSecret == "" {
		return nil, errors.New("oauth client secret is not configured")
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = DefaultTokenURL
	}

	e := &Exchanger{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint: oauth2.Endpoint{
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		client: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Exchange redeems code and returns the refresh token from the response.
func (e *Exchanger) Exchange(ctx context.Context, code string) (string, error) {
	// oauth2 picks up a custom HTTP client from the context.
	ctx = context.WithValue(ctx, oauth2.HTTPClient, e.client)

	tok, err := e.config.Exchange(ctx, code)
	if err != nil {
		return "", fmt.Errorf("token endpoint: %w", err)
	}
	if tok.RefreshToken == "" {
		return "", ErrNoRefreshToken
	}
	return tok.RefreshToken, nil
}
