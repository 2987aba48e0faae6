package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/singleflight"

	"github.com/ericfisherdev/tokenvault/internal/domain/model"
	"github.com/ericfisherdev/tokenvault/internal/domain/port/driven"
)

// Compile-time interface satisfaction checks.
var (
	_ driven.CredentialResolver = (*StaticResolver)(nil)
	_ driven.CredentialResolver = (*SecretResolver)(nil)
	_ driven.CredentialResolver = (*CachingResolver)(nil)
)

// StaticResolver returns connection parameters supplied by configuration.
type StaticResolver struct {
	params          model.ConnParams
	requireUserPass bool
}

// NewStaticResolver creates a resolver for fixed params. When requireUserPass is
// set, an empty or placeholder user or password is rejected on every Resolve.
func NewStaticResolver(params model.ConnParams, requireUserPass bool) *StaticResolver {
	return &StaticResolver{params: params, requireUserPass: requireUserPass}
}

// Resolve returns the configured params.
func (r *StaticResolver) Resolve(ctx context.Context) (model.ConnParams, error) {
	if err := ctx.Err(); err != nil {
		return model.ConnParams{}, err
	}

	if r.requireUserPass {
		if isPlaceholder(r.params.User) {
			return model.ConnParams{}, &model.SecretFormatError{
				Name: "static configuration", Field: "user", Err: errors.New("not configured"),
			}
		}
		if isPlaceholder(r.params.Password) {
			return model.ConnParams{}, &model.SecretFormatError{
				Name: "static configuration", Field: "password", Err: errors.New("not configured"),
			}
		}
	}

	return r.params, nil
}

func isPlaceholder(v string) bool {
	return v == "" || v == model.PlaceholderCredential
}

// secretValidator reports missing fields by their JSON names.
var secretValidator = func() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		tag, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if tag == "-" {
			return ""
		}
		return tag
	})
	return v
}()

// dbSecret is the JSON layout of a database credential secret.
type dbSecret struct {
	Username string          `json:"username" validate:"required"`
	Password string          `json:"password" validate:"required"`
	Host     string          `json:"host" validate:"required"`
	Port     json.RawMessage `json:"port"`
	DBName   string          `json:"dbname"`
}

// SecretResolver looks up a named secret on every call and parses it into
// connection parameters.
type SecretResolver struct {
	source driven.SecretSource
	name   string
}

// NewSecretResolver creates a resolver reading the secret called name from source.
func NewSecretResolver(source driven.SecretSource, name string) *SecretResolver {
	return &SecretResolver{source: source, name: name}
}

// Resolve fetches and parses the secret. Backend failures are returned as
// *model.SecretRetrievalError and payload problems as *model.SecretFormatError.
func (r *SecretResolver) Resolve(ctx context.Context) (model.ConnParams, error) {
	raw, err := r.source.GetSecret(ctx, r.name)
	if err != nil {
		var retrieval *model.SecretRetrievalError
		if errors.As(err, &retrieval) {
			return model.ConnParams{}, err
		}
		return model.ConnParams{}, &model.SecretRetrievalError{Backend: r.source.Name(), Name: r.name, Err: err}
	}

	return ParseDBSecret(r.name, raw)
}

// ParseDBSecret decodes a credential payload of the form
// {"username", "password", "host", "port"?, "dbname"?}. Port defaults to 5432
// and may be a number or a numeric string; dbname defaults to "postgres".
func ParseDBSecret(name, raw string) (model.ConnParams, error) {
	var s dbSecret
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return model.ConnParams{}, &model.SecretFormatError{Name: name, Err: err}
	}

	if err := secretValidator.Struct(s); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			return model.ConnParams{}, &model.SecretFormatError{
				Name: name, Field: fieldErrs[0].Field(), Err: errors.New("required field missing"),
			}
		}
		return model.ConnParams{}, &model.SecretFormatError{Name: name, Err: err}
	}

	port, err := parsePort(s.Port)
	if err != nil {
		return model.ConnParams{}, &model.SecretFormatError{Name: name, Field: "port", Err: err}
	}

	dbName := s.DBName
	if dbName == "" {
		dbName = model.DefaultDatabaseName
	}

	return model.ConnParams{
		Host:     s.Host,
		Port:     port,
		Database: dbName,
		User:     s.Username,
		Password: s.Password,
	}, nil
}

func parsePort(raw json.RawMessage) (int, error) {
	v := strings.TrimSpace(string(raw))
	if v == "" || v == "null" {
		return model.DefaultDatabasePort, nil
	}
	v = strings.Trim(v, `"`)

	port, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("not an integer: %s", v)
	}
	if port < 1 || port > 65535 {
		return 0, fmt.Errorf("out of range: %d", port)
	}
	return port, nil
}

// CachingResolver reuses the params of a wrapped resolver for ttl. Concurrent
// misses share a single lookup. Failures are never cached.
type CachingResolver struct {
	next  driven.CredentialResolver
	ttl   time.Duration
	now   func() time.Time
	group singleflight.Group

	mu      sync.Mutex
	params  model.ConnParams
	expires time.Time
}

// NewCachingResolver wraps next with a time-bounded cache.
func NewCachingResolver(next driven.CredentialResolver, ttl time.Duration) *CachingResolver {
	return &CachingResolver{next: next, ttl: ttl, now: time.Now}
}

// Resolve returns cached params while they are fresh, and resolves otherwise.
// The shared lookup is detached from any single caller's cancellation; each
// caller stops waiting when its own ctx is done.
func (c *CachingResolver) Resolve(ctx context.Context) (model.ConnParams, error) {
	c.mu.Lock()
	if !c.expires.IsZero() && c.now().Before(c.expires) {
		params := c.params
		c.mu.Unlock()
		return params, nil
	}
	c.mu.Unlock()

	ch := c.group.DoChan("resolve", func() (any, error) {
		params, err := c.next.Resolve(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.params = params
		c.expires = c.now().Add(c.ttl)
		c.mu.Unlock()

		return params, nil
	})

	select {
	case <-ctx.Done():
		return model.ConnParams{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return model.ConnParams{}, res.Err
		}
		return res.Val.(model.ConnParams), nil
	}
}
