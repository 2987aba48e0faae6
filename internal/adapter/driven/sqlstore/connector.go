package sqlstore

import (
	"context"
	"database/sql"
	"sync"

	"github.com/ericfisherdev/tokenvault/internal/domain/port/driven"
)

// Connector hands out database handles to store operations.
type Connector interface {
	// Acquire returns a handle for a single operation and a release func that
	// must be called on every exit path.
	Acquire(ctx context.Context) (*sql.DB, func() error, error)

	// Dial opens a fresh handle owned by the caller, regardless of pooling.
	Dial(ctx context.Context) (*sql.DB, error)

	Dialect() Dialect
	Close() error
}

var (
	_ Connector = (*DialConnector)(nil)
	_ Connector = (*PoolConnector)(nil)
)

// DialConnector resolves credentials and opens a new connection for every operation,
// closing it again on release. Rotated secrets are picked up on the next call.
type DialConnector struct {
	resolver driven.CredentialResolver
	opts     Options
}

// NewDialConnector creates a per-call connector.
func NewDialConnector(resolver driven.CredentialResolver, opts Options) *DialConnector {
	return &DialConnector{resolver: resolver, opts: opts}
}

// Dial resolves credentials and opens a single-connection handle.
func (c *DialConnector) Dial(ctx context.Context) (*sql.DB, error) {
	params, err := c.resolver.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	return openDB(ctx, c.opts, params, 1)
}

// Acquire dials a new handle; release closes it.
func (c *DialConnector) Acquire(ctx context.Context) (*sql.DB, func() error, error) {
	db, err := c.Dial(ctx)
	if err != nil {
		return nil, nil, err
	}
	return db, db.Close, nil
}

// Dialect returns the configured dialect.
func (c *DialConnector) Dialect() Dialect { return c.opts.Dialect }

// Close is a no-op; per-call handles are closed on release.
func (c *DialConnector) Close() error { return nil }

// PoolConnector opens one shared handle on first use and checks it out to every
// operation. Credentials are resolved once, when the pool is opened.
type PoolConnector struct {
	resolver driven.CredentialResolver
	opts     Options

	mu sync.Mutex
	db *sql.DB
}

// NewPoolConnector creates a pooled connector. Nothing is opened until first use.
func NewPoolConnector(resolver driven.CredentialResolver, opts Options) *PoolConnector {
	return &PoolConnector{resolver: resolver, opts: opts}
}

// Acquire returns the shared handle, opening it if needed. Release is a no-op.
func (c *PoolConnector) Acquire(ctx context.Context) (*sql.DB, func() error, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.db == nil {
		params, err := c.resolver.Resolve(ctx)
		if err != nil {
			return nil, nil, err
		}
		db, err := openDB(ctx, c.opts, params, c.opts.MaxOpenConns)
		if err != nil {
			return nil, nil, err
		}
		c.db = db
	}

	return c.db, func() error { return nil }, nil
}

// Dial opens a dedicated handle outside the pool.
func (c *PoolConnector) Dial(ctx context.Context) (*sql.DB, error) {
	params, err := c.resolver.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	return openDB(ctx, c.opts, params, 1)
}

// Dialect returns the configured dialect.
func (c *PoolConnector) Dialect() Dialect { return c.opts.Dialect }

// Close closes the shared handle if it was opened.
func (c *PoolConnector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.db == nil {
		return nil
	}
	err := c.db.Close()
	c.db = nil
	return err
}
