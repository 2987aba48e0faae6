package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/ericfisherdev/tokenvault/internal/domain/model"
)

// Dialect names the relational backend behind the token store.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// ParseDialect converts a configuration value into a Dialect.
func ParseDialect(s string) (Dialect, error) {
	switch d := Dialect(strings.ToLower(s)); d {
	case DialectPostgres, DialectSQLite:
		return d, nil
	default:
		return "", fmt.Errorf("unsupported database dialect %q", s)
	}
}

// NeedsCredentials reports whether the dialect authenticates with a user and password.
func (d Dialect) NeedsCredentials() bool {
	return d == DialectPostgres
}

func (d Dialect) driverName() string {
	if d == DialectSQLite {
		return "sqlite"
	}
	return "pgx"
}

// dsn builds the driver connection string for params. The password is only ever
// embedded in the returned string, never logged.
func (d Dialect) dsn(params model.ConnParams, sslMode string) (string, error) {
	switch d {
	case DialectPostgres:
		if params.Host == "" {
			return "", fmt.Errorf("postgres host is empty")
		}
		u := url.URL{
			Scheme: "postgres",
			User:   url.UserPassword(params.User, params.Password),
			Host:   net.JoinHostPort(params.Host, strconv.Itoa(params.Port)),
			Path:   "/" + params.Database,
		}
		if sslMode != "" {
			u.RawQuery = url.Values{"sslmode": []string{sslMode}}.Encode()
		}
		return u.String(), nil
	case DialectSQLite:
		if params.Database == "" {
			return "", fmt.Errorf("sqlite database path is empty")
		}
		return fmt.Sprintf(
			"file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)",
			escapeSQLitePath(params.Database),
		), nil
	default:
		return "", fmt.Errorf("unsupported database dialect %q", d)
	}
}

// escapeSQLitePath percent-encodes each path segment so that characters such as
// '?' and '#' in a file name cannot be read as the start of the DSN query.
func escapeSQLitePath(p string) string {
	segments := strings.Split(filepath.ToSlash(p), "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return strings.Join(segments, "/")
}

// Options controls how connections to the store are opened.
type Options struct {
	Dialect Dialect
	// SSLMode is passed through to postgres as the sslmode parameter when non-empty.
	SSLMode string
	// ConnectTimeout bounds the initial ping of a freshly opened handle. Zero disables it.
	ConnectTimeout time.Duration
	// MaxOpenConns caps the pooled handle. Per-call handles always use a single connection.
	MaxOpenConns int
}

// openDB opens a handle for params and pings it. The caller owns the returned handle.
func openDB(ctx context.Context, opts Options, params model.ConnParams, maxOpen int) (*sql.DB, error) {
	dsn, err := opts.Dialect.dsn(params, opts.SSLMode)
	if err != nil {
		return nil, err
	}

	if opts.Dialect == DialectSQLite {
		if err := os.MkdirAll(filepath.Dir(params.Database), 0o700); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open(opts.Dialect.driverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", opts.Dialect, err)
	}
	if maxOpen > 0 {
		db.SetMaxOpenConns(maxOpen)
	}

	pingCtx := ctx
	if opts.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, opts.ConnectTimeout)
		defer cancel()
	}

	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		if opts.Dialect == DialectSQLite {
			return nil, fmt.Errorf("ping %s: %w", params.Database, err)
		}
		return nil, fmt.Errorf("ping %s: %w", params.Address(), err)
	}

	return db, nil
}

// scanTime converts a timestamp column into a time.Time. Postgres yields time.Time
// directly; sqlite may yield the CURRENT_TIMESTAMP text form.
func scanTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case string:
		return parseTime(t)
	case []byte:
		return parseTime(string(t))
	case nil:
		return time.Time{}, nil
	default:
		return time.Time{}, fmt.Errorf("unsupported timestamp type %T", v)
	}
}

func parseTime(s string) (time.Time, error) {
	formats := []string{
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05Z",
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05.000",
		"2006-01-02 15:04:05.999999999-07:00",
		time.RFC3339,
		time.RFC3339Nano,
	}

	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t.UTC(), nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized time format: %s", s)
}
