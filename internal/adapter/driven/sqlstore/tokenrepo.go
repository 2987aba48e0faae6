package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/ericfisherdev/tokenvault/internal/domain/model"
	"github.com/ericfisherdev/tokenvault/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.TokenStore = (*TokenRepo)(nil)

// statements holds the dialect-specific SQL for one entity kind.
type statements struct {
	upsert      string
	fetch       string
	fetchRecord string
}

// TokenRepo is the database/sql implementation of the TokenStore port interface.
// It holds no state between calls beyond the connector; every operation checks
// out a handle, runs one statement and releases the handle.
type TokenRepo struct {
	conn  Connector
	stmts map[model.EntityKind]statements
}

// NewTokenRepo creates a new TokenRepo using conn for every operation.
func NewTokenRepo(conn Connector) *TokenRepo {
	stmts := make(map[model.EntityKind]statements, len(model.EntityKinds))
	for _, kind := range model.EntityKinds {
		stmts[kind] = buildStatements(conn.Dialect(), kind)
	}
	return &TokenRepo{conn: conn, stmts: stmts}
}

func buildStatements(dialect Dialect, kind model.EntityKind) statements {
	table, col := kind.Table(), kind.IdentityColumn()

	s := statements{
		upsert: fmt.Sprintf(`
		INSERT INTO %[1]s (%[2]s, refresh_token)
		VALUES (?, ?)
		ON CONFLICT(%[2]s) DO UPDATE SET
			refresh_token = excluded.refresh_token,
			updated_at = CURRENT_TIMESTAMP
	`, table, col),
		fetch: fmt.Sprintf(`SELECT refresh_token FROM %s WHERE %s = ?`, table, col),
		fetchRecord: fmt.Sprintf(`
		SELECT %[2]s, refresh_token, created_at, updated_at
		FROM %[1]s
		WHERE %[2]s = ?
	`, table, col),
	}

	if dialect == DialectPostgres {
		s.upsert = rebind(s.upsert)
		s.fetch = rebind(s.fetch)
		s.fetchRecord = rebind(s.fetchRecord)
	}
	return s
}

// rebind rewrites ? placeholders into postgres $n placeholders.
func rebind(query string) string {
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// EnsureSchema creates the table backing kind if it does not already exist.
// Migrations always run on a dedicated handle, never on a pooled one.
func (r *TokenRepo) EnsureSchema(ctx context.Context, kind model.EntityKind) error {
	if !kind.Valid() {
		return &model.ValidationError{Field: "kind", Reason: fmt.Sprintf("unknown entity kind %q", kind)}
	}

	db, err := r.conn.Dial(ctx)
	if err != nil {
		return unavailable("ensure schema", kind, err)
	}

	if err := RunMigrations(db, r.conn.Dialect(), kind); err != nil {
		return unavailable("ensure schema", kind, err)
	}
	return nil
}

// StoreToken inserts or updates the refresh token for key in a single
// conflict-resolving statement.
func (r *TokenRepo) StoreToken(ctx context.Context, kind model.EntityKind, key, refreshToken string) error {
	stmts, err := r.statementsFor(kind, key)
	if err != nil {
		return err
	}

	return r.withDB(ctx, "store token", kind, func(db *sql.DB) error {
		if _, err := db.ExecContext(ctx, stmts.upsert, key, refreshToken); err != nil {
			return fmt.Errorf("upsert %s %q: %w", kind, key, err)
		}
		return nil
	})
}

// FetchToken retrieves the refresh token for key.
// Returns ("", false, nil) if no row matches.
func (r *TokenRepo) FetchToken(ctx context.Context, kind model.EntityKind, key string) (string, bool, error) {
	stmts, err := r.statementsFor(kind, key)
	if err != nil {
		return "", false, err
	}

	var (
		token string
		found bool
	)
	err = r.withDB(ctx, "fetch token", kind, func(db *sql.DB) error {
		err := db.QueryRowContext(ctx, stmts.fetch, key).Scan(&token)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("select %s %q: %w", kind, key, err)
		}
		found = true
		return nil
	})
	if err != nil {
		return "", false, err
	}

	return token, found, nil
}

// FetchRecord retrieves the full row for key, timestamps included.
// Returns (zero, false, nil) if no row matches.
func (r *TokenRepo) FetchRecord(ctx context.Context, kind model.EntityKind, key string) (model.TokenRecord, bool, error) {
	stmts, err := r.statementsFor(kind, key)
	if err != nil {
		return model.TokenRecord{}, false, err
	}

	rec := model.TokenRecord{Kind: kind}
	found := false
	err = r.withDB(ctx, "fetch record", kind, func(db *sql.DB) error {
		var createdAt, updatedAt any
		err := db.QueryRowContext(ctx, stmts.fetchRecord, key).Scan(
			&rec.IdentityKey, &rec.RefreshToken, &createdAt, &updatedAt,
		)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("select %s %q: %w", kind, key, err)
		}

		if rec.CreatedAt, err = scanTime(createdAt); err != nil {
			return fmt.Errorf("parse created_at for %s %q: %w", kind, key, err)
		}
		if rec.UpdatedAt, err = scanTime(updatedAt); err != nil {
			return fmt.Errorf("parse updated_at for %s %q: %w", kind, key, err)
		}
		found = true
		return nil
	})
	if err != nil || !found {
		return model.TokenRecord{}, false, err
	}

	return rec, true, nil
}

// Ping checks out a handle and pings it.
func (r *TokenRepo) Ping(ctx context.Context) error {
	return r.withDB(ctx, "ping", "", func(db *sql.DB) error {
		return db.PingContext(ctx)
	})
}

// statementsFor returns the statements for kind after rejecting addresses that
// can never match a row.
func (r *TokenRepo) statementsFor(kind model.EntityKind, key string) (statements, error) {
	stmts, ok := r.stmts[kind]
	if !ok {
		return statements{}, &model.ValidationError{Field: "kind", Reason: fmt.Sprintf("unknown entity kind %q", kind)}
	}
	if key == "" {
		return statements{}, &model.ValidationError{Field: "identity_key", Reason: "must not be empty"}
	}
	return stmts, nil
}

// withDB runs fn on a checked-out handle and releases it on every exit path.
func (r *TokenRepo) withDB(ctx context.Context, op string, kind model.EntityKind, fn func(db *sql.DB) error) error {
	db, release, err := r.conn.Acquire(ctx)
	if err != nil {
		return unavailable(op, kind, err)
	}
	defer func() {
		if err := release(); err != nil {
			slog.WarnContext(ctx, "release connection failed", "op", op, "kind", kind, "error", err)
		}
	}()

	if err := fn(db); err != nil {
		return unavailable(op, kind, err)
	}
	return nil
}

// unavailable wraps err as a StorageUnavailableError unless it already carries a
// credential resolution or storage classification.
func unavailable(op string, kind model.EntityKind, err error) error {
	var (
		retrieval *model.SecretRetrievalError
		format    *model.SecretFormatError
		storage   *model.StorageUnavailableError
	)
	if errors.As(err, &retrieval) || errors.As(err, &format) || errors.As(err, &storage) {
		return err
	}
	return &model.StorageUnavailableError{Op: op, Kind: kind, Err: err}
}
