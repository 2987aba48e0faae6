package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/ericfisherdev/tokenvault/internal/domain/model"
)

// stubResolver returns fixed params (or a fixed error) and counts calls.
type stubResolver struct {
	params model.ConnParams
	err    error
	calls  atomic.Int32
}

func (r *stubResolver) Resolve(context.Context) (model.ConnParams, error) {
	r.calls.Add(1)
	if r.err != nil {
		return model.ConnParams{}, r.err
	}
	return r.params, nil
}

// setupTestRepo creates a TokenRepo over a sqlite file in a per-test temp dir,
// using a per-call connector unless pooled is set. Both schemas are ensured.
func setupTestRepo(t *testing.T, pooled bool) (*TokenRepo, *stubResolver, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "tokens.db")
	resolver := &stubResolver{params: model.ConnParams{Database: path}}
	opts := Options{Dialect: DialectSQLite, MaxOpenConns: 4}

	var conn Connector
	if pooled {
		conn = NewPoolConnector(resolver, opts)
	} else {
		conn = NewDialConnector(resolver, opts)
	}
	t.Cleanup(func() { _ = conn.Close() })

	repo := NewTokenRepo(conn)
	ctx := context.Background()
	for _, kind := range model.EntityKinds {
		if err := repo.EnsureSchema(ctx, kind); err != nil {
			t.Fatalf("ensure schema %s: %v", kind, err)
		}
	}

	return repo, resolver, path
}

// countRows opens an independent handle on path and counts rows matching key.
func countRows(t *testing.T, path string, kind model.EntityKind, key string) int {
	t.Helper()

	db, err := sql.Open("sqlite", "file:"+path)
	if err != nil {
		t.Fatalf("open verification db: %v", err)
	}
	defer db.Close()

	var n int
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE %s = ?`, kind.Table(), kind.IdentityColumn())
	if err := db.QueryRow(query, key).Scan(&n); err != nil {
		t.Fatalf("count rows: %v", err)
	}
	return n
}

// countTables counts sqlite tables called name.
func countTables(t *testing.T, path, name string) int {
	t.Helper()

	db, err := sql.Open("sqlite", "file:"+path)
	if err != nil {
		t.Fatalf("open verification db: %v", err)
	}
	defer db.Close()

	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, name).Scan(&n); err != nil {
		t.Fatalf("count tables: %v", err)
	}
	return n
}
