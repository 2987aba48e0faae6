package sqlstore

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"path"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/ericfisherdev/tokenvault/internal/domain/model"
)

//go:embed migrations
var migrationsFS embed.FS

// migrationsTable returns the version bookkeeping table for kind, so that each
// entity kind can be bootstrapped on its own.
func migrationsTable(kind model.EntityKind) string {
	return "schema_migrations_" + kind.Table()
}

// RunMigrations applies the embedded migrations for a single entity kind.
// It is safe to call on every startup; already-applied migrations are skipped and
// tables created outside the migrator are adopted as-is.
// RunMigrations takes ownership of db and closes it before returning.
func RunMigrations(db *sql.DB, dialect Dialect, kind model.EntityKind) error {
	if !kind.Valid() {
		_ = db.Close()
		return fmt.Errorf("unknown entity kind %q", kind)
	}

	sourceDriver, err := iofs.New(migrationsFS, path.Join("migrations", string(dialect), kind.Table()))
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("create migration source: %w", err)
	}

	dbDriver, err := migrationDriver(db, dialect, kind)
	if err != nil {
		_ = sourceDriver.Close()
		_ = db.Close()
		return fmt.Errorf("create migration db driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, string(dialect), dbDriver)
	if err != nil {
		_ = sourceDriver.Close()
		_ = dbDriver.Close()
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := m.Up()

	// Closing the migrator closes the database driver, which closes db.
	srcErr, dbErr := m.Close()

	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("run %s migrations: %w", kind.Table(), upErr)
	}
	if srcErr != nil {
		return fmt.Errorf("close migration source: %w", srcErr)
	}
	if dbErr != nil {
		return fmt.Errorf("close migration db driver: %w", dbErr)
	}

	return nil
}

func migrationDriver(db *sql.DB, dialect Dialect, kind model.EntityKind) (database.Driver, error) {
	switch dialect {
	case DialectPostgres:
		return migratepgx.WithInstance(db, &migratepgx.Config{MigrationsTable: migrationsTable(kind)})
	case DialectSQLite:
		return migratesqlite.WithInstance(db, &migratesqlite.Config{MigrationsTable: migrationsTable(kind)})
	default:
		return nil, fmt.Errorf("unsupported database dialect %q", dialect)
	}
}
