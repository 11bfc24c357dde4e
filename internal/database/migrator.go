package database

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog"
)

// MigrationsTable records the applied schema version.
const MigrationsTable = "schema_migrations"

var (
	errNoDatabase     = errors.New("database is required")
	errNoPool         = errors.New("database pool not initialized")
	errNoMigrationDir = errors.New("migrations path is required")
)

// Migrator applies the SQL files under migrations/ to the status database.
type Migrator struct {
	migrate *migrate.Migrate
	sqlDB   *sql.DB // database/sql view of the pgx pool, closed with the migrator
	logger  zerolog.Logger
}

// NewMigrator opens a golang-migrate instance over db's pool reading from migrationsPath.
func NewMigrator(db *DB, migrationsPath string, logger zerolog.Logger) (*Migrator, error) {
	switch {
	case db == nil:
		return nil, errNoDatabase
	case db.pool == nil:
		return nil, errNoPool
	case migrationsPath == "":
		return nil, errNoMigrationDir
	}
	if _, err := os.Stat(migrationsPath); err != nil {
		return nil, fmt.Errorf("migrations path validation failed: %w", err)
	}
	source, err := filepath.Abs(migrationsPath)
	if err != nil {
		return nil, fmt.Errorf("resolve migrations path: %w", err)
	}

	sqlDB := stdlib.OpenDBFromPool(db.pool)
	driver, err := postgres.WithInstance(sqlDB, &postgres.Config{MigrationsTable: MigrationsTable})
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("create postgres migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+filepath.ToSlash(source), "postgres", driver)
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("create migrator: %w", err)
	}
	m.Log = migrateLogger{logger: logger}

	return &Migrator{
		migrate: m,
		sqlDB:   sqlDB,
		logger:  logger.With().Str("migrations", source).Logger(),
	}, nil
}

// MigrateUp applies every pending migration in migrationsPath and closes
// the migrator. Used when the server starts with migration_auto_run.
func MigrateUp(db *DB, migrationsPath string, logger zerolog.Logger) error {
	m, err := NewMigrator(db, migrationsPath, logger)
	if err != nil {
		return err
	}
	upErr := m.Up()
	if closeErr := m.Close(); closeErr != nil && upErr == nil {
		return closeErr
	}
	return upErr
}

// Up applies all pending migrations. Nothing to apply is not an error.
func (m *Migrator) Up() error {
	return m.run("up", m.migrate.Up)
}

// Down rolls back every migration.
func (m *Migrator) Down() error {
	return m.run("down", m.migrate.Down)
}

// Steps applies n migrations forward, or -n backward when n is negative.
// Stepping past the newest or oldest file is treated as nothing to do.
func (m *Migrator) Steps(n int) error {
	return m.run(fmt.Sprintf("steps %+d", n), func() error { return m.migrate.Steps(n) })
}

// Version returns the current schema version and whether the last migration left it dirty.
func (m *Migrator) Version() (uint, bool, error) {
	return m.migrate.Version()
}

// Force marks version as applied and clears the dirty flag without running any SQL.
func (m *Migrator) Force(version int) error {
	m.logger.Warn().Int("version", version).Msg("forcing migration version")
	if err := m.migrate.Force(version); err != nil {
		return fmt.Errorf("force version %d: %w", version, err)
	}
	return nil
}

// Close releases the migration source and the database/sql handle.
func (m *Migrator) Close() error {
	sourceErr, dbErr := m.migrate.Close()
	if m.sqlDB != nil {
		if err := m.sqlDB.Close(); err != nil && dbErr == nil {
			dbErr = err
		}
	}

	var errs []error
	if sourceErr != nil {
		errs = append(errs, fmt.Errorf("close migration source: %w", sourceErr))
	}
	if dbErr != nil {
		errs = append(errs, fmt.Errorf("close migration database: %w", dbErr))
	}
	return errors.Join(errs...)
}

func (m *Migrator) run(op string, fn func() error) error {
	start := time.Now()
	m.logger.Info().Str("op", op).Msg("running migrations")

	err := fn()
	switch {
	case errors.Is(err, migrate.ErrNoChange), errors.Is(err, os.ErrNotExist):
		m.logger.Info().Str("op", op).Msg("schema already up to date")
		return nil
	case err != nil:
		return fmt.Errorf("migrate %s: %w", op, err)
	}

	m.logger.Info().Str("op", op).Dur("elapsed", time.Since(start)).Msg("migrations applied")
	return nil
}

// migrateLogger forwards golang-migrate's own messages to zerolog at debug level.
type migrateLogger struct {
	logger zerolog.Logger
}

func (l migrateLogger) Printf(format string, v ...interface{}) {
	l.logger.Debug().Str("source", "golang-migrate").Msg(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (l migrateLogger) Verbose() bool {
	return l.logger.GetLevel() <= zerolog.DebugLevel
}
