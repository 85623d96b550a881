// Package sqlstore implements ports.ScenarioStore on SQLite or PostgreSQL.
//
// The schema is created on open from the embedded migrations. Step conditions
// are persisted as their authored JSON document and parsed on read.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "embed"

	"github.com/aretw0/parley/internal/logging"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Supported database/sql driver names.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

const (
	// DefaultDirPermissions is used when creating the SQLite file's directory.
	DefaultDirPermissions = 0755

	DefaultMaxOpenConns    = 25
	DefaultMaxIdleConns    = 25
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_sqlite.sql
var sqliteMigrations string

//go:embed migrations_postgres.sql
var postgresMigrations string

// Opts holds the connection settings.
type Opts struct {
	DSN    string
	Driver string
	Logger *slog.Logger
}

// Option configures Open.
type Option func(*Opts)

// WithDSN sets the data source name. For SQLite this is a file path.
func WithDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithDriver forces a driver instead of detecting it from the DSN.
func WithDriver(driver string) Option {
	return func(o *Opts) { o.Driver = driver }
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *Opts) { o.Logger = logger }
}

// DetectDriver guesses the driver from the DSN shape.
func DetectDriver(dsn string) string {
	lower := strings.ToLower(strings.TrimSpace(dsn))
	if strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://") ||
		strings.Contains(lower, "host=") || strings.Contains(lower, "dbname=") {
		return DriverPostgres
	}
	return DriverSQLite
}

// Store is a SQL-backed scenario repository.
type Store struct {
	db     *sql.DB
	driver string
	logger *slog.Logger
}

// Open connects, configures the pool and applies migrations.
func Open(opts ...Option) (*Store, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	if cfg.DSN == "" {
		logger.Error("SQL store DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}
	driver := cfg.Driver
	if driver == "" {
		driver = DetectDriver(cfg.DSN)
	}
	logger = logger.With("driver", driver)

	var migrations string
	switch driver {
	case DriverSQLite:
		dir := filepath.Dir(cfg.DSN)
		if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
			logger.Error("Failed to create database directory", "error", err, "dir", dir)
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		migrations = sqliteMigrations
	case DriverPostgres:
		migrations = postgresMigrations
	default:
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}

	logger.Debug("Opening database connection")
	db, err := sql.Open(driver, cfg.DSN)
	if err != nil {
		logger.Error("Failed to open database connection", "error", err)
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if driver == DriverSQLite {
		// One writer avoids "database is locked" under concurrent turns.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(DefaultMaxOpenConns)
		db.SetMaxIdleConns(DefaultMaxIdleConns)
		db.SetConnMaxLifetime(DefaultConnMaxLifetime)
	}

	if err := db.Ping(); err != nil {
		logger.Error("Database ping failed", "error", err)
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Debug("Running migrations")
	if _, err := db.Exec(migrations); err != nil {
		logger.Error("Failed to run migrations", "error", err)
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	logger.Debug("Migrations applied successfully")

	return &Store{db: db, driver: driver, logger: logger}, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Driver reports the active driver name.
func (s *Store) Driver() string {
	return s.driver
}

// rebind rewrites ? placeholders into $n for PostgreSQL.
func (s *Store) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	return rebindDollar(query)
}

func rebindDollar(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 8)
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

func (s *Store) exec(ctx context.Context, q execer, query string, args ...any) (sql.Result, error) {
	return q.ExecContext(ctx, s.rebind(query), args...)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// syncSequence moves a BIGSERIAL past explicitly inserted ids.
func (s *Store) syncSequence(ctx context.Context, q execer, table string) error {
	if s.driver != DriverPostgres {
		return nil
	}
	query := fmt.Sprintf(
		"SELECT setval(pg_get_serial_sequence('%s', 'id'), GREATEST((SELECT COALESCE(MAX(id), 0) FROM %s), 1))",
		table, table)
	var ignored int64
	return q.QueryRowContext(ctx, query).Scan(&ignored)
}
