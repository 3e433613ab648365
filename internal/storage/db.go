package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// Dialect selects the SQL flavour and database/sql driver
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

var (
	// ErrProjectNotFound is returned when a project ID is unknown
	ErrProjectNotFound = errors.New("project not found")

	// ErrUnknownDialect is returned for an unsupported database dialect
	ErrUnknownDialect = errors.New("unknown database dialect")
)

// DB wraps a database handle with the dialect its queries are written for
type DB struct {
	logger  *zap.Logger
	db      *sql.DB
	dialect Dialect
}

// Open connects to the database and creates the schema if needed
func Open(ctx context.Context, dialect Dialect, dsn string, logger *zap.Logger) (*DB, error) {
	var driver string
	switch dialect {
	case DialectSQLite:
		driver = "sqlite3"
	case DialectPostgres:
		driver = "pgx"
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDialect, dialect)
	}

	db, err := sql.Open(driver, strings.TrimSpace(dsn))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dialect == DialectSQLite {
		// A single writer avoids "database is locked" under concurrent requests
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	d := &DB{
		logger:  logger.Named("storage"),
		db:      db,
		dialect: dialect,
	}
	if err := d.initialize(ctx); err != nil {
		db.Close()
		return nil, err
	}

	d.logger.Info("Database ready", zap.String("dialect", string(dialect)))
	return d, nil
}

// initialize creates the necessary tables if they don't exist
func (d *DB) initialize(ctx context.Context) error {
	schema := sqliteSchema
	if d.dialect == DialectPostgres {
		schema = postgresSchema
	}
	if _, err := d.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	return nil
}

// rebind rewrites ? placeholders into $n for Postgres
func (d *DB) rebind(query string) string {
	if d.dialect != DialectPostgres {
		return query
	}
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

// Close closes the database connection
func (d *DB) Close() error {
	return d.db.Close()
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS projects (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	start_date TEXT,
	tasks TEXT NOT NULL,
	foundation_results TEXT,
	last_modified DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_projects_last_modified ON projects(last_modified);

CREATE TABLE IF NOT EXISTS calculation_history (
	id TEXT PRIMARY KEY,
	project_name TEXT NOT NULL,
	mode TEXT NOT NULL,
	task_count INTEGER NOT NULL,
	total_duration_days REAL NOT NULL,
	overall_risk_level TEXT,
	high_risk_task_count INTEGER NOT NULL,
	error TEXT,
	started_at DATETIME NOT NULL,
	duration INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_calculation_history_started_at ON calculation_history(started_at);
CREATE INDEX IF NOT EXISTS idx_calculation_history_project_name ON calculation_history(project_name);
`

const postgresSchema = `
CREATE TABLE IF NOT EXISTS projects (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	start_date TEXT,
	tasks TEXT NOT NULL,
	foundation_results TEXT,
	last_modified TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_projects_last_modified ON projects(last_modified);

CREATE TABLE IF NOT EXISTS calculation_history (
	id TEXT PRIMARY KEY,
	project_name TEXT NOT NULL,
	mode TEXT NOT NULL,
	task_count INTEGER NOT NULL,
	total_duration_days DOUBLE PRECISION NOT NULL,
	overall_risk_level TEXT,
	high_risk_task_count INTEGER NOT NULL,
	error TEXT,
	started_at TIMESTAMPTZ NOT NULL,
	duration BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_calculation_history_started_at ON calculation_history(started_at);
CREATE INDEX IF NOT EXISTS idx_calculation_history_project_name ON calculation_history(project_name);
`
