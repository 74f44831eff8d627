package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	_ "modernc.org/sqlite"

	"github.com/elys-network/clpm/internal/logger"
)

var stateLogger = logger.GetForComponent("state")

var ErrNotInitialized = errors.New("database not initialized")

// Dialect selects placeholder style and driver.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// DBConfig holds database connection parameters.
type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string // "disable", "require", "verify-full", etc.
}

// Store persists the manager state, fee records and operation records.
type Store struct {
	db      *sql.DB
	dialect Dialect
}

// OpenPostgres connects to PostgreSQL and ensures the schema.
func OpenPostgres(ctx context.Context, cfg DBConfig) (*Store, error) {
	psqlInfo := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)

	db, err := sql.Open("postgres", psqlInfo)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	s := &Store{db: db, dialect: DialectPostgres}
	if err := s.init(ctx); err != nil {
		db.Close()
		return nil, err
	}

	stateLogger.Info().Str("host", cfg.Host).Str("db", cfg.DBName).Msg("Successfully connected to the PostgreSQL database")
	return s, nil
}

// OpenSQLite opens (or creates) a SQLite database at path. ":memory:" is accepted.
func OpenSQLite(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite %q: %w", path, err)
	}
	// Single writer; also keeps an in-memory database on one connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db, dialect: DialectSQLite}
	if err := s.init(ctx); err != nil {
		db.Close()
		return nil, err
	}

	stateLogger.Info().Str("path", path).Msg("Opened SQLite database")
	return s, nil
}

func (s *Store) init(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	return s.EnsureSchema(ctx)
}

// Close closes the database connection pool.
func (s *Store) Close() {
	if s == nil || s.db == nil {
		return
	}
	stateLogger.Info().Msg("Closing database connection...")
	if err := s.db.Close(); err != nil {
		stateLogger.Error().Err(err).Msg("Error closing database connection")
	}
}

// Dialect reports which backend the store runs on.
func (s *Store) Dialect() Dialect {
	return s.dialect
}

// schemaStatements is portable across PostgreSQL and SQLite. Amounts are decimal strings
// in token minor units; timestamps are unix microseconds.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS manager_state (
		id INTEGER PRIMARY KEY,
		position_id BIGINT NOT NULL DEFAULT 0,
		tick_lower INTEGER NOT NULL DEFAULT 0,
		tick_upper INTEGER NOT NULL DEFAULT 0,
		range_percent DOUBLE PRECISION NOT NULL,
		tick_spacing INTEGER NOT NULL,
		pending_close TEXT NOT NULL DEFAULT '',
		updated_at BIGINT NOT NULL,
		CONSTRAINT single_row_check CHECK (id = 1)
	)`,
	`CREATE TABLE IF NOT EXISTS fee_records (
		id VARCHAR(36) PRIMARY KEY,
		recorded_at BIGINT NOT NULL,
		position_id BIGINT NOT NULL,
		source VARCHAR(16) NOT NULL,
		amount_a TEXT NOT NULL,
		amount_b TEXT NOT NULL,
		usd_value DOUBLE PRECISION NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_fee_records_recorded_at ON fee_records(recorded_at DESC)`,
	`CREATE TABLE IF NOT EXISTS operation_records (
		id VARCHAR(36) PRIMARY KEY,
		recorded_at BIGINT NOT NULL,
		op_type VARCHAR(32) NOT NULL,
		position_id BIGINT NOT NULL,
		tick_lower INTEGER NOT NULL,
		tick_upper INTEGER NOT NULL,
		amount_a TEXT NOT NULL,
		amount_b TEXT NOT NULL,
		liquidity TEXT NOT NULL,
		success BOOLEAN NOT NULL,
		message TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_operation_records_recorded_at ON operation_records(recorded_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_operation_records_type ON operation_records(op_type)`,
	`CREATE TABLE IF NOT EXISTS cycle_counter (
		id INTEGER PRIMARY KEY,
		current_cycle INTEGER NOT NULL DEFAULT 0,
		updated_at BIGINT NOT NULL DEFAULT 0,
		CONSTRAINT single_row_check CHECK (id = 1)
	)`,
	`INSERT INTO cycle_counter (id, current_cycle) VALUES (1, 0) ON CONFLICT (id) DO NOTHING`,
}

// EnsureSchema applies the DDL to create tables if they don't exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if s == nil || s.db == nil {
		return ErrNotInitialized
	}
	for _, stmt := range schemaStatements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute schema DDL: %w", err)
		}
	}
	stateLogger.Info().Str("dialect", string(s.dialect)).Msg("Database schema ensured")
	return nil
}

// DropSchema removes every table. Used by the reset script.
func (s *Store) DropSchema(ctx context.Context) error {
	if s == nil || s.db == nil {
		return ErrNotInitialized
	}
	for _, table := range []string{"operation_records", "fee_records", "manager_state", "cycle_counter"} {
		if _, err := s.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table); err != nil {
			return fmt.Errorf("failed to drop %s: %w", table, err)
		}
		stateLogger.Warn().Str("table", table).Msg("Dropped table")
	}
	return nil
}

// CheckHealth tests if the database connection is healthy.
func (s *Store) CheckHealth(ctx context.Context) error {
	if s == nil || s.db == nil {
		return ErrNotInitialized
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}

// rebind rewrites ? placeholders to $n for PostgreSQL.
func (s *Store) rebind(query string) string {
	if s.dialect != DialectPostgres {
		return query
	}
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

func toMicros(t time.Time) int64 {
	return t.UTC().UnixMicro()
}

func fromMicros(v int64) time.Time {
	return time.UnixMicro(v).UTC()
}
