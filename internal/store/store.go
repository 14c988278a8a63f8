// Package store provides SQLite-backed persistence for nodes, metric samples,
// alert rules and the alert log.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

const (
	defaultBusyTimeout = 5 * time.Second
	defaultChunkSize   = 1000
	valuePrecision     = 4 // decimal(16,4)
)

// Store is the single handle to the monitor database. All writers share one
// connection; each batch is its own transaction.
type Store struct {
	db        *sql.DB
	chunkSize int
	now       func() time.Time
	logger    zerolog.Logger
}

// Option is a functional option for configuring a Store.
type Option func(*Store)

// WithChunkSize sets the row count deleted per cleanup statement.
func WithChunkSize(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.chunkSize = n
		}
	}
}

// WithNow overrides the clock used for freshness windows.
func WithNow(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// Open opens (creating if needed) the database at path and applies the schema.
func Open(path string, busyTimeout time.Duration, logger zerolog.Logger, opts ...Option) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}
	if busyTimeout <= 0 {
		busyTimeout = defaultBusyTimeout
	}

	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	dsn := path + "?" + url.Values{
		"_pragma": []string{
			fmt.Sprintf("busy_timeout(%d)", busyTimeout.Milliseconds()),
			"journal_mode(WAL)",
			"synchronous(NORMAL)",
			"foreign_keys(1)",
		},
	}.Encode()

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite allows one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &Store{
		db:        db,
		chunkSize: defaultChunkSize,
		now:       time.Now,
		logger:    logger.With().Str("component", "store").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}

	s.logger.Debug().Str("path", path).Msg("database opened")
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS nodes (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE,
			type TEXT NOT NULL,
			host TEXT NOT NULL,
			port INTEGER NOT NULL DEFAULT 0,
			credentials TEXT,
			is_active INTEGER NOT NULL DEFAULT 1,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_nodes_type_active ON nodes(type, is_active)`,
		`CREATE TABLE IF NOT EXISTS metrics (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			node_id INTEGER NOT NULL REFERENCES nodes(id) ON DELETE CASCADE,
			type TEXT NOT NULL,
			value REAL NOT NULL,
			metadata TEXT,
			recorded_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_metrics_node_type_time ON metrics(node_id, type, recorded_at)`,
		`CREATE INDEX IF NOT EXISTS idx_metrics_recorded_at ON metrics(recorded_at)`,
		`CREATE TABLE IF NOT EXISTS alert_rules (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE,
			node_id INTEGER REFERENCES nodes(id) ON DELETE CASCADE,
			metric_type TEXT NOT NULL,
			condition TEXT NOT NULL,
			threshold REAL NOT NULL,
			channel TEXT NOT NULL,
			target TEXT,
			is_active INTEGER NOT NULL DEFAULT 1,
			cooldown_seconds INTEGER NOT NULL DEFAULT 900,
			last_triggered_at INTEGER,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_alert_rules_active_type ON alert_rules(is_active, metric_type)`,
		`CREATE TABLE IF NOT EXISTS alert_logs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			alert_id INTEGER NOT NULL REFERENCES alert_rules(id) ON DELETE CASCADE,
			node_id INTEGER NOT NULL REFERENCES nodes(id) ON DELETE CASCADE,
			metric_value REAL NOT NULL,
			message TEXT NOT NULL,
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_alert_logs_created ON alert_logs(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_alert_logs_alert_created ON alert_logs(alert_id, created_at)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}

// roundValue rounds to the stored decimal precision.
func roundValue(v float64) float64 {
	return decimal.NewFromFloat(v).Round(valuePrecision).InexactFloat64()
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
