// Package store is the SQLite persistence layer: roster, orders, priorities,
// global settings, the carryover ledger, and published runs. One store
// serves both the HTTP API and the planner; SQLite's single-writer model is
// enforced by capping the pool at one connection.
package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"arksched/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

// Date-only columns use the local day, matching how the shop floor talks
// about dates. Timestamp columns are RFC3339.
const dayFormat = "2006-01-02"

// Config configures the store.
type Config struct {
	Path        string
	BusyTimeout time.Duration // 0 means default
}

// Store wraps the SQLite handle. Safe for concurrent use.
type Store struct {
	db  *sql.DB
	log logx.Logger
}

func Open(cfg Config, log logx.Logger) (*Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("storage path is required")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db, log: log}

	// Basic pragmas.
	if cfg.BusyTimeout > 0 {
		ms := cfg.BusyTimeout.Milliseconds()
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", ms))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")
	_, _ = db.Exec("PRAGMA foreign_keys = ON")

	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func formatDay(t time.Time) string { return t.Format(dayFormat) }

func parseDay(v string) (time.Time, error) {
	return time.ParseInLocation(dayFormat, v, time.Local)
}

func formatStamp(t time.Time) string { return t.Format(time.RFC3339Nano) }

func parseStamp(v string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, v)
}
