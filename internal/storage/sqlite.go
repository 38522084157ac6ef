package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// OpenSQLite opens (and creates if needed) the SQLite database at path and
// ensures required tables exist.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is empty")
	}
	if path != ":memory:" {
		if err := CheckLocalFilesystem(path); err != nil {
			return nil, err
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite directory: %w", err)
		}
	}

	// foreign_keys and busy_timeout are per connection, so they ride on the DSN
	// and every pooled connection gets them.
	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if path != ":memory:" {
		if _, err := db.ExecContext(pctx, "PRAGMA journal_mode = WAL;"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("enable wal: %w", err)
		}
	}

	if err := BootstrapSQLite(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// BootstrapSQLite creates tables/indexes if missing.
func BootstrapSQLite(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS shops (
  domain         TEXT PRIMARY KEY,
  installed_at   TEXT NOT NULL,
  uninstalled_at TEXT,
  scope          TEXT,
  updated_at     TEXT NOT NULL
);`,
		`CREATE TABLE IF NOT EXISTS sessions (
  id           TEXT PRIMARY KEY,
  shop         TEXT NOT NULL,
  state        TEXT,
  is_online    INTEGER NOT NULL DEFAULT 0,
  scope        TEXT,
  expires_at   TEXT,
  access_token TEXT NOT NULL,
  user_id      TEXT,
  updated_at   TEXT NOT NULL
);`,
		`CREATE TABLE IF NOT EXISTS share_tokens (
  id             TEXT PRIMARY KEY,
  shop           TEXT NOT NULL REFERENCES shops(domain) ON DELETE CASCADE,
  code           TEXT NOT NULL UNIQUE,
  title          TEXT,
  mode           TEXT NOT NULL,
  year_a         INTEGER,
  year_b         INTEGER,
  month          INTEGER,
  password_hash  TEXT,
  created_at     TEXT NOT NULL,
  updated_at     TEXT NOT NULL,
  expires_at     TEXT,
  revoked        INTEGER NOT NULL DEFAULT 0,
  active         INTEGER NOT NULL DEFAULT 1,
  view_count     INTEGER NOT NULL DEFAULT 0,
  last_viewed_at TEXT
);`,
		`CREATE INDEX IF NOT EXISTS sessions_shop_idx ON sessions(shop);`,
		`CREATE INDEX IF NOT EXISTS share_tokens_shop_created_at_idx ON share_tokens(shop, created_at);`,
	}

	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("bootstrap sqlite: %w", err)
		}
	}
	return nil
}
