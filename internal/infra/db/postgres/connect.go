package postgres

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/lib/pq"
)

func Connect(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx2, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx2); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS security_scans (
  id             VARCHAR(36)   PRIMARY KEY,
  repo_url       VARCHAR(2048) NOT NULL,
  has_credential BOOLEAN       NOT NULL DEFAULT FALSE,
  triggered_at   TIMESTAMPTZ   NOT NULL,
  status         VARCHAR(16)   NOT NULL,
  error_kind     VARCHAR(32)   NOT NULL DEFAULT '',
  critical       INTEGER       NOT NULL DEFAULT 0,
  high           INTEGER       NOT NULL DEFAULT 0,
  medium         INTEGER       NOT NULL DEFAULT 0,
  low            INTEGER       NOT NULL DEFAULT 0,
  info           INTEGER       NOT NULL DEFAULT 0,
  findings_total INTEGER       NOT NULL DEFAULT 0,
  artifact_url   VARCHAR(2048) NOT NULL DEFAULT '',
  duration_ms    BIGINT        NOT NULL DEFAULT 0,
  analysis       TEXT
)`,
	`CREATE INDEX IF NOT EXISTS idx_security_scans_triggered_at ON security_scans (triggered_at)`,
	`CREATE TABLE IF NOT EXISTS security_scan_errors (
  id           BIGSERIAL    PRIMARY KEY,
  scan_id      VARCHAR(36)  NOT NULL,
  phase        VARCHAR(16)  NOT NULL,
  kind         VARCHAR(32)  NOT NULL,
  message      TEXT         NOT NULL,
  details_json JSONB        NOT NULL,
  created_at   TIMESTAMPTZ  NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_security_scan_errors_scan_id ON security_scan_errors (scan_id, created_at)`,
}

// EnsureSchema creates the history tables when missing.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
