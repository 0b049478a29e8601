package mysql

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-sql-driver/mysql"
)

// Connect opens the pool. parseTime is forced on so DATETIME columns scan
// into time.Time.
func Connect(ctx context.Context, dsn string) (*sql.DB, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, err
	}
	cfg.ParseTime = true
	if cfg.Loc == nil {
		cfg.Loc = time.UTC
	}

	db, err := sql.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	// test ping
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
  id             VARCHAR(36)   NOT NULL PRIMARY KEY,
  repo_url       VARCHAR(2048) NOT NULL,
  has_credential BOOLEAN       NOT NULL DEFAULT FALSE,
  triggered_at   DATETIME(3)   NOT NULL,
  status         VARCHAR(16)   NOT NULL,
  error_kind     VARCHAR(32)   NOT NULL DEFAULT '',
  critical       INT           NOT NULL DEFAULT 0,
  high           INT           NOT NULL DEFAULT 0,
  medium         INT           NOT NULL DEFAULT 0,
  low            INT           NOT NULL DEFAULT 0,
  info           INT           NOT NULL DEFAULT 0,
  findings_total INT           NOT NULL DEFAULT 0,
  artifact_url   VARCHAR(2048) NOT NULL DEFAULT '',
  duration_ms    BIGINT        NOT NULL DEFAULT 0,
  analysis       MEDIUMTEXT    NULL,
  INDEX idx_security_scans_triggered_at (triggered_at)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS security_scan_errors (
  id           BIGINT       NOT NULL AUTO_INCREMENT PRIMARY KEY,
  scan_id      VARCHAR(36)  NOT NULL,
  phase        VARCHAR(16)  NOT NULL,
  kind         VARCHAR(32)  NOT NULL,
  message      TEXT         NOT NULL,
  details_json JSON         NOT NULL,
  created_at   DATETIME(3)  NOT NULL,
  INDEX idx_security_scan_errors_scan_id (scan_id, created_at)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
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
