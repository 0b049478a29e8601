package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	domain "github.com/bryanwahyu/horusec-scan/internal/domain/scans"
)

type ScanRepository struct {
	db *sql.DB
}

func NewScanRepository(db *sql.DB) *ScanRepository {
	return &ScanRepository{db: db}
}

const scanColumns = `id, repo_url, has_credential, triggered_at, status, error_kind,
       critical, high, medium, low, info, findings_total,
       artifact_url, duration_ms, COALESCE(analysis, '')`

// Save insert/update Scan record
func (r *ScanRepository) Save(ctx context.Context, s *domain.Scan) error {
	const q = `
INSERT INTO security_scans
(id, repo_url, has_credential, triggered_at, status, error_kind,
 critical, high, medium, low, info, findings_total,
 artifact_url, duration_ms, analysis)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
ON DUPLICATE KEY UPDATE
 status=VALUES(status), error_kind=VALUES(error_kind),
 critical=VALUES(critical), high=VALUES(high), medium=VALUES(medium), low=VALUES(low), info=VALUES(info),
 findings_total=VALUES(findings_total),
 artifact_url=VALUES(artifact_url), duration_ms=VALUES(duration_ms), analysis=VALUES(analysis);
`
	triggered := s.TriggeredAt
	if triggered.IsZero() {
		triggered = time.Now()
	}

	_, err := r.db.ExecContext(ctx, q,
		s.ID, stringOrDash(s.RepoURL), s.HasCredential, triggered.UTC(), stringOrDash(string(s.Status)), string(s.ErrorKind),
		s.Counts.Critical, s.Counts.High, s.Counts.Medium, s.Counts.Low, s.Counts.Info, s.Counts.Total,
		s.ArtifactURL, s.DurationMS, s.Analysis,
	)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRow(row rowScanner) (*domain.Scan, error) {
	var s domain.Scan
	c := &s.Counts
	if err := row.Scan(
		&s.ID, &s.RepoURL, &s.HasCredential, &s.TriggeredAt, &s.Status, &s.ErrorKind,
		&c.Critical, &c.High, &c.Medium, &c.Low, &c.Info, &c.Total,
		&s.ArtifactURL, &s.DurationMS, &s.Analysis,
	); err != nil {
		return nil, err
	}
	s.Vulnerabilities = c.Total
	return &s, nil
}

// Get by ID
func (r *ScanRepository) Get(ctx context.Context, id domain.ScanID) (*domain.Scan, error) {
	q := `SELECT ` + scanColumns + ` FROM security_scans WHERE id=? LIMIT 1;`
	s, err := scanRow(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return s, err
}

// Latest scans, newest first
func (r *ScanRepository) Latest(ctx context.Context, limit int) ([]*domain.Scan, error) {
	if limit <= 0 {
		limit = 20
	}
	q := `SELECT ` + scanColumns + ` FROM security_scans ORDER BY triggered_at DESC, id DESC LIMIT ?;`
	rows, err := r.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("querying scans: %w", err)
	}
	defer rows.Close()

	var out []*domain.Scan
	for rows.Next() {
		s, err := scanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Summary counts scan results since the cut-off
func (r *ScanRepository) Summary(ctx context.Context, since time.Time) (domain.Summary, error) {
	const q = `
SELECT COUNT(*) AS total_scans,
       COALESCE(SUM(status = 'failed'),0) AS failed,
       COALESCE(SUM(critical),0) AS critical,
       COALESCE(SUM(high),0)     AS high,
       COALESCE(SUM(medium),0)   AS medium,
       COALESCE(SUM(low),0)      AS low
FROM security_scans
WHERE triggered_at >= ?;
`
	var s domain.Summary
	err := r.db.QueryRowContext(ctx, q, since.UTC()).Scan(&s.TotalScans, &s.Failed, &s.Critical, &s.High, &s.Medium, &s.Low)
	return s, err
}
