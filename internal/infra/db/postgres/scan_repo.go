package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	domain "github.com/bryanwahyu/horusec-scan/internal/domain/scans"
)

type ScanRepository struct{ db *sql.DB }

func NewScanRepository(db *sql.DB) *ScanRepository { return &ScanRepository{db: db} }

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
VALUES ($1,$2,$3,$4,$5,$6,
        $7,$8,$9,$10,$11,$12,
        $13,$14,$15)
ON CONFLICT (id) DO UPDATE SET
 status = EXCLUDED.status,
 error_kind = EXCLUDED.error_kind,
 critical = EXCLUDED.critical,
 high = EXCLUDED.high,
 medium = EXCLUDED.medium,
 low = EXCLUDED.low,
 info = EXCLUDED.info,
 findings_total = EXCLUDED.findings_total,
 artifact_url = EXCLUDED.artifact_url,
 duration_ms = EXCLUDED.duration_ms,
 analysis = EXCLUDED.analysis;`

	triggered := s.TriggeredAt
	if triggered.IsZero() {
		triggered = time.Now()
	}

	_, err := r.db.ExecContext(ctx, q,
		s.ID, stringOrDash(s.RepoURL), s.HasCredential, triggered, stringOrDash(string(s.Status)), string(s.ErrorKind),
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
	q := `SELECT ` + scanColumns + ` FROM security_scans WHERE id=$1 LIMIT 1;`
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
	q := `SELECT ` + scanColumns + ` FROM security_scans ORDER BY triggered_at DESC, id DESC LIMIT $1;`
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
SELECT COUNT(*),
       COUNT(*) FILTER (WHERE status = 'failed'),
       COALESCE(SUM(critical),0),
       COALESCE(SUM(high),0),
       COALESCE(SUM(medium),0),
       COALESCE(SUM(low),0)
FROM security_scans
WHERE triggered_at >= $1;`
	var s domain.Summary
	err := r.db.QueryRowContext(ctx, q, since).Scan(&s.TotalScans, &s.Failed, &s.Critical, &s.High, &s.Medium, &s.Low)
	return s, err
}
