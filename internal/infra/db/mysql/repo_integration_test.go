package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/bryanwahyu/horusec-scan/internal/domain/scanerrors"
	domain "github.com/bryanwahyu/horusec-scan/internal/domain/scans"
)

func setupTestContainer(t *testing.T) *sql.DB {
	t.Helper()
	if os.Getenv("HORUSEC_SCAN_INTEGRATION") == "" {
		t.Skip("set HORUSEC_SCAN_INTEGRATION=1 to run against a mysql container")
	}
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "mysql:8.4",
		ExposedPorts: []string{"3306/tcp"},
		Env: map[string]string{
			"MYSQL_ROOT_PASSWORD": "root",
			"MYSQL_USER":          "test",
			"MYSQL_PASSWORD":      "test",
			"MYSQL_DATABASE":      "testdb",
		},
		WaitingFor: wait.ForSQL("3306/tcp", "mysql", func(host string, port nat.Port) string {
			return fmt.Sprintf("test:test@tcp(%s:%s)/testdb", host, port.Port())
		}).WithStartupTimeout(2 * time.Minute),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "3306")
	require.NoError(t, err)

	db, err := Connect(ctx, fmt.Sprintf("test:test@tcp(%s:%s)/testdb", host, port.Port()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, EnsureSchema(ctx, db))
	require.NoError(t, EnsureSchema(ctx, db), "schema creation must be idempotent")
	return db
}

func TestScanRepository(t *testing.T) {
	db := setupTestContainer(t)
	ctx := context.Background()
	repo := NewScanRepository(db)

	now := time.Now().UTC().Truncate(time.Millisecond)
	ok := &domain.Scan{
		ID: domain.ScanID(uuid.NewString()), RepoURL: "https://github.com/org/a.git", HasCredential: true,
		TriggeredAt: now.Add(-time.Minute), Status: domain.StatusSuccess,
		Counts: domain.SeverityCounts{High: 2, Low: 1, Total: 3}, DurationMS: 1200,
	}
	failed := &domain.Scan{
		ID: domain.ScanID(uuid.NewString()), RepoURL: "https://github.com/org/b.git",
		TriggeredAt: now, Status: domain.StatusFailed, ErrorKind: domain.KindCloneFailed,
	}
	require.NoError(t, repo.Save(ctx, ok))
	require.NoError(t, repo.Save(ctx, failed))

	got, err := repo.Get(ctx, ok.ID)
	require.NoError(t, err)
	assert.Equal(t, ok.RepoURL, got.RepoURL)
	assert.True(t, got.HasCredential)
	assert.Equal(t, 3, got.Vulnerabilities)
	assert.True(t, ok.TriggeredAt.Equal(got.TriggeredAt))

	_, err = repo.Get(ctx, domain.ScanID(uuid.NewString()))
	assert.ErrorIs(t, err, domain.ErrNotFound)

	latest, err := repo.Latest(ctx, 10)
	require.NoError(t, err)
	require.Len(t, latest, 2)
	assert.Equal(t, failed.ID, latest[0].ID)
	assert.Equal(t, domain.KindCloneFailed, latest[0].ErrorKind)

	sum, err := repo.Summary(ctx, now.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, domain.Summary{TotalScans: 2, Failed: 1, High: 2, Low: 1}, sum)
}

func TestScanErrorRepository(t *testing.T) {
	db := setupTestContainer(t)
	ctx := context.Background()
	repo := NewScanErrorRepository(db)

	e := &scanerrors.ScanError{ScanID: "s1", Phase: scanerrors.PhaseClone, Kind: "clone_failed", Message: "exit 128", DetailsJSON: `{"exit_code":128}`}
	require.NoError(t, repo.Save(ctx, e))
	assert.NotZero(t, e.ID)
	require.NoError(t, repo.Save(ctx, &scanerrors.ScanError{ScanID: "s1", Phase: scanerrors.PhaseOther, Message: "x", DetailsJSON: "not json"}))

	list, err := repo.ListByScan(ctx, "s1", 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.JSONEq(t, `{"raw":"not json"}`, list[0].DetailsJSON)
	assert.Equal(t, scanerrors.PhaseClone, list[1].Phase)
}
