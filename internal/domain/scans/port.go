package scans

import (
	"context"
	"time"
)

// Cloner port (clone repository ke workspace)
type Cloner interface {
	Clone(ctx context.Context, url, dest string) (ProcessResult, error)
}

// Engine port (jalankan SAST engine terhadap workspace)
type Engine interface {
	Run(ctx context.Context, req EngineRequest) (ProcessResult, error)
}

// Workspace is an exclusively owned temporary directory plus an optional
// output file path.
type Workspace interface {
	Dir() string
	OutputFile() string
	Release() error
}

// WorkspaceProvider allocates a fresh Workspace per request.
type WorkspaceProvider interface {
	Acquire(withOutputFile bool) (Workspace, error)
}

// Repository port (interface untuk persistence riwayat scan)
type Repository interface {
	Save(ctx context.Context, s *Scan) error
	Get(ctx context.Context, id ScanID) (*Scan, error)
	Latest(ctx context.Context, limit int) ([]*Scan, error)
	Summary(ctx context.Context, since time.Time) (Summary, error)
}

// ArtifactStore port (interface untuk penyimpanan report mentah)
type ArtifactStore interface {
	UploadReport(ctx context.Context, key string, data []byte) (string, error)
}

// Analyst summarises a parsed report.
type Analyst interface {
	Analyze(ctx context.Context, report Report) (string, error)
}
