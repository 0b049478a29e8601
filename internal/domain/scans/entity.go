package scans

import (
	"encoding/json"
	"time"
)

// ID tipe untuk Scan
type ScanID string

// Status enum
type Status string

const (
	StatusRunning Status = "running"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Request is a single on-demand scan request. Credential is optional and
// must never be persisted or logged.
type Request struct {
	RepoURL    string
	Credential string
	Analyze    bool
}

// HasCredential reports whether a credential was supplied.
func (r Request) HasCredential() bool { return r.Credential != "" }

// SeverityCounts value object
type SeverityCounts struct {
	Critical int `json:"critical"`
	High     int `json:"high"`
	Medium   int `json:"medium"`
	Low      int `json:"low"`
	Info     int `json:"info"`
	Total    int `json:"total"`
}

// Report is the engine output, kept opaque apart from the vulnerability counts.
type Report struct {
	Raw    json.RawMessage
	Counts SeverityCounts
}

// Aggregate Root: Scan. RepoURL is always stored without userinfo.
type Scan struct {
	ID              ScanID         `json:"id"`
	RepoURL         string         `json:"repo_url"`
	HasCredential   bool           `json:"has_credential"`
	TriggeredAt     time.Time      `json:"triggered_at"`
	Status          Status         `json:"status"`
	ErrorKind       Kind           `json:"error_kind,omitempty"`
	Vulnerabilities int            `json:"vulnerabilities"`
	Counts          SeverityCounts `json:"counts"`
	ArtifactURL     string         `json:"artifact_url,omitempty"`
	DurationMS      int64          `json:"duration_ms"`
	Analysis        string         `json:"analysis,omitempty"`
}

// Summary aggregates scans since a cut-off.
type Summary struct {
	TotalScans int `json:"total_scans"`
	Failed     int `json:"failed"`
	Critical   int `json:"critical"`
	High       int `json:"high"`
	Medium     int `json:"medium"`
	Low        int `json:"low"`
}
