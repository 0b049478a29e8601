package ai

import (
	"context"
	"encoding/json"

	"github.com/bryanwahyu/horusec-scan/internal/domain/ai"
	domain "github.com/bryanwahyu/horusec-scan/internal/domain/scans"
)

// Service adapts an ai.Client to the scan service's Analyst port.
type Service struct {
	client ai.Client
	// maxReportBytes caps the report handed to the client.
	maxReportBytes int
}

func NewService(client ai.Client, maxReportBytes int) *Service {
	return &Service{client: client, maxReportBytes: maxReportBytes}
}

func (s *Service) Analyze(ctx context.Context, report domain.Report) (string, error) {
	return s.client.Summarize(ctx, s.compact(report))
}

// compact re-encodes the report without indentation and trims it to the
// configured size. The counts are always kept in front.
func (s *Service) compact(report domain.Report) []byte {
	payload := struct {
		Counts domain.SeverityCounts `json:"counts"`
		Report json.RawMessage       `json:"report"`
	}{Counts: report.Counts, Report: report.Raw}

	b, err := json.Marshal(payload)
	if err != nil {
		b = report.Raw
	}
	if s.maxReportBytes > 0 && len(b) > s.maxReportBytes {
		b = b[:s.maxReportBytes]
	}
	return b
}
