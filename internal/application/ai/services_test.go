package ai

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/bryanwahyu/horusec-scan/internal/domain/scans"
)

type recordingClient struct{ got []byte }

func (c *recordingClient) Summarize(_ context.Context, report []byte) (string, error) {
	c.got = report
	return "analysis", nil
}

func TestAnalyzeSendsCountsAndReport(t *testing.T) {
	client := &recordingClient{}
	svc := NewService(client, 0)

	report := domain.Report{
		Raw:    json.RawMessage("{\n  \"analysisVulnerabilities\": []\n}"),
		Counts: domain.SeverityCounts{High: 2, Total: 2},
	}
	out, err := svc.Analyze(context.Background(), report)
	require.NoError(t, err)
	assert.Equal(t, "analysis", out)

	var sent struct {
		Counts domain.SeverityCounts `json:"counts"`
		Report json.RawMessage       `json:"report"`
	}
	require.NoError(t, json.Unmarshal(client.got, &sent))
	assert.Equal(t, 2, sent.Counts.High)
	assert.JSONEq(t, `{"analysisVulnerabilities":[]}`, string(sent.Report))
}

func TestAnalyzeTruncates(t *testing.T) {
	client := &recordingClient{}
	svc := NewService(client, 16)

	_, err := svc.Analyze(context.Background(), domain.Report{Raw: json.RawMessage(`{"analysisVulnerabilities":[{"a":1},{"b":2}]}`)})
	require.NoError(t, err)
	assert.Len(t, client.got, 16)
}
