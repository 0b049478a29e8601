package prompt

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const payloadJSON = `{
  "counts": {"critical": 0, "high": 1, "medium": 0, "low": 1, "info": 0, "total": 2},
  "report": {"analysisVulnerabilities": [
    {"vulnerabilities": {"details": "Weak hash\nMD5 is broken", "file": "crypto.go", "line": "12", "severity": "LOW", "rule_id": "HS-GO-1"}},
    {"vulnerabilities": {"details": "Hardcoded token", "file": "ci.yml", "line": "3", "code": "token: ghp_abcdefghijklmnopqrstuvwxyz", "severity": "HIGH"}}
  ]}
}`

func TestLocalAnalyzer(t *testing.T) {
	out, err := LocalAnalyzer{}.Summarize(context.Background(), []byte(payloadJSON))
	require.NoError(t, err)

	var a Analysis
	require.NoError(t, json.Unmarshal([]byte(out), &a))
	assert.Equal(t, 2, a.Counts.Total)
	require.Len(t, a.Findings, 2)

	assert.Equal(t, "GitHub token exposed", a.Findings[0].Title)
	assert.Equal(t, "critical", a.Findings[0].Severity)
	assert.Equal(t, "ci.yml:3", a.Findings[0].File)

	assert.Equal(t, "HS-GO-1", a.Findings[1].Title)
	assert.Equal(t, "low", a.Findings[1].Severity)
	assert.Equal(t, "Weak hash", a.Findings[1].Summary)
	assert.NotEmpty(t, a.Advice)
}

func TestLocalAnalyzerTruncatedInput(t *testing.T) {
	out, err := LocalAnalyzer{}.Summarize(context.Background(), []byte(`{"counts":{"total":3,"high":3},"report":{"analysisVul`))
	require.NoError(t, err)

	var a Analysis
	require.NoError(t, json.Unmarshal([]byte(out), &a))
	assert.Empty(t, a.Findings)
	assert.NotEmpty(t, a.Advice)
}
