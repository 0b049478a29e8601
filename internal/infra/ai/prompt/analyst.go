package prompt

import (
	"fmt"
)

// GetSystemPrompt provides strict directions and schema for JSON output.
func GetSystemPrompt() string {
	return `You are a senior application security analyst reviewing the JSON report of a Horusec scan. You must produce one valid JSON object only (no markdown, no commentary) that follows the schema below. Do not include code fences.

Requirements:
- Output must be a single JSON object.
- Use lowercase severity values: critical, high, medium, low, info.
- counts must be copied from the "counts" object of the input.
- findings lists at most 10 of the most important vulnerabilities of the report, most severe first. Include title, severity, file, summary and recommendation. Keep items concise.
- The report may be truncated; never invent findings that are not in the input.

Schema (example with empty values):
{
  "counts": {"critical": 0, "high": 0, "medium": 0, "low": 0, "info": 0, "total": 0},
  "findings": [
    {
      "title": "<string>",
      "severity": "<critical|high|medium|low|info>",
      "file": "<string>",
      "summary": "<string>",
      "recommendation": "<string>"
    }
  ],
  "advice": "<string>"
}`
}

// GetUserPrompt wraps the compacted scan report.
func GetUserPrompt(report []byte) string {
	return fmt.Sprintf("Analyze this Horusec report and respond with the JSON per schema.\n\n%s", report)
}

// Finding is one entry of the analysis output.
type Finding struct {
	Title          string `json:"title"`
	Severity       string `json:"severity"`
	File           string `json:"file,omitempty"`
	Summary        string `json:"summary"`
	Recommendation string `json:"recommendation"`
}

// Analysis is the structure both the OpenAI and the local analyzer produce.
type Analysis struct {
	Counts struct {
		Critical int `json:"critical"`
		High     int `json:"high"`
		Medium   int `json:"medium"`
		Low      int `json:"low"`
		Info     int `json:"info"`
		Total    int `json:"total"`
	} `json:"counts"`
	Findings []Finding `json:"findings"`
	Advice   string    `json:"advice"`
}
