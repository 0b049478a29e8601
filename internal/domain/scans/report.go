package scans

import (
	"encoding/json"
	"strings"
)

// VulnerabilitiesField is the top-level report field counted for statistics.
const VulnerabilitiesField = "analysisVulnerabilities"

// ParseReport validates raw engine output as JSON and counts the entries of
// analysisVulnerabilities by severity. The raw document is kept unmodified.
func ParseReport(raw []byte) (Report, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil {
		// valid JSON that is not an object is still passed through
		var anyjson any
		if err2 := json.Unmarshal(raw, &anyjson); err2 != nil {
			return Report{}, err
		}
		return Report{Raw: json.RawMessage(raw)}, nil
	}
	return Report{Raw: json.RawMessage(raw), Counts: countSeverities(doc[VulnerabilitiesField])}, nil
}

func countSeverities(field json.RawMessage) SeverityCounts {
	var c SeverityCounts
	if len(field) == 0 {
		return c
	}
	var entries []struct {
		Vulnerabilities struct {
			Severity string `json:"severity"`
		} `json:"vulnerabilities"`
		Severity string `json:"severity"`
	}
	if err := json.Unmarshal(field, &entries); err != nil {
		return c
	}
	for _, e := range entries {
		sev := e.Vulnerabilities.Severity
		if sev == "" {
			sev = e.Severity
		}
		switch strings.ToLower(sev) {
		case "critical":
			c.Critical++
		case "high":
			c.High++
		case "medium":
			c.Medium++
		case "low":
			c.Low++
		default:
			c.Info++
		}
		c.Total++
	}
	return c
}
