package prompt

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

const maxFindings = 10

// LocalAnalyzer builds an analysis from the report itself, without calling
// any external model. It implements ai.Client.
type LocalAnalyzer struct{}

// horusec entry, only the fields we summarize
type entry struct {
	Vulnerabilities struct {
		Details  string `json:"details"`
		File     string `json:"file"`
		Line     string `json:"line"`
		Code     string `json:"code"`
		Severity string `json:"severity"`
		Type     string `json:"type"`
		RuleID   string `json:"rule_id"`
		Tool     string `json:"securityTool"`
	} `json:"vulnerabilities"`
}

type payload struct {
	Counts struct {
		Critical int `json:"critical"`
		High     int `json:"high"`
		Medium   int `json:"medium"`
		Low      int `json:"low"`
		Info     int `json:"info"`
		Total    int `json:"total"`
	} `json:"counts"`
	Report struct {
		AnalysisVulnerabilities []entry `json:"analysisVulnerabilities"`
	} `json:"report"`
}

// secret detectors run on the flagged code snippets
var detectors = []struct {
	re    *regexp.Regexp
	title string
}{
	{regexp.MustCompile(`-----BEGIN (?:RSA |EC |DSA |OPENSSH )?PRIVATE KEY-----`), "Private key material committed"},
	{regexp.MustCompile(`AKIA[0-9A-Z]{16}`), "AWS access key exposed"},
	{regexp.MustCompile(`gh[pousr]_[A-Za-z0-9_]{20,}`), "GitHub token exposed"},
	{regexp.MustCompile(`github_pat_[A-Za-z0-9_]{20,}`), "GitHub PAT exposed"},
	{regexp.MustCompile(`AIza[0-9A-Za-z\-_]{35}`), "Google API key exposed"},
	{regexp.MustCompile(`xox[baprs]-[A-Za-z0-9\-]{10,}`), "Slack token exposed"},
	{regexp.MustCompile(`sk_(?:live|test)_[0-9A-Za-z]{10,}`), "Stripe secret key exposed"},
	{regexp.MustCompile(`://[^\s/:@]+:[^\s/@]+@`), "Credentials embedded in URL"},
}

var severityRank = map[string]int{"critical": 0, "high": 1, "medium": 2, "low": 3}

func rank(sev string) int {
	if r, ok := severityRank[sev]; ok {
		return r
	}
	return 4
}

// Summarize returns a JSON analysis following the same schema as the
// OpenAI prompt. A report cut mid-document does not decode and yields an
// advice only.
func (LocalAnalyzer) Summarize(_ context.Context, report []byte) (string, error) {
	var in payload
	_ = json.Unmarshal(report, &in)

	var out Analysis
	out.Counts = in.Counts

	findings := make([]Finding, 0, len(in.Report.AnalysisVulnerabilities))
	for _, e := range in.Report.AnalysisVulnerabilities {
		v := e.Vulnerabilities
		sev := strings.ToLower(v.Severity)
		if sev == "" {
			sev = "info"
		}
		title := v.RuleID
		for _, d := range detectors {
			if d.re.MatchString(v.Code) {
				title, sev = d.title, "critical"
				break
			}
		}
		if title == "" {
			title = firstLine(v.Details, 80)
		}
		file := v.File
		if v.Line != "" && file != "" {
			file += ":" + v.Line
		}
		findings = append(findings, Finding{
			Title:          title,
			Severity:       sev,
			File:           file,
			Summary:        firstLine(v.Details, 200),
			Recommendation: recommendationFor(sev, v.Type),
		})
	}
	sort.SliceStable(findings, func(i, j int) bool { return rank(findings[i].Severity) < rank(findings[j].Severity) })
	if len(findings) > maxFindings {
		findings = findings[:maxFindings]
	}
	out.Findings = findings

	switch {
	case out.Counts.Critical > 0:
		out.Advice = "Immediate action required: fix the critical findings first, rotate any exposed credentials and block merges until the scan is clean."
	case out.Counts.High+out.Counts.Medium > 0:
		out.Advice = "Plan remediation of the high and medium findings and add the scan to CI to stop regressions."
	case out.Counts.Total > 0:
		out.Advice = "Only low severity findings; review them during regular maintenance."
	default:
		out.Advice = "No vulnerabilities reported. Keep the scan in CI and rotate tokens periodically."
	}

	b, err := json.Marshal(out)
	if err != nil {
		return "", fmt.Errorf("failed to marshal analysis: %w", err)
	}
	return string(b), nil
}

func recommendationFor(sev, typ string) string {
	if strings.EqualFold(typ, "Vulnerability") && (sev == "critical" || sev == "high") {
		return "Fix before the next release and add a regression test."
	}
	switch sev {
	case "critical", "high":
		return "Review and remediate as soon as possible."
	case "medium":
		return "Schedule a fix; confirm exploitability first."
	default:
		return "Review when convenient or mark as false positive."
	}
}

func firstLine(s string, n int) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}
