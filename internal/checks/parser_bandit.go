package checks

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/musharrafhamraz/afterburner/internal/state"
)

// BanditParser parses bandit -f json output.
type BanditParser struct{}

type banditOutput struct {
	Results []struct {
		Filename      string `json:"filename"`
		LineNumber    int    `json:"line_number"`
		IssueText     string `json:"issue_text"`
		IssueSeverity string `json:"issue_severity"`
		TestID        string `json:"test_id"`
	} `json:"results"`
}

var banditSeverity = map[string]string{
	"HIGH":   state.SeverityCritical,
	"MEDIUM": state.SeverityWarning,
	"LOW":    state.SeverityInfo,
}

func (p *BanditParser) Parse(stdout string, stderr string, exitCode int) ParseResult {
	if strings.TrimSpace(stdout) == "" {
		return ParseResult{Passed: true, Summary: "no findings"}
	}
	var raw banditOutput
	if err := json.Unmarshal([]byte(stdout), &raw); err != nil {
		return ParseResult{
			Summary: fmt.Sprintf("exit code %d (could not parse bandit JSON)", exitCode),
			Err:     fmt.Errorf("parse bandit output: %w", err),
		}
	}

	findings := make([]state.Finding, 0, len(raw.Results))
	for _, r := range raw.Results {
		msg := r.IssueText
		if msg == "" {
			msg = "Unknown issue"
		}
		findings = append(findings, state.Finding{
			Tool:     "bandit",
			Severity: mapSeverity(banditSeverity, r.IssueSeverity),
			File:     orUnknown(r.Filename),
			Line:     r.LineNumber,
			Message:  msg,
			RuleID:   r.TestID,
		})
	}
	return findingsResult(findings)
}
