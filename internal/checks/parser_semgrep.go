package checks

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/musharrafhamraz/afterburner/internal/state"
)

// SemgrepParser parses semgrep --json output.
type SemgrepParser struct{}

type semgrepOutput struct {
	Results []struct {
		CheckID string `json:"check_id"`
		Path    string `json:"path"`
		Start   struct {
			Line int `json:"line"`
		} `json:"start"`
		Extra struct {
			Message  string `json:"message"`
			Severity string `json:"severity"`
		} `json:"extra"`
	} `json:"results"`
}

var semgrepSeverity = map[string]string{
	"ERROR":   state.SeverityCritical,
	"WARNING": state.SeverityWarning,
	"INFO":    state.SeverityInfo,
}

func (p *SemgrepParser) Parse(stdout string, stderr string, exitCode int) ParseResult {
	if strings.TrimSpace(stdout) == "" {
		return ParseResult{Passed: true, Summary: "no findings"}
	}
	var raw semgrepOutput
	if err := json.Unmarshal([]byte(stdout), &raw); err != nil {
		return ParseResult{
			Summary: fmt.Sprintf("exit code %d (could not parse semgrep JSON)", exitCode),
			Err:     fmt.Errorf("parse semgrep output: %w", err),
		}
	}

	findings := make([]state.Finding, 0, len(raw.Results))
	for _, r := range raw.Results {
		msg := r.Extra.Message
		if msg == "" {
			msg = r.CheckID
		}
		findings = append(findings, state.Finding{
			Tool:     "semgrep",
			Severity: mapSeverity(semgrepSeverity, r.Extra.Severity),
			File:     orUnknown(r.Path),
			Line:     r.Start.Line,
			Message:  msg,
			RuleID:   r.CheckID,
		})
	}
	return findingsResult(findings)
}

// mapSeverity looks up a tool severity, defaulting to info.
func mapSeverity(m map[string]string, sev string) string {
	if s, ok := m[sev]; ok {
		return s
	}
	return state.SeverityInfo
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

func findingsResult(findings []state.Finding) ParseResult {
	var critical, warning int
	for _, f := range findings {
		switch f.Severity {
		case state.SeverityCritical:
			critical++
		case state.SeverityWarning:
			warning++
		}
	}
	summary := fmt.Sprintf("%d findings (%d critical, %d warning)", len(findings), critical, warning)
	if len(findings) == 0 {
		summary = "no findings"
	}
	return ParseResult{
		Passed:   len(findings) == 0,
		Summary:  summary,
		Findings: findings,
	}
}
