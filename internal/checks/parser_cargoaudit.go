package checks

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/musharrafhamraz/afterburner/internal/state"
)

// CargoAuditParser parses cargo audit --json output. Every advisory is
// critical.
type CargoAuditParser struct{}

type cargoAuditOutput struct {
	Vulnerabilities struct {
		List []struct {
			Advisory struct {
				ID    string `json:"id"`
				Title string `json:"title"`
			} `json:"advisory"`
		} `json:"list"`
	} `json:"vulnerabilities"`
}

func (p *CargoAuditParser) Parse(stdout string, stderr string, exitCode int) ParseResult {
	if strings.TrimSpace(stdout) == "" {
		return ParseResult{Passed: true, Summary: "no findings"}
	}
	var raw cargoAuditOutput
	if err := json.Unmarshal([]byte(stdout), &raw); err != nil {
		return ParseResult{
			Summary: fmt.Sprintf("exit code %d (could not parse cargo audit JSON)", exitCode),
			Err:     fmt.Errorf("parse cargo audit output: %w", err),
		}
	}

	findings := make([]state.Finding, 0, len(raw.Vulnerabilities.List))
	for _, v := range raw.Vulnerabilities.List {
		id := v.Advisory.ID
		if id == "" {
			id = "UNKNOWN"
		}
		title := v.Advisory.Title
		if title == "" {
			title = "Unknown"
		}
		findings = append(findings, state.Finding{
			Tool:     "cargo_audit",
			Severity: state.SeverityCritical,
			File:     "Cargo.toml",
			Message:  fmt.Sprintf("%s: %s", id, title),
			RuleID:   v.Advisory.ID,
		})
	}
	return findingsResult(findings)
}
