package checks

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/musharrafhamraz/afterburner/internal/state"
)

// NPMAuditParser parses npm audit --json output.
type NPMAuditParser struct{}

type npmAuditOutput struct {
	Vulnerabilities map[string]npmVulnerability `json:"vulnerabilities"`
}

type npmVulnerability struct {
	Name     string          `json:"name"`
	Severity string          `json:"severity"`
	Title    string          `json:"title"`
	Via      json.RawMessage `json:"via"`
}

type npmAdvisory struct {
	Title string `json:"title"`
}

var npmSeverity = map[string]string{
	"critical": state.SeverityCritical,
	"high":     state.SeverityCritical,
	"moderate": state.SeverityWarning,
	"low":      state.SeverityInfo,
	"info":     state.SeverityInfo,
}

func (p *NPMAuditParser) Parse(stdout string, stderr string, exitCode int) ParseResult {
	if strings.TrimSpace(stdout) == "" {
		return ParseResult{Passed: true, Summary: "no vulnerabilities found"}
	}
	var raw npmAuditOutput
	if err := json.Unmarshal([]byte(stdout), &raw); err != nil {
		return ParseResult{
			Summary: fmt.Sprintf("exit code %d (could not parse npm audit JSON)", exitCode),
			Err:     fmt.Errorf("parse npm audit output: %w", err),
		}
	}

	names := make([]string, 0, len(raw.Vulnerabilities))
	for name := range raw.Vulnerabilities {
		names = append(names, name)
	}
	sort.Strings(names)

	findings := make([]state.Finding, 0, len(names))
	for _, name := range names {
		vuln := raw.Vulnerabilities[name]
		findings = append(findings, state.Finding{
			Tool:     "npm_audit",
			Severity: mapSeverity(npmSeverity, vuln.Severity),
			File:     "package.json",
			Message:  fmt.Sprintf("%s: %s", name, vulnTitle(vuln)),
			RuleID:   name,
		})
	}
	res := findingsResult(findings)
	if len(findings) == 0 {
		res.Summary = "no vulnerabilities found"
	}
	return res
}

// vulnTitle prefers the top-level title, then the first advisory in via.
// Entries in via are either advisory objects or names of other packages.
func vulnTitle(v npmVulnerability) string {
	if v.Title != "" {
		return v.Title
	}
	var via []json.RawMessage
	if err := json.Unmarshal(v.Via, &via); err == nil {
		for _, item := range via {
			var adv npmAdvisory
			if json.Unmarshal(item, &adv) == nil && adv.Title != "" {
				return adv.Title
			}
		}
	}
	return "Unknown vulnerability"
}
