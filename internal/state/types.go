package state

import "fmt"

// Severity levels shared by every scanner.
const (
	SeverityCritical = "critical"
	SeverityWarning  = "warning"
	SeverityInfo     = "info"
)

// ValidSeverity reports whether s is one of the three known severities.
func ValidSeverity(s string) bool {
	return s == SeverityCritical || s == SeverityWarning || s == SeverityInfo
}

// Finding is a single security finding reported by a scanner.
type Finding struct {
	Tool     string `json:"tool"`
	Severity string `json:"severity"`
	File     string `json:"file"`
	Line     int    `json:"line,omitempty"`
	Message  string `json:"message"`
	RuleID   string `json:"rule_id,omitempty"`
}

// Location renders file:line, or just the file when the line is unknown.
func (f Finding) Location() string {
	if f.Line > 0 {
		return fmt.Sprintf("%s:%d", f.File, f.Line)
	}
	return f.File
}

// SecurityReport aggregates the findings of one SecurityReview execution.
type SecurityReport struct {
	Findings       []Finding `json:"findings"`
	Passed         bool      `json:"passed"`
	BlockOn        string    `json:"block_on"`
	ScanDurationMs int64     `json:"scan_duration_ms"`
	ScannerErrors  []string  `json:"scanner_errors,omitempty"`
}

func (r SecurityReport) count(severity string) int {
	n := 0
	for _, f := range r.Findings {
		if f.Severity == severity {
			n++
		}
	}
	return n
}

// CriticalCount returns the number of critical findings.
func (r SecurityReport) CriticalCount() int { return r.count(SeverityCritical) }

// WarningCount returns the number of warning findings.
func (r SecurityReport) WarningCount() int { return r.count(SeverityWarning) }

// InfoCount returns the number of info findings.
func (r SecurityReport) InfoCount() int { return r.count(SeverityInfo) }

// TestRunResult is the outcome of one framework run.
type TestRunResult struct {
	Framework  string   `json:"framework"`
	Passed     int      `json:"passed"`
	Failed     int      `json:"failed"`
	Skipped    int      `json:"skipped"`
	Errors     []string `json:"errors,omitempty"`
	DurationMs int64    `json:"duration_ms"`
	Output     string   `json:"output,omitempty"`
}

// AllPassed is true when nothing failed and the runner reported no errors.
func (r TestRunResult) AllPassed() bool {
	return r.Failed == 0 && len(r.Errors) == 0
}

// Deployment statuses.
const (
	DeploySuccess = "success"
	DeployFailed  = "failed"
	DeploySkipped = "skipped"
)

// DeployResult is what a deploy target reports back.
type DeployResult struct {
	Target string `json:"target"`
	URL    string `json:"url,omitempty"`
	Status string `json:"status"`
	Logs   string `json:"logs,omitempty"`
}

// HealthResult is the outcome of probing a deployed URL.
type HealthResult struct {
	URL            string `json:"url"`
	Healthy        bool   `json:"healthy"`
	StatusCode     int    `json:"status_code,omitempty"`
	ResponseTimeMs int64  `json:"response_time_ms"`
	Error          string `json:"error,omitempty"`
}

// Message is one diagnostic turn handed forward to the next retry.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
