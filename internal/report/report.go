// Package report renders a pipeline run as Markdown.
package report

import (
	"fmt"
	"strings"

	"github.com/musharrafhamraz/afterburner/internal/state"
)

// maxListedFiles caps the changed-file list.
const maxListedFiles = 10

// Markdown renders run summaries and PR descriptions.
type Markdown struct {
	// Footer is appended to PR bodies.
	Footer string
}

// New returns a renderer with the default PR footer.
func New() *Markdown {
	return &Markdown{Footer: "*This PR was automatically created by Afterburner.*"}
}

// Render produces the final run report.
func (m *Markdown) Render(s *state.PipelineState) string {
	var b strings.Builder

	banner := "PASSED"
	if s.HardFail {
		banner = "HARD FAIL"
	}
	fmt.Fprintf(&b, "# Afterburner Report: %s\n\n", banner)

	b.WriteString("## Changes Detected\n")
	fmt.Fprintf(&b, "- %d file(s) changed\n", len(s.ChangedFiles))
	for i, f := range s.ChangedFiles {
		if i == maxListedFiles {
			fmt.Fprintf(&b, "  - ... and %d more\n", len(s.ChangedFiles)-maxListedFiles)
			break
		}
		fmt.Fprintf(&b, "  - `%s`\n", f)
	}
	b.WriteString("\n")

	if r := s.SecurityReport; r != nil {
		fmt.Fprintf(&b, "## Security: %s\n", passFail(r.Passed))
		fmt.Fprintf(&b, "- Critical: %d\n- Warnings: %d\n- Info: %d\n", r.CriticalCount(), r.WarningCount(), r.InfoCount())
		if !r.Passed {
			for _, f := range r.Findings {
				if f.Severity == state.SeverityCritical {
					fmt.Fprintf(&b, "  - **%s**: %s (`%s`)\n", f.Tool, f.Message, f.Location())
				}
			}
		}
		for _, e := range r.ScannerErrors {
			fmt.Fprintf(&b, "- Scanner error: %s\n", e)
		}
		b.WriteString("\n")
	}

	if len(s.TestResults) > 0 {
		fmt.Fprintf(&b, "## Tests: %s\n", passFail(s.TestsPassed))
		for _, r := range s.TestResults {
			fmt.Fprintf(&b, "- %s: %d passed, %d failed, %d skipped (%dms)\n", r.Framework, r.Passed, r.Failed, r.Skipped, r.DurationMs)
		}
		if s.TestDebugIterations > 1 {
			fmt.Fprintf(&b, "- Attempts: %d\n", s.TestDebugIterations)
		}
		b.WriteString("\n")
	}

	if s.BranchName != "" || s.CommitSHA != "" || s.PRURL != "" {
		b.WriteString("## Git\n")
		if s.BranchName != "" {
			fmt.Fprintf(&b, "- Branch: `%s`\n", s.BranchName)
		}
		if s.CommitSHA != "" {
			fmt.Fprintf(&b, "- Commit: `%s`\n", shortSHA(s.CommitSHA))
		}
		if s.PRURL != "" {
			fmt.Fprintf(&b, "- PR: [%s](%s)\n", s.PRURL, s.PRURL)
		}
		b.WriteString("\n")
	}

	if s.DeploymentStatus != "" && s.DeploymentStatus != state.DeploySkipped {
		fmt.Fprintf(&b, "## Deployment: %s\n", s.DeploymentStatus)
		fmt.Fprintf(&b, "- Target: %s\n", s.DeploymentTarget)
		if s.DeploymentURL != "" {
			fmt.Fprintf(&b, "- URL: %s\n", s.DeploymentURL)
		}
		if h := s.HealthCheck; h != nil {
			if h.Healthy {
				fmt.Fprintf(&b, "- Health: OK (HTTP %d, %dms)\n", h.StatusCode, h.ResponseTimeMs)
			} else {
				fmt.Fprintf(&b, "- Health: failing (%s)\n", h.Error)
			}
		}
		if s.MonitoringConfigured {
			b.WriteString("- Monitoring: configured\n")
		}
		b.WriteString("\n")
	}

	if len(s.Errors) > 0 {
		b.WriteString("## Errors\n")
		for _, e := range s.Errors {
			fmt.Fprintf(&b, "- %s\n", e)
		}
		b.WriteString("\n")
	}

	if s.HardFail {
		b.WriteString("> **Pipeline hard-failed.** See errors above for details.\n")
	}
	return b.String()
}

// PRBody produces a pull request description.
func (m *Markdown) PRBody(s *state.PipelineState) string {
	var b strings.Builder
	b.WriteString("## Afterburner Auto-PR\n\n")

	b.WriteString("### Changes\n```\n")
	if s.DiffSummary != "" {
		b.WriteString(s.DiffSummary)
	} else {
		fmt.Fprintf(&b, "%d files changed", len(s.ChangedFiles))
	}
	b.WriteString("\n```\n\n")

	if r := s.SecurityReport; r != nil {
		fmt.Fprintf(&b, "### Security: %s\n", passFail(r.Passed))
		fmt.Fprintf(&b, "- **Critical**: %d\n- **Warnings**: %d\n- **Info**: %d\n", r.CriticalCount(), r.WarningCount(), r.InfoCount())
		if r.CriticalCount() > 0 {
			b.WriteString("\n**Critical Findings:**\n")
			for _, f := range r.Findings {
				if f.Severity == state.SeverityCritical {
					fmt.Fprintf(&b, "- `%s`: %s\n", f.Location(), f.Message)
				}
			}
		}
	} else {
		b.WriteString("### Security\nNo security scan performed.\n")
	}
	b.WriteString("\n")

	b.WriteString("### Tests\n")
	if len(s.TestResults) == 0 {
		b.WriteString("No tests were run.\n")
	}
	for _, r := range s.TestResults {
		fmt.Fprintf(&b, "- %s **%s**: %d passed, %d failed (%dms)\n", checkMark(r.AllPassed()), r.Framework, r.Passed, r.Failed, r.DurationMs)
	}

	if s.DeploymentURL != "" {
		fmt.Fprintf(&b, "\n### Deployment\n- URL: %s\n", s.DeploymentURL)
	}

	if m.Footer != "" {
		fmt.Fprintf(&b, "\n---\n%s\n", m.Footer)
	}
	return b.String()
}

func passFail(ok bool) string {
	if ok {
		return "PASSED"
	}
	return "FAILED"
}

func checkMark(ok bool) string {
	if ok {
		return "[x]"
	}
	return "[ ]"
}

func shortSHA(sha string) string {
	if len(sha) > 8 {
		return sha[:8]
	}
	return sha
}
