package pipeline

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/musharrafhamraz/afterburner/internal/state"
)

// maxDiagnosticLen caps the issue list handed to the next reflection round.
const maxDiagnosticLen = 1000

// BlockingSeverities returns the severities that fail a scan for blockOn.
func BlockingSeverities(blockOn string) map[string]bool {
	blocking := map[string]bool{state.SeverityCritical: true}
	if blockOn == state.SeverityWarning {
		blocking[state.SeverityWarning] = true
	}
	return blocking
}

// Aggregate builds a report and decides pass/fail against blockOn.
func Aggregate(findings []state.Finding, blockOn string) state.SecurityReport {
	blocking := BlockingSeverities(blockOn)
	passed := true
	for _, f := range findings {
		if blocking[f.Severity] {
			passed = false
			break
		}
	}
	if findings == nil {
		findings = []state.Finding{}
	}
	return state.SecurityReport{Findings: findings, Passed: passed, BlockOn: blockOn}
}

// SecurityReview runs every applicable scanner, optionally triages the
// findings, and gates on the configured blocking severity. A failing review
// bumps reflectionCount and leaves a diagnostic message for the next round.
func (p *Stages) SecurityReview(ctx context.Context, s *state.PipelineState) (state.Update, error) {
	attempt := s.ReflectionCount + 1
	p.log.Info("running security analysis", zap.Int("attempt", attempt))

	start := p.deps.Now()
	var findings []state.Finding
	var scanErrs []string

	for _, sc := range p.deps.Scanners {
		if !sc.Applies(s.FileTypes) {
			p.log.Debug("scanner not applicable", zap.String("scanner", sc.Name()))
			continue
		}
		found, err := sc.Scan(ctx, s.RepoPath, s.ChangedFiles, s.FileTypes)
		if err != nil {
			p.log.Warn("scanner failed", zap.String("scanner", sc.Name()), zap.Error(err))
			scanErrs = append(scanErrs, fmt.Sprintf("%s: %v", sc.Name(), err))
			continue
		}
		p.log.Info("scanner finished", zap.String("scanner", sc.Name()), zap.Int("findings", len(found)))
		findings = append(findings, found...)
	}

	if len(findings) > 0 && p.deps.Triager != nil {
		findings = p.triage(ctx, findings)
	}

	report := Aggregate(findings, p.cfg.SecurityBlockOn)
	report.ScanDurationMs = p.deps.Now().Sub(start).Milliseconds()
	report.ScannerErrors = scanErrs

	p.log.Info("security scan complete",
		zap.Int("findings", len(report.Findings)),
		zap.Int("critical", report.CriticalCount()),
		zap.Int("warning", report.WarningCount()),
		zap.Bool("passed", report.Passed),
	)

	u := state.Update{
		SecurityReport:      &report,
		SecurityPassed:      state.Bool(report.Passed),
		SecurityIssuesCount: state.Int(len(report.Findings)),
	}
	if !report.Passed {
		u.ReflectionCount = state.Int(s.ReflectionCount + 1)
		u.Messages = []state.Message{{Role: "user", Content: securityDiagnostic(report)}}
	}
	return u, nil
}

// triage asks the triager to re-classify severities, keeping the originals
// when it fails or answers with a different number of findings.
func (p *Stages) triage(ctx context.Context, findings []state.Finding) []state.Finding {
	triaged, err := p.deps.Triager.Triage(ctx, slices.Clone(findings))
	if err != nil {
		p.log.Warn("triage failed, using original severities", zap.Error(err))
		return findings
	}
	if len(triaged) != len(findings) {
		p.log.Warn("triage changed the finding count, using original severities",
			zap.Int("before", len(findings)), zap.Int("after", len(triaged)))
		return findings
	}
	return triaged
}

func securityDiagnostic(r state.SecurityReport) string {
	blocking := BlockingSeverities(r.BlockOn)
	var lines []string
	for _, f := range r.Findings {
		if blocking[f.Severity] {
			lines = append(lines, fmt.Sprintf("- [%s] %s — %s", f.Tool, f.Location(), f.Message))
		}
	}
	return fmt.Sprintf("Security scan FAILED with %d critical findings. Top issues:\n", r.CriticalCount()) +
		truncate(strings.Join(lines, "\n"), maxDiagnosticLen)
}
