package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/musharrafhamraz/afterburner/internal/state"
)

type mockDetector struct {
	cs  ChangeSet
	err error
}

func (m *mockDetector) Detect(ctx context.Context, repoPath string) (ChangeSet, error) {
	return m.cs, m.err
}

func (m *mockDetector) Classify(files []string) map[string][]string {
	return map[string][]string{"supplied": files}
}

// mockScanner returns findings[i] on its i-th call, then the last entry.
type mockScanner struct {
	name     string
	findings [][]state.Finding
	err      error
	calls    int
}

func (m *mockScanner) Name() string { return m.name }

func (m *mockScanner) Applies(fileTypes map[string][]string) bool { return true }

func (m *mockScanner) Scan(ctx context.Context, repoPath string, files []string, fileTypes map[string][]string) ([]state.Finding, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	if len(m.findings) == 0 {
		return nil, nil
	}
	i := min(m.calls-1, len(m.findings)-1)
	return m.findings[i], nil
}

type mockTriager struct {
	severity string
	drop     bool
	err      error
}

func (m *mockTriager) Triage(ctx context.Context, findings []state.Finding) ([]state.Finding, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.drop {
		return findings[:len(findings)-1], nil
	}
	for i := range findings {
		findings[i].Severity = m.severity
	}
	return findings, nil
}

type mockFrameworks struct {
	frameworks []string
}

func (m *mockFrameworks) Detect(repoPath string) []string { return m.frameworks }

// mockRunner fails until passAfter calls have been made. passAfter < 0 never
// passes.
type mockRunner struct {
	passAfter int
	calls     int
}

func (m *mockRunner) Run(ctx context.Context, repoPath string, files []string, timeout time.Duration) state.TestRunResult {
	m.calls++
	if m.passAfter >= 0 && m.calls > m.passAfter {
		return state.TestRunResult{Passed: 3}
	}
	return state.TestRunResult{Passed: 2, Failed: 1, Output: "FAIL test_x"}
}

type mockAdvisor struct {
	iterations []int
}

func (m *mockAdvisor) Suggest(ctx context.Context, results []state.TestRunResult, files []string, iteration int) (string, error) {
	m.iterations = append(m.iterations, iteration)
	return fmt.Sprintf("Self-debug suggestion (iteration %d):\nfix it", iteration), nil
}

type mockMessages struct {
	msg string
	err error
}

func (m *mockMessages) CommitMessage(ctx context.Context, c CommitContext) (string, error) {
	return m.msg, m.err
}

type mockGit struct {
	branch       string
	branchErr    error
	createErr    error
	commitErr    error
	pushErr      error
	created      []string
	committed    []string
	message      string
	pushed       []string
	commitCalled bool
}

func (m *mockGit) CurrentBranch() (string, error) { return m.branch, m.branchErr }

func (m *mockGit) CreateBranch(name string) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.created = append(m.created, name)
	return nil
}

func (m *mockGit) Commit(files []string, message string) (string, error) {
	m.commitCalled = true
	if m.commitErr != nil {
		return "", m.commitErr
	}
	m.committed = files
	m.message = message
	return "abc123def4567890", nil
}

func (m *mockGit) Push(ctx context.Context, branch string) error {
	if m.pushErr != nil {
		return m.pushErr
	}
	m.pushed = append(m.pushed, branch)
	return nil
}

type mockPRs struct {
	req PRRequest
	err error
}

func (m *mockPRs) CreatePR(ctx context.Context, req PRRequest) (PRResult, error) {
	m.req = req
	if m.err != nil {
		return PRResult{}, m.err
	}
	return PRResult{URL: "https://github.com/acme/app/pull/7", Number: 7}, nil
}

type mockReviewers struct{ list []string }

func (m *mockReviewers) Reviewers(repoPath string) []string { return m.list }

type mockDeployer struct {
	result state.DeployResult
	calls  int
}

func (m *mockDeployer) Deploy(ctx context.Context, repoPath string) state.DeployResult {
	m.calls++
	return m.result
}

type mockCI struct{ calls int }

func (m *mockCI) Generate(repoPath string) (string, error) {
	m.calls++
	return repoPath + "/.github/workflows/afterburner.yml", nil
}

type mockMonitoring struct {
	sentry     int
	prometheus int
	promErr    error
}

func (m *mockMonitoring) SetupSentry(repoPath, dsn string) (bool, error) {
	m.sentry++
	return true, nil
}

func (m *mockMonitoring) SetupPrometheus(repoPath string) (string, error) {
	m.prometheus++
	if m.promErr != nil {
		return "", m.promErr
	}
	return repoPath + "/prometheus.yml", nil
}

type mockHealth struct {
	healthy bool
	calls   int
}

func (m *mockHealth) Check(ctx context.Context, url string) state.HealthResult {
	m.calls++
	return state.HealthResult{URL: url, Healthy: m.healthy, StatusCode: 200}
}

type mockRenderer struct{}

func (mockRenderer) Render(s *state.PipelineState) string {
	var b strings.Builder
	fmt.Fprintf(&b, "summary files=%d hard_fail=%v", len(s.ChangedFiles), s.HardFail)
	return b.String()
}

func (mockRenderer) PRBody(s *state.PipelineState) string { return "pr body" }

var fixedNow = func() time.Time { return time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC) }

var errBoom = errors.New("boom")

func critical(tool string) state.Finding {
	return state.Finding{Tool: tool, Severity: state.SeverityCritical, File: "app.py", Line: 12, Message: "SQL injection", RuleID: "sqli"}
}

func warning(tool string) state.Finding {
	return state.Finding{Tool: tool, Severity: state.SeverityWarning, File: "app.py", Line: 3, Message: "weak hash", RuleID: "md5"}
}
