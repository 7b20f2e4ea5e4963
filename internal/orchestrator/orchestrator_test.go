package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/musharrafhamraz/afterburner/internal/config"
	"github.com/musharrafhamraz/afterburner/internal/db"
	"github.com/musharrafhamraz/afterburner/internal/github"
	"github.com/musharrafhamraz/afterburner/internal/pipeline"
	"github.com/musharrafhamraz/afterburner/internal/state"
)

// --- Mocks ---

type mockDetector struct {
	files []string
}

func (m *mockDetector) Detect(ctx context.Context, repoPath string) (pipeline.ChangeSet, error) {
	return pipeline.ChangeSet{
		Files:   m.files,
		Summary: "M app.py\n1 files changed",
		Types:   map[string][]string{"python": m.files},
	}, nil
}

func (m *mockDetector) Classify(files []string) map[string][]string {
	return map[string][]string{"python": files}
}

type mockScanner struct {
	findings []state.Finding
	calls    int
}

func (m *mockScanner) Name() string                              { return "mock" }
func (m *mockScanner) Applies(fileTypes map[string][]string) bool { return true }
func (m *mockScanner) Scan(ctx context.Context, repoPath string, files []string, fileTypes map[string][]string) ([]state.Finding, error) {
	m.calls++
	return m.findings, nil
}

type mockGit struct {
	branch  string
	commits int
	pushes  []string
}

func (m *mockGit) CurrentBranch() (string, error) { return m.branch, nil }
func (m *mockGit) CreateBranch(name string) error  { m.branch = name; return nil }
func (m *mockGit) Commit(files []string, message string) (string, error) {
	m.commits++
	return "0123456789abcdef", nil
}
func (m *mockGit) Push(ctx context.Context, branch string) error {
	m.pushes = append(m.pushes, branch)
	return nil
}

type mockPRs struct {
	reqs []pipeline.PRRequest
}

func (m *mockPRs) CreatePR(ctx context.Context, req pipeline.PRRequest) (pipeline.PRResult, error) {
	m.reqs = append(m.reqs, req)
	return pipeline.PRResult{URL: "https://github.com/acme/app/pull/3", Number: 3}, nil
}

type mockDeployer struct {
	calls int
}

func (m *mockDeployer) Deploy(ctx context.Context, repoPath string) state.DeployResult {
	m.calls++
	return state.DeployResult{Target: "docker", Status: state.DeploySuccess}
}

type fixture struct {
	scanner  *mockScanner
	git      *mockGit
	prs      *mockPRs
	deployer *mockDeployer
}

// withFakes swaps every collaborator that touches tools, the network or
// the repository for a mock.
func withFakes(f *fixture) Option {
	return WithDeps(func(d *pipeline.Deps) {
		d.Detector = &mockDetector{files: []string{"app.py"}}
		d.Scanners = []pipeline.Scanner{f.scanner}
		d.Frameworks = nil
		d.Triager, d.Advisor, d.Messages = nil, nil, nil
		d.Git = f.git
		d.PRs = f.prs
		d.Deployers = map[string]pipeline.Deployer{"docker": f.deployer}
		d.CI = nil
		d.Monitoring = nil
		d.Health = nil
		d.Now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	})
}

func newFixture() *fixture {
	return &fixture{
		scanner:  &mockScanner{},
		git:      &mockGit{branch: "main"},
		prs:      &mockPRs{},
		deployer: &mockDeployer{},
	}
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.LLMProvider = "none"
	return cfg
}

// --- Tests ---

func TestRun_FullPipeline(t *testing.T) {
	f := newFixture()
	cfg := testConfig()
	cfg.GitHubToken = "ghp_test"
	cfg.GitHubRepo = "acme/app"
	cfg.DeployTarget = "docker"

	o := New(cfg, nil, withFakes(f))
	res, err := o.Run(context.Background(), RunOpts{RepoPath: t.TempDir()})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	s := res.State

	if res.RunID == "" {
		t.Error("expected a run id")
	}
	if s.HardFail {
		t.Errorf("expected success, got hard fail: %v", s.Errors)
	}
	if f.scanner.calls != 1 {
		t.Errorf("expected 1 scan, got %d", f.scanner.calls)
	}
	if s.CommitSHA != "0123456789abcdef" {
		t.Errorf("unexpected sha %q", s.CommitSHA)
	}
	if len(f.git.pushes) != 1 || len(f.prs.reqs) != 1 {
		t.Fatalf("expected one push and one PR, got %d and %d", len(f.git.pushes), len(f.prs.reqs))
	}
	if s.PRURL != "https://github.com/acme/app/pull/3" {
		t.Errorf("unexpected PR url %q", s.PRURL)
	}
	if f.deployer.calls != 1 || s.DeploymentStatus != state.DeploySuccess {
		t.Errorf("expected a docker deployment, got status %q", s.DeploymentStatus)
	}
	if !strings.Contains(s.FinalSummary, "# Afterburner Report: PASSED") {
		t.Errorf("unexpected summary:\n%s", s.FinalSummary)
	}
}

func TestRun_HardFailOnCriticalFindings(t *testing.T) {
	f := newFixture()
	f.scanner.findings = []state.Finding{{Tool: "mock", Severity: "critical", File: "app.py", Line: 3, Message: "eval"}}
	cfg := testConfig()
	cfg.MaxReflectionRetries = 2

	o := New(cfg, nil, withFakes(f))
	res, err := o.Run(context.Background(), RunOpts{RepoPath: t.TempDir()})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.State.HardFail {
		t.Fatal("expected hard fail")
	}
	if f.scanner.calls != 2 {
		t.Errorf("expected 2 scans, got %d", f.scanner.calls)
	}
	if f.git.commits != 0 {
		t.Errorf("expected no commit after hard fail, got %d", f.git.commits)
	}
}

func TestRun_NoPR(t *testing.T) {
	f := newFixture()
	cfg := testConfig()
	cfg.GitHubToken = "ghp_test"
	cfg.GitHubRepo = "acme/app"

	o := New(cfg, nil, withFakes(f))
	res, err := o.Run(context.Background(), RunOpts{RepoPath: t.TempDir(), Stage: pipeline.StageCommit, NoPR: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if f.git.commits != 1 {
		t.Errorf("expected 1 commit, got %d", f.git.commits)
	}
	if len(f.git.pushes) != 0 || len(f.prs.reqs) != 0 {
		t.Errorf("expected no push or PR, got %v and %d", f.git.pushes, len(f.prs.reqs))
	}
	if res.State.SecurityReport != nil {
		t.Error("single-stage commit run should not scan")
	}
}

func TestRun_DeployTargetOverride(t *testing.T) {
	f := newFixture()
	o := New(testConfig(), nil, withFakes(f))

	res, err := o.Run(context.Background(), RunOpts{RepoPath: t.TempDir(), Stage: pipeline.StageDeploy, DeployTarget: "docker"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if f.deployer.calls != 1 {
		t.Errorf("expected deployer to run, got %d calls", f.deployer.calls)
	}
	if res.State.DeploymentTarget != "docker" {
		t.Errorf("unexpected target %q", res.State.DeploymentTarget)
	}
}

func TestRun_SkipDeploy(t *testing.T) {
	f := newFixture()
	cfg := testConfig()
	cfg.DeployTarget = "docker"
	o := New(cfg, nil, withFakes(f))

	res, err := o.Run(context.Background(), RunOpts{RepoPath: t.TempDir(), SkipDeploy: true, Trigger: "hook"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if f.deployer.calls != 0 {
		t.Errorf("expected no deployment, got %d", f.deployer.calls)
	}
	if res.State.DeploymentStatus != state.DeploySkipped {
		t.Errorf("expected skipped, got %q", res.State.DeploymentStatus)
	}
	if res.State.TriggerSource != "hook" {
		t.Errorf("unexpected trigger %q", res.State.TriggerSource)
	}
}

func TestRun_ChangedFilesSupplied(t *testing.T) {
	f := newFixture()
	o := New(testConfig(), nil, withFakes(f))

	res, err := o.Run(context.Background(), RunOpts{RepoPath: t.TempDir(), Stage: pipeline.StageSecurityReview, ChangedFiles: []string{"a.py", "b.py"}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.State.ChangedFiles) != 2 {
		t.Errorf("expected supplied files to be kept, got %v", res.State.ChangedFiles)
	}
}

func TestRun_InvalidStage(t *testing.T) {
	o := New(testConfig(), nil, withFakes(newFixture()))
	_, err := o.Run(context.Background(), RunOpts{RepoPath: t.TempDir(), Stage: pipeline.StageSummarize})
	if err == nil {
		t.Fatal("expected an error for a stage that cannot run alone")
	}
}

func TestRun_MissingRepository(t *testing.T) {
	o := New(testConfig(), nil)
	_, err := o.Run(context.Background(), RunOpts{RepoPath: filepath.Join(t.TempDir(), "missing")})
	if err == nil || !strings.Contains(err.Error(), "not a directory") {
		t.Fatalf("expected not a directory error, got %v", err)
	}
}

func TestRun_WritesMetricsAndEvents(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig()
	cfg.MetricsFile = filepath.Join(dir, "afterburner.prom")
	cfg.EventLog = filepath.Join(dir, "events.db")

	o := New(cfg, nil, withFakes(newFixture()))
	res, err := o.Run(context.Background(), RunOpts{RepoPath: t.TempDir()})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	data, err := os.ReadFile(cfg.MetricsFile)
	if err != nil {
		t.Fatalf("read metrics: %v", err)
	}
	if !strings.Contains(string(data), `afterburner_runs_total{outcome="success"} 1`) {
		t.Errorf("unexpected metrics:\n%s", data)
	}

	events, err := db.Open(cfg.EventLog)
	if err != nil {
		t.Fatal(err)
	}
	defer events.Close()
	history, err := events.PipelineHistory(res.RunID)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) == 0 {
		t.Fatal("expected events for the run")
	}
	if last := history[len(history)-1]; last.Event != db.EventRunFinished || last.Detail != "completed" {
		t.Errorf("unexpected final event %+v", last)
	}
}

func TestDeps_Production(t *testing.T) {
	cfg := testConfig()
	cfg.EnableBandit = false
	o := New(cfg, nil)

	d := o.deps(context.Background(), cfg, t.TempDir(), o.log)
	names := make([]string, 0, len(d.Scanners))
	for _, s := range d.Scanners {
		names = append(names, s.Name())
	}
	if got := strings.Join(names, ","); got != "semgrep,gitleaks,npm_audit,cargo_audit" {
		t.Errorf("unexpected scanners %s", got)
	}
	if d.Triager != nil || d.Messages != nil {
		t.Error("expected no LLM agents with provider none")
	}
	if d.PRs != nil {
		t.Error("expected no PR client without a token")
	}
	for _, fw := range []string{"pytest", "vitest", "jest", "cargo", "go", "playwright"} {
		if _, ok := d.Runners[fw]; !ok {
			t.Errorf("missing runner %s", fw)
		}
	}
	if _, ok := d.Deployers["vercel"]; !ok {
		t.Error("missing vercel deployer")
	}
}

func TestDeps_GitHubClient(t *testing.T) {
	cfg := testConfig()
	cfg.GitHubToken = "ghp_test"
	cfg.GitHubRepo = "acme/app"
	o := New(cfg, nil)

	d := o.deps(context.Background(), cfg, t.TempDir(), o.log)
	if _, ok := d.PRs.(*github.Client); !ok {
		t.Errorf("expected a github client, got %T", d.PRs)
	}
}

func TestStatus_MasksSecrets(t *testing.T) {
	cfg := testConfig()
	cfg.GitHubToken = "ghp_abcdefghijklmnop"
	out, err := Status(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(out, "abcdefghijklmnop") {
		t.Errorf("token leaked:\n%s", out)
	}
	if !strings.Contains(out, "github_token: ghp_****") {
		t.Errorf("expected masked token:\n%s", out)
	}
	if !strings.Contains(out, "max_reflection_retries: 3") {
		t.Errorf("expected defaults in output:\n%s", out)
	}
}
