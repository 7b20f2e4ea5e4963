package pipeline

import (
	"context"
	"time"

	"github.com/musharrafhamraz/afterburner/internal/state"
)

// ChangeSet is what change detection reports for a repository.
type ChangeSet struct {
	Files   []string
	Summary string
	Types   map[string][]string
}

// ChangeDetector lists and classifies uncommitted changes.
type ChangeDetector interface {
	Detect(ctx context.Context, repoPath string) (ChangeSet, error)
	// Classify groups an externally supplied file list by category.
	Classify(files []string) map[string][]string
}

// Scanner is one security tool.
type Scanner interface {
	Name() string
	// Applies reports whether the scanner should run for these file types.
	// Language-agnostic scanners always return true.
	Applies(fileTypes map[string][]string) bool
	Scan(ctx context.Context, repoPath string, files []string, fileTypes map[string][]string) ([]state.Finding, error)
}

// Triager re-classifies finding severities. Optional.
type Triager interface {
	Triage(ctx context.Context, findings []state.Finding) ([]state.Finding, error)
}

// FrameworkDetector lists the test frameworks present in a repository.
type FrameworkDetector interface {
	Detect(repoPath string) []string
}

// TestRunner runs one framework's tests.
type TestRunner interface {
	Run(ctx context.Context, repoPath string, files []string, timeout time.Duration) state.TestRunResult
}

// DebugAdvisor suggests a fix for failing tests. Optional.
type DebugAdvisor interface {
	Suggest(ctx context.Context, results []state.TestRunResult, files []string, iteration int) (string, error)
}

// CommitContext is the input to commit message generation.
type CommitContext struct {
	DiffSummary    string
	Files          []string
	SecurityPassed bool
	TestsPassed    bool
}

// CommitMessageWriter drafts a commit message. Optional.
type CommitMessageWriter interface {
	CommitMessage(ctx context.Context, c CommitContext) (string, error)
}

// Git performs local repository mutations.
type Git interface {
	CurrentBranch() (string, error)
	CreateBranch(name string) error
	Commit(files []string, message string) (string, error)
	Push(ctx context.Context, branch string) error
}

// PRRequest describes a pull request to open.
type PRRequest struct {
	Title     string
	Body      string
	Head      string
	Base      string
	Labels    []string
	Reviewers []string
}

// PRResult is what the PR collaborator reports.
type PRResult struct {
	URL    string
	Number int
}

// PRCreator opens pull requests on the remote.
type PRCreator interface {
	CreatePR(ctx context.Context, req PRRequest) (PRResult, error)
}

// ReviewerSource resolves default reviewers for a repository.
type ReviewerSource interface {
	Reviewers(repoPath string) []string
}

// Deployer ships the repository to one target.
type Deployer interface {
	Deploy(ctx context.Context, repoPath string) state.DeployResult
}

// CIGenerator writes CI configuration into the repository.
type CIGenerator interface {
	Generate(repoPath string) (string, error)
}

// Monitoring wires observability into the deployed project.
type Monitoring interface {
	SetupSentry(repoPath, dsn string) (bool, error)
	SetupPrometheus(repoPath string) (string, error)
}

// HealthChecker probes a deployed URL.
type HealthChecker interface {
	Check(ctx context.Context, url string) state.HealthResult
}

// Renderer turns state into human-readable Markdown.
type Renderer interface {
	Render(s *state.PipelineState) string
	PRBody(s *state.PipelineState) string
}

// Deps bundles every collaborator the stages call. Optional collaborators may
// be nil; the stage then uses its documented fallback.
type Deps struct {
	Detector   ChangeDetector
	Scanners   []Scanner
	Triager    Triager
	Frameworks FrameworkDetector
	Runners    map[string]TestRunner
	Advisor    DebugAdvisor
	Messages   CommitMessageWriter
	Git        Git
	PRs        PRCreator
	Reviewers  ReviewerSource
	Deployers  map[string]Deployer
	CI         CIGenerator
	Monitoring Monitoring
	Health     HealthChecker
	Renderer   Renderer
	Now        func() time.Time
}
