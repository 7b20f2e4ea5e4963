// Package orchestrator assembles the pipeline collaborators for a repository
// and runs the stage graph over it. The CLI and the MCP server both go
// through here.
package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/musharrafhamraz/afterburner/internal/checks"
	"github.com/musharrafhamraz/afterburner/internal/config"
	"github.com/musharrafhamraz/afterburner/internal/db"
	"github.com/musharrafhamraz/afterburner/internal/graph"
	"github.com/musharrafhamraz/afterburner/internal/logging"
	"github.com/musharrafhamraz/afterburner/internal/metrics"
	"github.com/musharrafhamraz/afterburner/internal/pipeline"
	"github.com/musharrafhamraz/afterburner/internal/state"
)

// Orchestrator composes pipeline runs.
type Orchestrator struct {
	cfg      config.Config
	log      *zap.Logger
	cmd      checks.CommandRunner
	override func(*pipeline.Deps)
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithCommandRunner replaces the subprocess runner used by scanners, test
// runners and deploy targets.
func WithCommandRunner(cmd checks.CommandRunner) Option {
	return func(o *Orchestrator) { o.cmd = cmd }
}

// WithDeps lets the caller adjust the assembled collaborators before each
// run.
func WithDeps(fn func(*pipeline.Deps)) Option {
	return func(o *Orchestrator) { o.override = fn }
}

// New creates an Orchestrator. cfg is copied; a nil logger disables logging.
func New(cfg config.Config, log *zap.Logger, opts ...Option) *Orchestrator {
	if log == nil {
		log = zap.NewNop()
	}
	o := &Orchestrator{cfg: cfg, log: log, cmd: &checks.ExecRunner{}}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// RunOpts holds options for a single run.
type RunOpts struct {
	RepoPath string
	// Stage runs detect, the named stage and summarize instead of the full
	// graph.
	Stage        string
	Trigger      string
	SkipDeploy   bool
	NoPR         bool
	DeployTarget string
	ChangedFiles []string
}

// RunResult is the outcome of a run.
type RunResult struct {
	RunID string
	State *state.PipelineState
}

// Run executes the pipeline. The returned error covers setup problems and
// graph integrity errors only; pipeline failures are in the final state.
func (o *Orchestrator) Run(ctx context.Context, opts RunOpts) (*RunResult, error) {
	repo, err := filepath.Abs(opts.RepoPath)
	if err != nil {
		return nil, fmt.Errorf("resolve repository path: %w", err)
	}
	if fi, err := os.Stat(repo); err != nil || !fi.IsDir() {
		return nil, fmt.Errorf("repository %s is not a directory", repo)
	}

	cfg := o.cfg
	if opts.NoPR {
		cfg.AutoPR = false
	}
	if opts.DeployTarget != "" {
		cfg.DeployTarget = opts.DeployTarget
	}

	runID := uuid.NewString()
	log := logging.ForRun(o.log, runID, repo)

	deps := o.deps(ctx, cfg, repo, log)
	if o.override != nil {
		o.override(&deps)
	}
	stages := pipeline.NewStages(cfg, deps, log)

	var gopts []graph.Option
	var m *metrics.Metrics
	if cfg.MetricsFile != "" {
		m = metrics.New()
		gopts = append(gopts, graph.WithObserver(m))
	}
	if cfg.EventLog != "" {
		events, err := openEventLog(cfg.EventLog)
		if err != nil {
			log.Warn("event log unavailable", zap.Error(err))
		} else {
			defer events.Close()
			gopts = append(gopts, graph.WithObserver(db.NewRecorder(events, runID, log)))
		}
	}

	var g *graph.Graph
	if opts.Stage == "" {
		g, err = stages.Build(gopts...)
	} else {
		g, err = stages.BuildSingle(opts.Stage, gopts...)
	}
	if err != nil {
		return nil, fmt.Errorf("build pipeline: %w", err)
	}

	initial := state.New(repo, state.Options{
		TriggerSource: opts.Trigger,
		SkipDeploy:    opts.SkipDeploy,
		ChangedFiles:  opts.ChangedFiles,
	})
	log.Info("pipeline started", zap.String("trigger", initial.TriggerSource), zap.String("stage", opts.Stage))

	final, err := g.Run(ctx, initial)
	if err != nil {
		return nil, fmt.Errorf("run pipeline: %w", err)
	}
	log.Info("pipeline finished", zap.String("outcome", metrics.Outcome(final)), zap.Int("errors", len(final.Errors)))

	if m != nil {
		if err := m.WriteFile(cfg.MetricsFile); err != nil {
			log.Warn("metrics write failed", zap.String("path", cfg.MetricsFile), zap.Error(err))
		}
	}
	return &RunResult{RunID: runID, State: final}, nil
}

func openEventLog(dsn string) (*db.DB, error) {
	d, err := db.Open(dsn)
	if err != nil {
		return nil, err
	}
	if err := d.Migrate(); err != nil {
		d.Close()
		return nil, err
	}
	return d, nil
}

// Status renders the effective configuration as YAML with secrets masked.
func Status(cfg config.Config) (string, error) {
	out, err := yaml.Marshal(cfg.Redacted())
	if err != nil {
		return "", fmt.Errorf("marshal config: %w", err)
	}
	return string(out), nil
}
