package orchestrator

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/musharrafhamraz/afterburner/internal/checks"
	"github.com/musharrafhamraz/afterburner/internal/config"
	"github.com/musharrafhamraz/afterburner/internal/deploy"
	"github.com/musharrafhamraz/afterburner/internal/detect"
	"github.com/musharrafhamraz/afterburner/internal/github"
	"github.com/musharrafhamraz/afterburner/internal/gitops"
	"github.com/musharrafhamraz/afterburner/internal/llm"
	"github.com/musharrafhamraz/afterburner/internal/pipeline"
	"github.com/musharrafhamraz/afterburner/internal/report"
	"github.com/musharrafhamraz/afterburner/internal/security"
	"github.com/musharrafhamraz/afterburner/internal/testrun"
)

// deps builds the production collaborators for repo.
func (o *Orchestrator) deps(ctx context.Context, cfg config.Config, repo string, log *zap.Logger) pipeline.Deps {
	cr := checks.NewRunner(o.cmd)

	d := pipeline.Deps{
		Detector:   detect.Detector{},
		Scanners:   scanners(cfg, cr),
		Frameworks: testrun.Detector{},
		Runners:    map[string]pipeline.TestRunner{},
		Git:        gitops.New(repo, cfg.GitHubToken),
		Reviewers:  github.CodeOwners{},
		Deployers: map[string]pipeline.Deployer{
			"vercel": deploy.NewVercel(cr, cfg.VercelToken, log),
			"docker": deploy.NewDocker(cr, log),
		},
		CI:         deploy.NewCI(),
		Monitoring: deploy.NewMonitoring(),
		Health:     deploy.NewHealth(),
		Renderer:   report.New(),
	}
	for name, r := range testrun.Runners(cr) {
		d.Runners[name] = r
	}

	client, err := llm.New(ctx, cfg)
	switch {
	case err == nil:
		agents := llm.NewAgents(client, repo, log)
		d.Triager = agents
		d.Advisor = agents
		d.Messages = agents
	case errors.Is(err, llm.ErrDisabled):
		log.Debug("llm disabled", zap.Error(err))
	default:
		log.Warn("llm unavailable, continuing without it", zap.Error(err))
	}

	if cfg.RemotePublishEnabled() {
		gh, err := github.NewClient(ctx, cfg.GitHubToken, cfg.GitHubRepo, log)
		if err != nil {
			log.Warn("github client unavailable", zap.Error(err))
		} else {
			d.PRs = gh
		}
	}
	return d
}

// scanners returns the enabled security tools. npm audit and cargo audit
// have no switch; they only run when their languages changed.
func scanners(cfg config.Config, cr *checks.Runner) []pipeline.Scanner {
	var out []pipeline.Scanner
	if cfg.EnableSemgrep {
		out = append(out, security.NewSemgrep(cr))
	}
	if cfg.EnableGitleaks {
		out = append(out, security.NewGitleaks())
	}
	if cfg.EnableBandit {
		out = append(out, security.NewBandit(cr))
	}
	return append(out, security.NewNPMAudit(cr), security.NewCargoAudit(cr))
}
