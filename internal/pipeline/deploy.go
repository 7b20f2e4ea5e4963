package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/musharrafhamraz/afterburner/internal/state"
)

// Deploy generates CI configuration, ships to the configured target, sets up
// monitoring and probes the deployed URL. Every step is best-effort; Deploy
// tolerates a missing commit from an earlier stage.
func (p *Stages) Deploy(ctx context.Context, s *state.PipelineState) (state.Update, error) {
	skip := s.SkipDeploy || p.cfg.SkipDeploy
	p.log.Info("launch controller", zap.String("target", p.cfg.DeployTarget), zap.Bool("skip", skip))

	if !skip && p.deps.CI != nil {
		path, err := p.deps.CI.Generate(s.RepoPath)
		if err != nil {
			p.log.Warn("CI workflow generation failed", zap.Error(err))
		} else {
			p.log.Info("CI workflow ready", zap.String("path", path))
		}
	}

	result := p.deploy(ctx, s.RepoPath, skip)
	monitoring := p.monitoring(s.RepoPath)

	u := state.Update{
		DeploymentTarget:     state.String(result.Target),
		DeploymentStatus:     state.String(result.Status),
		MonitoringConfigured: state.Bool(monitoring),
	}
	if result.URL != "" {
		u.DeploymentURL = state.String(result.URL)
	}

	if result.Status == state.DeploySuccess && result.URL != "" && p.deps.Health != nil {
		h := p.deps.Health.Check(ctx, result.URL)
		u.HealthCheck = &h
		if h.Healthy {
			p.log.Info("health check passed", zap.String("url", h.URL), zap.Int64("response_ms", h.ResponseTimeMs))
		} else {
			p.log.Warn("health check failed", zap.String("url", h.URL), zap.String("error", h.Error))
		}
	}
	return u, nil
}

func (p *Stages) deploy(ctx context.Context, repoPath string, skip bool) state.DeployResult {
	if skip || !p.cfg.DeployEnabled() {
		p.log.Info("deployment skipped")
		return state.DeployResult{Target: "none", Status: state.DeploySkipped}
	}
	d, ok := p.deps.Deployers[p.cfg.DeployTarget]
	if !ok {
		p.log.Warn("unknown deploy target, skipping", zap.String("target", p.cfg.DeployTarget))
		return state.DeployResult{Target: p.cfg.DeployTarget, Status: state.DeploySkipped}
	}

	result := d.Deploy(ctx, repoPath)
	if result.Target == "" {
		result.Target = p.cfg.DeployTarget
	}
	if result.Status == "" {
		result.Status = state.DeployFailed
	}
	p.log.Info("deployment finished", zap.String("target", result.Target), zap.String("status", result.Status), zap.String("url", result.URL))
	return result
}

func (p *Stages) monitoring(repoPath string) bool {
	if p.deps.Monitoring == nil {
		return false
	}
	configured := false
	if p.cfg.SentryDSN != "" {
		ok, err := p.deps.Monitoring.SetupSentry(repoPath, p.cfg.SentryDSN)
		if err != nil {
			p.log.Warn("sentry setup failed", zap.Error(err))
		}
		configured = configured || ok
	}
	if p.cfg.EnablePrometheus {
		path, err := p.deps.Monitoring.SetupPrometheus(repoPath)
		if err != nil {
			p.log.Warn("prometheus config generation failed", zap.Error(err))
		} else {
			p.log.Info("prometheus config ready", zap.String("path", path))
			configured = true
		}
	}
	return configured
}
