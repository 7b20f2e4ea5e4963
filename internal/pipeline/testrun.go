package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/musharrafhamraz/afterburner/internal/state"
)

// TestRun runs every detected and enabled test framework. It increments
// testDebugIterations on every execution, pass or fail.
func (p *Stages) TestRun(ctx context.Context, s *state.PipelineState) (state.Update, error) {
	iteration := s.TestDebugIterations + 1
	p.log.Info("running tests", zap.Int("iteration", iteration))

	var frameworks []string
	if p.deps.Frameworks != nil {
		frameworks = p.deps.Frameworks.Detect(s.RepoPath)
	}

	var results []state.TestRunResult
	passed := true
	for _, fw := range frameworks {
		if fw == "playwright" && !p.cfg.EnablePlaywright {
			p.log.Debug("skipping framework", zap.String("framework", fw), zap.String("reason", "not enabled"))
			continue
		}
		runner, ok := p.deps.Runners[fw]
		if !ok {
			p.log.Debug("skipping framework", zap.String("framework", fw), zap.String("reason", "no runner"))
			continue
		}

		r := runner.Run(ctx, s.RepoPath, s.ChangedFiles, p.cfg.TestTimeout())
		if r.Framework == "" {
			r.Framework = fw
		}
		results = append(results, r)

		if r.AllPassed() {
			p.log.Info("tests passed", zap.String("framework", fw), zap.Int("passed", r.Passed))
		} else {
			passed = false
			p.log.Warn("tests failed", zap.String("framework", fw), zap.Int("passed", r.Passed), zap.Int("failed", r.Failed))
		}
	}
	if len(frameworks) == 0 {
		p.log.Info("no test frameworks detected")
	}

	u := state.Update{
		TestResults:         results,
		TestsPassed:         state.Bool(passed),
		TestDebugIterations: state.Int(iteration),
	}

	if !passed && p.deps.Advisor != nil {
		hint, err := p.deps.Advisor.Suggest(ctx, results, s.ChangedFiles, iteration)
		if err != nil {
			p.log.Warn("debug suggestion failed", zap.Error(err))
		} else if hint != "" {
			u.Messages = []state.Message{{Role: "user", Content: hint}}
		}
	}
	return u, nil
}
