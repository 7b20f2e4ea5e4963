package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/musharrafhamraz/afterburner/internal/state"
)

// Summarize renders the final report from accumulated state. It always runs
// last and touches nothing outside the state.
func (p *Stages) Summarize(ctx context.Context, s *state.PipelineState) (state.Update, error) {
	if p.deps.Renderer == nil {
		return state.Update{}, fmt.Errorf("no report renderer configured")
	}
	summary := p.deps.Renderer.Render(s)
	p.log.Info("summary generated", zap.Int("chars", len(summary)))
	return state.Update{FinalSummary: state.String(summary)}, nil
}

// HardFail marks the run as failed after a retry ceiling was reached.
func (p *Stages) HardFail(ctx context.Context, s *state.PipelineState) (state.Update, error) {
	p.log.Error("pipeline hard-failed",
		zap.Int("reflection_count", s.ReflectionCount),
		zap.Int("test_debug_iterations", s.TestDebugIterations),
	)
	return state.Update{
		HardFail:     state.Bool(true),
		CurrentStage: state.String(StageHardFail),
	}, nil
}
