package pipeline

import (
	"fmt"

	"github.com/musharrafhamraz/afterburner/internal/graph"
)

// Build returns the full Afterburner topology:
//
//	detect -> security_review -[gate]-> test_run -[gate]-> commit -> deploy -> summarize -> END
//	                  ^ retry   \ hard_fail   ^ retry  \ hard_fail
//	hard_fail -> summarize
func (p *Stages) Build(opts ...graph.Option) (*graph.Graph, error) {
	return graph.New(graph.Spec{
		Entry:  StageDetect,
		Stages: p.registry(),
		Edges: map[string]string{
			StageDetect:    StageSecurityReview,
			StageCommit:    StageDeploy,
			StageDeploy:    StageSummarize,
			StageHardFail:  StageSummarize,
			StageSummarize: graph.End,
		},
		Conditional: map[string]graph.Conditional{
			StageSecurityReview: {
				Name: "security_gate",
				Gate: SecurityGate(p.cfg.MaxReflectionRetries),
				Routes: map[string]string{
					LabelProceed:             StageTestRun,
					LabelRetrySecurityReview: StageSecurityReview,
					LabelHardFail:            StageHardFail,
				},
			},
			StageTestRun: {
				Name: "test_gate",
				Gate: TestGate(p.cfg.MaxTestDebugIterations),
				Routes: map[string]string{
					LabelProceed:      StageCommit,
					LabelRetryTestRun: StageTestRun,
					LabelHardFail:     StageHardFail,
				},
			},
		},
	}, opts...)
}

// BuildSingle returns detect -> stage -> summarize -> END, for running one
// stage on its own. The single stage runs once, without its gate.
func (p *Stages) BuildSingle(stage string, opts ...graph.Option) (*graph.Graph, error) {
	all := p.registry()
	fn, ok := all[stage]
	if !ok || stage == StageDetect || stage == StageSummarize || stage == StageHardFail {
		return nil, fmt.Errorf("stage %q cannot run on its own", stage)
	}
	return graph.New(graph.Spec{
		Entry: StageDetect,
		Stages: map[string]graph.StageFunc{
			StageDetect:    all[StageDetect],
			stage:          fn,
			StageSummarize: all[StageSummarize],
		},
		Edges: map[string]string{
			StageDetect:    stage,
			stage:          StageSummarize,
			StageSummarize: graph.End,
		},
	}, opts...)
}

func (p *Stages) registry() map[string]graph.StageFunc {
	return map[string]graph.StageFunc{
		StageDetect:         p.Detect,
		StageSecurityReview: p.SecurityReview,
		StageTestRun:        p.TestRun,
		StageCommit:         p.Commit,
		StageDeploy:         p.Deploy,
		StageSummarize:      p.Summarize,
		StageHardFail:       p.HardFail,
	}
}
