package pipeline

import "github.com/musharrafhamraz/afterburner/internal/state"

// Gate labels.
const (
	LabelProceed             = "proceed"
	LabelRetrySecurityReview = "retrySecurityReview"
	LabelRetryTestRun        = "retryTestRun"
	LabelHardFail            = "hardFail"
)

// SecurityGate routes after SecurityReview. reflectionCount has already been
// incremented for the failing run, so a count equal to the ceiling hard-fails.
func SecurityGate(maxReflectionRetries int) func(s *state.PipelineState) string {
	return func(s *state.PipelineState) string {
		if s.SecurityPassed {
			return LabelProceed
		}
		if s.ReflectionCount < maxReflectionRetries {
			return LabelRetrySecurityReview
		}
		return LabelHardFail
	}
}

// TestGate routes after TestRun. testDebugIterations counts every execution,
// so the ceiling is the total number of attempts.
func TestGate(maxTestDebugIterations int) func(s *state.PipelineState) string {
	return func(s *state.PipelineState) string {
		if s.TestsPassed {
			return LabelProceed
		}
		if s.TestDebugIterations < maxTestDebugIterations {
			return LabelRetryTestRun
		}
		return LabelHardFail
	}
}
