package db

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/musharrafhamraz/afterburner/internal/pipeline"
	"github.com/musharrafhamraz/afterburner/internal/state"
)

// Event names written to pipeline_events.
const (
	EventStageStarted  = "stage_started"
	EventStageFinished = "stage_finished"
	EventStageFailed   = "stage_failed"
	EventGateDecided   = "gate_decided"
	EventRunFinished   = "run_finished"
)

// Recorder writes a run's progress to the event log. Write failures are
// logged and never affect the run.
type Recorder struct {
	db    *DB
	runID string
	log   *zap.Logger

	mu       sync.Mutex
	attempts map[string]int
}

// NewRecorder returns an observer that tags every row with runID.
func NewRecorder(d *DB, runID string, log *zap.Logger) *Recorder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Recorder{db: d, runID: runID, log: log, attempts: map[string]int{}}
}

func (r *Recorder) attempt(stage string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.attempts[stage]
}

func (r *Recorder) StageStarted(stage string, _ *state.PipelineState) {
	r.mu.Lock()
	r.attempts[stage]++
	n := r.attempts[stage]
	r.mu.Unlock()
	r.event(EventStageStarted, stage, n, "")
}

func (r *Recorder) StageFinished(stage string, elapsed time.Duration, err error) {
	if err != nil {
		r.event(EventStageFailed, stage, r.attempt(stage), err.Error())
		return
	}
	r.event(EventStageFinished, stage, r.attempt(stage), "duration="+elapsed.Round(time.Millisecond).String())
}

func (r *Recorder) GateDecided(stage, gate, label, next string) {
	r.event(EventGateDecided, stage, r.attempt(stage), fmt.Sprintf("%s: %s -> %s", gate, label, next))
}

// RunFinished stores the final security and test outcomes as check runs.
func (r *Recorder) RunFinished(s *state.PipelineState) {
	if rep := s.SecurityReport; rep != nil {
		r.check(CheckRun{
			Stage:      pipeline.StageSecurityReview,
			Attempt:    r.attempt(pipeline.StageSecurityReview),
			CheckName:  "security",
			Passed:     rep.Passed,
			DurationMs: rep.ScanDurationMs,
			Summary:    fmt.Sprintf("%d critical, %d warning, %d info", rep.CriticalCount(), rep.WarningCount(), rep.InfoCount()),
		})
	}
	for _, t := range s.TestResults {
		r.check(CheckRun{
			Stage:      pipeline.StageTestRun,
			Attempt:    r.attempt(pipeline.StageTestRun),
			CheckName:  t.Framework,
			Passed:     t.AllPassed(),
			DurationMs: t.DurationMs,
			Summary:    fmt.Sprintf("%d passed, %d failed, %d skipped", t.Passed, t.Failed, t.Skipped),
		})
	}

	outcome := "completed"
	if s.HardFail {
		outcome = "hard_fail"
	}
	r.event(EventRunFinished, s.CurrentStage, 0, outcome)
}

func (r *Recorder) event(event, stage string, attempt int, detail string) {
	if err := r.db.LogPipelineEvent(r.runID, event, stage, attempt, detail); err != nil {
		r.log.Warn("event log write failed", zap.String("event", event), zap.Error(err))
	}
}

func (r *Recorder) check(c CheckRun) {
	c.RunID = r.runID
	if err := r.db.LogCheckRun(c); err != nil {
		r.log.Warn("event log write failed", zap.String("check", c.CheckName), zap.Error(err))
	}
}
