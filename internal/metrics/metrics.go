// Package metrics records pipeline runs as Prometheus metrics.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/musharrafhamraz/afterburner/internal/state"
)

// Run outcomes.
const (
	OutcomeSuccess  = "success"
	OutcomeErrors   = "errors"
	OutcomeHardFail = "hard_fail"
)

// Metrics observes graph runs. Each instance owns its registry so several
// engines in one process do not collide.
//
// Metrics:
//   - afterburner_stage_executions_total{stage}
//   - afterburner_stage_failures_total{stage}
//   - afterburner_stage_duration_seconds{stage}
//   - afterburner_gate_decisions_total{gate,label}
//   - afterburner_runs_total{outcome}
//   - afterburner_security_findings{severity}
type Metrics struct {
	Registry *prometheus.Registry

	StageExecutions *prometheus.CounterVec
	StageFailures   *prometheus.CounterVec
	StageDuration   *prometheus.HistogramVec
	GateDecisions   *prometheus.CounterVec
	Runs            *prometheus.CounterVec
	Findings        *prometheus.GaugeVec
}

// New creates and registers the pipeline metrics on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		StageExecutions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "afterburner_stage_executions_total",
			Help: "Total number of stage executions",
		}, []string{"stage"}),
		StageFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "afterburner_stage_failures_total",
			Help: "Total number of stage executions that returned an error",
		}, []string{"stage"}),
		StageDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "afterburner_stage_duration_seconds",
			Help:    "Duration of stage execution in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		}, []string{"stage"}),
		GateDecisions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "afterburner_gate_decisions_total",
			Help: "Total number of gate decisions by label",
		}, []string{"gate", "label"}),
		Runs: f.NewCounterVec(prometheus.CounterOpts{
			Name: "afterburner_runs_total",
			Help: "Total number of completed runs by outcome",
		}, []string{"outcome"}),
		Findings: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "afterburner_security_findings",
			Help: "Security findings in the last completed run",
		}, []string{"severity"}),
	}
}

func (m *Metrics) StageStarted(stage string, _ *state.PipelineState) {
	m.StageExecutions.WithLabelValues(stage).Inc()
}

func (m *Metrics) StageFinished(stage string, elapsed time.Duration, err error) {
	m.StageDuration.WithLabelValues(stage).Observe(elapsed.Seconds())
	if err != nil {
		m.StageFailures.WithLabelValues(stage).Inc()
	}
}

func (m *Metrics) GateDecided(_, gate, label, _ string) {
	m.GateDecisions.WithLabelValues(gate, label).Inc()
}

func (m *Metrics) RunFinished(s *state.PipelineState) {
	m.Runs.WithLabelValues(Outcome(s)).Inc()
	if r := s.SecurityReport; r != nil {
		m.Findings.WithLabelValues(state.SeverityCritical).Set(float64(r.CriticalCount()))
		m.Findings.WithLabelValues(state.SeverityWarning).Set(float64(r.WarningCount()))
		m.Findings.WithLabelValues(state.SeverityInfo).Set(float64(r.InfoCount()))
	}
}

// Outcome classifies a finished run.
func Outcome(s *state.PipelineState) string {
	switch {
	case s.HardFail:
		return OutcomeHardFail
	case len(s.Errors) > 0:
		return OutcomeErrors
	default:
		return OutcomeSuccess
	}
}

// WriteFile writes the registry in the node_exporter textfile format.
func (m *Metrics) WriteFile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.Registry); err != nil {
		return fmt.Errorf("write metrics %s: %w", path, err)
	}
	return nil
}
