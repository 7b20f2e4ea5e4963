// Package state holds the per-run pipeline record and the rules for merging
// stage updates into it.
package state

import (
	"fmt"
	"maps"
	"slices"
)

// PipelineState is the single record that flows through every stage of one run.
// It is built by New, mutated only through Apply, and discarded after the run.
type PipelineState struct {
	RepoPath      string `json:"repo_path"`
	TriggerSource string `json:"trigger_source"`
	SkipDeploy    bool   `json:"skip_deploy"`

	ChangedFiles []string            `json:"changed_files"`
	FileTypes    map[string][]string `json:"file_types,omitempty"`
	DiffSummary  string              `json:"diff_summary,omitempty"`

	SecurityPassed      bool            `json:"security_passed"`
	SecurityIssuesCount int             `json:"security_issues_count"`
	SecurityReport      *SecurityReport `json:"security_report,omitempty"`
	ReflectionCount     int             `json:"reflection_count"`

	TestResults         []TestRunResult `json:"test_results"`
	TestsPassed         bool            `json:"tests_passed"`
	TestDebugIterations int             `json:"test_debug_iterations"`

	BranchName string `json:"branch_name,omitempty"`
	CommitSHA  string `json:"commit_sha,omitempty"`
	PRURL      string `json:"pr_url,omitempty"`
	PRNumber   int    `json:"pr_number,omitempty"`

	DeploymentTarget     string        `json:"deployment_target,omitempty"`
	DeploymentURL        string        `json:"deployment_url,omitempty"`
	DeploymentStatus     string        `json:"deployment_status,omitempty"`
	MonitoringConfigured bool          `json:"monitoring_configured"`
	HealthCheck          *HealthResult `json:"health_check,omitempty"`

	HardFail     bool      `json:"hard_fail"`
	Errors       []string  `json:"errors"`
	CurrentStage string    `json:"current_stage"`
	FinalSummary string    `json:"final_summary,omitempty"`
	Messages     []Message `json:"messages"`
}

// Options seeds the immutable inputs of a run.
type Options struct {
	TriggerSource string
	SkipDeploy    bool
	// ChangedFiles pre-populates the change set, e.g. from a git hook.
	ChangedFiles []string
}

// New returns the initial state for a run over repoPath.
func New(repoPath string, opts Options) *PipelineState {
	trigger := opts.TriggerSource
	if trigger == "" {
		trigger = "cli"
	}
	return &PipelineState{
		RepoPath:      repoPath,
		TriggerSource: trigger,
		SkipDeploy:    opts.SkipDeploy,
		ChangedFiles:  append([]string{}, opts.ChangedFiles...),
		TestResults:   []TestRunResult{},
		Errors:        []string{},
		Messages:      []Message{},
		CurrentStage:  "starting",
	}
}

// Clone returns a deep copy so a stage can read state without being able to
// alter the engine's copy.
func (s *PipelineState) Clone() *PipelineState {
	c := *s
	c.ChangedFiles = slices.Clone(s.ChangedFiles)
	c.TestResults = slices.Clone(s.TestResults)
	c.Errors = slices.Clone(s.Errors)
	c.Messages = slices.Clone(s.Messages)
	if s.FileTypes != nil {
		c.FileTypes = make(map[string][]string, len(s.FileTypes))
		for k, v := range s.FileTypes {
			c.FileTypes[k] = slices.Clone(v)
		}
	}
	if s.SecurityReport != nil {
		r := *s.SecurityReport
		r.Findings = slices.Clone(r.Findings)
		r.ScannerErrors = slices.Clone(r.ScannerErrors)
		c.SecurityReport = &r
	}
	if s.HealthCheck != nil {
		h := *s.HealthCheck
		c.HealthCheck = &h
	}
	return &c
}

// Update is a partial change returned by a stage. Nil pointer fields are
// absent; slice fields are appended; FileTypes replaces when non-nil.
type Update struct {
	ChangedFiles []string
	FileTypes    map[string][]string
	DiffSummary  *string

	SecurityPassed      *bool
	SecurityIssuesCount *int
	SecurityReport      *SecurityReport
	ReflectionCount     *int

	TestResults         []TestRunResult
	TestsPassed         *bool
	TestDebugIterations *int

	BranchName *string
	CommitSHA  *string
	PRURL      *string
	PRNumber   *int

	DeploymentTarget     *string
	DeploymentURL        *string
	DeploymentStatus     *string
	MonitoringConfigured *bool
	HealthCheck          *HealthResult

	HardFail     *bool
	Errors       []string
	CurrentStage *string
	FinalSummary *string
	Messages     []Message
}

// Apply merges u into s. It checks every rule first and only then writes, so
// a rejected update leaves s untouched.
func (s *PipelineState) Apply(u Update) error {
	if u.ReflectionCount != nil && *u.ReflectionCount < s.ReflectionCount {
		return fmt.Errorf("reflection_count would decrease from %d to %d", s.ReflectionCount, *u.ReflectionCount)
	}
	if u.TestDebugIterations != nil && *u.TestDebugIterations < s.TestDebugIterations {
		return fmt.Errorf("test_debug_iterations would decrease from %d to %d", s.TestDebugIterations, *u.TestDebugIterations)
	}

	// append-merge
	s.ChangedFiles = append(s.ChangedFiles, u.ChangedFiles...)
	s.TestResults = append(s.TestResults, u.TestResults...)
	s.Errors = append(s.Errors, u.Errors...)
	s.Messages = append(s.Messages, u.Messages...)

	// overwrite
	if u.FileTypes != nil {
		s.FileTypes = maps.Clone(u.FileTypes)
	}
	setString(&s.DiffSummary, u.DiffSummary)
	setBool(&s.SecurityPassed, u.SecurityPassed)
	setInt(&s.SecurityIssuesCount, u.SecurityIssuesCount)
	if u.SecurityReport != nil {
		r := *u.SecurityReport
		s.SecurityReport = &r
	}
	setInt(&s.ReflectionCount, u.ReflectionCount)
	setBool(&s.TestsPassed, u.TestsPassed)
	setInt(&s.TestDebugIterations, u.TestDebugIterations)
	setString(&s.BranchName, u.BranchName)
	setString(&s.CommitSHA, u.CommitSHA)
	setString(&s.PRURL, u.PRURL)
	setInt(&s.PRNumber, u.PRNumber)
	setString(&s.DeploymentTarget, u.DeploymentTarget)
	setString(&s.DeploymentURL, u.DeploymentURL)
	setString(&s.DeploymentStatus, u.DeploymentStatus)
	setBool(&s.MonitoringConfigured, u.MonitoringConfigured)
	if u.HealthCheck != nil {
		h := *u.HealthCheck
		s.HealthCheck = &h
	}
	setBool(&s.HardFail, u.HardFail)
	setString(&s.CurrentStage, u.CurrentStage)
	setString(&s.FinalSummary, u.FinalSummary)
	return nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

// String returns a pointer to v, for building updates.
func String(v string) *string { return &v }

// Bool returns a pointer to v.
func Bool(v bool) *bool { return &v }

// Int returns a pointer to v.
func Int(v int) *int { return &v }
