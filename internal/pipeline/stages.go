// Package pipeline defines the Afterburner stages, their gates and the
// topology that wires them into a graph.
package pipeline

import (
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/musharrafhamraz/afterburner/internal/config"
)

// Stage names.
const (
	StageDetect         = "detect"
	StageSecurityReview = "security_review"
	StageTestRun        = "test_run"
	StageCommit         = "commit"
	StageDeploy         = "deploy"
	StageSummarize      = "summarize"
	StageHardFail       = "hard_fail"
)

// Stages holds the configuration and collaborators shared by every stage
// function. It keeps no per-run data, so one value can serve several runs.
type Stages struct {
	cfg  config.Config
	deps Deps
	log  *zap.Logger
}

// NewStages creates the stage set. A nil logger disables logging.
func NewStages(cfg config.Config, deps Deps, log *zap.Logger) *Stages {
	if log == nil {
		log = zap.NewNop()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Stages{cfg: cfg, deps: deps, log: log}
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
