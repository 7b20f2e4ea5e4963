package pipeline

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/musharrafhamraz/afterburner/internal/state"
)

// Detect lists the changed files and classifies them. An empty change set is
// a normal outcome and produces empty downstream results.
func (p *Stages) Detect(ctx context.Context, s *state.PipelineState) (state.Update, error) {
	p.log.Info("detecting changes", zap.String("repo", s.RepoPath))

	if p.deps.Detector == nil {
		return state.Update{}, fmt.Errorf("no change detector configured")
	}

	// Files supplied by the caller (e.g. a git hook) are already in state.
	if len(s.ChangedFiles) > 0 {
		types := p.deps.Detector.Classify(s.ChangedFiles)
		p.log.Info("using supplied file list", zap.Int("files", len(s.ChangedFiles)), zap.String("types", describeTypes(types)))
		return state.Update{
			FileTypes:   nonNil(types),
			DiffSummary: state.String(fmt.Sprintf("%d files supplied by %s", len(s.ChangedFiles), s.TriggerSource)),
		}, nil
	}

	cs, err := p.deps.Detector.Detect(ctx, s.RepoPath)
	if err != nil {
		p.log.Warn("change detection failed", zap.Error(err))
		return state.Update{
			FileTypes:   map[string][]string{},
			DiffSummary: state.String("No changes detected"),
			Errors:      []string{fmt.Sprintf("Change detection failed: %v", err)},
		}, nil
	}

	if len(cs.Files) == 0 {
		p.log.Warn("no changed files detected")
		return state.Update{
			FileTypes:   map[string][]string{},
			DiffSummary: state.String("No changes detected"),
		}, nil
	}

	p.log.Info("changes detected", zap.Int("files", len(cs.Files)), zap.String("types", describeTypes(cs.Types)))
	return state.Update{
		ChangedFiles: cs.Files,
		FileTypes:    nonNil(cs.Types),
		DiffSummary:  state.String(cs.Summary),
	}, nil
}

func nonNil(m map[string][]string) map[string][]string {
	if m == nil {
		return map[string][]string{}
	}
	return m
}

// describeTypes renders "go(2), python(1)" for log lines.
func describeTypes(types map[string][]string) string {
	keys := make([]string, 0, len(types))
	for k := range types {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s(%d)", k, len(types[k])))
	}
	return strings.Join(parts, ", ")
}
