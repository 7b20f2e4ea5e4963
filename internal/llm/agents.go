package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/musharrafhamraz/afterburner/internal/checks"
	"github.com/musharrafhamraz/afterburner/internal/pipeline"
	"github.com/musharrafhamraz/afterburner/internal/prompt"
	"github.com/musharrafhamraz/afterburner/internal/state"
)

// maxDebugOutput bounds the test output sent for self-debug.
const maxDebugOutput = 3000

// Agents implements the optional model-backed collaborators of the
// pipeline. Templates are loaded from the repository with built-in
// fallbacks.
type Agents struct {
	gen  Generator
	repo string
	log  *zap.Logger
}

// NewAgents binds gen to the repository at repoPath.
func NewAgents(gen Generator, repoPath string, log *zap.Logger) *Agents {
	if log == nil {
		log = zap.NewNop()
	}
	return &Agents{gen: gen, repo: repoPath, log: log}
}

type triageVerdict struct {
	Index    *int   `json:"index"`
	Severity string `json:"severity"`
	Reason   string `json:"reason"`
}

// Triage asks the model to re-classify severities. Verdicts with an
// out-of-range index or an unknown severity are ignored.
func (a *Agents) Triage(ctx context.Context, findings []state.Finding) ([]state.Finding, error) {
	if len(findings) == 0 {
		return findings, nil
	}
	var sb strings.Builder
	for i, f := range findings {
		fmt.Fprintf(&sb, "[%d] tool=%s severity=%s file=%s message=%s\n", i, f.Tool, f.Severity, f.Location(), f.Message)
	}
	p, err := prompt.Build(prompt.Triage, a.repo, prompt.Vars{"findings": strings.TrimRight(sb.String(), "\n")})
	if err != nil {
		return nil, err
	}
	out, err := a.gen.Generate(ctx, p)
	if err != nil {
		return nil, err
	}

	verdicts, err := parseVerdicts(out)
	if err != nil {
		return nil, err
	}
	result := make([]state.Finding, len(findings))
	copy(result, findings)
	for _, v := range verdicts {
		if v.Index == nil || *v.Index < 0 || *v.Index >= len(result) || !state.ValidSeverity(v.Severity) {
			continue
		}
		if result[*v.Index].Severity != v.Severity {
			a.log.Debug("finding re-classified",
				zap.Int("index", *v.Index),
				zap.String("from", result[*v.Index].Severity),
				zap.String("to", v.Severity),
				zap.String("reason", v.Reason))
			result[*v.Index].Severity = v.Severity
		}
	}
	return result, nil
}

func parseVerdicts(out string) ([]triageVerdict, error) {
	body := stripFences(out)
	start, end := strings.IndexByte(body, '['), strings.LastIndexByte(body, ']')
	if start < 0 || end < start {
		return nil, fmt.Errorf("triage response is not a JSON array")
	}
	var verdicts []triageVerdict
	if err := json.Unmarshal([]byte(body[start:end+1]), &verdicts); err != nil {
		return nil, fmt.Errorf("parse triage response: %w", err)
	}
	return verdicts, nil
}

// Suggest proposes a fix for failing tests. It returns "" when no result
// carries an error.
func (a *Agents) Suggest(ctx context.Context, results []state.TestRunResult, files []string, iteration int) (string, error) {
	var errs, outputs []string
	for _, r := range results {
		if r.AllPassed() {
			continue
		}
		errs = append(errs, r.Errors...)
		if r.Output != "" {
			outputs = append(outputs, r.Output)
		}
	}
	if len(errs) == 0 && len(outputs) == 0 {
		return "", nil
	}

	output := strings.Join(outputs, "\n")
	output = checks.Tail(output, maxDebugOutput)
	p, err := prompt.Build(prompt.SelfDebug, a.repo, prompt.Vars{
		"test_output":   output,
		"changed_files": strings.Join(files, ", "),
		"errors":        strings.Join(errs, "\n"),
	})
	if err != nil {
		return "", err
	}
	out, err := a.gen.Generate(ctx, p)
	if err != nil {
		return "", err
	}
	return "Self-debug suggestion (iteration " + strconv.Itoa(iteration) + "):\n" + strings.TrimSpace(out), nil
}

// CommitMessage drafts a Conventional Commits message.
func (a *Agents) CommitMessage(ctx context.Context, c pipeline.CommitContext) (string, error) {
	p, err := prompt.Build(prompt.CommitMessage, a.repo, prompt.Vars{
		"diff_summary":    c.DiffSummary,
		"changed_files":   strings.Join(c.Files, ", "),
		"security_status": passFail(c.SecurityPassed),
		"test_status":     passFail(c.TestsPassed),
	})
	if err != nil {
		return "", err
	}
	out, err := a.gen.Generate(ctx, p)
	if err != nil {
		return "", err
	}
	return stripFences(out), nil
}

func passFail(ok bool) string {
	if ok {
		return "passed"
	}
	return "failed"
}
