// Package checks runs external tools and turns their output into findings and
// test counts.
package checks

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/musharrafhamraz/afterburner/internal/state"
)

// ErrNotInstalled is returned when the tool binary is not on PATH.
var ErrNotInstalled = errors.New("tool not installed")

// Result holds the structured output of a command run.
type Result struct {
	CheckName  string          `json:"check_name"`
	Passed     bool            `json:"passed"`
	TimedOut   bool            `json:"timed_out"`
	ExitCode   int             `json:"exit_code"`
	DurationMs int64           `json:"duration_ms"`
	Summary    string          `json:"summary"`
	Findings   []state.Finding `json:"findings,omitempty"`
	Tests      TestCounts      `json:"tests"`
	ParseError error           `json:"-"`
	Stdout     string          `json:"stdout,omitempty"`
	Stderr     string          `json:"stderr,omitempty"`
}

// Command describes one tool invocation.
type Command struct {
	Name    string
	Program string
	Args    []string
	Env     []string
	Parser  string
	Timeout time.Duration
}

func (c Command) String() string {
	return strings.TrimSpace(c.Program + " " + strings.Join(c.Args, " "))
}

// CommandRunner abstracts command execution for testability.
type CommandRunner interface {
	Run(ctx context.Context, dir string, env []string, program string, args ...string) (stdout string, stderr string, exitCode int, err error)
}

// ExecRunner implements CommandRunner with os/exec. Arguments are passed
// directly, never through a shell.
type ExecRunner struct{}

func (e *ExecRunner) Run(ctx context.Context, dir string, env []string, program string, args ...string) (string, string, int, error) {
	cmd := exec.CommandContext(ctx, program, args...)
	cmd.Dir = dir
	if len(env) > 0 {
		cmd.Env = append(os.Environ(), env...)
	}
	cmd.WaitDelay = 2 * time.Second

	var stdoutBuf, stderrBuf strings.Builder
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf

	err := cmd.Run()
	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		switch {
		case errors.As(err, &exitErr):
			exitCode = exitErr.ExitCode()
		case errors.Is(err, exec.ErrNotFound):
			return "", "", -1, fmt.Errorf("%w: %s", ErrNotInstalled, program)
		default:
			return stdoutBuf.String(), stderrBuf.String(), -1, fmt.Errorf("exec: %w", err)
		}
	}
	return stdoutBuf.String(), stderrBuf.String(), exitCode, nil
}

// Runner executes commands and parses their output.
type Runner struct {
	cmd     CommandRunner
	parsers map[string]Parser
}

// NewRunner creates a Runner with the given command runner.
func NewRunner(cmd CommandRunner) *Runner {
	if cmd == nil {
		cmd = &ExecRunner{}
	}
	r := &Runner{
		cmd:     cmd,
		parsers: make(map[string]Parser),
	}
	r.parsers["semgrep"] = &SemgrepParser{}
	r.parsers["bandit"] = &BanditParser{}
	r.parsers["npm-audit"] = &NPMAuditParser{}
	r.parsers["cargo-audit"] = &CargoAuditParser{}
	r.parsers["vitest"] = &VitestParser{}
	r.parsers["pytest"] = &PytestParser{}
	r.parsers["cargo-test"] = &CargoTestParser{}
	r.parsers["go-test"] = &GoTestParser{}
	r.parsers["playwright"] = &PlaywrightParser{}
	r.parsers["generic"] = &GenericParser{}
	return r
}

// Run executes a single command in dir. A timeout is reported through
// Result.TimedOut, not as an error.
func (r *Runner) Run(ctx context.Context, dir string, c Command) (*Result, error) {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	stdout, stderr, exitCode, err := r.cmd.Run(ctx, dir, c.Env, c.Program, c.Args...)
	durationMs := time.Since(start).Milliseconds()

	if ctx.Err() == context.DeadlineExceeded {
		return &Result{
			CheckName:  c.Name,
			Passed:     false,
			TimedOut:   true,
			ExitCode:   -1,
			DurationMs: durationMs,
			Summary:    fmt.Sprintf("timeout after %s", timeout),
			Stdout:     stdout,
			Stderr:     stderr,
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("run %q: %w", c.Name, err)
	}

	parser, ok := r.parsers[c.Parser]
	if !ok {
		parser = r.parsers["generic"]
	}
	parsed := parser.Parse(stdout, stderr, exitCode)

	return &Result{
		CheckName:  c.Name,
		Passed:     parsed.Passed,
		ExitCode:   exitCode,
		DurationMs: durationMs,
		Summary:    parsed.Summary,
		Findings:   parsed.Findings,
		Tests:      parsed.Tests,
		ParseError: parsed.Err,
		Stdout:     stdout,
		Stderr:     stderr,
	}, nil
}

// Tail keeps at most the last n bytes of s without splitting a rune.
func Tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	i := len(s) - n
	for i < len(s) && !utf8.RuneStart(s[i]) {
		i++
	}
	return s[i:]
}

// Combined joins stdout and stderr the way the parsers report output.
func Combined(stdout, stderr string) string {
	if stderr == "" {
		return stdout
	}
	if stdout == "" {
		return stderr
	}
	return stdout + "\n" + stderr
}
