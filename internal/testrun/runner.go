package testrun

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/musharrafhamraz/afterburner/internal/checks"
	"github.com/musharrafhamraz/afterburner/internal/state"
)

// maxOutputLen caps the raw output kept in a result; the tail holds the
// failure summary for every supported framework.
const maxOutputLen = 2000

// Runner runs one framework's test command and converts the parsed output
// into a TestRunResult.
type Runner struct {
	framework string
	parser    string
	runner    *checks.Runner
	command   func(files []string) checks.Command
}

// Run never fails; problems are reported in the result's Errors.
func (r *Runner) Run(ctx context.Context, repoPath string, files []string, timeout time.Duration) state.TestRunResult {
	cmd := r.command(existingFiles(repoPath, files))
	cmd.Name = r.framework
	cmd.Parser = r.parser
	cmd.Timeout = timeout

	result := state.TestRunResult{Framework: r.framework, Errors: []string{}}
	res, err := r.runner.Run(ctx, repoPath, cmd)
	if err != nil {
		if errors.Is(err, checks.ErrNotInstalled) {
			result.Errors = append(result.Errors, fmt.Sprintf("%s not found: install it to run %s tests", cmd.Program, r.framework))
		} else {
			result.Errors = append(result.Errors, err.Error())
		}
		return result
	}

	result.DurationMs = res.DurationMs
	result.Output = checks.Tail(checks.Combined(res.Stdout, res.Stderr), maxOutputLen)
	if res.TimedOut {
		result.Errors = append(result.Errors, fmt.Sprintf("%s %s", r.framework, res.Summary))
		return result
	}

	result.Passed = res.Tests.Passed
	result.Failed = res.Tests.Failed
	result.Skipped = res.Tests.Skipped
	if res.ParseError != nil {
		result.Errors = append(result.Errors, res.ParseError.Error())
		if s := strings.TrimSpace(res.Stderr); s != "" {
			result.Errors = append(result.Errors, checks.Tail(s, 500))
		}
	}
	result.Errors = append(result.Errors, res.Tests.Failures...)
	return result
}

// Runners returns a runner for every supported framework.
func Runners(cr *checks.Runner) map[string]*Runner {
	return map[string]*Runner{
		Pytest: {
			framework: Pytest, parser: "pytest", runner: cr,
			command: func(files []string) checks.Command {
				args := []string{"-m", "pytest", "--tb=short", "-q", "--no-header"}
				return checks.Command{Program: "python", Args: append(args, testFiles(files, ".py")...)}
			},
		},
		Vitest: {
			framework: Vitest, parser: "vitest", runner: cr,
			command: func(files []string) checks.Command {
				args := []string{"vitest", "run", "--reporter=json"}
				return checks.Command{Program: "npx", Args: append(args, testFiles(files, ".ts", ".tsx", ".js", ".jsx", ".mts")...)}
			},
		},
		Jest: {
			framework: Jest, parser: "vitest", runner: cr,
			command: func(files []string) checks.Command {
				return checks.Command{Program: "npx", Args: []string{"jest", "--json", "--ci"}, Env: []string{"CI=true"}}
			},
		},
		Cargo: {
			framework: Cargo, parser: "cargo-test", runner: cr,
			command: func(files []string) checks.Command {
				return checks.Command{Program: "cargo", Args: []string{"test", "--", "--test-threads=1"}}
			},
		},
		Go: {
			framework: Go, parser: "go-test", runner: cr,
			command: func(files []string) checks.Command {
				return checks.Command{Program: "go", Args: []string{"test", "-json", "./..."}}
			},
		},
		Playwright: {
			framework: Playwright, parser: "playwright", runner: cr,
			command: func(files []string) checks.Command {
				return checks.Command{Program: "npx", Args: []string{"playwright", "test", "--reporter=json"}}
			},
		},
	}
}

// testFiles picks changed files that look like tests. An empty result runs
// the whole suite.
func testFiles(files []string, exts ...string) []string {
	var out []string
	for _, f := range files {
		base := strings.ToLower(filepath.Base(f))
		if !strings.Contains(base, "test") && !strings.Contains(base, "spec") {
			continue
		}
		for _, ext := range exts {
			if strings.HasSuffix(base, ext) {
				out = append(out, f)
				break
			}
		}
	}
	return out
}

// existingFiles drops changed paths that were deleted; test commands fail on
// arguments that no longer exist.
func existingFiles(repoPath string, files []string) []string {
	var out []string
	for _, f := range files {
		path := f
		if !filepath.IsAbs(path) {
			path = filepath.Join(repoPath, f)
		}
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			out = append(out, f)
		}
	}
	return out
}
