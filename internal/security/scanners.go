// Package security wraps the security tools the review stage runs.
package security

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/musharrafhamraz/afterburner/internal/checks"
	"github.com/musharrafhamraz/afterburner/internal/state"
)

// Scan timeouts per tool.
const (
	SASTTimeout  = 120 * time.Second
	AuditTimeout = 60 * time.Second
)

// CommandScanner is a scanner backed by an external command.
type CommandScanner struct {
	name    string
	tool    string // tool name in findings
	parser  string
	timeout time.Duration
	runner  *checks.Runner
	applies func(fileTypes map[string][]string) bool
	command func(repoPath string, files []string) (checks.Command, bool)
}

func (s *CommandScanner) Name() string { return s.name }

func (s *CommandScanner) Applies(fileTypes map[string][]string) bool {
	if s.applies == nil {
		return true
	}
	return s.applies(fileTypes)
}

// Scan runs the tool. A timeout becomes a warning finding; a missing tool or
// unparsable output is an error.
func (s *CommandScanner) Scan(ctx context.Context, repoPath string, files []string, fileTypes map[string][]string) ([]state.Finding, error) {
	cmd, ok := s.command(repoPath, files)
	if !ok {
		return nil, nil
	}
	cmd.Name = s.name
	cmd.Parser = s.parser
	cmd.Timeout = s.timeout

	res, err := s.runner.Run(ctx, repoPath, cmd)
	if err != nil {
		return nil, err
	}
	if res.TimedOut {
		return []state.Finding{{
			Tool:     s.tool,
			Severity: state.SeverityWarning,
			File:     "<timeout>",
			Message:  fmt.Sprintf("%s scan timed out after %d seconds", s.name, int(s.timeout.Seconds())),
		}}, nil
	}
	if res.ParseError != nil {
		return nil, res.ParseError
	}
	return res.Findings, nil
}

// NewSemgrep returns the language-agnostic SAST scanner. Only the changed
// files that still exist are scanned.
func NewSemgrep(runner *checks.Runner) *CommandScanner {
	return &CommandScanner{
		name:    "semgrep",
		tool:    "semgrep",
		parser:  "semgrep",
		timeout: SASTTimeout,
		runner:  runner,
		command: func(repoPath string, files []string) (checks.Command, bool) {
			args := []string{"scan", "--json", "--quiet", "--config", "auto"}
			targets := ExistingFiles(repoPath, files)
			if len(targets) == 0 {
				return checks.Command{}, false
			}
			return checks.Command{Program: "semgrep", Args: append(args, targets...)}, true
		},
	}
}

// NewBandit returns the Python scanner. It only runs when python files
// changed.
func NewBandit(runner *checks.Runner) *CommandScanner {
	return &CommandScanner{
		name:    "bandit",
		tool:    "bandit",
		parser:  "bandit",
		timeout: SASTTimeout,
		runner:  runner,
		applies: hasType("python"),
		command: func(repoPath string, files []string) (checks.Command, bool) {
			args := []string{"-f", "json", "-q"}
			var py []string
			for _, f := range ExistingFiles(repoPath, files) {
				if strings.HasSuffix(f, ".py") {
					py = append(py, f)
				}
			}
			if len(py) == 0 {
				return checks.Command{}, false
			}
			return checks.Command{Program: "bandit", Args: append(args, py...)}, true
		},
	}
}

// NewNPMAudit returns the Node dependency scanner.
func NewNPMAudit(runner *checks.Runner) *CommandScanner {
	return &CommandScanner{
		name:    "npm_audit",
		tool:    "npm_audit",
		parser:  "npm-audit",
		timeout: AuditTimeout,
		runner:  runner,
		applies: hasType("javascript", "typescript"),
		command: func(repoPath string, files []string) (checks.Command, bool) {
			if !fileExists(filepath.Join(repoPath, "package.json")) {
				return checks.Command{}, false
			}
			return checks.Command{Program: "npm", Args: []string{"audit", "--json"}}, true
		},
	}
}

// NewCargoAudit returns the Rust dependency scanner.
func NewCargoAudit(runner *checks.Runner) *CommandScanner {
	return &CommandScanner{
		name:    "cargo_audit",
		tool:    "cargo_audit",
		parser:  "cargo-audit",
		timeout: AuditTimeout,
		runner:  runner,
		applies: hasType("rust"),
		command: func(repoPath string, files []string) (checks.Command, bool) {
			if !fileExists(filepath.Join(repoPath, "Cargo.toml")) {
				return checks.Command{}, false
			}
			return checks.Command{Program: "cargo", Args: []string{"audit", "--json"}}, true
		},
	}
}

func hasType(types ...string) func(map[string][]string) bool {
	return func(fileTypes map[string][]string) bool {
		for _, t := range types {
			if len(fileTypes[t]) > 0 {
				return true
			}
		}
		return false
	}
}

// ExistingFiles keeps the files that still exist under repoPath. Deleted
// files show up as changes but cannot be scanned.
func ExistingFiles(repoPath string, files []string) []string {
	var out []string
	for _, f := range files {
		if fileExists(filepath.Join(repoPath, f)) {
			out = append(out, f)
		}
	}
	return out
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
