package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/musharrafhamraz/afterburner/internal/config"
	"github.com/musharrafhamraz/afterburner/internal/orchestrator"
	"github.com/musharrafhamraz/afterburner/internal/pipeline"
	"github.com/musharrafhamraz/afterburner/internal/state"
)

func executeCommand(args ...string) (string, error) {
	cfg := configFile
	resetFlags(rootCmd)
	configFile = cfg

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

// resetFlags restores every flag in the tree to its default. The commands
// are package-level, so values such as --help otherwise leak between calls.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			sv.Replace(nil)
		} else {
			f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}

type mockDetector struct{}

func (mockDetector) Detect(ctx context.Context, repoPath string) (pipeline.ChangeSet, error) {
	return pipeline.ChangeSet{}, nil
}

func (mockDetector) Classify(files []string) map[string][]string {
	return map[string][]string{"python": files}
}

type mockScanner struct {
	findings []state.Finding
}

func (m *mockScanner) Name() string                              { return "mock" }
func (m *mockScanner) Applies(fileTypes map[string][]string) bool { return true }
func (m *mockScanner) Scan(ctx context.Context, repoPath string, files []string, fileTypes map[string][]string) ([]state.Finding, error) {
	return m.findings, nil
}

// useFakes routes every command through an orchestrator with no external
// tools, and points --config at a file in a temp dir.
func useFakes(t *testing.T, scanner *mockScanner, yaml string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "afterburner.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}
	configFile = path

	orig := newOrchestrator
	newOrchestrator = func(cfg config.Config, log *zap.Logger) *orchestrator.Orchestrator {
		return orchestrator.New(cfg, log, orchestrator.WithDeps(func(d *pipeline.Deps) {
			d.Detector = mockDetector{}
			d.Scanners = []pipeline.Scanner{scanner}
			d.Frameworks = nil
			d.Git = nil
			d.CI, d.Monitoring, d.Health = nil, nil, nil
		}))
	}
	t.Cleanup(func() {
		newOrchestrator = orig
		configFile = ""
	})
}

func TestVersionCommand(t *testing.T) {
	SetVersion("test-version")
	out, err := executeCommand("version")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "test-version") {
		t.Errorf("expected version output to contain 'test-version', got: %s", out)
	}
}

func TestRootHelp(t *testing.T) {
	out, err := executeCommand("--help")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expectedSubcommands := []string{
		"run", "security", "test", "commit", "deploy",
		"status", "config", "mcp", "version",
	}
	for _, sub := range expectedSubcommands {
		if !strings.Contains(out, sub) {
			t.Errorf("help output missing subcommand %q", sub)
		}
	}
}

func TestStageCommandFlags(t *testing.T) {
	tests := map[string]string{
		"run":    "--skip-deploy",
		"commit": "--no-pr",
		"deploy": "--target",
	}
	for sub, flag := range tests {
		out, err := executeCommand(sub, "--help")
		if err != nil {
			t.Errorf("%s --help failed: %v", sub, err)
		}
		if !strings.Contains(out, flag) {
			t.Errorf("%s --help missing %s", sub, flag)
		}
	}
}

func TestRunCommand_AfterHelp(t *testing.T) {
	if _, err := executeCommand("run", "--help"); err != nil {
		t.Fatalf("run --help failed: %v", err)
	}
	useFakes(t, &mockScanner{findings: []state.Finding{{Tool: "semgrep", Severity: "critical", File: "app.py", Message: "sql injection"}}},
		"llm_provider: none\nmax_reflection_retries: 1\n")

	_, err := executeCommand("run", t.TempDir(), "--files", "app.py")
	if !errors.Is(err, ErrHardFail) {
		t.Errorf("expected ErrHardFail after a prior --help, got %v", err)
	}
}

func TestUnknownCommand(t *testing.T) {
	_, err := executeCommand("nonexistent")
	if err == nil {
		t.Error("expected error for unknown command, got nil")
	}
}

func TestRunCommand_PrintsSummary(t *testing.T) {
	useFakes(t, &mockScanner{}, "llm_provider: none\n")
	output := filepath.Join(t.TempDir(), "summary.md")

	out, err := executeCommand("run", t.TempDir(), "--skip-deploy", "--output", output)
	if err != nil {
		t.Fatalf("run failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "# Afterburner Report: PASSED") {
		t.Errorf("expected report on stdout, got:\n%s", out)
	}
	data, err := os.ReadFile(output)
	if err != nil {
		t.Fatalf("expected summary file: %v", err)
	}
	if !strings.HasPrefix(string(data), "# Afterburner Report") {
		t.Errorf("unexpected summary file:\n%s", data)
	}
}

func TestRunCommand_HardFail(t *testing.T) {
	scanner := &mockScanner{findings: []state.Finding{{Tool: "mock", Severity: "critical", File: "app.py", Message: "hardcoded secret"}}}
	useFakes(t, scanner, "llm_provider: none\nmax_reflection_retries: 1\n")

	out, err := executeCommand("run", t.TempDir(), "--files", "app.py", "--output", "")
	if !errors.Is(err, ErrHardFail) {
		t.Fatalf("expected ErrHardFail, got %v", err)
	}
	if !strings.Contains(out, "HARD FAIL") {
		t.Errorf("expected hard fail banner, got:\n%s", out)
	}
}

func TestSecurityCommand(t *testing.T) {
	useFakes(t, &mockScanner{}, "llm_provider: none\n")
	out, err := executeCommand("security", t.TempDir(), "--output", "")
	if err != nil {
		t.Fatalf("security failed: %v", err)
	}
	if !strings.Contains(out, "Security: PASSED") {
		t.Errorf("expected security section, got:\n%s", out)
	}
}

func TestRunCommand_InvalidConfig(t *testing.T) {
	useFakes(t, &mockScanner{}, "security_block_on: sometimes\n")
	_, err := executeCommand("run", t.TempDir(), "--output", "")
	if err == nil || !strings.Contains(err.Error(), "invalid configuration") {
		t.Fatalf("expected invalid configuration error, got %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	useFakes(t, &mockScanner{}, "max_test_debug_iterations: 0\ngithub_repo: nope\n")
	out, err := executeCommand("config", "validate")
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(out, "max_test_debug_iterations") || !strings.Contains(out, "github_repo") {
		t.Errorf("expected both fields reported, got:\n%s", out)
	}

	useFakes(t, &mockScanner{}, "llm_provider: none\n")
	out, err = executeCommand("config", "validate")
	if err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
	if !strings.Contains(out, "Configuration is valid.") {
		t.Errorf("unexpected output %s", out)
	}
}

func TestStatusCommand(t *testing.T) {
	useFakes(t, &mockScanner{}, "github_token: ghp_abcdefghijklmnop\n")
	out, err := executeCommand("status")
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(out, "abcdefghijklmnop") {
		t.Errorf("token leaked:\n%s", out)
	}
	if !strings.Contains(out, "github_token: ghp_****") {
		t.Errorf("expected masked token:\n%s", out)
	}
}

func TestHistoryCommands(t *testing.T) {
	events := filepath.Join(t.TempDir(), "events.db")
	useFakes(t, &mockScanner{}, "llm_provider: none\nevent_log: "+events+"\n")

	if _, err := executeCommand("run", t.TempDir(), "--output", ""); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	out, err := executeCommand("history", "gates", "--since", "")
	if err != nil {
		t.Fatalf("history gates: %v", err)
	}
	if !strings.Contains(out, "security_gate") || !strings.Contains(out, "Runs: completed=1") {
		t.Errorf("unexpected gates output:\n%s", out)
	}

	out, err = executeCommand("history", "checks", "--since", "")
	if err != nil {
		t.Fatalf("history checks: %v", err)
	}
	if !strings.Contains(out, "security") {
		t.Errorf("expected security check row:\n%s", out)
	}

	out, err = executeCommand("history", "show", "no-such-run")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "No events for run no-such-run.") {
		t.Errorf("unexpected output %s", out)
	}
}

func TestHistory_RequiresEventLog(t *testing.T) {
	useFakes(t, &mockScanner{}, "llm_provider: none\n")
	_, err := executeCommand("history", "stages", "--since", "")
	if err == nil || !strings.Contains(err.Error(), "event_log is not configured") {
		t.Fatalf("expected event_log error, got %v", err)
	}
}
