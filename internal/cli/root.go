package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/musharrafhamraz/afterburner/internal/config"
	"github.com/musharrafhamraz/afterburner/internal/logging"
	"github.com/musharrafhamraz/afterburner/internal/orchestrator"
)

var version = "dev"

func SetVersion(v string) {
	version = v
}

var (
	configFile string
	verbose    bool
)

// newOrchestrator is swapped in tests.
var newOrchestrator = func(cfg config.Config, log *zap.Logger) *orchestrator.Orchestrator {
	return orchestrator.New(cfg, log)
}

var rootCmd = &cobra.Command{
	Use:   "afterburner",
	Short: "afterburner — post-write pipeline for AI-generated code",
	Long: `afterburner runs after code has been written: it detects the changes, scans
them for security issues, runs the tests, commits and opens a pull request,
and optionally deploys.

Failing security reviews and test runs are retried with diagnostics until the
configured ceilings are reached; the run then hard-fails with exit code 1.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() error {
	return rootCmd.Execute()
}

// ExecuteContext runs the root command with ctx, so an interrupt cancels
// in-flight tools.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "path to config file (default: ./afterburner.yaml, then ~/.afterburner/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(securityCmd)
	rootCmd.AddCommand(testCmd)
	rootCmd.AddCommand(commitCmd)
	rootCmd.AddCommand(deployCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(historyCmd)
}

// loadConfig resolves the configuration for repoPath: --config wins, then the
// standard search paths.
func loadConfig(repoPath string) (*config.Config, error) {
	if configFile != "" {
		return config.Load(configFile)
	}
	return config.LoadDefault(repoPath)
}

// setup loads and validates the configuration and builds the logger. Logs go
// to stderr so stdout carries only the report.
func setup(cmd *cobra.Command, repoPath string) (config.Config, *zap.Logger, error) {
	cfg, err := loadConfig(repoPath)
	if err != nil {
		return config.Config{}, nil, err
	}
	if errs := config.Validate(cfg); len(errs) > 0 {
		all := make([]error, len(errs))
		for i, e := range errs {
			all[i] = e
		}
		return config.Config{}, nil, fmt.Errorf("invalid configuration:\n%w", errors.Join(all...))
	}
	log, err := logging.New(logging.Config{
		Verbose: cfg.Verbose || verbose,
		Format:  cfg.LogFormat,
		Output:  cmd.ErrOrStderr(),
	})
	if err != nil {
		return config.Config{}, nil, err
	}
	return *cfg, log, nil
}
