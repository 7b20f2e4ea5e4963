package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/musharrafhamraz/afterburner/internal/fsutil"
	"github.com/musharrafhamraz/afterburner/internal/orchestrator"
	"github.com/musharrafhamraz/afterburner/internal/pipeline"
)

// ErrHardFail is returned when a run hits a retry ceiling. main maps it to
// exit code 1.
var ErrHardFail = errors.New("pipeline hard-failed")

var runCmd = &cobra.Command{
	Use:   "run [path]",
	Short: "Run the full pipeline on a repository",
	Long: `Run every stage: detect changes, security review (with retries), tests
(with self-debug retries), commit and pull request, deploy, summary.

The Markdown summary is printed to stdout; progress is logged to stderr.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		skipDeploy, _ := cmd.Flags().GetBool("skip-deploy")
		trigger, _ := cmd.Flags().GetString("trigger")
		files, _ := cmd.Flags().GetStringSlice("files")
		return runPipeline(cmd, orchestrator.RunOpts{
			RepoPath:     repoArg(args),
			Trigger:      trigger,
			SkipDeploy:   skipDeploy,
			ChangedFiles: files,
		})
	},
}

var securityCmd = &cobra.Command{
	Use:   "security [path]",
	Short: "Detect changes and run only the security review",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPipeline(cmd, orchestrator.RunOpts{RepoPath: repoArg(args), Stage: pipeline.StageSecurityReview})
	},
}

var testCmd = &cobra.Command{
	Use:   "test [path]",
	Short: "Detect changes and run only the tests",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPipeline(cmd, orchestrator.RunOpts{RepoPath: repoArg(args), Stage: pipeline.StageTestRun})
	},
}

var commitCmd = &cobra.Command{
	Use:   "commit [path]",
	Short: "Detect changes and commit them, opening a pull request when configured",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		noPR, _ := cmd.Flags().GetBool("no-pr")
		return runPipeline(cmd, orchestrator.RunOpts{RepoPath: repoArg(args), Stage: pipeline.StageCommit, NoPR: noPR})
	},
}

var deployCmd = &cobra.Command{
	Use:   "deploy [path]",
	Short: "Detect changes and run only the deployment stage",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		target, _ := cmd.Flags().GetString("target")
		return runPipeline(cmd, orchestrator.RunOpts{RepoPath: repoArg(args), Stage: pipeline.StageDeploy, DeployTarget: target})
	},
}

func repoArg(args []string) string {
	if len(args) == 0 {
		return "."
	}
	return args[0]
}

// runPipeline executes one run and prints its summary.
func runPipeline(cmd *cobra.Command, opts orchestrator.RunOpts) error {
	cfg, log, err := setup(cmd, opts.RepoPath)
	if err != nil {
		return err
	}
	defer log.Sync()

	res, err := newOrchestrator(cfg, log).Run(cmd.Context(), opts)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), res.State.FinalSummary)

	if output, _ := cmd.Flags().GetString("output"); output != "" {
		if err := fsutil.WriteAtomic(output, []byte(res.State.FinalSummary)); err != nil {
			return fmt.Errorf("write summary: %w", err)
		}
		log.Info("summary written", zap.String("path", output))
	}

	if res.State.HardFail {
		return ErrHardFail
	}
	return nil
}

func init() {
	runCmd.Flags().Bool("skip-deploy", false, "Skip the deployment stage")
	runCmd.Flags().String("trigger", "cli", "What started the run (cli or hook)")
	runCmd.Flags().StringSlice("files", nil, "Changed files to process instead of detecting them (used by git hooks)")

	for _, c := range []*cobra.Command{runCmd, securityCmd, testCmd, commitCmd, deployCmd} {
		c.Flags().StringP("output", "o", "", "Also write the Markdown summary to this file")
	}

	commitCmd.Flags().Bool("no-pr", false, "Commit locally without pushing or opening a pull request")
	deployCmd.Flags().String("target", "", "Deploy target (vercel or docker); defaults to deploy_target")
}
