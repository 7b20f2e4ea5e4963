package cli

import (
	"github.com/spf13/cobra"

	"github.com/musharrafhamraz/afterburner/internal/mcpserver"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the afterburner tools over MCP on stdio",
	Long: `Start an MCP server on stdin/stdout exposing run_afterburner, security_only,
test_only, git_only, deploy_only and get_status.

Configuration is loaded once from the current directory; every tool call
starts its own run.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := setup(cmd, ".")
		if err != nil {
			return err
		}
		defer log.Sync()
		return mcpserver.New(cfg, newOrchestrator(cfg, log), version, log).Run(cmd.Context())
	},
}
