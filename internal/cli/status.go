package cli

import (
	"github.com/spf13/cobra"

	"github.com/musharrafhamraz/afterburner/internal/orchestrator"
)

var statusCmd = &cobra.Command{
	Use:   "status [path]",
	Short: "Show the effective configuration with secrets masked",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(repoArg(args))
		if err != nil {
			return err
		}
		out, err := orchestrator.Status(*cfg)
		if err != nil {
			return err
		}
		cmd.Print(out)
		return nil
	},
}
