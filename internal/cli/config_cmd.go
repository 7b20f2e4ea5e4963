package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/musharrafhamraz/afterburner/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Validate and inspect afterburner configuration",
}

var configValidateCmd = &cobra.Command{
	Use:   "validate [path]",
	Short: "Validate the configuration file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(repoArg(args))
		if err != nil {
			return err
		}

		errs := config.Validate(cfg)
		if len(errs) == 0 {
			cmd.Println("Configuration is valid.")
			return nil
		}

		cmd.Println("Validation errors:")
		for _, e := range errs {
			cmd.Printf("  - %s\n", e)
		}
		return fmt.Errorf("config has %d validation error(s)", len(errs))
	},
}

func init() {
	configCmd.AddCommand(configValidateCmd)
}
