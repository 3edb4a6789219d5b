package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	configCmd = &cobra.Command{
		Use:   "config",
		Short: "Configuration subcommands",
	}

	// the postgres DSN can carry a password, so it is masked
	configShowCmd = &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			shown := cfg
			if shown.Database.DSN != "" {
				shown.Database.DSN = "********"
			}
			b, err := json.MarshalIndent(shown, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to marshal config: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(b))
			return nil
		},
	}
)

func registerConfigCommands() {
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}
