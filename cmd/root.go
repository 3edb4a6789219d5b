// Package cmd contains the photocatalog command line.
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/camden-git/photocatalog/config"
	"github.com/camden-git/photocatalog/logging"
	"github.com/camden-git/photocatalog/metrics"
)

var (
	cfg      config.Config
	logLevel string

	rootCmd = &cobra.Command{
		Use:           "photocatalog",
		Short:         "Catalogue photos from cards and folders into a deduplicated library",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.LoadConfig()
			if err != nil {
				return err
			}
			if logLevel != "" {
				loaded.Log.Level = logLevel
			}
			cfg = loaded

			logging.Init(cfg.Log)
			metrics.Init()
			return nil
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override the configured log level")

	registerServeCommand()
	registerImportCommand()
	registerPhotographerCommands()
	registerConfigCommands()
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
