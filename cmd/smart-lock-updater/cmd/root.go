package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/smart-lock/internal/config"
	"github.com/oshokin/smart-lock/internal/logger"
	"github.com/oshokin/smart-lock/internal/service/updater"
	"github.com/oshokin/smart-lock/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string

	// rootCmd represents the base command for downloading and applying updates.
	rootCmd = &cobra.Command{
		Use:       "smart-lock-updater [device|operator]",
		Short:     "Download and apply smart-lock updates",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{updater.RoleDevice, updater.RoleOperator},
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			return updater.Run(ctx, &updater.Options{
				ConfigPath: configPath,
				Role:       args[0],
			})
		},
	}
)

// Execute runs the smart-lock-updater CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	err := rootCmd.Execute()

	logger.Sync()

	if err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
}
