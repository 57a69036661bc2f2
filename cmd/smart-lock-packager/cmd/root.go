package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/smart-lock/internal/config"
	"github.com/oshokin/smart-lock/internal/logger"
	"github.com/oshokin/smart-lock/internal/service/packager"
	"github.com/oshokin/smart-lock/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// skipBrokerCheck packages without connecting to the broker.
	skipBrokerCheck bool

	// rootCmd represents the base command for preparing update metadata.
	rootCmd = &cobra.Command{
		Use:   "smart-lock-packager [update-folder]",
		Short: "Prepare update metadata for distribution",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			return packager.Run(ctx, &packager.Options{
				ConfigPath:      configPath,
				UpdateFolder:    args[0],
				SkipBrokerCheck: skipBrokerCheck,
			})
		},
	}
)

// Execute runs the smart-lock-packager CLI and exits with non-zero status on error.
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
	rootCmd.Flags().BoolVar(&skipBrokerCheck, "skip-broker-check", false, "do not verify the broker before packaging")
}
