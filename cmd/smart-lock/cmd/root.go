package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/smart-lock/internal/config"
	"github.com/oshokin/smart-lock/internal/logger"
	"github.com/oshokin/smart-lock/internal/service/lockd"
	"github.com/oshokin/smart-lock/internal/version"
)

var (
	// configPath stores the path to the configuration YAML file.
	configPath string
	// logLevel is the minimum level written to the console.
	logLevel string
	// noWatch disables hot reload of detection thresholds.
	noWatch bool

	// rootCmd runs the door controller.
	rootCmd = &cobra.Command{
		Use:   "smart-lock",
		Short: "Presence-triggered smart door lock controller.",
		Long: `Door controller for a Raspberry Pi with an ultrasonic sensor, a camera and a servo lock.

Polls the distance sensor, and when a visitor stays near the door long enough
captures a photo, recognizes the visitor and unlocks the door for known people.
Every decision is e-mailed to the owner with the photo attached, telemetry and
a heartbeat are published over MQTT, and "lock"/"unlock" commands on the
command topic drive the lock remotely. The door is locked on startup and on exit.`,
		Args:              cobra.NoArgs,
		PersistentPreRunE: applyLogLevel,
		RunE: func(_ *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			return lockd.Run(ctx, &lockd.Options{
				ConfigPath: configPath,
				NoWatch:    noWatch,
			})
		},
	}
)

// Execute runs the smart-lock CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)
	rootCmd.AddCommand(historyCmd)

	err := rootCmd.Execute()

	logger.Sync()

	if err != nil {
		os.Exit(1)
	}
}

func applyLogLevel(_ *cobra.Command, _ []string) error {
	return logger.SetLevelFromString(logLevel)
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	rootCmd.Flags().BoolVar(&noWatch, "no-watch", false, "do not reload detection thresholds when the settings file changes")
}
