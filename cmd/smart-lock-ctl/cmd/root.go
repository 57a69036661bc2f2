package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/smart-lock/internal/config"
	"github.com/oshokin/smart-lock/internal/domain/lock"
	"github.com/oshokin/smart-lock/internal/logger"
	"github.com/oshokin/smart-lock/internal/service/control"
	"github.com/oshokin/smart-lock/internal/version"
)

var (
	// configPath stores the path to the configuration YAML file.
	configPath string
	// logLevel is the minimum level written to the console.
	logLevel string
	// broker overrides the broker URL from the settings.
	broker string
	// healthAddress overrides the health endpoint from the settings.
	healthAddress string
	// jsonOutput prints the status report as JSON.
	jsonOutput bool

	// rootCmd groups the operator commands.
	rootCmd = &cobra.Command{
		Use:   "smart-lock-ctl",
		Short: "Operate a smart-lock device.",
		Long: `Operator tool for a smart-lock device.

lock and unlock publish a remote command to the device command topic.
status reads the device health endpoint and its retained heartbeat.
Broker and topics come from the same settings file the device uses.`,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return logger.SetLevelFromString(logLevel)
		},
	}

	lockCmd = &cobra.Command{
		Use:   "lock",
		Short: "Lock the door.",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return sendCommand(lock.Locked)
		},
	}

	unlockCmd = &cobra.Command{
		Use:   "unlock",
		Short: "Unlock the door.",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return sendCommand(lock.Unlocked)
		},
	}

	statusCmd = &cobra.Command{
		Use:   "status",
		Short: "Show device health and heartbeat.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			return control.Status(ctx, &control.StatusOptions{
				ConfigPath:    configPath,
				HealthAddress: healthAddress,
				Broker:        broker,
				JSON:          jsonOutput,
				Output:        cmd.OutOrStdout(),
			})
		},
	}
)

func sendCommand(position lock.Position) error {
	// Setup graceful shutdown handling.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	return control.SendCommand(ctx, &control.CommandOptions{
		ConfigPath: configPath,
		Broker:     broker,
		Position:   position,
	})
}

// Execute runs the smart-lock-ctl CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)
	rootCmd.AddCommand(lockCmd, unlockCmd, statusCmd)

	err := rootCmd.Execute()

	logger.Sync()

	if err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVarP(&broker, "broker", "b", "", "broker URL, overrides channel.broker")

	statusCmd.Flags().StringVar(&healthAddress, "health", "", "health endpoint, overrides health.listen_address")
	statusCmd.Flags().BoolVar(&jsonOutput, "json", false, "print the report as JSON")
}
