package cmd

import (
	"github.com/spf13/cobra"

	"github.com/oshokin/smart-lock/internal/repository/episode"
	"github.com/oshokin/smart-lock/internal/service/history"
)

var (
	// historyStore overrides the store path from the settings.
	historyStore string
	// historyLimit is the number of episodes to print.
	historyLimit int

	// historyCmd prints the episode log.
	historyCmd = &cobra.Command{
		Use:   "history",
		Short: "Print recent detection episodes.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return history.Run(cmd.Context(), &history.Options{
				ConfigPath: configPath,
				StorePath:  historyStore,
				Limit:      historyLimit,
				Output:     cmd.OutOrStdout(),
			})
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	historyCmd.Flags().StringVar(&historyStore, "store", "", "episode database, defaults to store.path from the settings")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", episode.DefaultListLimit, "number of episodes to print")
}
