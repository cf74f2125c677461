// Command ibs runs individual based simulations of evolutionary games on
// structured populations.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/pthm-cable/ibs/config"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "ibs",
		Short: "Individual based simulations of evolutionary games",
		Long: `ibs simulates populations of agents playing games on structured
geometries, with pluggable update rules, telemetry and a run archive.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Set up slog (JSON to stdout for structured logging)
			logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
			slog.SetDefault(logger)

			// Initialize config before anything else
			configPath, _ := cmd.Flags().GetString("config")
			return config.Init(configPath)
		},
	}

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "Path to config.yaml (empty = use defaults)")
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON")

	rootCmd.AddCommand(
		newRunCmd(),
		newTopologyCmd(),
		newRunsCmd(),
		newTuneCmd(),
	)

	return rootCmd
}
