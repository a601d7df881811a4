package main

import (
	"log/slog"

	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var storeDir string
	var jsonOutput bool
	var verbose bool

	rootCmd := &cobra.Command{
		Use:           "repcount",
		Short:         "Replay, teach and inspect rep counting offline",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&storeDir, "store", "", "SQLite profile store directory (built-in profiles only when empty)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Print results as JSON")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log session activity to stderr")

	ctx := newCommandContext(&storeDir, &jsonOutput, &verbose)

	rootCmd.AddCommand(newReplayCommand(ctx))
	rootCmd.AddCommand(newTeachCommand(ctx))
	rootCmd.AddCommand(newProfilesCommand(ctx))
	rootCmd.AddCommand(newPushCommand(ctx))
	rootCmd.AddCommand(newAngleCommand(ctx))
	rootCmd.AddCommand(newMCPCommand(ctx))

	return rootCmd
}

func logLevel(verbose bool) slog.Level {
	if verbose {
		return slog.LevelDebug
	}
	return slog.LevelWarn
}
