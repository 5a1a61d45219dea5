package main

import (
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/relevance-service/pkg/logger"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	var logLevel string
	root := &cobra.Command{
		Use:           "relscore",
		Short:         "Keyword relevance scoring from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Logs go to stderr so stdout stays parseable.
			slog.SetDefault(logger.New(cmd.ErrOrStderr(), logLevel, "text"))
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	root.AddCommand(newScoreCmd())
	root.AddCommand(newRankCmd())
	root.AddCommand(newLoadCmd())
	return root
}
