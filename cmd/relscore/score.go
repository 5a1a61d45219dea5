package main

import (
	"encoding/json"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/relevance-service/internal/relevance"
	"github.com/spf13/cobra"
)

func newScoreCmd() *cobra.Command {
	var explain bool
	cmd := &cobra.Command{
		Use:   "score <query> <text>",
		Short: "Print the relevance of text to query",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !explain {
				score, err := relevance.Score(args[0], args[1])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%.4f\n", score)
				return nil
			}
			exp, err := relevance.Explain(args[0], args[1])
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(exp)
		},
	}
	cmd.Flags().BoolVar(&explain, "explain", false, "show the tier and matched keywords as JSON")
	return cmd
}
