package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/Adithya-Monish-Kumar-K/relevance-service/internal/resource"
	"github.com/Adithya-Monish-Kumar-K/relevance-service/internal/searcher/ranker"
	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"
)

const maxLineSize = 1 << 20

type rankOptions struct {
	field    string
	limit    int
	minScore float64
	format   string
}

type rankedLine struct {
	Line  int     `json:"line"`
	Score float64 `json:"score"`
	Text  string  `json:"text"`
}

func newRankCmd() *cobra.Command {
	var opts rankOptions
	cmd := &cobra.Command{
		Use:   "rank <query> [file]",
		Short: "Rank the lines of a file (or stdin) by relevance to query",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.format != "table" && opts.format != "json" {
				return fmt.Errorf("unknown format %q, want table or json", opts.format)
			}
			if opts.minScore < 0 || opts.minScore > 1 {
				return fmt.Errorf("--min-score must be within [0, 1], got %v", opts.minScore)
			}
			in := cmd.InOrStdin()
			if len(args) == 2 && args[1] != "-" {
				f, err := os.Open(args[1])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			candidates, err := readCandidates(in, opts.field)
			if err != nil {
				return err
			}
			ranked, err := ranker.Rank(args[0], candidates, ranker.Options{
				MinScore: opts.minScore,
				Limit:    opts.limit,
			})
			if err != nil {
				return err
			}
			return writeRanked(cmd.OutOrStdout(), toLines(ranked, candidates), opts.format)
		},
	}
	cmd.Flags().StringVar(&opts.field, "field", "", "treat each line as JSON and score this gjson path")
	cmd.Flags().IntVar(&opts.limit, "limit", 0, "maximum results (0 for all)")
	cmd.Flags().Float64Var(&opts.minScore, "min-score", 0, "drop results scoring below this")
	cmd.Flags().StringVar(&opts.format, "format", "table", "output format (table, json)")
	return cmd
}

// readCandidates turns each non-empty line into a resource whose ID is the
// zero-padded line number, so ties keep file order.
func readCandidates(r io.Reader, field string) ([]resource.Resource, error) {
	var out []resource.Resource
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLineSize)
	for n := 1; sc.Scan(); n++ {
		line := sc.Text()
		if line == "" {
			continue
		}
		text := line
		if field != "" {
			if !gjson.Valid(line) {
				slog.Warn("skipping line that is not JSON", "line", n)
				continue
			}
			v := gjson.Get(line, field)
			if !v.Exists() {
				slog.Debug("field missing", "line", n, "field", field)
				continue
			}
			text = v.String()
		}
		out = append(out, resource.Resource{ID: fmt.Sprintf("%09d", n), Content: text})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading input: %w", err)
	}
	return out, nil
}

func toLines(ranked []ranker.ScoredResource, candidates []resource.Resource) []rankedLine {
	text := make(map[string]string, len(candidates))
	for _, c := range candidates {
		text[c.ID] = c.Content
	}
	out := make([]rankedLine, 0, len(ranked))
	for _, r := range ranked {
		n, _ := strconv.Atoi(r.ID)
		out = append(out, rankedLine{Line: n, Score: r.Score, Text: text[r.ID]})
	}
	return out
}

func writeRanked(w io.Writer, lines []rankedLine, format string) error {
	if format == "json" {
		return json.NewEncoder(w).Encode(lines)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "LINE\tSCORE\tTEXT")
	for _, l := range lines {
		fmt.Fprintf(tw, "%d\t%.4f\t%s\n", l.Line, l.Score, l.Text)
	}
	return tw.Flush()
}
