package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"
)

var defaultLoadQueries = []string{
	"relevance scoring",
	"keyword overlap",
	"exact substring match",
	"case insensitive search",
	"resource corpus",
	"cache invalidation",
	"circuit breaker",
	"rate limiting",
	"change events",
	"quick brown fox",
}

// errorBackoff paces a worker after a transport error so an unreachable
// service is not hammered in a tight loop.
const errorBackoff = 100 * time.Millisecond

type loadConfig struct {
	baseURL     string
	endpoint    string
	concurrency int
	duration    time.Duration
	queries     []string
}

type loadStats struct {
	total     atomic.Int64
	succeeded atomic.Int64
	failed    atomic.Int64

	mu        sync.Mutex
	latencies []time.Duration
	codes     map[int]int64
}

func newLoadStats() *loadStats {
	return &loadStats{
		latencies: make([]time.Duration, 0, 10000),
		codes:     make(map[int]int64),
	}
}

func (s *loadStats) record(d time.Duration, status int, err error) {
	s.total.Add(1)
	if err != nil {
		s.failed.Add(1)
		return
	}
	if status >= 200 && status < 300 {
		s.succeeded.Add(1)
	} else {
		s.failed.Add(1)
	}
	s.mu.Lock()
	s.latencies = append(s.latencies, d)
	s.codes[status]++
	s.mu.Unlock()
}

func newLoadCmd() *cobra.Command {
	cfg := loadConfig{}
	cmd := &cobra.Command{
		Use:   "load",
		Short: "Send concurrent search or score requests to a running service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.endpoint != "search" && cfg.endpoint != "score" {
				return fmt.Errorf("unknown endpoint %q, want search or score", cfg.endpoint)
			}
			if cfg.concurrency <= 0 || len(cfg.queries) == 0 {
				return errors.New("need positive --concurrency and at least one --query")
			}
			if cfg.duration <= 0 {
				return fmt.Errorf("--duration must be positive, got %s", cfg.duration)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "target %s/%s, %d workers for %s\n", cfg.baseURL, cfg.endpoint, cfg.concurrency, cfg.duration)
			stats := runLoad(cmd.Context(), cfg)
			printLoadReport(out, stats, cfg.duration)
			if stats.total.Load() == 0 {
				return errors.New("no requests completed, is the service running?")
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&cfg.baseURL, "url", "http://localhost:8080", "base URL of the relevance service")
	f.StringVar(&cfg.endpoint, "endpoint", "search", "endpoint to exercise (search, score)")
	f.IntVar(&cfg.concurrency, "concurrency", 10, "number of concurrent workers")
	f.DurationVar(&cfg.duration, "duration", 30*time.Second, "test duration")
	f.StringSliceVar(&cfg.queries, "query", defaultLoadQueries, "queries to cycle through")
	return cmd
}

func runLoad(parent context.Context, cfg loadConfig) *loadStats {
	if parent == nil {
		parent = context.Background()
	}
	stats := newLoadStats()
	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        cfg.concurrency * 2,
			MaxIdleConnsPerHost: cfg.concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}
	ctx, cancel := context.WithTimeout(parent, cfg.duration)
	defer cancel()

	var wg sync.WaitGroup
	for w := 0; w < cfg.concurrency; w++ {
		wg.Add(1)
		go func(next int) {
			defer wg.Done()
			for ctx.Err() == nil {
				query := cfg.queries[next%len(cfg.queries)]
				next++
				req, err := buildLoadRequest(ctx, cfg, query)
				if err != nil {
					stats.record(0, 0, err)
					return
				}
				start := time.Now()
				resp, err := client.Do(req)
				elapsed := time.Since(start)
				if err != nil {
					if ctx.Err() == nil {
						stats.record(elapsed, 0, err)
					}
					select {
					case <-ctx.Done():
					case <-time.After(errorBackoff):
					}
					continue
				}
				io.Copy(io.Discard, resp.Body)
				resp.Body.Close()
				stats.record(elapsed, resp.StatusCode, nil)
			}
		}(w)
	}
	wg.Wait()
	return stats
}

func buildLoadRequest(ctx context.Context, cfg loadConfig, query string) (*http.Request, error) {
	if cfg.endpoint == "score" {
		body, err := json.Marshal(map[string]string{
			"query": query,
			"text":  "a sample document about " + query,
		})
		if err != nil {
			return nil, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.baseURL+"/api/v1/score", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	}
	u := fmt.Sprintf("%s/api/v1/search?q=%s&limit=10", cfg.baseURL, url.QueryEscape(query))
	return http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
}

func printLoadReport(w io.Writer, stats *loadStats, duration time.Duration) {
	total := stats.total.Load()
	failed := stats.failed.Load()
	fmt.Fprintf(w, "requests:     %d\n", total)
	fmt.Fprintf(w, "succeeded:    %d\n", stats.succeeded.Load())
	fmt.Fprintf(w, "failed:       %d\n", failed)
	if total > 0 {
		fmt.Fprintf(w, "error rate:   %.2f%%\n", float64(failed)/float64(total)*100)
		fmt.Fprintf(w, "requests/sec: %.2f\n", float64(total)/duration.Seconds())
	}

	stats.mu.Lock()
	latencies := append([]time.Duration(nil), stats.latencies...)
	codes := make([]int, 0, len(stats.codes))
	for code := range stats.codes {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	counts := make([]int64, len(codes))
	for i, code := range codes {
		counts[i] = stats.codes[code]
	}
	stats.mu.Unlock()

	if len(latencies) > 0 {
		sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
		var sum time.Duration
		for _, l := range latencies {
			sum += l
		}
		fmt.Fprintf(w, "latency min %s avg %s p50 %s p90 %s p99 %s max %s\n",
			latencies[0],
			sum/time.Duration(len(latencies)),
			percentile(latencies, 50),
			percentile(latencies, 90),
			percentile(latencies, 99),
			latencies[len(latencies)-1],
		)
	}
	for i, code := range codes {
		fmt.Fprintf(w, "status %d: %d\n", code, counts[i])
	}
}

// percentile expects sorted input.
func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	idx = max(0, min(idx, len(sorted)-1))
	return sorted[idx]
}
