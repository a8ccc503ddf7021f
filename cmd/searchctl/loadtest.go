package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"
)

var (
	ltConcurrency int
	ltDuration    time.Duration
	ltFilter      string
	ltLimit       int
	ltQueries     []string
)

var defaultLoadQueries = []string{
	"react",
	"golang",
	"#golang",
	"distributed systems",
	"kubernetes",
	"rust ownership",
	"#frontend",
	"testing",
	"postgres indexes",
	"career advice",
	"css grid",
	"#devops",
}

type loadConfig struct {
	BaseURL     string
	Concurrency int
	Duration    time.Duration
	Filter      string
	Limit       int
	Queries     []string
}

type loadStats struct {
	totalRequests atomic.Int64
	successCount  atomic.Int64
	errorCount    atomic.Int64
	cacheHits     atomic.Int64
	latencies     []time.Duration
	latenciesMu   sync.Mutex
	statusCodes   map[int]*atomic.Int64
	statusCodesMu sync.Mutex
}

func newLoadStats() *loadStats {
	return &loadStats{
		latencies:   make([]time.Duration, 0, 100000),
		statusCodes: make(map[int]*atomic.Int64),
	}
}

func (s *loadStats) record(duration time.Duration, statusCode int, cacheHit bool, err error) {
	s.totalRequests.Add(1)

	if err != nil {
		s.errorCount.Add(1)
		return
	}

	if statusCode >= 200 && statusCode < 300 {
		s.successCount.Add(1)
	} else {
		s.errorCount.Add(1)
	}
	if cacheHit {
		s.cacheHits.Add(1)
	}

	s.latenciesMu.Lock()
	s.latencies = append(s.latencies, duration)
	s.latenciesMu.Unlock()

	s.statusCodesMu.Lock()
	if _, ok := s.statusCodes[statusCode]; !ok {
		s.statusCodes[statusCode] = &atomic.Int64{}
	}
	s.statusCodes[statusCode].Add(1)
	s.statusCodesMu.Unlock()
}

var loadtestCmd = &cobra.Command{
	Use:   "loadtest",
	Short: "Drive concurrent search traffic and report latency",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		queries := ltQueries
		if len(queries) == 0 {
			queries = defaultLoadQueries
		}
		cfg := loadConfig{
			BaseURL:     baseURL,
			Concurrency: ltConcurrency,
			Duration:    ltDuration,
			Filter:      ltFilter,
			Limit:       ltLimit,
			Queries:     queries,
		}
		if cfg.Concurrency <= 0 {
			return fmt.Errorf("concurrency must be positive, got %d", cfg.Concurrency)
		}

		w := cmd.OutOrStdout()
		fmt.Fprintln(w, "=== Content Search Load Test ===")
		fmt.Fprintf(w, "Target:      %s\n", cfg.BaseURL)
		fmt.Fprintf(w, "Concurrency: %d\n", cfg.Concurrency)
		fmt.Fprintf(w, "Duration:    %s\n", cfg.Duration)
		fmt.Fprintf(w, "Filter:      %s\n", cfg.Filter)
		fmt.Fprintf(w, "Queries:     %d unique\n", len(cfg.Queries))
		fmt.Fprintln(w)

		stats := runLoadTest(cmd.Context(), cfg)
		printLoadReport(w, stats, cfg.Duration)
		if stats.totalRequests.Load() == 0 {
			return fmt.Errorf("no requests completed; is the service running?")
		}
		return nil
	},
}

func runLoadTest(parent context.Context, cfg loadConfig) *loadStats {
	stats := newLoadStats()
	client := &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:        cfg.Concurrency * 2,
			MaxIdleConnsPerHost: cfg.Concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithTimeout(parent, cfg.Duration)
	defer cancel()

	var wg sync.WaitGroup
	for w := 0; w < cfg.Concurrency; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			queryIdx := workerID

			for {
				select {
				case <-ctx.Done():
					return
				default:
				}

				params := url.Values{}
				params.Set("q", cfg.Queries[queryIdx%len(cfg.Queries)])
				params.Set("filter", cfg.Filter)
				params.Set("limit", strconv.Itoa(cfg.Limit))
				queryIdx++

				req, err := http.NewRequestWithContext(ctx, http.MethodGet,
					cfg.BaseURL+"/api/v1/search?"+params.Encode(), nil)
				if err != nil {
					stats.record(0, 0, false, err)
					return
				}
				start := time.Now()
				resp, err := client.Do(req)
				duration := time.Since(start)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					stats.record(duration, 0, false, err)
					continue
				}
				var body struct {
					CacheHit bool `json:"cache_hit"`
				}
				_ = json.NewDecoder(resp.Body).Decode(&body)
				io.Copy(io.Discard, resp.Body)
				resp.Body.Close()

				stats.record(duration, resp.StatusCode, body.CacheHit, nil)
			}
		}(w)
	}
	wg.Wait()
	return stats
}

func printLoadReport(w io.Writer, stats *loadStats, duration time.Duration) {
	total := stats.totalRequests.Load()
	success := stats.successCount.Load()
	errors := stats.errorCount.Load()

	fmt.Fprintln(w, "=== Results ===")
	fmt.Fprintf(w, "Total Requests:  %d\n", total)
	fmt.Fprintf(w, "Successful:      %d\n", success)
	fmt.Fprintf(w, "Errors:          %d\n", errors)

	if total > 0 {
		errorRate := float64(errors) / float64(total) * 100
		fmt.Fprintf(w, "Error Rate:      %.2f%%\n", errorRate)
		rps := float64(total) / duration.Seconds()
		fmt.Fprintf(w, "Requests/sec:    %.2f\n", rps)
	}
	if success > 0 {
		fmt.Fprintf(w, "Cache Hit Rate:  %.2f%%\n", float64(stats.cacheHits.Load())/float64(success)*100)
	}

	stats.latenciesMu.Lock()
	latencies := make([]time.Duration, len(stats.latencies))
	copy(latencies, stats.latencies)
	stats.latenciesMu.Unlock()

	if len(latencies) > 0 {
		sort.Slice(latencies, func(i, j int) bool {
			return latencies[i] < latencies[j]
		})

		var sum time.Duration
		for _, l := range latencies {
			sum += l
		}
		avg := sum / time.Duration(len(latencies))

		fmt.Fprintln(w)
		fmt.Fprintln(w, "=== Latency ===")
		fmt.Fprintf(w, "Min:    %s\n", latencies[0])
		fmt.Fprintf(w, "Avg:    %s\n", avg)
		fmt.Fprintf(w, "P50:    %s\n", percentile(latencies, 50))
		fmt.Fprintf(w, "P90:    %s\n", percentile(latencies, 90))
		fmt.Fprintf(w, "P95:    %s\n", percentile(latencies, 95))
		fmt.Fprintf(w, "P99:    %s\n", percentile(latencies, 99))
		fmt.Fprintf(w, "Max:    %s\n", latencies[len(latencies)-1])

		var sumSquared float64
		avgFloat := float64(avg)
		for _, l := range latencies {
			diff := float64(l) - avgFloat
			sumSquared += diff * diff
		}
		stddev := time.Duration(math.Sqrt(sumSquared / float64(len(latencies))))
		fmt.Fprintf(w, "StdDev: %s\n", stddev)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "=== Status Codes ===")
	stats.statusCodesMu.Lock()
	codes := make([]int, 0, len(stats.statusCodes))
	for code := range stats.statusCodes {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	for _, code := range codes {
		fmt.Fprintf(w, "  %d: %d\n", code, stats.statusCodes[code].Load())
	}
	stats.statusCodesMu.Unlock()
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func init() {
	loadtestCmd.Flags().IntVarP(&ltConcurrency, "concurrency", "c", 10, "Number of concurrent workers")
	loadtestCmd.Flags().DurationVarP(&ltDuration, "duration", "d", 30*time.Second, "Test duration")
	loadtestCmd.Flags().StringVarP(&ltFilter, "filter", "f", "all", "Search filter")
	loadtestCmd.Flags().IntVarP(&ltLimit, "limit", "n", 10, "Result limit per search")
	loadtestCmd.Flags().StringSliceVarP(&ltQueries, "query", "q", nil, "Query terms (repeatable); defaults to a built-in mix")
	rootCmd.AddCommand(loadtestCmd)
}
