package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"
)

var loadtestCmd = &cobra.Command{
	Use:   "loadtest",
	Short: "Drive prediction sessions against a running web service",
	Long: "Each worker repeatedly creates a session, picks a random category, job title, " +
		"experience and state from /api/v1/options, then requests a prediction. " +
		"Latency is reported per step.",
	RunE: runLoadtest,
}

var (
	loadBaseURL     string
	loadConcurrency int
	loadDuration    time.Duration
)

func init() {
	loadtestCmd.Flags().StringVar(&loadBaseURL, "url", "http://localhost:8080", "base URL of the web service")
	loadtestCmd.Flags().IntVar(&loadConcurrency, "concurrency", 10, "number of concurrent workers")
	loadtestCmd.Flags().DurationVar(&loadDuration, "duration", 30*time.Second, "test duration")
	rootCmd.AddCommand(loadtestCmd)
}

type loadStats struct {
	sessions  atomic.Int64
	requests  atomic.Int64
	errors    atomic.Int64
	mu        sync.Mutex
	latencies map[string][]time.Duration
	codes     map[int]int64
}

func newLoadStats() *loadStats {
	return &loadStats{
		latencies: make(map[string][]time.Duration),
		codes:     make(map[int]int64),
	}
}

func (s *loadStats) record(step string, d time.Duration, code int, err error) {
	s.requests.Add(1)
	if err != nil || code >= 400 {
		s.errors.Add(1)
	}
	if err != nil {
		return
	}
	s.mu.Lock()
	s.latencies[step] = append(s.latencies[step], d)
	s.codes[code]++
	s.mu.Unlock()
}

type loadOptions struct {
	Categories     []string            `json:"categories"`
	States         []string            `json:"states"`
	CategoryToJobs map[string][]string `json:"category_to_jobs"`
}

type loadClient struct {
	http  *http.Client
	base  string
	stats *loadStats
}

func (c *loadClient) do(ctx context.Context, step, method, path string, body, out any) (int, error) {
	var r io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		r = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, r)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() == nil {
			c.stats.record(step, time.Since(start), 0, err)
		}
		return 0, err
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 300 {
		err = json.NewDecoder(resp.Body).Decode(out)
	} else {
		_, _ = io.Copy(io.Discard, resp.Body)
	}
	c.stats.record(step, time.Since(start), resp.StatusCode, nil)
	return resp.StatusCode, err
}

func runLoadtest(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "=== Salary Form Load Test ===")
	fmt.Fprintf(out, "Target:      %s\n", loadBaseURL)
	fmt.Fprintf(out, "Concurrency: %d\n", loadConcurrency)
	fmt.Fprintf(out, "Duration:    %s\n\n", loadDuration)

	stats := newLoadStats()
	client := &loadClient{
		http: &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        loadConcurrency * 2,
				MaxIdleConnsPerHost: loadConcurrency * 2,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		base:  loadBaseURL,
		stats: stats,
	}

	var opts loadOptions
	if _, err := client.do(cmd.Context(), "options", http.MethodGet, "/api/v1/options", nil, &opts); err != nil {
		return fmt.Errorf("fetching options (is the service running?): %w", err)
	}
	if len(opts.Categories) < 2 || len(opts.States) < 2 {
		return fmt.Errorf("service returned no selectable options")
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), loadDuration)
	defer cancel()

	var wg sync.WaitGroup
	for w := 0; w < loadConcurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ctx.Err() == nil {
				runSession(ctx, client, opts)
			}
		}()
	}
	wg.Wait()

	printLoadReport(out, stats, loadDuration)
	if stats.sessions.Load() == 0 {
		return fmt.Errorf("no sessions completed")
	}
	return nil
}

// runSession walks one session through the form. Options lists lead with a
// placeholder, which is skipped.
func runSession(ctx context.Context, c *loadClient, opts loadOptions) {
	var view struct {
		SessionID string `json:"session_id"`
	}
	if code, err := c.do(ctx, "create", http.MethodPost, "/api/v1/sessions", nil, &view); err != nil || code != http.StatusCreated {
		return
	}
	base := "/api/v1/sessions/" + view.SessionID

	category := opts.Categories[1+rand.IntN(len(opts.Categories)-1)]
	jobs := opts.CategoryToJobs[category]
	if len(jobs) == 0 {
		return
	}
	steps := []struct {
		step, path string
		body       any
	}{
		{"category", base + "/category", map[string]string{"category": category}},
		{"job_title", base + "/job-title", map[string]string{"job_title": jobs[rand.IntN(len(jobs))]}},
		{"experience", base + "/experience", map[string]int{"experience": rand.IntN(11)}},
		{"state", base + "/state", map[string]string{"state": opts.States[1+rand.IntN(len(opts.States)-1)]}},
	}
	for _, s := range steps {
		if _, err := c.do(ctx, s.step, http.MethodPut, s.path, s.body, nil); err != nil {
			return
		}
	}
	if _, err := c.do(ctx, "predict", http.MethodPost, base+"/predict", nil, nil); err != nil {
		return
	}
	c.stats.sessions.Add(1)
}

func printLoadReport(w io.Writer, s *loadStats, duration time.Duration) {
	total := s.requests.Load()
	fmt.Fprintln(w, "=== Results ===")
	fmt.Fprintf(w, "Sessions:        %d\n", s.sessions.Load())
	fmt.Fprintf(w, "Total Requests:  %d\n", total)
	fmt.Fprintf(w, "Errors:          %d\n", s.errors.Load())
	if total > 0 {
		fmt.Fprintf(w, "Error Rate:      %.2f%%\n", float64(s.errors.Load())/float64(total)*100)
		fmt.Fprintf(w, "Requests/sec:    %.2f\n", float64(total)/duration.Seconds())
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	steps := make([]string, 0, len(s.latencies))
	for step := range s.latencies {
		steps = append(steps, step)
	}
	sort.Strings(steps)

	fmt.Fprintln(w)
	fmt.Fprintln(w, "=== Latency (p50 / p95 / p99 / max) ===")
	for _, step := range steps {
		l := s.latencies[step]
		sort.Slice(l, func(i, j int) bool { return l[i] < l[j] })
		fmt.Fprintf(w, "%-11s %6d  %s / %s / %s / %s\n", step, len(l),
			latencyPercentile(l, 50), latencyPercentile(l, 95), latencyPercentile(l, 99), l[len(l)-1])
	}

	codes := make([]int, 0, len(s.codes))
	for code := range s.codes {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "=== Status Codes ===")
	for _, code := range codes {
		fmt.Fprintf(w, "  %d: %d\n", code, s.codes[code])
	}
}

func latencyPercentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	idx = max(0, min(idx, len(sorted)-1))
	return sorted[idx]
}
