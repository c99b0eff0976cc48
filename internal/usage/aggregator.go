package usage

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Salary-Insights-Platform/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Salary-Insights-Platform/pkg/kafka"
)

// Stats is a point-in-time view of aggregated usage.
type Stats struct {
	TotalPredictions int64            `json:"total_predictions"`
	ByOutcome        map[string]int64 `json:"by_outcome"`
	AvgLatencyMs     float64          `json:"avg_latency_ms"`
	P50LatencyMs     int64            `json:"p50_latency_ms"`
	P95LatencyMs     int64            `json:"p95_latency_ms"`
	P99LatencyMs     int64            `json:"p99_latency_ms"`
	MeanSalary       float64          `json:"mean_predicted_salary"`
	TopCategories    []KeyCount       `json:"top_categories"`
	TopJobTitles     []KeyCount       `json:"top_job_titles"`
	TopStates        []KeyCount       `json:"top_states"`
	PerMinute        float64          `json:"predictions_per_minute"`
	Since            time.Time        `json:"since"`
}

type KeyCount struct {
	Key   string `json:"key"`
	Count int64  `json:"count"`
}

// maxLatencySamples bounds the latency reservoir; older samples are
// overwritten ring-style.
const maxLatencySamples = 10000

// Aggregator folds prediction events into Stats. Events arrive either from
// a Kafka consumer or directly through Track.
type Aggregator struct {
	mu          sync.RWMutex
	total       int64
	byOutcome   map[string]int64
	latencies   []int64
	next        int
	salarySum   float64
	okCount     int64
	catCounts   map[string]int64
	titleCounts map[string]int64
	stateCounts map[string]int64
	startTime   time.Time
	now         func() time.Time

	consumer *kafka.Consumer
	logger   *slog.Logger
}

// NewAggregator creates an Aggregator. consumer may be nil when events are
// fed in-process.
func NewAggregator(consumer *kafka.Consumer) *Aggregator {
	return &Aggregator{
		byOutcome:   make(map[string]int64),
		latencies:   make([]int64, 0, 1024),
		catCounts:   make(map[string]int64),
		titleCounts: make(map[string]int64),
		stateCounts: make(map[string]int64),
		startTime:   time.Now(),
		now:         time.Now,
		consumer:    consumer,
		logger:      slog.Default().With("component", "usage-aggregator"),
	}
}

// NewKafkaAggregator creates an Aggregator fed by a consumer on topic.
func NewKafkaAggregator(cfg config.KafkaConfig, topic string) *Aggregator {
	agg := NewAggregator(nil)
	agg.consumer = kafka.NewConsumer(cfg, topic, HandleEvent(agg))
	return agg
}

var errNoConsumer = errors.New("usage aggregator has no kafka consumer")

// Start consumes from Kafka until ctx is cancelled.
func (a *Aggregator) Start(ctx context.Context) error {
	if a.consumer == nil {
		return errNoConsumer
	}
	a.logger.Info("usage aggregator starting")
	return a.consumer.Start(ctx)
}

// HandleEvent decodes Kafka messages into the aggregator. Undecodable
// messages are logged and skipped so they do not block the partition.
func HandleEvent(agg *Aggregator) kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[PredictionEvent](value)
		if err != nil {
			agg.logger.Error("failed to decode usage event", "error", err)
			return nil
		}
		agg.Track(event)
		return nil
	}
}

// Track records one event.
func (a *Aggregator) Track(event PredictionEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.total++
	a.byOutcome[string(event.Outcome)]++
	if len(a.latencies) < maxLatencySamples {
		a.latencies = append(a.latencies, event.LatencyMs)
	} else {
		a.latencies[a.next] = event.LatencyMs
		a.next = (a.next + 1) % maxLatencySamples
	}
	if event.Outcome == OutcomeOK {
		a.okCount++
		a.salarySum += event.Salary
		a.catCounts[event.Category]++
		a.titleCounts[event.JobTitle]++
		a.stateCounts[event.State]++
	}
}

func (a *Aggregator) Stats() Stats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := Stats{
		TotalPredictions: a.total,
		ByOutcome:        make(map[string]int64, len(a.byOutcome)),
		Since:            a.startTime.UTC(),
	}
	for k, v := range a.byOutcome {
		stats.ByOutcome[k] = v
	}
	if len(a.latencies) > 0 {
		sorted := make([]int64, len(a.latencies))
		copy(sorted, a.latencies)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		var sum int64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyMs = float64(sum) / float64(len(sorted))
		stats.P50LatencyMs = percentile(sorted, 50)
		stats.P95LatencyMs = percentile(sorted, 95)
		stats.P99LatencyMs = percentile(sorted, 99)
	}
	if a.okCount > 0 {
		stats.MeanSalary = a.salarySum / float64(a.okCount)
	}
	stats.TopCategories = topN(a.catCounts, 10)
	stats.TopJobTitles = topN(a.titleCounts, 10)
	stats.TopStates = topN(a.stateCounts, 10)
	if elapsed := a.now().Sub(a.startTime).Minutes(); elapsed > 0 {
		stats.PerMinute = float64(stats.TotalPredictions) / elapsed
	}
	return stats
}

func percentile(sorted []int64, pct int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// topN orders by count descending, then key ascending.
func topN(counts map[string]int64, n int) []KeyCount {
	result := make([]KeyCount, 0, len(counts))
	for k, c := range counts {
		result = append(result, KeyCount{Key: k, Count: c})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Key < result[j].Key
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}
