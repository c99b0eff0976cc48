package usage

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Salary-Insights-Platform/pkg/kafka"
)

// Publisher writes a batch of events to the broker.
type Publisher interface {
	PublishBatch(ctx context.Context, events []kafka.Event) error
}

// BatchCollector accumulates prediction events and flushes them to Kafka
// either when the batch reaches a configurable size or after a time interval.
type BatchCollector struct {
	publisher     Publisher
	mu            sync.Mutex
	flushMu       sync.Mutex
	buffer        []kafka.Event
	batchSize     int
	maxBuffered   int
	flushInterval time.Duration
	onPublish     func(status string, n int)
	logger        *slog.Logger
	kick          chan struct{}
	done          chan struct{}
}

// NewBatchCollector creates a BatchCollector that flushes when the buffer
// reaches batchSize events or after flushInterval, whichever comes first.
func NewBatchCollector(publisher Publisher, batchSize int, flushInterval time.Duration) *BatchCollector {
	if batchSize <= 0 {
		batchSize = 100
	}
	if flushInterval <= 0 {
		flushInterval = 5 * time.Second
	}
	return &BatchCollector{
		publisher:     publisher,
		buffer:        make([]kafka.Event, 0, batchSize),
		batchSize:     batchSize,
		maxBuffered:   batchSize * 3,
		flushInterval: flushInterval,
		logger:        slog.Default().With("component", "usage-collector"),
		kick:          make(chan struct{}, 1),
		done:          make(chan struct{}),
	}
}

// OnPublish registers a callback invoked after every flush attempt with
// "ok", "error" or "dropped" and the number of events affected.
func (bc *BatchCollector) OnPublish(fn func(status string, n int)) {
	bc.onPublish = fn
}

// Start launches the background flush loop. It returns immediately; the loop
// ends with a final flush when ctx is cancelled.
func (bc *BatchCollector) Start(ctx context.Context) {
	go func() {
		defer close(bc.done)
		ticker := time.NewTicker(bc.flushInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				bc.Flush(ctx)
			case <-bc.kick:
				bc.Flush(ctx)
			case <-ctx.Done():
				flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				bc.Flush(flushCtx)
				cancel()
				return
			}
		}
	}()
	bc.logger.Info("usage collector started",
		"batch_size", bc.batchSize,
		"flush_interval", bc.flushInterval,
	)
}

// Track buffers an event keyed by job title so one title's events stay on
// one partition. A full batch wakes the flush loop started by Start; while a
// flush is pending further wake-ups coalesce. Events arriving while the
// buffer holds three batches are dropped.
func (bc *BatchCollector) Track(event PredictionEvent) {
	bc.mu.Lock()
	if len(bc.buffer) >= bc.maxBuffered {
		bc.mu.Unlock()
		bc.report("dropped", 1)
		return
	}
	bc.buffer = append(bc.buffer, kafka.Event{Key: event.JobTitle, Value: event})
	shouldFlush := len(bc.buffer) >= bc.batchSize
	bc.mu.Unlock()

	if shouldFlush {
		select {
		case bc.kick <- struct{}{}:
		default:
		}
	}
}

// Close waits for the background flush loop to finish.
func (bc *BatchCollector) Close() {
	<-bc.done
}

// BufferLen returns the current number of buffered events.
func (bc *BatchCollector) BufferLen() int {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	return len(bc.buffer)
}

// Flush publishes everything buffered. Failed batches are re-queued up to
// three batches' worth; anything beyond that is dropped.
func (bc *BatchCollector) Flush(ctx context.Context) {
	bc.flushMu.Lock()
	defer bc.flushMu.Unlock()

	bc.mu.Lock()
	if len(bc.buffer) == 0 {
		bc.mu.Unlock()
		return
	}
	batch := bc.buffer
	bc.buffer = make([]kafka.Event, 0, bc.batchSize)
	bc.mu.Unlock()

	if err := bc.publisher.PublishBatch(ctx, batch); err != nil {
		bc.logger.Error("batch flush failed",
			"batch_size", len(batch),
			"error", err,
		)
		bc.report("error", len(batch))
		bc.mu.Lock()
		bc.buffer = append(batch, bc.buffer...)
		if len(bc.buffer) > bc.maxBuffered {
			dropped := len(bc.buffer) - bc.maxBuffered
			bc.buffer = bc.buffer[:bc.maxBuffered]
			bc.logger.Warn("buffer overflow, events dropped", "dropped", dropped)
			bc.mu.Unlock()
			bc.report("dropped", dropped)
			return
		}
		bc.mu.Unlock()
		return
	}

	bc.report("ok", len(batch))
	bc.logger.Debug("batch flushed", "events", len(batch))
}

func (bc *BatchCollector) report(status string, n int) {
	if bc.onPublish != nil {
		bc.onPublish(status, n)
	}
}
