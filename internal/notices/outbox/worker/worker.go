// Package worker drains the registry notice outbox to Kafka.
package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"careledger/internal/notices/outbox"
	"careledger/internal/notices/outbox/metrics"
	"careledger/internal/platform/kafka/producer"
)

// Publisher sends one notice to the broker.
type Publisher interface {
	Produce(ctx context.Context, msg *producer.Message) error
}

// Worker polls the outbox table and publishes notices to Kafka. A slower
// maintenance loop refreshes the pending depth gauge and prunes processed
// entries past the retention window.
type Worker struct {
	store         outbox.Store
	producer      Publisher
	topic         string
	batchSize     int
	pollInterval  time.Duration
	maintainEvery time.Duration
	retention     time.Duration
	metrics       *metrics.Metrics
	logger        *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option configures the Worker.
type Option func(*Worker)

// WithTopic sets the Kafka topic for publishing.
func WithTopic(topic string) Option {
	return func(w *Worker) { w.topic = topic }
}

// WithBatchSize sets the maximum number of entries fetched per poll.
func WithBatchSize(size int) Option {
	return func(w *Worker) { w.batchSize = size }
}

// WithPollInterval sets the interval between polls.
func WithPollInterval(interval time.Duration) Option {
	return func(w *Worker) { w.pollInterval = interval }
}

// WithMaintenanceInterval sets the interval between gauge refresh and
// retention sweeps.
func WithMaintenanceInterval(interval time.Duration) Option {
	return func(w *Worker) { w.maintainEvery = interval }
}

// WithRetention sets how long processed entries are kept before pruning.
func WithRetention(d time.Duration) Option {
	return func(w *Worker) { w.retention = d }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(w *Worker) { w.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) { w.logger = logger }
}

// New creates an outbox worker.
func New(store outbox.Store, pub Publisher, opts ...Option) *Worker {
	ctx, cancel := context.WithCancel(context.Background())

	w := &Worker{
		store:         store,
		producer:      pub,
		topic:         "careledger.registry.notices",
		batchSize:     100,
		pollInterval:  250 * time.Millisecond,
		maintainEvery: 30 * time.Second,
		retention:     7 * 24 * time.Hour,
		ctx:           ctx,
		cancel:        cancel,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start begins the polling loop in a background goroutine.
func (w *Worker) Start() {
	w.wg.Add(1)
	go w.run()
}

func (w *Worker) run() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	maintenance := time.NewTicker(w.maintainEvery)
	defer maintenance.Stop()

	for {
		select {
		case <-w.ctx.Done():
			w.drain()
			return
		case <-ticker.C:
			w.poll()
		case <-maintenance.C:
			w.maintain()
		}
	}
}

func (w *Worker) poll() {
	start := time.Now()

	entries, err := w.store.FetchUnprocessed(w.ctx, w.batchSize)
	if err != nil {
		if w.logger != nil {
			w.logger.Error("failed to fetch outbox entries", "error", err)
		}
		if w.metrics != nil {
			w.metrics.IncPublishFailures()
		}
		return
	}
	if len(entries) == 0 {
		return
	}

	if w.metrics != nil {
		w.metrics.ObserveBatchSize(len(entries))
	}

	for _, entry := range entries {
		if err := w.publishEntry(w.ctx, entry); err != nil {
			if w.logger != nil {
				w.logger.Error("failed to publish registry notice",
					"id", entry.ID,
					"notice_type", entry.NoticeType,
					"error", err,
				)
			}
			if w.metrics != nil {
				w.metrics.IncPublishFailures()
			}
			// Left pending; the next poll retries it.
			continue
		}

		if err := w.store.MarkProcessed(w.ctx, entry.ID, time.Now()); err != nil {
			if w.logger != nil {
				w.logger.Error("failed to mark notice as processed", "id", entry.ID, "error", err)
			}
			// Published but not marked: it will be re-published. Consumers
			// dedupe on the entry ID key.
			continue
		}

		if w.metrics != nil {
			w.metrics.IncPublished()
		}
	}

	if w.metrics != nil {
		w.metrics.ObservePollDuration(time.Since(start).Seconds())
	}
}

func (w *Worker) publishEntry(ctx context.Context, entry *outbox.Entry) error {
	start := time.Now()

	msg := &producer.Message{
		Topic: w.topic,
		// Entry ID as key lets consumers deduplicate re-published notices.
		Key:   []byte(entry.ID.String()),
		Value: entry.Payload,
		Headers: map[string]string{
			"registry_code": entry.RegistryCode,
			"target_kind":   entry.TargetKind,
			"notice_type":   entry.NoticeType,
		},
	}
	if err := w.producer.Produce(ctx, msg); err != nil {
		return err
	}

	if w.metrics != nil {
		w.metrics.ObservePublishDuration(time.Since(start).Seconds())
	}
	return nil
}

// drain publishes remaining entries during shutdown.
func (w *Worker) drain() {
	if w.logger != nil {
		w.logger.Info("draining notice outbox worker")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for {
		entries, err := w.store.FetchUnprocessed(ctx, w.batchSize)
		if err != nil {
			if w.logger != nil {
				w.logger.Error("failed to fetch entries during drain", "error", err)
			}
			return
		}
		if len(entries) == 0 {
			return
		}

		for _, entry := range entries {
			if err := w.publishEntry(ctx, entry); err != nil {
				if w.logger != nil {
					w.logger.Error("failed to publish during drain", "id", entry.ID, "error", err)
				}
				continue
			}
			if err := w.store.MarkProcessed(ctx, entry.ID, time.Now()); err != nil {
				if w.logger != nil {
					w.logger.Error("failed to mark as processed during drain", "id", entry.ID, "error", err)
				}
			}
		}
	}
}

// Stop gracefully stops the worker, draining pending entries first.
func (w *Worker) Stop(ctx context.Context) error {
	w.cancel()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// UpdateMetrics refreshes the pending depth gauge.
func (w *Worker) UpdateMetrics(ctx context.Context) error {
	if w.metrics == nil {
		return nil
	}
	count, err := w.store.CountPending(ctx)
	if err != nil {
		return err
	}
	w.metrics.SetPendingDepth(count)
	return nil
}

// maintain refreshes the pending gauge and prunes processed entries older
// than the retention window.
func (w *Worker) maintain() {
	if err := w.UpdateMetrics(w.ctx); err != nil && w.logger != nil {
		w.logger.Error("failed to refresh outbox pending gauge", "error", err)
	}

	removed, err := w.store.DeleteProcessedBefore(w.ctx, time.Now().Add(-w.retention))
	if err != nil {
		if w.logger != nil {
			w.logger.Error("failed to prune processed outbox entries", "error", err)
		}
		return
	}
	if removed > 0 && w.logger != nil {
		w.logger.Info("pruned processed outbox entries", "removed", removed)
	}
}
