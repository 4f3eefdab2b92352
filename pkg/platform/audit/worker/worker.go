// Package worker streams committed audit entries from the outbox to Kafka.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	audit "notary/pkg/platform/audit"
)

// Producer is the subset of *kgo.Client the worker needs.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// Outbox is an audit.OutboxStore that can hold row locks across a batch.
type Outbox interface {
	audit.OutboxStore
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Worker polls the outbox and publishes entries in order. Rows are marked
// published only after the broker acknowledged the whole batch, so delivery
// is at-least-once.
type Worker struct {
	outbox    Outbox
	producer  Producer
	topic     string
	batchSize int
	interval  time.Duration
	logger    *slog.Logger
}

type Option func(*Worker)

func WithBatchSize(n int) Option {
	return func(w *Worker) {
		if n > 0 {
			w.batchSize = n
		}
	}
}

func WithInterval(d time.Duration) Option {
	return func(w *Worker) {
		if d > 0 {
			w.interval = d
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) {
		w.logger = logger
	}
}

func NewWorker(outbox Outbox, producer Producer, topic string, opts ...Option) *Worker {
	w := &Worker{
		outbox:    outbox,
		producer:  producer,
		topic:     topic,
		batchSize: 100,
		interval:  time.Second,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run polls until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := w.Flush(ctx); err != nil {
				w.logger.WarnContext(ctx, "audit outbox flush failed", "error", err)
			}
		}
	}
}

// Flush publishes one batch and returns how many entries were delivered.
func (w *Worker) Flush(ctx context.Context) (int, error) {
	published := 0
	err := w.outbox.RunInTx(ctx, func(ctx context.Context) error {
		pending, err := w.outbox.Pending(ctx, w.batchSize)
		if err != nil {
			return err
		}
		if len(pending) == 0 {
			return nil
		}

		records := make([]*kgo.Record, 0, len(pending))
		ids := make([]string, 0, len(pending))
		for _, p := range pending {
			records = append(records, &kgo.Record{
				Topic: w.topic,
				Key:   []byte(p.Key),
				Value: p.Payload,
				Headers: []kgo.RecordHeader{
					{Key: "event_type", Value: []byte(p.EventType)},
					{Key: "outbox_id", Value: []byte(p.ID)},
				},
			})
			ids = append(ids, p.ID)
		}

		if err := w.producer.ProduceSync(ctx, records...).FirstErr(); err != nil {
			return fmt.Errorf("produce audit batch: %w", err)
		}
		if err := w.outbox.MarkPublished(ctx, ids); err != nil {
			return err
		}
		published = len(ids)
		return nil
	})
	return published, err
}
