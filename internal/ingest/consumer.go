package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/segmentio/kafka-go"

	"github.com/fleetwatch/fleetwatch/internal/metrics"
	domain "github.com/fleetwatch/fleetwatch/pkg/types"
)

// Consumer reads telemetry envelopes from Kafka and feeds them to the batch
// writer. Unparseable messages are counted and dropped; fetch errors back off
// and retry.
type Consumer struct {
	reader *kafka.Reader
	writer *Writer
	log    *slog.Logger
}

// NewConsumer creates a consumer in the given group. Offsets commit after the
// message is buffered; the seq-based dedupe in the store makes redelivered
// messages harmless.
func NewConsumer(
	brokers []string,
	topic, groupID string,
	w *Writer,
	opts ...ConsumerOption,
) (*Consumer, error) {
	if len(brokers) == 0 {
		return nil, errors.New("at least one broker is required")
	}
	if topic == "" {
		return nil, errors.New("topic is required")
	}

	c := &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:        brokers,
			Topic:          topic,
			GroupID:        groupID,
			MinBytes:       1,
			MaxBytes:       10 << 20,
			CommitInterval: 0, // explicit commits
		}),
		writer: w,
		log:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// ConsumerOption configures a Consumer.
type ConsumerOption func(*Consumer)

// WithConsumerLogger sets a custom logger.
func WithConsumerLogger(l *slog.Logger) ConsumerOption {
	return func(c *Consumer) {
		c.log = l
	}
}

// Run consumes until the context is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Second
	bo.MaxInterval = 30 * time.Second
	bo.MaxElapsedTime = 0

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			wait := bo.NextBackOff()
			c.log.Error("kafka fetch failed", "error", err, "retry_in", wait)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
			continue
		}
		bo.Reset()

		metrics.IngestMessagesTotal.Inc()
		c.handle(ctx, msg.Value)

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.log.Warn("kafka commit failed", "error", err)
		}
	}
}

// handle decodes one message and buffers it. Poison messages are dropped.
func (c *Consumer) handle(ctx context.Context, value []byte) {
	env, err := decodeEnvelope(value)
	if err != nil {
		metrics.IngestInvalidTotal.Inc()
		c.log.Warn("dropping invalid telemetry message", "error", err)
		return
	}

	c.writer.Add(ctx, *env)
}

// Close shuts down the Kafka reader.
func (c *Consumer) Close() error {
	return c.reader.Close()
}

func decodeEnvelope(value []byte) (*domain.TelemetryEnvelope, error) {
	var env domain.TelemetryEnvelope
	if err := json.Unmarshal(value, &env); err != nil {
		return nil, fmt.Errorf("unmarshaling envelope: %w", err)
	}
	if err := env.Validate(); err != nil {
		return nil, err
	}
	return &env, nil
}
