// Package ingest consumes telemetry from Kafka and batch-writes it into the
// store, waking the evaluator through NOTIFY after each flush.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/jonboulle/clockwork"

	"github.com/fleetwatch/fleetwatch/internal/metrics"
	"github.com/fleetwatch/fleetwatch/internal/store"
	domain "github.com/fleetwatch/fleetwatch/pkg/types"
)

const (
	defaultBatchSize     = 200
	defaultFlushInterval = 2 * time.Second
	defaultRegistryTTL   = time.Minute
)

// Writer buffers telemetry envelopes and flushes them in batches, either when
// the buffer reaches batchSize or on the flush interval. Tenants and devices
// are registered through a TTL cache so each registration upsert runs at most
// once per TTL. A failed flush keeps the batch for the next attempt.
type Writer struct {
	store store.Store
	log   *slog.Logger
	clock clockwork.Clock

	batchSize     int
	flushInterval time.Duration
	notifyChannel string

	registry *ttlcache.Cache[string, struct{}]

	mu  sync.Mutex
	buf []domain.TelemetryEnvelope
}

// NewWriter creates a batch writer on top of the store.
func NewWriter(s store.Store, opts ...WriterOption) *Writer {
	w := &Writer{
		store:         s,
		log:           slog.Default(),
		clock:         clockwork.NewRealClock(),
		batchSize:     defaultBatchSize,
		flushInterval: defaultFlushInterval,
		registry: ttlcache.New(
			ttlcache.WithTTL[string, struct{}](defaultRegistryTTL),
		),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// WriterOption configures a Writer.
type WriterOption func(*Writer)

// WithWriterLogger sets a custom logger.
func WithWriterLogger(l *slog.Logger) WriterOption {
	return func(w *Writer) {
		w.log = l
	}
}

// WithWriterClock sets the clock used for the flush ticker.
func WithWriterClock(c clockwork.Clock) WriterOption {
	return func(w *Writer) {
		w.clock = c
	}
}

// WithBatchSize sets the flush-triggering buffer size.
func WithBatchSize(n int) WriterOption {
	return func(w *Writer) {
		if n > 0 {
			w.batchSize = n
		}
	}
}

// WithFlushInterval sets the time-based flush cadence.
func WithFlushInterval(d time.Duration) WriterOption {
	return func(w *Writer) {
		if d > 0 {
			w.flushInterval = d
		}
	}
}

// WithNotifyChannel enables a NOTIFY per flushed tenant on the given channel.
func WithNotifyChannel(channel string) WriterOption {
	return func(w *Writer) {
		w.notifyChannel = channel
	}
}

// WithRegistryTTL sets how long tenant/device registrations are cached.
func WithRegistryTTL(ttl time.Duration) WriterOption {
	return func(w *Writer) {
		if ttl > 0 {
			w.registry = ttlcache.New(
				ttlcache.WithTTL[string, struct{}](ttl),
			)
		}
	}
}

// Add buffers one envelope, flushing when the buffer is full. Flush errors
// are logged, not returned: the batch stays buffered for the next attempt.
func (w *Writer) Add(ctx context.Context, env domain.TelemetryEnvelope) {
	w.mu.Lock()
	w.buf = append(w.buf, env)
	full := len(w.buf) >= w.batchSize
	w.mu.Unlock()

	if full {
		if err := w.Flush(ctx); err != nil {
			w.log.Error("telemetry flush failed", "error", err)
		}
	}
}

// Run flushes on the configured interval until the context is cancelled,
// then performs a final flush.
func (w *Writer) Run(ctx context.Context) error {
	go w.registry.Start()
	defer w.registry.Stop()

	ticker := w.clock.NewTicker(w.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := w.Flush(flushCtx); err != nil {
				w.log.Error("final telemetry flush failed", "error", err)
			}
			return ctx.Err()
		case <-ticker.Chan():
			if err := w.Flush(ctx); err != nil {
				w.log.Error("telemetry flush failed", "error", err)
			}
		}
	}
}

// Flush writes the buffered envelopes as one batch. On failure the batch is
// put back in front of the buffer and the error returned.
func (w *Writer) Flush(ctx context.Context) error {
	w.mu.Lock()
	batch := w.buf
	w.buf = nil
	w.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}

	start := w.clock.Now()
	defer func() {
		metrics.IngestFlushDuration.Observe(w.clock.Since(start).Seconds())
	}()

	if err := w.register(ctx, batch); err != nil {
		w.requeue(batch)
		metrics.IngestErrorsTotal.Inc()
		return fmt.Errorf("registering devices: %w", err)
	}

	inserted, err := w.store.InsertTelemetryBatch(ctx, batch)
	if err != nil {
		w.requeue(batch)
		metrics.IngestErrorsTotal.Inc()
		return fmt.Errorf("inserting telemetry batch: %w", err)
	}

	metrics.IngestRowsWrittenTotal.Add(float64(inserted))
	w.log.Debug("telemetry batch flushed", "rows", len(batch), "inserted", inserted)

	w.notifyTenants(ctx, batch)

	return nil
}

// register upserts the tenants and devices seen in the batch, at most once
// per registry TTL each. Device registration also advances last_seen_at, so
// the TTL bounds how stale that column can run.
func (w *Writer) register(ctx context.Context, batch []domain.TelemetryEnvelope) error {
	for i := range batch {
		env := &batch[i]

		tenantKey := "t/" + env.TenantID
		if w.registry.Get(tenantKey) == nil {
			if err := w.store.EnsureTenant(ctx, env.TenantID); err != nil {
				return fmt.Errorf("ensuring tenant %s: %w", env.TenantID, err)
			}
			w.registry.Set(tenantKey, struct{}{}, ttlcache.DefaultTTL)
		}

		deviceKey := "d/" + env.TenantID + "/" + env.DeviceID
		if w.registry.Get(deviceKey) == nil {
			if err := w.store.EnsureDevice(ctx, env.TenantID, env.DeviceID, env.SiteID, env.Time); err != nil {
				return fmt.Errorf("ensuring device %s/%s: %w", env.TenantID, env.DeviceID, err)
			}
			w.registry.Set(deviceKey, struct{}{}, ttlcache.DefaultTTL)
		}
	}
	return nil
}

// notifyTenants wakes the evaluator once per distinct tenant in the batch.
// Notify failures are logged only; the poll tick covers for them.
func (w *Writer) notifyTenants(ctx context.Context, batch []domain.TelemetryEnvelope) {
	if w.notifyChannel == "" {
		return
	}

	seen := make(map[string]struct{})
	for i := range batch {
		tenant := batch[i].TenantID
		if _, ok := seen[tenant]; ok {
			continue
		}
		seen[tenant] = struct{}{}

		if err := w.store.NotifyTelemetry(ctx, w.notifyChannel, tenant); err != nil {
			w.log.Warn("telemetry notify failed", "tenant", tenant, "error", err)
		}
	}
}

func (w *Writer) requeue(batch []domain.TelemetryEnvelope) {
	w.mu.Lock()
	w.buf = append(batch, w.buf...)
	w.mu.Unlock()
}

// Buffered returns the number of envelopes waiting for the next flush.
func (w *Writer) Buffered() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.buf)
}
