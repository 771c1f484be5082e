// Package engine implements the periodic alert evaluation loop: rule loading,
// snapshot building, threshold and anomaly evaluation, alert lifecycle, and
// notification dispatch.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"

	"github.com/fleetwatch/fleetwatch/internal/metrics"
	"github.com/fleetwatch/fleetwatch/internal/notify"
	"github.com/fleetwatch/fleetwatch/internal/store"
	domain "github.com/fleetwatch/fleetwatch/pkg/types"
)

const (
	defaultPollInterval      = 5 * time.Second
	defaultSnapshotLookback  = 30 * time.Minute
	defaultDeviceConcurrency = 8
	defaultBatchThreshold    = 5
)

// Engine runs evaluation passes over every tenant's rules and devices.
type Engine struct {
	store    store.Store
	notifier notify.Notifier
	log      *slog.Logger
	clock    clockwork.Clock

	pollInterval      time.Duration
	snapshotLookback  time.Duration
	deviceConcurrency int
	batchThreshold    int
	limiter           *rate.Limiter
	wake              <-chan string
}

// NewEngine creates a new Engine with injected dependencies.
func NewEngine(s store.Store, n notify.Notifier, opts ...EngineOption) *Engine {
	eng := &Engine{
		store:             s,
		notifier:          n,
		log:               slog.Default(),
		clock:             clockwork.NewRealClock(),
		pollInterval:      defaultPollInterval,
		snapshotLookback:  defaultSnapshotLookback,
		deviceConcurrency: defaultDeviceConcurrency,
		batchThreshold:    defaultBatchThreshold,
		limiter:           rate.NewLimiter(rate.Limit(2), 5),
	}
	for _, opt := range opts {
		opt(eng)
	}
	return eng
}

// EngineOption configures the Engine.
type EngineOption func(*Engine)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.log = l
	}
}

// WithClock sets the clock used for tick scheduling and silence checks.
func WithClock(c clockwork.Clock) EngineOption {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithPollInterval sets the guaranteed evaluation cadence.
func WithPollInterval(d time.Duration) EngineOption {
	return func(e *Engine) {
		if d > 0 {
			e.pollInterval = d
		}
	}
}

// WithSnapshotLookback bounds how far back the latest-telemetry snapshot reaches.
func WithSnapshotLookback(d time.Duration) EngineOption {
	return func(e *Engine) {
		if d > 0 {
			e.snapshotLookback = d
		}
	}
}

// WithDeviceConcurrency sets how many devices evaluate in parallel per tenant.
func WithDeviceConcurrency(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.deviceConcurrency = n
		}
	}
}

// WithBatchThreshold sets the pending-alert count above which a tenant's
// notifications are sent as one batch.
func WithBatchThreshold(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.batchThreshold = n
		}
	}
}

// WithRateLimit sets the notification token bucket.
func WithRateLimit(perSecond float64, burst int) EngineOption {
	return func(e *Engine) {
		e.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithWakeChannel attaches a notification wake channel. The poll tick keeps
// running regardless; a wake just starts the next pass early.
func WithWakeChannel(ch <-chan string) EngineOption {
	return func(e *Engine) {
		e.wake = ch
	}
}

// Run executes evaluation passes until the context is cancelled. Every poll
// interval triggers a pass; a wake notification triggers one sooner. Pass
// failures are logged and the loop keeps going.
func (e *Engine) Run(ctx context.Context) error {
	e.log.Info("evaluation loop started",
		"poll_interval", e.pollInterval,
		"wake_enabled", e.wake != nil,
	)

	ticker := e.clock.NewTicker(e.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.log.Info("evaluation loop stopped")
			return ctx.Err()
		case <-ticker.Chan():
		case tenant := <-e.wakeChan():
			metrics.EvalWakeupsTotal.Inc()
			e.log.Debug("woken by telemetry notification", "tenant", tenant)
		}

		if err := e.RunPass(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			e.log.Error("evaluation pass failed", "error", err)
		}
	}
}

// wakeChan returns the wake channel, or a nil channel (blocking forever)
// when no listener is attached.
func (e *Engine) wakeChan() <-chan string {
	return e.wake
}

// RunPass evaluates every tenant once, then dispatches pending notifications.
// One tenant's failure never aborts the others.
func (e *Engine) RunPass(ctx context.Context) error {
	start := e.clock.Now()
	defer func() {
		metrics.EvalPassDuration.Observe(e.clock.Since(start).Seconds())
	}()
	metrics.EvalPassesTotal.Inc()

	tenants, err := e.store.ListTenantIDs(ctx)
	if err != nil {
		return fmt.Errorf("listing tenants: %w", err)
	}

	for _, tenant := range tenants {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if err := e.evaluateTenant(ctx, tenant); err != nil {
			e.log.Error("tenant evaluation failed", "tenant", tenant, "error", err)
			metrics.EvalTenantErrorsTotal.Inc()
			continue
		}
	}

	if err := e.dispatchPending(ctx); err != nil {
		e.log.Error("alert dispatch failed", "error", err)
	}

	return nil
}

// evaluateTenant runs every enabled rule of one tenant against its current
// device snapshots. Devices evaluate concurrently on a bounded pool; a bad
// device skips only itself.
func (e *Engine) evaluateTenant(ctx context.Context, tenant string) error {
	rules, err := e.store.ListEnabledRules(ctx, tenant)
	if err != nil {
		return fmt.Errorf("loading rules: %w", err)
	}

	rules = e.filterRules(tenant, rules)
	if len(rules) == 0 {
		return nil
	}

	latest, err := e.store.LatestTelemetry(ctx, tenant, e.snapshotLookback)
	if err != nil {
		return fmt.Errorf("loading telemetry snapshot: %w", err)
	}
	if len(latest) == 0 {
		return nil
	}

	snapshots := BuildSnapshots(latest)

	silenced, err := e.silencedDevices(ctx, tenant)
	if err != nil {
		// Evaluation proceeds unsuppressed rather than stalling the tenant.
		e.log.Warn("loading silences failed", "tenant", tenant, "error", err)
		silenced = nil
	}

	pool := pond.NewPool(e.deviceConcurrency)
	defer pool.StopAndWait()

	group := pool.NewGroupContext(ctx)
	for _, snap := range snapshots {
		group.Submit(func() {
			e.evaluateDevice(ctx, tenant, rules, snap, silenced[snap.DeviceID])
		})
	}

	if err := group.Wait(); err != nil {
		return fmt.Errorf("waiting for device evaluation: %w", err)
	}

	return nil
}

// filterRules drops rules that cannot evaluate: empty condition lists and
// conditions with invalid parameters. Each dropped rule logs a warning.
func (e *Engine) filterRules(tenant string, rules []domain.AlertRule) []domain.AlertRule {
	kept := rules[:0]
	for i := range rules {
		r := &rules[i]
		if len(r.Conditions) == 0 {
			e.log.Warn("rule has no conditions, skipping",
				"tenant", tenant, "rule", r.Name, "rule_id", r.ID)
			continue
		}

		valid := true
		for j := range r.Conditions {
			if err := r.Conditions[j].Validate(); err != nil {
				e.log.Warn("rule condition invalid, skipping rule",
					"tenant", tenant, "rule", r.Name, "rule_id", r.ID, "error", err)
				valid = false
				break
			}
		}
		if !valid {
			continue
		}

		kept = append(kept, *r)
	}
	return kept
}

func (e *Engine) silencedDevices(ctx context.Context, tenant string) (map[string]bool, error) {
	silences, err := e.store.ListActiveSilences(ctx, tenant, e.clock.Now())
	if err != nil {
		return nil, err
	}
	if len(silences) == 0 {
		return nil, nil
	}

	silenced := make(map[string]bool, len(silences))
	for _, s := range silences {
		silenced[s.DeviceID] = true
	}
	return silenced, nil
}

// evaluateDevice runs every rule against one device snapshot. Rule failures
// are isolated: a store error on one rule skips that rule for this device
// without touching its alert state.
func (e *Engine) evaluateDevice(
	ctx context.Context,
	tenant string,
	rules []domain.AlertRule,
	snap *domain.MetricSnapshot,
	silenced bool,
) {
	for i := range rules {
		rule := &rules[i]

		result, err := e.evalRule(ctx, tenant, rule, snap)
		if err != nil {
			e.log.Warn("rule evaluation failed",
				"tenant", tenant,
				"device", snap.DeviceID,
				"rule", rule.Name,
				"error", err,
			)
			metrics.EvalDeviceErrorsTotal.Inc()
			continue
		}

		e.applyResult(ctx, tenant, rule, snap, silenced, result)
	}
}

// applyResult turns one rule evaluation into an alert transition: open or
// refresh when fired, close when decisively clear, nothing when the data was
// insufficient to decide.
func (e *Engine) applyResult(
	ctx context.Context,
	tenant string,
	rule *domain.AlertRule,
	snap *domain.MetricSnapshot,
	silenced bool,
	result ruleResult,
) {
	alertType := domain.AlertThreshold
	if rule.RuleType == domain.AlertAnomaly {
		alertType = domain.AlertAnomaly
	}
	metric := rule.PrimaryMetric()
	fp := domain.Fingerprint(alertType, snap.DeviceID, metric)

	if result.fired {
		if silenced {
			metrics.AlertsSilencedTotal.Inc()
			e.log.Debug("alert suppressed by silence",
				"tenant", tenant, "device", snap.DeviceID, "rule", rule.Name)
			return
		}

		a := &domain.Alert{
			TenantID:    tenant,
			Fingerprint: fp,
			AlertType:   alertType,
			DeviceID:    snap.DeviceID,
			MetricName:  metric,
			RuleID:      rule.ID,
			Severity:    rule.Severity,
			Message:     result.message,
			Context:     result.context,
		}

		opened, err := e.store.OpenOrUpdateAlert(ctx, a)
		if err != nil {
			e.log.Error("opening alert failed",
				"tenant", tenant, "device", snap.DeviceID, "rule", rule.Name, "error", err)
			metrics.EvalDeviceErrorsTotal.Inc()
			return
		}
		if opened {
			metrics.AlertsOpenedTotal.WithLabelValues(string(alertType)).Inc()
			e.log.Info("alert opened",
				"tenant", tenant,
				"device", snap.DeviceID,
				"rule", rule.Name,
				"alert_type", alertType,
				"fingerprint", fp,
			)
		}
		return
	}

	if !result.decisive {
		return
	}

	closed, err := e.store.CloseAlert(ctx, tenant, fp)
	if err != nil {
		e.log.Error("closing alert failed",
			"tenant", tenant, "device", snap.DeviceID, "rule", rule.Name, "error", err)
		metrics.EvalDeviceErrorsTotal.Inc()
		return
	}
	if closed {
		metrics.AlertsClosedTotal.WithLabelValues(string(alertType)).Inc()
		e.log.Info("alert closed",
			"tenant", tenant,
			"device", snap.DeviceID,
			"rule", rule.Name,
			"fingerprint", fp,
		)
	}
}
