package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/fleetwatch/fleetwatch/internal/metrics"
	domain "github.com/fleetwatch/fleetwatch/pkg/types"
)

// heartbeatMetric names the pseudo-metric that identifies heartbeat alerts.
const heartbeatMetric = "heartbeat"

// RunHeartbeatSweep opens NO_HEARTBEAT alerts for devices silent longer than
// staleAfter and closes those for devices that resumed reporting. Returns the
// number of alerts opened plus closed.
func (e *Engine) RunHeartbeatSweep(ctx context.Context, staleAfter time.Duration) (int, error) {
	tenants, err := e.store.ListTenantIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing tenants: %w", err)
	}

	cutoff := e.clock.Now().Add(-staleAfter)
	var affected int

	for _, tenant := range tenants {
		if ctx.Err() != nil {
			return affected, ctx.Err()
		}

		n, err := e.sweepTenant(ctx, tenant, cutoff)
		affected += n
		if err != nil {
			e.log.Error("heartbeat sweep failed for tenant", "tenant", tenant, "error", err)
			metrics.EvalTenantErrorsTotal.Inc()
			continue
		}
	}

	return affected, nil
}

func (e *Engine) sweepTenant(ctx context.Context, tenant string, cutoff time.Time) (int, error) {
	stale, err := e.store.ListStaleDevices(ctx, tenant, cutoff)
	if err != nil {
		return 0, fmt.Errorf("listing stale devices: %w", err)
	}

	silenced, err := e.silencedDevices(ctx, tenant)
	if err != nil {
		e.log.Warn("loading silences failed", "tenant", tenant, "error", err)
		silenced = nil
	}

	var affected int

	for i := range stale {
		dev := &stale[i]

		if silenced[dev.DeviceID] {
			metrics.AlertsSilencedTotal.Inc()
			continue
		}

		msg := fmt.Sprintf("device %s has stopped reporting telemetry", dev.DeviceID)
		alertCtx := map[string]any{}
		if dev.LastSeenAt != nil {
			msg = fmt.Sprintf("device %s last reported at %s",
				dev.DeviceID, dev.LastSeenAt.UTC().Format(time.RFC3339))
			alertCtx["last_seen_at"] = dev.LastSeenAt.UTC().Format(time.RFC3339)
		}

		a := &domain.Alert{
			TenantID:    tenant,
			Fingerprint: domain.Fingerprint(domain.AlertNoHeartbeat, dev.DeviceID, heartbeatMetric),
			AlertType:   domain.AlertNoHeartbeat,
			DeviceID:    dev.DeviceID,
			MetricName:  heartbeatMetric,
			Severity:    "critical",
			Message:     msg,
			Context:     alertCtx,
		}

		opened, err := e.store.OpenOrUpdateAlert(ctx, a)
		if err != nil {
			e.log.Error("opening heartbeat alert failed",
				"tenant", tenant, "device", dev.DeviceID, "error", err)
			metrics.EvalDeviceErrorsTotal.Inc()
			continue
		}
		if opened {
			affected++
			metrics.AlertsOpenedTotal.WithLabelValues(string(domain.AlertNoHeartbeat)).Inc()
			e.log.Info("heartbeat alert opened", "tenant", tenant, "device", dev.DeviceID)
		}
	}

	closed, err := e.store.CloseRecoveredHeartbeatAlerts(ctx, tenant, cutoff)
	if err != nil {
		return affected, fmt.Errorf("closing recovered heartbeat alerts: %w", err)
	}
	if closed > 0 {
		affected += closed
		metrics.AlertsClosedTotal.
			WithLabelValues(string(domain.AlertNoHeartbeat)).
			Add(float64(closed))
		e.log.Info("heartbeat alerts closed", "tenant", tenant, "count", closed)
	}

	return affected, nil
}
