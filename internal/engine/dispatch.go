package engine

import (
	"context"
	"fmt"

	"github.com/fleetwatch/fleetwatch/internal/metrics"
	"github.com/fleetwatch/fleetwatch/internal/notify"
	domain "github.com/fleetwatch/fleetwatch/pkg/types"
)

// dispatchPending sends notifications for open, un-notified alerts, then
// marks them as notified. Alerts are grouped per tenant; a tenant with
// batchThreshold or more pending alerts gets one batched send. Failed sends
// leave the alerts pending for the next pass.
func (e *Engine) dispatchPending(ctx context.Context) error {
	pending, err := e.store.ListPendingAlerts(ctx)
	if err != nil {
		return fmt.Errorf("listing pending alerts: %w", err)
	}

	if len(pending) == 0 {
		return nil
	}

	grouped := groupByTenant(pending)

	for tenant, alerts := range grouped {
		if err := e.sendAlerts(ctx, tenant, alerts); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			metrics.NotificationFailuresTotal.Inc()
			e.log.Error("sending notifications failed",
				"tenant", tenant, "count", len(alerts), "error", err)
			continue
		}
	}

	return nil
}

func groupByTenant(alerts []domain.Alert) map[string][]domain.Alert {
	grouped := make(map[string][]domain.Alert)
	for _, a := range alerts {
		grouped[a.TenantID] = append(grouped[a.TenantID], a)
	}
	return grouped
}

func (e *Engine) sendAlerts(ctx context.Context, tenant string, alerts []domain.Alert) error {
	if len(alerts) >= e.batchThreshold {
		return e.sendBatch(ctx, tenant, alerts)
	}

	for i := range alerts {
		if err := e.sendSingle(ctx, &alerts[i]); err != nil {
			return err
		}
	}

	return nil
}

func (e *Engine) sendSingle(ctx context.Context, alert *domain.Alert) error {
	if err := e.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("waiting for rate limiter: %w", err)
	}

	if err := e.notifier.SendAlert(ctx, notify.PayloadFromAlert(alert)); err != nil {
		return fmt.Errorf("sending alert: %w", err)
	}

	metrics.NotificationsSentTotal.Inc()

	return e.store.MarkAlertsNotified(ctx, []string{alert.ID})
}

func (e *Engine) sendBatch(ctx context.Context, tenant string, alerts []domain.Alert) error {
	if err := e.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("waiting for rate limiter: %w", err)
	}

	payloads := make([]notify.AlertPayload, 0, len(alerts))
	alertIDs := make([]string, 0, len(alerts))

	for i := range alerts {
		payloads = append(payloads, *notify.PayloadFromAlert(&alerts[i]))
		alertIDs = append(alertIDs, alerts[i].ID)
	}

	if err := e.notifier.SendBatchAlert(ctx, payloads, tenant); err != nil {
		return fmt.Errorf("sending batch alert: %w", err)
	}

	metrics.NotificationsSentTotal.Add(float64(len(alertIDs)))

	return e.store.MarkAlertsNotified(ctx, alertIDs)
}
