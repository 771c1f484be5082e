// Package notify defines the notification interface and implementations
// for alert delivery.
package notify

import (
	"context"
	"time"

	domain "github.com/fleetwatch/fleetwatch/pkg/types"
)

// AlertPayload contains the data needed to send an alert notification.
type AlertPayload struct {
	TenantID  string
	DeviceID  string
	AlertType string
	Severity  string
	Metric    string
	Message   string
	OpenedAt  time.Time
	Context   map[string]any
}

// PayloadFromAlert builds the notification payload for one alert.
func PayloadFromAlert(a *domain.Alert) *AlertPayload {
	return &AlertPayload{
		TenantID:  a.TenantID,
		DeviceID:  a.DeviceID,
		AlertType: string(a.AlertType),
		Severity:  a.Severity,
		Metric:    a.MetricName,
		Message:   a.Message,
		OpenedAt:  a.OpenedAt,
		Context:   a.Context,
	}
}

// Notifier defines the interface for sending alert notifications.
type Notifier interface {
	SendAlert(ctx context.Context, alert *AlertPayload) error
	SendBatchAlert(ctx context.Context, alerts []AlertPayload, tenantID string) error
}
