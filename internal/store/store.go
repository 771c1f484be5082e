// Package store defines the datastore abstraction for fleetwatch.
// All business logic depends on the Store interface, never on concrete
// implementations. This enables mock-based testing without a running database.
package store

import (
	"context"
	"time"

	domain "github.com/fleetwatch/fleetwatch/pkg/types"
)

// AlertQuery defines optional filters for alert queries.
type AlertQuery struct {
	TenantID  string
	Status    *string
	AlertType *string
	DeviceID  *string
	Limit     int // default 50
	Offset    int
}

// Store defines all data access operations for fleetwatch.
type Store interface {
	// Tenants and devices
	EnsureTenant(ctx context.Context, tenantID string) error
	ListTenantIDs(ctx context.Context) ([]string, error)
	EnsureDevice(ctx context.Context, tenantID, deviceID, siteID string, seenAt time.Time) error
	ListStaleDevices(ctx context.Context, tenantID string, cutoff time.Time) ([]domain.Device, error)

	// Silences
	ListActiveSilences(ctx context.Context, tenantID string, at time.Time) ([]domain.Silence, error)

	// Rules
	ListRules(ctx context.Context, tenantID string) ([]domain.AlertRule, error)
	ListEnabledRules(ctx context.Context, tenantID string) ([]domain.AlertRule, error)
	GetRule(ctx context.Context, tenantID, id string) (*domain.AlertRule, error)

	// Telemetry
	InsertTelemetryBatch(ctx context.Context, rows []domain.TelemetryEnvelope) (int, error)
	NotifyTelemetry(ctx context.Context, channel, tenantID string) error
	LatestTelemetry(ctx context.Context, tenantID string, lookback time.Duration) ([]domain.TelemetryEnvelope, error)
	WindowCounts(
		ctx context.Context,
		tenantID, deviceID, metric string,
		op domain.Operator,
		threshold float64,
		window time.Duration,
	) (total, matching int, err error)
	MetricWindowStats(
		ctx context.Context,
		tenantID, deviceID, metric string,
		window time.Duration,
	) (*domain.RollingStats, error)

	// Alerts
	OpenOrUpdateAlert(ctx context.Context, a *domain.Alert) (opened bool, err error)
	CloseAlert(ctx context.Context, tenantID, fingerprint string) (bool, error)
	CloseRecoveredHeartbeatAlerts(ctx context.Context, tenantID string, cutoff time.Time) (int, error)
	ListAlerts(ctx context.Context, opts *AlertQuery) ([]domain.Alert, int, error)
	GetAlert(ctx context.Context, tenantID, id string) (*domain.Alert, error)
	ListPendingAlerts(ctx context.Context) ([]domain.Alert, error)
	MarkAlertsNotified(ctx context.Context, ids []string) error

	// System
	GetSystemState(ctx context.Context) (*domain.SystemState, error)

	// Scheduler
	InsertJobRun(ctx context.Context, jobName string) (id string, err error)
	CompleteJobRun(ctx context.Context, id string, status string, errText string, rowsAffected int) error
	ListJobRuns(ctx context.Context, jobName string, limit int) ([]domain.JobRun, error)
	ListLatestJobRuns(ctx context.Context) ([]domain.JobRun, error)
	RecoverStaleJobRuns(ctx context.Context, olderThan time.Duration) (int, error)

	// Migrations
	Migrate(ctx context.Context) error

	// Health
	Ping(ctx context.Context) error
}
