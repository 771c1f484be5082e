package main

import "errors"

// KnownMetrics is the set of metric names exported by fleetwatch
// plus recording rule names referenced in dashboards and alerts.
var KnownMetrics = map[string]bool{
	// HTTP metrics.
	"fleetwatch_http_request_duration_seconds": true,
	"fleetwatch_http_requests_total":           true,

	// Health metrics.
	"fleetwatch_healthz_up": true,
	"fleetwatch_readyz_up":  true,

	// Ingestion metrics.
	"fleetwatch_ingest_messages_total":         true,
	"fleetwatch_ingest_rows_written_total":     true,
	"fleetwatch_ingest_invalid_total":          true,
	"fleetwatch_ingest_errors_total":           true,
	"fleetwatch_ingest_flush_duration_seconds": true,

	// Evaluation metrics.
	"fleetwatch_eval_pass_duration_seconds": true,
	"fleetwatch_eval_passes_total":          true,
	"fleetwatch_eval_wakeups_total":         true,
	"fleetwatch_eval_tenant_errors_total":   true,
	"fleetwatch_eval_device_errors_total":   true,

	// Alert metrics.
	"fleetwatch_alerts_opened_total":         true,
	"fleetwatch_alerts_closed_total":         true,
	"fleetwatch_alerts_silenced_total":       true,
	"fleetwatch_notifications_sent_total":    true,
	"fleetwatch_notification_failures_total": true,

	// Listener metrics.
	"fleetwatch_listener_reconnects_total":    true,
	"fleetwatch_listener_notifications_total": true,

	// Recording rules.
	"fleetwatch:http_requests:rate5m":   true,
	"fleetwatch:http_errors:rate5m":     true,
	"fleetwatch:ingest_messages:rate5m": true,
	"fleetwatch:ingest_errors:rate5m":   true,
	"fleetwatch:eval_passes:rate5m":     true,
	"fleetwatch:alerts_opened:rate5m":   true,

	// Standard Prometheus metrics referenced in dashboards.
	"up":                         true,
	"process_start_time_seconds": true,
}

// Config controls which artifacts the generator produces and where they go.
type Config struct {
	OutputDir        string
	DashboardEnabled bool
	RulesEnabled     bool
}

// DefaultConfig returns a Config that generates all artifacts into ../../deploy
// (relative to tools/dashgen/).
func DefaultConfig() Config {
	return Config{
		OutputDir:        "../../deploy",
		DashboardEnabled: true,
		RulesEnabled:     true,
	}
}

// Validate checks that the config is usable.
func (c Config) Validate() error {
	if c.OutputDir == "" {
		return errors.New("output directory must be set")
	}
	if !c.DashboardEnabled && !c.RulesEnabled {
		return errors.New("at least one of dashboard or rules must be enabled")
	}
	return nil
}
