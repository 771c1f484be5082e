// Package domain defines the core business types for the fleet alert evaluator.
package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// AlertType categorizes an alert by what produced it.
type AlertType string

// Alert type constants.
const (
	AlertNoHeartbeat  AlertType = "NO_HEARTBEAT"
	AlertThreshold    AlertType = "THRESHOLD"
	AlertAnomaly      AlertType = "ANOMALY"
	AlertSystemHealth AlertType = "SYSTEM_HEALTH"
)

// AlertStatus represents the lifecycle state of an alert.
type AlertStatus string

// Alert status constants.
const (
	StatusOpen   AlertStatus = "OPEN"
	StatusClosed AlertStatus = "CLOSED"
)

// Operator represents a threshold comparison operator.
type Operator string

// Operator constants.
const (
	OpGT  Operator = "GT"
	OpGTE Operator = "GTE"
	OpLT  Operator = "LT"
	OpLTE Operator = "LTE"
)

// Compare evaluates value against threshold. Unknown operators compare false.
func (o Operator) Compare(value, threshold float64) bool {
	switch o {
	case OpGT:
		return value > threshold
	case OpGTE:
		return value >= threshold
	case OpLT:
		return value < threshold
	case OpLTE:
		return value <= threshold
	default:
		return false
	}
}

// Valid reports whether the operator is one of the four supported comparisons.
func (o Operator) Valid() bool {
	switch o {
	case OpGT, OpGTE, OpLT, OpLTE:
		return true
	}
	return false
}

// ConditionType distinguishes the two kinds of rule conditions.
type ConditionType string

// Condition type constants.
const (
	ConditionThreshold ConditionType = "threshold"
	ConditionAnomaly   ConditionType = "anomaly"
)

// MatchMode controls how multi-condition rules combine their conditions.
type MatchMode string

// Match mode constants.
const (
	MatchAll MatchMode = "all"
	MatchAny MatchMode = "any"
)

// RuleCondition is one condition inside an alert rule. Threshold conditions
// use Metric, Operator, Threshold and the optional DurationMinutes; anomaly
// conditions use Metric, WindowMinutes, ZThreshold and MinSamples.
type RuleCondition struct {
	Type      ConditionType `json:"type"`
	Metric    string        `json:"metric"`
	Operator  Operator      `json:"operator,omitempty"`
	Threshold float64       `json:"threshold,omitempty"`

	// DurationMinutes > 0 turns a threshold condition into a windowed one:
	// the comparison must hold for every sample in the window.
	DurationMinutes int `json:"duration_minutes,omitempty"`

	// Anomaly parameters.
	WindowMinutes int     `json:"window_minutes,omitempty"`
	ZThreshold    float64 `json:"z_threshold,omitempty"`
	MinSamples    int     `json:"min_samples,omitempty"`
}

// Anomaly parameter bounds.
const (
	AnomalyWindowMin     = 5
	AnomalyWindowMax     = 1440
	AnomalyZMin          = 1.0
	AnomalyZMax          = 10.0
	AnomalyMinSamplesMin = 3
	AnomalyMinSamplesMax = 1000
)

// Validate checks a condition's fields against its declared type.
func (c *RuleCondition) Validate() error {
	if c.Metric == "" {
		return fmt.Errorf("condition missing metric")
	}
	switch c.Type {
	case ConditionThreshold:
		if !c.Operator.Valid() {
			return fmt.Errorf("threshold condition on %q: invalid operator %q", c.Metric, c.Operator)
		}
		if c.DurationMinutes < 0 {
			return fmt.Errorf("threshold condition on %q: negative duration", c.Metric)
		}
	case ConditionAnomaly:
		if c.WindowMinutes < AnomalyWindowMin || c.WindowMinutes > AnomalyWindowMax {
			return fmt.Errorf("anomaly condition on %q: window_minutes %d out of range [%d, %d]",
				c.Metric, c.WindowMinutes, AnomalyWindowMin, AnomalyWindowMax)
		}
		if c.ZThreshold < AnomalyZMin || c.ZThreshold > AnomalyZMax {
			return fmt.Errorf("anomaly condition on %q: z_threshold %.2f out of range [%.1f, %.1f]",
				c.Metric, c.ZThreshold, AnomalyZMin, AnomalyZMax)
		}
		if c.MinSamples < AnomalyMinSamplesMin || c.MinSamples > AnomalyMinSamplesMax {
			return fmt.Errorf("anomaly condition on %q: min_samples %d out of range [%d, %d]",
				c.Metric, c.MinSamples, AnomalyMinSamplesMin, AnomalyMinSamplesMax)
		}
	default:
		return fmt.Errorf("unknown condition type %q", c.Type)
	}
	return nil
}

// AlertRule represents a tenant-scoped evaluation rule. Rows written before
// multi-condition support carry a single condition in the legacy top-level
// columns and an empty Conditions slice; Normalize folds them into Conditions.
type AlertRule struct {
	ID        string    `json:"id"         db:"id"`
	TenantID  string    `json:"tenant_id"  db:"tenant_id"`
	Name      string    `json:"name"       db:"name"`
	RuleType  AlertType `json:"rule_type"  db:"rule_type"`
	Enabled   bool      `json:"enabled"    db:"enabled"`
	Severity  string    `json:"severity"   db:"severity"`
	MatchMode MatchMode `json:"match_mode" db:"match_mode"`

	Conditions []RuleCondition `json:"conditions" db:"conditions"`

	// Legacy single-condition columns, kept for rows written before the
	// conditions column existed.
	LegacyMetric     string   `json:"-" db:"metric_name"`
	LegacyOperator   Operator `json:"-" db:"operator"`
	LegacyThreshold  *float64 `json:"-" db:"threshold"`
	LegacyDuration   *int     `json:"-" db:"duration_minutes"`
	LegacyWindow     *int     `json:"-" db:"window_minutes"`
	LegacyZThreshold *float64 `json:"-" db:"z_threshold"`
	LegacyMinSamples *int     `json:"-" db:"min_samples"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Normalize converts a legacy single-condition rule into the multi-condition
// shape. Rules that already have conditions are returned unchanged. Legacy
// rows without a metric produce an empty condition list, which evaluation
// treats as never matching.
func (r *AlertRule) Normalize() {
	if len(r.Conditions) > 0 {
		return
	}
	if r.MatchMode == "" {
		r.MatchMode = MatchAll
	}
	if r.LegacyMetric == "" {
		return
	}
	switch r.RuleType {
	case AlertAnomaly:
		c := RuleCondition{
			Type:          ConditionAnomaly,
			Metric:        r.LegacyMetric,
			WindowMinutes: 60,
			ZThreshold:    3.0,
			MinSamples:    AnomalyMinSamplesMin,
		}
		if r.LegacyWindow != nil {
			c.WindowMinutes = *r.LegacyWindow
		}
		if r.LegacyZThreshold != nil {
			c.ZThreshold = *r.LegacyZThreshold
		}
		if r.LegacyMinSamples != nil {
			c.MinSamples = *r.LegacyMinSamples
		}
		r.Conditions = []RuleCondition{c}
	default:
		c := RuleCondition{
			Type:     ConditionThreshold,
			Metric:   r.LegacyMetric,
			Operator: r.LegacyOperator,
		}
		if r.LegacyThreshold != nil {
			c.Threshold = *r.LegacyThreshold
		}
		if r.LegacyDuration != nil {
			c.DurationMinutes = *r.LegacyDuration
		}
		r.Conditions = []RuleCondition{c}
	}
}

// PrimaryMetric returns the metric name used for alert identity: the metric
// of the rule's first condition, or empty when the rule has none.
func (r *AlertRule) PrimaryMetric() string {
	if len(r.Conditions) == 0 {
		return ""
	}
	return r.Conditions[0].Metric
}

// MetricSnapshot holds the most recent reported value of every numeric metric
// for one device, built from its latest telemetry row.
type MetricSnapshot struct {
	TenantID   string             `json:"tenant_id"`
	DeviceID   string             `json:"device_id"`
	SiteID     string             `json:"site_id,omitempty"`
	ReportedAt time.Time          `json:"reported_at"`
	Metrics    map[string]float64 `json:"metrics"`
}

// snapshotExcluded lists telemetry fields that are identity or transport
// bookkeeping rather than metrics.
var snapshotExcluded = map[string]struct{}{
	"time":        {},
	"device_id":   {},
	"site_id":     {},
	"seq":         {},
	"tenant_id":   {},
	"ingested_at": {},
}

// SnapshotExcluded reports whether a telemetry field name is excluded from
// metric snapshots.
func SnapshotExcluded(name string) bool {
	_, ok := snapshotExcluded[name]
	return ok
}

// MetricValue coerces a raw telemetry value to float64. Booleans coerce with
// true as 1.0 and false as 0.0. Strings, nulls and structured values do not
// coerce and are excluded from evaluation.
func MetricValue(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case bool:
		if n {
			return 1.0, true
		}
		return 0.0, true
	default:
		return 0, false
	}
}

// RollingStats holds windowed aggregates for one device metric.
type RollingStats struct {
	Mean   float64  `json:"mean"   db:"mean"`
	StdDev float64  `json:"stddev" db:"stddev"`
	Count  int      `json:"count"  db:"count"`
	Latest *float64 `json:"latest,omitempty" db:"latest"`
}

// ZScore returns the standard score of the latest sample, or false when the
// window has no samples or zero spread.
func (s *RollingStats) ZScore() (float64, bool) {
	if s.Latest == nil || s.Count == 0 || s.StdDev <= 0 {
		return 0, false
	}
	return (*s.Latest - s.Mean) / s.StdDev, true
}

// Alert represents one open or resolved alert. An alert's identity within a
// tenant is its fingerprint; re-detecting the same condition updates the open
// row instead of creating another.
type Alert struct {
	ID          string      `json:"id"           db:"id"`
	TenantID    string      `json:"tenant_id"    db:"tenant_id"`
	Fingerprint string      `json:"fingerprint"  db:"fingerprint"`
	AlertType   AlertType   `json:"alert_type"   db:"alert_type"`
	DeviceID    string      `json:"device_id"    db:"device_id"`
	MetricName  string      `json:"metric_name"  db:"metric_name"`
	RuleID      string      `json:"rule_id,omitempty" db:"rule_id"`
	Status      AlertStatus `json:"status"       db:"status"`
	Severity    string      `json:"severity"     db:"severity"`
	Message     string      `json:"message"      db:"message"`

	// Context carries evaluation details such as the observed value,
	// threshold, or z-score at detection time.
	Context map[string]any `json:"context,omitempty" db:"context"`

	OpenedAt   time.Time  `json:"opened_at"             db:"opened_at"`
	LastSeenAt time.Time  `json:"last_seen_at"          db:"last_seen_at"`
	ClosedAt   *time.Time `json:"closed_at,omitempty"   db:"closed_at"`
	Notified   bool       `json:"notified"              db:"notified"`
	NotifiedAt *time.Time `json:"notified_at,omitempty" db:"notified_at"`
}

// Fingerprint derives the stable alert identity from the triple that defines
// one logical alert stream.
func Fingerprint(alertType AlertType, deviceID, metricName string) string {
	h := sha256.Sum256([]byte(string(alertType) + "\x00" + deviceID + "\x00" + metricName))
	return hex.EncodeToString(h[:16])
}

// Device represents a registered fleet device within a tenant.
type Device struct {
	TenantID   string     `json:"tenant_id"              db:"tenant_id"`
	DeviceID   string     `json:"device_id"              db:"device_id"`
	SiteID     string     `json:"site_id,omitempty"      db:"site_id"`
	LastSeenAt *time.Time `json:"last_seen_at,omitempty" db:"last_seen_at"`
	CreatedAt  time.Time  `json:"created_at"             db:"created_at"`
}

// TelemetryEnvelope is the wire format of one ingested telemetry report.
type TelemetryEnvelope struct {
	TenantID string         `json:"tenant_id"`
	DeviceID string         `json:"device_id"`
	SiteID   string         `json:"site_id,omitempty"`
	Seq      int64          `json:"seq"`
	Time     time.Time      `json:"time"`
	Metrics  map[string]any `json:"metrics"`
}

// Validate checks the fields ingestion requires before a row is written.
func (e *TelemetryEnvelope) Validate() error {
	if e.TenantID == "" {
		return fmt.Errorf("telemetry missing tenant_id")
	}
	if e.DeviceID == "" {
		return fmt.Errorf("telemetry missing device_id")
	}
	if e.Time.IsZero() {
		return fmt.Errorf("telemetry missing time")
	}
	return nil
}

// Silence suppresses alerting for one device for a bounded period.
type Silence struct {
	ID        string    `json:"id"         db:"id"`
	TenantID  string    `json:"tenant_id"  db:"tenant_id"`
	DeviceID  string    `json:"device_id"  db:"device_id"`
	Reason    string    `json:"reason,omitempty" db:"reason"`
	StartsAt  time.Time `json:"starts_at"  db:"starts_at"`
	EndsAt    time.Time `json:"ends_at"    db:"ends_at"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// JobRun records a single execution of a scheduled job.
type JobRun struct {
	ID           string     `json:"id"                      db:"id"`
	JobName      string     `json:"job_name"                db:"job_name"`
	StartedAt    time.Time  `json:"started_at"              db:"started_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"  db:"completed_at"`
	Status       string     `json:"status"                  db:"status"`
	ErrorText    string     `json:"error_text,omitempty"    db:"error_text"`
	RowsAffected *int       `json:"rows_affected,omitempty" db:"rows_affected"`
}

// SystemState holds a precomputed snapshot of aggregate system metrics.
type SystemState struct {
	TenantsTotal     int `json:"tenants_total"      db:"tenants_total"`
	DevicesTotal     int `json:"devices_total"      db:"devices_total"`
	DevicesStale     int `json:"devices_stale"      db:"devices_stale"`
	RulesTotal       int `json:"rules_total"        db:"rules_total"`
	RulesEnabled     int `json:"rules_enabled"      db:"rules_enabled"`
	AlertsOpen       int `json:"alerts_open"        db:"alerts_open"`
	AlertsPending    int `json:"alerts_pending"     db:"alerts_pending"`
	SilencesActive   int `json:"silences_active"    db:"silences_active"`
	TelemetryRows24h int `json:"telemetry_rows_24h" db:"telemetry_rows_24h"`
}
