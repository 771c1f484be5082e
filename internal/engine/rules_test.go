package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/fleetwatch/fleetwatch/pkg/types"
)

func snapshotWith(metrics map[string]float64) *domain.MetricSnapshot {
	return &domain.MetricSnapshot{
		TenantID: "acme",
		DeviceID: "dev-01",
		Metrics:  metrics,
	}
}

func ptr[T any](v T) *T { return &v }

func TestEvalRule_InstantThreshold(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		op           domain.Operator
		threshold    float64
		metrics      map[string]float64
		wantFired    bool
		wantDecisive bool
	}{
		{
			name: "GT fires above", op: domain.OpGT, threshold: 85,
			metrics: map[string]float64{"temp_c": 86}, wantFired: true, wantDecisive: true,
		},
		{
			name: "GT does not fire at equality", op: domain.OpGT, threshold: 85,
			metrics: map[string]float64{"temp_c": 85}, wantFired: false, wantDecisive: true,
		},
		{
			name: "GTE fires at equality", op: domain.OpGTE, threshold: 85,
			metrics: map[string]float64{"temp_c": 85}, wantFired: true, wantDecisive: true,
		},
		{
			name: "LT fires below", op: domain.OpLT, threshold: 10,
			metrics: map[string]float64{"temp_c": 9.9}, wantFired: true, wantDecisive: true,
		},
		{
			name: "LTE fires at equality", op: domain.OpLTE, threshold: 10,
			metrics: map[string]float64{"temp_c": 10}, wantFired: true, wantDecisive: true,
		},
		{
			name: "missing metric evaluates false", op: domain.OpGT, threshold: 85,
			metrics: map[string]float64{"humidity_pct": 50}, wantFired: false, wantDecisive: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rule := thresholdRule("acme", "temp_c", tt.op, tt.threshold)
			eng := NewEngine(&fakeStore{}, &fakeNotifier{}, WithLogger(testLogger()))

			result, err := eng.evalRule(context.Background(), "acme", &rule, snapshotWith(tt.metrics))
			require.NoError(t, err)
			assert.Equal(t, tt.wantFired, result.fired)
			assert.Equal(t, tt.wantDecisive, result.decisive)
		})
	}
}

func TestEvalRule_UnknownOperatorEvaluatesFalse(t *testing.T) {
	t.Parallel()

	rule := thresholdRule("acme", "temp_c", domain.Operator("BETWEEN"), 85)
	queried := false
	fs := &fakeStore{
		windowCounts: func(string, domain.Operator) (int, int, error) {
			queried = true
			return 0, 0, nil
		},
	}

	eng := NewEngine(fs, &fakeNotifier{}, WithLogger(testLogger()))
	result, err := eng.evalRule(context.Background(), "acme", &rule, snapshotWith(map[string]float64{"temp_c": 999}))
	require.NoError(t, err)
	assert.False(t, result.fired)
	assert.True(t, result.decisive)
	assert.False(t, queried, "unknown operator must not reach the store")
}

func TestEvalRule_WindowedThreshold(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		total     int
		matching  int
		wantFired bool
	}{
		{name: "held throughout fires", total: 4, matching: 4, wantFired: true},
		{name: "partial match does not fire", total: 4, matching: 3, wantFired: false},
		{name: "empty window does not fire", total: 0, matching: 0, wantFired: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rule := thresholdRule("acme", "temp_c", domain.OpGT, 85)
			rule.Conditions[0].DurationMinutes = 10

			fs := &fakeStore{
				windowCounts: func(string, domain.Operator) (int, int, error) {
					return tt.total, tt.matching, nil
				},
			}

			eng := NewEngine(fs, &fakeNotifier{}, WithLogger(testLogger()))
			result, err := eng.evalRule(context.Background(), "acme", &rule, snapshotWith(nil))
			require.NoError(t, err)
			assert.Equal(t, tt.wantFired, result.fired)
			assert.True(t, result.decisive)
		})
	}
}

func TestEvalRule_WindowedThresholdStoreError(t *testing.T) {
	t.Parallel()

	rule := thresholdRule("acme", "temp_c", domain.OpGT, 85)
	rule.Conditions[0].DurationMinutes = 10

	fs := &fakeStore{
		windowCounts: func(string, domain.Operator) (int, int, error) {
			return 0, 0, errors.New("query timeout")
		},
	}

	eng := NewEngine(fs, &fakeNotifier{}, WithLogger(testLogger()))
	_, err := eng.evalRule(context.Background(), "acme", &rule, snapshotWith(nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "query timeout")
}

func anomalyRule(metric string, zThreshold float64, minSamples int) domain.AlertRule {
	return domain.AlertRule{
		ID:        "rule-2",
		TenantID:  "acme",
		Name:      "anomaly rule",
		RuleType:  domain.AlertAnomaly,
		Enabled:   true,
		Severity:  "warning",
		MatchMode: domain.MatchAll,
		Conditions: []domain.RuleCondition{
			{
				Type:          domain.ConditionAnomaly,
				Metric:        metric,
				WindowMinutes: 60,
				ZThreshold:    zThreshold,
				MinSamples:    minSamples,
			},
		},
	}
}

func TestEvalRule_Anomaly(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		stats        *domain.RollingStats
		zThreshold   float64
		minSamples   int
		wantFired    bool
		wantDecisive bool
	}{
		{
			name:       "fires when z exceeds threshold",
			stats:      &domain.RollingStats{Mean: 50, StdDev: 5, Count: 20, Latest: ptr(70.0)},
			zThreshold: 3.0, minSamples: 10,
			wantFired: true, wantDecisive: true,
		},
		{
			name:       "fires on negative deviation",
			stats:      &domain.RollingStats{Mean: 50, StdDev: 5, Count: 20, Latest: ptr(30.0)},
			zThreshold: 3.0, minSamples: 10,
			wantFired: true, wantDecisive: true,
		},
		{
			name:       "z exactly at threshold does not fire",
			stats:      &domain.RollingStats{Mean: 50, StdDev: 5, Count: 20, Latest: ptr(65.0)},
			zThreshold: 3.0, minSamples: 10,
			wantFired: false, wantDecisive: true,
		},
		{
			name:       "too few samples is indecisive",
			stats:      &domain.RollingStats{Mean: 50, StdDev: 5, Count: 4, Latest: ptr(90.0)},
			zThreshold: 3.0, minSamples: 10,
			wantFired: false, wantDecisive: false,
		},
		{
			name:       "zero stddev is indecisive",
			stats:      &domain.RollingStats{Mean: 50, StdDev: 0, Count: 20, Latest: ptr(50.0)},
			zThreshold: 3.0, minSamples: 10,
			wantFired: false, wantDecisive: false,
		},
		{
			name:       "missing latest is indecisive",
			stats:      &domain.RollingStats{Mean: 50, StdDev: 5, Count: 20},
			zThreshold: 3.0, minSamples: 10,
			wantFired: false, wantDecisive: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rule := anomalyRule("rssi_dbm", tt.zThreshold, tt.minSamples)
			fs := &fakeStore{
				windowStats: func(string) (*domain.RollingStats, error) {
					return tt.stats, nil
				},
			}

			eng := NewEngine(fs, &fakeNotifier{}, WithLogger(testLogger()))
			result, err := eng.evalRule(context.Background(), "acme", &rule, snapshotWith(nil))
			require.NoError(t, err)
			assert.Equal(t, tt.wantFired, result.fired, "fired")
			assert.Equal(t, tt.wantDecisive, result.decisive, "decisive")

			if tt.wantFired {
				detail, ok := result.context["rssi_dbm"].(map[string]any)
				require.True(t, ok)
				assert.Contains(t, detail, "z_score")
				assert.Contains(t, detail, "mean")
				assert.Contains(t, detail, "stddev")
			}
		})
	}
}

func TestEvalRule_MatchModes(t *testing.T) {
	t.Parallel()

	conds := []domain.RuleCondition{
		{Type: domain.ConditionThreshold, Metric: "temp_c", Operator: domain.OpGT, Threshold: 85},
		{Type: domain.ConditionThreshold, Metric: "humidity_pct", Operator: domain.OpLT, Threshold: 20},
	}

	tests := []struct {
		name      string
		mode      domain.MatchMode
		metrics   map[string]float64
		wantFired bool
	}{
		{
			name: "all fires when every condition holds", mode: domain.MatchAll,
			metrics:   map[string]float64{"temp_c": 90, "humidity_pct": 10},
			wantFired: true,
		},
		{
			name: "all clears when one condition fails", mode: domain.MatchAll,
			metrics:   map[string]float64{"temp_c": 90, "humidity_pct": 50},
			wantFired: false,
		},
		{
			name: "any fires when one condition holds", mode: domain.MatchAny,
			metrics:   map[string]float64{"temp_c": 90, "humidity_pct": 50},
			wantFired: true,
		},
		{
			name: "any clears when no condition holds", mode: domain.MatchAny,
			metrics:   map[string]float64{"temp_c": 60, "humidity_pct": 50},
			wantFired: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rule := domain.AlertRule{
				ID: "rule-3", TenantID: "acme", Name: "multi", RuleType: domain.AlertThreshold,
				Enabled: true, Severity: "warning",
				MatchMode:  tt.mode,
				Conditions: conds,
			}

			eng := NewEngine(&fakeStore{}, &fakeNotifier{}, WithLogger(testLogger()))
			result, err := eng.evalRule(context.Background(), "acme", &rule, snapshotWith(tt.metrics))
			require.NoError(t, err)
			assert.Equal(t, tt.wantFired, result.fired)
			assert.True(t, result.decisive)
		})
	}
}

func TestEvalRule_AnyModeIndecisiveWithoutFire(t *testing.T) {
	t.Parallel()

	// One anomaly condition without enough samples, one threshold condition
	// that does not fire: under "any" the rule must not close.
	rule := domain.AlertRule{
		ID: "rule-4", TenantID: "acme", Name: "mixed", RuleType: domain.AlertAnomaly,
		Enabled: true, Severity: "warning",
		MatchMode: domain.MatchAny,
		Conditions: []domain.RuleCondition{
			{
				Type: domain.ConditionAnomaly, Metric: "rssi_dbm",
				WindowMinutes: 60, ZThreshold: 3.0, MinSamples: 10,
			},
			{Type: domain.ConditionThreshold, Metric: "temp_c", Operator: domain.OpGT, Threshold: 85},
		},
	}

	fs := &fakeStore{
		windowStats: func(string) (*domain.RollingStats, error) {
			return &domain.RollingStats{Count: 2}, nil
		},
	}

	eng := NewEngine(fs, &fakeNotifier{}, WithLogger(testLogger()))
	result, err := eng.evalRule(context.Background(), "acme", &rule, snapshotWith(map[string]float64{"temp_c": 60}))
	require.NoError(t, err)
	assert.False(t, result.fired)
	assert.False(t, result.decisive)
}

func TestBuildSnapshots(t *testing.T) {
	t.Parallel()

	rows := []domain.TelemetryEnvelope{
		{
			TenantID: "acme", DeviceID: "dev-01", SiteID: "site-a",
			Metrics: map[string]any{
				"temp_c":    22.5,
				"online":    true,
				"firmware":  "v1.2.3", // strings are not metrics
				"device_id": 42.0,     // identity fields are excluded even when numeric
				"note":      nil,
			},
		},
		{
			TenantID: "acme", DeviceID: "dev-02",
			Metrics: map[string]any{"fan_on": false},
		},
	}

	snaps := BuildSnapshots(rows)
	require.Len(t, snaps, 2)

	d1 := snaps["dev-01"]
	require.NotNil(t, d1)
	assert.Equal(t, "site-a", d1.SiteID)
	assert.Equal(t, map[string]float64{"temp_c": 22.5, "online": 1.0}, d1.Metrics)

	d2 := snaps["dev-02"]
	require.NotNil(t, d2)
	assert.Equal(t, map[string]float64{"fan_on": 0.0}, d2.Metrics)
}
