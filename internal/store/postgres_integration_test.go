//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/fleetwatch/fleetwatch/internal/store"
	domain "github.com/fleetwatch/fleetwatch/pkg/types"
)

func setupPostgres(t *testing.T) *store.PostgresStore {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("fleetwatch_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, pgContainer.Terminate(ctx))
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	s, err := store.NewPostgresStore(ctx, connStr)
	require.NoError(t, err)

	t.Cleanup(func() {
		s.Close()
	})

	require.NoError(t, s.Migrate(ctx))

	return s
}

func testEnvelope(device string, at time.Time, seq int64, metrics map[string]any) domain.TelemetryEnvelope {
	return domain.TelemetryEnvelope{
		TenantID: "t1",
		DeviceID: device,
		SiteID:   "site-a",
		Seq:      seq,
		Time:     at,
		Metrics:  metrics,
	}
}

func TestPostgresStore_Ping(t *testing.T) {
	s := setupPostgres(t)
	require.NoError(t, s.Ping(context.Background()))
}

func TestPostgresStore_TenantsAndDevices(t *testing.T) {
	s := setupPostgres(t)
	ctx := context.Background()

	require.NoError(t, s.EnsureTenant(ctx, "t1"))
	require.NoError(t, s.EnsureTenant(ctx, "t2"))
	// Idempotent.
	require.NoError(t, s.EnsureTenant(ctx, "t1"))

	ids, err := s.ListTenantIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"t1", "t2"}, ids)

	now := time.Now().Truncate(time.Microsecond)
	require.NoError(t, s.EnsureDevice(ctx, "t1", "dev-01", "site-a", now))

	// A replayed older report must not move last_seen_at backwards.
	require.NoError(t, s.EnsureDevice(ctx, "t1", "dev-01", "site-a", now.Add(-time.Hour)))

	stale, err := s.ListStaleDevices(ctx, "t1", now.Add(time.Second))
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, "dev-01", stale[0].DeviceID)
	require.NotNil(t, stale[0].LastSeenAt)
	assert.Equal(t, now, *stale[0].LastSeenAt)

	// Fresh cutoff finds nothing.
	stale, err = s.ListStaleDevices(ctx, "t1", now.Add(-time.Minute))
	require.NoError(t, err)
	assert.Empty(t, stale)
}

func TestPostgresStore_TelemetryIngestAndLatest(t *testing.T) {
	s := setupPostgres(t)
	ctx := context.Background()

	require.NoError(t, s.EnsureTenant(ctx, "t1"))

	now := time.Now().Truncate(time.Microsecond)
	batch := []domain.TelemetryEnvelope{
		testEnvelope("dev-01", now.Add(-2*time.Minute), 1, map[string]any{"temp_c": 21.0}),
		testEnvelope("dev-01", now.Add(-time.Minute), 2, map[string]any{"temp_c": 22.5}),
		testEnvelope("dev-02", now.Add(-time.Minute), 1, map[string]any{"temp_c": 30.0, "online": true}),
	}

	inserted, err := s.InsertTelemetryBatch(ctx, batch)
	require.NoError(t, err)
	assert.Equal(t, 3, inserted)

	// Redelivery dedupes by (tenant, device, seq).
	inserted, err = s.InsertTelemetryBatch(ctx, batch)
	require.NoError(t, err)
	assert.Equal(t, 0, inserted)

	latest, err := s.LatestTelemetry(ctx, "t1", time.Hour)
	require.NoError(t, err)
	require.Len(t, latest, 2)

	byDevice := map[string]domain.TelemetryEnvelope{}
	for _, e := range latest {
		byDevice[e.DeviceID] = e
	}
	assert.InDelta(t, 22.5, byDevice["dev-01"].Metrics["temp_c"], 0.001)
	assert.Equal(t, true, byDevice["dev-02"].Metrics["online"])

	// Lookback excludes old rows.
	latest, err = s.LatestTelemetry(ctx, "t1", 30*time.Second)
	require.NoError(t, err)
	assert.Empty(t, latest)
}

func TestPostgresStore_WindowCounts(t *testing.T) {
	s := setupPostgres(t)
	ctx := context.Background()

	require.NoError(t, s.EnsureTenant(ctx, "t1"))

	now := time.Now().Truncate(time.Microsecond)
	batch := []domain.TelemetryEnvelope{
		testEnvelope("dev-01", now.Add(-4*time.Minute), 1, map[string]any{"temp_c": 86.0}),
		testEnvelope("dev-01", now.Add(-3*time.Minute), 2, map[string]any{"temp_c": 87.0}),
		testEnvelope("dev-01", now.Add(-2*time.Minute), 3, map[string]any{"temp_c": 84.0}),
		// Non-numeric sample never enters the window.
		testEnvelope("dev-01", now.Add(-time.Minute), 4, map[string]any{"temp_c": "hot"}),
	}
	_, err := s.InsertTelemetryBatch(ctx, batch)
	require.NoError(t, err)

	total, matching, err := s.WindowCounts(ctx, "t1", "dev-01", "temp_c", domain.OpGT, 85.0, 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Equal(t, 2, matching)

	// Unknown metric yields an empty window.
	total, matching, err = s.WindowCounts(ctx, "t1", "dev-01", "humidity_pct", domain.OpGT, 10.0, 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 0, total)
	assert.Equal(t, 0, matching)

	// Unsupported operator is rejected before any query.
	_, _, err = s.WindowCounts(ctx, "t1", "dev-01", "temp_c", domain.Operator("EQ"), 85.0, 10*time.Minute)
	require.Error(t, err)
}

func TestPostgresStore_MetricWindowStats(t *testing.T) {
	s := setupPostgres(t)
	ctx := context.Background()

	require.NoError(t, s.EnsureTenant(ctx, "t1"))

	now := time.Now().Truncate(time.Microsecond)
	batch := []domain.TelemetryEnvelope{
		testEnvelope("dev-01", now.Add(-3*time.Minute), 1, map[string]any{"rssi_dbm": -70.0}),
		testEnvelope("dev-01", now.Add(-2*time.Minute), 2, map[string]any{"rssi_dbm": -72.0}),
		testEnvelope("dev-01", now.Add(-time.Minute), 3, map[string]any{"rssi_dbm": -71.0}),
	}
	_, err := s.InsertTelemetryBatch(ctx, batch)
	require.NoError(t, err)

	stats, err := s.MetricWindowStats(ctx, "t1", "dev-01", "rssi_dbm", 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Count)
	assert.InDelta(t, -71.0, stats.Mean, 0.001)
	assert.Greater(t, stats.StdDev, 0.0)
	require.NotNil(t, stats.Latest)
	assert.InDelta(t, -71.0, *stats.Latest, 0.001)

	// Empty window: zero count, nil latest.
	stats, err = s.MetricWindowStats(ctx, "t1", "dev-01", "missing_metric", 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Count)
	assert.Nil(t, stats.Latest)
}

func TestPostgresStore_AlertLifecycle(t *testing.T) {
	s := setupPostgres(t)
	ctx := context.Background()

	require.NoError(t, s.EnsureTenant(ctx, "t1"))

	fp := domain.Fingerprint(domain.AlertThreshold, "dev-01", "temp_c")
	a := &domain.Alert{
		TenantID:    "t1",
		Fingerprint: fp,
		AlertType:   domain.AlertThreshold,
		DeviceID:    "dev-01",
		MetricName:  "temp_c",
		Severity:    "warning",
		Message:     "temp_c above 85",
		Context:     map[string]any{"value": 86.5, "threshold": 85.0},
	}

	opened, err := s.OpenOrUpdateAlert(ctx, a)
	require.NoError(t, err)
	assert.True(t, opened)
	assert.NotEmpty(t, a.ID)
	firstID := a.ID
	firstOpened := a.OpenedAt

	// Re-detection refreshes the open row instead of duplicating it.
	a2 := *a
	a2.Message = "temp_c above 85 (still)"
	opened, err = s.OpenOrUpdateAlert(ctx, &a2)
	require.NoError(t, err)
	assert.False(t, opened)
	assert.Equal(t, firstID, a2.ID)
	assert.Equal(t, firstOpened, a2.OpenedAt)
	assert.True(t, a2.LastSeenAt.After(firstOpened) || a2.LastSeenAt.Equal(firstOpened))

	pending, err := s.ListPendingAlerts(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "temp_c above 85 (still)", pending[0].Message)
	assert.InDelta(t, 86.5, pending[0].Context["value"].(float64), 0.001)

	require.NoError(t, s.MarkAlertsNotified(ctx, []string{firstID}))
	pending, err = s.ListPendingAlerts(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	// Close, then the next detection opens a new row.
	closed, err := s.CloseAlert(ctx, "t1", fp)
	require.NoError(t, err)
	assert.True(t, closed)

	closed, err = s.CloseAlert(ctx, "t1", fp)
	require.NoError(t, err)
	assert.False(t, closed)

	a3 := *a
	opened, err = s.OpenOrUpdateAlert(ctx, &a3)
	require.NoError(t, err)
	assert.True(t, opened)
	assert.NotEqual(t, firstID, a3.ID)
}

func TestPostgresStore_ListAlerts_TenantIsolation(t *testing.T) {
	s := setupPostgres(t)
	ctx := context.Background()

	require.NoError(t, s.EnsureTenant(ctx, "t1"))
	require.NoError(t, s.EnsureTenant(ctx, "t2"))

	for _, tenant := range []string{"t1", "t2"} {
		a := &domain.Alert{
			TenantID:    tenant,
			Fingerprint: domain.Fingerprint(domain.AlertThreshold, "dev-01", "temp_c"),
			AlertType:   domain.AlertThreshold,
			DeviceID:    "dev-01",
			MetricName:  "temp_c",
			Severity:    "warning",
			Message:     "hot",
		}
		_, err := s.OpenOrUpdateAlert(ctx, a)
		require.NoError(t, err)
	}

	alerts, total, err := s.ListAlerts(ctx, &store.AlertQuery{TenantID: "t1"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, alerts, 1)
	assert.Equal(t, "t1", alerts[0].TenantID)

	got, err := s.GetAlert(ctx, "t1", alerts[0].ID)
	require.NoError(t, err)
	assert.Equal(t, alerts[0].ID, got.ID)

	// Cross-tenant lookup by ID fails.
	_, err = s.GetAlert(ctx, "t2", alerts[0].ID)
	assert.Error(t, err)
}

func TestPostgresStore_CloseRecoveredHeartbeatAlerts(t *testing.T) {
	s := setupPostgres(t)
	ctx := context.Background()

	require.NoError(t, s.EnsureTenant(ctx, "t1"))
	now := time.Now().Truncate(time.Microsecond)
	require.NoError(t, s.EnsureDevice(ctx, "t1", "dev-01", "", now))
	require.NoError(t, s.EnsureDevice(ctx, "t1", "dev-02", "", now.Add(-time.Hour)))

	for _, dev := range []string{"dev-01", "dev-02"} {
		a := &domain.Alert{
			TenantID:    "t1",
			Fingerprint: domain.Fingerprint(domain.AlertNoHeartbeat, dev, ""),
			AlertType:   domain.AlertNoHeartbeat,
			DeviceID:    dev,
			Severity:    "critical",
			Message:     "no heartbeat",
		}
		_, err := s.OpenOrUpdateAlert(ctx, a)
		require.NoError(t, err)
	}

	// dev-01 reported recently, its alert closes; dev-02 stays open.
	closed, err := s.CloseRecoveredHeartbeatAlerts(ctx, "t1", now.Add(-5*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, closed)

	open := "OPEN"
	alerts, _, err := s.ListAlerts(ctx, &store.AlertQuery{TenantID: "t1", Status: &open})
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, "dev-02", alerts[0].DeviceID)
}

func TestPostgresStore_Silences(t *testing.T) {
	s := setupPostgres(t)
	ctx := context.Background()

	require.NoError(t, s.EnsureTenant(ctx, "t1"))

	now := time.Now()
	_, err := s.Pool().Exec(ctx, `
		INSERT INTO silences (tenant_id, device_id, reason, starts_at, ends_at)
		VALUES ('t1', 'dev-01', 'maintenance', $1, $2),
		       ('t1', 'dev-02', 'expired', $3, $4)`,
		now.Add(-time.Hour), now.Add(time.Hour),
		now.Add(-2*time.Hour), now.Add(-time.Hour),
	)
	require.NoError(t, err)

	silences, err := s.ListActiveSilences(ctx, "t1", now)
	require.NoError(t, err)
	require.Len(t, silences, 1)
	assert.Equal(t, "dev-01", silences[0].DeviceID)
	assert.Equal(t, "maintenance", silences[0].Reason)
}

func TestPostgresStore_Rules(t *testing.T) {
	s := setupPostgres(t)
	ctx := context.Background()

	require.NoError(t, s.EnsureTenant(ctx, "t1"))

	// One multi-condition rule and one legacy single-condition row.
	_, err := s.Pool().Exec(ctx, `
		INSERT INTO alert_rules (tenant_id, name, rule_type, enabled, match_mode, conditions)
		VALUES ('t1', 'hot and dry', 'THRESHOLD', true, 'all',
			'[{"type":"threshold","metric":"temp_c","operator":"GT","threshold":85},
			  {"type":"threshold","metric":"humidity_pct","operator":"LT","threshold":20}]')`)
	require.NoError(t, err)

	_, err = s.Pool().Exec(ctx, `
		INSERT INTO alert_rules (tenant_id, name, rule_type, enabled, metric_name, operator, threshold)
		VALUES ('t1', 'legacy hot', 'THRESHOLD', false, 'temp_c', 'GT', 90)`)
	require.NoError(t, err)

	rules, err := s.ListRules(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, rules, 2)

	enabled, err := s.ListEnabledRules(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, enabled, 1)
	assert.Equal(t, "hot and dry", enabled[0].Name)
	require.Len(t, enabled[0].Conditions, 2)
	assert.Equal(t, domain.MatchAll, enabled[0].MatchMode)

	// The legacy row is normalized at load.
	var legacy *domain.AlertRule
	for i := range rules {
		if rules[i].Name == "legacy hot" {
			legacy = &rules[i]
		}
	}
	require.NotNil(t, legacy)
	require.Len(t, legacy.Conditions, 1)
	assert.Equal(t, domain.ConditionThreshold, legacy.Conditions[0].Type)
	assert.Equal(t, "temp_c", legacy.Conditions[0].Metric)
	assert.Equal(t, domain.OpGT, legacy.Conditions[0].Operator)
	assert.InDelta(t, 90.0, legacy.Conditions[0].Threshold, 0.001)

	got, err := s.GetRule(ctx, "t1", enabled[0].ID)
	require.NoError(t, err)
	assert.Equal(t, enabled[0].ID, got.ID)
}

func TestPostgresStore_JobRuns(t *testing.T) {
	s := setupPostgres(t)
	ctx := context.Background()

	id, err := s.InsertJobRun(ctx, "heartbeat_sweep")
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	require.NoError(t, s.CompleteJobRun(ctx, id, "success", "", 3))

	runs, err := s.ListJobRuns(ctx, "heartbeat_sweep", 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "success", runs[0].Status)
	require.NotNil(t, runs[0].RowsAffected)
	assert.Equal(t, 3, *runs[0].RowsAffected)

	latest, err := s.ListLatestJobRuns(ctx)
	require.NoError(t, err)
	assert.Len(t, latest, 1)
}

func TestPostgresStore_GetSystemState(t *testing.T) {
	s := setupPostgres(t)
	ctx := context.Background()

	require.NoError(t, s.EnsureTenant(ctx, "t1"))
	require.NoError(t, s.EnsureDevice(ctx, "t1", "dev-01", "", time.Now()))

	st, err := s.GetSystemState(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, st.TenantsTotal)
	assert.Equal(t, 1, st.DevicesTotal)
	assert.Equal(t, 0, st.AlertsOpen)
}
