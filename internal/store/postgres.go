package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	domain "github.com/fleetwatch/fleetwatch/pkg/types"
)

const (
	defaultPoolSize     = 10
	defaultQueryTimeout = 5 * time.Second
)

// PostgresStore implements Store using pgxpool (connection-pooled PostgreSQL).
// Every query runs under a per-query timeout so one slow statement cannot
// stall a whole evaluation pass.
//
// TODO(test): PostgresStore methods require live Postgres, tested via integration tests.
type PostgresStore struct {
	pool         *pgxpool.Pool
	queryTimeout time.Duration
}

// Option configures a PostgresStore.
type Option func(*options)

type options struct {
	poolSize     int32
	queryTimeout time.Duration
}

// WithPoolSize sets the maximum number of pooled connections.
func WithPoolSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.poolSize = int32(n)
		}
	}
}

// WithQueryTimeout sets the per-query timeout.
func WithQueryTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.queryTimeout = d
		}
	}
}

// NewPostgresStore creates a new PostgresStore with connection pooling.
func NewPostgresStore(ctx context.Context, connString string, opts ...Option) (*PostgresStore, error) {
	o := &options{
		poolSize:     defaultPoolSize,
		queryTimeout: defaultQueryTimeout,
	}
	for _, opt := range opts {
		opt(o)
	}

	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	cfg.MaxConns = o.poolSize

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &PostgresStore{pool: pool, queryTimeout: o.queryTimeout}, nil
}

// Close gracefully shuts down the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Pool exposes the underlying connection pool.
func (s *PostgresStore) Pool() *pgxpool.Pool {
	return s.pool
}

// Ping verifies the database connection is alive.
func (s *PostgresStore) Ping(ctx context.Context) error {
	ctx, cancel := s.queryCtx(ctx)
	defer cancel()
	return s.pool.Ping(ctx)
}

// Migrate applies pending SQL schema migrations.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	return RunMigrations(ctx, s.pool)
}

func (s *PostgresStore) queryCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.queryTimeout)
}

// EnsureTenant registers a tenant if it does not exist yet.
func (s *PostgresStore) EnsureTenant(ctx context.Context, tenantID string) error {
	ctx, cancel := s.queryCtx(ctx)
	defer cancel()

	if _, err := s.pool.Exec(ctx, queryEnsureTenant, tenantID); err != nil {
		return fmt.Errorf("ensuring tenant %s: %w", tenantID, err)
	}
	return nil
}

// ListTenantIDs returns all registered tenant IDs.
func (s *PostgresStore) ListTenantIDs(ctx context.Context) ([]string, error) {
	ctx, cancel := s.queryCtx(ctx)
	defer cancel()

	rows, err := s.pool.Query(ctx, queryListTenantIDs)
	if err != nil {
		return nil, fmt.Errorf("querying tenants: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning tenant id: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

// EnsureDevice registers a device and advances its last_seen_at. A stale
// seenAt from a replayed message never moves last_seen_at backwards.
func (s *PostgresStore) EnsureDevice(
	ctx context.Context,
	tenantID, deviceID, siteID string,
	seenAt time.Time,
) error {
	ctx, cancel := s.queryCtx(ctx)
	defer cancel()

	if _, err := s.pool.Exec(ctx, queryEnsureDevice, tenantID, deviceID, siteID, seenAt); err != nil {
		return fmt.Errorf("ensuring device %s/%s: %w", tenantID, deviceID, err)
	}
	return nil
}

// ListStaleDevices returns devices whose last report predates cutoff.
func (s *PostgresStore) ListStaleDevices(
	ctx context.Context,
	tenantID string,
	cutoff time.Time,
) ([]domain.Device, error) {
	ctx, cancel := s.queryCtx(ctx)
	defer cancel()

	rows, err := s.pool.Query(ctx, queryListStaleDevices, tenantID, cutoff)
	if err != nil {
		return nil, fmt.Errorf("querying stale devices: %w", err)
	}
	defer rows.Close()

	var devices []domain.Device
	for rows.Next() {
		var d domain.Device
		if err := rows.Scan(&d.TenantID, &d.DeviceID, &d.SiteID, &d.LastSeenAt, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning device: %w", err)
		}
		devices = append(devices, d)
	}

	return devices, rows.Err()
}

// ListActiveSilences returns silences covering the given instant.
func (s *PostgresStore) ListActiveSilences(
	ctx context.Context,
	tenantID string,
	at time.Time,
) ([]domain.Silence, error) {
	ctx, cancel := s.queryCtx(ctx)
	defer cancel()

	rows, err := s.pool.Query(ctx, queryListActiveSilences, tenantID, at)
	if err != nil {
		return nil, fmt.Errorf("querying silences: %w", err)
	}
	defer rows.Close()

	var silences []domain.Silence
	for rows.Next() {
		var sil domain.Silence
		if err := rows.Scan(
			&sil.ID, &sil.TenantID, &sil.DeviceID, &sil.Reason,
			&sil.StartsAt, &sil.EndsAt, &sil.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning silence: %w", err)
		}
		silences = append(silences, sil)
	}

	return silences, rows.Err()
}

// ListRules returns all rules for a tenant, normalized to multi-condition form.
func (s *PostgresStore) ListRules(ctx context.Context, tenantID string) ([]domain.AlertRule, error) {
	return s.queryRules(ctx, queryListRules, tenantID)
}

// ListEnabledRules returns the tenant's enabled rules, normalized.
func (s *PostgresStore) ListEnabledRules(ctx context.Context, tenantID string) ([]domain.AlertRule, error) {
	return s.queryRules(ctx, queryListEnabledRules, tenantID)
}

// GetRule retrieves one rule scoped to a tenant.
func (s *PostgresStore) GetRule(ctx context.Context, tenantID, id string) (*domain.AlertRule, error) {
	ctx, cancel := s.queryCtx(ctx)
	defer cancel()

	r, err := scanRule(s.pool.QueryRow(ctx, queryGetRule, tenantID, id))
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (s *PostgresStore) queryRules(
	ctx context.Context,
	query string,
	tenantID string,
) ([]domain.AlertRule, error) {
	ctx, cancel := s.queryCtx(ctx)
	defer cancel()

	rows, err := s.pool.Query(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("querying rules: %w", err)
	}
	defer rows.Close()

	var rules []domain.AlertRule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, *r)
	}

	return rules, rows.Err()
}

func scanRule(row scannable) (*domain.AlertRule, error) {
	r := &domain.AlertRule{}
	var conditionsJSON []byte

	if err := row.Scan(
		&r.ID, &r.TenantID, &r.Name, &r.RuleType, &r.Enabled, &r.Severity, &r.MatchMode,
		&conditionsJSON,
		&r.LegacyMetric, &r.LegacyOperator, &r.LegacyThreshold,
		&r.LegacyDuration, &r.LegacyWindow, &r.LegacyZThreshold, &r.LegacyMinSamples,
		&r.CreatedAt, &r.UpdatedAt,
	); err != nil {
		return nil, err
	}

	if err := json.Unmarshal(conditionsJSON, &r.Conditions); err != nil {
		return nil, fmt.Errorf("unmarshaling rule conditions: %w", err)
	}

	// Legacy single-condition rows fold into Conditions at load time.
	r.Normalize()

	return r, nil
}

// InsertTelemetryBatch writes telemetry rows, skipping duplicates by
// (tenant, device, seq). Returns the number of rows actually inserted.
func (s *PostgresStore) InsertTelemetryBatch(
	ctx context.Context,
	rows []domain.TelemetryEnvelope,
) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	ctx, cancel := s.queryCtx(ctx)
	defer cancel()

	batch := &pgx.Batch{}
	for i := range rows {
		e := &rows[i]
		metricsJSON, err := json.Marshal(e.Metrics)
		if err != nil {
			return 0, fmt.Errorf("marshaling metrics for %s/%s: %w", e.TenantID, e.DeviceID, err)
		}
		batch.Queue(queryInsertTelemetry, e.Time, e.TenantID, e.DeviceID, e.SiteID, e.Seq, metricsJSON)
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()

	inserted := 0
	for range rows {
		tag, err := results.Exec()
		if err != nil {
			return inserted, fmt.Errorf("inserting telemetry: %w", err)
		}
		inserted += int(tag.RowsAffected())
	}

	return inserted, nil
}

// NotifyTelemetry emits a database notification on the given channel with the
// tenant ID as payload.
func (s *PostgresStore) NotifyTelemetry(ctx context.Context, channel, tenantID string) error {
	ctx, cancel := s.queryCtx(ctx)
	defer cancel()

	if _, err := s.pool.Exec(ctx, "SELECT pg_notify($1, $2)", channel, tenantID); err != nil {
		return fmt.Errorf("notifying channel %s: %w", channel, err)
	}
	return nil
}

// LatestTelemetry returns the most recent telemetry row per device within the
// lookback window.
func (s *PostgresStore) LatestTelemetry(
	ctx context.Context,
	tenantID string,
	lookback time.Duration,
) ([]domain.TelemetryEnvelope, error) {
	ctx, cancel := s.queryCtx(ctx)
	defer cancel()

	cutoff := time.Now().Add(-lookback)
	rows, err := s.pool.Query(ctx, queryLatestTelemetry, tenantID, cutoff)
	if err != nil {
		return nil, fmt.Errorf("querying latest telemetry: %w", err)
	}
	defer rows.Close()

	var envelopes []domain.TelemetryEnvelope
	for rows.Next() {
		var e domain.TelemetryEnvelope
		var metricsJSON []byte
		if err := rows.Scan(&e.TenantID, &e.DeviceID, &e.SiteID, &e.Seq, &e.Time, &metricsJSON); err != nil {
			return nil, fmt.Errorf("scanning telemetry: %w", err)
		}
		if err := json.Unmarshal(metricsJSON, &e.Metrics); err != nil {
			return nil, fmt.Errorf("unmarshaling metrics: %w", err)
		}
		envelopes = append(envelopes, e)
	}

	return envelopes, rows.Err()
}

// WindowCounts returns how many samples of a metric fall in the window and how
// many of them satisfy the comparison. Non-numeric samples are excluded from
// both counts.
func (s *PostgresStore) WindowCounts(
	ctx context.Context,
	tenantID, deviceID, metric string,
	op domain.Operator,
	threshold float64,
	window time.Duration,
) (int, int, error) {
	var query string
	switch op {
	case domain.OpGT:
		query = queryWindowCountsGT
	case domain.OpGTE:
		query = queryWindowCountsGTE
	case domain.OpLT:
		query = queryWindowCountsLT
	case domain.OpLTE:
		query = queryWindowCountsLTE
	default:
		return 0, 0, fmt.Errorf("unsupported operator %q", op)
	}

	ctx, cancel := s.queryCtx(ctx)
	defer cancel()

	cutoff := time.Now().Add(-window)
	var total, matching int
	err := s.pool.QueryRow(ctx, query, tenantID, deviceID, metric, threshold, cutoff).
		Scan(&total, &matching)
	if err != nil {
		return 0, 0, fmt.Errorf("counting window samples: %w", err)
	}

	return total, matching, nil
}

// MetricWindowStats returns rolling aggregates for one device metric over the
// window. Latest is nil when the window holds no numeric samples.
func (s *PostgresStore) MetricWindowStats(
	ctx context.Context,
	tenantID, deviceID, metric string,
	window time.Duration,
) (*domain.RollingStats, error) {
	ctx, cancel := s.queryCtx(ctx)
	defer cancel()

	cutoff := time.Now().Add(-window)
	stats := &domain.RollingStats{}
	err := s.pool.QueryRow(ctx, queryMetricWindowStats, tenantID, deviceID, metric, cutoff).
		Scan(&stats.Count, &stats.Mean, &stats.StdDev, &stats.Latest)
	if err != nil {
		return nil, fmt.Errorf("querying window stats: %w", err)
	}

	return stats, nil
}

// OpenOrUpdateAlert inserts an alert or, when an open alert with the same
// fingerprint exists, refreshes it. Returns true when a new row was opened.
func (s *PostgresStore) OpenOrUpdateAlert(ctx context.Context, a *domain.Alert) (bool, error) {
	ctx, cancel := s.queryCtx(ctx)
	defer cancel()

	contextJSON, err := json.Marshal(a.Context)
	if err != nil {
		return false, fmt.Errorf("marshaling alert context: %w", err)
	}

	var ruleID *string
	if a.RuleID != "" {
		ruleID = &a.RuleID
	}

	args := pgx.NamedArgs{
		"tenant_id":   a.TenantID,
		"fingerprint": a.Fingerprint,
		"alert_type":  string(a.AlertType),
		"device_id":   a.DeviceID,
		"metric_name": a.MetricName,
		"rule_id":     ruleID,
		"severity":    a.Severity,
		"message":     a.Message,
		"context":     contextJSON,
	}

	var opened bool
	err = s.pool.QueryRow(ctx, queryOpenOrUpdateAlert, args).
		Scan(&a.ID, &a.OpenedAt, &a.LastSeenAt, &opened)
	if err != nil {
		return false, fmt.Errorf("opening alert: %w", err)
	}

	a.Status = domain.StatusOpen
	return opened, nil
}

// CloseAlert closes the open alert with the given fingerprint. Returns false
// when no open alert matched.
func (s *PostgresStore) CloseAlert(ctx context.Context, tenantID, fingerprint string) (bool, error) {
	ctx, cancel := s.queryCtx(ctx)
	defer cancel()

	tag, err := s.pool.Exec(ctx, queryCloseAlert, tenantID, fingerprint)
	if err != nil {
		return false, fmt.Errorf("closing alert: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

// CloseRecoveredHeartbeatAlerts closes open heartbeat alerts for devices that
// have reported since cutoff. Returns the number of alerts closed.
func (s *PostgresStore) CloseRecoveredHeartbeatAlerts(
	ctx context.Context,
	tenantID string,
	cutoff time.Time,
) (int, error) {
	ctx, cancel := s.queryCtx(ctx)
	defer cancel()

	tag, err := s.pool.Exec(ctx, queryCloseRecoveredHeartbeatAlerts, tenantID, cutoff)
	if err != nil {
		return 0, fmt.Errorf("closing recovered heartbeat alerts: %w", err)
	}

	return int(tag.RowsAffected()), nil
}

// ListAlerts queries alerts with optional filters, returning results and total count.
func (s *PostgresStore) ListAlerts(
	ctx context.Context,
	opts *AlertQuery,
) ([]domain.Alert, int, error) {
	ctx, cancel := s.queryCtx(ctx)
	defer cancel()

	dataSQL, countSQL, args := opts.ToSQL()

	var total int
	if err := s.pool.QueryRow(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting alerts: %w", err)
	}

	alerts, err := s.queryAlerts(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, err
	}

	return alerts, total, nil
}

// GetAlert retrieves one alert scoped to a tenant.
func (s *PostgresStore) GetAlert(ctx context.Context, tenantID, id string) (*domain.Alert, error) {
	ctx, cancel := s.queryCtx(ctx)
	defer cancel()

	a := &domain.Alert{}
	if err := scanAlert(s.pool.QueryRow(ctx, queryGetAlert, tenantID, id), a); err != nil {
		return nil, err
	}
	return a, nil
}

// ListPendingAlerts returns open alerts that have not been notified yet.
func (s *PostgresStore) ListPendingAlerts(ctx context.Context) ([]domain.Alert, error) {
	ctx, cancel := s.queryCtx(ctx)
	defer cancel()

	return s.queryAlerts(ctx, queryListPendingAlerts)
}

// MarkAlertsNotified marks multiple alerts as notified.
func (s *PostgresStore) MarkAlertsNotified(ctx context.Context, ids []string) error {
	ctx, cancel := s.queryCtx(ctx)
	defer cancel()

	if _, err := s.pool.Exec(ctx, queryMarkAlertsNotified, ids); err != nil {
		return fmt.Errorf("marking alerts notified: %w", err)
	}
	return nil
}

// GetSystemState returns aggregate counts across all tenants.
func (s *PostgresStore) GetSystemState(ctx context.Context) (*domain.SystemState, error) {
	ctx, cancel := s.queryCtx(ctx)
	defer cancel()

	st := &domain.SystemState{}
	err := s.pool.QueryRow(ctx, queryGetSystemState).Scan(
		&st.TenantsTotal, &st.DevicesTotal, &st.DevicesStale,
		&st.RulesTotal, &st.RulesEnabled,
		&st.AlertsOpen, &st.AlertsPending,
		&st.SilencesActive, &st.TelemetryRows24h,
	)
	if err != nil {
		return nil, fmt.Errorf("querying system state: %w", err)
	}

	return st, nil
}

// InsertJobRun records the start of a scheduled job and returns its UUID.
func (s *PostgresStore) InsertJobRun(ctx context.Context, jobName string) (string, error) {
	ctx, cancel := s.queryCtx(ctx)
	defer cancel()

	var id string
	if err := s.pool.QueryRow(ctx, queryInsertJobRun, jobName).Scan(&id); err != nil {
		return "", fmt.Errorf("inserting job run: %w", err)
	}
	return id, nil
}

// CompleteJobRun marks a job run as finished with the given status and metadata.
func (s *PostgresStore) CompleteJobRun(
	ctx context.Context,
	id string,
	status string,
	errText string,
	rowsAffected int,
) error {
	ctx, cancel := s.queryCtx(ctx)
	defer cancel()

	_, err := s.pool.Exec(ctx, queryCompleteJobRun, id, status, errText, rowsAffected)
	if err != nil {
		return fmt.Errorf("completing job run: %w", err)
	}
	return nil
}

// ListJobRuns returns the most recent runs for a specific job, newest first.
func (s *PostgresStore) ListJobRuns(
	ctx context.Context,
	jobName string,
	limit int,
) ([]domain.JobRun, error) {
	ctx, cancel := s.queryCtx(ctx)
	defer cancel()

	rows, err := s.pool.Query(ctx, queryListJobRuns, jobName, limit)
	if err != nil {
		return nil, fmt.Errorf("querying job runs: %w", err)
	}
	defer rows.Close()

	return scanJobRuns(rows)
}

// ListLatestJobRuns returns the single most recent run for each distinct job name.
func (s *PostgresStore) ListLatestJobRuns(ctx context.Context) ([]domain.JobRun, error) {
	ctx, cancel := s.queryCtx(ctx)
	defer cancel()

	rows, err := s.pool.Query(ctx, queryListLatestJobRuns)
	if err != nil {
		return nil, fmt.Errorf("querying latest job runs: %w", err)
	}
	defer rows.Close()

	return scanJobRuns(rows)
}

// RecoverStaleJobRuns marks any 'running' job rows older than olderThan as 'crashed',
// then deletes all rows older than 30 days. Returns the number of rows marked as crashed.
func (s *PostgresStore) RecoverStaleJobRuns(
	ctx context.Context,
	olderThan time.Duration,
) (int, error) {
	ctx, cancel := s.queryCtx(ctx)
	defer cancel()

	cutoff := time.Now().Add(-olderThan)

	tag, err := s.pool.Exec(ctx, queryMarkStaleJobRunsCrashed, cutoff)
	if err != nil {
		return 0, fmt.Errorf("marking stale job runs crashed: %w", err)
	}
	affected := int(tag.RowsAffected())

	if _, err := s.pool.Exec(ctx, queryDeleteOldJobRuns); err != nil {
		return affected, fmt.Errorf("deleting old job runs: %w", err)
	}

	return affected, nil
}

// scanJobRuns scans rows from a job_runs query into a slice.
func scanJobRuns(rows pgx.Rows) ([]domain.JobRun, error) {
	var runs []domain.JobRun
	for rows.Next() {
		var r domain.JobRun
		if err := rows.Scan(
			&r.ID, &r.JobName, &r.StartedAt, &r.CompletedAt,
			&r.Status, &r.ErrorText, &r.RowsAffected,
		); err != nil {
			return nil, fmt.Errorf("scanning job run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// queryAlerts is a helper for alert queries.
func (s *PostgresStore) queryAlerts(
	ctx context.Context,
	query string,
	args ...any,
) ([]domain.Alert, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying alerts: %w", err)
	}
	defer rows.Close()

	var alerts []domain.Alert
	for rows.Next() {
		var a domain.Alert
		if err := scanAlert(rows, &a); err != nil {
			return nil, fmt.Errorf("scanning alert: %w", err)
		}
		alerts = append(alerts, a)
	}

	return alerts, rows.Err()
}

// scannable abstracts pgx.Row and pgx.Rows for reuse.
type scannable interface {
	Scan(dest ...any) error
}

// scanAlert scans a full alert row.
func scanAlert(row scannable, a *domain.Alert) error {
	var contextJSON []byte
	if err := row.Scan(
		&a.ID, &a.TenantID, &a.Fingerprint, &a.AlertType, &a.DeviceID, &a.MetricName,
		&a.RuleID, &a.Status, &a.Severity, &a.Message, &contextJSON,
		&a.OpenedAt, &a.LastSeenAt, &a.ClosedAt, &a.Notified, &a.NotifiedAt,
	); err != nil {
		return err
	}

	if err := json.Unmarshal(contextJSON, &a.Context); err != nil {
		return fmt.Errorf("unmarshaling alert context: %w", err)
	}

	return nil
}
