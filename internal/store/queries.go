package store

// SQL query constants organized by entity.
// All SQL lives here — PostgresStore methods reference these constants.

// Tenant and device queries.
const (
	queryEnsureTenant = `
		INSERT INTO tenants (id)
		VALUES ($1)
		ON CONFLICT (id) DO NOTHING`

	queryListTenantIDs = `SELECT id FROM tenants ORDER BY id`

	queryEnsureDevice = `
		INSERT INTO devices (tenant_id, device_id, site_id, last_seen_at, created_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, now())
		ON CONFLICT (tenant_id, device_id) DO UPDATE SET
			last_seen_at = GREATEST(devices.last_seen_at, EXCLUDED.last_seen_at),
			site_id      = COALESCE(EXCLUDED.site_id, devices.site_id)`

	queryListStaleDevices = `
		SELECT tenant_id, device_id, COALESCE(site_id, ''), last_seen_at, created_at
		FROM devices
		WHERE tenant_id = $1 AND last_seen_at IS NOT NULL AND last_seen_at < $2
		ORDER BY device_id`
)

// Silence queries.
const (
	queryListActiveSilences = `
		SELECT id, tenant_id, device_id, COALESCE(reason, ''), starts_at, ends_at, created_at
		FROM silences
		WHERE tenant_id = $1 AND starts_at <= $2 AND ends_at > $2
		ORDER BY device_id`
)

// Rule queries.
const (
	selectRuleColumns = `
		SELECT id, tenant_id, name, rule_type, enabled,
			COALESCE(severity, 'warning'), COALESCE(match_mode, 'all'),
			COALESCE(conditions, '[]'),
			COALESCE(metric_name, ''), COALESCE(operator, ''), threshold,
			duration_minutes, window_minutes, z_threshold, min_samples,
			created_at, updated_at
		FROM alert_rules`

	queryListRules = selectRuleColumns + `
		WHERE tenant_id = $1
		ORDER BY created_at`

	queryListEnabledRules = selectRuleColumns + `
		WHERE tenant_id = $1 AND enabled = true
		ORDER BY created_at`

	queryGetRule = selectRuleColumns + `
		WHERE tenant_id = $1 AND id = $2`
)

// Telemetry queries.
const (
	queryInsertTelemetry = `
		INSERT INTO telemetry (time, tenant_id, device_id, site_id, seq, metrics)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6)
		ON CONFLICT (tenant_id, device_id, seq) DO NOTHING`

	queryLatestTelemetry = `
		SELECT DISTINCT ON (device_id)
			tenant_id, device_id, COALESCE(site_id, ''), seq, time, metrics
		FROM telemetry
		WHERE tenant_id = $1 AND time >= $2
		ORDER BY device_id, time DESC`

	// Window count queries differ only in the comparison operator. Counting
	// total and matching in one pass makes "held throughout" a total==matching
	// check without a second round trip. Rows whose value is not a JSON number
	// never enter the window.
	queryWindowCountsGT = `
		SELECT COUNT(*) AS total,
			COUNT(*) FILTER (WHERE (metrics->>$3)::float8 > $4) AS matching
		FROM telemetry
		WHERE tenant_id = $1 AND device_id = $2 AND time >= $5
			AND jsonb_typeof(metrics->$3) = 'number'`

	queryWindowCountsGTE = `
		SELECT COUNT(*) AS total,
			COUNT(*) FILTER (WHERE (metrics->>$3)::float8 >= $4) AS matching
		FROM telemetry
		WHERE tenant_id = $1 AND device_id = $2 AND time >= $5
			AND jsonb_typeof(metrics->$3) = 'number'`

	queryWindowCountsLT = `
		SELECT COUNT(*) AS total,
			COUNT(*) FILTER (WHERE (metrics->>$3)::float8 < $4) AS matching
		FROM telemetry
		WHERE tenant_id = $1 AND device_id = $2 AND time >= $5
			AND jsonb_typeof(metrics->$3) = 'number'`

	queryWindowCountsLTE = `
		SELECT COUNT(*) AS total,
			COUNT(*) FILTER (WHERE (metrics->>$3)::float8 <= $4) AS matching
		FROM telemetry
		WHERE tenant_id = $1 AND device_id = $2 AND time >= $5
			AND jsonb_typeof(metrics->$3) = 'number'`

	queryMetricWindowStats = `
		SELECT COUNT(*),
			COALESCE(AVG(v), 0),
			COALESCE(STDDEV_SAMP(v), 0),
			(
				SELECT (metrics->>$3)::float8
				FROM telemetry
				WHERE tenant_id = $1 AND device_id = $2 AND time >= $4
					AND jsonb_typeof(metrics->$3) = 'number'
				ORDER BY time DESC
				LIMIT 1
			)
		FROM (
			SELECT (metrics->>$3)::float8 AS v
			FROM telemetry
			WHERE tenant_id = $1 AND device_id = $2 AND time >= $4
				AND jsonb_typeof(metrics->$3) = 'number'
		) samples`
)

// Alert queries.
const (
	// The partial unique index on (tenant_id, fingerprint) WHERE status = 'OPEN'
	// makes re-detection an update of the open row. (xmax = 0) distinguishes a
	// fresh insert from a conflict update.
	queryOpenOrUpdateAlert = `
		INSERT INTO alerts (
			tenant_id, fingerprint, alert_type, device_id, metric_name, rule_id,
			status, severity, message, context, opened_at, last_seen_at
		) VALUES (
			@tenant_id, @fingerprint, @alert_type, @device_id, @metric_name, @rule_id,
			'OPEN', @severity, @message, @context, now(), now()
		)
		ON CONFLICT (tenant_id, fingerprint) WHERE status = 'OPEN' DO UPDATE SET
			last_seen_at = now(),
			severity     = EXCLUDED.severity,
			message      = EXCLUDED.message,
			context      = EXCLUDED.context
		RETURNING id, opened_at, last_seen_at, (xmax = 0) AS inserted`

	queryCloseAlert = `
		UPDATE alerts SET
			status    = 'CLOSED',
			closed_at = now()
		WHERE tenant_id = $1 AND fingerprint = $2 AND status = 'OPEN'`

	queryCloseRecoveredHeartbeatAlerts = `
		UPDATE alerts a SET
			status    = 'CLOSED',
			closed_at = now()
		FROM devices d
		WHERE a.tenant_id = $1
			AND a.status = 'OPEN'
			AND a.alert_type = 'NO_HEARTBEAT'
			AND d.tenant_id = a.tenant_id
			AND d.device_id = a.device_id
			AND d.last_seen_at >= $2`

	queryGetAlert = baseAlertsSelect + `
		WHERE tenant_id = $1 AND id = $2`

	queryListPendingAlerts = baseAlertsSelect + `
		WHERE status = 'OPEN' AND notified = false
		ORDER BY opened_at`

	queryMarkAlertsNotified = `
		UPDATE alerts SET
			notified    = true,
			notified_at = now()
		WHERE id = ANY($1)`
)

// System state query.
const (
	queryGetSystemState = `
		SELECT
			(SELECT COUNT(*) FROM tenants)                                                      AS tenants_total,
			(SELECT COUNT(*) FROM devices)                                                      AS devices_total,
			(SELECT COUNT(*) FROM devices WHERE last_seen_at < now() - interval '5 minutes')    AS devices_stale,
			(SELECT COUNT(*) FROM alert_rules)                                                  AS rules_total,
			(SELECT COUNT(*) FROM alert_rules WHERE enabled = true)                             AS rules_enabled,
			(SELECT COUNT(*) FROM alerts WHERE status = 'OPEN')                                 AS alerts_open,
			(SELECT COUNT(*) FROM alerts WHERE status = 'OPEN' AND notified = false)            AS alerts_pending,
			(SELECT COUNT(*) FROM silences WHERE starts_at <= now() AND ends_at > now())        AS silences_active,
			(SELECT COUNT(*) FROM telemetry WHERE time >= now() - interval '24 hours')          AS telemetry_rows_24h`
)

// Scheduler queries.
const (
	queryInsertJobRun = `
		INSERT INTO job_runs (job_name)
		VALUES ($1)
		RETURNING id`

	queryCompleteJobRun = `
		UPDATE job_runs SET
			completed_at  = now(),
			status        = $2,
			error_text    = $3,
			rows_affected = $4
		WHERE id = $1`

	queryListJobRuns = `
		SELECT id, job_name, started_at, completed_at, status,
			COALESCE(error_text, ''), rows_affected
		FROM job_runs
		WHERE job_name = $1
		ORDER BY started_at DESC
		LIMIT $2`

	queryListLatestJobRuns = `
		SELECT DISTINCT ON (job_name)
			id, job_name, started_at, completed_at, status,
			COALESCE(error_text, ''), rows_affected
		FROM job_runs
		ORDER BY job_name, started_at DESC`

	queryMarkStaleJobRunsCrashed = `
		UPDATE job_runs SET
			status       = 'crashed',
			completed_at = now()
		WHERE status = 'running' AND started_at < $1`

	queryDeleteOldJobRuns = `
		DELETE FROM job_runs WHERE started_at < now() - interval '30 days'`
)
