package store

import (
	"fmt"
	"strings"
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

const baseAlertsSelect = `SELECT id, tenant_id, fingerprint, alert_type, device_id, metric_name,
	COALESCE(rule_id::text, ''), status, severity, message, COALESCE(context, '{}'),
	opened_at, last_seen_at, closed_at, notified, notified_at
FROM alerts`

const countAlertsSelect = "SELECT COUNT(*) FROM alerts"

// ToSQL builds the WHERE clause, ORDER BY, LIMIT, and OFFSET for an alert query.
// It returns two SQL strings (one for the data query, one for the count query)
// and the positional parameters. TenantID is always required so one tenant can
// never page through another tenant's alerts.
func (q *AlertQuery) ToSQL() (dataSQL, countSQL string, args []any) {
	conditions := []string{"tenant_id = $1"}
	args = append(args, q.TenantID)
	paramIdx := 2

	if q.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", paramIdx))
		args = append(args, *q.Status)
		paramIdx++
	}

	if q.AlertType != nil {
		conditions = append(conditions, fmt.Sprintf("alert_type = $%d", paramIdx))
		args = append(args, *q.AlertType)
		paramIdx++
	}

	if q.DeviceID != nil {
		conditions = append(conditions, fmt.Sprintf("device_id = $%d", paramIdx))
		args = append(args, *q.DeviceID)
		paramIdx++
	}

	whereClause := " WHERE " + strings.Join(conditions, " AND ")

	limit := q.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	offset := max(q.Offset, 0)

	dataSQL = fmt.Sprintf(
		"%s%s ORDER BY opened_at DESC LIMIT %d OFFSET %d",
		baseAlertsSelect, whereClause, limit, offset,
	)

	countSQL = countAlertsSelect + whereClause

	return dataSQL, countSQL, args
}
