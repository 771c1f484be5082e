package engine

import (
	domain "github.com/fleetwatch/fleetwatch/pkg/types"
)

// BuildSnapshots converts latest-per-device telemetry rows into metric
// snapshots. Metric names are discovered from the payload itself; transport
// and identity fields are excluded, and values that do not coerce to float64
// (strings, nulls, nested objects) are dropped. Rows without a single usable
// metric still produce a snapshot so heartbeat-only devices stay visible.
func BuildSnapshots(rows []domain.TelemetryEnvelope) map[string]*domain.MetricSnapshot {
	snapshots := make(map[string]*domain.MetricSnapshot, len(rows))

	for i := range rows {
		row := &rows[i]

		snap := &domain.MetricSnapshot{
			TenantID:   row.TenantID,
			DeviceID:   row.DeviceID,
			SiteID:     row.SiteID,
			ReportedAt: row.Time,
			Metrics:    make(map[string]float64, len(row.Metrics)),
		}

		for name, raw := range row.Metrics {
			if domain.SnapshotExcluded(name) {
				continue
			}
			if v, ok := domain.MetricValue(raw); ok {
				snap.Metrics[name] = v
			}
		}

		snapshots[row.DeviceID] = snap
	}

	return snapshots
}
