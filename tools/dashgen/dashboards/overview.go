// Package dashboards assembles Grafana dashboard definitions from panel builders.
package dashboards

import (
	"github.com/grafana/grafana-foundation-sdk/go/dashboard"

	"github.com/fleetwatch/fleetwatch/tools/dashgen/panels"
)

// BuildOverview constructs the Fleetwatch Overview dashboard with all
// metric rows.
func BuildOverview() *dashboard.DashboardBuilder {
	b := dashboard.NewDashboardBuilder("Fleetwatch Overview").
		Uid("fleetwatch-overview").
		Tags([]string{"fleetwatch", "telemetry"}).
		Refresh("30s").
		Time("now-6h", "now").
		Timezone("browser").
		Editable().
		Tooltip(dashboard.DashboardCursorSyncCrosshair).
		WithVariable(datasourceVar())

	// Row 1: Overview.
	b.WithRow(dashboard.NewRowBuilder("Overview").
		WithPanel(panels.HealthzStat()).
		WithPanel(panels.ReadyzStat()).
		WithPanel(panels.EvalPassRateStat()).
		WithPanel(panels.UptimeStat()))

	// Row 2: HTTP.
	b.WithRow(dashboard.NewRowBuilder("HTTP").
		WithPanel(panels.RequestRate()).
		WithPanel(panels.LatencyPercentiles()).
		WithPanel(panels.ErrorRate()))

	// Row 3: Ingestion.
	b.WithRow(dashboard.NewRowBuilder("Ingestion").
		WithPanel(panels.MessageRate()).
		WithPanel(panels.InvalidRate()).
		WithPanel(panels.FlushDuration()))

	// Row 4: Evaluation.
	b.WithRow(dashboard.NewRowBuilder("Evaluation").
		WithPanel(panels.PassDuration()).
		WithPanel(panels.EvalErrors()).
		WithPanel(panels.WakeupShare()))

	// Row 5: Alerts.
	b.WithRow(dashboard.NewRowBuilder("Alerts").
		WithPanel(panels.AlertsOpenedRate()).
		WithPanel(panels.AlertsClosedRate()).
		WithPanel(panels.AlertsSilenced()))

	// Row 6: Notifications.
	b.WithRow(dashboard.NewRowBuilder("Notifications").
		WithPanel(panels.NotificationRate()).
		WithPanel(panels.NotificationFailures()).
		WithPanel(panels.ListenerReconnects()))

	return b
}

func datasourceVar() *dashboard.DatasourceVariableBuilder {
	return dashboard.NewDatasourceVariableBuilder("datasource").
		Label("Datasource").
		Type("prometheus")
}
