package panels

import (
	"github.com/grafana/grafana-foundation-sdk/go/common"
	"github.com/grafana/grafana-foundation-sdk/go/stat"
	"github.com/grafana/grafana-foundation-sdk/go/timeseries"
)

// AlertsOpenedRate returns a timeseries panel showing the rate of alerts
// opened, broken out by alert type.
func AlertsOpenedRate() *timeseries.PanelBuilder {
	return timeseries.NewPanelBuilder().
		Title("Alerts Opened Rate").
		Description("Rate of alerts opened per second, by alert type").
		Datasource(DSRef()).
		Height(TSHeight).
		Span(TSWidth).
		WithTarget(PromQuery(
			`sum(rate(fleetwatch_alerts_opened_total{job="fleetwatch"}[5m])) by (alert_type)`,
			"{{alert_type}}", "A",
		)).
		FillOpacity(10).
		LineWidth(2).
		Legend(TableLegend("mean", "max")).
		Tooltip(MultiTooltip()).
		Thresholds(ThresholdsGreenOnly()).
		ColorScheme(ColorSchemePaletteClassic()).
		DrawStyle(common.GraphDrawStyleLine)
}

// AlertsClosedRate returns a timeseries panel showing the rate of alerts
// auto-closed by the evaluator.
func AlertsClosedRate() *timeseries.PanelBuilder {
	return timeseries.NewPanelBuilder().
		Title("Alerts Closed Rate").
		Description("Rate of alerts auto-closed per second, by alert type").
		Datasource(DSRef()).
		Height(TSHeight).
		Span(TSWidth).
		WithTarget(PromQuery(
			`sum(rate(fleetwatch_alerts_closed_total{job="fleetwatch"}[5m])) by (alert_type)`,
			"{{alert_type}}", "A",
		)).
		FillOpacity(10).
		LineWidth(2).
		Tooltip(MultiTooltip()).
		Thresholds(ThresholdsGreenOnly()).
		ColorScheme(ColorSchemePaletteClassic()).
		DrawStyle(common.GraphDrawStyleLine)
}

// AlertsSilenced returns a stat panel showing alerts suppressed by
// silences in the past 24 hours.
func AlertsSilenced() *stat.PanelBuilder {
	return stat.NewPanelBuilder().
		Title("Silenced (24h)").
		Description("Alert firings suppressed by silences in the last 24 hours").
		Datasource(DSRef()).
		Height(TSHeight).
		Span(TSWidth).
		WithTarget(PromQuery(`increase(fleetwatch_alerts_silenced_total{job="fleetwatch"}[24h])`, "", "A")).
		Thresholds(ThresholdsGreenOnly()).
		ColorScheme(ColorSchemeThresholds()).
		ColorMode(common.BigValueColorModeBackground).
		GraphMode(common.BigValueGraphModeArea)
}

// NotificationRate returns a timeseries panel showing notification
// deliveries per minute.
func NotificationRate() *timeseries.PanelBuilder {
	return timeseries.NewPanelBuilder().
		Title("Notifications / min").
		Description("Successful alert notification deliveries per minute").
		Datasource(DSRef()).
		Height(TSHeight).
		Span(TSWidth).
		WithTarget(PromQuery(
			`sum(rate(fleetwatch_notifications_sent_total{job="fleetwatch"}[5m])) * 60`,
			"sent/min", "A",
		)).
		FillOpacity(10).
		LineWidth(2).
		Thresholds(ThresholdsGreenOnly()).
		ColorScheme(ColorSchemePaletteClassic()).
		DrawStyle(common.GraphDrawStyleLine)
}

// NotificationFailures returns a stat panel showing notification failures
// in the past 24 hours.
func NotificationFailures() *stat.PanelBuilder {
	return stat.NewPanelBuilder().
		Title("Notification Failures (24h)").
		Description("Failed alert notification deliveries in the last 24 hours").
		Datasource(DSRef()).
		Height(TSHeight).
		Span(TSWidth).
		WithTarget(PromQuery(`increase(fleetwatch_notification_failures_total{job="fleetwatch"}[24h])`, "", "A")).
		Thresholds(ThresholdsGreenYellowRed(1, 5)).
		ColorScheme(ColorSchemeThresholds()).
		ColorMode(common.BigValueColorModeBackground).
		GraphMode(common.BigValueGraphModeArea)
}

// ListenerReconnects returns a timeseries panel showing notify listener
// reconnects per hour.
func ListenerReconnects() *timeseries.PanelBuilder {
	return timeseries.NewPanelBuilder().
		Title("Listener Reconnects / h").
		Description("Database notify listener reconnects per hour").
		Datasource(DSRef()).
		Height(TSHeight).
		Span(TSWidth).
		WithTarget(PromQuery(
			`sum(rate(fleetwatch_listener_reconnects_total{job="fleetwatch"}[1h])) * 3600`,
			"reconnects/h", "A",
		)).
		FillOpacity(10).
		LineWidth(2).
		Thresholds(ThresholdsGreenYellowRed(1, 10)).
		ColorScheme(ColorSchemeThresholds()).
		DrawStyle(common.GraphDrawStyleLine)
}
