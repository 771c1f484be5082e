package panels

import (
	"github.com/grafana/grafana-foundation-sdk/go/common"
	"github.com/grafana/grafana-foundation-sdk/go/timeseries"
)

// MessageRate returns a timeseries panel showing telemetry messages
// consumed per second.
func MessageRate() *timeseries.PanelBuilder {
	return timeseries.NewPanelBuilder().
		Title("Message Rate").
		Description("Telemetry messages consumed per second").
		Datasource(DSRef()).
		Height(TSHeight).
		Span(8).
		WithTarget(PromQuery(`fleetwatch:ingest_messages:rate5m`, "msg/s", "A")).
		FillOpacity(10).
		LineWidth(2).
		Thresholds(ThresholdsGreenOnly()).
		ColorScheme(ColorSchemePaletteClassic()).
		DrawStyle(common.GraphDrawStyleLine)
}

// InvalidRate returns a timeseries panel showing malformed telemetry
// messages per minute.
func InvalidRate() *timeseries.PanelBuilder {
	return timeseries.NewPanelBuilder().
		Title("Invalid Messages / min").
		Description("Rate of malformed or rejected telemetry messages per minute").
		Datasource(DSRef()).
		Height(TSHeight).
		Span(8).
		WithTarget(PromQuery(
			`sum(rate(fleetwatch_ingest_invalid_total{job="fleetwatch"}[5m])) * 60`,
			"invalid/min", "A",
		)).
		FillOpacity(10).
		LineWidth(2).
		Thresholds(ThresholdsGreenYellowRed(1, 10)).
		ColorScheme(ColorSchemeThresholds()).
		DrawStyle(common.GraphDrawStyleLine)
}

// FlushDuration returns a timeseries panel showing the p95 batch flush
// duration.
func FlushDuration() *timeseries.PanelBuilder {
	return timeseries.NewPanelBuilder().
		Title("Flush Duration (p95)").
		Description("95th percentile telemetry batch flush duration").
		Datasource(DSRef()).
		Height(TSHeight).
		Span(8).
		WithTarget(PromQuery(
			`histogram_quantile(0.95, sum(rate(fleetwatch_ingest_flush_duration_seconds_bucket{job="fleetwatch"}[5m])) by (le))`,
			"p95",
			"A",
		)).
		Unit("s").
		FillOpacity(10).
		LineWidth(2).
		Thresholds(ThresholdsGreenOnly()).
		ColorScheme(ColorSchemePaletteClassic()).
		DrawStyle(common.GraphDrawStyleLine)
}
