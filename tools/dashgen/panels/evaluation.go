package panels

import (
	"github.com/grafana/grafana-foundation-sdk/go/common"
	"github.com/grafana/grafana-foundation-sdk/go/timeseries"
)

// PassDuration returns a timeseries panel showing p50 and p95 evaluation
// pass durations.
func PassDuration() *timeseries.PanelBuilder {
	return timeseries.NewPanelBuilder().
		Title("Pass Duration").
		Description("Alert evaluation pass duration percentiles").
		Datasource(DSRef()).
		Height(TSHeight).
		Span(8).
		WithTarget(PromQuery(
			`histogram_quantile(0.50, sum(rate(fleetwatch_eval_pass_duration_seconds_bucket{job="fleetwatch"}[5m])) by (le))`,
			"p50",
			"A",
		)).
		WithTarget(PromQuery(
			`histogram_quantile(0.95, sum(rate(fleetwatch_eval_pass_duration_seconds_bucket{job="fleetwatch"}[5m])) by (le))`,
			"p95",
			"B",
		)).
		Unit("s").
		FillOpacity(10).
		LineWidth(2).
		Legend(TableLegend("mean", "max")).
		Tooltip(MultiTooltip()).
		Thresholds(ThresholdsGreenOnly()).
		ColorScheme(ColorSchemePaletteClassic()).
		DrawStyle(common.GraphDrawStyleLine)
}

// EvalErrors returns a timeseries panel showing tenant and device
// evaluation errors per minute.
func EvalErrors() *timeseries.PanelBuilder {
	return timeseries.NewPanelBuilder().
		Title("Eval Errors / min").
		Description("Tenant and device evaluation failures per minute").
		Datasource(DSRef()).
		Height(TSHeight).
		Span(8).
		WithTarget(PromQuery(
			`sum(rate(fleetwatch_eval_tenant_errors_total{job="fleetwatch"}[5m])) * 60`,
			"tenant", "A",
		)).
		WithTarget(PromQuery(
			`sum(rate(fleetwatch_eval_device_errors_total{job="fleetwatch"}[5m])) * 60`,
			"device", "B",
		)).
		FillOpacity(10).
		LineWidth(2).
		Tooltip(MultiTooltip()).
		Thresholds(ThresholdsGreenYellowRed(0.1, 1)).
		ColorScheme(ColorSchemeThresholds()).
		DrawStyle(common.GraphDrawStyleLine)
}

// WakeupShare returns a timeseries panel showing the share of evaluation
// passes triggered by notify wakeups rather than the poll timer.
func WakeupShare() *timeseries.PanelBuilder {
	return timeseries.NewPanelBuilder().
		Title("Wakeup Share %").
		Description("Percentage of evaluation passes triggered by notify wakeups").
		Datasource(DSRef()).
		Height(TSHeight).
		Span(8).
		WithTarget(PromQuery(
			`sum(rate(fleetwatch_eval_wakeups_total{job="fleetwatch"}[5m])) / fleetwatch:eval_passes:rate5m * 100`,
			"wakeup %", "A",
		)).
		Unit("percent").
		FillOpacity(10).
		LineWidth(2).
		Thresholds(ThresholdsGreenOnly()).
		ColorScheme(ColorSchemePaletteClassic()).
		DrawStyle(common.GraphDrawStyleLine)
}
