package rules

// RecordingRules returns a PrometheusRule CR containing pre-computed rate
// expressions used by dashboards and alert rules.
func RecordingRules() PrometheusRule {
	return PrometheusRule{
		APIVersion: "monitoring.coreos.com/v1",
		Kind:       "PrometheusRule",
		Metadata: PrometheusRuleMetadata{
			Name: "fleetwatch-recording-rules",
			Labels: map[string]string{
				"prometheus": "system-rules-prometheus",
			},
		},
		Spec: PrometheusRuleSpec{
			Groups: []RuleGroup{
				{
					Name: "fleetwatch-recording",
					Rules: []Rule{
						{
							Record: "fleetwatch:http_requests:rate5m",
							Expr:   `sum(rate(fleetwatch_http_requests_total[5m]))`,
						},
						{
							Record: "fleetwatch:http_errors:rate5m",
							Expr:   `sum(rate(fleetwatch_http_requests_total{status=~"5.."}[5m]))`,
						},
						{
							Record: "fleetwatch:ingest_messages:rate5m",
							Expr:   `sum(rate(fleetwatch_ingest_messages_total[5m]))`,
						},
						{
							Record: "fleetwatch:ingest_errors:rate5m",
							Expr:   `sum(rate(fleetwatch_ingest_errors_total[5m]))`,
						},
						{
							Record: "fleetwatch:eval_passes:rate5m",
							Expr:   `sum(rate(fleetwatch_eval_passes_total[5m]))`,
						},
						{
							Record: "fleetwatch:alerts_opened:rate5m",
							Expr:   `sum(rate(fleetwatch_alerts_opened_total[5m]))`,
						},
					},
				},
			},
		},
	}
}
