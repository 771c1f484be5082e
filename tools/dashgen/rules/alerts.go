package rules

// AlertRules returns a PrometheusRule CR containing alert rules for
// fleetwatch operational monitoring.
func AlertRules() PrometheusRule {
	return PrometheusRule{
		APIVersion: "monitoring.coreos.com/v1",
		Kind:       "PrometheusRule",
		Metadata: PrometheusRuleMetadata{
			Name: "fleetwatch-alerts",
			Labels: map[string]string{
				"prometheus": "system-rules-prometheus",
			},
		},
		Spec: PrometheusRuleSpec{
			Groups: []RuleGroup{
				{
					Name: "fleetwatch-alerts",
					Rules: []Rule{
						{
							Alert: "FleetwatchDown",
							Expr:  `absent(up{job="fleetwatch"})`,
							For:   "2m",
							Labels: map[string]string{
								"severity": "critical",
							},
							Annotations: map[string]string{
								"summary":     "Fleetwatch is down",
								"description": "The fleetwatch job has been absent for more than 2 minutes.",
							},
						},
						{
							Alert: "FleetwatchReadinessDown",
							Expr:  `fleetwatch_readyz_up == 0`,
							For:   "2m",
							Labels: map[string]string{
								"severity": "critical",
							},
							Annotations: map[string]string{
								"summary":     "Fleetwatch readiness check is failing",
								"description": "The readiness probe has been reporting not-ready for more than 2 minutes.",
							},
						},
						{
							Alert: "FleetwatchHighErrorRate",
							Expr:  `fleetwatch:http_errors:rate5m / fleetwatch:http_requests:rate5m > 0.05`,
							For:   "5m",
							Labels: map[string]string{
								"severity": "warning",
							},
							Annotations: map[string]string{
								"summary":     "High HTTP error rate on fleetwatch",
								"description": "More than 5% of HTTP requests are returning 5xx errors over the last 5 minutes.",
							},
						},
						{
							Alert: "FleetwatchIngestErrors",
							Expr:  `fleetwatch:ingest_errors:rate5m > 0`,
							For:   "5m",
							Labels: map[string]string{
								"severity": "warning",
							},
							Annotations: map[string]string{
								"summary":     "Telemetry ingest errors detected",
								"description": "The telemetry ingest pipeline has been producing write errors for more than 5 minutes.",
							},
						},
						{
							Alert: "FleetwatchEvalStalled",
							Expr:  `fleetwatch:eval_passes:rate5m == 0`,
							For:   "5m",
							Labels: map[string]string{
								"severity": "critical",
							},
							Annotations: map[string]string{
								"summary":     "Alert evaluation has stalled",
								"description": "No evaluation passes have completed in the last 5 minutes. Device alerts are not being updated.",
							},
						},
						{
							Alert: "FleetwatchEvalTenantErrors",
							Expr:  `sum(rate(fleetwatch_eval_tenant_errors_total[5m])) > 0`,
							For:   "10m",
							Labels: map[string]string{
								"severity": "warning",
							},
							Annotations: map[string]string{
								"summary":     "Tenant evaluation failures are persisting",
								"description": "One or more tenants have been failing evaluation for over 10 minutes.",
							},
						},
						{
							Alert: "FleetwatchNotificationFailures",
							Expr:  `increase(fleetwatch_notification_failures_total[5m]) > 0`,
							For:   "1m",
							Labels: map[string]string{
								"severity": "warning",
							},
							Annotations: map[string]string{
								"summary":     "Notification delivery failures detected",
								"description": "One or more alert notifications have failed to send.",
							},
						},
						{
							Alert: "FleetwatchListenerFlapping",
							Expr:  `increase(fleetwatch_listener_reconnects_total[15m]) > 5`,
							For:   "0m",
							Labels: map[string]string{
								"severity": "warning",
							},
							Annotations: map[string]string{
								"summary":     "Notify listener is reconnecting repeatedly",
								"description": "The database notify listener has reconnected more than 5 times in 15 minutes. Evaluation falls back to polling while disconnected.",
							},
						},
					},
				},
			},
		},
	}
}
