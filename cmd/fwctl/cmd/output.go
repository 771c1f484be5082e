package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	domain "github.com/fleetwatch/fleetwatch/pkg/types"
)

// tabWriter wraps tabwriter with error tracking.
type tabWriter struct {
	*tabwriter.Writer
	err error
}

func newTabWriter(w io.Writer) *tabWriter {
	return &tabWriter{Writer: tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)}
}

func (tw *tabWriter) writef(format string, args ...any) {
	if tw.err != nil {
		return
	}
	_, tw.err = fmt.Fprintf(tw.Writer, format, args...)
}

func (tw *tabWriter) finish() error {
	if tw.err != nil {
		return tw.err
	}
	return tw.Flush()
}

func printAlertsTable(alerts []domain.Alert) error {
	tw := newTabWriter(os.Stdout)
	tw.writef("ID\tTYPE\tDEVICE\tMETRIC\tSEVERITY\tSTATUS\tOPENED\n")
	for i := range alerts {
		a := &alerts[i]
		tw.writef("%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			a.ID,
			a.AlertType,
			a.DeviceID,
			a.MetricName,
			a.Severity,
			a.Status,
			a.OpenedAt.Format("2006-01-02 15:04:05"),
		)
	}
	return tw.finish()
}

func printAlertDetail(a *domain.Alert) error {
	tw := newTabWriter(os.Stdout)
	tw.writef("ID:\t%s\n", a.ID)
	tw.writef("Tenant:\t%s\n", a.TenantID)
	tw.writef("Type:\t%s\n", a.AlertType)
	tw.writef("Device:\t%s\n", a.DeviceID)
	tw.writef("Metric:\t%s\n", a.MetricName)
	tw.writef("Severity:\t%s\n", a.Severity)
	tw.writef("Status:\t%s\n", a.Status)
	tw.writef("Message:\t%s\n", a.Message)
	tw.writef("Opened:\t%s\n", a.OpenedAt.Format("2006-01-02 15:04:05"))
	tw.writef("Last Seen:\t%s\n", a.LastSeenAt.Format("2006-01-02 15:04:05"))
	if a.ClosedAt != nil {
		tw.writef("Closed:\t%s\n", a.ClosedAt.Format("2006-01-02 15:04:05"))
	}
	tw.writef("Notified:\t%v\n", a.Notified)
	tw.writef("Fingerprint:\t%s\n", a.Fingerprint)
	return tw.finish()
}

func printRulesTable(rules []domain.AlertRule) error {
	tw := newTabWriter(os.Stdout)
	tw.writef("ID\tNAME\tTYPE\tSEVERITY\tMATCH\tCONDITIONS\tENABLED\n")
	for i := range rules {
		r := &rules[i]
		tw.writef("%s\t%s\t%s\t%s\t%s\t%d\t%v\n",
			r.ID,
			truncate(r.Name, 40),
			r.RuleType,
			r.Severity,
			r.MatchMode,
			len(r.Conditions),
			r.Enabled,
		)
	}
	return tw.finish()
}

func printRuleDetail(r *domain.AlertRule) error {
	tw := newTabWriter(os.Stdout)
	tw.writef("ID:\t%s\n", r.ID)
	tw.writef("Tenant:\t%s\n", r.TenantID)
	tw.writef("Name:\t%s\n", r.Name)
	tw.writef("Type:\t%s\n", r.RuleType)
	tw.writef("Severity:\t%s\n", r.Severity)
	tw.writef("Match Mode:\t%s\n", r.MatchMode)
	tw.writef("Enabled:\t%v\n", r.Enabled)
	for i := range r.Conditions {
		c := &r.Conditions[i]
		switch c.Type {
		case domain.ConditionAnomaly:
			tw.writef("Condition %d:\t%s anomaly (window %dm, z > %.1f, min %d samples)\n",
				i+1, c.Metric, c.WindowMinutes, c.ZThreshold, c.MinSamples)
		default:
			if c.DurationMinutes > 0 {
				tw.writef("Condition %d:\t%s %s %g for %dm\n",
					i+1, c.Metric, c.Operator, c.Threshold, c.DurationMinutes)
			} else {
				tw.writef("Condition %d:\t%s %s %g\n",
					i+1, c.Metric, c.Operator, c.Threshold)
			}
		}
	}
	return tw.finish()
}

func printJobRunsTable(runs []domain.JobRun) error {
	tw := newTabWriter(os.Stdout)
	tw.writef("JOB\tSTATUS\tSTARTED\tCOMPLETED\tERROR\n")
	for i := range runs {
		r := &runs[i]
		completed := "-"
		if r.CompletedAt != nil {
			completed = r.CompletedAt.Format("2006-01-02 15:04:05")
		}
		errText := truncate(r.ErrorText, 40)
		tw.writef("%s\t%s\t%s\t%s\t%s\n",
			r.JobName,
			r.Status,
			r.StartedAt.Format("2006-01-02 15:04:05"),
			completed,
			errText,
		)
	}
	return tw.finish()
}

func printSystemState(s *domain.SystemState) error {
	tw := newTabWriter(os.Stdout)
	tw.writef("Tenants:\t%d\n", s.TenantsTotal)
	tw.writef("Devices:\t%d (%d stale)\n", s.DevicesTotal, s.DevicesStale)
	tw.writef("Rules:\t%d (%d enabled)\n", s.RulesTotal, s.RulesEnabled)
	tw.writef("Open Alerts:\t%d (%d pending notification)\n", s.AlertsOpen, s.AlertsPending)
	tw.writef("Active Silences:\t%d\n", s.SilencesActive)
	tw.writef("Telemetry Rows (24h):\t%d\n", s.TelemetryRows24h)
	return tw.finish()
}

func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
