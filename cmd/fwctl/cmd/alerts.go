package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	apiclient "github.com/fleetwatch/fleetwatch/internal/api/client"
)

func alertsCmd() *cobra.Command {
	alertsRoot := &cobra.Command{
		Use:   "alerts",
		Short: "Query alerts",
		Long: "Query a tenant's alerts. Alerts are opened by the evaluator when a rule\n" +
			"fires or a device misses its heartbeat, and closed automatically on recovery.",
	}

	alertsRoot.AddCommand(
		alertsListCmd(),
		alertsGetCmd(),
	)

	return alertsRoot
}

func alertsListCmd() *cobra.Command {
	var (
		status    string
		alertType string
		deviceID  string
		limit     int
		offset    int
	)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List a tenant's alerts",
		Example: `  fwctl alerts list --tenant acme
  fwctl alerts list --tenant acme --status OPEN --device sensor-0042
  fwctl alerts list --tenant acme --type NO_HEARTBEAT --output json`,
		RunE: func(_ *cobra.Command, _ []string) error {
			tenant, err := tenantID()
			if err != nil {
				return err
			}

			c := newClient()
			resp, err := c.ListAlerts(context.Background(), tenant, &apiclient.ListAlertsParams{
				Status:    status,
				AlertType: alertType,
				DeviceID:  deviceID,
				Limit:     limit,
				Offset:    offset,
			})
			if err != nil {
				return err
			}
			if jsonOutput() {
				return outputJSON(resp)
			}
			if len(resp.Alerts) == 0 {
				fmt.Println("No alerts found.")
				return nil
			}
			if err := printAlertsTable(resp.Alerts); err != nil {
				return err
			}
			fmt.Printf("\n%d of %d alerts\n", len(resp.Alerts), resp.Total)
			return nil
		},
	}

	listCmd.Flags().StringVar(&status, "status", "", "filter by status (OPEN, CLOSED)")
	listCmd.Flags().StringVar(&alertType, "type", "", "filter by alert type")
	listCmd.Flags().StringVar(&deviceID, "device", "", "filter by device ID")
	listCmd.Flags().IntVar(&limit, "limit", 0, "max results (default 50)")
	listCmd.Flags().IntVar(&offset, "offset", 0, "pagination offset")

	return listCmd
}

func alertsGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "get <id>",
		Short:   "Show a single alert",
		Args:    cobra.ExactArgs(1),
		Example: `  fwctl alerts get --tenant acme 4f6b81d2-9c3e-4f7a-b1a9-2d8c5e7f0a13`,
		RunE: func(_ *cobra.Command, args []string) error {
			tenant, err := tenantID()
			if err != nil {
				return err
			}

			c := newClient()
			alert, err := c.GetAlert(context.Background(), tenant, args[0])
			if err != nil {
				return err
			}
			if jsonOutput() {
				return outputJSON(alert)
			}
			return printAlertDetail(alert)
		},
	}
}
