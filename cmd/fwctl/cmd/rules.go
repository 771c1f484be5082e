package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func rulesCmd() *cobra.Command {
	rulesRoot := &cobra.Command{
		Use:   "rules",
		Short: "Query alert rules",
		Long: "Query a tenant's alert rules. Rules combine threshold and anomaly\n" +
			"conditions under an all/any match mode.",
	}

	rulesRoot.AddCommand(
		rulesListCmd(),
		rulesGetCmd(),
	)

	return rulesRoot
}

func rulesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List a tenant's alert rules",
		Example: `  fwctl rules list --tenant acme
  fwctl rules list --tenant acme --output json`,
		RunE: func(_ *cobra.Command, _ []string) error {
			tenant, err := tenantID()
			if err != nil {
				return err
			}

			c := newClient()
			resp, err := c.ListRules(context.Background(), tenant)
			if err != nil {
				return err
			}
			if jsonOutput() {
				return outputJSON(resp)
			}
			if len(resp.Rules) == 0 {
				fmt.Println("No rules found.")
				return nil
			}
			return printRulesTable(resp.Rules)
		},
	}
}

func rulesGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "get <id>",
		Short:   "Show a single alert rule",
		Args:    cobra.ExactArgs(1),
		Example: `  fwctl rules get --tenant acme 9a2c7e4b-1f8d-4a6c-8e3b-5d0f9b2a7c41`,
		RunE: func(_ *cobra.Command, args []string) error {
			tenant, err := tenantID()
			if err != nil {
				return err
			}

			c := newClient()
			rule, err := c.GetRule(context.Background(), tenant, args[0])
			if err != nil {
				return err
			}
			if jsonOutput() {
				return outputJSON(rule)
			}
			return printRuleDetail(rule)
		},
	}
}
