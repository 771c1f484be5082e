package cmd

import (
	"context"

	"github.com/spf13/cobra"
)

func systemCmd() *cobra.Command {
	systemRoot := &cobra.Command{
		Use:   "system",
		Short: "View system state",
	}

	systemRoot.AddCommand(&cobra.Command{
		Use:     "state",
		Short:   "Show aggregate system counts",
		Example: `  fwctl system state`,
		RunE: func(_ *cobra.Command, _ []string) error {
			c := newClient()
			state, err := c.GetSystemState(context.Background())
			if err != nil {
				return err
			}
			if jsonOutput() {
				return outputJSON(state)
			}
			return printSystemState(state)
		},
	})

	return systemRoot
}
