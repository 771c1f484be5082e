package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func evaluateCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "evaluate",
		Short:   "Trigger an immediate evaluation pass",
		Example: `  fwctl evaluate`,
		RunE: func(_ *cobra.Command, _ []string) error {
			c := newClient()
			status, err := c.Evaluate(context.Background())
			if err != nil {
				return err
			}
			fmt.Println(status)
			return nil
		},
	}
}

func sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "sweep",
		Short:   "Trigger an immediate heartbeat sweep",
		Example: `  fwctl sweep`,
		RunE: func(_ *cobra.Command, _ []string) error {
			c := newClient()
			affected, err := c.HeartbeatSweep(context.Background())
			if err != nil {
				return err
			}
			fmt.Printf("heartbeat sweep completed, %d alerts affected\n", affected)
			return nil
		},
	}
}
