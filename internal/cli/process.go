package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/BrandonDHaskell/gymaccess/internal/access/service"
)

func newProcessCmd(opts *options) *cobra.Command {
	var branchID string

	cmd := &cobra.Command{
		Use:   "process",
		Short: "Process pending access events into attendance",
		Long: `Run the event processor once.

With --branch only that branch's pending events are processed. Without it
every branch that has pending events is swept.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := buildApp(ctx, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			if branchID != "" {
				n, err := a.processor.ProcessEvents(ctx, branchID)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s: processed %d events\n", branchID, n)
				return nil
			}

			sweeper := service.NewProcessingSweeper(a.events, a.processor, 0, opts.log)
			n := sweeper.SweepOnce(ctx)
			fmt.Fprintf(out, "processed %d events\n", n)
			return nil
		},
	}

	cmd.Flags().StringVar(&branchID, "branch", "", "branch (tenant) id")
	return cmd
}
