package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func newSyncCmd(opts *options) *cobra.Command {
	var (
		memberID string
		branchID string
		all      bool
	)

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Push member door privileges to the access-control system",
		Long: `Re-derive and push the door privileges of one member, or of every member
of a branch.

Examples:
  gymaccess sync --member member-001 --branch branch-main
  gymaccess sync --branch branch-main --all`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if branchID == "" {
				return errors.New("--branch is required")
			}
			if all == (memberID != "") {
				return errors.New("exactly one of --member or --all is required")
			}

			ctx := cmd.Context()
			a, err := buildApp(ctx, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			if all {
				report, err := a.sync.SyncBranch(ctx, branchID)
				if err != nil {
					return err
				}
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(report); err != nil {
					return err
				}
				if report.Failed > 0 {
					return fmt.Errorf("%d of %d members failed to sync", report.Failed, report.Total)
				}
				return nil
			}

			ok, err := a.sync.SyncMemberAccess(ctx, memberID, branchID)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("sync of %s to %s failed; see logs", memberID, branchID)
			}
			fmt.Fprintf(out, "synced %s to %s\n", memberID, branchID)
			return nil
		},
	}

	cmd.Flags().StringVar(&memberID, "member", "", "member id")
	cmd.Flags().StringVar(&branchID, "branch", "", "branch (tenant) id")
	cmd.Flags().BoolVar(&all, "all", false, "sync every member of the branch")
	return cmd
}
