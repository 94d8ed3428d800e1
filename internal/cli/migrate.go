package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/BrandonDHaskell/gymaccess/internal/db"
)

func newMigrateCmd(opts *options) *cobra.Command {
	var seed bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Long: `Apply every pending schema migration to the configured database.

With --seed the demo branch, members and an inactive credential are inserted
as well, regardless of GYMACCESS_ENV.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			// Open migrates, and seeds in dev.
			conn, err := db.Open(ctx, db.Config{Path: opts.cfg.DBPath, Env: "prod"})
			if err != nil {
				return err
			}
			defer conn.Close()

			if seed {
				if err := db.SeedDev(ctx, conn); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "database ready: %s\n", opts.cfg.DBPath)
			return nil
		},
	}

	cmd.Flags().BoolVar(&seed, "seed", false, "insert demo data after migrating")
	return cmd
}
