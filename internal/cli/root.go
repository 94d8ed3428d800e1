// Package cli is the gymaccess command tree.
package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/BrandonDHaskell/gymaccess/internal/config"
	"github.com/BrandonDHaskell/gymaccess/internal/logging"
)

// options holds state shared by every subcommand.  It is filled in by the
// root command's PersistentPreRunE.
type options struct {
	cfg    config.Config
	log    logging.Logger
	dbPath string
	stderr io.Writer
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "gymaccess",
		Short: "Access-control integration for multi-branch gyms",
		Long: `gymaccess connects the gym membership system to Hikvision access-control
devices: it ingests door events, turns them into attendance and keeps
device-side person privileges in line with membership.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			opts.cfg = config.FromEnv()
			if opts.dbPath != "" {
				opts.cfg.DBPath = opts.dbPath
			}
			opts.stderr = cmd.ErrOrStderr()
			opts.log = logging.New(opts.stderr, opts.cfg.LogLevel, opts.cfg.LogFormat)
			return nil
		},
	}

	root.PersistentFlags().StringVar(&opts.dbPath, "db", "", "SQLite database path (overrides GYMACCESS_DB_PATH)")

	root.AddCommand(
		newServeCmd(opts),
		newMigrateCmd(opts),
		newProcessCmd(opts),
		newSyncCmd(opts),
		newCredentialCmd(opts),
		newIssueTokenCmd(opts),
	)
	return root
}

// Execute runs the command tree with os.Args.
func Execute(version string) error {
	root := newRootCmd()
	root.Version = version
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}
