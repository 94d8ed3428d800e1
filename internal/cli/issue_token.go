package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/BrandonDHaskell/gymaccess/internal/auth"
)

func newIssueTokenCmd(opts *options) *cobra.Command {
	var (
		subject string
		role    string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "issue-token",
		Short: "Sign an admin API bearer token with GYMACCESS_JWT_SECRET",
		RunE: func(cmd *cobra.Command, _ []string) error {
			switch role {
			case auth.RoleAdmin, auth.RoleStaff:
			default:
				return fmt.Errorf("unsupported role %q (want %s or %s)", role, auth.RoleAdmin, auth.RoleStaff)
			}
			tok, err := auth.GenerateToken(subject, role, []byte(opts.cfg.JWTSecret), ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "cli", "token subject (account id)")
	cmd.Flags().StringVar(&role, "role", auth.RoleAdmin, "admin or staff")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	return cmd
}
