package cli

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/BrandonDHaskell/gymaccess/internal/access/store"
)

func newCredentialCmd(opts *options) *cobra.Command {
	var (
		branchID  string
		baseURL   string
		appKey    string
		appSecret string
		inactive  bool
	)

	cmd := &cobra.Command{
		Use:   "set-credential",
		Short: "Create or replace a branch's vendor integration credential",
		Long: `Store the vendor API base URL and application key pair for a branch.

The running service picks the new credential up on its next token request;
any cached token for the old credential is discarded.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			branchID = strings.TrimSpace(branchID)
			baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
			if branchID == "" || baseURL == "" || appKey == "" || appSecret == "" {
				return errors.New("--branch, --base-url, --app-key and --app-secret are required")
			}

			ctx := cmd.Context()
			a, err := buildApp(ctx, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			err = a.creds.UpsertCredential(ctx, store.CredentialRecord{
				TenantID:  branchID,
				BaseURL:   baseURL,
				AppKey:    appKey,
				AppSecret: appSecret,
				IsActive:  !inactive,
				UpdatedAt: time.Now().UTC(),
			})
			if err != nil {
				return err
			}

			state := "active"
			if inactive {
				state = "inactive"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "credential for %s saved (%s)\n", branchID, state)
			return nil
		},
	}

	cmd.Flags().StringVar(&branchID, "branch", "", "branch (tenant) id")
	cmd.Flags().StringVar(&baseURL, "base-url", "", "vendor API base URL")
	cmd.Flags().StringVar(&appKey, "app-key", "", "vendor application key")
	cmd.Flags().StringVar(&appSecret, "app-secret", "", "vendor application secret")
	cmd.Flags().BoolVar(&inactive, "inactive", false, "store the credential disabled")
	return cmd
}
