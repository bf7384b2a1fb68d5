package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Kirk-Client/Kirk-Site/pkg/accounts"
)

func newUsersCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Repair user documents",
	}
	cmd.AddCommand(newReconcileCmd(opts))
	cmd.AddCommand(newEnsureCmd(opts))
	return cmd
}

func newReconcileCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Create documents for every auth account that lacks one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			services, logger, err := opts.connect(cmd)
			if err != nil {
				return err
			}
			defer services.Close()

			svc, err := services.Accounts()
			if err != nil {
				return err
			}
			report, err := svc.ReconcileUsers(cmd.Context())
			if err != nil {
				return err
			}
			logger.Info().
				Int("total", report.TotalUsers).
				Int("created", report.Created).
				Msg("reconcile complete")
			return printJSON(cmd.OutOrStdout(), report)
		},
	}
}

func newEnsureCmd(opts *rootOptions) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "ensure",
		Short: "Create documents for the listed accounts",
		Long: "Reads a JSON array of {\"uid\", \"email\", \"displayName\"} objects from --file\n" +
			"(\"-\" for stdin) and creates a document for each account that lacks one.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			users, err := readAuthUsers(cmd.InOrStdin(), file)
			if err != nil {
				return err
			}
			services, _, err := opts.connect(cmd)
			if err != nil {
				return err
			}
			defer services.Close()

			svc, err := services.Accounts()
			if err != nil {
				return err
			}
			report, err := svc.EnsureAccounts(cmd.Context(), users)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), report)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "-", "JSON file of accounts, or - for stdin")
	return cmd
}

func readAuthUsers(stdin io.Reader, path string) ([]accounts.AuthUser, error) {
	r := stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	var users []accounts.AuthUser
	if err := json.NewDecoder(r).Decode(&users); err != nil {
		return nil, fmt.Errorf("invalid accounts file: %w", err)
	}
	if len(users) == 0 {
		return nil, fmt.Errorf("no accounts listed")
	}
	return users, nil
}
