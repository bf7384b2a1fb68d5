package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var errWipeNotConfirmed = errors.New("refusing to wipe without --yes")

func newWipeCmd(opts *rootOptions) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "wipe",
		Short: "Delete every auth account and every document in every collection",
		Long: "Deletes all authentication accounts (1000 per page) and then every document of every\n" +
			"top-level collection (500 per batch). This cannot be undone.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errWipeNotConfirmed
			}
			services, logger, err := opts.connect(cmd)
			if err != nil {
				return err
			}
			defer services.Close()

			wiper, err := services.Wiper()
			if err != nil {
				return err
			}
			report, err := wiper.Run(cmd.Context())
			if err != nil {
				logger.Error().Err(err).Msg("wipe aborted")
				if report != nil {
					_ = printJSON(cmd.OutOrStdout(), report)
				}
				return fmt.Errorf("wipe failed: %w", err)
			}
			logger.Info().Int("auth_users", report.AuthUsersDeleted).Msg("wipe complete")
			return printJSON(cmd.OutOrStdout(), report)
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm the irreversible wipe")
	return cmd
}
