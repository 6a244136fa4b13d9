package probe

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github/chapool/ledger-signer/internal/app"
	"github/chapool/ledger-signer/internal/util/command"
)

func newDevice() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "device",
		Short: "Checks that the signing device is reachable",
		Long: `Opens a session on the configured device, derives the first account
and closes the session again. Exits non-zero if the device cannot be used.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := command.LoadConfig(cmd)
			if err != nil {
				return err
			}

			verbose, err := cmd.Flags().GetBool(verboseFlag)
			if err != nil {
				log.Fatal().Err(err).Msg("Failed to parse args")
			}

			return command.WithSigner(cmd.Context(), cfg, func(ctx context.Context, a *app.App) error {
				accounts, err := a.Signer.Accounts(ctx, 1)
				if err != nil {
					return err
				}

				if verbose {
					for _, account := range accounts {
						fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", account.DerivationPath, account.Address.Hex())
					}
				}

				fmt.Fprintln(cmd.OutOrStdout(), "Device is ready")
				return nil
			})
		},
	}

	cmd.Flags().BoolP(verboseFlag, "v", false, "Show the first derived account")

	return cmd
}
