package accounts

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github/chapool/ledger-signer/internal/app"
	"github/chapool/ledger-signer/internal/util/command"
)

const countFlag = "count"

func New() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "Lists the addresses of the device in resolver search order",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := command.LoadConfig(cmd)
			if err != nil {
				return err
			}

			count, err := cmd.Flags().GetInt(countFlag)
			if err != nil {
				return err
			}

			return command.WithSigner(cmd.Context(), cfg, func(ctx context.Context, a *app.App) error {
				accounts, err := a.Signer.Accounts(ctx, count)
				if err != nil {
					return err
				}

				for _, account := range accounts {
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", account.DerivationPath, account.Address.Hex())
				}

				return nil
			})
		},
	}

	cmd.Flags().IntP(countFlag, "n", 5, "Number of accounts to list")

	return cmd
}
