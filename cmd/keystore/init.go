package keystore

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github/chapool/ledger-signer/internal/util"
	"github/chapool/ledger-signer/internal/util/command"
	"github/chapool/ledger-signer/internal/wallet"
	keystoresvc "github/chapool/ledger-signer/internal/wallet/keystore"
)

const importFlag = "import"

func newInit() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Creates the encrypted keystore of the software emulator",
		Long: `Generates a new 24 word BIP39 mnemonic, or imports one from stdin with --import,
and stores it encrypted at emulator.keystore_path. The emulator signs with keys derived
from this mnemonic when emulator.enabled is set.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := command.LoadConfig(cmd)
			if err != nil {
				return err
			}

			util.ConfigureGlobalLogger(cfg.Logger.Level, cfg.Logger.PrettyPrintConsole)

			importMnemonic, err := cmd.Flags().GetBool(importFlag)
			if err != nil {
				return err
			}

			var mnemonic string
			if importMnemonic {
				fmt.Fprint(cmd.ErrOrStderr(), "Enter mnemonic: ")
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return errors.Wrap(err, "failed to read mnemonic")
				}
				mnemonic = strings.Join(strings.Fields(line), " ")
			}

			ks, err := keystoresvc.NewService(cfg.Emulator.KeystorePath)
			if err != nil {
				return err
			}

			password := wallet.TerminalPassword()
			if cfg.Emulator.Password != "" {
				password = wallet.StaticPassword(cfg.Emulator.Password)
			}

			created, err := wallet.CreateKeystore(cmd.Context(), ks, mnemonic, password)
			if err != nil {
				return err
			}

			if !importMnemonic {
				fmt.Fprintln(cmd.ErrOrStderr(), "Write down the mnemonic and keep it safe:")
				fmt.Fprintln(cmd.OutOrStdout(), created)
			}

			return nil
		},
	}

	cmd.Flags().Bool(importFlag, false, "Read an existing mnemonic from stdin")

	return cmd
}
