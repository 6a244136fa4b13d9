package env

import (
	"encoding/json"
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github/chapool/ledger-signer/internal/util/command"
)

const formatFlag = "format"

func New() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "env",
		Short: "Prints the effective configuration",
		Long: `Prints the configuration resulting from defaults, the optional config
file and LEDGER_SIGNER_* environment variables. Secrets are omitted.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := command.LoadConfig(cmd)
			if err != nil {
				return err
			}

			format, err := cmd.Flags().GetString(formatFlag)
			if err != nil {
				return err
			}

			switch format {
			case "json":
				out, err := json.MarshalIndent(cfg, "", "  ")
				if err != nil {
					return errors.Wrap(err, "failed to encode config")
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(out))
			case "toml":
				cfg.Emulator.Password = ""
				cfg.Emulator.Passphrase = ""
				if err := toml.NewEncoder(cmd.OutOrStdout()).Encode(cfg); err != nil {
					return errors.Wrap(err, "failed to encode config")
				}
			default:
				return errors.Errorf("unknown format %q", format)
			}

			return nil
		},
	}

	cmd.Flags().String(formatFlag, "json", "Output format, json or toml")

	return cmd
}
