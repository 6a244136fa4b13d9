package cmd

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github/chapool/ledger-signer/cmd/accounts"
	"github/chapool/ledger-signer/cmd/env"
	"github/chapool/ledger-signer/cmd/keystore"
	"github/chapool/ledger-signer/cmd/probe"
	"github/chapool/ledger-signer/cmd/sign"
	"github/chapool/ledger-signer/internal/config"
	"github/chapool/ledger-signer/internal/util/command"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Version: config.GetFormattedBuildArgs(),
	Use:     "ledger-signer",
	Short:   config.ModuleName,
	Long: fmt.Sprintf(`%v

Signs legacy Ethereum transactions with EIP-155 replay protection on a Ledger device.
Requires configuration through ENV (LEDGER_SIGNER_*), a .env file or --config.`, config.ModuleName),
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	rootCmd.PersistentFlags().String(command.ConfigFlag, "", "Config file (yaml or toml)")

	// attach the subcommands
	rootCmd.AddCommand(
		accounts.New(),
		env.New(),
		keystore.New(),
		probe.New(),
		sign.New(),
	)

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("Failed to execute root command")
		os.Exit(1)
	}
}
