package keystore

import (
	"github.com/spf13/cobra"
	"github/chapool/ledger-signer/internal/util/command"
)

func New() *cobra.Command {
	return command.NewSubcommandGroup("keystore",
		newInit(),
	)
}
