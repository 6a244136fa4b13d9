package sign

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github/chapool/ledger-signer/internal/app"
	"github/chapool/ledger-signer/internal/util/command"
	"github/chapool/ledger-signer/internal/wallet"
)

const (
	fromFlag     = "from"
	toFlag       = "to"
	valueFlag    = "value"
	dataFlag     = "data"
	nonceFlag    = "nonce"
	gasPriceFlag = "gas-price"
	gasLimitFlag = "gas-limit"
	fileFlag     = "file"
	jsonFlag     = "json"
)

// requestFile is the JSON form of a transaction request
type requestFile struct {
	From     string        `json:"from"`
	To       string        `json:"to"`
	Value    string        `json:"value"`
	Data     hexutil.Bytes `json:"data"`
	Nonce    uint64        `json:"nonce"`
	GasPrice string        `json:"gasPrice"`
	GasLimit uint64        `json:"gasLimit"`
}

type signOutput struct {
	Raw            string `json:"raw"`
	Hash           string `json:"hash"`
	V              uint64 `json:"v"`
	R              string `json:"r"`
	S              string `json:"s"`
	From           string `json:"from"`
	DerivationPath string `json:"derivationPath"`
}

func New() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Signs a legacy transaction on the device",
		Long: `Signs a legacy transaction with EIP-155 replay protection for the
configured chain id and prints the signed transaction as 0x-prefixed hex.

The transaction is given either through flags or as a JSON file (--file, "-" for stdin)
with the fields from, to, value, data, nonce, gasPrice and gasLimit.
Amounts are decimal or 0x-prefixed hex wei.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := command.LoadConfig(cmd)
			if err != nil {
				return err
			}

			req, err := requestFromFlags(cmd)
			if err != nil {
				return err
			}

			asJSON, err := cmd.Flags().GetBool(jsonFlag)
			if err != nil {
				return err
			}

			return command.WithSigner(cmd.Context(), cfg, func(ctx context.Context, a *app.App) error {
				if !asJSON {
					signed, err := a.Signer.SignTransaction(ctx, req)
					if err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), signed)
					return nil
				}

				res, err := a.Signer.SignTransactionResult(ctx, req)
				if err != nil {
					return err
				}

				out, err := json.MarshalIndent(signOutput{
					Raw:            res.Hex,
					Hash:           res.TxHash.Hex(),
					V:              res.Signature.V,
					R:              hexutil.Encode(res.Signature.R[:]),
					S:              hexutil.Encode(res.Signature.S[:]),
					From:           res.Key.Address.Hex(),
					DerivationPath: res.Key.DerivationPath,
				}, "", "  ")
				if err != nil {
					return errors.Wrap(err, "failed to encode result")
				}

				fmt.Fprintln(cmd.OutOrStdout(), string(out))
				return nil
			})
		},
	}

	cmd.Flags().String(fromFlag, "", "Signing address")
	cmd.Flags().String(toFlag, "", "Recipient address, empty for contract creation")
	cmd.Flags().String(valueFlag, "0", "Amount in wei")
	cmd.Flags().String(dataFlag, "", "0x-prefixed hex call data")
	cmd.Flags().Uint64(nonceFlag, 0, "Transaction nonce")
	cmd.Flags().String(gasPriceFlag, "0", "Gas price in wei")
	cmd.Flags().Uint64(gasLimitFlag, 21000, "Gas limit")
	cmd.Flags().StringP(fileFlag, "f", "", "Read the transaction from a JSON file, - for stdin")
	cmd.Flags().Bool(jsonFlag, false, "Print hash, signature and key next to the raw transaction")

	return cmd
}

func requestFromFlags(cmd *cobra.Command) (*wallet.TransactionRequest, error) {
	flags := cmd.Flags()

	file, err := flags.GetString(fileFlag)
	if err != nil {
		return nil, err
	}
	if file != "" {
		return requestFromFile(cmd, file)
	}

	var rf requestFile
	if rf.From, err = flags.GetString(fromFlag); err != nil {
		return nil, err
	}
	if rf.To, err = flags.GetString(toFlag); err != nil {
		return nil, err
	}
	if rf.Value, err = flags.GetString(valueFlag); err != nil {
		return nil, err
	}
	if rf.GasPrice, err = flags.GetString(gasPriceFlag); err != nil {
		return nil, err
	}

	if rf.Nonce, err = flags.GetUint64(nonceFlag); err != nil {
		return nil, err
	}

	if rf.GasLimit, err = flags.GetUint64(gasLimitFlag); err != nil {
		return nil, err
	}

	data, err := flags.GetString(dataFlag)
	if err != nil {
		return nil, err
	}
	if data != "" {
		if rf.Data, err = hexutil.Decode(data); err != nil {
			return nil, errors.Wrap(err, "invalid --data")
		}
	}

	return rf.request()
}

func requestFromFile(cmd *cobra.Command, file string) (*wallet.TransactionRequest, error) {
	var (
		raw []byte
		err error
	)
	if file == "-" {
		raw, err = io.ReadAll(cmd.InOrStdin())
	} else {
		raw, err = os.ReadFile(file)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", file)
	}

	var rf requestFile
	if err := json.Unmarshal(raw, &rf); err != nil {
		return nil, errors.Wrap(err, "failed to decode transaction JSON")
	}

	return rf.request()
}

func (rf requestFile) request() (*wallet.TransactionRequest, error) {
	value, err := parseAmount(rf.Value)
	if err != nil {
		return nil, errors.Wrap(err, "invalid value")
	}

	gasPrice, err := parseAmount(rf.GasPrice)
	if err != nil {
		return nil, errors.Wrap(err, "invalid gas price")
	}

	return &wallet.TransactionRequest{
		From:     rf.From,
		To:       rf.To,
		Value:    value,
		Data:     rf.Data,
		Nonce:    rf.Nonce,
		GasPrice: gasPrice,
		GasLimit: rf.GasLimit,
	}, nil
}

// parseAmount accepts decimal or 0x-prefixed hex. Empty means zero.
func parseAmount(s string) (*uint256.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return new(uint256.Int), nil
	}

	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return uint256.FromHex(s)
	}

	return uint256.FromDecimal(s)
}
