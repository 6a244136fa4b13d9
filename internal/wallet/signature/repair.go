// Package signature reconstructs EIP-155 recovery values from the truncated
// signatures returned by Ledger-class devices.
//
// The Ethereum app computes v = chainID*2 + 35 + parity over four bytes, but the
// transport only carries the low byte. Once v no longer fits in a byte the low byte
// alone does not identify it, so the full value is recomputed from the configured
// chain id and validated against the byte the device returned.
package signature

import (
	"github.com/pkg/errors"
	"github/chapool/ledger-signer/internal/wallet"
	"github/chapool/ledger-signer/internal/wallet/chain"
)

// ErrFirmwareTooOld is returned when the device byte cannot belong to an EIP-155
// signature for the configured chain. Old firmware signs without the chain id and
// returns 27/28.
var ErrFirmwareTooOld = errors.New("device firmware does not support this chain id")

// ParityBit returns the recovery parity encoded in the low byte of an EIP-155 v.
// chainID*2 + 35 is always odd, so an even low byte means parity 1.
func ParityBit(vPartial byte) uint64 {
	return uint64(^vPartial & 1)
}

// Repair rebuilds the full recovery value for resp and validates it against the
// byte the device returned. r and s are passed through unchanged.
func Repair(resp wallet.DeviceSignature, chainConfig chain.Config) (wallet.Signature, error) {
	v := chainConfig.EIP155Base() + ParityBit(resp.VPartial)

	if byte(v) != resp.VPartial {
		return wallet.Signature{}, errors.Wrapf(ErrFirmwareTooOld,
			"device returned v=0x%02x, expected low byte 0x%02x for chain %s", resp.VPartial, byte(v), chainConfig)
	}

	return wallet.Signature{
		V: v,
		R: resp.R,
		S: resp.S,
	}, nil
}

// RecoveryID returns the 0/1 recovery id of a repaired signature for chainConfig
func RecoveryID(sig wallet.Signature, chainConfig chain.Config) (byte, error) {
	base := chainConfig.EIP155Base()
	if sig.V < base || sig.V > base+1 {
		return 0, errors.Errorf("v=%d is not an EIP-155 value for chain %s", sig.V, chainConfig)
	}

	return byte(sig.V - base), nil
}

// Bytes returns the 65 byte [R || S || recovery id] form used by secp256k1 recovery
func Bytes(sig wallet.Signature, chainConfig chain.Config) ([]byte, error) {
	recID, err := RecoveryID(sig, chainConfig)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, 65)
	out = append(out, sig.R[:]...)
	out = append(out, sig.S[:]...)
	out = append(out, recID)

	return out, nil
}
