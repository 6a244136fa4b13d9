package wallet

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// TransactionRequest represents a legacy (pre EIP-2718) transaction to be signed by the device
type TransactionRequest struct {
	From     string       `json:"from"`     // Signing address (hex string with 0x prefix)
	To       string       `json:"to"`       // Recipient address, empty for contract creation
	Value    *uint256.Int `json:"value"`    // Amount in wei, nil means zero
	Data     []byte       `json:"data"`     // Transaction data (for contract calls)
	Nonce    uint64       `json:"nonce"`    // Transaction nonce
	GasPrice *uint256.Int `json:"gasPrice"` // Gas price in wei, nil means zero
	GasLimit uint64       `json:"gasLimit"` // Gas limit
}

// DerivedKeyInfo couples a derivation path with the address the device derives for it
type DerivedKeyInfo struct {
	DerivationPath string         // BIP44 derivation path (e.g., "m/44'/60'/0'/0/0")
	Address        common.Address // Address derived at DerivationPath
}

// DeviceSignature is the signature as returned over the device transport.
// Only the low byte of the recovery value survives the transport.
type DeviceSignature struct {
	VPartial byte
	R        [32]byte
	S        [32]byte
}

// Signature is a replay protected (EIP-155) signature with the full recovery value
type Signature struct {
	V uint64
	R [32]byte
	S [32]byte
}

// ExtendedPublicKey is a compressed secp256k1 public key together with its BIP32 chain code
type ExtendedPublicKey struct {
	PublicKey []byte // 33 byte compressed public key
	ChainCode []byte // 32 byte chain code
}
