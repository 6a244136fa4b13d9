package signer

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github/chapool/ledger-signer/internal/wallet"
)

// SigningBackend signs transactions on behalf of a wallet provider
type SigningBackend interface {
	// SignTransaction signs req and returns the 0x-prefixed lowercase hex encoding
	// of the signed transaction
	SignTransaction(ctx context.Context, req *wallet.TransactionRequest) (string, error)
}

// Service provides hardware backed transaction signing
type Service interface {
	SigningBackend

	// SignTransactionResult signs req and returns the encoding together with the
	// repaired signature and the transaction hash
	SignTransactionResult(ctx context.Context, req *wallet.TransactionRequest) (*SignResponse, error)

	// Accounts lists the first count addresses in resolver search order
	Accounts(ctx context.Context, count int) ([]wallet.DerivedKeyInfo, error)
}

// SignResponse represents a signed legacy transaction
type SignResponse struct {
	RawTransaction []byte                // RLP-encoded signed transaction
	Hex            string                // RawTransaction as 0x-prefixed lowercase hex
	Signature      wallet.Signature      // Repaired EIP-155 signature
	TxHash         common.Hash           // Keccak256 of RawTransaction
	Key            wallet.DerivedKeyInfo // Key the device signed with
}
