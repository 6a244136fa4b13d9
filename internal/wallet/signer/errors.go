package signer

import (
	"context"

	"github.com/pkg/errors"
	"github/chapool/ledger-signer/internal/wallet/address"
	"github/chapool/ledger-signer/internal/wallet/codec"
	"github/chapool/ledger-signer/internal/wallet/signature"
	"github/chapool/ledger-signer/internal/wallet/transport"
)

var (
	// ErrInvalidAddress is returned before any device activity when from is missing or malformed
	ErrInvalidAddress = address.ErrInvalidAddress

	// ErrKeyNotFound is returned when no searched path derives the from address
	ErrKeyNotFound = address.ErrKeyNotFound

	// ErrTransport is matched by every device communication failure
	ErrTransport = transport.ErrTransport

	// ErrFirmwareTooOld is returned when the device signature is not EIP-155 for the chain
	ErrFirmwareTooOld = signature.ErrFirmwareTooOld

	// ErrEncoding is returned for malformed transaction fields
	ErrEncoding = codec.ErrEncoding

	// ErrSenderMismatch is returned when the signed transaction does not recover to the from address
	ErrSenderMismatch = errors.New("signature does not recover to the signing address")
)

// Error kinds returned by Kind
const (
	KindNone           = "none"
	KindInvalidAddress = "invalid_address"
	KindKeyNotFound    = "key_not_found"
	KindFirmwareTooOld = "firmware_too_old"
	KindEncoding       = "encoding"
	KindSenderMismatch = "sender_mismatch"
	KindCanceled       = "canceled"
	KindUserRejected   = "user_rejected"
	KindTransport      = "transport"
	KindInternal       = "internal"
)

// Kind maps err to a stable name for logs and metric labels
func Kind(err error) string {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrInvalidAddress):
		return KindInvalidAddress
	case errors.Is(err, ErrKeyNotFound):
		return KindKeyNotFound
	case errors.Is(err, ErrFirmwareTooOld):
		return KindFirmwareTooOld
	case errors.Is(err, ErrEncoding):
		return KindEncoding
	case errors.Is(err, ErrSenderMismatch):
		return KindSenderMismatch
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	case errors.Is(err, transport.ErrUserRejected):
		return KindUserRejected
	case errors.Is(err, ErrTransport):
		return KindTransport
	default:
		return KindInternal
	}
}
