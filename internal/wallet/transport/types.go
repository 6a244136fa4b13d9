package transport

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github/chapool/ledger-signer/internal/wallet"
)

var (
	// ErrTransport is matched by every device communication failure
	ErrTransport = errors.New("transport error")

	// ErrSessionClosed is returned for any call on a session after Close
	ErrSessionClosed = &Error{Op: "session", Err: errors.New("session already closed")}

	// ErrUserRejected is returned when the user declines the request on the device
	ErrUserRejected = &Error{Op: "sign", Err: errors.New("request rejected on device")}

	// ErrDeviceNotFound is returned by Open when no device is connected
	ErrDeviceNotFound = &Error{Op: "open", Err: errors.New("no signing device found")}
)

// Transport opens exclusive sessions to a signing device
type Transport interface {
	// Open establishes a connection to the device. Every successful Open must be
	// paired with exactly one Session.Close, see WithSession.
	Open(ctx context.Context) (Session, error)
}

// Session is a single-use connection to a signing device
type Session interface {
	// DeriveAddress returns the address the device derives for path
	DeriveAddress(ctx context.Context, path string) (common.Address, error)

	// PublicKey returns the extended public key at path
	PublicKey(ctx context.Context, path string) (*wallet.ExtendedPublicKey, error)

	// SignTransaction asks the device to sign the hex encoded unsigned transaction
	// with the key at path
	SignTransaction(ctx context.Context, path string, unsignedHex string) (wallet.DeviceSignature, error)

	// Close releases the device
	Close() error
}

// Error is a device communication failure. It matches ErrTransport with errors.Is.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports ErrTransport as a match so that callers can test the error kind
func (e *Error) Is(target error) bool {
	return target == ErrTransport
}

// Wrap marks err as a transport failure of op. Errors that already are transport
// failures are returned unchanged.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrTransport) {
		return err
	}
	return &Error{Op: op, Err: err}
}
