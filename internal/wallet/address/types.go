package address

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github/chapool/ledger-signer/internal/wallet"
)

var (
	// ErrInvalidAddress is returned for a missing or malformed signing address
	ErrInvalidAddress = errors.New("from address missing or invalid")

	// ErrKeyNotFound is returned when no candidate path derives the requested address
	ErrKeyNotFound = errors.New("address not found on device")
)

// Source is the part of a device session the resolver needs
type Source interface {
	// DeriveAddress returns the address at path
	DeriveAddress(ctx context.Context, path string) (common.Address, error)

	// PublicKey returns the extended public key at path
	PublicKey(ctx context.Context, path string) (*wallet.ExtendedPublicKey, error)
}

// Iterator selects which path component the resolver increments
type Iterator string

const (
	// IteratorDefault increments the address index: m/44'/60'/0'/0/{i}
	IteratorDefault Iterator = "default"
	// IteratorLedgerLive increments the account: m/44'/60'/{i}'/0/0
	IteratorLedgerLive Iterator = "ledgerlive"
)

// Mode selects how candidate addresses are derived
type Mode string

const (
	// ModeDevice queries the device for every candidate path
	ModeDevice Mode = "device"
	// ModeExtendedKey fetches the parent extended public key once and derives candidates locally
	ModeExtendedKey Mode = "xpub"
)

const (
	// DefaultBasePath is the first candidate path
	DefaultBasePath = "m/44'/60'/0'/0/0"
	// DefaultSearchLimit is the number of candidate paths searched before giving up
	DefaultSearchLimit = 1000
)
