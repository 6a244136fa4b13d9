package seed

import "github.com/pkg/errors"

// ErrLocked is returned by Use before Initialize or after Clear
var ErrLocked = errors.New("seed is locked")

// Manager keeps the BIP39 seed of the software emulator in memory
type Manager interface {
	// Initialize derives the seed from mnemonic and the optional BIP39 passphrase
	Initialize(mnemonic string, passphrase string) error

	// Use lends the seed to fn. fn must not retain the slice.
	Use(fn func(seed []byte) error) error

	// IsInitialized reports whether a seed is loaded
	IsInitialized() bool

	// Clear wipes the seed
	Clear()
}
