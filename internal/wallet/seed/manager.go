package seed

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/tyler-smith/go-bip39"
)

type manager struct {
	mu   sync.RWMutex
	seed []byte
}

// NewManager creates a locked seed manager
//
//nolint:ireturn // Returning interface is intentional for dependency injection
func NewManager() Manager {
	return &manager{}
}

// Initialize validates the mnemonic checksum and replaces any loaded seed
func (m *manager) Initialize(mnemonic string, passphrase string) error {
	// PBKDF2(mnemonic, "mnemonic" + passphrase, 2048, 64, SHA512)
	seed, err := bip39.NewSeedWithErrorChecking(mnemonic, passphrase)
	if err != nil {
		return errors.Wrap(err, "invalid mnemonic")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	wipe(m.seed)
	m.seed = seed

	return nil
}

// Use runs fn under the read lock, so Clear waits for running signers
func (m *manager) Use(fn func(seed []byte) error) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.seed == nil {
		return ErrLocked
	}

	return fn(m.seed)
}

func (m *manager) IsInitialized() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.seed != nil
}

func (m *manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	wipe(m.seed)
	m.seed = nil
}

func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
