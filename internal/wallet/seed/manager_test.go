package seed_test

import (
	"encoding/hex"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github/chapool/ledger-signer/internal/wallet/seed"
)

const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

// BIP39 test vector for testMnemonic and the empty passphrase
const testSeedPrefix = "5eb00bbddcf069084889a8ab9155568165f5c453ccb85e70811aaed6f6da5fc1"

func seedHex(t *testing.T, m seed.Manager) string {
	t.Helper()

	var out string
	require.NoError(t, m.Use(func(s []byte) error {
		out = hex.EncodeToString(s)
		return nil
	}))

	return out
}

func TestManagerLifecycle(t *testing.T) {
	m := seed.NewManager()
	assert.False(t, m.IsInitialized())
	require.ErrorIs(t, m.Use(func([]byte) error { return nil }), seed.ErrLocked)

	require.NoError(t, m.Initialize(testMnemonic, ""))
	assert.True(t, m.IsInitialized())

	got := seedHex(t, m)
	assert.Len(t, got, 128)
	assert.Equal(t, testSeedPrefix, got[:64])

	m.Clear()
	assert.False(t, m.IsInitialized())
	require.ErrorIs(t, m.Use(func([]byte) error { return nil }), seed.ErrLocked)
}

func TestManagerClearWipesLentSeed(t *testing.T) {
	m := seed.NewManager()
	require.NoError(t, m.Initialize(testMnemonic, ""))

	var leaked []byte
	require.NoError(t, m.Use(func(s []byte) error {
		leaked = s
		return nil
	}))

	m.Clear()
	assert.Equal(t, make([]byte, 64), leaked)
}

func TestManagerUsePassesErrors(t *testing.T) {
	m := seed.NewManager()
	require.NoError(t, m.Initialize(testMnemonic, ""))

	boom := errors.New("boom")
	require.ErrorIs(t, m.Use(func([]byte) error { return boom }), boom)
}

func TestManagerPassphraseChangesSeed(t *testing.T) {
	plain := seed.NewManager()
	require.NoError(t, plain.Initialize(testMnemonic, ""))

	protected := seed.NewManager()
	require.NoError(t, protected.Initialize(testMnemonic, "TREZOR"))

	assert.NotEqual(t, seedHex(t, plain), seedHex(t, protected))
}

func TestManagerRejectsInvalidMnemonic(t *testing.T) {
	m := seed.NewManager()

	err := m.Initialize("abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon", "")
	require.Error(t, err)
	assert.False(t, m.IsInitialized())
}

func TestManagerConcurrentUse(t *testing.T) {
	m := seed.NewManager()
	require.NoError(t, m.Initialize(testMnemonic, ""))

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = m.Use(func(s []byte) error {
				assert.Len(t, s, 64)
				return nil
			})
		}()
	}
	m.Clear()
	wg.Wait()
}
