package wallet_test

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tyler-smith/go-bip39"
	"github/chapool/ledger-signer/internal/wallet"
	"github/chapool/ledger-signer/internal/wallet/keystore"
	"github/chapool/ledger-signer/internal/wallet/seed"
)

const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

func newKeystore(t *testing.T) keystore.Service {
	t.Helper()

	svc, err := keystore.NewService(filepath.Join(t.TempDir(), "keystore.json"), keystore.WithScryptParams(keystore.LightScryptParams()))
	require.NoError(t, err)

	return svc
}

// scriptedPasswords answers prompts in order
func scriptedPasswords(answers ...string) wallet.PasswordFunc {
	return func(string) (string, error) {
		if len(answers) == 0 {
			return "", errors.New("no more passwords")
		}
		next := answers[0]
		answers = answers[1:]
		return next, nil
	}
}

func TestCreateKeystoreImportsMnemonic(t *testing.T) {
	ctx := t.Context()
	ks := newKeystore(t)

	mnemonic, err := wallet.CreateKeystore(ctx, ks, testMnemonic, wallet.StaticPassword("correct horse"))
	require.NoError(t, err)
	assert.Equal(t, testMnemonic, mnemonic)

	seeds := seed.NewManager()
	require.NoError(t, wallet.UnlockKeystore(ctx, seeds, ks, wallet.StaticPassword("correct horse"), ""))
	assert.True(t, seeds.IsInitialized())
}

func TestCreateKeystoreGeneratesMnemonic(t *testing.T) {
	mnemonic, err := wallet.CreateKeystore(t.Context(), newKeystore(t), "", wallet.StaticPassword("correct horse"))
	require.NoError(t, err)

	assert.True(t, bip39.IsMnemonicValid(mnemonic))
	assert.Len(t, strings.Fields(mnemonic), 24)
}

func TestCreateKeystoreValidation(t *testing.T) {
	tests := []struct {
		name      string
		mnemonic  string
		passwords wallet.PasswordFunc
	}{
		{"invalid mnemonic", "abandon abandon abandon", wallet.StaticPassword("correct horse")},
		{"short password", testMnemonic, wallet.StaticPassword("short")},
		{"confirmation mismatch", testMnemonic, scriptedPasswords("correct horse", "correct hose")},
		{"prompt failure", testMnemonic, scriptedPasswords()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ks := newKeystore(t)

			_, err := wallet.CreateKeystore(t.Context(), ks, tt.mnemonic, tt.passwords)
			require.Error(t, err)

			exists, err := ks.Exists(t.Context())
			require.NoError(t, err)
			assert.False(t, exists)
		})
	}
}

func TestCreateKeystoreExisting(t *testing.T) {
	ctx := t.Context()
	ks := newKeystore(t)

	_, err := wallet.CreateKeystore(ctx, ks, testMnemonic, wallet.StaticPassword("correct horse"))
	require.NoError(t, err)

	_, err = wallet.CreateKeystore(ctx, ks, "", wallet.StaticPassword("correct horse"))
	require.ErrorIs(t, err, keystore.ErrKeystoreExists)
}

func TestUnlockKeystore(t *testing.T) {
	ctx := t.Context()

	t.Run("missing keystore", func(t *testing.T) {
		seeds := seed.NewManager()
		err := wallet.UnlockKeystore(ctx, seeds, newKeystore(t), wallet.StaticPassword("correct horse"), "")
		require.Error(t, err)
		assert.False(t, seeds.IsInitialized())
	})

	t.Run("wrong password", func(t *testing.T) {
		ks := newKeystore(t)
		_, err := wallet.CreateKeystore(ctx, ks, testMnemonic, wallet.StaticPassword("correct horse"))
		require.NoError(t, err)

		seeds := seed.NewManager()
		err = wallet.UnlockKeystore(ctx, seeds, ks, wallet.StaticPassword("battery staple"), "")
		require.ErrorIs(t, err, keystore.ErrInvalidPassword)
		assert.False(t, seeds.IsInitialized())
	})
}
