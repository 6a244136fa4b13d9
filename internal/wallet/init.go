package wallet

import (
	"context"
	"fmt"
	"os"

	"github/chapool/ledger-signer/internal/wallet/keystore"
	"github/chapool/ledger-signer/internal/wallet/seed"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/tyler-smith/go-bip39"
	"golang.org/x/term"
)

const (
	// minPasswordLength is the minimal keystore password length
	minPasswordLength = 8
	// mnemonicEntropyBits yields a 24 word mnemonic
	mnemonicEntropyBits = 256
)

// PasswordFunc supplies the keystore password
type PasswordFunc func(prompt string) (string, error)

// StaticPassword returns a PasswordFunc that always yields password
func StaticPassword(password string) PasswordFunc {
	return func(string) (string, error) {
		return password, nil
	}
}

// TerminalPassword reads the password from the terminal without echo
func TerminalPassword() PasswordFunc {
	return promptPassword
}

// CreateKeystore generates a new BIP39 mnemonic (unless one is given) and stores it
// encrypted in the keystore. The mnemonic is returned so it can be backed up.
func CreateKeystore(ctx context.Context, keystoreService keystore.Service, mnemonic string, password PasswordFunc) (string, error) {
	log := log.With().Str("component", "keystore_init").Logger()

	exists, err := keystoreService.Exists(ctx)
	if err != nil {
		return "", errors.Wrap(err, "failed to check keystore existence")
	}
	if exists {
		return "", keystore.ErrKeystoreExists
	}

	if mnemonic == "" {
		log.Info().Msg("Generating new mnemonic...")

		entropy, err := bip39.NewEntropy(mnemonicEntropyBits)
		if err != nil {
			return "", errors.Wrap(err, "failed to generate entropy")
		}

		mnemonic, err = bip39.NewMnemonic(entropy)
		if err != nil {
			return "", errors.Wrap(err, "failed to generate mnemonic")
		}
	} else if !bip39.IsMnemonicValid(mnemonic) {
		return "", errors.New("invalid mnemonic")
	}

	pass, err := password(fmt.Sprintf("Enter password for keystore (min %d characters): ", minPasswordLength))
	if err != nil {
		return "", errors.Wrap(err, "failed to read password")
	}

	if len(pass) < minPasswordLength {
		return "", errors.Errorf("password must be at least %d characters", minPasswordLength)
	}

	confirm, err := password("Confirm password: ")
	if err != nil {
		return "", errors.Wrap(err, "failed to read password confirmation")
	}

	if pass != confirm {
		return "", errors.New("passwords do not match")
	}

	if _, err := keystoreService.CreateKeystore(ctx, mnemonic, pass); err != nil {
		return "", errors.Wrap(err, "failed to create keystore")
	}

	log.Info().Msg("Keystore created successfully")

	return mnemonic, nil
}

// UnlockKeystore decrypts the keystore and initializes the seed manager with its mnemonic
func UnlockKeystore(ctx context.Context, seedManager seed.Manager, keystoreService keystore.Service, password PasswordFunc, passphrase string) error {
	log := log.With().Str("component", "keystore_unlock").Logger()

	exists, err := keystoreService.Exists(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to check keystore existence")
	}
	if !exists {
		return errors.New("keystore not found, create one with `keystore init`")
	}

	log.Info().Msg("Keystore found. Please enter password to unlock...")

	pass, err := password("Enter keystore password: ")
	if err != nil {
		return errors.Wrap(err, "failed to read password")
	}

	//nolint:varnamelen // ks is a common abbreviation for keystore
	ks, err := keystoreService.GetKeystore(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to get keystore")
	}

	mnemonic, err := keystoreService.DecryptMnemonic(ctx, ks, pass)
	if err != nil {
		return errors.Wrap(err, "failed to decrypt keystore (invalid password?)")
	}

	if err := seedManager.Initialize(mnemonic, passphrase); err != nil {
		return errors.Wrap(err, "failed to initialize seed manager")
	}

	log.Info().Msg("Seed manager initialized successfully")

	return nil
}

// promptPassword prompts for password input (hides input)
//
//nolint:forbidigo // Password input requires direct terminal I/O
func promptPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)

	// Read password from terminal (hides input)
	passwordBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
	if err != nil {
		return "", errors.Wrap(err, "failed to read password from terminal")
	}

	fmt.Fprintln(os.Stderr) // New line after password input

	return string(passwordBytes), nil
}
