package keystore

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github/chapool/ledger-signer/internal/util"
)

var (
	// ErrInvalidPassword is returned when the keystore MAC does not match the password
	ErrInvalidPassword = errors.New("invalid password: MAC mismatch")

	// ErrKeystoreExists is returned when creating a keystore over an existing file
	ErrKeystoreExists = errors.New("keystore already exists")
)

// keystoreFileMode restricts the keystore file to its owner
const keystoreFileMode = 0o600

// Service provides keystore encryption and decryption functionality
type Service interface {
	// CreateKeystore creates and encrypts a mnemonic to keystore
	CreateKeystore(ctx context.Context, mnemonic string, password string) (*KeystoreJSON, error)

	// DecryptMnemonic decrypts mnemonic from keystore
	DecryptMnemonic(ctx context.Context, keystore *KeystoreJSON, password string) (string, error)

	// GetKeystore reads the keystore file
	GetKeystore(ctx context.Context) (*KeystoreJSON, error)

	// Exists checks if keystore exists
	Exists(ctx context.Context) (bool, error)
}

type service struct {
	path   string
	params *ScryptParams
}

// Option configures the keystore service
type Option func(*service)

// WithScryptParams overrides the scrypt parameters used for new keystores
func WithScryptParams(params *ScryptParams) Option {
	return func(s *service) {
		s.params = params
	}
}

// NewService creates a new KeystoreService storing its single keystore at path
//
//nolint:ireturn // Returning interface is intentional for dependency injection
func NewService(path string, opts ...Option) (Service, error) {
	if path == "" {
		return nil, errors.New("keystore path is required")
	}

	s := &service{
		path:   path,
		params: DefaultScryptParams(),
	}
	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// CreateKeystore creates and encrypts a mnemonic to keystore
func (s *service) CreateKeystore(ctx context.Context, mnemonic string, password string) (*KeystoreJSON, error) {
	log := util.LogFromContext(ctx)

	// Check if keystore already exists
	exists, err := s.Exists(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to check keystore existence")
	}
	if exists {
		return nil, errors.Wrap(ErrKeystoreExists, s.path)
	}

	// Encrypt mnemonic
	keystoreJSON, err := seal(mnemonic, password, s.params)
	if err != nil {
		log.Error().Err(err).Msg("Failed to encrypt mnemonic")
		return nil, errors.Wrap(err, "failed to encrypt mnemonic")
	}

	keystoreData, err := json.MarshalIndent(keystoreJSON, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal keystore JSON")
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return nil, errors.Wrap(err, "failed to create keystore directory")
	}

	// O_EXCL so that a concurrently created keystore is never overwritten
	file, err := os.OpenFile(s.path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, keystoreFileMode)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil, errors.Wrap(ErrKeystoreExists, s.path)
		}
		return nil, errors.Wrap(err, "failed to create keystore file")
	}
	defer file.Close()

	if _, err := file.Write(keystoreData); err != nil {
		log.Error().Err(err).Msg("Failed to write keystore")
		return nil, errors.Wrap(err, "failed to write keystore file")
	}

	log.Info().Str("path", s.path).Str("id", keystoreJSON.ID).Msg("Keystore created")

	return keystoreJSON, nil
}

// DecryptMnemonic decrypts mnemonic from keystore
func (s *service) DecryptMnemonic(ctx context.Context, keystore *KeystoreJSON, password string) (string, error) {
	log := util.LogFromContext(ctx)

	if keystore == nil {
		return "", errors.New("keystore is nil")
	}

	mnemonic, err := open(keystore, password)
	if err != nil {
		log.Error().Err(err).Msg("Failed to decrypt mnemonic")
		return "", errors.Wrap(err, "failed to decrypt mnemonic")
	}

	return mnemonic, nil
}

// GetKeystore reads the keystore file
func (s *service) GetKeystore(_ context.Context) (*KeystoreJSON, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read keystore file")
	}

	var keystoreJSON KeystoreJSON
	if err := json.Unmarshal(data, &keystoreJSON); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal keystore JSON")
	}

	return &keystoreJSON, nil
}

// Exists checks if keystore exists
func (s *service) Exists(_ context.Context) (bool, error) {
	_, err := os.Stat(s.path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}

	return false, errors.Wrap(err, "failed to stat keystore file")
}
