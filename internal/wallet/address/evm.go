package address

import (
	"fmt"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"github.com/tyler-smith/go-bip32"
	"github/chapool/ledger-signer/internal/wallet"
)

// privateKeyLength is the length of a secp256k1 private key
const privateKeyLength = 32

// DerivePrivateKey derives a private key from seed and BIP44 path
// WARNING: Caller must clear the private key after use
func DerivePrivateKey(seed []byte, path string) ([]byte, error) {
	key, err := deriveKeyFromPath(seed, path)
	if err != nil {
		return nil, err
	}

	// crypto.ToECDSA requires exactly 32 bytes
	return common.LeftPadBytes(key.Key, privateKeyLength), nil
}

// DeriveAddress derives an EVM address from seed and BIP44 path
func DeriveAddress(seed []byte, path string) (common.Address, error) {
	privateKey, err := DerivePrivateKey(seed, path)
	if err != nil {
		return common.Address{}, errors.Wrap(err, "failed to derive private key")
	}

	// Clear private key after use
	defer func() {
		for i := range privateKey {
			privateKey[i] = 0
		}
	}()

	ecdsaPrivateKey, err := crypto.ToECDSA(privateKey)
	if err != nil {
		return common.Address{}, errors.Wrap(err, "failed to convert to ECDSA private key")
	}

	return crypto.PubkeyToAddress(ecdsaPrivateKey.PublicKey), nil
}

// DeriveExtendedPublicKey derives the compressed public key and chain code at path
func DeriveExtendedPublicKey(seed []byte, path string) (*wallet.ExtendedPublicKey, error) {
	key, err := deriveKeyFromPath(seed, path)
	if err != nil {
		return nil, err
	}

	public := key.PublicKey()

	return &wallet.ExtendedPublicKey{
		PublicKey: common.CopyBytes(public.Key),
		ChainCode: common.CopyBytes(public.ChainCode),
	}, nil
}

// DeriveChildAddress derives the address of a non-hardened child of an extended public key
func DeriveChildAddress(parent *wallet.ExtendedPublicKey, index uint32) (common.Address, error) {
	if index >= bip32.FirstHardenedChild {
		return common.Address{}, fmt.Errorf("cannot derive hardened child %d from a public key", index)
	}

	key := &bip32.Key{
		Version:     bip32.PublicWalletVersion,
		ChildNumber: []byte{0, 0, 0, 0},
		FingerPrint: []byte{0, 0, 0, 0},
		ChainCode:   parent.ChainCode,
		Key:         parent.PublicKey,
		IsPrivate:   false,
	}

	child, err := key.NewChildKey(index)
	if err != nil {
		return common.Address{}, errors.Wrapf(err, "failed to derive child key at index %d", index)
	}

	pub, err := crypto.DecompressPubkey(child.Key)
	if err != nil {
		return common.Address{}, errors.Wrap(err, "failed to decompress child public key")
	}

	return crypto.PubkeyToAddress(*pub), nil
}

// deriveKeyFromPath derives a key from BIP44 path
// Path format: m/44'/60'/0'/0/{index}
func deriveKeyFromPath(seed []byte, path string) (*bip32.Key, error) {
	indices, err := ParsePath(path)
	if err != nil {
		return nil, err
	}

	masterKey, err := bip32.NewMasterKey(seed)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create master key")
	}

	// Derive key step by step
	key := masterKey
	for _, index := range indices {
		key, err = key.NewChildKey(index)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to derive child key at index %d", index)
		}
	}

	return key, nil
}

// ParsePath parses an absolute BIP44 path string into indices
// Example: "m/44'/60'/0'/0/0" -> [2147483692, 2147483708, 2147483648, 0, 0]
func ParsePath(path string) (accounts.DerivationPath, error) {
	if len(path) == 0 || path[0] != 'm' {
		return nil, fmt.Errorf("invalid BIP44 path: %q", path)
	}

	indices, err := accounts.ParseDerivationPath(path)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid BIP44 path %q", path)
	}

	return indices, nil
}
