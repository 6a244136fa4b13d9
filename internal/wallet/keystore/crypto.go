package keystore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/crypto/scrypt"
)

const (
	keystoreVersion = 3
	kdfName         = "scrypt"
	cipherName      = "aes-128-ctr"

	saltSize = 32
	ivSize   = aes.BlockSize

	// the derived key is split into an AES-128 key and a MAC key
	encryptionKeySize = 16
	minDerivedKeySize = 32
)

// sealedKey holds the two halves of an scrypt derived key
type sealedKey struct {
	encryption []byte
	mac        []byte
}

func deriveKey(password string, salt []byte, n, r, p, dkLen int) (*sealedKey, error) {
	if dkLen < minDerivedKeySize {
		return nil, errors.Errorf("unsupported derived key length %d", dkLen)
	}

	derived, err := scrypt.Key([]byte(password), salt, n, r, p, dkLen)
	if err != nil {
		return nil, errors.Wrap(err, "failed to derive key")
	}

	return &sealedKey{
		encryption: derived[:encryptionKeySize],
		mac:        derived[encryptionKeySize:minDerivedKeySize],
	}, nil
}

// checksum is Keccak256(mac key || ciphertext)
func (k *sealedKey) checksum(ciphertext []byte) []byte {
	return crypto.Keccak256(k.mac, ciphertext)
}

// xor runs AES-128-CTR over in; the mode is its own inverse
func (k *sealedKey) xor(iv, in []byte) ([]byte, error) {
	block, err := aes.NewCipher(k.encryption)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create cipher")
	}

	out := make([]byte, len(in))
	cipher.NewCTR(block, iv).XORKeyStream(out, in)

	return out, nil
}

// seal encrypts mnemonic into a keystore v3 document
//
//nolint:varnamelen // iv is a common abbreviation for initialization vector
func seal(mnemonic string, password string, params *ScryptParams) (*KeystoreJSON, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, errors.Wrap(err, "failed to generate salt")
	}

	iv := make([]byte, ivSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, errors.Wrap(err, "failed to generate IV")
	}

	key, err := deriveKey(password, salt, params.N, params.R, params.P, params.DKLen)
	if err != nil {
		return nil, err
	}

	ciphertext, err := key.xor(iv, []byte(mnemonic))
	if err != nil {
		return nil, err
	}

	ks := &KeystoreJSON{
		Version: keystoreVersion,
		ID:      uuid.New().String(),
	}
	ks.Crypto.Cipher = cipherName
	ks.Crypto.CipherParams.IV = hex.EncodeToString(iv)
	ks.Crypto.Ciphertext = hex.EncodeToString(ciphertext)
	ks.Crypto.KDF = kdfName
	ks.Crypto.KDFParams.DKLen = params.DKLen
	ks.Crypto.KDFParams.Salt = hex.EncodeToString(salt)
	ks.Crypto.KDFParams.N = params.N
	ks.Crypto.KDFParams.R = params.R
	ks.Crypto.KDFParams.P = params.P
	ks.Crypto.MAC = hex.EncodeToString(key.checksum(ciphertext))

	return ks, nil
}

// open decrypts the mnemonic of ks. A checksum mismatch means a wrong password.
//
//nolint:varnamelen // iv is a common abbreviation for initialization vector
func open(ks *KeystoreJSON, password string) (string, error) {
	if ks.Crypto.KDF != kdfName || ks.Crypto.Cipher != cipherName {
		return "", errors.Errorf("unsupported keystore kdf %q / cipher %q", ks.Crypto.KDF, ks.Crypto.Cipher)
	}

	fields := map[string]string{
		"salt":       ks.Crypto.KDFParams.Salt,
		"iv":         ks.Crypto.CipherParams.IV,
		"ciphertext": ks.Crypto.Ciphertext,
		"mac":        ks.Crypto.MAC,
	}
	decoded := make(map[string][]byte, len(fields))
	for name, value := range fields {
		raw, err := hex.DecodeString(value)
		if err != nil {
			return "", errors.Wrapf(err, "failed to decode %s", name)
		}
		decoded[name] = raw
	}

	if len(decoded["iv"]) != ivSize {
		return "", errors.Errorf("invalid IV length %d", len(decoded["iv"]))
	}

	params := ks.Crypto.KDFParams
	key, err := deriveKey(password, decoded["salt"], params.N, params.R, params.P, params.DKLen)
	if err != nil {
		return "", err
	}

	if subtle.ConstantTimeCompare(key.checksum(decoded["ciphertext"]), decoded["mac"]) != 1 {
		return "", ErrInvalidPassword
	}

	plaintext, err := key.xor(decoded["iv"], decoded["ciphertext"])
	if err != nil {
		return "", err
	}

	return string(plaintext), nil
}
