package codec

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"github/chapool/ledger-signer/internal/wallet"
	"github/chapool/ledger-signer/internal/wallet/chain"
)

// fieldCount is the number of elements in a legacy transaction list
const fieldCount = 9

// Codec builds the canonical encoding of legacy transactions for one chain
type Codec struct {
	chain chain.Config
}

// New creates a Codec bound to the given chain configuration
func New(chainConfig chain.Config) *Codec {
	return &Codec{chain: chainConfig}
}

// EncodeUnsigned builds the 9-field encoding with empty v, r and s placeholders.
// The chain id is not part of this form, the device receives it out-of-band.
func (c *Codec) EncodeUnsigned(req *wallet.TransactionRequest) ([]byte, *Fields, error) {
	if req == nil {
		return nil, nil, errors.Wrap(ErrEncoding, "transaction request is nil")
	}

	fields := &Fields{
		Nonce:    req.Nonce,
		GasPrice: orZero(req.GasPrice),
		GasLimit: req.GasLimit,
		Value:    orZero(req.Value),
		Data:     dataOrNil(req.Data),
	}

	if strings.TrimSpace(req.To) != "" {
		to, err := ParseAddress(req.To)
		if err != nil {
			return nil, nil, errors.Wrap(err, "invalid to address")
		}
		fields.To = &to
	}

	raw, err := Encode(fields)
	if err != nil {
		return nil, nil, err
	}

	return raw, fields, nil
}

// EncodeSigned substitutes the signature into the placeholder positions of fields and
// returns the final encoding. fields itself is left untouched.
func (c *Codec) EncodeSigned(fields *Fields, sig wallet.Signature) ([]byte, error) {
	if fields == nil {
		return nil, errors.Wrap(ErrEncoding, "transaction fields are nil")
	}

	signed := fields.copy()
	signed.V = new(uint256.Int).SetUint64(sig.V)
	signed.R = new(uint256.Int).SetBytes32(sig.R[:])
	signed.S = new(uint256.Int).SetBytes32(sig.S[:])

	return Encode(signed)
}

// EIP155Payload returns the encoding the device firmware hashes: the unsigned fields
// with the chain id in the v position and empty r and s.
func (c *Codec) EIP155Payload(fields *Fields) ([]byte, error) {
	if fields == nil {
		return nil, errors.Wrap(ErrEncoding, "transaction fields are nil")
	}

	payload := fields.Unsigned()
	payload.V = new(uint256.Int).SetUint64(c.chain.ChainID())

	return Encode(payload)
}

// SigningHash returns the EIP-155 hash a valid signature of fields commits to
func (c *Codec) SigningHash(fields *Fields) (common.Hash, error) {
	payload, err := c.EIP155Payload(fields)
	if err != nil {
		return common.Hash{}, err
	}

	return crypto.Keccak256Hash(payload), nil
}

// Encode RLP encodes fields
func Encode(fields *Fields) ([]byte, error) {
	raw, err := rlp.EncodeToBytes(fields)
	if err != nil {
		return nil, errors.Wrapf(ErrEncoding, "failed to encode transaction: %v", err)
	}

	return raw, nil
}

// Decode parses a 9-field legacy transaction encoding.
// Empty data and empty v, r and s are returned as nil.
func Decode(raw []byte) (*Fields, error) {
	if len(raw) == 0 {
		return nil, errors.Wrap(ErrEncoding, "empty transaction encoding")
	}

	kind, content, rest, err := rlp.Split(raw)
	if err != nil {
		return nil, errors.Wrapf(ErrEncoding, "malformed transaction encoding: %v", err)
	}

	if kind != rlp.List {
		return nil, errors.Wrap(ErrEncoding, "transaction encoding is not a list")
	}

	if len(rest) != 0 {
		return nil, errors.Wrap(ErrEncoding, "trailing bytes after transaction encoding")
	}

	count, err := rlp.CountValues(content)
	if err != nil {
		return nil, errors.Wrapf(ErrEncoding, "failed to count transaction fields: %v", err)
	}

	if count != fieldCount {
		return nil, errors.Wrapf(ErrEncoding, "expected %d transaction fields, got %d", fieldCount, count)
	}

	var fields Fields
	if err := rlp.DecodeBytes(raw, &fields); err != nil {
		return nil, errors.Wrapf(ErrEncoding, "failed to decode transaction: %v", err)
	}

	fields.Data = dataOrNil(fields.Data)
	fields.V = placeholder(fields.V)
	fields.R = placeholder(fields.R)
	fields.S = placeholder(fields.S)

	return &fields, nil
}

// DecodeHex decodes a 0x-prefixed hex encoded transaction
func DecodeHex(encoded string) (*Fields, error) {
	raw, err := hexutil.Decode(encoded)
	if err != nil {
		return nil, errors.Wrapf(ErrEncoding, "invalid transaction hex: %v", err)
	}

	return Decode(raw)
}

// ParseAddress parses a hex address, case-insensitively
func ParseAddress(address string) (common.Address, error) {
	address = strings.TrimSpace(address)
	if !common.IsHexAddress(address) {
		return common.Address{}, errors.Wrapf(ErrEncoding, "malformed address %q", address)
	}

	return common.HexToAddress(address), nil
}

// dataOrNil copies data, with nil standing for no data
func dataOrNil(data []byte) []byte {
	if len(data) == 0 {
		return nil
	}
	return common.CopyBytes(data)
}

func orZero(i *uint256.Int) *uint256.Int {
	if i == nil {
		return new(uint256.Int)
	}
	return i.Clone()
}

func placeholder(i *uint256.Int) *uint256.Int {
	if i == nil || i.IsZero() {
		return nil
	}
	return i
}
