package codec

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
)

// ErrEncoding is returned for malformed field data while encoding or decoding transactions
var ErrEncoding = errors.New("encoding error")

// Fields is the ordered 9-field RLP list of a legacy transaction.
// V, R and S are nil while the transaction is unsigned and are encoded as empty strings.
type Fields struct {
	Nonce    uint64
	GasPrice *uint256.Int
	GasLimit uint64
	To       *common.Address `rlp:"nil"` // nil means contract creation
	Value    *uint256.Int
	Data     []byte
	V        *uint256.Int
	R        *uint256.Int
	S        *uint256.Int
}

// Signed reports whether all signature fields are populated
func (f *Fields) Signed() bool {
	return f.V != nil && f.R != nil && f.S != nil
}

// Unsigned returns a copy of f with the signature placeholders emptied
func (f *Fields) Unsigned() *Fields {
	cpy := f.copy()
	cpy.V, cpy.R, cpy.S = nil, nil, nil
	return cpy
}

func (f *Fields) copy() *Fields {
	cpy := &Fields{
		Nonce:    f.Nonce,
		GasLimit: f.GasLimit,
		Data:     common.CopyBytes(f.Data),
	}
	if f.To != nil {
		to := *f.To
		cpy.To = &to
	}
	cpy.GasPrice = cloneInt(f.GasPrice)
	cpy.Value = cloneInt(f.Value)
	cpy.V = cloneInt(f.V)
	cpy.R = cloneInt(f.R)
	cpy.S = cloneInt(f.S)

	return cpy
}

func cloneInt(i *uint256.Int) *uint256.Int {
	if i == nil {
		return nil
	}
	return i.Clone()
}
