package codec_test

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github/chapool/ledger-signer/internal/wallet"
	"github/chapool/ledger-signer/internal/wallet/chain"
	"github/chapool/ledger-signer/internal/wallet/codec"
)

const (
	unsignedHex = "0xec098504a817c800825208943535353535353535353535353535353535353535880de0b6b3a764000080808080"
	payloadHex  = "0xee098504a817c800825208943535353535353535353535353535353535353535880de0b6b3a7640000808205398080"
	signedHex   = "0xf86e098504a817c800825208943535353535353535353535353535353535353535880de0b6b3a764000080820a95" +
		"a028ef61340bd939bc2195fe537567866003e1a15d3c71ff63e1590620aa636276" +
		"a067cbe9d8997f761aecb703304b3800ccf555c9f3dc64214b297fb1966a3b6d83"
)

func newCodec(t *testing.T, chainID uint64) *codec.Codec {
	t.Helper()

	cfg, err := chain.NewConfig(chainID)
	require.NoError(t, err)

	return codec.New(cfg)
}

func testRequest() *wallet.TransactionRequest {
	return &wallet.TransactionRequest{
		From:     "0x9858EfFD232B4033E47d90003D41EC34EcaEda94",
		To:       "0x3535353535353535353535353535353535353535",
		Value:    uint256.NewInt(1_000_000_000_000_000_000),
		Nonce:    9,
		GasPrice: uint256.NewInt(20_000_000_000),
		GasLimit: 21000,
	}
}

func testSignature() wallet.Signature {
	return wallet.Signature{
		V: 2709,
		R: common.HexToHash("0x28ef61340bd939bc2195fe537567866003e1a15d3c71ff63e1590620aa636276"),
		S: common.HexToHash("0x67cbe9d8997f761aecb703304b3800ccf555c9f3dc64214b297fb1966a3b6d83"),
	}
}

func TestEncodeUnsigned(t *testing.T) {
	c := newCodec(t, 1337)

	raw, fields, err := c.EncodeUnsigned(testRequest())
	require.NoError(t, err)

	assert.Equal(t, unsignedHex, hexutil.Encode(raw))
	assert.False(t, fields.Signed())
	assert.Nil(t, fields.V)
	assert.Nil(t, fields.R)
	assert.Nil(t, fields.S)

	count, err := rlp.CountValues(raw[1:])
	require.NoError(t, err)
	assert.Equal(t, 9, count)
}

func TestEncodeUnsignedDoesNotDependOnChain(t *testing.T) {
	a, _, err := newCodec(t, 1).EncodeUnsigned(testRequest())
	require.NoError(t, err)

	b, _, err := newCodec(t, 4294967295).EncodeUnsigned(testRequest())
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestEIP155Payload(t *testing.T) {
	c := newCodec(t, 1337)

	_, fields, err := c.EncodeUnsigned(testRequest())
	require.NoError(t, err)

	payload, err := c.EIP155Payload(fields)
	require.NoError(t, err)
	assert.Equal(t, payloadHex, hexutil.Encode(payload))

	// fields keeps its empty placeholders
	assert.Nil(t, fields.V)
}

func TestEncodeSigned(t *testing.T) {
	c := newCodec(t, 1337)

	_, fields, err := c.EncodeUnsigned(testRequest())
	require.NoError(t, err)

	raw, err := c.EncodeSigned(fields, testSignature())
	require.NoError(t, err)
	assert.Equal(t, signedHex, hexutil.Encode(raw))

	// placeholders of the input are left untouched
	assert.False(t, fields.Signed())
}

func TestEncodeSignedStripsLeadingZeros(t *testing.T) {
	c := newCodec(t, 1)

	_, fields, err := c.EncodeUnsigned(testRequest())
	require.NoError(t, err)

	sig := testSignature()
	sig.V = 37
	sig.R = common.Hash{}
	sig.R[31] = 0x01

	raw, err := c.EncodeSigned(fields, sig)
	require.NoError(t, err)

	decoded, err := codec.Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), decoded.R.Uint64())
	assert.Equal(t, uint64(37), decoded.V.Uint64())
}

func TestDecodeRoundTrip(t *testing.T) {
	c := newCodec(t, 1337)

	raw, fields, err := c.EncodeUnsigned(testRequest())
	require.NoError(t, err)

	decoded, err := codec.Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, fields.Nonce, decoded.Nonce)
	assert.Equal(t, fields.GasLimit, decoded.GasLimit)
	assert.Equal(t, *fields.To, *decoded.To)
	assert.True(t, fields.Value.Eq(decoded.Value))
	assert.True(t, fields.GasPrice.Eq(decoded.GasPrice))
	assert.Empty(t, decoded.Data)
	assert.False(t, decoded.Signed())

	again, err := codec.Encode(decoded)
	require.NoError(t, err)
	assert.Equal(t, raw, again)

	signed, err := c.EncodeSigned(fields, testSignature())
	require.NoError(t, err)

	decodedSigned, err := codec.Decode(signed)
	require.NoError(t, err)
	assert.True(t, decodedSigned.Signed())
	assert.Equal(t, uint64(2709), decodedSigned.V.Uint64())

	signedAgain, err := codec.Encode(decodedSigned)
	require.NoError(t, err)
	assert.Equal(t, signed, signedAgain)
}

func TestDecodeReturnsEncodedFields(t *testing.T) {
	c := newCodec(t, 1337)

	tests := map[string]func(*wallet.TransactionRequest){
		"nil data":          func(*wallet.TransactionRequest) {},
		"empty data":        func(r *wallet.TransactionRequest) { r.Data = []byte{} },
		"with data":         func(r *wallet.TransactionRequest) { r.Data = []byte{0xde, 0xad, 0xbe, 0xef} },
		"contract creation": func(r *wallet.TransactionRequest) { r.To = "" },
	}

	for name, modify := range tests {
		req := testRequest()
		modify(req)

		t.Run(name, func(t *testing.T) {
			raw, fields, err := c.EncodeUnsigned(req)
			require.NoError(t, err)

			decoded, err := codec.Decode(raw)
			require.NoError(t, err)
			require.Equal(t, fields, decoded)
		})
	}
}

func TestContractCreation(t *testing.T) {
	c := newCodec(t, 1337)

	req := testRequest()
	req.To = ""
	req.Data = []byte{0x60, 0x80, 0x60, 0x40}

	raw, fields, err := c.EncodeUnsigned(req)
	require.NoError(t, err)
	assert.Nil(t, fields.To)

	decoded, err := codec.Decode(raw)
	require.NoError(t, err)
	assert.Nil(t, decoded.To)
	assert.Equal(t, req.Data, decoded.Data)
}

func TestNilAmountsEncodeAsZero(t *testing.T) {
	c := newCodec(t, 1)

	raw, _, err := c.EncodeUnsigned(&wallet.TransactionRequest{})
	require.NoError(t, err)
	assert.Equal(t, "0xc9808080808080808080", hexutil.Encode(raw))
}

func TestEncodeRejectsMalformedTo(t *testing.T) {
	c := newCodec(t, 1337)

	req := testRequest()
	req.To = "0x1234"

	_, _, err := c.EncodeUnsigned(req)
	require.ErrorIs(t, err, codec.ErrEncoding)

	_, _, err = c.EncodeUnsigned(nil)
	require.ErrorIs(t, err, codec.ErrEncoding)
}

func TestDecodeRejectsMalformedInput(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "not a list", raw: "0x8405060708"},
		{name: "eight fields", raw: "0xc88080808080808080"},
		{name: "ten fields", raw: "0xca80808080808080808080"},
		{name: "trailing bytes", raw: "0xc980808080808080808080"},
		{name: "truncated", raw: "0xec0985"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := codec.DecodeHex(tt.raw)
			require.ErrorIs(t, err, codec.ErrEncoding)
		})
	}

	_, err := codec.Decode(nil)
	require.ErrorIs(t, err, codec.ErrEncoding)

	_, err = codec.DecodeHex("not hex")
	require.ErrorIs(t, err, codec.ErrEncoding)
}

func TestSigningHash(t *testing.T) {
	c := newCodec(t, 1337)

	_, fields, err := c.EncodeUnsigned(testRequest())
	require.NoError(t, err)

	hash, err := c.SigningHash(fields)
	require.NoError(t, err)

	payload, err := hexutil.Decode(payloadHex)
	require.NoError(t, err)
	assert.Equal(t, common.BytesToHash(keccak(payload)), hash)
}
