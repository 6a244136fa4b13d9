package ledger_test

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"io"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"github.com/tyler-smith/go-bip39"
	"github/chapool/ledger-signer/internal/wallet/address"
	"github/chapool/ledger-signer/internal/wallet/codec"
	"github/chapool/ledger-signer/internal/wallet/transport/ledger"
)

const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

// apdu is one command as received by the fake device
type apdu struct {
	ins  byte
	p1   byte
	p2   byte
	data []byte
}

// fakeDevice plays the Ethereum app over HID reports. Every written message is
// answered with one reply message. Replies can be overridden per instruction.
type fakeDevice struct {
	t    *testing.T
	seed []byte

	mu       sync.Mutex
	in       []byte
	out      bytes.Buffer
	received []apdu
	status   map[byte]uint16
	signBuf  []byte
	closed   int
}

func newFakeDevice(t *testing.T) *fakeDevice {
	t.Helper()

	return &fakeDevice{
		t:      t,
		seed:   bip39.NewSeed(testMnemonic, ""),
		status: make(map[byte]uint16),
	}
}

// failWith makes the device answer instruction ins with sw
func (d *fakeDevice) failWith(ins byte, sw uint16) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.status[ins] = sw
}

func (d *fakeDevice) commands() []apdu {
	d.mu.Lock()
	defer d.mu.Unlock()

	return append([]apdu(nil), d.received...)
}

func (d *fakeDevice) closeCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.closed
}

func (d *fakeDevice) Write(report []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed > 0 {
		return 0, errors.New("device closed")
	}

	d.in = append(d.in, report...)

	msg, err := ledger.ReadMessage(bytes.NewReader(d.in))
	if err != nil {
		// wait for the remaining reports
		return len(report), nil //nolint:nilerr
	}
	d.in = nil

	require.GreaterOrEqual(d.t, len(msg), 5)
	require.Equal(d.t, byte(0xe0), msg[0])
	require.Equal(d.t, int(msg[4]), len(msg)-5)

	cmd := apdu{ins: msg[1], p1: msg[2], p2: msg[3], data: append([]byte(nil), msg[5:]...)}
	d.received = append(d.received, cmd)

	reply, sw := d.handle(cmd)
	if override, ok := d.status[cmd.ins]; ok {
		reply, sw = nil, override
	}

	reply = binary.BigEndian.AppendUint16(reply, sw)
	for _, f := range ledger.Frames(reply) {
		d.out.Write(f)
	}

	return len(report), nil
}

func (d *fakeDevice) Read(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.out.Len() == 0 {
		return 0, io.EOF
	}
	return d.out.Read(p)
}

func (d *fakeDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.closed++
	return nil
}

func (d *fakeDevice) handle(cmd apdu) ([]byte, uint16) {
	switch cmd.ins {
	case 0x06:
		return []byte{0x01, 1, 9, 17}, 0x9000
	case 0x02:
		return d.getAddress(cmd)
	case 0x04:
		return d.sign(cmd)
	default:
		return nil, 0x6d00
	}
}

func (d *fakeDevice) path(data []byte) (accounts.DerivationPath, []byte) {
	depth := int(data[0])
	require.LessOrEqual(d.t, 1+4*depth, len(data))

	path := make(accounts.DerivationPath, depth)
	for i := range path {
		path[i] = binary.BigEndian.Uint32(data[1+4*i:])
	}

	return path, data[1+4*depth:]
}

func (d *fakeDevice) getAddress(cmd apdu) ([]byte, uint16) {
	path, rest := d.path(cmd.data)
	require.Empty(d.t, rest)

	key, err := address.DerivePrivateKey(d.seed, path.String())
	require.NoError(d.t, err)
	priv, err := crypto.ToECDSA(key)
	require.NoError(d.t, err)

	pub := crypto.FromECDSAPub(&priv.PublicKey)
	addr := hex.EncodeToString(crypto.PubkeyToAddress(priv.PublicKey).Bytes())

	reply := append([]byte{byte(len(pub))}, pub...)
	reply = append(reply, byte(len(addr)))
	reply = append(reply, addr...)

	if cmd.p2 == 0x01 {
		xpub, err := address.DeriveExtendedPublicKey(d.seed, path.String())
		require.NoError(d.t, err)
		reply = append(reply, xpub.ChainCode...)
	}

	return reply, 0x9000
}

// sign collects chunks until the transaction list is complete, then signs the
// payload like the firmware: keccak over the list, v over four bytes truncated
func (d *fakeDevice) sign(cmd apdu) ([]byte, uint16) {
	if cmd.p1 == 0x00 {
		d.signBuf = nil
	} else {
		require.Equal(d.t, byte(0x80), cmd.p1)
	}
	d.signBuf = append(d.signBuf, cmd.data...)

	path, txrlp := d.path(d.signBuf)
	if _, _, rest, err := rlp.Split(txrlp); err != nil || len(rest) != 0 {
		return nil, 0x9000
	}

	fields, err := codec.Decode(txrlp)
	if err != nil {
		return nil, 0x6a80
	}

	key, err := address.DerivePrivateKey(d.seed, path.String())
	require.NoError(d.t, err)
	priv, err := crypto.ToECDSA(key)
	require.NoError(d.t, err)

	sig, err := crypto.Sign(crypto.Keccak256(txrlp), priv)
	require.NoError(d.t, err)

	v := uint32(fields.V.Uint64()*2 + 35 + uint64(sig[64]))

	reply := []byte{byte(v)}
	reply = append(reply, sig[:64]...)

	return reply, 0x9000
}
