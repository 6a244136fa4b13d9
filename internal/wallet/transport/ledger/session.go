package ledger

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"io"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"github/chapool/ledger-signer/internal/util"
	"github/chapool/ledger-signer/internal/wallet"
	"github/chapool/ledger-signer/internal/wallet/address"
	"github/chapool/ledger-signer/internal/wallet/codec"
	"github/chapool/ledger-signer/internal/wallet/transport"
)

const (
	// maxPathDepth is the deepest derivation path the Ethereum app accepts
	maxPathDepth = 10
	// eip155Size is the encoded size of the chain id, r and s tail of the payload
	eip155Size = 3
	// signatureLength is V (1) | R (32) | S (32)
	signatureLength = 65
	chainCodeLength = 32
)

type session struct {
	device io.ReadWriteCloser
	codec  *codec.Codec

	mu     sync.Mutex
	closed bool
}

// call runs fn with exclusive access to the device
func (s *session) call(ctx context.Context, fn func(device io.ReadWriter) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return transport.ErrSessionClosed
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	return fn(s.device)
}

func (s *session) DeriveAddress(ctx context.Context, path string) (common.Address, error) {
	var addr common.Address

	err := s.call(ctx, func(device io.ReadWriter) error {
		reply, err := getAddress(device, path, false)
		if err != nil {
			return err
		}
		addr = reply.address
		return nil
	})
	if err != nil {
		return common.Address{}, transport.Wrap("derive", err)
	}

	return addr, nil
}

func (s *session) PublicKey(ctx context.Context, path string) (*wallet.ExtendedPublicKey, error) {
	var xpub *wallet.ExtendedPublicKey

	err := s.call(ctx, func(device io.ReadWriter) error {
		reply, err := getAddress(device, path, true)
		if err != nil {
			return err
		}

		pub, err := crypto.UnmarshalPubkey(reply.publicKey)
		if err != nil {
			return errors.Wrap(err, "reply carries invalid public key")
		}

		xpub = &wallet.ExtendedPublicKey{
			PublicKey: crypto.CompressPubkey(pub),
			ChainCode: reply.chainCode,
		}
		return nil
	})
	if err != nil {
		return nil, transport.Wrap("pubkey", err)
	}

	return xpub, nil
}

func (s *session) SignTransaction(ctx context.Context, path string, unsignedHex string) (wallet.DeviceSignature, error) {
	var resp wallet.DeviceSignature

	err := s.call(ctx, func(device io.ReadWriter) error {
		fields, err := codec.DecodeHex(unsignedHex)
		if err != nil {
			return err
		}

		// the firmware expects the chain id in the v position
		txrlp, err := s.codec.EIP155Payload(fields)
		if err != nil {
			return err
		}

		encodedPath, err := encodePath(path)
		if err != nil {
			return err
		}

		payload := append(encodedPath, txrlp...)

		// Avoid a final chunk that holds only the chain id, r and s tail,
		// the app fails to parse it (LedgerHQ/app-ethereum#409)
		chunk := maxChunk
		for ; len(payload)%chunk <= eip155Size; chunk-- {
		}

		var (
			p1    = p1FirstChunk
			reply []byte
		)
		for len(payload) > 0 {
			if chunk > len(payload) {
				chunk = len(payload)
			}

			reply, err = exchange(device, opSignTransaction, p1, 0, payload[:chunk])
			if err != nil {
				return err
			}

			payload = payload[chunk:]
			p1 = p1NextChunk
		}

		if len(reply) != signatureLength {
			return errors.Errorf("reply lacks signature, got %d bytes", len(reply))
		}

		resp.VPartial = reply[0]
		copy(resp.R[:], reply[1:33])
		copy(resp.S[:], reply[33:65])

		return nil
	})
	if err != nil {
		return wallet.DeviceSignature{}, transport.Wrap("sign", err)
	}

	util.LogFromContext(ctx).Debug().
		Str("component", "ledger").
		Str("path", path).
		Uint8("v_partial", resp.VPartial).
		Msg("Device returned signature")

	return resp, nil
}

func (s *session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return transport.ErrSessionClosed
	}
	s.closed = true

	if err := s.device.Close(); err != nil {
		return transport.Wrap("close", err)
	}

	return nil
}

// version returns the Ethereum app version as major, minor, patch
func (s *session) version(ctx context.Context) ([3]byte, error) {
	var version [3]byte

	err := s.call(ctx, func(device io.ReadWriter) error {
		reply, err := exchange(device, opGetConfiguration, 0, 0, nil)
		if err != nil {
			return err
		}
		if len(reply) != 4 {
			return errors.Errorf("invalid version reply of %d bytes", len(reply))
		}
		copy(version[:], reply[1:])
		return nil
	})
	if err != nil {
		return [3]byte{}, transport.Wrap("version", err)
	}

	return version, nil
}

type addressReply struct {
	publicKey []byte
	address   common.Address
	chainCode []byte
}

// getAddress parses the reply layout
// [pubkey len | uncompressed pubkey | address len | hex address | chain code if requested]
func getAddress(device io.ReadWriter, path string, withChainCode bool) (*addressReply, error) {
	encodedPath, err := encodePath(path)
	if err != nil {
		return nil, err
	}

	p2 := p2NoChainCode
	if withChainCode {
		p2 = p2WithChainCode
	}

	reply, err := exchange(device, opGetAddress, 0, p2, encodedPath)
	if err != nil {
		return nil, err
	}

	if len(reply) < 1 || len(reply) < 1+int(reply[0]) {
		return nil, errors.New("reply lacks public key entry")
	}
	out := &addressReply{publicKey: common.CopyBytes(reply[1 : 1+int(reply[0])])}
	reply = reply[1+int(reply[0]):]

	if len(reply) < 1 || len(reply) < 1+int(reply[0]) {
		return nil, errors.New("reply lacks address entry")
	}
	hexAddr := reply[1 : 1+int(reply[0])]
	reply = reply[1+int(reply[0]):]

	if len(hexAddr) != 2*common.AddressLength {
		return nil, errors.Errorf("reply address has %d characters", len(hexAddr))
	}
	if _, err := hex.Decode(out.address[:], hexAddr); err != nil {
		return nil, errors.Wrap(err, "reply carries invalid address")
	}

	if withChainCode {
		if len(reply) < chainCodeLength {
			return nil, errors.New("reply lacks chain code")
		}
		out.chainCode = common.CopyBytes(reply[:chainCodeLength])
	}

	return out, nil
}

// encodePath flattens a derivation path into [depth | index (big endian) ...]
func encodePath(path string) ([]byte, error) {
	indices, err := address.ParsePath(path)
	if err != nil {
		return nil, err
	}

	if len(indices) == 0 || len(indices) > maxPathDepth {
		return nil, errors.Errorf("derivation path depth %d out of range", len(indices))
	}

	out := make([]byte, 1+4*len(indices))
	out[0] = byte(len(indices))
	for i, component := range indices {
		binary.BigEndian.PutUint32(out[1+4*i:], component)
	}

	return out, nil
}
