// Package emulator implements a software signing device backed by a BIP-39 seed.
//
// It speaks the same Session contract as the Ledger adapter and reproduces the
// firmware behaviour that matters to callers: signatures carry only the low byte
// of the EIP-155 recovery value.
package emulator

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/pkg/errors"
	"github/chapool/ledger-signer/internal/util"
	"github/chapool/ledger-signer/internal/wallet"
	"github/chapool/ledger-signer/internal/wallet/address"
	"github/chapool/ledger-signer/internal/wallet/chain"
	"github/chapool/ledger-signer/internal/wallet/codec"
	"github/chapool/ledger-signer/internal/wallet/seed"
	"github/chapool/ledger-signer/internal/wallet/transport"
)

// legacyV is the recovery value offset of pre EIP-155 signatures
const legacyV = 27

// Transport opens sessions on the software device
type Transport struct {
	seeds  seed.Manager
	chain  chain.Config
	codec  *codec.Codec
	legacy bool

	mu     sync.Mutex
	opened int
	closed int
}

// Option configures the emulator
type Option func(*Transport)

// WithLegacyFirmware makes the emulator sign without the chain id and return
// 27+recid, like firmware that predates EIP-155 support for large chain ids
func WithLegacyFirmware(enabled bool) Option {
	return func(t *Transport) {
		t.legacy = enabled
	}
}

// New creates an emulator transport for chainConfig. The seed manager must be
// initialized before the first Open.
func New(seeds seed.Manager, chainConfig chain.Config, opts ...Option) *Transport {
	t := &Transport{
		seeds: seeds,
		chain: chainConfig,
		codec: codec.New(chainConfig),
	}
	for _, opt := range opts {
		opt(t)
	}

	return t
}

// Open starts a session
//
//nolint:ireturn // Implements transport.Transport
func (t *Transport) Open(ctx context.Context) (transport.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, transport.Wrap("open", err)
	}

	if !t.seeds.IsInitialized() {
		return nil, transport.Wrap("open", seed.ErrLocked)
	}

	t.mu.Lock()
	t.opened++
	t.mu.Unlock()

	util.LogFromContext(ctx).Debug().Str("component", "emulator").Msg("Emulator session opened")

	return &session{transport: t}, nil
}

// Stats returns how many sessions were opened and closed so far
func (t *Transport) Stats() (opened int, closed int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.opened, t.closed
}

type session struct {
	transport *Transport

	mu     sync.Mutex
	closed bool
}

func (s *session) DeriveAddress(_ context.Context, path string) (common.Address, error) {
	if err := s.check(); err != nil {
		return common.Address{}, err
	}

	var addr common.Address
	err := s.transport.seeds.Use(func(master []byte) error {
		var err error
		addr, err = address.DeriveAddress(master, path)
		return err
	})
	if err != nil {
		return common.Address{}, transport.Wrap("derive", err)
	}

	return addr, nil
}

func (s *session) PublicKey(_ context.Context, path string) (*wallet.ExtendedPublicKey, error) {
	if err := s.check(); err != nil {
		return nil, err
	}

	var xpub *wallet.ExtendedPublicKey
	err := s.transport.seeds.Use(func(master []byte) error {
		var err error
		xpub, err = address.DeriveExtendedPublicKey(master, path)
		return err
	})
	if err != nil {
		return nil, transport.Wrap("pubkey", err)
	}

	return xpub, nil
}

func (s *session) SignTransaction(ctx context.Context, path string, unsignedHex string) (wallet.DeviceSignature, error) {
	if err := s.check(); err != nil {
		return wallet.DeviceSignature{}, err
	}

	fields, err := codec.DecodeHex(unsignedHex)
	if err != nil {
		return wallet.DeviceSignature{}, transport.Wrap("sign", err)
	}

	if fields.V != nil || fields.R != nil || fields.S != nil {
		return wallet.DeviceSignature{}, transport.Wrap("sign", errors.New("transaction already carries signature values"))
	}

	var hash common.Hash
	if s.transport.legacy {
		hash, err = legacyHash(fields)
	} else {
		hash, err = s.transport.codec.SigningHash(fields)
	}
	if err != nil {
		return wallet.DeviceSignature{}, transport.Wrap("sign", err)
	}

	var sig []byte
	err = s.transport.seeds.Use(func(master []byte) error {
		privateKey, err := address.DerivePrivateKey(master, path)
		if err != nil {
			return err
		}
		defer zero(privateKey)

		key, err := crypto.ToECDSA(privateKey)
		if err != nil {
			return err
		}

		sig, err = crypto.Sign(hash[:], key)
		return err
	})
	if err != nil {
		return wallet.DeviceSignature{}, transport.Wrap("sign", err)
	}

	recID := uint64(sig[crypto.RecoveryIDOffset])

	var v uint64
	if s.transport.legacy {
		v = legacyV + recID
	} else {
		v = s.transport.chain.EIP155Base() + recID
	}

	resp := wallet.DeviceSignature{VPartial: byte(v)}
	copy(resp.R[:], sig[:32])
	copy(resp.S[:], sig[32:64])

	util.LogFromContext(ctx).Debug().
		Str("component", "emulator").
		Str("path", path).
		Uint8("v_partial", resp.VPartial).
		Msg("Emulator signed transaction")

	return resp, nil
}

func (s *session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return transport.ErrSessionClosed
	}
	s.closed = true

	s.transport.mu.Lock()
	s.transport.closed++
	s.transport.mu.Unlock()

	return nil
}

func (s *session) check() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return transport.ErrSessionClosed
	}
	return nil
}

// legacyHash is the pre EIP-155 signing hash over the six transaction fields
func legacyHash(fields *codec.Fields) (common.Hash, error) {
	var to []byte
	if fields.To != nil {
		to = fields.To.Bytes()
	}

	payload, err := rlp.EncodeToBytes([]interface{}{
		fields.Nonce,
		fields.GasPrice,
		fields.GasLimit,
		to,
		fields.Value,
		fields.Data,
	})
	if err != nil {
		return common.Hash{}, errors.Wrap(err, "failed to encode legacy payload")
	}

	return crypto.Keccak256Hash(payload), nil
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
