package signer

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github/chapool/ledger-signer/internal/metrics"
	"github/chapool/ledger-signer/internal/util"
	"github/chapool/ledger-signer/internal/wallet"
	"github/chapool/ledger-signer/internal/wallet/address"
	"github/chapool/ledger-signer/internal/wallet/chain"
	"github/chapool/ledger-signer/internal/wallet/codec"
	"github/chapool/ledger-signer/internal/wallet/signature"
	"github/chapool/ledger-signer/internal/wallet/transport"
)

type service struct {
	chain     chain.Config
	codec     *codec.Codec
	resolver  *address.Resolver
	transport transport.Transport

	metrics      *metrics.Metrics
	observer     func(State)
	verifySender bool

	// one signing operation at a time per device
	mu sync.Mutex
}

// Option configures the signer service
type Option func(*service)

// WithMetrics records signing metrics into m
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *service) {
		s.metrics = m
	}
}

// WithStateObserver calls observe for every state a signing call passes through
func WithStateObserver(observe func(State)) Option {
	return func(s *service) {
		s.observer = observe
	}
}

// WithSenderVerification controls whether signed transactions are recovered and
// checked against the from address. Enabled by default.
func WithSenderVerification(enabled bool) Option {
	return func(s *service) {
		s.verifySender = enabled
	}
}

// NewService creates a new SignerService for chainConfig
//
//nolint:ireturn // Returning interface is intentional for dependency injection
func NewService(chainConfig chain.Config, resolver *address.Resolver, t transport.Transport, opts ...Option) (Service, error) {
	if resolver == nil {
		return nil, errors.New("resolver is required")
	}
	if t == nil {
		return nil, errors.New("transport is required")
	}

	s := &service{
		chain:        chainConfig,
		codec:        codec.New(chainConfig),
		resolver:     resolver,
		transport:    t,
		verifySender: true,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.metrics == nil {
		s.metrics = metrics.New(nil)
	}
	s.transport = &meteredTransport{inner: t, metrics: s.metrics}

	return s, nil
}

// SignTransaction signs req and returns the hex encoded signed transaction
func (s *service) SignTransaction(ctx context.Context, req *wallet.TransactionRequest) (string, error) {
	resp, err := s.SignTransactionResult(ctx, req)
	if err != nil {
		return "", err
	}

	return resp.Hex, nil
}

// SignTransactionResult signs req on the device
func (s *service) SignTransactionResult(ctx context.Context, req *wallet.TransactionRequest) (*SignResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	log := util.LogFromContext(ctx).With().
		Str("component", "signer").
		Uint64("chain_id", s.chain.ChainID()).
		Logger()
	ctx = log.WithContext(ctx)

	resp, err := s.sign(ctx, &log, req)

	result := metrics.ResultSuccess
	if err != nil {
		result = Kind(err)
	}
	s.metrics.SignRequestsTotal.WithLabelValues(result).Inc()
	s.metrics.SignDuration.WithLabelValues(result).Observe(time.Since(start).Seconds())

	if err != nil {
		log.Error().Err(err).Str("kind", result).Msg("Failed to sign transaction")
		return nil, err
	}

	log.Info().
		Str("from", resp.Key.Address.Hex()).
		Str("path", resp.Key.DerivationPath).
		Str("tx_hash", resp.TxHash.Hex()).
		Uint64("v", resp.Signature.V).
		Msg("Transaction signed")

	return resp, nil
}

func (s *service) sign(ctx context.Context, log *zerolog.Logger, req *wallet.TransactionRequest) (*SignResponse, error) {
	s.transition(log, StateValidating)

	if req == nil {
		s.transition(log, StateFailed)
		return nil, errors.Wrap(ErrEncoding, "transaction request is nil")
	}

	from, err := address.NormalizeAddress(req.From)
	if err != nil {
		s.transition(log, StateFailed)
		return nil, err
	}

	unsigned, fields, err := s.codec.EncodeUnsigned(req)
	if err != nil {
		s.transition(log, StateFailed)
		return nil, err
	}
	unsignedHex := hexutil.Encode(unsigned)

	var (
		resp     *SignResponse
		opened   bool
		returned bool
	)
	// runs on panics inside the session as well; the panic keeps unwinding
	defer func() {
		if !opened {
			return
		}
		if !returned {
			s.transition(log, StateFailed)
		}
		s.transition(log, StateTransportClosed)
	}()

	err = transport.WithSession(ctx, s.transport, func(ctx context.Context, sess transport.Session) error {
		opened = true
		s.transition(log, StateTransportOpen)

		var err error
		resp, err = s.signInSession(ctx, log, sess, from.Hex(), fields, unsignedHex)
		returned = true
		if err != nil {
			s.transition(log, StateFailed)
			return err
		}

		s.transition(log, StateDone)
		return nil
	})

	if err != nil && !opened {
		s.transition(log, StateFailed)
	}

	if err != nil {
		return nil, err
	}

	return resp, nil
}

func (s *service) signInSession(ctx context.Context, log *zerolog.Logger, sess transport.Session, from string, fields *codec.Fields, unsignedHex string) (*SignResponse, error) {
	s.transition(log, StateResolvingKey)

	key, err := s.resolver.Resolve(ctx, sess, from)
	if err != nil {
		return nil, err
	}

	s.transition(log, StateAwaitingDeviceResponse)

	// last point at which cancellation is honored
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "signing aborted before device request")
	}

	deviceSig, err := sess.SignTransaction(context.WithoutCancel(ctx), key.DerivationPath, unsignedHex)
	if err != nil {
		return nil, errors.Wrap(err, "device failed to sign transaction")
	}

	s.transition(log, StateRepairingSignature)

	sig, err := signature.Repair(deviceSig, s.chain)
	if err != nil {
		return nil, err
	}

	s.transition(log, StateEncoding)

	raw, err := s.codec.EncodeSigned(fields, sig)
	if err != nil {
		return nil, err
	}

	if s.verifySender {
		if err := s.verify(raw, key); err != nil {
			return nil, err
		}
	}

	return &SignResponse{
		RawTransaction: raw,
		Hex:            hexutil.Encode(raw),
		Signature:      sig,
		TxHash:         crypto.Keccak256Hash(raw),
		Key:            key,
	}, nil
}

// verify recovers the sender of the signed encoding with the EIP-155 signer
func (s *service) verify(raw []byte, key wallet.DerivedKeyInfo) error {
	//nolint:varnamelen // tx is a common abbreviation for transaction
	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(raw); err != nil {
		return errors.Wrapf(ErrEncoding, "signed transaction does not decode: %v", err)
	}

	sender, err := types.Sender(types.NewEIP155Signer(s.chain.BigChainID()), tx)
	if err != nil {
		return errors.Wrapf(ErrSenderMismatch, "failed to recover sender: %v", err)
	}

	if sender != key.Address {
		return errors.Wrapf(ErrSenderMismatch, "recovered %s, expected %s", sender.Hex(), key.Address.Hex())
	}

	return nil
}

// Accounts lists the first count addresses of the device
func (s *service) Accounts(ctx context.Context, count int) ([]wallet.DerivedKeyInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var infos []wallet.DerivedKeyInfo
	err := transport.WithSession(ctx, s.transport, func(ctx context.Context, sess transport.Session) error {
		var err error
		infos, err = s.resolver.Accounts(ctx, sess, count)
		return err
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to list accounts")
	}

	s.metrics.AccountsListed.Observe(float64(len(infos)))

	return infos, nil
}

func (s *service) transition(log *zerolog.Logger, state State) {
	log.Debug().Str("state", state.String()).Msg("Signing state changed")
	s.metrics.StateTransitions.WithLabelValues(state.String()).Inc()

	if s.observer != nil {
		s.observer(state)
	}
}

// meteredTransport counts sessions once they are opened and once they are released
type meteredTransport struct {
	inner   transport.Transport
	metrics *metrics.Metrics
}

//nolint:ireturn // Implements transport.Transport
func (t *meteredTransport) Open(ctx context.Context) (transport.Session, error) {
	sess, err := t.inner.Open(ctx)
	if err != nil {
		return nil, err
	}
	t.metrics.SessionsOpenTotal.Inc()

	return &meteredSession{Session: sess, metrics: t.metrics}, nil
}

type meteredSession struct {
	transport.Session
	metrics *metrics.Metrics
}

func (s *meteredSession) Close() error {
	if err := s.Session.Close(); err != nil {
		return err
	}
	s.metrics.SessionsCloseTotal.Inc()

	return nil
}
