package transport

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github/chapool/ledger-signer/internal/util"
	"github/chapool/ledger-signer/internal/wallet"
	"go.uber.org/multierr"
)

// WithSession opens a session on t, runs fn with it and closes the session again.
// Close runs exactly once for every successful Open, whether fn returns, fails
// or panics. A close failure is appended to the error of fn, never replacing it.
func WithSession(ctx context.Context, t Transport, fn func(ctx context.Context, s Session) error) (err error) {
	log := util.LogFromContext(ctx)

	sess, err := t.Open(ctx)
	if err != nil {
		return errors.Wrap(Wrap("open", err), "failed to open device session")
	}

	guarded := Guard(sess)
	log.Debug().Msg("Device session opened")

	defer func() {
		if closeErr := guarded.Close(); closeErr != nil {
			log.Error().Err(closeErr).Msg("Failed to close device session")
			err = multierr.Append(err, errors.Wrap(Wrap("close", closeErr), "failed to close device session"))
			return
		}
		log.Debug().Msg("Device session closed")
	}()

	return fn(ctx, guarded)
}

// guardedSession rejects every call after Close and forwards Close only once
type guardedSession struct {
	mu     sync.Mutex
	inner  Session
	closed bool
}

// Guard wraps s so that it enforces the single-use contract of Session
//
//nolint:ireturn // Returning interface is intentional, the guard is a Session decorator
func Guard(s Session) Session {
	if g, ok := s.(*guardedSession); ok {
		return g
	}
	return &guardedSession{inner: s}
}

func (g *guardedSession) active() (Session, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return nil, ErrSessionClosed
	}
	return g.inner, nil
}

func (g *guardedSession) DeriveAddress(ctx context.Context, path string) (common.Address, error) {
	s, err := g.active()
	if err != nil {
		return common.Address{}, err
	}
	return s.DeriveAddress(ctx, path)
}

func (g *guardedSession) PublicKey(ctx context.Context, path string) (*wallet.ExtendedPublicKey, error) {
	s, err := g.active()
	if err != nil {
		return nil, err
	}
	return s.PublicKey(ctx, path)
}

func (g *guardedSession) SignTransaction(ctx context.Context, path string, unsignedHex string) (wallet.DeviceSignature, error) {
	s, err := g.active()
	if err != nil {
		return wallet.DeviceSignature{}, err
	}
	return s.SignTransaction(ctx, path, unsignedHex)
}

func (g *guardedSession) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return ErrSessionClosed
	}
	g.closed = true

	return g.inner.Close()
}
