package address

import (
	"context"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/tyler-smith/go-bip32"
	"github/chapool/ledger-signer/internal/util"
	"github/chapool/ledger-signer/internal/wallet"
)

// Resolver maps signing addresses to derivation paths by walking a bounded,
// fixed sequence of candidate paths
type Resolver struct {
	base     accounts.DerivationPath
	limit    int
	iterator Iterator
	mode     Mode
}

// Option configures a Resolver
type Option func(*Resolver)

// WithSearchLimit sets the number of candidate paths searched
func WithSearchLimit(limit int) Option {
	return func(r *Resolver) {
		r.limit = limit
	}
}

// WithIterator sets the path component that is incremented
func WithIterator(iterator Iterator) Option {
	return func(r *Resolver) {
		r.iterator = iterator
	}
}

// WithMode sets how candidate addresses are derived
func WithMode(mode Mode) Option {
	return func(r *Resolver) {
		r.mode = mode
	}
}

// NewResolver creates a resolver whose first candidate is basePath
func NewResolver(basePath string, opts ...Option) (*Resolver, error) {
	if basePath == "" {
		basePath = DefaultBasePath
	}

	base, err := ParsePath(basePath)
	if err != nil {
		return nil, err
	}

	r := &Resolver{
		base:     base,
		limit:    DefaultSearchLimit,
		iterator: IteratorDefault,
		mode:     ModeDevice,
	}
	for _, opt := range opts {
		opt(r)
	}

	if r.limit <= 0 {
		return nil, errors.Errorf("search limit must be positive, got %d", r.limit)
	}

	switch r.iterator {
	case IteratorDefault:
	case IteratorLedgerLive:
		if len(r.base) < 3 {
			return nil, errors.Errorf("ledger live iterator needs at least 3 path components, got %s", r.base)
		}
	default:
		return nil, errors.Errorf("unknown path iterator %q", r.iterator)
	}

	switch r.mode {
	case ModeDevice:
	case ModeExtendedKey:
		if r.iterator != IteratorDefault {
			return nil, errors.New("extended key mode only supports the default iterator")
		}
		if len(r.base) < 2 || uint64(r.base[len(r.base)-1])+uint64(r.limit) > uint64(bip32.FirstHardenedChild) {
			return nil, errors.Errorf("extended key mode needs non-hardened address indices, got %s", r.base)
		}
	default:
		return nil, errors.Errorf("unknown resolver mode %q", r.mode)
	}

	return r, nil
}

// Resolve returns the first candidate whose derived address equals target
func (r *Resolver) Resolve(ctx context.Context, src Source, target string) (wallet.DerivedKeyInfo, error) {
	log := util.LogFromContext(ctx)

	want, err := NormalizeAddress(target)
	if err != nil {
		return wallet.DerivedKeyInfo{}, err
	}

	var (
		found   wallet.DerivedKeyInfo
		matched bool
	)
	err = r.walk(ctx, src, r.limit, func(info wallet.DerivedKeyInfo) bool {
		if info.Address == want {
			found, matched = info, true
		}
		return matched
	})
	if err != nil {
		return wallet.DerivedKeyInfo{}, err
	}

	if !matched {
		return wallet.DerivedKeyInfo{}, errors.Wrapf(ErrKeyNotFound, "%s not among the first %d paths from %s", want.Hex(), r.limit, r.base)
	}

	log.Debug().
		Str("address", found.Address.Hex()).
		Str("path", found.DerivationPath).
		Msg("Resolved derivation path")

	return found, nil
}

// Accounts returns the first count candidates in search order
func (r *Resolver) Accounts(ctx context.Context, src Source, count int) ([]wallet.DerivedKeyInfo, error) {
	if count <= 0 {
		return nil, nil
	}
	if count > r.limit {
		count = r.limit
	}

	infos := make([]wallet.DerivedKeyInfo, 0, count)
	err := r.walk(ctx, src, count, func(info wallet.DerivedKeyInfo) bool {
		infos = append(infos, info)
		return false
	})
	if err != nil {
		return nil, err
	}

	return infos, nil
}

// walk visits up to limit candidates until visit returns true
func (r *Resolver) walk(ctx context.Context, src Source, limit int, visit func(wallet.DerivedKeyInfo) bool) error {
	derive, err := r.deriver(ctx, src)
	if err != nil {
		return err
	}

	next := r.paths()
	for i := 0; i < limit; i++ {
		if err := ctx.Err(); err != nil {
			return errors.Wrap(err, "derivation path search aborted")
		}

		path := next()
		addr, err := derive(ctx, path)
		if err != nil {
			return errors.Wrapf(err, "failed to derive address at %s", path)
		}

		if visit(wallet.DerivedKeyInfo{DerivationPath: path.String(), Address: addr}) {
			return nil
		}
	}

	return nil
}

type deriveFunc func(ctx context.Context, path accounts.DerivationPath) (common.Address, error)

func (r *Resolver) deriver(ctx context.Context, src Source) (deriveFunc, error) {
	if r.mode == ModeDevice {
		return func(ctx context.Context, path accounts.DerivationPath) (common.Address, error) {
			return src.DeriveAddress(ctx, path.String())
		}, nil
	}

	parent := r.base[:len(r.base)-1]
	xpub, err := src.PublicKey(ctx, parent.String())
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get extended public key at %s", parent)
	}

	return func(_ context.Context, path accounts.DerivationPath) (common.Address, error) {
		return DeriveChildAddress(xpub, path[len(path)-1])
	}, nil
}

// paths returns a generator of candidate paths. Every returned path is a fresh copy.
func (r *Resolver) paths() func() accounts.DerivationPath {
	var next func() accounts.DerivationPath
	if r.iterator == IteratorLedgerLive {
		next = accounts.LedgerLiveIterator(r.base)
	} else {
		next = accounts.DefaultIterator(r.base)
	}

	return func() accounts.DerivationPath {
		path := next()
		cpy := make(accounts.DerivationPath, len(path))
		copy(cpy, path)
		return cpy
	}
}

// NormalizeAddress validates a hex address and returns it in canonical form
func NormalizeAddress(address string) (common.Address, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return common.Address{}, errors.Wrap(ErrInvalidAddress, "address is empty")
	}

	if !common.IsHexAddress(address) {
		return common.Address{}, errors.Wrapf(ErrInvalidAddress, "malformed address %q", address)
	}

	return common.HexToAddress(address), nil
}
