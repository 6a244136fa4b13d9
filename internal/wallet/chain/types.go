package chain

import (
	"math"
	"math/big"
	"strconv"

	"github.com/pkg/errors"
)

const (
	// eip155Offset is the constant added to chainID*2 by EIP-155
	eip155Offset = 35

	// MaxChainID is the largest chain id whose EIP-155 recovery value still fits in an uint64
	MaxChainID = (math.MaxUint64 - eip155Offset - 1) / 2
)

// ErrInvalidChainID is returned for chain ids that cannot be used for EIP-155 signing
var ErrInvalidChainID = errors.New("invalid chain id")

// Config is the chain configuration of one signing adapter.
// It is a value type without exported fields, so it cannot change after NewConfig.
type Config struct {
	chainID uint64
}

// NewConfig creates the chain configuration for chainID
func NewConfig(chainID uint64) (Config, error) {
	if chainID == 0 {
		return Config{}, errors.Wrap(ErrInvalidChainID, "chain id must be positive")
	}

	if chainID > MaxChainID {
		return Config{}, errors.Wrapf(ErrInvalidChainID, "chain id %d overflows the EIP-155 recovery value", chainID)
	}

	return Config{chainID: chainID}, nil
}

// ChainID returns the configured chain id
func (c Config) ChainID() uint64 {
	return c.chainID
}

// BigChainID returns the chain id as a fresh big.Int
func (c Config) BigChainID() *big.Int {
	return new(big.Int).SetUint64(c.chainID)
}

// EIP155Base returns chainID*2 + 35, the recovery value for parity 0
func (c Config) EIP155Base() uint64 {
	return c.chainID*2 + eip155Offset
}

func (c Config) String() string {
	return strconv.FormatUint(c.chainID, 10)
}
