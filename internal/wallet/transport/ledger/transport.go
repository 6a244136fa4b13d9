// Package ledger talks to the Ethereum app of Ledger devices over USB HID.
//
// The chain id is part of the adapter configuration. Unsigned transactions
// arrive with empty v, r and s; the adapter puts the chain id into v before
// sending, which is the calling convention of the firmware for EIP-155 signing.
package ledger

import (
	"context"
	"io"

	"github.com/karalabe/hid"
	"github.com/pkg/errors"
	"github/chapool/ledger-signer/internal/util"
	"github/chapool/ledger-signer/internal/wallet/chain"
	"github/chapool/ledger-signer/internal/wallet/codec"
	"github/chapool/ledger-signer/internal/wallet/transport"
)

const (
	// VendorID is the USB vendor id of Ledger devices
	VendorID = 0x2c97
	// usagePage and endpoint select the APDU interface, matched by usage page
	// on Windows and macOS and by interface number on Linux
	usagePage = 0xffa0
	endpoint  = 0
)

// DeviceOpener returns a connected device
type DeviceOpener func() (io.ReadWriteCloser, error)

// Transport opens sessions on the first connected Ledger device
type Transport struct {
	codec *codec.Codec
	open  DeviceOpener
}

// Option configures the Ledger transport
type Option func(*Transport)

// WithDeviceOpener replaces USB discovery
func WithDeviceOpener(open DeviceOpener) Option {
	return func(t *Transport) {
		t.open = open
	}
}

// New creates a Ledger transport signing for chainConfig
func New(chainConfig chain.Config, opts ...Option) *Transport {
	t := &Transport{
		codec: codec.New(chainConfig),
		open:  OpenHID,
	}
	for _, opt := range opts {
		opt(t)
	}

	return t
}

// Open connects to the device and checks that the Ethereum app responds
//
//nolint:ireturn // Implements transport.Transport
func (t *Transport) Open(ctx context.Context) (transport.Session, error) {
	log := util.LogFromContext(ctx)

	if err := ctx.Err(); err != nil {
		return nil, transport.Wrap("open", err)
	}

	device, err := t.open()
	if err != nil {
		return nil, transport.Wrap("open", err)
	}

	sess := &session{device: device, codec: t.codec}

	version, err := sess.version(ctx)
	if err != nil {
		if closeErr := sess.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("Failed to close device after version check")
		}
		return nil, err
	}

	log.Debug().
		Str("component", "ledger").
		Uints8("app_version", version[:]).
		Msg("Ledger Ethereum app ready")

	return sess, nil
}

// OpenHID opens the APDU interface of the first Ledger device found
func OpenHID() (io.ReadWriteCloser, error) {
	if !hid.Supported() {
		return nil, errors.New("USB HID is not supported on this platform")
	}

	infos, err := hid.Enumerate(VendorID, 0)
	if err != nil {
		return nil, errors.Wrap(err, "failed to enumerate USB devices")
	}

	for _, info := range infos {
		if info.UsagePage != usagePage && info.Interface != endpoint {
			continue
		}

		device, err := info.Open()
		if err != nil {
			return nil, errors.Wrapf(err, "failed to open device %s", info.Path)
		}

		return device, nil
	}

	return nil, transport.ErrDeviceNotFound
}
