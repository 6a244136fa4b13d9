package app

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"github/chapool/ledger-signer/internal/config"
	"github/chapool/ledger-signer/internal/metrics"
	"github/chapool/ledger-signer/internal/wallet"
	"github/chapool/ledger-signer/internal/wallet/chain"
	"github/chapool/ledger-signer/internal/wallet/keystore"
	"github/chapool/ledger-signer/internal/wallet/seed"
	"github/chapool/ledger-signer/internal/wallet/signer"
	"github/chapool/ledger-signer/internal/wallet/transport"
)

// App is a central struct keeping all the dependencies.
// It is initialized with wire, which handles making the new instances of the components
// in the right order. To add a new component, 3 steps are required:
// - declaring it in this struct
// - adding a provider function in providers.go
// - adding the provider's function name to the arguments of wire.Build() in wire.go
//
// Components labeled as `wire:"-"` will be skipped and have to be initialized after the InitNewApp* call.
// For more information about wire refer to https://pkg.go.dev/github.com/google/wire
type App struct {
	// skip wire:
	// -> initialized with InitRouter()
	Echo *echo.Echo `wire:"-"`

	Config    config.Service
	Chain     chain.Config
	Registry  *prometheus.Registry
	Metrics   *metrics.Metrics
	Seeds     seed.Manager
	Keystore  keystore.Service
	Transport transport.Transport
	Signer    signer.Service
}

// newAppWithComponents is used by wire to initialize the app components.
func newAppWithComponents(
	cfg config.Service,
	chainConfig chain.Config,
	registry *prometheus.Registry,
	m *metrics.Metrics,
	seeds seed.Manager,
	ks keystore.Service,
	t transport.Transport,
	s signer.Service,
) *App {
	return &App{
		Config:    cfg,
		Chain:     chainConfig,
		Registry:  registry,
		Metrics:   m,
		Seeds:     seeds,
		Keystore:  ks,
		Transport: t,
		Signer:    s,
	}
}

// Ready reports whether the app can serve signing requests
func (a *App) Ready() bool {
	if a.Signer == nil || a.Transport == nil {
		log.Debug().Msg("App is not fully initialized")
		return false
	}

	if a.Config.Emulator.Enabled && !a.Seeds.IsInitialized() {
		log.Debug().Msg("Emulator keystore is locked")
		return false
	}

	return true
}

// UnlockEmulator decrypts the emulator keystore. It is a no-op for the Ledger transport.
func (a *App) UnlockEmulator(ctx context.Context, password wallet.PasswordFunc) error {
	if !a.Config.Emulator.Enabled || a.Seeds.IsInitialized() {
		return nil
	}

	if a.Config.Emulator.Password != "" {
		password = wallet.StaticPassword(a.Config.Emulator.Password)
	}

	if err := wallet.UnlockKeystore(ctx, a.Seeds, a.Keystore, password, a.Config.Emulator.Passphrase); err != nil {
		return errors.Wrap(err, "failed to unlock emulator")
	}

	return nil
}

// Start serves metrics and probes on the configured listen address and blocks
// until the listener is shut down
func (a *App) Start() error {
	if a.Config.Metrics.ListenAddress == "" {
		return errors.New("metrics listen address is not configured")
	}

	if !a.Ready() {
		return errors.New("app is not ready")
	}

	if a.Echo == nil {
		a.InitRouter()
	}

	log.Info().Str("address", a.Config.Metrics.ListenAddress).Msg("Serving metrics")

	if err := a.Echo.Start(a.Config.Metrics.ListenAddress); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "failed to start metrics server")
	}

	return nil
}

// Shutdown stops the metrics listener and wipes the emulator seed
func (a *App) Shutdown(ctx context.Context) []error {
	log.Warn().Msg("Shutting down signer")

	var errs []error

	if a.Echo != nil {
		log.Debug().Msg("Shutting down metrics server")

		if err := a.Echo.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Failed to shutdown metrics server")
			errs = append(errs, err)
		}
	}

	if a.Seeds != nil {
		a.Seeds.Clear()
	}

	return errs
}
