//go:build wireinject

package app

import (
	"github.com/google/wire"
	"github/chapool/ledger-signer/internal/config"
	"github/chapool/ledger-signer/internal/wallet/seed"
	"github/chapool/ledger-signer/internal/wallet/transport"
)

// INJECTORS - https://github.com/google/wire/blob/main/docs/guide.md#injectors

// serviceSet groups the default set of providers that are required for initing an app
var serviceSet = wire.NewSet(
	newAppWithComponents,
	NewChainConfig,
	NewResolver,
	NewRegistry,
	NewMetrics,
	NewKeystoreService,
	NewSignerService,
	seed.NewManager,
)

// InitNewApp returns a new App instance.
func InitNewApp(
	_ config.Service,
) (*App, error) {
	wire.Build(serviceSet, NewTransport)
	return new(App), nil
}

// InitNewAppWithTransport returns a new App instance signing through the given transport.
// All the other components are initialized via go wire according to the configuration.
func InitNewAppWithTransport(
	_ config.Service,
	_ transport.Transport,
) (*App, error) {
	wire.Build(serviceSet)
	return new(App), nil
}
