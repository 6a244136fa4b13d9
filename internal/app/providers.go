package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
	"github/chapool/ledger-signer/internal/config"
	"github/chapool/ledger-signer/internal/metrics"
	"github/chapool/ledger-signer/internal/wallet/address"
	"github/chapool/ledger-signer/internal/wallet/chain"
	"github/chapool/ledger-signer/internal/wallet/keystore"
	"github/chapool/ledger-signer/internal/wallet/seed"
	"github/chapool/ledger-signer/internal/wallet/signer"
	"github/chapool/ledger-signer/internal/wallet/transport"
	"github/chapool/ledger-signer/internal/wallet/transport/emulator"
	"github/chapool/ledger-signer/internal/wallet/transport/ledger"
)

func NewChainConfig(cfg config.Service) (chain.Config, error) {
	return chain.NewConfig(cfg.Chain.ID)
}

func NewResolver(cfg config.Service) (*address.Resolver, error) {
	return address.NewResolver(cfg.Resolver.BasePath,
		address.WithSearchLimit(cfg.Resolver.SearchLimit),
		address.WithIterator(address.Iterator(cfg.Resolver.Iterator)),
		address.WithMode(address.Mode(cfg.Resolver.Mode)),
	)
}

func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return reg
}

func NewMetrics(reg *prometheus.Registry) *metrics.Metrics {
	return metrics.New(reg)
}

//nolint:ireturn // Returning interface is intentional for dependency injection
func NewKeystoreService(cfg config.Service) (keystore.Service, error) {
	return keystore.NewService(cfg.Emulator.KeystorePath)
}

// NewTransport returns the Ledger USB transport, or the software emulator if enabled
//
//nolint:ireturn // Returning interface is intentional for dependency injection
func NewTransport(cfg config.Service, chainConfig chain.Config, seeds seed.Manager) transport.Transport {
	if cfg.Emulator.Enabled {
		log.Warn().Msg("Using software emulator instead of a hardware device")
		return emulator.New(seeds, chainConfig, emulator.WithLegacyFirmware(cfg.Emulator.LegacyFirmware))
	}

	return ledger.New(chainConfig)
}

//nolint:ireturn // Returning interface is intentional for dependency injection
func NewSignerService(chainConfig chain.Config, resolver *address.Resolver, t transport.Transport, m *metrics.Metrics) (signer.Service, error) {
	return signer.NewService(chainConfig, resolver, t, signer.WithMetrics(m))
}
