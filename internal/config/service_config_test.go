package config_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github/chapool/ledger-signer/internal/config"
)

func TestPrintServiceEnv(t *testing.T) {
	config := config.DefaultServiceConfigFromEnv()
	_, err := json.MarshalIndent(config, "", "  ")

	if err != nil {
		t.Fatal(err)
	}
}

func TestLoadServiceConfigDefaults(t *testing.T) {
	cfg, err := config.LoadServiceConfig("")
	require.NoError(t, err)

	assert.Equal(t, uint64(1337), cfg.Chain.ID)
	assert.Equal(t, "m/44'/60'/0'/0/0", cfg.Resolver.BasePath)
	assert.Equal(t, 1000, cfg.Resolver.SearchLimit)
	assert.Equal(t, "default", cfg.Resolver.Iterator)
	assert.Equal(t, "device", cfg.Resolver.Mode)
	assert.Equal(t, zerolog.InfoLevel, cfg.Logger.Level)
	assert.False(t, cfg.Emulator.Enabled)
	assert.Empty(t, cfg.Metrics.ListenAddress)
}

func TestLoadServiceConfigEnv(t *testing.T) {
	t.Setenv("LEDGER_SIGNER_CHAIN_ID", "4294967295")
	t.Setenv("LEDGER_SIGNER_RESOLVER_MODE", "xpub")
	t.Setenv("LEDGER_SIGNER_LOGGER_LEVEL", "debug")
	t.Setenv("LEDGER_SIGNER_EMULATOR_ENABLED", "true")

	cfg, err := config.LoadServiceConfig("")
	require.NoError(t, err)

	assert.Equal(t, uint64(4294967295), cfg.Chain.ID)
	assert.Equal(t, "xpub", cfg.Resolver.Mode)
	assert.Equal(t, zerolog.DebugLevel, cfg.Logger.Level)
	assert.True(t, cfg.Emulator.Enabled)
}

func TestLoadServiceConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "signer.yaml")
	err := os.WriteFile(path, []byte(`
chain:
  id: 31337
resolver:
  iterator: ledgerlive
  search_limit: 20
`), 0o600)
	require.NoError(t, err)

	t.Setenv("LEDGER_SIGNER_RESOLVER_SEARCH_LIMIT", "5")

	cfg, err := config.LoadServiceConfig(path)
	require.NoError(t, err)

	assert.Equal(t, uint64(31337), cfg.Chain.ID)
	assert.Equal(t, "ledgerlive", cfg.Resolver.Iterator)
	// environment wins over the file
	assert.Equal(t, 5, cfg.Resolver.SearchLimit)
}

func TestLoadServiceConfigInvalidLevel(t *testing.T) {
	t.Setenv("LEDGER_SIGNER_LOGGER_LEVEL", "loud")

	_, err := config.LoadServiceConfig("")
	require.Error(t, err)
}

func TestGetFormattedBuildArgs(t *testing.T) {
	assert.Contains(t, config.GetFormattedBuildArgs(), config.ModuleName)
}
