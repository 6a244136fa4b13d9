package app_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github/chapool/ledger-signer/internal/app"
	"github/chapool/ledger-signer/internal/config"
	"github/chapool/ledger-signer/internal/wallet"
	"github/chapool/ledger-signer/internal/wallet/chain"
	"github/chapool/ledger-signer/internal/wallet/seed"
	"github/chapool/ledger-signer/internal/wallet/transport/emulator"
)

const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

func newTestApp(t *testing.T) *app.App {
	t.Helper()

	cfg, err := config.LoadServiceConfig("")
	require.NoError(t, err)
	cfg.Resolver.SearchLimit = 2
	cfg.Emulator.KeystorePath = filepath.Join(t.TempDir(), "keystore.json")

	seeds := seed.NewManager()
	require.NoError(t, seeds.Initialize(testMnemonic, ""))

	chainConfig, err := chain.NewConfig(cfg.Chain.ID)
	require.NoError(t, err)

	a, err := app.InitNewAppWithTransport(cfg, emulator.New(seeds, chainConfig))
	require.NoError(t, err)

	a.InitRouter()
	t.Cleanup(func() {
		assert.Empty(t, a.Shutdown(context.Background()))
	})

	return a
}

func get(t *testing.T, a *app.App, path string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	a.Echo.ServeHTTP(rec, req)

	return rec
}

func TestProbes(t *testing.T) {
	a := newTestApp(t)

	res := get(t, a, "/-/healthy")
	assert.Equal(t, http.StatusOK, res.Code)

	res = get(t, a, "/-/ready")
	assert.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, "ready", res.Body.String())
}

func TestReadyRequiresUnlockedEmulator(t *testing.T) {
	a := newTestApp(t)
	a.Config.Emulator.Enabled = true

	res := get(t, a, "/-/ready")
	assert.Equal(t, http.StatusServiceUnavailable, res.Code)

	require.NoError(t, a.Seeds.Initialize(testMnemonic, ""))

	res = get(t, a, "/-/ready")
	assert.Equal(t, http.StatusOK, res.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	a := newTestApp(t)

	_, err := a.Signer.SignTransaction(t.Context(), &wallet.TransactionRequest{
		From:     "0x9858EfFD232B4033E47d90003D41EC34EcaEda94",
		To:       "0x3535353535353535353535353535353535353535",
		Value:    uint256.NewInt(1),
		GasPrice: uint256.NewInt(1),
		GasLimit: 21000,
	})
	require.NoError(t, err)

	res := get(t, a, "/metrics")
	require.Equal(t, http.StatusOK, res.Code)

	body := res.Body.String()
	assert.Contains(t, body, `ledger_signer_sign_requests_total{result="success"} 1`)
	assert.Contains(t, body, "ledger_signer_device_sessions_opened_total 1")
	assert.Contains(t, body, "go_goroutines")
}

func TestStartRequiresListenAddress(t *testing.T) {
	a := newTestApp(t)

	require.Error(t, a.Start())
}
