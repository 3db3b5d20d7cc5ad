package networkdefinition

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tg_wallet/internal/app/port"
	"tg_wallet/internal/infrastructure/configloader"
)

type nopLogger struct{}

func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

func envOf(values map[string]string) func(string) string {
	return func(k string) string { return values[k] }
}

func TestDefaultNetworksResolveFromEnvironment(t *testing.T) {
	p, err := newEndpointProvider(nopLogger{}, configloader.DefaultNetworks(), envOf(map[string]string{
		"TG_BASE_SEPOLIA_RPC_URL":     "https://base.example",
		"TG_OPTIMISM_SEPOLIA_RPC_URL": "https://op.example",
	}))
	require.NoError(t, err)

	for chainID, want := range map[uint64]string{
		84532:    "https://base.example",
		8453:     "https://base.example",
		11155420: "https://op.example",
		10:       "https://op.example",
	} {
		ep, err := p.Resolve(chainID)
		require.NoError(t, err)
		assert.Equal(t, want, ep.RPCURL)
	}
	assert.Len(t, p.Endpoints(), 4)
	assert.Equal(t, uint64(10), p.Endpoints()[0].ChainID)
}

func TestMissingEnvironmentIsFatal(t *testing.T) {
	_, err := newEndpointProvider(nopLogger{}, configloader.DefaultNetworks(), envOf(map[string]string{
		"TG_BASE_SEPOLIA_RPC_URL": "https://base.example",
	}))

	require.Error(t, err)
	assert.True(t, errors.Is(err, port.ErrConfiguration))
	assert.Contains(t, err.Error(), "TG_OPTIMISM_SEPOLIA_RPC_URL")
}

func TestUnknownChainIsConfigurationError(t *testing.T) {
	p, err := newEndpointProvider(nopLogger{}, []configloader.NetworkNodeConfig{
		{Name: "Local", ChainID: 31337, RPCURL: "http://127.0.0.1:8545"},
	}, envOf(nil))
	require.NoError(t, err)

	_, err = p.Resolve(1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, port.ErrConfiguration))
}

func TestEnvironmentOverridesFileURL(t *testing.T) {
	p, err := newEndpointProvider(nopLogger{}, []configloader.NetworkNodeConfig{
		{Name: "Local", ChainID: 31337, RPCURL: "http://file", RPCURLEnv: "LOCAL_RPC"},
	}, envOf(map[string]string{"LOCAL_RPC": "http://env"}))
	require.NoError(t, err)

	ep, err := p.Resolve(31337)
	require.NoError(t, err)
	assert.Equal(t, "http://env", ep.RPCURL)
}

func TestDuplicateChainRejected(t *testing.T) {
	_, err := newEndpointProvider(nopLogger{}, []configloader.NetworkNodeConfig{
		{Name: "A", ChainID: 1, RPCURL: "http://a"},
		{Name: "B", ChainID: 1, RPCURL: "http://b"},
	}, envOf(nil))
	assert.Error(t, err)
}
