package networkdefinition

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"tg_wallet/internal/app/port"
	"tg_wallet/internal/domain/entity"
	"tg_wallet/internal/infrastructure/configloader"
)

// EndpointProvider resolves chain identifiers to RPC endpoints. All endpoints are
// resolved when it is created, so a missing URL is reported at startup.
type EndpointProvider struct {
	logger    port.Logger
	endpoints map[uint64]entity.NetworkEndpoint
}

// NewEndpointProvider builds the endpoint table from the configured networks. A network
// whose URL is neither in the file nor in its environment variable is a configuration error.
func NewEndpointProvider(log port.Logger, networks []configloader.NetworkNodeConfig) (*EndpointProvider, error) {
	return newEndpointProvider(log, networks, os.Getenv)
}

func newEndpointProvider(log port.Logger, networks []configloader.NetworkNodeConfig, getenv func(string) string) (*EndpointProvider, error) {
	if len(networks) == 0 {
		return nil, port.ConfigurationErrorf("no networks configured")
	}
	p := &EndpointProvider{
		logger:    log,
		endpoints: make(map[uint64]entity.NetworkEndpoint, len(networks)),
	}
	var missing []string
	for _, n := range networks {
		if n.ChainID == 0 {
			return nil, port.ConfigurationErrorf("network %q has no chain id", n.Name)
		}
		if _, dup := p.endpoints[n.ChainID]; dup {
			return nil, port.ConfigurationErrorf("chain %d configured more than once", n.ChainID)
		}
		url := strings.TrimSpace(n.RPCURL)
		if n.RPCURLEnv != "" {
			if v := strings.TrimSpace(getenv(n.RPCURLEnv)); v != "" {
				url = v
			}
		}
		if url == "" {
			source := "rpcUrl"
			if n.RPCURLEnv != "" {
				source = n.RPCURLEnv + " environment variable"
			}
			missing = append(missing, fmt.Sprintf("%s (chain %d): %s is not set", n.Name, n.ChainID, source))
			continue
		}
		p.endpoints[n.ChainID] = entity.NetworkEndpoint{
			ChainID: n.ChainID,
			Name:    n.Name,
			RPCURL:  url,
			EnvVar:  n.RPCURLEnv,
		}
		log.Debug("Network endpoint configured", "network", n.Name, "chain_id", n.ChainID)
	}
	if len(missing) > 0 {
		return nil, port.ConfigurationErrorf("missing RPC endpoints: %s", strings.Join(missing, "; "))
	}
	log.Info(fmt.Sprintf("EndpointProvider initialized. Networks: %d", len(p.endpoints)))
	return p, nil
}

// Resolve returns the endpoint for chainID or a configuration error for an unknown chain.
func (p *EndpointProvider) Resolve(chainID uint64) (entity.NetworkEndpoint, error) {
	ep, ok := p.endpoints[chainID]
	if !ok {
		return entity.NetworkEndpoint{}, port.ConfigurationErrorf("no RPC endpoint configured for chain %d", chainID)
	}
	return ep, nil
}

// Endpoints returns all endpoints ordered by chain id.
func (p *EndpointProvider) Endpoints() []entity.NetworkEndpoint {
	out := make([]entity.NetworkEndpoint, 0, len(p.endpoints))
	for _, ep := range p.endpoints {
		out = append(out, ep)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChainID < out[j].ChainID })
	return out
}
