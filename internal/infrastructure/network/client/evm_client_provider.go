package client

import (
	"fmt"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"tg_wallet/internal/app/port"
	"tg_wallet/internal/domain/entity"
	"tg_wallet/internal/infrastructure/configloader"
)

const (
	defaultProviderConnectionTimeout = 10 * time.Second
)

// EVMClientProvider implements port.ChainClientProvider. Clients are cached per RPC URL
// and closed after they have been idle for the configured time.
type EVMClientProvider struct {
	clients           *cache.Cache
	mu                sync.Mutex
	loggerInfo        func(msg string, args ...any)
	loggerError       func(msg string, args ...any)
	connectionTimeout time.Duration
	rpcCallTimeout    time.Duration
	rateLimit         rate.Limit
	rateBurst         int
}

// NewEVMClientProvider creates a new EVMClientProvider.
func NewEVMClientProvider(
	cfg *configloader.Config,
	loggerInfo func(msg string, args ...any),
	loggerError func(msg string, args ...any),
) *EVMClientProvider {
	idle := time.Duration(cfg.BalanceSync.ClientIdleMinutes) * time.Minute
	clients := cache.New(idle, idle/2)
	clients.OnEvicted(func(url string, v interface{}) {
		if c, ok := v.(*EVMClient); ok {
			c.Close()
			loggerInfo("Closed idle EVM client", "network", c.Endpoint().Name)
		}
	})
	return &EVMClientProvider{
		clients:           clients,
		loggerInfo:        loggerInfo,
		loggerError:       loggerError,
		connectionTimeout: defaultProviderConnectionTimeout,
		rpcCallTimeout:    time.Duration(cfg.BalanceSync.RPCCallTimeoutSeconds) * time.Second,
		rateLimit:         rate.Limit(cfg.BalanceSync.RateLimitPerSecond),
		rateBurst:         cfg.BalanceSync.RateLimitBurst,
	}
}

// Client returns a cached client for the endpoint, dialing a new one if needed.
func (p *EVMClientProvider) Client(endpoint entity.NetworkEndpoint) (port.ChainRPCClient, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if v, found := p.clients.Get(endpoint.RPCURL); found {
		p.clients.SetDefault(endpoint.RPCURL, v)
		return v.(*EVMClient), nil
	}

	p.loggerInfo("Creating new EVM client", "network", endpoint.Name, "chain_id", endpoint.ChainID)
	newClient, err := NewEVMClient(endpoint, p.connectionTimeout, p.rpcCallTimeout, rate.NewLimiter(p.rateLimit, p.rateBurst))
	if err != nil {
		p.loggerError("Failed to create EVM client", "network", endpoint.Name, "error", err)
		return nil, fmt.Errorf("failed to create EVM client for %s: %w", endpoint.Name, err)
	}

	p.clients.SetDefault(endpoint.RPCURL, newClient)
	return newClient, nil
}

// Close closes every cached client.
func (p *EVMClientProvider) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	// Flush does not run the eviction callback.
	for url, item := range p.clients.Items() {
		if c, ok := item.Object.(*EVMClient); ok {
			c.Close()
			p.loggerInfo("Closed EVM client", "network", c.Endpoint().Name, "url", url)
		}
	}
	p.clients.Flush()
}
