package client

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/atomic"
	"golang.org/x/time/rate"

	"tg_wallet/internal/app/port"
	"tg_wallet/internal/domain/entity"
	"tg_wallet/internal/pkg/metrics"
)

// ErrEmptyResult is returned when a view call yields no data, typically because
// there is no contract at the address on this chain.
var ErrEmptyResult = errors.New("contract call returned no data")

// ErrClientClosed is returned by calls on a client after Close.
var ErrClientClosed = errors.New("EVM client is closed")

// EVMClient implements port.ChainRPCClient for EVM-compatible chains.
type EVMClient struct {
	ethClient      *ethclient.Client
	endpoint       entity.NetworkEndpoint
	rpcCallTimeout time.Duration
	limiter        *rate.Limiter
	closed         *atomic.Bool
}

// NewEVMClient connects to the endpoint's RPC URL.
func NewEVMClient(endpoint entity.NetworkEndpoint, connectionTimeout, rpcCallTimeout time.Duration, limiter *rate.Limiter) (*EVMClient, error) {
	ctx, cancel := context.WithTimeout(context.Background(), connectionTimeout)
	defer cancel()

	client, err := ethclient.DialContext(ctx, endpoint.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC for network %s: %w", endpoint.Name, err)
	}
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 1)
	}
	return &EVMClient{ethClient: client, endpoint: endpoint, rpcCallTimeout: rpcCallTimeout, limiter: limiter, closed: atomic.NewBool(false)}, nil
}

// CallView packs method with args, runs eth_call against the latest block and unpacks the outputs.
func (c *EVMClient) CallView(ctx context.Context, contract common.Address, contractABI abi.ABI, method string, args ...any) ([]any, error) {
	if c.closed.Load() {
		return nil, port.MarkChain(fmt.Errorf("%s on %s: %w", method, c.endpoint.Name, ErrClientClosed))
	}
	data, err := contractABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s call: %w", method, err)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter for %s: %w", c.endpoint.Name, err)
	}

	callCtx, cancel := context.WithTimeout(ctx, c.rpcCallTimeout)
	defer cancel()

	chain := strconv.FormatUint(c.endpoint.ChainID, 10)
	out, err := c.ethClient.CallContract(callCtx, ethereum.CallMsg{To: &contract, Data: data}, nil)
	if err != nil {
		metrics.RPCCalls.WithLabelValues(chain, "error").Inc()
		return nil, port.MarkChain(fmt.Errorf("eth_call %s on %s failed: %w", method, c.endpoint.Name, err))
	}
	if len(out) == 0 {
		metrics.RPCCalls.WithLabelValues(chain, "empty").Inc()
		return nil, port.MarkChain(fmt.Errorf("%s at %s on %s: %w", method, contract.Hex(), c.endpoint.Name, ErrEmptyResult))
	}
	values, err := contractABI.Unpack(method, out)
	if err != nil {
		metrics.RPCCalls.WithLabelValues(chain, "error").Inc()
		return nil, port.MarkChain(fmt.Errorf("failed to unpack %s result: %w", method, err))
	}
	metrics.RPCCalls.WithLabelValues(chain, "ok").Inc()
	return values, nil
}

// Endpoint returns the endpoint for this client.
func (c *EVMClient) Endpoint() entity.NetworkEndpoint {
	return c.endpoint
}

// Close releases the underlying RPC connection.
func (c *EVMClient) Close() {
	if c.closed.Swap(true) {
		return
	}
	c.ethClient.Close()
}
