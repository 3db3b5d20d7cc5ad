package port

import (
	"context"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"tg_wallet/internal/domain/entity"
)

// ChainRPCClient performs read-only contract calls against one RPC endpoint.
type ChainRPCClient interface {
	// CallView invokes a view function and returns its unpacked outputs.
	CallView(ctx context.Context, contract common.Address, contractABI abi.ABI, method string, args ...any) ([]any, error)

	// Endpoint returns the endpoint this client is bound to.
	Endpoint() entity.NetworkEndpoint
}

// ChainClientProvider hands out read-only clients per endpoint.
type ChainClientProvider interface {
	Client(endpoint entity.NetworkEndpoint) (ChainRPCClient, error)
}

// EndpointResolver maps chain identifiers to RPC endpoints.
type EndpointResolver interface {
	// Resolve returns the endpoint for chainID or a configuration error.
	Resolve(chainID uint64) (entity.NetworkEndpoint, error)
	Endpoints() []entity.NetworkEndpoint
}
