package port

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Unsubscribe removes a previously registered listener. Calling it more than once is a no-op.
type Unsubscribe func()

// ContractCall describes a state-changing call sent through the wallet.
type ContractCall struct {
	To     common.Address
	ABI    abi.ABI
	Method string
	Args   []any
	Value  *big.Int // Native asset attached to the call, nil for none
}

// WalletProvider is the signing wallet the flows operate through.
type WalletProvider interface {
	// Accounts returns the accounts currently exposed by the wallet. An empty slice means disconnected.
	Accounts(ctx context.Context) ([]common.Address, error)

	// Network returns the chain identifier the wallet is connected to.
	Network(ctx context.Context) (uint64, error)

	// NativeBalance returns the native asset balance of an account in wei.
	NativeBalance(ctx context.Context, account common.Address) (*big.Int, error)

	// Transact signs and sends a contract call and returns the transaction handle.
	Transact(ctx context.Context, call ContractCall) (*types.Transaction, error)

	// WaitMined blocks until the transaction is included or ctx is done.
	WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error)

	SubscribeAccountsChanged(fn func(accounts []common.Address)) Unsubscribe
	SubscribeChainChanged(fn func(chainID uint64)) Unsubscribe
}
