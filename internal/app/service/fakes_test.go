package service

import (
	"context"
	"errors"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"tg_wallet/internal/app/port"
	"tg_wallet/internal/domain/entity"
)

var (
	testAccount  = common.HexToAddress("0x1111111111111111111111111111111111111111")
	testRegistry = "0x2222222222222222222222222222222222222222"
)

func tg(whole int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(whole), big.NewInt(1e18))
}

type nopLogger struct{}

func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

type fakeWallet struct {
	mu          sync.Mutex
	accounts    []common.Address
	chainID     uint64
	native      *big.Int
	nativeErr   error
	transactErr error
	waitErr     error
	status      uint64
	waitGate    chan struct{}
	calls       int
	sent        []port.ContractCall
	mined       bool

	nextSub     int
	accountSubs map[int]func([]common.Address)
	chainSubs   map[int]func(uint64)
}

func newFakeWallet() *fakeWallet {
	return &fakeWallet{
		accounts:    []common.Address{testAccount},
		chainID:     84532,
		native:      tg(100),
		status:      types.ReceiptStatusSuccessful,
		accountSubs: make(map[int]func([]common.Address)),
		chainSubs:   make(map[int]func(uint64)),
	}
}

func (w *fakeWallet) Accounts(context.Context) ([]common.Address, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls++
	return append([]common.Address(nil), w.accounts...), nil
}

func (w *fakeWallet) Network(context.Context) (uint64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls++
	return w.chainID, nil
}

func (w *fakeWallet) NativeBalance(context.Context, common.Address) (*big.Int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls++
	return w.native, w.nativeErr
}

func (w *fakeWallet) Transact(_ context.Context, call port.ContractCall) (*types.Transaction, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls++
	w.sent = append(w.sent, call)
	if w.transactErr != nil {
		return nil, w.transactErr
	}
	to := call.To
	return types.NewTx(&types.LegacyTx{Nonce: uint64(len(w.sent)), To: &to, Value: call.Value}), nil
}

func (w *fakeWallet) WaitMined(ctx context.Context, _ *types.Transaction) (*types.Receipt, error) {
	w.mu.Lock()
	gate := w.waitGate
	w.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.mined = true
	if w.waitErr != nil {
		return nil, w.waitErr
	}
	return &types.Receipt{Status: w.status, BlockNumber: big.NewInt(7)}, nil
}

func (w *fakeWallet) SubscribeAccountsChanged(fn func([]common.Address)) port.Unsubscribe {
	w.mu.Lock()
	defer w.mu.Unlock()
	id := w.nextSub
	w.nextSub++
	w.accountSubs[id] = fn
	return func() {
		w.mu.Lock()
		delete(w.accountSubs, id)
		w.mu.Unlock()
	}
}

func (w *fakeWallet) SubscribeChainChanged(fn func(uint64)) port.Unsubscribe {
	w.mu.Lock()
	defer w.mu.Unlock()
	id := w.nextSub
	w.nextSub++
	w.chainSubs[id] = fn
	return func() {
		w.mu.Lock()
		delete(w.chainSubs, id)
		w.mu.Unlock()
	}
}

func (w *fakeWallet) setAccounts(accounts ...common.Address) {
	w.mu.Lock()
	w.accounts = accounts
	subs := make([]func([]common.Address), 0, len(w.accountSubs))
	for _, fn := range w.accountSubs {
		subs = append(subs, fn)
	}
	w.mu.Unlock()
	for _, fn := range subs {
		fn(accounts)
	}
}

func (w *fakeWallet) setChain(chainID uint64) {
	w.mu.Lock()
	w.chainID = chainID
	subs := make([]func(uint64), 0, len(w.chainSubs))
	for _, fn := range w.chainSubs {
		subs = append(subs, fn)
	}
	w.mu.Unlock()
	for _, fn := range subs {
		fn(chainID)
	}
}

func (w *fakeWallet) callCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.calls
}

func (w *fakeWallet) subscriberCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.accountSubs) + len(w.chainSubs)
}

type fakeResolver struct {
	endpoints map[uint64]entity.NetworkEndpoint
}

func newFakeResolver() *fakeResolver {
	return &fakeResolver{endpoints: map[uint64]entity.NetworkEndpoint{
		84532: {ChainID: 84532, Name: "Base Sepolia", RPCURL: "http://base.invalid"},
		10:    {ChainID: 10, Name: "OP Mainnet", RPCURL: "http://op.invalid"},
	}}
}

func (r *fakeResolver) Resolve(chainID uint64) (entity.NetworkEndpoint, error) {
	ep, ok := r.endpoints[chainID]
	if !ok {
		return entity.NetworkEndpoint{}, port.ConfigurationErrorf("no RPC endpoint configured for chain %d", chainID)
	}
	return ep, nil
}

func (r *fakeResolver) Endpoints() []entity.NetworkEndpoint {
	out := make([]entity.NetworkEndpoint, 0, len(r.endpoints))
	for _, ep := range r.endpoints {
		out = append(out, ep)
	}
	return out
}

type fakeChain struct {
	mu       sync.Mutex
	balances map[uint64]*big.Int
	err      error
	calls    int
}

func newFakeChain() *fakeChain {
	return &fakeChain{balances: map[uint64]*big.Int{84532: tg(10), 10: tg(3)}}
}

func (c *fakeChain) Client(ep entity.NetworkEndpoint) (port.ChainRPCClient, error) {
	return &fakeChainClient{chain: c, endpoint: ep}, nil
}

func (c *fakeChain) set(chainID uint64, v *big.Int) {
	c.mu.Lock()
	c.balances[chainID] = v
	c.mu.Unlock()
}

func (c *fakeChain) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

type fakeChainClient struct {
	chain    *fakeChain
	endpoint entity.NetworkEndpoint
}

func (c *fakeChainClient) CallView(_ context.Context, _ common.Address, _ abi.ABI, method string, args ...any) ([]any, error) {
	c.chain.mu.Lock()
	defer c.chain.mu.Unlock()
	c.chain.calls++
	if c.chain.err != nil {
		return nil, c.chain.err
	}
	if method != "getBalance" || len(args) != 1 {
		return nil, errors.New("unexpected call")
	}
	v := c.chain.balances[c.endpoint.ChainID]
	if v == nil {
		v = big.NewInt(0)
	}
	return []any{big.NewInt(0), new(big.Int).Set(v)}, nil
}

func (c *fakeChainClient) Endpoint() entity.NetworkEndpoint { return c.endpoint }

type recordingNotifier struct {
	mu   sync.Mutex
	sent []entity.Notification
}

func (n *recordingNotifier) Notify(_ context.Context, msg entity.Notification) {
	n.mu.Lock()
	n.sent = append(n.sent, msg)
	n.mu.Unlock()
}

func (n *recordingNotifier) all() []entity.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]entity.Notification(nil), n.sent...)
}

func mustRegistry(address string) StakeRegistry {
	r, err := NewStakeRegistry(address, "getBalance", "purchaseTG", "claimETHForTG")
	if err != nil {
		panic(err)
	}
	return r
}
