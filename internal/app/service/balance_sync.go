package service

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/atomic"

	"tg_wallet/internal/app/port"
	"tg_wallet/internal/domain/entity"
	"tg_wallet/internal/pkg/metrics"
	"tg_wallet/internal/pkg/utils"
)

// DefaultDebounce lets a wallet settle after an account or chain change before it is queried.
const DefaultDebounce = time.Second

// BalanceSync keeps a BalanceState consistent with the TG balance recorded on chain
// for the wallet's active account and network.
type BalanceSync struct {
	state    *BalanceState
	wallet   port.WalletProvider
	resolver port.EndpointResolver
	clients  port.ChainClientProvider
	registry StakeRegistry
	logger   port.Logger
	debounce time.Duration

	seq *atomic.Uint64

	mu      sync.Mutex
	timer   *time.Timer
	running bool
	wg      sync.WaitGroup
}

// NewBalanceSync creates a BalanceSync writing into state. A negative debounce disables the delay.
func NewBalanceSync(
	state *BalanceState,
	wallet port.WalletProvider,
	resolver port.EndpointResolver,
	clients port.ChainClientProvider,
	registry StakeRegistry,
	logger port.Logger,
	debounce time.Duration,
) *BalanceSync {
	if debounce < 0 {
		debounce = 0
	}
	return &BalanceSync{
		state:    state,
		wallet:   wallet,
		resolver: resolver,
		clients:  clients,
		registry: registry,
		logger:   logger,
		debounce: debounce,
		seq:      atomic.NewUint64(0),
	}
}

// State returns the balance state this sync writes to.
func (s *BalanceSync) State() *BalanceState {
	return s.state
}

// Refresh waits for the debounce delay and then synchronizes the balance once.
// RPC and contract failures are logged and leave the balance unchanged; only a
// configuration error (no endpoint for the active chain) is returned.
func (s *BalanceSync) Refresh(ctx context.Context) error {
	if !s.registry.Valid() {
		s.logger.Debug("Skipping balance sync, stake registry address is not valid", "address", s.registry.Address)
		metrics.BalanceSyncs.WithLabelValues("skipped").Inc()
		return nil
	}
	if s.debounce > 0 {
		t := time.NewTimer(s.debounce)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil
		case <-t.C:
		}
	}
	return s.sync(ctx)
}

func (s *BalanceSync) sync(ctx context.Context) error {
	seq := s.seq.Inc()

	accounts, err := s.wallet.Accounts(ctx)
	if err != nil {
		s.logger.Warn("Failed to read wallet accounts", "error", err)
		metrics.BalanceSyncs.WithLabelValues("error").Inc()
		return nil
	}
	if len(accounts) == 0 {
		s.state.reset(seq)
		metrics.BalanceSyncs.WithLabelValues("reset").Inc()
		return nil
	}
	account := accounts[0]

	chainID, err := s.wallet.Network(ctx)
	if err != nil {
		s.logger.Warn("Failed to read wallet network", "error", err)
		metrics.BalanceSyncs.WithLabelValues("error").Inc()
		return nil
	}

	endpoint, err := s.resolver.Resolve(chainID)
	if err != nil {
		s.logger.Error("No RPC endpoint for active chain", "chain_id", chainID, "error", err)
		metrics.BalanceSyncs.WithLabelValues("error").Inc()
		if errors.Is(err, port.ErrConfiguration) {
			return err
		}
		return nil
	}
	s.logger.Debug("Using RPC endpoint", "chain_id", chainID, "network", endpoint.Name)

	raw, err := s.readBalance(ctx, endpoint, account)
	if err != nil {
		s.logger.Error("Error fetching TG balance", "account", account.Hex(), "chain_id", chainID, "error", err)
		metrics.BalanceSyncs.WithLabelValues("error").Inc()
		return nil
	}

	balance := entity.Balance{
		Account:  account,
		ChainID:  chainID,
		Amount:   utils.FromSmallestUnit(raw, entity.TGDecimals),
		Raw:      raw,
		ReadAt:   time.Now(),
		Sequence: seq,
	}
	if s.state.publish(balance) {
		s.logger.Info("TG balance updated", "account", account.Hex(), "chain_id", chainID, "balance", balance.Formatted())
		metrics.BalanceSyncs.WithLabelValues("ok").Inc()
	} else {
		metrics.BalanceSyncs.WithLabelValues("unchanged").Inc()
	}
	return nil
}

func (s *BalanceSync) readBalance(ctx context.Context, endpoint entity.NetworkEndpoint, account common.Address) (*big.Int, error) {
	client, err := s.clients.Client(endpoint)
	if err != nil {
		return nil, err
	}
	out, err := client.CallView(ctx, s.registry.Contract(), s.registry.ABI, s.registry.BalanceMethod, account)
	if err != nil {
		return nil, err
	}
	if len(out) < 2 {
		return nil, fmt.Errorf("%s returned %d values, expected 2", s.registry.BalanceMethod, len(out))
	}
	raw, ok := out[1].(*big.Int)
	if !ok || raw == nil {
		return nil, fmt.Errorf("%s returned %T for the TG balance", s.registry.BalanceMethod, out[1])
	}
	if raw.Sign() < 0 {
		return nil, fmt.Errorf("%s returned a negative TG balance", s.registry.BalanceMethod)
	}
	return raw, nil
}

// Start subscribes to wallet account and chain changes and runs an initial sync.
// Change events are coalesced: a burst of events results in one sync after the
// debounce delay. The returned stop function unsubscribes and waits for a running sync.
func (s *BalanceSync) Start(ctx context.Context) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	s.running = true
	s.mu.Unlock()

	unsubAccounts := s.wallet.SubscribeAccountsChanged(func(accounts []common.Address) {
		if len(accounts) == 0 {
			s.cancelPending()
			s.state.reset(s.seq.Inc())
			metrics.BalanceSyncs.WithLabelValues("reset").Inc()
			return
		}
		s.schedule(ctx)
	})
	unsubChain := s.wallet.SubscribeChainChanged(func(uint64) {
		s.schedule(ctx)
	})

	s.schedule(ctx)

	var once sync.Once
	return func() {
		once.Do(func() {
			unsubAccounts()
			unsubChain()
			s.mu.Lock()
			s.running = false
			if s.timer != nil {
				s.timer.Stop()
				s.timer = nil
			}
			s.mu.Unlock()
			cancel()
			s.wg.Wait()
		})
	}
}

// schedule arms or re-arms the debounce timer for an event-driven sync.
func (s *BalanceSync) schedule(ctx context.Context) {
	if !s.registry.Valid() {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	if s.timer != nil && s.timer.Stop() {
		s.timer.Reset(s.debounce)
		return
	}
	s.timer = time.AfterFunc(s.debounce, func() {
		s.mu.Lock()
		if !s.running {
			s.mu.Unlock()
			return
		}
		s.wg.Add(1)
		s.mu.Unlock()
		defer s.wg.Done()

		if err := s.sync(ctx); err != nil {
			s.logger.Error("Balance sync failed", "error", err)
		}
	})
}

func (s *BalanceSync) cancelPending() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
	}
}
