package wallet

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"tg_wallet/internal/app/port"
	"tg_wallet/internal/infrastructure/configloader"
)

// ErrNoAccount is returned when a transaction is requested while no key is loaded.
var ErrNoAccount = errors.New("no wallet account connected")

// ErrClosed is returned by chain calls made after Close.
var ErrClosed = errors.New("wallet connection is closed")

// backend is the subset of ethclient.Client the wallet uses.
type backend interface {
	bind.ContractBackend
	bind.DeployBackend
	ChainID(ctx context.Context) (*big.Int, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	Close()
}

type dialFunc func(ctx context.Context, rpcURL string) (backend, error)

func dialEthclient(ctx context.Context, rpcURL string) (backend, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// KeyedWallet implements port.WalletProvider with a private key held in process.
// A nil key means no account is exposed, as with a disconnected browser wallet.
type KeyedWallet struct {
	logger         *zap.Logger
	dial           dialFunc
	connectTimeout time.Duration
	pollInterval   time.Duration

	mu      sync.RWMutex
	key     *ecdsa.PrivateKey
	client  backend
	rpcURL  string
	chainID uint64

	accountsChanged *observer[[]common.Address]
	chainChanged    *observer[uint64]
}

// NewKeyedWallet connects to the wallet RPC URL and loads the configured key.
// An empty key starts the wallet without accounts.
func NewKeyedWallet(ctx context.Context, cfg configloader.WalletConfig, logger *zap.Logger) (*KeyedWallet, error) {
	return newKeyedWallet(ctx, cfg, logger, dialEthclient)
}

func newKeyedWallet(ctx context.Context, cfg configloader.WalletConfig, logger *zap.Logger, dial dialFunc) (*KeyedWallet, error) {
	if strings.TrimSpace(cfg.RPCURL) == "" {
		return nil, port.ConfigurationErrorf("wallet RPC URL is not set (config wallet.rpcUrl or %s)", configloader.EnvWalletRPCURL)
	}
	w := &KeyedWallet{
		logger:          logger.Named("KeyedWallet"),
		dial:            dial,
		connectTimeout:  time.Duration(cfg.ConnectTimeoutSeconds) * time.Second,
		pollInterval:    time.Duration(cfg.ChainPollSeconds) * time.Second,
		accountsChanged: newObserver[[]common.Address](),
		chainChanged:    newObserver[uint64](),
	}
	if cfg.PrivateKey != "" {
		key, err := ParsePrivateKey(cfg.PrivateKey)
		if err != nil {
			return nil, err
		}
		w.key = key
	}
	client, chainID, err := w.connect(ctx, cfg.RPCURL)
	if err != nil {
		return nil, err
	}
	w.client, w.rpcURL, w.chainID = client, cfg.RPCURL, chainID

	w.logger.Info("Wallet connected", zap.Uint64("chainId", chainID), zap.Int("accounts", len(w.accountsLocked())))
	return w, nil
}

// ParsePrivateKey parses a hex encoded secp256k1 key with or without 0x prefix.
func ParsePrivateKey(hexKey string) (*ecdsa.PrivateKey, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, port.ConfigurationErrorf("invalid wallet private key: %v", err)
	}
	return key, nil
}

func (w *KeyedWallet) connect(ctx context.Context, rpcURL string) (backend, uint64, error) {
	ctx, cancel := context.WithTimeout(ctx, w.connectTimeout)
	defer cancel()

	client, err := w.dial(ctx, rpcURL)
	if err != nil {
		return nil, 0, port.MarkWallet(fmt.Errorf("failed to connect wallet RPC: %w", err))
	}
	id, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, 0, port.MarkWallet(fmt.Errorf("failed to read chain id: %w", err))
	}
	return client, id.Uint64(), nil
}

// Accounts returns the address of the loaded key, or nothing when disconnected.
func (w *KeyedWallet) Accounts(context.Context) ([]common.Address, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.accountsLocked(), nil
}

func (w *KeyedWallet) accountsLocked() []common.Address {
	if w.key == nil {
		return []common.Address{}
	}
	return []common.Address{crypto.PubkeyToAddress(w.key.PublicKey)}
}

// Network returns the chain id of the current connection.
func (w *KeyedWallet) Network(context.Context) (uint64, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.chainID, nil
}

// NativeBalance returns the latest native balance of account.
func (w *KeyedWallet) NativeBalance(ctx context.Context, account common.Address) (*big.Int, error) {
	client, err := w.backend()
	if err != nil {
		return nil, err
	}
	balance, err := client.BalanceAt(ctx, account, nil)
	if err != nil {
		return nil, port.MarkChain(fmt.Errorf("failed to read native balance of %s: %w", account.Hex(), err))
	}
	return balance, nil
}

// Transact signs the call with the loaded key and broadcasts it.
func (w *KeyedWallet) Transact(ctx context.Context, call port.ContractCall) (*types.Transaction, error) {
	w.mu.RLock()
	key, client, chainID := w.key, w.client, w.chainID
	w.mu.RUnlock()

	if key == nil {
		return nil, port.MarkWallet(ErrNoAccount)
	}
	if client == nil {
		return nil, port.MarkWallet(ErrClosed)
	}
	opts, err := bind.NewKeyedTransactorWithChainID(key, new(big.Int).SetUint64(chainID))
	if err != nil {
		return nil, port.MarkWallet(fmt.Errorf("failed to create transactor: %w", err))
	}
	opts.Context = ctx
	opts.Value = call.Value

	contract := bind.NewBoundContract(call.To, call.ABI, client, client, client)
	tx, err := contract.Transact(opts, call.Method, call.Args...)
	if err != nil {
		return nil, port.MarkWallet(fmt.Errorf("%s transaction was not sent: %w", call.Method, err))
	}
	w.logger.Info("Transaction sent",
		zap.String("method", call.Method),
		zap.String("txHash", tx.Hash().Hex()),
		zap.Uint64("chainId", chainID))
	return tx, nil
}

// WaitMined blocks until tx has a receipt or ctx is done.
func (w *KeyedWallet) WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	client, err := w.backend()
	if err != nil {
		return nil, err
	}
	receipt, err := bind.WaitMined(ctx, client, tx)
	if err != nil {
		return nil, port.MarkChain(err)
	}
	return receipt, nil
}

// SubscribeAccountsChanged registers fn for account changes.
func (w *KeyedWallet) SubscribeAccountsChanged(fn func(accounts []common.Address)) port.Unsubscribe {
	return w.accountsChanged.subscribe(fn)
}

// SubscribeChainChanged registers fn for chain changes.
func (w *KeyedWallet) SubscribeChainChanged(fn func(chainID uint64)) port.Unsubscribe {
	return w.chainChanged.subscribe(fn)
}

// SwitchAccount replaces the loaded key. A nil key disconnects the wallet.
func (w *KeyedWallet) SwitchAccount(key *ecdsa.PrivateKey) {
	w.mu.Lock()
	w.key = key
	accounts := w.accountsLocked()
	w.mu.Unlock()

	w.logger.Info("Wallet account changed", zap.Int("accounts", len(accounts)))
	w.accountsChanged.emit(accounts)
}

// SwitchNetwork reconnects the wallet to rpcURL. Subscribers are notified when the chain id differs.
func (w *KeyedWallet) SwitchNetwork(ctx context.Context, rpcURL string) error {
	client, chainID, err := w.connect(ctx, rpcURL)
	if err != nil {
		return err
	}

	w.mu.Lock()
	old, previous := w.client, w.chainID
	w.client, w.rpcURL, w.chainID = client, rpcURL, chainID
	w.mu.Unlock()

	if old != nil {
		old.Close()
	}
	if previous != chainID {
		w.logger.Info("Wallet network changed", zap.Uint64("from", previous), zap.Uint64("to", chainID))
		w.chainChanged.emit(chainID)
	}
	return nil
}

// Run polls the connection for chain id changes until ctx is done.
func (w *KeyedWallet) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.pollChain(ctx)
		}
	}
}

func (w *KeyedWallet) pollChain(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, w.connectTimeout)
	defer cancel()

	client, err := w.backend()
	if err != nil {
		return
	}
	id, err := client.ChainID(ctx)
	if err != nil {
		w.logger.Warn("Chain id poll failed", zap.Error(err))
		return
	}
	w.mu.Lock()
	// A SwitchNetwork that landed during the poll owns the chain id now.
	if w.client != client {
		w.mu.Unlock()
		return
	}
	changed := id.Uint64() != w.chainID
	w.chainID = id.Uint64()
	w.mu.Unlock()

	if changed {
		w.logger.Info("Wallet network changed", zap.Uint64("to", id.Uint64()))
		w.chainChanged.emit(id.Uint64())
	}
}

func (w *KeyedWallet) backend() (backend, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.client == nil {
		return nil, port.MarkWallet(ErrClosed)
	}
	return w.client, nil
}

// Close releases the RPC connection.
func (w *KeyedWallet) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.client != nil {
		w.client.Close()
		w.client = nil
	}
}
