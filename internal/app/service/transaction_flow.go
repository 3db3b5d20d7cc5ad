package service

import (
	"context"
	"fmt"
	"math/big"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"
	"go.uber.org/atomic"

	"tg_wallet/internal/app/port"
	"tg_wallet/internal/domain/entity"
	"tg_wallet/internal/pkg/metrics"
	"tg_wallet/internal/pkg/utils"
)

// DefaultTGPerNative is the display rate of the top-up dialog: 1 ETH = 1000 TG.
var DefaultTGPerNative = decimal.NewFromInt(1000)

// plainAmount accepts unsigned decimal notation only. Exponent forms must be
// rejected before any decimal arithmetic.
var plainAmount = regexp.MustCompile(`^(\d+\.?\d*|\.\d+)$`)

// parseAmount parses a user-entered TG amount in plain decimal notation.
func parseAmount(raw string) (decimal.Decimal, bool) {
	if !plainAmount.MatchString(raw) {
		return decimal.Zero, false
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, false
	}
	return v, true
}

// Refresher re-synchronizes the published balance.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// StateObserver is told about every state transition of a dialog.
type StateObserver func(dialogID string, state entity.FlowState)

// TransactionFlow submits top-ups and withdrawals through the wallet and
// keeps track of the dialogs they originate from.
type TransactionFlow struct {
	wallet      port.WalletProvider
	resolver    port.EndpointResolver
	balances    *BalanceState
	refresher   Refresher
	notifier    port.Notifier
	registry    StakeRegistry
	logger      port.Logger
	tgPerNative decimal.Decimal
	observer    StateObserver

	mu      sync.Mutex
	dialogs map[string]*Dialog
	nextID  *atomic.Uint64
}

// TransactionFlowOption customizes a TransactionFlow.
type TransactionFlowOption func(*TransactionFlow)

// WithStateObserver registers fn for dialog state transitions.
func WithStateObserver(fn StateObserver) TransactionFlowOption {
	return func(f *TransactionFlow) { f.observer = fn }
}

// WithTGPerNative overrides the rate used for native cost estimates.
func WithTGPerNative(rate decimal.Decimal) TransactionFlowOption {
	return func(f *TransactionFlow) {
		if rate.IsPositive() {
			f.tgPerNative = rate
		}
	}
}

// NewTransactionFlow creates a TransactionFlow. balances is read for withdrawal
// checks; refresher runs after every confirmed transaction.
func NewTransactionFlow(
	wallet port.WalletProvider,
	resolver port.EndpointResolver,
	balances *BalanceState,
	refresher Refresher,
	notifier port.Notifier,
	registry StakeRegistry,
	logger port.Logger,
	opts ...TransactionFlowOption,
) *TransactionFlow {
	f := &TransactionFlow{
		wallet:      wallet,
		resolver:    resolver,
		balances:    balances,
		refresher:   refresher,
		notifier:    notifier,
		registry:    registry,
		logger:      logger,
		tgPerNative: DefaultTGPerNative,
		dialogs:     make(map[string]*Dialog),
		nextID:      atomic.NewUint64(0),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// OpenDialog creates an open dialog for direction with an empty amount.
func (f *TransactionFlow) OpenDialog(direction entity.Direction) *Dialog {
	d := &Dialog{
		id:        fmt.Sprintf("dlg-%d", f.nextID.Inc()),
		direction: direction,
		flow:      f,
		state:     atomic.NewInt32(int32(entity.Idle)),
		open:      true,
	}
	f.mu.Lock()
	f.dialogs[d.id] = d
	f.mu.Unlock()
	f.logger.Debug("Dialog opened", "dialog", d.id, "direction", direction.String())
	return d
}

// Dialog returns an open dialog by id.
func (f *TransactionFlow) Dialog(id string) (*Dialog, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.dialogs[id]
	return d, ok
}

// CloseDialog closes the dialog and forgets it. It reports whether the dialog existed.
func (f *TransactionFlow) CloseDialog(id string) bool {
	f.mu.Lock()
	d, ok := f.dialogs[id]
	delete(f.dialogs, id)
	f.mu.Unlock()
	if ok {
		d.Close()
	}
	return ok
}

func (f *TransactionFlow) forget(id string) {
	f.mu.Lock()
	delete(f.dialogs, id)
	f.mu.Unlock()
}

// EstimateNative returns the native asset cost shown for a TG top-up, rounded to 6 decimals.
func (f *TransactionFlow) EstimateNative(amount string) (decimal.Decimal, bool) {
	v, ok := parseAmount(strings.TrimSpace(amount))
	if !ok || !v.IsPositive() {
		return decimal.Zero, false
	}
	return v.Div(f.tgPerNative).Round(6), true
}

// Dialog is one open top-up or withdraw dialog. At most one submission runs per dialog.
type Dialog struct {
	id        string
	direction entity.Direction
	flow      *TransactionFlow
	state     *atomic.Int32

	mu      sync.Mutex
	amount  string
	open    bool
	message string
}

// DialogView is a read-only snapshot of a dialog.
type DialogView struct {
	ID            string `json:"id"`
	Direction     string `json:"direction"`
	State         string `json:"state"`
	PendingAmount string `json:"pendingAmount"`
	Open          bool   `json:"open"`
	Message       string `json:"message,omitempty"`
}

func (d *Dialog) ID() string                  { return d.id }
func (d *Dialog) Direction() entity.Direction { return d.direction }

// State returns the current flow state. Submission is disabled unless it is Idle.
func (d *Dialog) State() entity.FlowState {
	return entity.FlowState(d.state.Load())
}

// PendingAmount returns the amount as entered by the user.
func (d *Dialog) PendingAmount() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.amount
}

func (d *Dialog) IsOpen() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.open
}

// View returns a snapshot of the dialog.
func (d *Dialog) View() DialogView {
	d.mu.Lock()
	defer d.mu.Unlock()
	return DialogView{
		ID:            d.id,
		Direction:     d.direction.String(),
		State:         d.State().String(),
		PendingAmount: d.amount,
		Open:          d.open,
		Message:       d.message,
	}
}

// SetAmount stores the user's input. It is not validated until Submit.
func (d *Dialog) SetAmount(amount string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.open {
		return ErrDialogClosed
	}
	if d.State() != entity.Idle {
		return ErrFlowBusy
	}
	d.amount = amount
	d.message = ""
	return nil
}

// Close closes the dialog and clears the pending amount regardless of flow state.
// A submission still in flight completes but no longer touches the dialog.
func (d *Dialog) Close() {
	d.mu.Lock()
	d.open = false
	d.amount = ""
	d.message = ""
	d.mu.Unlock()
	d.flow.forget(d.id)
}

func (d *Dialog) transition(s entity.FlowState) {
	d.state.Store(int32(s))
	if d.flow.observer != nil {
		d.flow.observer(d.id, s)
	}
}

func (d *Dialog) setMessage(msg string) {
	d.mu.Lock()
	if d.open {
		d.message = msg
	}
	d.mu.Unlock()
}

// Submit validates the pending amount and, if valid, sends the transaction and waits
// for its confirmation. Validation and configuration errors are returned without any
// wallet call. Wallet and chain errors are returned after a failure notification.
// There is no automatic retry.
func (d *Dialog) Submit(ctx context.Context) (*entity.TransactionResult, error) {
	if !d.IsOpen() {
		return nil, ErrDialogClosed
	}
	if !d.state.CAS(int32(entity.Idle), int32(entity.Validating)) {
		return nil, ErrFlowBusy
	}
	f := d.flow
	if f.observer != nil {
		f.observer(d.id, entity.Validating)
	}
	defer d.transition(entity.Idle)

	req := entity.TransactionRequest{
		Direction: d.direction,
		Amount:    d.PendingAmount(),
		Contract:  f.registry.Contract(),
	}

	amountWei, err := f.validate(ctx, req)
	if err != nil {
		if errors.Is(err, port.ErrWallet) || errors.Is(err, port.ErrChain) {
			return nil, d.fail(ctx, req, err)
		}
		d.setMessage(err.Error())
		metrics.Transactions.WithLabelValues(req.Direction.String(), "rejected").Inc()
		f.logger.Info("Submission rejected", "dialog", d.id, "direction", req.Direction.String(), "amount", req.Amount, "reason", err)
		return nil, err
	}

	d.transition(entity.Submitting)
	call := port.ContractCall{
		To:     req.Contract,
		ABI:    f.registry.ABI,
		Method: f.registry.WithdrawMethod,
		Args:   []any{amountWei},
	}
	if req.Direction == entity.Deposit {
		call.Method = f.registry.DepositMethod
		call.Value = new(big.Int).Set(amountWei)
	}
	tx, err := f.wallet.Transact(ctx, call)
	if err != nil {
		return nil, d.fail(ctx, req, port.MarkWallet(err))
	}
	f.logger.Info("Transaction sent", "dialog", d.id, "tx", tx.Hash().Hex(), "method", call.Method, "amount", req.Amount)

	d.transition(entity.Confirming)
	started := time.Now()
	receipt, err := f.wallet.WaitMined(ctx, tx)
	metrics.ConfirmationSeconds.WithLabelValues(req.Direction.String()).Observe(time.Since(started).Seconds())
	if err != nil {
		return nil, d.fail(ctx, req, port.MarkChain(fmt.Errorf("waiting for %s: %w", tx.Hash().Hex(), err)))
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, d.fail(ctx, req, port.MarkChain(fmt.Errorf("transaction %s reverted", tx.Hash().Hex())))
	}

	d.transition(entity.Succeeded)
	if err := f.refresher.Refresh(ctx); err != nil {
		f.logger.Error("Balance refresh after confirmation failed", "dialog", d.id, "error", err)
	}

	d.mu.Lock()
	d.amount = ""
	d.message = ""
	d.open = false
	d.mu.Unlock()
	f.forget(d.id)

	result := &entity.TransactionResult{
		TxHash:    tx.Hash(),
		Direction: req.Direction.String(),
		Amount:    req.Amount,
	}
	if receipt.BlockNumber != nil {
		result.BlockNumber = receipt.BlockNumber.Uint64()
	}
	metrics.Transactions.WithLabelValues(req.Direction.String(), "succeeded").Inc()
	f.notifier.Notify(ctx, entity.Notification{
		Level:   entity.NotificationSuccess,
		Title:   successTitle(req.Direction),
		Message: fmt.Sprintf("%s TG confirmed in block %d", req.Amount, result.BlockNumber),
		TxHash:  tx.Hash().Hex(),
		Time:    time.Now(),
	})
	return result, nil
}

// fail moves the dialog to Failed and notifies the user. The pending amount is kept for a retry.
func (d *Dialog) fail(ctx context.Context, req entity.TransactionRequest, err error) error {
	d.transition(entity.Failed)
	d.setMessage(err.Error())
	metrics.Transactions.WithLabelValues(req.Direction.String(), "failed").Inc()
	d.flow.logger.Warn("Transaction flow failed", "dialog", d.id, "direction", req.Direction.String(), "category", Category(err), "error", err)
	d.flow.notifier.Notify(ctx, entity.Notification{
		Level:   entity.NotificationError,
		Title:   failureTitle(req.Direction),
		Message: err.Error(),
		Time:    time.Now(),
	})
	return err
}

// validate is the single pre-submission check of a request. It returns the amount in wei.
func (f *TransactionFlow) validate(ctx context.Context, req entity.TransactionRequest) (*big.Int, error) {
	raw := strings.TrimSpace(req.Amount)
	if raw == "" {
		return nil, validationError("Enter a TG amount.")
	}
	amount, ok := parseAmount(raw)
	if !ok {
		return nil, validationError(fmt.Sprintf("%q is not a valid TG amount.", raw))
	}
	if !amount.IsPositive() {
		return nil, validationError("TG amount must be greater than zero.")
	}
	amountWei, err := utils.ToSmallestUnit(amount, entity.TGDecimals)
	if err != nil {
		return nil, validationError(fmt.Sprintf("TG amount supports at most %d decimal places.", entity.TGDecimals))
	}
	if !f.registry.Valid() {
		return nil, port.ConfigurationErrorf("stake registry address %q is not a valid address", f.registry.Address)
	}

	if req.Direction == entity.Withdraw {
		if current := f.balances.Current(); amount.GreaterThan(current.Amount) {
			return nil, validationError(fmt.Sprintf("Insufficient TG balance: %s available.", current.Formatted()))
		}
	}

	chainID, err := f.wallet.Network(ctx)
	if err != nil {
		return nil, port.MarkWallet(fmt.Errorf("reading wallet network: %w", err))
	}
	if _, err := f.resolver.Resolve(chainID); err != nil {
		return nil, err
	}

	accounts, err := f.wallet.Accounts(ctx)
	if err != nil {
		return nil, port.MarkWallet(fmt.Errorf("reading wallet accounts: %w", err))
	}
	if len(accounts) == 0 {
		return nil, port.MarkWallet(errors.New("wallet is not connected"))
	}

	if req.Direction == entity.Deposit {
		native, err := f.wallet.NativeBalance(ctx, accounts[0])
		if err != nil {
			f.logger.Warn("Native balance unknown, skipping funds check", "account", accounts[0].Hex(), "error", err)
		} else if native != nil && amountWei.Cmp(native) > 0 {
			return nil, validationError(fmt.Sprintf("Insufficient ETH balance: %s available.", utils.FormatBigInt(native, 18)))
		}
	}
	return amountWei, nil
}

func successTitle(d entity.Direction) string {
	if d == entity.Deposit {
		return "Top Up TG successful!"
	}
	return "Withdraw TG successful!"
}

func failureTitle(d entity.Direction) string {
	if d == entity.Deposit {
		return "Error Top Up TG"
	}
	return "Error Withdraw TG"
}
