package service

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	cockroach "github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tg_wallet/internal/app/port"
	"tg_wallet/internal/domain/entity"
)

type flowFixture struct {
	*syncFixture
	notifier *recordingNotifier
	flow     *TransactionFlow

	mu     sync.Mutex
	states []entity.FlowState
}

func newFlowFixture(t *testing.T) *flowFixture {
	t.Helper()
	f := &flowFixture{
		syncFixture: newSyncFixture(t, testRegistry, 0),
		notifier:    &recordingNotifier{},
	}
	f.flow = NewTransactionFlow(f.wallet, newFakeResolver(), f.state, f.sync, f.notifier, mustRegistry(testRegistry), nopLogger{},
		WithStateObserver(func(_ string, s entity.FlowState) {
			f.mu.Lock()
			f.states = append(f.states, s)
			f.mu.Unlock()
		}))
	return f
}

func (f *flowFixture) publishBalance(amount int64) {
	f.state.publish(entity.Balance{Account: testAccount, ChainID: 84532, Amount: decimal.NewFromInt(amount), Sequence: f.sync.seq.Inc()})
}

func (f *flowFixture) transitions() []entity.FlowState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]entity.FlowState(nil), f.states...)
}

func TestSubmitRejectsInvalidAmountsWithoutWallet(t *testing.T) {
	for _, amount := range []string{"0", "", "   ", "-1", "abc", "1e", "0.0000000000000000001",
		"1e3", "1e-200000000", "1e200000000", "+5", "0x10", "1.5.2"} {
		t.Run(amount, func(t *testing.T) {
			f := newFlowFixture(t)
			d := f.flow.OpenDialog(entity.Deposit)
			require.NoError(t, d.SetAmount(amount))

			res, err := d.Submit(context.Background())

			require.Error(t, err)
			assert.Nil(t, res)
			assert.True(t, cockroach.Is(err, port.ErrValidation), "got %v", err)
			assert.Equal(t, 0, f.wallet.callCount())
			assert.Equal(t, entity.Idle, d.State())
			assert.NotEmpty(t, d.View().Message)
			assert.Empty(t, f.notifier.all())
		})
	}
}

func TestSubmitZeroAmountMessage(t *testing.T) {
	f := newFlowFixture(t)
	d := f.flow.OpenDialog(entity.Deposit)
	require.NoError(t, d.SetAmount("0"))

	_, err := d.Submit(context.Background())

	require.Error(t, err)
	assert.Equal(t, "TG amount must be greater than zero.", d.View().Message)
	assert.Equal(t, []entity.FlowState{entity.Validating, entity.Idle}, f.transitions())
}

func TestSubmitWithdrawInsufficientBalance(t *testing.T) {
	f := newFlowFixture(t)
	f.publishBalance(2)
	d := f.flow.OpenDialog(entity.Withdraw)
	require.NoError(t, d.SetAmount("5"))

	_, err := d.Submit(context.Background())

	require.Error(t, err)
	assert.True(t, cockroach.Is(err, port.ErrValidation))
	assert.Contains(t, err.Error(), "Insufficient TG balance")
	assert.Equal(t, 0, f.wallet.callCount())
	assert.Equal(t, "5", d.PendingAmount())
}

func TestSubmitWithdrawSucceeds(t *testing.T) {
	f := newFlowFixture(t)
	f.publishBalance(10)
	f.chain.set(84532, tg(5))
	d := f.flow.OpenDialog(entity.Withdraw)
	require.NoError(t, d.SetAmount("5"))

	res, err := d.Submit(context.Background())

	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, uint64(7), res.BlockNumber)
	assert.Equal(t, "withdraw", res.Direction)

	require.Len(t, f.wallet.sent, 1)
	call := f.wallet.sent[0]
	assert.Equal(t, "claimETHForTG", call.Method)
	assert.Nil(t, call.Value)
	require.Len(t, call.Args, 1)
	assert.Equal(t, 0, tg(5).Cmp(call.Args[0].(*big.Int)))

	assert.True(t, f.state.Current().Amount.Equal(decimal.NewFromInt(5)), "balance refreshed")
	assert.Empty(t, d.PendingAmount())
	assert.False(t, d.IsOpen())
	_, stillListed := f.flow.Dialog(d.ID())
	assert.False(t, stillListed)

	notes := f.notifier.all()
	require.Len(t, notes, 1)
	assert.Equal(t, entity.NotificationSuccess, notes[0].Level)
	assert.Equal(t, res.TxHash.Hex(), notes[0].TxHash)

	assert.Equal(t, []entity.FlowState{
		entity.Validating, entity.Submitting, entity.Confirming, entity.Succeeded, entity.Idle,
	}, f.transitions())
}

type orderedRefresher struct {
	wallet       *fakeWallet
	minedAtStart bool
	calls        int
}

func (r *orderedRefresher) Refresh(context.Context) error {
	r.wallet.mu.Lock()
	r.minedAtStart = r.wallet.mined
	r.wallet.mu.Unlock()
	r.calls++
	return nil
}

func TestRefreshStartsAfterConfirmation(t *testing.T) {
	f := newFlowFixture(t)
	ref := &orderedRefresher{wallet: f.wallet}
	f.flow = NewTransactionFlow(f.wallet, newFakeResolver(), f.state, ref, f.notifier, mustRegistry(testRegistry), nopLogger{})
	d := f.flow.OpenDialog(entity.Deposit)
	require.NoError(t, d.SetAmount("1"))

	_, err := d.Submit(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, ref.calls)
	assert.True(t, ref.minedAtStart)
}

func TestSubmitDepositAttachesValue(t *testing.T) {
	f := newFlowFixture(t)
	d := f.flow.OpenDialog(entity.Deposit)
	require.NoError(t, d.SetAmount("2.5"))

	_, err := d.Submit(context.Background())

	require.NoError(t, err)
	require.Len(t, f.wallet.sent, 1)
	call := f.wallet.sent[0]
	assert.Equal(t, "purchaseTG", call.Method)
	want, _ := new(big.Int).SetString("2500000000000000000", 10)
	require.NotNil(t, call.Value)
	assert.Equal(t, 0, want.Cmp(call.Value))
	assert.Equal(t, 0, want.Cmp(call.Args[0].(*big.Int)))
}

func TestSubmitDepositExceedingNativeBalance(t *testing.T) {
	f := newFlowFixture(t)
	f.wallet.native = tg(1)
	d := f.flow.OpenDialog(entity.Deposit)
	require.NoError(t, d.SetAmount("2"))

	_, err := d.Submit(context.Background())

	require.Error(t, err)
	assert.True(t, cockroach.Is(err, port.ErrValidation))
	assert.Contains(t, err.Error(), "Insufficient ETH balance")
	assert.Empty(t, f.wallet.sent)
}

func TestSubmitDepositUnknownNativeBalanceProceeds(t *testing.T) {
	f := newFlowFixture(t)
	f.wallet.nativeErr = errors.New("rpc unavailable")
	d := f.flow.OpenDialog(entity.Deposit)
	require.NoError(t, d.SetAmount("2"))

	_, err := d.Submit(context.Background())

	require.NoError(t, err)
	assert.Len(t, f.wallet.sent, 1)
}

func TestSubmitUnresolvableChainIsConfigurationError(t *testing.T) {
	f := newFlowFixture(t)
	f.wallet.chainID = 424242
	d := f.flow.OpenDialog(entity.Deposit)
	require.NoError(t, d.SetAmount("1"))

	_, err := d.Submit(context.Background())

	require.Error(t, err)
	assert.True(t, cockroach.Is(err, port.ErrConfiguration))
	assert.Empty(t, f.wallet.sent)
	assert.Equal(t, entity.Idle, d.State())
	assert.Equal(t, "configuration", Category(err))
}

func TestSubmitWalletRejectionKeepsAmount(t *testing.T) {
	f := newFlowFixture(t)
	f.wallet.transactErr = errors.New("user rejected the request")
	d := f.flow.OpenDialog(entity.Deposit)
	require.NoError(t, d.SetAmount("3"))

	_, err := d.Submit(context.Background())

	require.Error(t, err)
	assert.True(t, cockroach.Is(err, port.ErrWallet))
	assert.Equal(t, "3", d.PendingAmount())
	assert.True(t, d.IsOpen())
	assert.Equal(t, entity.Idle, d.State())

	notes := f.notifier.all()
	require.Len(t, notes, 1)
	assert.Equal(t, entity.NotificationError, notes[0].Level)
	assert.Equal(t, "user rejected the request", notes[0].Message)

	assert.Equal(t, []entity.FlowState{
		entity.Validating, entity.Submitting, entity.Failed, entity.Idle,
	}, f.transitions())

	f.wallet.transactErr = nil
	_, err = d.Submit(context.Background())
	require.NoError(t, err)
	assert.Len(t, f.wallet.sent, 2)
}

func TestSubmitRevertedTransactionIsChainError(t *testing.T) {
	f := newFlowFixture(t)
	f.wallet.status = types.ReceiptStatusFailed
	d := f.flow.OpenDialog(entity.Deposit)
	require.NoError(t, d.SetAmount("1"))

	_, err := d.Submit(context.Background())

	require.Error(t, err)
	assert.True(t, cockroach.Is(err, port.ErrChain))
	assert.Contains(t, err.Error(), "reverted")
	assert.Equal(t, "1", d.PendingAmount())
}

func TestSubmitIsDisabledWhileInFlight(t *testing.T) {
	f := newFlowFixture(t)
	gate := make(chan struct{})
	f.wallet.waitGate = gate
	d := f.flow.OpenDialog(entity.Deposit)
	require.NoError(t, d.SetAmount("1"))

	done := make(chan error, 1)
	go func() {
		_, err := d.Submit(context.Background())
		done <- err
	}()

	require.Eventually(t, func() bool { return d.State() == entity.Confirming }, time.Second, time.Millisecond)

	_, err := d.Submit(context.Background())
	assert.ErrorIs(t, err, ErrFlowBusy)
	assert.ErrorIs(t, d.SetAmount("2"), ErrFlowBusy)

	close(gate)
	require.NoError(t, <-done)
	f.wallet.mu.Lock()
	assert.Len(t, f.wallet.sent, 1)
	f.wallet.mu.Unlock()
}

func TestCloseClearsPendingAmount(t *testing.T) {
	f := newFlowFixture(t)
	d := f.flow.OpenDialog(entity.Withdraw)
	require.NoError(t, d.SetAmount("4"))

	d.Close()

	assert.Empty(t, d.PendingAmount())
	assert.False(t, d.IsOpen())
	assert.ErrorIs(t, d.SetAmount("1"), ErrDialogClosed)
	_, err := d.Submit(context.Background())
	assert.ErrorIs(t, err, ErrDialogClosed)
}

func TestCloseDuringFlightDiscardsDialogState(t *testing.T) {
	f := newFlowFixture(t)
	gate := make(chan struct{})
	f.wallet.waitGate = gate
	f.wallet.transactErr = nil
	d := f.flow.OpenDialog(entity.Deposit)
	require.NoError(t, d.SetAmount("1"))

	done := make(chan error, 1)
	go func() {
		_, err := d.Submit(context.Background())
		done <- err
	}()
	require.Eventually(t, func() bool { return d.State() == entity.Confirming }, time.Second, time.Millisecond)

	require.True(t, f.flow.CloseDialog(d.ID()))
	assert.Empty(t, d.PendingAmount())

	close(gate)
	require.NoError(t, <-done)
	assert.Empty(t, d.PendingAmount())
	assert.False(t, d.IsOpen())
}

func TestEstimateNative(t *testing.T) {
	f := newFlowFixture(t)

	got, ok := f.flow.EstimateNative("5")
	require.True(t, ok)
	assert.Equal(t, "0.005", got.String())

	_, ok = f.flow.EstimateNative("0")
	assert.False(t, ok)
	_, ok = f.flow.EstimateNative("x")
	assert.False(t, ok)
	_, ok = f.flow.EstimateNative("1e-200000000")
	assert.False(t, ok)

	got, ok = f.flow.EstimateNative(".5")
	require.True(t, ok)
	assert.Equal(t, "0.0005", got.String())
}

func TestCategory(t *testing.T) {
	assert.Equal(t, "", Category(nil))
	assert.Equal(t, "busy", Category(ErrFlowBusy))
	assert.Equal(t, "validation", Category(validationError("bad")))
	assert.Equal(t, "wallet", Category(port.MarkWallet(errors.New("locked"))))
	assert.Equal(t, "chain", Category(port.MarkChain(errors.New("reverted"))))
	assert.Equal(t, "unknown", Category(errors.New("other")))
}
