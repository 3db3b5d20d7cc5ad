package entity

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Direction is the kind of balance-changing operation a dialog submits.
type Direction int

const (
	// Deposit buys TG with the wallet's native asset (top-up).
	Deposit Direction = iota + 1
	// Withdraw converts TG back to the native asset.
	Withdraw
)

func (d Direction) String() string {
	switch d {
	case Deposit:
		return "deposit"
	case Withdraw:
		return "withdraw"
	default:
		return fmt.Sprintf("direction(%d)", int(d))
	}
}

// ParseDirection accepts "deposit"/"topup" and "withdraw".
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "deposit", "topup", "top-up":
		return Deposit, nil
	case "withdraw":
		return Withdraw, nil
	}
	return 0, fmt.Errorf("unknown direction %q", s)
}

// FlowState is a state of the transaction flow of a dialog.
type FlowState int32

const (
	Idle FlowState = iota
	Validating
	Submitting
	Confirming
	Succeeded
	Failed
)

func (s FlowState) String() string {
	switch s {
	case Idle:
		return "idle"
	case Validating:
		return "validating"
	case Submitting:
		return "submitting"
	case Confirming:
		return "confirming"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// TransactionRequest is an intended balance-changing operation. It lives only while its dialog is open.
type TransactionRequest struct {
	Direction Direction
	Amount    string
	Contract  common.Address
}

// TransactionResult describes a confirmed transaction.
type TransactionResult struct {
	TxHash      common.Hash `json:"txHash"`
	BlockNumber uint64      `json:"blockNumber"`
	Direction   string      `json:"direction"`
	Amount      string      `json:"amount"`
}
