package entity

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// TGDecimals is the number of decimals of the TG unit held by the StakeRegistry.
const TGDecimals = 18

// Balance represents the TG amount credited to an account in the StakeRegistry.
// A Balance is always derived from a chain read and is replaced as a whole.
type Balance struct {
	Account  common.Address  `json:"account"`
	ChainID  uint64          `json:"chainId"`
	Amount   decimal.Decimal `json:"amount"`
	Raw      *big.Int        `json:"-"`
	ReadAt   time.Time       `json:"readAt"`
	Sequence uint64          `json:"-"`
}

// ZeroBalance is the balance published before the first sync and after the wallet reports no accounts.
func ZeroBalance() Balance {
	return Balance{Amount: decimal.Zero, Raw: big.NewInt(0)}
}

// SameValue reports whether two balances carry the same account, chain and amount.
func (b Balance) SameValue(other Balance) bool {
	return b.Account == other.Account && b.ChainID == other.ChainID && b.Amount.Equal(other.Amount)
}

// Formatted returns the TG amount without trailing zeros.
func (b Balance) Formatted() string {
	return b.Amount.String()
}
