package service

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// StakeRegistry describes the contract that credits TG to accounts.
type StakeRegistry struct {
	Address        string
	BalanceMethod  string
	DepositMethod  string
	WithdrawMethod string
	ABI            abi.ABI
}

// stakeRegistryABITemplate declares getBalance(address) view returns (uint256 stake, uint256 tg),
// the payable deposit and the withdraw function, all taking the TG amount in smallest units.
const stakeRegistryABITemplate = `[
 {"type":"function","name":%q,"stateMutability":"view",
  "inputs":[{"name":"account","type":"address"}],
  "outputs":[{"name":"stakedAmount","type":"uint256"},{"name":"tgBalance","type":"uint256"}]},
 {"type":"function","name":%q,"stateMutability":"payable",
  "inputs":[{"name":"tgAmount","type":"uint256"}],
  "outputs":[{"name":"","type":"uint256"}]},
 {"type":"function","name":%q,"stateMutability":"nonpayable",
  "inputs":[{"name":"tgAmount","type":"uint256"}],
  "outputs":[{"name":"","type":"uint256"}]}
]`

// NewStakeRegistry builds the ABI for the configured method names. The address is kept
// as given; an invalid address makes balance synchronization a no-op.
func NewStakeRegistry(address, balanceMethod, depositMethod, withdrawMethod string) (StakeRegistry, error) {
	parsed, err := abi.JSON(strings.NewReader(fmt.Sprintf(stakeRegistryABITemplate, balanceMethod, depositMethod, withdrawMethod)))
	if err != nil {
		return StakeRegistry{}, fmt.Errorf("failed to parse stake registry ABI: %w", err)
	}
	return StakeRegistry{
		Address:        strings.TrimSpace(address),
		BalanceMethod:  balanceMethod,
		DepositMethod:  depositMethod,
		WithdrawMethod: withdrawMethod,
		ABI:            parsed,
	}, nil
}

// Valid reports whether the address is a syntactically valid chain address.
func (r StakeRegistry) Valid() bool {
	return common.IsHexAddress(r.Address)
}

// Contract returns the parsed address. Only meaningful when Valid.
func (r StakeRegistry) Contract() common.Address {
	return common.HexToAddress(r.Address)
}
