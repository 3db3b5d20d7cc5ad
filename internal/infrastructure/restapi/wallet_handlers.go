package restapi

import (
	"context"
	"crypto/ecdsa"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gin-gonic/gin"
)

// WalletSwitcher is the wallet as seen by the account and network endpoints.
type WalletSwitcher interface {
	Accounts(ctx context.Context) ([]common.Address, error)
	Network(ctx context.Context) (uint64, error)
	SwitchAccount(key *ecdsa.PrivateKey)
	SwitchNetwork(ctx context.Context, rpcURL string) error
}

// WalletResponse describes the connected wallet.
type WalletResponse struct {
	Accounts []common.Address `json:"accounts"`
	ChainID  uint64           `json:"chainId"`
}

type accountRequest struct {
	PrivateKey string `json:"privateKey"`
}

type networkRequest struct {
	RPCURL string `json:"rpcUrl" binding:"required"`
}

// WalletHandler lets the user connect, disconnect and move the wallet between networks.
type WalletHandler struct {
	wallet WalletSwitcher
}

// NewWalletHandler creates a WalletHandler.
func NewWalletHandler(wallet WalletSwitcher) *WalletHandler {
	return &WalletHandler{wallet: wallet}
}

// GetWalletHandler returns the exposed accounts and the current chain id.
func (h *WalletHandler) GetWalletHandler(c *gin.Context) {
	ctx := c.Request.Context()
	accounts, err := h.wallet.Accounts(ctx)
	if err != nil {
		abortWithError(c, err)
		return
	}
	chainID, err := h.wallet.Network(ctx)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, WalletResponse{Accounts: accounts, ChainID: chainID})
}

// SwitchAccountHandler loads a new signing key. An empty key disconnects the wallet.
func (h *WalletHandler) SwitchAccountHandler(c *gin.Context) {
	var req accountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, APIError{Error: err.Error()})
		return
	}
	var key *ecdsa.PrivateKey
	if raw := strings.TrimPrefix(strings.TrimSpace(req.PrivateKey), "0x"); raw != "" {
		parsed, err := crypto.HexToECDSA(raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnprocessableEntity, APIError{Error: "invalid private key", Category: "validation"})
			return
		}
		key = parsed
	}
	h.wallet.SwitchAccount(key)
	h.GetWalletHandler(c)
}

// SwitchNetworkHandler reconnects the wallet to another RPC URL.
func (h *WalletHandler) SwitchNetworkHandler(c *gin.Context) {
	var req networkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, APIError{Error: err.Error()})
		return
	}
	if err := h.wallet.SwitchNetwork(c.Request.Context(), req.RPCURL); err != nil {
		abortWithError(c, err)
		return
	}
	h.GetWalletHandler(c)
}
