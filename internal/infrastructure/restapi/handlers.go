package restapi

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"tg_wallet/internal/app/service"
	"tg_wallet/internal/domain/entity"
)

// APIError is the body of every non-2xx response.
type APIError struct {
	Error    string `json:"error"`
	Category string `json:"category,omitempty"`
}

// BalanceResponse is the body of the balance endpoints.
type BalanceResponse struct {
	Balance   entity.Balance `json:"balance"`
	Formatted string         `json:"formatted"`
}

// DialogResponse wraps a dialog snapshot with the native cost estimate for top-ups.
type DialogResponse struct {
	service.DialogView
	EstimatedNative *decimal.Decimal `json:"estimatedNative,omitempty"`
}

// SubmitResponse is returned for a confirmed transaction.
type SubmitResponse struct {
	Result *entity.TransactionResult `json:"result"`
	Dialog service.DialogView        `json:"dialog"`
}

type openDialogRequest struct {
	Direction string `json:"direction" binding:"required"`
}

type amountRequest struct {
	Amount string `json:"amount"`
}

// statusFor maps an error category to the HTTP status returned to the client.
func statusFor(category string) int {
	switch category {
	case "validation":
		return http.StatusUnprocessableEntity
	case "busy":
		return http.StatusConflict
	case "closed":
		return http.StatusGone
	case "wallet", "chain":
		return http.StatusBadGateway
	case "configuration":
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func abortWithError(c *gin.Context, err error) {
	category := service.Category(err)
	_ = c.Error(err)
	c.AbortWithStatusJSON(statusFor(category), APIError{Error: err.Error(), Category: category})
}

// BalanceHandler serves the synchronized TG balance.
type BalanceHandler struct {
	state *service.BalanceState
	sync  service.Refresher
}

// NewBalanceHandler creates a BalanceHandler.
func NewBalanceHandler(state *service.BalanceState, sync service.Refresher) *BalanceHandler {
	return &BalanceHandler{state: state, sync: sync}
}

// GetBalanceHandler returns the last published balance.
func (h *BalanceHandler) GetBalanceHandler(c *gin.Context) {
	b := h.state.Current()
	c.JSON(http.StatusOK, BalanceResponse{Balance: b, Formatted: b.Formatted()})
}

// RefreshBalanceHandler runs a synchronization and returns the resulting balance.
func (h *BalanceHandler) RefreshBalanceHandler(c *gin.Context) {
	if err := h.sync.Refresh(c.Request.Context()); err != nil {
		abortWithError(c, err)
		return
	}
	h.GetBalanceHandler(c)
}

// DialogHandler exposes the top-up and withdraw dialogs.
type DialogHandler struct {
	flow *service.TransactionFlow
}

// NewDialogHandler creates a DialogHandler.
func NewDialogHandler(flow *service.TransactionFlow) *DialogHandler {
	return &DialogHandler{flow: flow}
}

func (h *DialogHandler) response(d *service.Dialog) DialogResponse {
	resp := DialogResponse{DialogView: d.View()}
	if d.Direction() == entity.Deposit {
		if estimate, ok := h.flow.EstimateNative(resp.PendingAmount); ok {
			resp.EstimatedNative = &estimate
		}
	}
	return resp
}

func (h *DialogHandler) lookup(c *gin.Context) (*service.Dialog, bool) {
	d, ok := h.flow.Dialog(c.Param("id"))
	if !ok {
		c.AbortWithStatusJSON(http.StatusNotFound, APIError{Error: "dialog not found"})
		return nil, false
	}
	return d, true
}

// OpenDialogHandler opens a dialog for the requested direction.
func (h *DialogHandler) OpenDialogHandler(c *gin.Context) {
	var req openDialogRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, APIError{Error: err.Error()})
		return
	}
	direction, err := entity.ParseDirection(req.Direction)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, APIError{Error: err.Error()})
		return
	}
	d := h.flow.OpenDialog(direction)
	c.JSON(http.StatusCreated, h.response(d))
}

// GetDialogHandler returns the dialog state.
func (h *DialogHandler) GetDialogHandler(c *gin.Context) {
	d, ok := h.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, h.response(d))
}

// SetAmountHandler stores the amount typed into the dialog.
func (h *DialogHandler) SetAmountHandler(c *gin.Context) {
	d, ok := h.lookup(c)
	if !ok {
		return
	}
	var req amountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, APIError{Error: err.Error()})
		return
	}
	if err := d.SetAmount(req.Amount); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.response(d))
}

// SubmitHandler submits the dialog's transaction and waits for confirmation.
// A client disconnect does not cancel a sent transaction; its outcome still reaches the notifiers.
func (h *DialogHandler) SubmitHandler(c *gin.Context) {
	d, ok := h.lookup(c)
	if !ok {
		return
	}
	result, err := d.Submit(context.WithoutCancel(c.Request.Context()))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, SubmitResponse{Result: result, Dialog: d.View()})
}

// CloseDialogHandler closes the dialog and discards its amount.
func (h *DialogHandler) CloseDialogHandler(c *gin.Context) {
	if !h.flow.CloseDialog(c.Param("id")) {
		c.AbortWithStatusJSON(http.StatusNotFound, APIError{Error: "dialog not found"})
		return
	}
	c.Status(http.StatusNoContent)
}
