package service

import (
	"github.com/cockroachdb/errors"

	"tg_wallet/internal/app/port"
)

var (
	// ErrFlowBusy is returned while a submission of the same dialog is in flight.
	ErrFlowBusy = errors.New("a submission is already in progress")
	// ErrDialogClosed is returned for operations on a closed dialog.
	ErrDialogClosed = errors.New("dialog is closed")
)

func validationError(msg string) error {
	return errors.Mark(errors.New(msg), port.ErrValidation)
}

// Category names the error class of err for API responses and metrics.
func Category(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrFlowBusy):
		return "busy"
	case errors.Is(err, ErrDialogClosed):
		return "closed"
	case errors.Is(err, port.ErrConfiguration):
		return "configuration"
	case errors.Is(err, port.ErrValidation):
		return "validation"
	case errors.Is(err, port.ErrWallet):
		return "wallet"
	case errors.Is(err, port.ErrChain):
		return "chain"
	default:
		return "unknown"
	}
}
