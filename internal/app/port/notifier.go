package port

import (
	"context"

	"tg_wallet/internal/domain/entity"
)

// Notifier accepts success and failure messages for display to the user.
type Notifier interface {
	Notify(ctx context.Context, n entity.Notification)
}
