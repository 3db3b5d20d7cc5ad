package notify

import (
	"context"

	"tg_wallet/internal/app/port"
	"tg_wallet/internal/domain/entity"
)

// Fanout delivers every notification to each sink in order.
type Fanout []port.Notifier

// Notify implements port.Notifier.
func (f Fanout) Notify(ctx context.Context, n entity.Notification) {
	for _, sink := range f {
		if sink != nil {
			sink.Notify(ctx, n)
		}
	}
}
