package workers

import (
	"context"
	"log/slog"

	"github.com/changewld/backend/internal/core/ports"
)

// OrderNotifier forwards order lifecycle events to the websocket clients,
// decoupling UI refresh cadence from the order store.
type OrderNotifier struct {
	logger      *slog.Logger
	events      ports.OrderEventSource
	broadcaster ports.EventBroadcaster
}

func NewOrderNotifier(logger *slog.Logger, events ports.OrderEventSource, broadcaster ports.EventBroadcaster) *OrderNotifier {
	return &OrderNotifier{
		logger:      logger,
		events:      events,
		broadcaster: broadcaster,
	}
}

// Start consumes events until the context is cancelled.
func (n *OrderNotifier) Start(ctx context.Context) {
	n.logger.Info("Starting order notifier worker")

	ch, cancel := n.events.Subscribe()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			n.logger.Info("Order notifier worker stopped")
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			n.broadcaster.Broadcast(event)
		}
	}
}
