package ports

import (
	"github.com/changewld/backend/internal/entities"
)

// OrderEventSource is implemented by the order service; workers subscribe to
// it to react to order creation and state changes.
type OrderEventSource interface {
	Subscribe() (<-chan entities.OrderEvent, func())
}

// EventBroadcaster fans an order event out to connected UI clients.
type EventBroadcaster interface {
	Broadcast(v any)
}
