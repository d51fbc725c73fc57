package service

import (
	"time"

	"minimall/internal/models"
)

// orderTransitions is the fixed adjacency table. delivered, cancelled and
// refunded are terminal.
var orderTransitions = map[string][]string{
	models.OrderPending:   {models.OrderPaid, models.OrderCancelled},
	models.OrderPaid:      {models.OrderShipped, models.OrderRefunded, models.OrderCancelled},
	models.OrderShipped:   {models.OrderDelivered, models.OrderCancelled},
	models.OrderDelivered: {},
	models.OrderCancelled: {},
	models.OrderRefunded:  {},
}

// CanTransition reports whether an order may move from one status to another.
func CanTransition(from, to string) bool {
	for _, next := range orderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// TransitionOrder validates and applies a status change on the given order,
// stamping paid/shipped/delivered timestamps. It mutates only the order it is
// handed; the caller owns persistence.
func TransitionOrder(order *models.Order, to string) error {
	if !CanTransition(order.Status, to) {
		return ErrInvalidTransition
	}
	now := time.Now()
	switch to {
	case models.OrderPaid:
		order.PaidAt = &now
	case models.OrderShipped:
		order.ShippedAt = &now
	case models.OrderDelivered:
		order.DeliveredAt = &now
	}
	order.Status = to
	return nil
}
