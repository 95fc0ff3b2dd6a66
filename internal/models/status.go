package models

import "fmt"

type OrderStatus string

const (
	OrderStatusCart      OrderStatus = "cart"
	OrderStatusPaid      OrderStatus = "paid"
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusDelivered OrderStatus = "delivered"
	// OrderStatusCancelled is a valid stored value, but no transition
	// leads to it.
	OrderStatusCancelled OrderStatus = "cancelled"
)

var orderTransitions = map[OrderStatus]OrderStatus{
	OrderStatusCart:    OrderStatusPaid,
	OrderStatusPaid:    OrderStatusShipped,
	OrderStatusShipped: OrderStatusDelivered,
}

func ParseOrderStatus(s string) (OrderStatus, error) {
	switch st := OrderStatus(s); st {
	case OrderStatusCart, OrderStatusPaid, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return st, nil
	}
	return "", fmt.Errorf("unknown order status %q", s)
}

// Next returns the single status reachable from s.
func (s OrderStatus) Next() (OrderStatus, bool) {
	next, ok := orderTransitions[s]
	return next, ok
}

func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	n, ok := orderTransitions[s]
	return ok && n == next
}

// Previous returns the status an order must be in to move to s.
func (s OrderStatus) Previous() (OrderStatus, bool) {
	for from, to := range orderTransitions {
		if to == s {
			return from, true
		}
	}
	return "", false
}

func (s OrderStatus) Editable() bool {
	return s == OrderStatusCart
}

// FulfilmentTarget reports whether s may be set through a status update,
// as opposed to checkout.
func (s OrderStatus) FulfilmentTarget() bool {
	return s == OrderStatusShipped || s == OrderStatusDelivered
}
