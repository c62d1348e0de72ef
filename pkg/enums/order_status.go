package enums

import (
	"fmt"
	"strings"
)

// OrderStatus is the fulfillment lifecycle of an order, independent of payment.
type OrderStatus string

const (
	OrderStatusProcessing OrderStatus = "Processing"
	OrderStatusPacked     OrderStatus = "Packed"
	OrderStatusShipped    OrderStatus = "Shipped"
	OrderStatusDelivered  OrderStatus = "Delivered"
	OrderStatusCancelled  OrderStatus = "Cancelled"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusProcessing,
	OrderStatusPacked,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

// forward rank along Processing -> Packed -> Shipped -> Delivered.
var orderStatusRank = map[OrderStatus]int{
	OrderStatusProcessing: 1,
	OrderStatusPacked:     2,
	OrderStatusShipped:    3,
	OrderStatusDelivered:  4,
}

// String implements fmt.Stringer.
func (o OrderStatus) String() string {
	return string(o)
}

// IsValid reports whether the value is a known OrderStatus.
func (o OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == o {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further fulfillment transition is legal.
func (o OrderStatus) IsTerminal() bool {
	return o == OrderStatusDelivered || o == OrderStatusCancelled
}

// CanTransitionTo reports whether moving from o to next is a legal fulfillment transition.
// Forward moves may skip steps; cancellation is only legal from Processing or Packed.
func (o OrderStatus) CanTransitionTo(next OrderStatus) bool {
	if o.IsTerminal() || !next.IsValid() {
		return false
	}
	if next == OrderStatusCancelled {
		return o == OrderStatusProcessing || o == OrderStatusPacked
	}
	return orderStatusRank[next] > orderStatusRank[o]
}

// ParseOrderStatus converts raw input into an OrderStatus (case-insensitive).
func ParseOrderStatus(value string) (OrderStatus, error) {
	trimmed := strings.TrimSpace(value)
	for _, candidate := range validOrderStatuses {
		if strings.EqualFold(string(candidate), trimmed) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}
