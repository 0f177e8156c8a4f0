package domain

import "math"

// OrderSide is the direction of an order.
type OrderSide string

const (
	SideBuy  OrderSide = "buy"
	SideSell OrderSide = "sell"
)

// Valid reports whether the side is buy or sell.
func (s OrderSide) Valid() bool {
	return s == SideBuy || s == SideSell
}

// OrderStatus is the lifecycle state of an order. Transitions are
// monotonic: open -> partially_filled -> filled, or open/partially_filled
// -> cancelled. Filled and cancelled are terminal.
type OrderStatus string

const (
	OrderOpen            OrderStatus = "open"
	OrderPartiallyFilled OrderStatus = "partially_filled"
	OrderFilled          OrderStatus = "filled"
	OrderCancelled       OrderStatus = "cancelled"
)

// Terminal reports whether no further transitions are allowed.
func (s OrderStatus) Terminal() bool {
	return s == OrderFilled || s == OrderCancelled
}

// CanTransitionTo reports whether moving from s to next is a legal
// monotonic transition. Orders never un-fill.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	if s.Terminal() {
		return false
	}
	switch s {
	case OrderOpen:
		return next == OrderPartiallyFilled || next == OrderFilled || next == OrderCancelled
	case OrderPartiallyFilled:
		return next == OrderFilled || next == OrderCancelled
	}
	return false
}

// Order is a resting buy or sell order on a token's book.
// Corresponds to the orders table. Mutated only by the matching engine
// (fills) and cancellation.
type Order struct {
	OrderID        string // PRIMARY KEY
	TokenID        string
	HolderID       string
	Side           OrderSide
	LimitPriceSats int64 // limit price per unit
	Quantity       int64 // total units requested
	FilledQuantity int64 // units filled so far, <= Quantity
	Status         OrderStatus
	CreatedAt      int64 // Unix timestamp in milliseconds; FIFO tie-break key
}

// CostSats returns quantity * priceSats and whether the product fits
// in int64. Inputs must be positive. All notional costs go through
// here; nothing multiplies quantities and prices directly.
func CostSats(quantity, priceSats int64) (int64, bool) {
	if quantity < 1 || priceSats < 1 {
		return 0, false
	}
	if quantity > math.MaxInt64/priceSats {
		return 0, false
	}
	return quantity * priceSats, true
}

// RemainingQuantity is the unfilled portion of the order.
func (o *Order) RemainingQuantity() int64 {
	return o.Quantity - o.FilledQuantity
}

// StatusForFill returns the status an order should carry after its
// filled quantity reaches filled.
func (o *Order) StatusForFill(filled int64) OrderStatus {
	if filled >= o.Quantity {
		return OrderFilled
	}
	if filled > 0 {
		return OrderPartiallyFilled
	}
	return OrderOpen
}
