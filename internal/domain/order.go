package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// OrderState is the lifecycle state of a trailing order.
type OrderState int

const (
	OrderInactive OrderState = iota
	OrderActive
	OrderExecuted
	OrderCancelled
)

// state string constants to avoid magic strings
const (
	orderStringInactive  = "INACTIVE"
	orderStringActive    = "ACTIVE"
	orderStringExecuted  = "EXECUTED"
	orderStringCancelled = "CANCELLED"
)

// String returns the string representation of the state.
func (s OrderState) String() string {
	switch s {
	case OrderInactive:
		return orderStringInactive
	case OrderActive:
		return orderStringActive
	case OrderExecuted:
		return orderStringExecuted
	case OrderCancelled:
		return orderStringCancelled
	default:
		return "unknown"
	}
}

// MarshalText encodes the state by name.
func (s OrderState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// OrderTrigger drives a transition between order states.
type OrderTrigger int

const (
	TriggerActivate OrderTrigger = iota
	TriggerExecute
	TriggerCancel
	// TriggerSettle returns an executed or cancelled order to INACTIVE.
	TriggerSettle
)

// Transition is the single transition table shared by buy and sell orders.
// Every (state, trigger) pair not listed is an error.
func Transition(from OrderState, trigger OrderTrigger) (OrderState, error) {
	switch from {
	case OrderInactive:
		if trigger == TriggerActivate {
			return OrderActive, nil
		}
	case OrderActive:
		switch trigger {
		case TriggerExecute:
			return OrderExecuted, nil
		case TriggerCancel:
			return OrderCancelled, nil
		}
	case OrderExecuted, OrderCancelled:
		if trigger == TriggerSettle {
			return OrderInactive, nil
		}
	}

	return from, fmt.Errorf("illegal order transition from %s on trigger %d", from, trigger)
}

// Side is the direction of a trade.
type Side int

const (
	SideBuy Side = iota
	SideSell
)

// String returns "buy" or "sell".
func (s Side) String() string {
	if s == SideSell {
		return "sell"
	}
	return "buy"
}

// MarshalText encodes the side by name.
func (s Side) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// TrailingBuyOrder tracks a pending lot purchase.
// LimitPrice is fixed at activation and zero while Momentum is set;
// StopPrice only moves down while ACTIVE.
type TrailingBuyOrder struct {
	State              OrderState      `json:"state"`
	ReferencePeakPrice decimal.Decimal `json:"reference_peak_price"`
	LimitPrice         decimal.Decimal `json:"limit_price"`
	StopPrice          decimal.Decimal `json:"stop_price"`
	ReboundPercent     decimal.Decimal `json:"rebound_percent"`
	// Momentum orders were activated by the adaptive path and carry no price
	// ceiling until the adaptive path ends.
	Momentum    bool      `json:"momentum"`
	ActivatedAt time.Time `json:"activated_at"`
}

// IsActive reports whether the order is ACTIVE.
func (o TrailingBuyOrder) IsActive() bool {
	return o.State == OrderActive
}

// TrailingSellOrder tracks a pending sale of one or more lots.
// StopPrice only moves up while ACTIVE.
type TrailingSellOrder struct {
	State                OrderState      `json:"state"`
	ReferenceBottomPrice decimal.Decimal `json:"reference_bottom_price"`
	TargetLotIDs         []int           `json:"target_lot_ids"`
	StopPrice            decimal.Decimal `json:"stop_price"`
	LimitPrice           decimal.Decimal `json:"limit_price"`
	PullbackPercent      decimal.Decimal `json:"pullback_percent"`
	// SkipProfit orders were activated by the adaptive path and bypass the
	// profit floor until the adaptive path ends.
	SkipProfit  bool      `json:"skip_profit"`
	ActivatedAt time.Time `json:"activated_at"`
}

// IsActive reports whether the order is ACTIVE.
func (o TrailingSellOrder) IsActive() bool {
	return o.State == OrderActive
}
