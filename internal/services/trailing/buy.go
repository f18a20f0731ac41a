package trailing

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/trailgrid/internal/domain"
)

// Verdict is the answer of a Gate.
type Verdict struct {
	OK     bool
	Reason string
	Detail string
}

// Gate decides whether a triggered buy may fill at price.
// It must not change any state; the caller commits the buy.
type Gate interface {
	Admit(price decimal.Decimal) Verdict
}

// GateFunc adapts a function to Gate.
type GateFunc func(price decimal.Decimal) Verdict

// Admit calls f.
func (f GateFunc) Admit(price decimal.Decimal) Verdict {
	return f(price)
}

// BuyInput is one day of market data and settings for the buy machine.
type BuyInput struct {
	Date  time.Time
	Price decimal.Decimal
	// Peak is the highest close since the last trade.
	Peak              decimal.Decimal
	ActivationPercent decimal.Decimal
	// Adaptive carries the rebound to freeze into a newly activated order.
	// An active momentum order falls back to standard rules, limit included,
	// once SkipActivation is no longer set.
	Adaptive domain.AdaptiveParams
	// CanAdd is false when the ledger already holds maxLots lots.
	CanAdd bool
}

// BuyOutcome describes what the buy machine did on one day.
type BuyOutcome struct {
	Executed bool
	// Rebound is the threshold the executed order was using.
	Rebound  decimal.Decimal
	Rejected bool
	Verdict  Verdict
	// Limit is the executed order's limit price, zero for momentum orders.
	Limit       decimal.Decimal
	Transitions []Transition
}

// StepBuy advances a trailing buy order by one day: cancel, execute,
// activate, update, in that order.
func StepBuy(order domain.TrailingBuyOrder, in BuyInput, gate Gate) (domain.TrailingBuyOrder, BuyOutcome, error) {
	var (
		t   trail
		out BuyOutcome
		err error
	)

	if order.IsActive() && order.Momentum && !in.Adaptive.SkipActivation {
		order.Momentum = false
		order.ReboundPercent = in.Adaptive.EffectiveThreshold
		order.LimitPrice = order.ReferencePeakPrice
		t.adjust(order.StopPrice, ReasonAdaptiveEnded)
	}

	if order.IsActive() && !order.Momentum && in.Price.GreaterThan(order.LimitPrice) {
		if order.State, err = t.finish(order.State, domain.TriggerCancel, order.StopPrice, ReasonAboveLimit); err != nil {
			return order, out, err
		}
		order = domain.TrailingBuyOrder{State: order.State}
	}

	if order.IsActive() && in.Price.GreaterThanOrEqual(order.StopPrice) &&
		(order.Momentum || in.Price.LessThanOrEqual(order.LimitPrice)) {
		verdict := gate.Admit(in.Price)
		if !verdict.OK {
			out.Rejected = true
			out.Verdict = verdict
		} else {
			out.Executed = true
			out.Rebound = order.ReboundPercent
			out.Limit = order.LimitPrice
			if order.State, err = t.finish(order.State, domain.TriggerExecute, order.StopPrice, ReasonStopTriggered); err != nil {
				return order, out, err
			}
			out.Transitions = t.transitions

			return domain.TrailingBuyOrder{State: order.State}, out, nil
		}
	}

	activatedToday := false
	if order.State == domain.OrderInactive && in.CanAdd && shouldActivateBuy(in) {
		rebound := in.Adaptive.EffectiveThreshold
		stop := domain.Above(in.Price, rebound)
		reason := ReasonActivated
		if in.Adaptive.SkipActivation {
			reason = ReasonAdaptiveActivated
		}

		if order.State, err = t.fire(order.State, domain.TriggerActivate, stop, reason); err != nil {
			return order, out, err
		}
		order.ReferencePeakPrice = in.Peak
		order.StopPrice = stop
		order.ReboundPercent = rebound
		// momentum orders have no ceiling
		order.Momentum = in.Adaptive.SkipActivation
		if !order.Momentum {
			order.LimitPrice = in.Peak
		}
		order.ActivatedAt = in.Date
		activatedToday = true
	}

	if order.IsActive() && !activatedToday {
		candidate := domain.Above(in.Price, order.ReboundPercent)
		if candidate.LessThan(order.StopPrice) {
			order.StopPrice = candidate
			t.adjust(candidate, ReasonStopLowered)
		}
	}

	out.Transitions = t.transitions

	return order, out, nil
}

// CancelBuy cancels an active buy order, for example after a sell closed lots.
// Inactive orders are returned unchanged.
func CancelBuy(order domain.TrailingBuyOrder, reason string) (domain.TrailingBuyOrder, []Transition, error) {
	if !order.IsActive() {
		return order, nil, nil
	}

	var t trail
	state, err := t.finish(order.State, domain.TriggerCancel, order.StopPrice, reason)
	if err != nil {
		return order, nil, err
	}

	return domain.TrailingBuyOrder{State: state}, t.transitions, nil
}

func shouldActivateBuy(in BuyInput) bool {
	if in.Adaptive.SkipActivation {
		return true
	}
	if !in.Peak.IsPositive() {
		return false
	}

	drop := in.Peak.Sub(in.Price).Div(in.Peak)

	return drop.GreaterThanOrEqual(in.ActivationPercent)
}
