// Package trailing implements the buy and sell trailing-stop order machines.
// Both machines are pure: they take an order and one day of input and return
// the next order together with what happened.
package trailing

import (
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/trailgrid/internal/domain"
)

// transition reasons
const (
	ReasonActivated         = "activated"
	ReasonAdaptiveActivated = "adaptive_activated"
	ReasonStopTriggered     = "stop_triggered"
	ReasonAboveLimit        = "price_above_limit"
	ReasonNoEligibleLots    = "no_eligible_lots"
	ReasonTargetsClosed     = "targets_closed"
	ReasonSellExecuted      = "sell_executed"
	ReasonSettled           = "settled"
	ReasonStopLowered       = "stop_lowered"
	ReasonStopRaised        = "stop_raised"
	ReasonAdaptiveEnded     = "adaptive_ended"
)

// Transition is one change of an order. Stop adjustments and the end of
// adaptive rules are reported with From and To both ACTIVE.
type Transition struct {
	From   domain.OrderState
	To     domain.OrderState
	Stop   decimal.Decimal
	Reason string
}

// IsStopAdjustment reports whether the transition only moved the stop.
func (t Transition) IsStopAdjustment() bool {
	return t.From == domain.OrderActive && t.To == domain.OrderActive && t.Reason != ReasonAdaptiveEnded
}

type trail struct {
	transitions []Transition
}

func (t *trail) fire(state domain.OrderState, trigger domain.OrderTrigger, stop decimal.Decimal, reason string) (domain.OrderState, error) {
	next, err := domain.Transition(state, trigger)
	if err != nil {
		return state, errors.Wrap(err, reason)
	}

	t.transitions = append(t.transitions, Transition{From: state, To: next, Stop: stop, Reason: reason})

	return next, nil
}

// finish runs the terminal trigger and settles the order back to INACTIVE.
func (t *trail) finish(state domain.OrderState, trigger domain.OrderTrigger, stop decimal.Decimal, reason string) (domain.OrderState, error) {
	state, err := t.fire(state, trigger, stop, reason)
	if err != nil {
		return state, err
	}

	return t.fire(state, domain.TriggerSettle, stop, ReasonSettled)
}

func (t *trail) adjust(stop decimal.Decimal, reason string) {
	t.transitions = append(t.transitions, Transition{
		From:   domain.OrderActive,
		To:     domain.OrderActive,
		Stop:   stop,
		Reason: reason,
	})
}
