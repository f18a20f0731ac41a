package trailing

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/trailgrid/internal/domain"
)

// LotBook is the read side of a ledger the sell machine needs.
type LotBook interface {
	Eligible(price, profitRequirement decimal.Decimal, skipProfit bool) []domain.Lot
	SelectTargets(price, profitRequirement decimal.Decimal, skipProfit bool, max int) []domain.Lot
	Get(ids []int) []domain.Lot
}

// SellInput is one day of market data and settings for the sell machine.
type SellInput struct {
	Date  time.Time
	Price decimal.Decimal
	// Bottom is the lowest close since the last trade.
	Bottom            decimal.Decimal
	ActivationPercent decimal.Decimal
	ProfitRequirement decimal.Decimal
	MaxLotsToSell     int
	// Adaptive carries the pullback and skip flags for a newly activated order.
	// An active skip-profit order falls back to standard rules once the flag
	// is no longer set.
	Adaptive domain.AdaptiveParams
}

// SellOutcome describes what the sell machine did on one day.
type SellOutcome struct {
	Executed bool
	// Lots are the targets to close when Executed, or the refused targets when Rejected.
	Lots []domain.Lot
	// Pullback is the threshold the executed order was using.
	Pullback   decimal.Decimal
	SkipProfit bool
	Rejected   bool
	Reason     string
	Detail     string
	// Floor is avgCost × (1 + profitRequirement) of the targets at execution.
	Floor       decimal.Decimal
	Transitions []Transition
}

// StepSell advances a trailing sell order by one day: cancel, execute,
// activate, update, in that order.
func StepSell(order domain.TrailingSellOrder, in SellInput, book LotBook) (domain.TrailingSellOrder, SellOutcome, error) {
	var (
		t   trail
		out SellOutcome
		err error
	)

	if order.IsActive() && order.SkipProfit && !in.Adaptive.SkipProfitRequirement {
		order.SkipProfit = false
		order.PullbackPercent = in.Adaptive.EffectiveThreshold
		if targets := book.SelectTargets(in.Price, in.ProfitRequirement, false, in.MaxLotsToSell); len(targets) > 0 {
			order.TargetLotIDs = domain.LotIDs(targets)
			order.LimitPrice = domain.AvgCost(targets)
		}
		t.adjust(order.StopPrice, ReasonAdaptiveEnded)
	}

	if order.IsActive() && !order.SkipProfit && len(book.Eligible(in.Price, in.ProfitRequirement, false)) == 0 {
		if order.State, err = t.finish(order.State, domain.TriggerCancel, order.StopPrice, ReasonNoEligibleLots); err != nil {
			return order, out, err
		}
		order = domain.TrailingSellOrder{State: order.State}
	}

	if order.IsActive() && in.Price.LessThanOrEqual(order.StopPrice) {
		targets := book.Get(order.TargetLotIDs)
		if len(targets) == 0 {
			if order.State, err = t.finish(order.State, domain.TriggerCancel, order.StopPrice, ReasonTargetsClosed); err != nil {
				return order, out, err
			}
			order = domain.TrailingSellOrder{State: order.State}
		} else {
			avg := domain.AvgCost(targets)
			floor := domain.Above(avg, in.ProfitRequirement)

			switch {
			case !order.SkipProfit && !in.Price.GreaterThan(order.LimitPrice):
				out.Rejected = true
				out.Lots = targets
				out.Reason = domain.ReasonBelowLimit
				out.Detail = fmt.Sprintf("%s <= limit %s", in.Price.String(), order.LimitPrice.StringFixed(4))
			case !order.SkipProfit && in.Price.LessThan(floor):
				out.Rejected = true
				out.Lots = targets
				out.Reason = domain.ReasonProfitUnmet
				out.Detail = fmt.Sprintf("%s < %s × (1 + %s)", in.Price.String(), avg.StringFixed(4), in.ProfitRequirement.String())
			default:
				out.Executed = true
				out.Lots = targets
				out.Pullback = order.PullbackPercent
				out.SkipProfit = order.SkipProfit
				out.Floor = floor
				if order.State, err = t.finish(order.State, domain.TriggerExecute, order.StopPrice, ReasonStopTriggered); err != nil {
					return order, out, err
				}
				out.Transitions = t.transitions

				return domain.TrailingSellOrder{State: order.State}, out, nil
			}
		}
	}

	activatedToday := false
	if order.State == domain.OrderInactive {
		skip := in.Adaptive.SkipProfitRequirement
		targets := book.SelectTargets(in.Price, in.ProfitRequirement, skip, in.MaxLotsToSell)
		if len(targets) > 0 && shouldActivateSell(in) {
			pullback := in.Adaptive.EffectiveThreshold
			stop := domain.Below(in.Price, pullback)
			reason := ReasonActivated
			if in.Adaptive.SkipActivation {
				reason = ReasonAdaptiveActivated
			}

			if order.State, err = t.fire(order.State, domain.TriggerActivate, stop, reason); err != nil {
				return order, out, err
			}
			order.ReferenceBottomPrice = in.Bottom
			order.TargetLotIDs = domain.LotIDs(targets)
			order.StopPrice = stop
			order.LimitPrice = domain.AvgCost(targets)
			order.PullbackPercent = pullback
			order.SkipProfit = skip
			order.ActivatedAt = in.Date
			activatedToday = true
		}
	}

	if order.IsActive() && !activatedToday {
		candidate := domain.Below(in.Price, order.PullbackPercent)
		if candidate.GreaterThan(order.StopPrice) {
			order.StopPrice = candidate
			t.adjust(candidate, ReasonStopRaised)
		}

		if targets := book.SelectTargets(in.Price, in.ProfitRequirement, order.SkipProfit, in.MaxLotsToSell); len(targets) > 0 {
			order.TargetLotIDs = domain.LotIDs(targets)
			order.LimitPrice = domain.AvgCost(targets)
		}
	}

	out.Transitions = t.transitions

	return order, out, nil
}

func shouldActivateSell(in SellInput) bool {
	if in.Adaptive.SkipActivation {
		return true
	}
	if !in.Bottom.IsPositive() {
		return false
	}

	rise := in.Price.Sub(in.Bottom).Div(in.Bottom)

	return rise.GreaterThanOrEqual(in.ActivationPercent)
}
