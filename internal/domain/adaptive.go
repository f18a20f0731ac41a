package domain

import "github.com/shopspring/decimal"

var (
	sellPullbackDecay = decimal.RequireFromString("0.5")
	sellPullbackFloor = decimal.RequireFromString("0.02")
	buyReboundDecay   = decimal.RequireFromString("0.8")
	buyReboundFloor   = decimal.RequireFromString("0.05")
)

// SellPullbackFloor is the lowest pullback the adaptive path can reach.
func SellPullbackFloor() decimal.Decimal { return sellPullbackFloor }

// BuyReboundFloor is the lowest rebound the adaptive path can reach.
func BuyReboundFloor() decimal.Decimal { return buyReboundFloor }

// Direction of the last price move between two same-side trades.
type Direction int

const (
	DirectionNone Direction = iota
	DirectionUp
	DirectionDown
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionUp:
		return "up"
	case DirectionDown:
		return "down"
	default:
		return "none"
	}
}

// AdaptiveState remembers consecutive same-side trades for one symbol and side.
type AdaptiveState struct {
	LastTradePrice   decimal.Decimal `json:"last_trade_price"`
	LastThreshold    decimal.Decimal `json:"last_threshold"`
	ConsecutiveCount int             `json:"consecutive_count"`
	Direction        Direction       `json:"direction"`
}

// IsEmpty reports whether no trade has been recorded since the last reset.
func (s AdaptiveState) IsEmpty() bool {
	return s.ConsecutiveCount == 0
}

// Record returns the state after a trade at price using threshold.
// A direction reversal restarts the count at 1.
func (s AdaptiveState) Record(price, threshold decimal.Decimal) AdaptiveState {
	if s.IsEmpty() {
		return AdaptiveState{
			LastTradePrice:   price,
			LastThreshold:    threshold,
			ConsecutiveCount: 1,
			Direction:        DirectionNone,
		}
	}

	dir := DirectionDown
	if price.GreaterThan(s.LastTradePrice) {
		dir = DirectionUp
	}

	count := 1
	if s.Direction == DirectionNone || s.Direction == dir {
		count = s.ConsecutiveCount + 1
	}

	return AdaptiveState{
		LastTradePrice:   price,
		LastThreshold:    threshold,
		ConsecutiveCount: count,
		Direction:        dir,
	}
}

// AdaptiveInput is everything the calculator looks at.
type AdaptiveInput struct {
	Side             Side
	CurrentPrice     decimal.Decimal
	LastTradePrice   decimal.Decimal
	StaticThreshold  decimal.Decimal
	LastThreshold    decimal.Decimal
	ConsecutiveCount int
	Enabled          bool
}

// AdaptiveParams are the thresholds a trailing order should use today.
type AdaptiveParams struct {
	EffectiveThreshold    decimal.Decimal `json:"effective_threshold"`
	SkipActivation        bool            `json:"skip_activation"`
	SkipProfitRequirement bool            `json:"skip_profit_requirement"`
	IsAdaptive            bool            `json:"is_adaptive"`
}

// StaticParams returns the non-adaptive result for threshold.
func StaticParams(threshold decimal.Decimal) AdaptiveParams {
	return AdaptiveParams{EffectiveThreshold: threshold}
}

// CalculateAdaptive decays the pullback (sell) or rebound (buy) across consecutive
// same-side trades. Sells keep decaying while price falls below the last sell,
// buys while price rises above the last buy. Floors are never crossed.
func CalculateAdaptive(in AdaptiveInput) AdaptiveParams {
	if !in.Enabled || in.ConsecutiveCount == 0 || !in.LastTradePrice.IsPositive() {
		return StaticParams(in.StaticThreshold)
	}

	last := in.LastThreshold
	if !last.IsPositive() {
		last = in.StaticThreshold
	}

	switch in.Side {
	case SideSell:
		if !in.CurrentPrice.LessThan(in.LastTradePrice) {
			return StaticParams(in.StaticThreshold)
		}
		return AdaptiveParams{
			EffectiveThreshold:    decimal.Max(last.Mul(sellPullbackDecay), sellPullbackFloor),
			SkipActivation:        true,
			SkipProfitRequirement: true,
			IsAdaptive:            true,
		}
	case SideBuy:
		if !in.CurrentPrice.GreaterThan(in.LastTradePrice) {
			return StaticParams(in.StaticThreshold)
		}
		return AdaptiveParams{
			EffectiveThreshold: decimal.Max(last.Mul(buyReboundDecay), buyReboundFloor),
			SkipActivation:     true,
			IsAdaptive:         true,
		}
	}

	return StaticParams(in.StaticThreshold)
}
