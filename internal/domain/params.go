package domain

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// ErrInvalidParams marks configuration validation failures.
var ErrInvalidParams = errors.New("invalid strategy parameters")

// grid interval sequence kinds
const (
	GridSequenceLinear    = "linear"
	GridSequenceQuadratic = "quadratic"
)

// StrategyParams configures one symbol's grid. All percentages are decimal fractions.
type StrategyParams struct {
	LotSizeUsd                    decimal.Decimal `json:"lot_size_usd"`
	MaxLots                       int             `json:"max_lots"`
	MaxLotsToSell                 int             `json:"max_lots_to_sell"`
	GridIntervalPercent           decimal.Decimal `json:"grid_interval_percent"`
	ProfitRequirement             decimal.Decimal `json:"profit_requirement"`
	TrailingBuyActivationPercent  decimal.Decimal `json:"trailing_buy_activation_percent"`
	TrailingBuyReboundPercent     decimal.Decimal `json:"trailing_buy_rebound_percent"`
	TrailingSellActivationPercent decimal.Decimal `json:"trailing_sell_activation_percent"`
	TrailingSellPullbackPercent   decimal.Decimal `json:"trailing_sell_pullback_percent"`

	EnableConsecutiveIncrementalBuyGrid    bool            `json:"enable_consecutive_incremental_buy_grid"`
	GridConsecutiveIncrement               decimal.Decimal `json:"grid_consecutive_increment"`
	EnableConsecutiveIncrementalSellProfit bool            `json:"enable_consecutive_incremental_sell_profit"`

	// GridSequence selects how the interval grows with consecutive buys.
	GridSequence string `json:"grid_sequence"`
	// GridSequenceEnd is the last element of the quadratic sequence.
	// Zero means three times GridIntervalPercent.
	GridSequenceEnd decimal.Decimal `json:"grid_sequence_end"`
}

// InitialCapital is the notional needed to hold every lot at once.
func (p StrategyParams) InitialCapital() decimal.Decimal {
	return p.LotSizeUsd.Mul(decimal.NewFromInt(int64(p.MaxLots)))
}

// Validate fails fast on any out-of-range option.
func (p StrategyParams) Validate() error {
	if !p.LotSizeUsd.IsPositive() {
		return invalid("lotSizeUsd must be positive, got %s", p.LotSizeUsd.String())
	}
	if p.MaxLots < 1 {
		return invalid("maxLots must be >= 1, got %d", p.MaxLots)
	}
	if p.MaxLotsToSell < 1 || p.MaxLotsToSell > p.MaxLots {
		return invalid("maxLotsToSell must be within [1, %d], got %d", p.MaxLots, p.MaxLotsToSell)
	}

	fractions := []struct {
		name     string
		value    decimal.Decimal
		positive bool
	}{
		{"gridIntervalPercent", p.GridIntervalPercent, false},
		{"profitRequirement", p.ProfitRequirement, false},
		{"trailingBuyActivationPercent", p.TrailingBuyActivationPercent, false},
		{"trailingBuyReboundPercent", p.TrailingBuyReboundPercent, true},
		{"trailingSellActivationPercent", p.TrailingSellActivationPercent, false},
		{"trailingSellPullbackPercent", p.TrailingSellPullbackPercent, true},
		{"gridConsecutiveIncrement", p.GridConsecutiveIncrement, false},
	}
	for _, f := range fractions {
		if err := checkFraction(f.name, f.value, f.positive); err != nil {
			return err
		}
	}

	switch p.GridSequence {
	case "", GridSequenceLinear:
	case GridSequenceQuadratic:
		if !p.GridSequenceEnd.IsZero() && p.GridSequenceEnd.LessThan(p.GridIntervalPercent) {
			return invalid("gridSequenceEnd must be >= gridIntervalPercent, got %s", p.GridSequenceEnd.String())
		}
	default:
		return invalid("unknown gridSequence %q", p.GridSequence)
	}

	return nil
}

// CapitalParams configures the shared pool of a portfolio run.
type CapitalParams struct {
	TotalCapitalUsd decimal.Decimal `json:"total_capital_usd"`
	// MarginPercent is a whole percentage in [0, 100].
	MarginPercent decimal.Decimal `json:"margin_percent"`
}

// EffectiveCapital is total capital scaled by (1 + margin/100).
func (c CapitalParams) EffectiveCapital() decimal.Decimal {
	return c.TotalCapitalUsd.Mul(decimal.NewFromInt(1).Add(c.MarginPercent.Div(decimal.NewFromInt(100))))
}

// Validate checks the pool settings.
func (c CapitalParams) Validate() error {
	if !c.TotalCapitalUsd.IsPositive() {
		return invalid("totalCapitalUsd must be positive, got %s", c.TotalCapitalUsd.String())
	}
	if c.MarginPercent.IsNegative() || c.MarginPercent.GreaterThan(decimal.NewFromInt(100)) {
		return invalid("marginPercent must be within [0, 100], got %s", c.MarginPercent.String())
	}
	return nil
}

func checkFraction(name string, v decimal.Decimal, positive bool) error {
	if v.IsNegative() || v.GreaterThan(decimal.NewFromInt(1)) {
		return invalid("%s must be within [0, 1], got %s", name, v.String())
	}
	if positive && v.IsZero() {
		return invalid("%s must be positive", name)
	}
	return nil
}

func invalid(format string, args ...any) error {
	return errors.Wrap(ErrInvalidParams, fmt.Sprintf(format, args...))
}
