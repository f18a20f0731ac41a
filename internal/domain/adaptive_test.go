package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestCalculateAdaptive_Disabled(t *testing.T) {
	params := CalculateAdaptive(AdaptiveInput{
		Side:             SideSell,
		CurrentPrice:     d("90"),
		LastTradePrice:   d("100"),
		StaticThreshold:  d("0.05"),
		LastThreshold:    d("0.05"),
		ConsecutiveCount: 3,
		Enabled:          false,
	})

	assert.False(t, params.IsAdaptive)
	assert.False(t, params.SkipActivation)
	assert.True(t, params.EffectiveThreshold.Equal(d("0.05")))
}

func TestCalculateAdaptive_NoPriorTrade(t *testing.T) {
	params := CalculateAdaptive(AdaptiveInput{
		Side:            SideBuy,
		CurrentPrice:    d("90"),
		StaticThreshold: d("0.05"),
		Enabled:         true,
	})

	assert.False(t, params.IsAdaptive)
	assert.True(t, params.EffectiveThreshold.Equal(d("0.05")))
}

// sell #1 at 100 is standard, then the price keeps falling: 95, 90, 85.
func TestCalculateAdaptive_SellDecayInDowntrend(t *testing.T) {
	static := d("0.05")
	state := AdaptiveState{}.Record(d("100"), static)

	expected := []string{"0.025", "0.02", "0.02"}
	for i, price := range []string{"95", "90", "85"} {
		params := CalculateAdaptive(AdaptiveInput{
			Side:             SideSell,
			CurrentPrice:     d(price),
			LastTradePrice:   state.LastTradePrice,
			StaticThreshold:  static,
			LastThreshold:    state.LastThreshold,
			ConsecutiveCount: state.ConsecutiveCount,
			Enabled:          true,
		})

		require.True(t, params.IsAdaptive, "step %d", i)
		assert.True(t, params.SkipActivation, "step %d", i)
		assert.True(t, params.SkipProfitRequirement, "step %d", i)
		assert.True(t, params.EffectiveThreshold.Equal(d(expected[i])),
			"step %d: expected %s, got %s", i, expected[i], params.EffectiveThreshold)

		state = state.Record(d(price), params.EffectiveThreshold)
	}

	// reversal: 85 -> 90 restores the static pullback and re-enables checks
	params := CalculateAdaptive(AdaptiveInput{
		Side:             SideSell,
		CurrentPrice:     d("90"),
		LastTradePrice:   state.LastTradePrice,
		StaticThreshold:  static,
		LastThreshold:    state.LastThreshold,
		ConsecutiveCount: state.ConsecutiveCount,
		Enabled:          true,
	})
	assert.False(t, params.IsAdaptive)
	assert.False(t, params.SkipActivation)
	assert.False(t, params.SkipProfitRequirement)
	assert.True(t, params.EffectiveThreshold.Equal(static))
}

// buy #1 at 50, then the price rises to 52 and 53.
func TestCalculateAdaptive_BuyReboundClampedInUptrend(t *testing.T) {
	static := d("0.05")
	state := AdaptiveState{}.Record(d("50"), static)

	for _, price := range []string{"52", "53"} {
		params := CalculateAdaptive(AdaptiveInput{
			Side:             SideBuy,
			CurrentPrice:     d(price),
			LastTradePrice:   state.LastTradePrice,
			StaticThreshold:  static,
			LastThreshold:    state.LastThreshold,
			ConsecutiveCount: state.ConsecutiveCount,
			Enabled:          true,
		})

		assert.True(t, params.SkipActivation)
		assert.False(t, params.SkipProfitRequirement)
		assert.True(t, params.EffectiveThreshold.Equal(d("0.05")), "got %s", params.EffectiveThreshold)

		state = state.Record(d(price), params.EffectiveThreshold)
	}
}

func TestCalculateAdaptive_BuyAtOrBelowLastIsStandard(t *testing.T) {
	for _, price := range []string{"50", "45"} {
		params := CalculateAdaptive(AdaptiveInput{
			Side:             SideBuy,
			CurrentPrice:     d(price),
			LastTradePrice:   d("50"),
			StaticThreshold:  d("0.08"),
			LastThreshold:    d("0.06"),
			ConsecutiveCount: 2,
			Enabled:          true,
		})
		assert.False(t, params.SkipActivation)
		assert.True(t, params.EffectiveThreshold.Equal(d("0.08")))
	}
}

func TestCalculateAdaptive_FloorsHoldForever(t *testing.T) {
	sell := AdaptiveState{}.Record(d("1000"), d("0.3"))
	buy := AdaptiveState{}.Record(d("10"), d("0.3"))

	for i := 0; i < 200; i++ {
		sp := CalculateAdaptive(AdaptiveInput{
			Side: SideSell, CurrentPrice: sell.LastTradePrice.Sub(d("1")), LastTradePrice: sell.LastTradePrice,
			StaticThreshold: d("0.3"), LastThreshold: sell.LastThreshold, ConsecutiveCount: sell.ConsecutiveCount, Enabled: true,
		})
		require.True(t, sp.EffectiveThreshold.GreaterThanOrEqual(SellPullbackFloor()), "iteration %d", i)
		sell = sell.Record(sell.LastTradePrice.Sub(d("1")), sp.EffectiveThreshold)

		bp := CalculateAdaptive(AdaptiveInput{
			Side: SideBuy, CurrentPrice: buy.LastTradePrice.Add(d("1")), LastTradePrice: buy.LastTradePrice,
			StaticThreshold: d("0.3"), LastThreshold: buy.LastThreshold, ConsecutiveCount: buy.ConsecutiveCount, Enabled: true,
		})
		require.True(t, bp.EffectiveThreshold.GreaterThanOrEqual(BuyReboundFloor()), "iteration %d", i)
		buy = buy.Record(buy.LastTradePrice.Add(d("1")), bp.EffectiveThreshold)
	}

	assert.True(t, sell.LastThreshold.Equal(SellPullbackFloor()))
	assert.True(t, buy.LastThreshold.Equal(BuyReboundFloor()))
}

func TestAdaptiveState_Record(t *testing.T) {
	s := AdaptiveState{}
	require.True(t, s.IsEmpty())

	s = s.Record(d("100"), d("0.05"))
	assert.Equal(t, 1, s.ConsecutiveCount)
	assert.Equal(t, DirectionNone, s.Direction)

	s = s.Record(d("95"), d("0.05"))
	assert.Equal(t, 2, s.ConsecutiveCount)
	assert.Equal(t, DirectionDown, s.Direction)

	s = s.Record(d("90"), d("0.05"))
	assert.Equal(t, 3, s.ConsecutiveCount)

	// reversal restarts at 1, not 0
	s = s.Record(d("96"), d("0.05"))
	assert.Equal(t, 1, s.ConsecutiveCount)
	assert.Equal(t, DirectionUp, s.Direction)
	assert.False(t, s.IsEmpty())
}
