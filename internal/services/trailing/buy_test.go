package trailing

import (
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/trailgrid/internal/domain"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.True(t, d(want).Equal(got), append([]any{"want %s got %s", want, got.String()}, msgAndArgs...)...)
}

var (
	day0   = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	admit  = GateFunc(func(decimal.Decimal) Verdict { return Verdict{OK: true} })
	refuse = GateFunc(func(decimal.Decimal) Verdict {
		return Verdict{Reason: domain.ReasonInsufficientCash, Detail: "cash 0 < 1000"}
	})
)

func buyInput(price, peak string) BuyInput {
	return BuyInput{
		Date:              day0,
		Price:             d(price),
		Peak:              d(peak),
		ActivationPercent: d("0.1"),
		Adaptive:          domain.StaticParams(d("0.05")),
		CanAdd:            true,
	}
}

func activeBuy(t *testing.T) domain.TrailingBuyOrder {
	t.Helper()
	order, out, err := StepBuy(domain.TrailingBuyOrder{}, buyInput("89", "100"), admit)
	require.NoError(t, err)
	require.False(t, out.Executed)
	require.True(t, order.IsActive())
	return order
}

func TestStepBuy_Activation(t *testing.T) {
	order, out, err := StepBuy(domain.TrailingBuyOrder{}, buyInput("95", "100"), admit)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderInactive, order.State, "5% drop is below the 10% activation")
	assert.Empty(t, out.Transitions)

	order = activeBuy(t)
	assertDecimal(t, "100", order.LimitPrice)
	assertDecimal(t, "100", order.ReferencePeakPrice)
	assertDecimal(t, "93.45", order.StopPrice)
	assertDecimal(t, "0.05", order.ReboundPercent)
	assert.False(t, order.Momentum)
}

func TestStepBuy_NoActivationWhenFull(t *testing.T) {
	in := buyInput("50", "100")
	in.CanAdd = false

	order, _, err := StepBuy(domain.TrailingBuyOrder{}, in, admit)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderInactive, order.State)
}

func TestStepBuy_UpdateOnlyLowersStop(t *testing.T) {
	order := activeBuy(t)

	order, out, err := StepBuy(order, buyInput("85", "100"), admit)
	require.NoError(t, err)
	assertDecimal(t, "89.25", order.StopPrice)
	require.Len(t, out.Transitions, 1)
	assert.True(t, out.Transitions[0].IsStopAdjustment())

	order, out, err = StepBuy(order, buyInput("87", "100"), admit)
	require.NoError(t, err)
	assertDecimal(t, "89.25", order.StopPrice)
	assert.Empty(t, out.Transitions)
}

func TestStepBuy_Execute(t *testing.T) {
	order := activeBuy(t)
	order, _, err := StepBuy(order, buyInput("85", "100"), admit)
	require.NoError(t, err)

	order, out, err := StepBuy(order, buyInput("90", "100"), admit)
	require.NoError(t, err)
	assert.True(t, out.Executed)
	assertDecimal(t, "100", out.Limit)
	assertDecimal(t, "0.05", out.Rebound)
	assert.Equal(t, domain.OrderInactive, order.State)

	require.Len(t, out.Transitions, 2)
	assert.Equal(t, domain.OrderExecuted, out.Transitions[0].To)
	assert.Equal(t, domain.OrderInactive, out.Transitions[1].To)
}

func TestStepBuy_RejectionKeepsOrderActive(t *testing.T) {
	order := activeBuy(t)

	next, out, err := StepBuy(order, buyInput("94", "100"), refuse)
	require.NoError(t, err)
	assert.False(t, out.Executed)
	assert.True(t, out.Rejected)
	assert.Equal(t, domain.ReasonInsufficientCash, out.Verdict.Reason)
	assert.True(t, next.IsActive())
	assertDecimal(t, order.StopPrice.String(), next.StopPrice)
}

func TestStepBuy_CancelAboveLimit(t *testing.T) {
	order := activeBuy(t)

	order, out, err := StepBuy(order, buyInput("101", "101"), admit)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderInactive, order.State)
	assert.False(t, out.Executed)
	require.Len(t, out.Transitions, 2)
	assert.Equal(t, domain.OrderCancelled, out.Transitions[0].To)
	assert.Equal(t, ReasonAboveLimit, out.Transitions[0].Reason)
}

func TestStepBuy_MomentumHasNoCeiling(t *testing.T) {
	in := buyInput("105", "105")
	in.Adaptive = domain.AdaptiveParams{EffectiveThreshold: d("0.05"), SkipActivation: true, IsAdaptive: true}

	order, out, err := StepBuy(domain.TrailingBuyOrder{}, in, admit)
	require.NoError(t, err)
	require.True(t, order.IsActive())
	assert.True(t, order.Momentum)
	assert.Equal(t, ReasonAdaptiveActivated, out.Transitions[0].Reason)
	assertDecimal(t, "110.25", order.StopPrice)
	assert.True(t, order.LimitPrice.IsZero(), "momentum orders store no limit")

	in.Price, in.Peak = d("111"), d("111")
	order, out, err = StepBuy(order, in, admit)
	require.NoError(t, err)
	assert.True(t, out.Executed)
	assert.True(t, out.Limit.IsZero())
	assert.Equal(t, domain.OrderInactive, order.State)
}

func TestStepBuy_MomentumEndsWhenPriceFallsBack(t *testing.T) {
	in := buyInput("105", "105")
	in.Adaptive = domain.AdaptiveParams{EffectiveThreshold: d("0.04"), SkipActivation: true, IsAdaptive: true}

	order, _, err := StepBuy(domain.TrailingBuyOrder{}, in, admit)
	require.NoError(t, err)
	require.True(t, order.Momentum)
	assertDecimal(t, "109.2", order.StopPrice)

	// back at or below the last buy: the ceiling returns, the stop is kept and ratchets down
	order, out, err := StepBuy(order, buyInput("100", "105"), admit)
	require.NoError(t, err)
	require.True(t, order.IsActive())
	assert.False(t, order.Momentum)
	assertDecimal(t, "105", order.LimitPrice)
	assertDecimal(t, "0.05", order.ReboundPercent)
	assertDecimal(t, "105", order.StopPrice)
	require.Len(t, out.Transitions, 2)
	assert.Equal(t, ReasonAdaptiveEnded, out.Transitions[0].Reason)
	assert.Equal(t, ReasonStopLowered, out.Transitions[1].Reason)

	// a momentum order would fill here, a standard one is above its limit
	order, out, err = StepBuy(order, buyInput("106", "106"), admit)
	require.NoError(t, err)
	assert.False(t, out.Executed)
	assert.Equal(t, domain.OrderInactive, order.State)
	assert.Equal(t, ReasonAboveLimit, out.Transitions[0].Reason)
}

func TestCancelBuy(t *testing.T) {
	order, transitions, err := CancelBuy(domain.TrailingBuyOrder{}, ReasonSellExecuted)
	require.NoError(t, err)
	assert.Empty(t, transitions)
	assert.Equal(t, domain.OrderInactive, order.State)

	order, transitions, err = CancelBuy(activeBuy(t), ReasonSellExecuted)
	require.NoError(t, err)
	require.Len(t, transitions, 2)
	assert.Equal(t, ReasonSellExecuted, transitions[0].Reason)
	assert.Equal(t, domain.OrderInactive, order.State)
}

func TestStepBuy_StopNeverRises(t *testing.T) {
	rnd := rand.New(rand.NewSource(7))
	price := decimal.NewFromInt(100)
	peak := price

	var order domain.TrailingBuyOrder
	for i := 0; i < 500; i++ {
		move := decimal.NewFromFloat(rnd.Float64()*0.08 - 0.04)
		price = domain.Above(price, move).Round(4)
		peak = decimal.Max(peak, price)

		prev := order
		next, out, err := StepBuy(order, BuyInput{
			Date:              day0.AddDate(0, 0, i),
			Price:             price,
			Peak:              peak,
			ActivationPercent: d("0.03"),
			Adaptive:          domain.StaticParams(d("0.05")),
			CanAdd:            true,
		}, refuse)
		require.NoError(t, err)

		if prev.IsActive() && next.IsActive() && !out.Executed {
			assert.True(t, next.StopPrice.LessThanOrEqual(prev.StopPrice), "day %d: stop rose from %s to %s", i, prev.StopPrice, next.StopPrice)
			assert.True(t, next.LimitPrice.Equal(prev.LimitPrice), "limit is fixed at activation")
		}
		order = next
	}
}
