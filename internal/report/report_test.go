package report

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/vadiminshakov/trailgrid/internal/services/metrics"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestRender_Single(t *testing.T) {
	out := Render(Run{
		Name:    "btc",
		Mode:    "single",
		Symbols: []string{"BTCUSDT"},
		Summary: metrics.Summary{
			InitialCapital:      d("10000"),
			FinalValue:          d("10500"),
			TotalReturn:         d("0.05"),
			MaxDrawdown:         d("0.123"),
			WinRate:             d("1"),
			RealizedPnL:         d("500"),
			SharpeRatio:         d("1.2345"),
			TotalBuys:           3,
			TotalSells:          2,
			RejectedBuys:        1,
			TradingDays:         30,
			DCASuitabilityScore: d("62.5"),
		},
		PerSymbol: []metrics.SymbolSummary{{Symbol: "BTCUSDT"}},
	})

	assert.Contains(t, out, "btc (single)")
	assert.Contains(t, out, "BTCUSDT")
	assert.Contains(t, out, "10500.00")
	assert.Contains(t, out, "+5.00%")
	assert.Contains(t, out, "+500.00")
	assert.Contains(t, out, "12.30%")
	assert.Contains(t, out, "100.00%")
	assert.Contains(t, out, "1.23")
	assert.Contains(t, out, "3 / 2")
	assert.Contains(t, out, "1 / 0")
	assert.Contains(t, out, "62.50 / 100")
	assert.NotContains(t, out, "MARKET VALUE")
	assert.NotContains(t, out, "Day errors")
}

func TestRender_PortfolioWithDayErrors(t *testing.T) {
	out := Render(Run{
		Name:    "majors",
		Mode:    "portfolio",
		Symbols: []string{"BTCUSDT", "ETHUSDT"},
		Summary: metrics.Summary{TotalReturn: d("-0.1"), RealizedPnL: d("-42")},
		PerSymbol: []metrics.SymbolSummary{
			{Symbol: "BTCUSDT", Buys: 2, Sells: 1, RealizedPnL: d("10"), OpenLots: 1, MarketValue: d("950"), UnrealizedPnL: d("-50")},
			{Symbol: "ETHUSDT", Buys: 1, Rejections: 4, RealizedPnL: d("-52")},
		},
		DayErrors: 2,
	})

	assert.Contains(t, out, "BTCUSDT, ETHUSDT")
	assert.Contains(t, out, "-10.00%")
	assert.NotContains(t, out, "+-")
	assert.Contains(t, out, "Day errors")
	assert.Contains(t, out, "MARKET VALUE")
	assert.Contains(t, out, "950.00")
	assert.Contains(t, out, "-52.00")
}
