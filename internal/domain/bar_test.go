package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeBars(n int) []Bar {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]Bar, n)
	for i := range bars {
		p := decimal.NewFromInt(100)
		bars[i] = Bar{Date: start.AddDate(0, 0, i), Open: p, High: p, Low: p, Close: p}
	}
	return bars
}

func TestValidateBars(t *testing.T) {
	require.NoError(t, ValidateBars("AAPL", makeBars(MinBars)))

	err := ValidateBars("AAPL", makeBars(MinBars-1))
	assert.ErrorIs(t, err, ErrInsufficientData)

	bars := makeBars(40)
	bars[10].Close = decimal.Zero
	assert.ErrorIs(t, ValidateBars("AAPL", bars), ErrInsufficientData)

	bars = makeBars(40)
	bars[20].Date = bars[19].Date
	assert.ErrorIs(t, ValidateBars("AAPL", bars), ErrInsufficientData)

	bars = makeBars(40)
	bars[0].Date = time.Time{}
	assert.ErrorIs(t, ValidateBars("AAPL", bars), ErrInsufficientData)

	for name, mutate := range map[string]func(*Bar){
		"open":   func(b *Bar) { b.Open = decimal.Zero },
		"high":   func(b *Bar) { b.High = decimal.Zero },
		"low":    func(b *Bar) { b.Low = decimal.NewFromInt(-1) },
		"volume": func(b *Bar) { b.Volume = decimal.NewFromInt(-5) },
	} {
		bars = makeBars(40)
		mutate(&bars[5])
		err := ValidateBars("AAPL", bars)
		assert.ErrorIs(t, err, ErrInsufficientData, name)
		assert.ErrorContains(t, err, name)
	}
}

func TestLot(t *testing.T) {
	lot, err := NewLot(1, "AAPL", time.Now(), d("50"), d("1000"), d("0.1"))
	require.NoError(t, err)
	assert.True(t, lot.Quantity.Equal(d("20")))
	assert.True(t, lot.PnL(d("55")).Equal(d("100")))
	assert.True(t, lot.MeetsProfit(d("52.5"), d("0.05")))
	assert.False(t, lot.MeetsProfit(d("52.49"), d("0.05")))

	_, err = NewLot(2, "AAPL", time.Now(), d("0"), d("1000"), d("0.1"))
	assert.Error(t, err)
}

func TestAvgCost(t *testing.T) {
	a, _ := NewLot(1, "X", time.Now(), d("100"), d("1000"), d("0"))
	b, _ := NewLot(2, "X", time.Now(), d("50"), d("1000"), d("0"))

	// 10 shares at 100 and 20 shares at 50: (1000 + 1000) / 30
	avg := AvgCost([]Lot{a, b})
	assert.True(t, avg.Round(4).Equal(d("66.6667")), "got %s", avg)
	assert.True(t, AvgCost(nil).IsZero())
}
