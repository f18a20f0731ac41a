package backtest

import (
	"math/rand"
	"strconv"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/vadiminshakov/trailgrid/internal/domain"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

var day0 = time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)

func defaultParams() domain.StrategyParams {
	return domain.StrategyParams{
		LotSizeUsd:                    d("1000"),
		MaxLots:                       5,
		MaxLotsToSell:                 1,
		GridIntervalPercent:           d("0.1"),
		ProfitRequirement:             d("0.05"),
		TrailingBuyActivationPercent:  d("0.1"),
		TrailingBuyReboundPercent:     d("0.05"),
		TrailingSellActivationPercent: d("0.2"),
		TrailingSellPullbackPercent:   d("0.1"),
		GridConsecutiveIncrement:      d("0.05"),
		GridSequence:                  domain.GridSequenceLinear,
	}
}

// barsFrom builds one bar per day from closes.
func barsFrom(closes ...float64) []domain.Bar {
	bars := make([]domain.Bar, len(closes))
	for i, c := range closes {
		p := decimal.NewFromFloat(c)
		bars[i] = domain.Bar{
			Date:   day0.AddDate(0, 0, i),
			Open:   p,
			High:   p,
			Low:    p,
			Close:  p,
			Volume: decimal.NewFromInt(1000),
		}
	}
	return bars
}

func flat(price float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = price
	}
	return out
}

func path(parts ...[]float64) []float64 {
	var out []float64
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// randomBars is a seeded random walk with ±5% daily moves.
func randomBars(seed int64, n int) []domain.Bar {
	rnd := rand.New(rand.NewSource(seed))
	closes := make([]float64, n)
	price := 100.0
	for i := range closes {
		price *= 1 + rnd.Float64()*0.1 - 0.05
		if price < 1 {
			price = 1
		}
		closes[i], _ = strconv.ParseFloat(strconv.FormatFloat(price, 'f', 2, 64), 64)
	}
	return barsFrom(closes...)
}

type mockObserver struct {
	mock.Mock
}

func (m *mockObserver) ObserveTransaction(tx domain.Transaction) {
	m.Called(tx)
}

func (m *mockObserver) ObserveOrderEvent(ev domain.OrderEvent) {
	m.Called(ev)
}

func (m *mockObserver) ObserveQuestionable(ev domain.QuestionableEvent) {
	m.Called(ev)
}

// panicObserver blows up on the first transaction of the given type.
type panicObserver struct {
	on    domain.TransactionType
	fired bool
}

func (p *panicObserver) ObserveTransaction(tx domain.Transaction) {
	if tx.Type == p.on && !p.fired {
		p.fired = true
		panic("observer failure")
	}
}

func (p *panicObserver) ObserveOrderEvent(domain.OrderEvent) {}

func (p *panicObserver) ObserveQuestionable(domain.QuestionableEvent) {}

func txTypes(txs []domain.Transaction) []domain.TransactionType {
	out := make([]domain.TransactionType, len(txs))
	for i, tx := range txs {
		out[i] = tx.Type
	}
	return out
}

func requireFloat(t *testing.T, v decimal.Decimal) float64 {
	t.Helper()
	f, _ := v.Float64()
	return f
}
