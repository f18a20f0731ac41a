// Package metrics turns a transaction log and value series into run statistics.
package metrics

import (
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/trailgrid/internal/domain"
)

var (
	hundred = decimal.NewFromInt(100)
	half    = decimal.RequireFromString("0.5")
)

// Summary holds the aggregate statistics of one run.
type Summary struct {
	InitialCapital decimal.Decimal `json:"initial_capital"`
	FinalValue     decimal.Decimal `json:"final_value"`
	// TotalReturn, MaxDrawdown, WinRate and CapitalUtilization are fractions.
	TotalReturn        decimal.Decimal `json:"total_return"`
	MaxDrawdown        decimal.Decimal `json:"max_drawdown"`
	WinRate            decimal.Decimal `json:"win_rate"`
	CapitalUtilization decimal.Decimal `json:"capital_utilization"`
	SharpeRatio        decimal.Decimal `json:"sharpe_ratio"`
	RealizedPnL        decimal.Decimal `json:"realized_pnl"`

	TotalBuys     int `json:"total_buys"`
	TotalSells    int `json:"total_sells"`
	RejectedBuys  int `json:"rejected_buys"`
	RejectedSells int `json:"rejected_sells"`
	TradingDays   int `json:"trading_days"`

	AvgBuyPrice  decimal.Decimal `json:"avg_buy_price"`
	AvgSellPrice decimal.Decimal `json:"avg_sell_price"`
	// DCASuitabilityScore rates in [0, 100] how well the symbol suits the strategy.
	DCASuitabilityScore decimal.Decimal `json:"dca_suitability_score"`
}

// Summarize computes the run summary. Capital utilization is the mean share
// of capacity deployed at each close.
func Summarize(initialCapital, capacity decimal.Decimal, txs []domain.Transaction, values []domain.ValuePoint) Summary {
	s := Summary{
		InitialCapital: initialCapital,
		FinalValue:     initialCapital,
		TradingDays:    len(values),
	}

	var (
		buyPrices, sellPrices decimal.Decimal
		wins                  int
	)
	for _, tx := range txs {
		switch tx.Type {
		case domain.TransactionBuy:
			s.TotalBuys++
			buyPrices = buyPrices.Add(tx.Price)
		case domain.TransactionSell:
			s.TotalSells++
			sellPrices = sellPrices.Add(tx.Price)
			if tx.RealizedPnL != nil {
				s.RealizedPnL = s.RealizedPnL.Add(*tx.RealizedPnL)
				if tx.RealizedPnL.IsPositive() {
					wins++
				}
			}
		case domain.TransactionRejectedBuy:
			s.RejectedBuys++
		case domain.TransactionRejectedSell:
			s.RejectedSells++
		}
	}

	if s.TotalBuys > 0 {
		s.AvgBuyPrice = buyPrices.Div(decimal.NewFromInt(int64(s.TotalBuys)))
	}
	if s.TotalSells > 0 {
		s.AvgSellPrice = sellPrices.Div(decimal.NewFromInt(int64(s.TotalSells)))
		s.WinRate = decimal.NewFromInt(int64(wins)).Div(decimal.NewFromInt(int64(s.TotalSells)))
	}

	if len(values) > 0 {
		s.FinalValue = values[len(values)-1].Value
	}
	if initialCapital.IsPositive() {
		s.TotalReturn = s.FinalValue.Sub(initialCapital).Div(initialCapital)
	}

	s.MaxDrawdown = MaxDrawdown(values)
	s.CapitalUtilization = Utilization(capacity, values)
	s.SharpeRatio = SharpeRatio(values)
	s.DCASuitabilityScore = SuitabilityScore(s.TotalReturn, s.MaxDrawdown, s.WinRate)

	return s
}

// MaxDrawdown is the largest peak-to-trough decline of the value series, as a fraction.
func MaxDrawdown(values []domain.ValuePoint) decimal.Decimal {
	peak := decimal.Zero
	worst := decimal.Zero
	for _, v := range values {
		if v.Value.GreaterThan(peak) {
			peak = v.Value
			continue
		}
		if !peak.IsPositive() {
			continue
		}
		if dd := peak.Sub(v.Value).Div(peak); dd.GreaterThan(worst) {
			worst = dd
		}
	}
	return worst
}

// Utilization is the mean of deployed / capacity over the series.
func Utilization(capacity decimal.Decimal, values []domain.ValuePoint) decimal.Decimal {
	if !capacity.IsPositive() || len(values) == 0 {
		return decimal.Zero
	}

	sum := decimal.Zero
	for _, v := range values {
		sum = sum.Add(v.Deployed.Div(capacity))
	}

	return sum.Div(decimal.NewFromInt(int64(len(values))))
}

// SuitabilityScore maps return, drawdown and win rate to [0, 100]:
// 50 + return×50 − drawdown×50 + (winRate − 0.5)×40.
func SuitabilityScore(totalReturn, maxDrawdown, winRate decimal.Decimal) decimal.Decimal {
	score := decimal.NewFromInt(50).
		Add(totalReturn.Mul(hundred).Div(decimal.NewFromInt(2))).
		Sub(maxDrawdown.Mul(hundred).Div(decimal.NewFromInt(2))).
		Add(winRate.Sub(half).Mul(decimal.NewFromInt(40)))

	return decimal.Min(decimal.Max(score, decimal.Zero), hundred).Round(2)
}
