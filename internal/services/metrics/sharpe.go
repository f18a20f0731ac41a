package metrics

import (
	"math"

	"github.com/cinar/indicator/v2/helper"
	"github.com/cinar/indicator/v2/trend"
	"github.com/cinar/indicator/v2/volatility"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/trailgrid/internal/domain"
)

// TradingDaysPerYear annualizes daily statistics.
const TradingDaysPerYear = 252

// DailyReturns returns v[i]/v[i-1] - 1 for consecutive points of the series.
func DailyReturns(values []domain.ValuePoint) []float64 {
	if len(values) < 2 {
		return nil
	}

	out := make([]float64, 0, len(values)-1)
	for i := 1; i < len(values); i++ {
		prev, _ := values[i-1].Value.Float64()
		cur, _ := values[i].Value.Float64()
		if prev == 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, cur/prev-1)
	}
	return out
}

// SharpeRatio is the annualized mean over standard deviation of daily returns,
// with a zero risk-free rate. Flat series score zero.
func SharpeRatio(values []domain.ValuePoint) decimal.Decimal {
	returns := DailyReturns(values)
	if len(returns) < 2 {
		return decimal.Zero
	}

	mean := last(trend.NewSmaWithPeriod[float64](len(returns)).Compute(helper.SliceToChan(returns)))
	std := last(volatility.NewMovingStdWithPeriod[float64](len(returns)).Compute(helper.SliceToChan(returns)))
	if std == 0 || math.IsNaN(std) || math.IsNaN(mean) {
		return decimal.Zero
	}

	ratio := mean / std * math.Sqrt(TradingDaysPerYear)

	return decimal.NewFromFloat(ratio).Round(4)
}

func last(c <-chan float64) float64 {
	values := helper.ChanToSlice(c)
	if len(values) == 0 {
		return 0
	}
	return values[len(values)-1]
}
