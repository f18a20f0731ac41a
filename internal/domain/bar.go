package domain

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// MinBars is the shortest price history the engine accepts.
const MinBars = 30

// ErrInsufficientData is returned when a bar series cannot be simulated.
var ErrInsufficientData = errors.New("insufficient price data")

// Bar is one daily candle.
type Bar struct {
	Date   time.Time       `json:"date"`
	Open   decimal.Decimal `json:"open"`
	High   decimal.Decimal `json:"high"`
	Low    decimal.Decimal `json:"low"`
	Close  decimal.Decimal `json:"close"`
	Volume decimal.Decimal `json:"volume"`
}

// ClosePrice returns the closing price.
func (b Bar) ClosePrice() decimal.Decimal {
	return b.Close
}

// Day truncates the bar date to a calendar day in UTC.
func (b Bar) Day() time.Time {
	return DayOf(b.Date)
}

// DayOf truncates t to midnight UTC.
func DayOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ValidateBars checks that a series is long enough, strictly ascending and complete.
func ValidateBars(symbol string, bars []Bar) error {
	if len(bars) < MinBars {
		return errors.Wrapf(ErrInsufficientData, "%s: need at least %d bars, got %d", symbol, MinBars, len(bars))
	}

	for i, b := range bars {
		if b.Date.IsZero() {
			return errors.Wrapf(ErrInsufficientData, "%s: bar %d has no date", symbol, i)
		}
		for _, f := range []struct {
			name string
			v    decimal.Decimal
		}{
			{"open", b.Open},
			{"high", b.High},
			{"low", b.Low},
			{"close", b.Close},
		} {
			if !f.v.IsPositive() {
				return errors.Wrapf(ErrInsufficientData, "%s: bar %s has non-positive %s %s",
					symbol, b.Day().Format(time.DateOnly), f.name, f.v.String())
			}
		}
		if b.Volume.IsNegative() {
			return errors.Wrapf(ErrInsufficientData, "%s: bar %s has negative volume %s",
				symbol, b.Day().Format(time.DateOnly), b.Volume.String())
		}
		if i > 0 && !b.Day().After(bars[i-1].Day()) {
			return errors.Wrap(ErrInsufficientData, fmt.Sprintf("%s: bars not strictly ascending at %s",
				symbol, b.Day().Format(time.DateOnly)))
		}
	}

	return nil
}
