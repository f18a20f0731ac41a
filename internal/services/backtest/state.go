package backtest

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/trailgrid/internal/domain"
	"github.com/vadiminshakov/trailgrid/internal/services/ledger"
	"github.com/vadiminshakov/trailgrid/internal/services/sequence"
)

// symbolState is everything the engine keeps per symbol between days.
type symbolState struct {
	symbol string
	bars   []domain.Bar
	cursor int

	ledger *ledger.Ledger
	grid   sequence.Generator

	buy          domain.TrailingBuyOrder
	sell         domain.TrailingSellOrder
	buyAdaptive  domain.AdaptiveState
	sellAdaptive domain.AdaptiveState

	// peak and bottom are the extreme closes since the last trade.
	peak      decimal.Decimal
	bottom    decimal.Decimal
	lastClose decimal.Decimal
	priced    bool

	today       domain.Bar
	soldToday   bool
	soldAt      decimal.Decimal
	boughtToday bool
	boughtAt    decimal.Decimal
}

func newSymbolState(series SymbolBars, grid sequence.Generator) *symbolState {
	return &symbolState{
		symbol: series.Symbol,
		bars:   series.Bars,
		ledger: ledger.New(series.Symbol),
		grid:   grid,
	}
}

// advance moves to day and reports whether the symbol has a bar for it.
// Trackers are updated with the close before any machine runs.
func (s *symbolState) advance(day time.Time) bool {
	s.soldToday, s.boughtToday = false, false
	if s.cursor >= len(s.bars) || !s.bars[s.cursor].Day().Equal(day) {
		return false
	}

	s.today = s.bars[s.cursor]
	s.cursor++

	price := s.today.ClosePrice()
	s.lastClose = price
	if !s.priced {
		s.peak, s.bottom = price, price
		s.priced = true
		return true
	}
	s.peak = decimal.Max(s.peak, price)
	s.bottom = decimal.Min(s.bottom, price)

	return true
}

// traded resets the extreme trackers to the trade price.
func (s *symbolState) traded(price decimal.Decimal) {
	s.peak, s.bottom = price, price
}

// gridInterval is the spacing the next lot must keep from every open lot.
func (s *symbolState) gridInterval(p domain.StrategyParams) decimal.Decimal {
	if !p.EnableConsecutiveIncrementalBuyGrid {
		return p.GridIntervalPercent
	}
	return s.grid.Interval(s.buyAdaptive.ConsecutiveCount)
}

func gridGenerator(p domain.StrategyParams) (sequence.Generator, error) {
	if p.GridSequence != domain.GridSequenceQuadratic {
		return sequence.Linear{Start: p.GridIntervalPercent, Step: p.GridConsecutiveIncrement}, nil
	}

	end := p.GridSequenceEnd
	if end.IsZero() {
		end = p.GridIntervalPercent.Mul(decimal.NewFromInt(3))
	}

	return sequence.NewQuadratic(max(p.MaxLots, 3), p.GridIntervalPercent, p.GridConsecutiveIncrement, end)
}

// calendar is the sorted union of all bar days.
func calendar(states []*symbolState) []time.Time {
	seen := make(map[time.Time]struct{})
	var days []time.Time
	for _, s := range states {
		for _, b := range s.bars {
			day := b.Day()
			if _, ok := seen[day]; ok {
				continue
			}
			seen[day] = struct{}{}
			days = append(days, day)
		}
	}

	slices.SortFunc(days, func(a, b time.Time) int { return a.Compare(b) })

	return days
}
