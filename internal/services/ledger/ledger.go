// Package ledger owns the open lots of one symbol.
package ledger

import (
	"fmt"
	"sort"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/trailgrid/internal/domain"
)

// Ledger holds the open lots of a single symbol.
type Ledger struct {
	symbol string
	lots   []domain.Lot
	nextID int
}

// New returns an empty ledger for symbol.
func New(symbol string) *Ledger {
	return &Ledger{symbol: symbol, nextID: 1}
}

// Len returns the number of open lots.
func (l *Ledger) Len() int {
	return len(l.lots)
}

// Lots returns a copy of the open lots in creation order.
func (l *Ledger) Lots() []domain.Lot {
	out := make([]domain.Lot, len(l.lots))
	copy(out, l.lots)
	return out
}

// Spacing is the outcome of a grid spacing check.
type Spacing struct {
	OK bool
	// Nearest is the open lot closest to the candidate price.
	Nearest  domain.Lot
	Distance decimal.Decimal
}

// Detail renders a rejection message for a failed check.
func (s Spacing) Detail(price, interval decimal.Decimal) string {
	return fmt.Sprintf("|%s - %s| / %s = %s < %s",
		price.String(), s.Nearest.EntryPrice.String(), s.Nearest.EntryPrice.String(),
		s.Distance.StringFixed(4), interval.String())
}

// CheckSpacing verifies |price - lot| / lot >= interval against every open lot.
func (l *Ledger) CheckSpacing(price, interval decimal.Decimal) Spacing {
	result := Spacing{OK: true}
	first := true

	for _, lot := range l.lots {
		dist := price.Sub(lot.EntryPrice).Abs().Div(lot.EntryPrice)
		if first || dist.LessThan(result.Distance) {
			result.Nearest = lot
			result.Distance = dist
			first = false
		}
		if dist.LessThan(interval) {
			result.OK = false
		}
	}

	return result
}

// Open records a new lot bought at price for costBasis dollars.
func (l *Ledger) Open(date time.Time, price, costBasis, interval decimal.Decimal) (domain.Lot, error) {
	lot, err := domain.NewLot(l.nextID, l.symbol, date, price, costBasis, interval)
	if err != nil {
		return domain.Lot{}, errors.Wrapf(err, "open lot for %s", l.symbol)
	}

	l.nextID++
	l.lots = append(l.lots, lot)

	return lot, nil
}

// Eligible returns the lots that may be sold at price, highest cost first.
// With skipProfit every open lot is eligible.
func (l *Ledger) Eligible(price, profitRequirement decimal.Decimal, skipProfit bool) []domain.Lot {
	out := make([]domain.Lot, 0, len(l.lots))
	for _, lot := range l.lots {
		if skipProfit || lot.MeetsProfit(price, profitRequirement) {
			out = append(out, lot)
		}
	}

	sortHighestCost(out)

	return out
}

// SelectTargets picks up to max eligible lots, highest cost first.
func (l *Ledger) SelectTargets(price, profitRequirement decimal.Decimal, skipProfit bool, max int) []domain.Lot {
	eligible := l.Eligible(price, profitRequirement, skipProfit)
	if len(eligible) > max {
		eligible = eligible[:max]
	}
	return eligible
}

// Get returns the open lots with the given ids, in the order requested.
// Ids that are no longer open are skipped.
func (l *Ledger) Get(ids []int) []domain.Lot {
	out := make([]domain.Lot, 0, len(ids))
	for _, id := range ids {
		for _, lot := range l.lots {
			if lot.ID == id {
				out = append(out, lot)
				break
			}
		}
	}
	return out
}

// Close removes whole lots by id and returns them. Nothing is removed
// unless every id is open.
func (l *Ledger) Close(ids []int) ([]domain.Lot, error) {
	open := l.Get(ids)
	if len(open) != len(ids) {
		return nil, errors.Errorf("close lots for %s: %d of %d ids are not open", l.symbol, len(ids)-len(open), len(ids))
	}

	closing := make(map[int]bool, len(ids))
	for _, id := range ids {
		closing[id] = true
	}

	kept := make([]domain.Lot, 0, len(l.lots)-len(open))
	for _, lot := range l.lots {
		if !closing[lot.ID] {
			kept = append(kept, lot)
		}
	}
	l.lots = kept

	return open, nil
}

// MarketValue values all open lots at price.
func (l *Ledger) MarketValue(price decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, lot := range l.lots {
		total = total.Add(lot.MarketValue(price))
	}
	return total
}

// CostBasis sums the cost of all open lots.
func (l *Ledger) CostBasis() decimal.Decimal {
	total := decimal.Zero
	for _, lot := range l.lots {
		total = total.Add(lot.CostBasisUsd)
	}
	return total
}

// sortHighestCost orders lots by entry price descending, then entry date, then id.
func sortHighestCost(lots []domain.Lot) {
	sort.SliceStable(lots, func(i, j int) bool {
		a, b := lots[i], lots[j]
		if !a.EntryPrice.Equal(b.EntryPrice) {
			return a.EntryPrice.GreaterThan(b.EntryPrice)
		}
		if !a.EntryDate.Equal(b.EntryDate) {
			return a.EntryDate.Before(b.EntryDate)
		}
		return a.ID < b.ID
	})
}
