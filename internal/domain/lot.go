package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Lot is one fixed-notional purchase. Quantity is derived once at creation.
type Lot struct {
	ID           int             `json:"id"`
	Symbol       string          `json:"symbol"`
	EntryDate    time.Time       `json:"entry_date"`
	EntryPrice   decimal.Decimal `json:"entry_price"`
	Quantity     decimal.Decimal `json:"quantity"`
	CostBasisUsd decimal.Decimal `json:"cost_basis_usd"`
	// GridInterval is the spacing that was enforced when the lot was opened.
	GridInterval decimal.Decimal `json:"grid_interval"`
}

// NewLot creates a validated lot.
func NewLot(id int, symbol string, date time.Time, price, costBasis, gridInterval decimal.Decimal) (Lot, error) {
	if !price.IsPositive() {
		return Lot{}, fmt.Errorf("price must be positive, got %s", price.String())
	}
	if !costBasis.IsPositive() {
		return Lot{}, fmt.Errorf("cost basis must be positive, got %s", costBasis.String())
	}

	return Lot{
		ID:           id,
		Symbol:       symbol,
		EntryDate:    date,
		EntryPrice:   price,
		Quantity:     costBasis.Div(price),
		CostBasisUsd: costBasis,
		GridInterval: gridInterval,
	}, nil
}

// MarketValue values the lot at price.
func (l Lot) MarketValue(price decimal.Decimal) decimal.Decimal {
	return l.Quantity.Mul(price)
}

// PnL returns the gain of selling the lot at price.
func (l Lot) PnL(price decimal.Decimal) decimal.Decimal {
	return price.Sub(l.EntryPrice).Mul(l.Quantity)
}

// MeetsProfit reports whether price clears entry × (1 + requirement).
func (l Lot) MeetsProfit(price, requirement decimal.Decimal) bool {
	return price.GreaterThanOrEqual(Above(l.EntryPrice, requirement))
}

// AvgCost returns the quantity-weighted average entry price of lots.
func AvgCost(lots []Lot) decimal.Decimal {
	totalQty := decimal.Zero
	totalCost := decimal.Zero
	for _, l := range lots {
		totalQty = totalQty.Add(l.Quantity)
		totalCost = totalCost.Add(l.EntryPrice.Mul(l.Quantity))
	}
	if totalQty.IsZero() {
		return decimal.Zero
	}

	return totalCost.Div(totalQty)
}

// LotIDs lists the ids of lots in order.
func LotIDs(lots []Lot) []int {
	ids := make([]int, 0, len(lots))
	for _, l := range lots {
		ids = append(ids, l.ID)
	}
	return ids
}
