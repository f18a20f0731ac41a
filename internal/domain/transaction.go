package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType classifies an entry of the transaction log.
type TransactionType string

const (
	TransactionBuy          TransactionType = "BUY"
	TransactionSell         TransactionType = "SELL"
	TransactionRejectedBuy  TransactionType = "REJECTED_BUY"
	TransactionRejectedSell TransactionType = "REJECTED_SELL"
)

// rejection reasons
const (
	ReasonGridSpacing      = "grid_spacing_violated"
	ReasonMarginExceeded   = "margin_exceeded"
	ReasonInsufficientCash = "insufficient_cash"
	ReasonMaxLots          = "max_lots_reached"
	ReasonProfitUnmet      = "profit_requirement_unmet"
	ReasonBelowLimit       = "below_limit_price"
)

// Transaction is an immutable entry of the output log.
type Transaction struct {
	Date        time.Time        `json:"date"`
	Symbol      string           `json:"symbol"`
	Type        TransactionType  `json:"type"`
	Price       decimal.Decimal  `json:"price"`
	Quantity    decimal.Decimal  `json:"quantity"`
	RealizedPnL *decimal.Decimal `json:"realized_pnl,omitempty"`
	// Threshold is the rebound (BUY) or pullback (SELL) the executed order used.
	Threshold *decimal.Decimal `json:"threshold,omitempty"`
	// GridInterval is the spacing a BUY was checked against.
	GridInterval *decimal.Decimal `json:"grid_interval,omitempty"`
	Reason       string           `json:"reason,omitempty"`
	Detail       string           `json:"detail,omitempty"`
	LotIDs       []int            `json:"lot_ids,omitempty"`
}

// IsRejection reports whether the entry records a refused order.
func (t Transaction) IsRejection() bool {
	return t.Type == TransactionRejectedBuy || t.Type == TransactionRejectedSell
}

// String returns a human-readable representation.
func (t Transaction) String() string {
	return fmt.Sprintf("%s %s %s qty: %s price: %s", t.Date.Format(time.DateOnly), t.Symbol, t.Type, t.Quantity.String(), t.Price.String())
}

// OrderEvent records one state transition of a trailing order.
type OrderEvent struct {
	Date   time.Time       `json:"date"`
	Symbol string          `json:"symbol"`
	Side   Side            `json:"side"`
	From   OrderState      `json:"from"`
	To     OrderState      `json:"to"`
	Price  decimal.Decimal `json:"price"`
	Stop   decimal.Decimal `json:"stop"`
	Reason string          `json:"reason,omitempty"`
}

// QuestionableEvent flags a day where one symbol both sold and bought.
type QuestionableEvent struct {
	Date      time.Time       `json:"date"`
	Symbol    string          `json:"symbol"`
	SellPrice decimal.Decimal `json:"sell_price"`
	BuyPrice  decimal.Decimal `json:"buy_price"`
}

// DayError is a fault that was contained to one day and symbol.
type DayError struct {
	Date   time.Time `json:"date"`
	Symbol string    `json:"symbol"`
	Phase  string    `json:"phase"`
	Error  string    `json:"error"`
}

// ValuePoint is the end-of-day portfolio valuation.
type ValuePoint struct {
	Date        time.Time       `json:"date"`
	Value       decimal.Decimal `json:"value"`
	Cash        decimal.Decimal `json:"cash"`
	Deployed    decimal.Decimal `json:"deployed"`
	MarketValue decimal.Decimal `json:"market_value"`
}
