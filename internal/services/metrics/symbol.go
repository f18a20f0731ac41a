package metrics

import (
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/trailgrid/internal/domain"
)

// SymbolSummary is the per-symbol breakdown of a portfolio run.
type SymbolSummary struct {
	Symbol      string          `json:"symbol"`
	Buys        int             `json:"buys"`
	Sells       int             `json:"sells"`
	Rejections  int             `json:"rejections"`
	RealizedPnL decimal.Decimal `json:"realized_pnl"`
	OpenLots    int             `json:"open_lots"`
	CostBasis   decimal.Decimal `json:"cost_basis"`
	MarketValue decimal.Decimal `json:"market_value"`
	// UnrealizedPnL is MarketValue − CostBasis of the open lots.
	UnrealizedPnL decimal.Decimal `json:"unrealized_pnl"`
}

// SummarizeSymbol reduces the part of a run that belongs to symbol.
func SummarizeSymbol(symbol string, txs []domain.Transaction, open []domain.Lot, lastClose decimal.Decimal) SymbolSummary {
	s := SymbolSummary{Symbol: symbol}

	for _, tx := range txs {
		if tx.Symbol != symbol {
			continue
		}
		switch {
		case tx.Type == domain.TransactionBuy:
			s.Buys++
		case tx.Type == domain.TransactionSell:
			s.Sells++
			if tx.RealizedPnL != nil {
				s.RealizedPnL = s.RealizedPnL.Add(*tx.RealizedPnL)
			}
		case tx.IsRejection():
			s.Rejections++
		}
	}

	for _, lot := range open {
		if lot.Symbol != symbol {
			continue
		}
		s.OpenLots++
		s.CostBasis = s.CostBasis.Add(lot.CostBasisUsd)
		s.MarketValue = s.MarketValue.Add(lot.MarketValue(lastClose))
	}
	s.UnrealizedPnL = s.MarketValue.Sub(s.CostBasis)

	return s
}
