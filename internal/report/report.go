// Package report renders finished runs for the terminal.
package report

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/trailgrid/internal/services/metrics"
)

var (
	subtle    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}
	danger    = lipgloss.AdaptiveColor{Light: "#D7263D", Dark: "#FF5F87"}

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Background(highlight).
			Padding(0, 2).
			Bold(true)

	labelStyle = lipgloss.NewStyle().Foreground(subtle).Width(22)
	gainStyle  = lipgloss.NewStyle().Foreground(special)
	lossStyle  = lipgloss.NewStyle().Foreground(danger)
	boxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(highlight).Padding(0, 1)
)

var hundred = decimal.NewFromInt(100)

// Run is what the report shows of one finished run.
type Run struct {
	Name      string
	Mode      string
	Symbols   []string
	Summary   metrics.Summary
	PerSymbol []metrics.SymbolSummary
	DayErrors int
}

// Render formats r as a boxed summary followed by the per-symbol table
// when the run covers more than one symbol.
func Render(r Run) string {
	s := r.Summary

	rows := [][2]string{
		{"Symbols", strings.Join(r.Symbols, ", ")},
		{"Trading days", strconv.Itoa(s.TradingDays)},
		{"Initial capital", money(s.InitialCapital)},
		{"Final value", money(s.FinalValue)},
		{"Total return", signed(percent(s.TotalReturn), s.TotalReturn)},
		{"Realized P&L", signed(money(s.RealizedPnL), s.RealizedPnL)},
		{"Max drawdown", percent(s.MaxDrawdown)},
		{"Win rate", percent(s.WinRate)},
		{"Capital utilization", percent(s.CapitalUtilization)},
		{"Sharpe ratio", s.SharpeRatio.StringFixed(2)},
		{"Buys / sells", fmt.Sprintf("%d / %d", s.TotalBuys, s.TotalSells)},
		{"Rejected buys / sells", fmt.Sprintf("%d / %d", s.RejectedBuys, s.RejectedSells)},
		{"Avg buy / sell price", s.AvgBuyPrice.StringFixed(2) + " / " + s.AvgSellPrice.StringFixed(2)},
		{"DCA suitability", s.DCASuitabilityScore.StringFixed(2) + " / 100"},
	}
	if r.DayErrors > 0 {
		rows = append(rows, [2]string{"Day errors", lossStyle.Render(strconv.Itoa(r.DayErrors))})
	}

	lines := make([]string, 0, len(rows))
	for _, row := range rows {
		lines = append(lines, labelStyle.Render(row[0])+row[1])
	}

	blocks := []string{
		titleStyle.Render(fmt.Sprintf("%s (%s)", r.Name, r.Mode)),
		boxStyle.Render(strings.Join(lines, "\n")),
	}
	if len(r.PerSymbol) > 1 {
		blocks = append(blocks, SymbolTable(r.PerSymbol))
	}

	return lipgloss.JoinVertical(lipgloss.Left, blocks...)
}

// SymbolTable renders the per-symbol breakdown.
func SymbolTable(symbols []metrics.SymbolSummary) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(highlight)).
		Headers("SYMBOL", "BUYS", "SELLS", "REJECTED", "REALIZED", "OPEN LOTS", "MARKET VALUE", "UNREALIZED")

	for _, s := range symbols {
		t.Row(
			s.Symbol,
			strconv.Itoa(s.Buys),
			strconv.Itoa(s.Sells),
			strconv.Itoa(s.Rejections),
			money(s.RealizedPnL),
			strconv.Itoa(s.OpenLots),
			money(s.MarketValue),
			money(s.UnrealizedPnL),
		)
	}

	return t.Render()
}

func money(v decimal.Decimal) string {
	return v.StringFixed(2)
}

func percent(fraction decimal.Decimal) string {
	return fraction.Mul(hundred).StringFixed(2) + "%"
}

func signed(text string, v decimal.Decimal) string {
	switch {
	case v.IsPositive():
		return gainStyle.Render("+" + text)
	case v.IsNegative():
		return lossStyle.Render(text)
	default:
		return text
	}
}
