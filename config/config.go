package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/trailgrid/internal/domain"
	"gopkg.in/yaml.v3"
)

// run modes
const (
	ModeSingle    = "single"
	ModePortfolio = "portfolio"
)

// market data sources
const (
	SourceCSV     = "csv"
	SourceBinance = "binance"
	SourceBybit   = "bybit"

	SourceHyperliquid = "hyperliquid"
)

const defaultDataDir = "./data"

type Config struct {
	Name    string
	Mode    string
	Symbols []string
	Source  string
	DataDir string
	From    time.Time
	To      time.Time
	Params  domain.StrategyParams
	Capital domain.CapitalParams
}

type ConfigTmp struct {
	Name    string   `yaml:"name"`
	Mode    string   `yaml:"mode,omitempty"`
	Symbols []string `yaml:"symbols"`
	Source  string   `yaml:"source,omitempty"`
	DataDir string   `yaml:"data_dir,omitempty"`
	From    string   `yaml:"from,omitempty"`
	To      string   `yaml:"to,omitempty"`

	LotSizeUsdStr                    string `yaml:"lot_size_usd,omitempty"`
	MaxLotsStr                       string `yaml:"max_lots,omitempty"`
	MaxLotsToSellStr                 string `yaml:"max_lots_to_sell,omitempty"`
	GridIntervalPercentStr           string `yaml:"grid_interval_percent,omitempty"`
	ProfitRequirementStr             string `yaml:"profit_requirement,omitempty"`
	TrailingBuyActivationPercentStr  string `yaml:"trailing_buy_activation_percent,omitempty"`
	TrailingBuyReboundPercentStr     string `yaml:"trailing_buy_rebound_percent,omitempty"`
	TrailingSellActivationPercentStr string `yaml:"trailing_sell_activation_percent,omitempty"`
	TrailingSellPullbackPercentStr   string `yaml:"trailing_sell_pullback_percent,omitempty"`

	EnableConsecutiveIncrementalBuyGrid    bool   `yaml:"enable_consecutive_incremental_buy_grid,omitempty"`
	GridConsecutiveIncrementStr            string `yaml:"grid_consecutive_increment,omitempty"`
	EnableConsecutiveIncrementalSellProfit bool   `yaml:"enable_consecutive_incremental_sell_profit,omitempty"`
	GridSequence                           string `yaml:"grid_sequence,omitempty"`
	GridSequenceEndStr                     string `yaml:"grid_sequence_end,omitempty"`

	TotalCapitalUsdStr string `yaml:"total_capital_usd,omitempty"`
	MarginPercentStr   string `yaml:"margin_percent,omitempty"`
}

// Load reads the list of runs from a yaml file.
func Load(path string) ([]Config, error) {
	f, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	return Parse(f)
}

// Parse decodes a yaml list of runs, applies defaults and validates each run.
func Parse(data []byte) ([]Config, error) {
	var configsTmp []ConfigTmp
	if err := yaml.Unmarshal(data, &configsTmp); err != nil {
		return nil, err
	}
	if len(configsTmp) == 0 {
		return nil, fmt.Errorf("yaml config has no runs")
	}

	configs := make([]Config, 0, len(configsTmp))
	names := make(map[string]bool, len(configsTmp))
	for i, c := range configsTmp {
		newConfig, err := c.toConfig()
		if err != nil {
			return nil, fmt.Errorf("run #%d: %w", i+1, err)
		}
		if newConfig.Name == "" {
			newConfig.Name = fmt.Sprintf("run-%d", i+1)
		}
		if names[newConfig.Name] {
			return nil, fmt.Errorf("run #%d: duplicate run name %q", i+1, newConfig.Name)
		}
		names[newConfig.Name] = true

		configs = append(configs, newConfig)
	}

	return configs, nil
}

func (c ConfigTmp) toConfig() (Config, error) {
	newConfig := Config{
		Name:    strings.TrimSpace(c.Name),
		Mode:    c.Mode,
		Source:  c.Source,
		DataDir: c.DataDir,
	}

	for _, s := range c.Symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" {
			return Config{}, fmt.Errorf("empty symbol in 'symbols'")
		}
		newConfig.Symbols = append(newConfig.Symbols, s)
	}
	if len(newConfig.Symbols) == 0 {
		return Config{}, fmt.Errorf("'symbols' must list at least one symbol")
	}

	if newConfig.Mode == "" {
		newConfig.Mode = ModeSingle
		if len(newConfig.Symbols) > 1 {
			newConfig.Mode = ModePortfolio
		}
	}
	switch newConfig.Mode {
	case ModeSingle:
		if len(newConfig.Symbols) != 1 {
			return Config{}, fmt.Errorf("single mode takes exactly one symbol, got %d", len(newConfig.Symbols))
		}
	case ModePortfolio:
	default:
		return Config{}, fmt.Errorf("incorrect 'mode' param in yaml config: %q (must be single or portfolio)", newConfig.Mode)
	}

	if newConfig.Source == "" {
		newConfig.Source = SourceCSV
	}
	switch newConfig.Source {
	case SourceCSV:
		if newConfig.DataDir == "" {
			newConfig.DataDir = defaultDataDir
		}
	case SourceBinance, SourceBybit, SourceHyperliquid:
	default:
		return Config{}, fmt.Errorf("incorrect 'source' param in yaml config: %q (must be csv, binance, bybit or hyperliquid)", newConfig.Source)
	}

	var err error
	if newConfig.From, err = parseDate("from", c.From); err != nil {
		return Config{}, err
	}
	if newConfig.To, err = parseDate("to", c.To); err != nil {
		return Config{}, err
	}
	if !newConfig.From.IsZero() && !newConfig.To.IsZero() && newConfig.To.Before(newConfig.From) {
		return Config{}, fmt.Errorf("'to' %s is before 'from' %s", c.To, c.From)
	}

	if newConfig.Params, err = c.params(); err != nil {
		return Config{}, err
	}
	if err := newConfig.Params.Validate(); err != nil {
		return Config{}, err
	}

	if newConfig.Mode == ModePortfolio {
		if c.TotalCapitalUsdStr == "" {
			return Config{}, fmt.Errorf("'total_capital_usd' is required in portfolio mode")
		}
		if newConfig.Capital.TotalCapitalUsd, err = parseDecimal("total_capital_usd", c.TotalCapitalUsdStr, "0"); err != nil {
			return Config{}, err
		}
		if newConfig.Capital.MarginPercent, err = parseDecimal("margin_percent", c.MarginPercentStr, "0"); err != nil {
			return Config{}, err
		}
		if err := newConfig.Capital.Validate(); err != nil {
			return Config{}, err
		}
	}

	return newConfig, nil
}

func (c ConfigTmp) params() (domain.StrategyParams, error) {
	p := domain.StrategyParams{
		EnableConsecutiveIncrementalBuyGrid:    c.EnableConsecutiveIncrementalBuyGrid,
		EnableConsecutiveIncrementalSellProfit: c.EnableConsecutiveIncrementalSellProfit,
		GridSequence:                           c.GridSequence,
	}
	if p.GridSequence == "" {
		p.GridSequence = domain.GridSequenceLinear
	}

	var err error
	if p.MaxLots, err = parseInt("max_lots", c.MaxLotsStr, 10); err != nil {
		return p, err
	}
	if p.MaxLotsToSell, err = parseInt("max_lots_to_sell", c.MaxLotsToSellStr, 1); err != nil {
		return p, err
	}

	decimals := []struct {
		name   string
		raw    string
		def    string
		target *decimal.Decimal
	}{
		{"lot_size_usd", c.LotSizeUsdStr, "10000", &p.LotSizeUsd},
		{"grid_interval_percent", c.GridIntervalPercentStr, "0.10", &p.GridIntervalPercent},
		{"profit_requirement", c.ProfitRequirementStr, "0.05", &p.ProfitRequirement},
		{"trailing_buy_activation_percent", c.TrailingBuyActivationPercentStr, "0.10", &p.TrailingBuyActivationPercent},
		{"trailing_buy_rebound_percent", c.TrailingBuyReboundPercentStr, "0.05", &p.TrailingBuyReboundPercent},
		{"trailing_sell_activation_percent", c.TrailingSellActivationPercentStr, "0.20", &p.TrailingSellActivationPercent},
		{"trailing_sell_pullback_percent", c.TrailingSellPullbackPercentStr, "0.10", &p.TrailingSellPullbackPercent},
		{"grid_consecutive_increment", c.GridConsecutiveIncrementStr, "0.05", &p.GridConsecutiveIncrement},
		{"grid_sequence_end", c.GridSequenceEndStr, "0", &p.GridSequenceEnd},
	}
	for _, d := range decimals {
		if *d.target, err = parseDecimal(d.name, d.raw, d.def); err != nil {
			return p, err
		}
	}

	return p, nil
}

func parseDecimal(name, raw, def string) (decimal.Decimal, error) {
	if raw == "" {
		raw = def
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("incorrect '%s' param in yaml config (must be a decimal), error: %w", name, err)
	}
	return v, nil
}

func parseInt(name, raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("incorrect '%s' param in yaml config (must be an integer), error: %w", name, err)
	}
	return v, nil
}

func parseDate(name, raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("incorrect '%s' param in yaml config (correct format is 2006-01-02), error: %w", name, err)
	}
	return t, nil
}
