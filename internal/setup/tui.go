package setup

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/trailgrid/config"
	"gopkg.in/yaml.v3"
)

// DefaultPath is where the wizard writes the generated config.
const DefaultPath = "config.gen.yaml"

var (
	subtle    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Background(highlight).
			Padding(1, 2).
			Bold(true).
			MarginBottom(1)

	stepStyle = lipgloss.NewStyle().
			Foreground(special).
			Bold(true).
			MarginTop(1).
			MarginBottom(0)
)

// Answers holds the raw wizard input.
type Answers struct {
	Name    string
	Symbols string
	Source  string
	DataDir string
	From    string
	To      string

	LotSizeUsd                    string
	MaxLots                       string
	MaxLotsToSell                 string
	GridIntervalPercent           string
	ProfitRequirement             string
	TrailingBuyActivationPercent  string
	TrailingBuyReboundPercent     string
	TrailingSellActivationPercent string
	TrailingSellPullbackPercent   string

	AdaptiveBuy     bool
	AdaptiveSell    bool
	GridSequence    string
	GridIncrement   string
	TotalCapitalUsd string
	MarginPercent   string
}

// DefaultAnswers pre-fills the wizard with the strategy defaults.
func DefaultAnswers() Answers {
	return Answers{
		Name:                          "backtest",
		Symbols:                       "BTCUSDT",
		Source:                        config.SourceCSV,
		DataDir:                       "./data",
		LotSizeUsd:                    "10000",
		MaxLots:                       "10",
		MaxLotsToSell:                 "1",
		GridIntervalPercent:           "0.10",
		ProfitRequirement:             "0.05",
		TrailingBuyActivationPercent:  "0.10",
		TrailingBuyReboundPercent:     "0.05",
		TrailingSellActivationPercent: "0.20",
		TrailingSellPullbackPercent:   "0.10",
		GridSequence:                  "linear",
		GridIncrement:                 "0.05",
		MarginPercent:                 "0",
	}
}

// ToConfig converts the answers into a yaml config entry and checks that it parses.
func (a Answers) ToConfig() (config.ConfigTmp, error) {
	var symbols []string
	for _, s := range strings.FieldsFunc(a.Symbols, func(r rune) bool { return r == ',' || r == ' ' }) {
		symbols = append(symbols, strings.ToUpper(s))
	}

	cfgTmp := config.ConfigTmp{
		Name:                                   a.Name,
		Symbols:                                symbols,
		Source:                                 a.Source,
		From:                                   a.From,
		To:                                     a.To,
		LotSizeUsdStr:                          a.LotSizeUsd,
		MaxLotsStr:                             a.MaxLots,
		MaxLotsToSellStr:                       a.MaxLotsToSell,
		GridIntervalPercentStr:                 a.GridIntervalPercent,
		ProfitRequirementStr:                   a.ProfitRequirement,
		TrailingBuyActivationPercentStr:        a.TrailingBuyActivationPercent,
		TrailingBuyReboundPercentStr:           a.TrailingBuyReboundPercent,
		TrailingSellActivationPercentStr:       a.TrailingSellActivationPercent,
		TrailingSellPullbackPercentStr:         a.TrailingSellPullbackPercent,
		EnableConsecutiveIncrementalBuyGrid:    a.AdaptiveBuy,
		EnableConsecutiveIncrementalSellProfit: a.AdaptiveSell,
	}
	if a.Source == config.SourceCSV {
		cfgTmp.DataDir = a.DataDir
	}
	if a.AdaptiveBuy {
		cfgTmp.GridSequence = a.GridSequence
		cfgTmp.GridConsecutiveIncrementStr = a.GridIncrement
	}

	cfgTmp.Mode = config.ModeSingle
	if len(symbols) > 1 {
		cfgTmp.Mode = config.ModePortfolio
		cfgTmp.TotalCapitalUsdStr = a.TotalCapitalUsd
		cfgTmp.MarginPercentStr = a.MarginPercent
	}

	data, err := yaml.Marshal([]config.ConfigTmp{cfgTmp})
	if err != nil {
		return config.ConfigTmp{}, fmt.Errorf("failed to generate yaml: %w", err)
	}
	if _, err := config.Parse(data); err != nil {
		return config.ConfigTmp{}, err
	}

	return cfgTmp, nil
}

// WriteConfig stores the entries as a yaml run list at path.
func WriteConfig(path string, configs []config.ConfigTmp) error {
	data, err := yaml.Marshal(configs)
	if err != nil {
		return fmt.Errorf("failed to generate yaml: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to save config file: %w", err)
	}
	return nil
}

// RunTUI launches the terminal configuration wizard and writes the result to path.
func RunTUI(path string) error {
	a := DefaultAnswers()
	var confirm bool

	// step 1: welcome
	screen("STEP 1: RUN")
	fmt.Println(lipgloss.NewStyle().Foreground(subtle).Render("Let's set up a grid trailing-stop backtest.\n"))
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Run name").
				Value(&a.Name).
				Validate(notEmpty("name")),
			huh.NewInput().
				Title("Symbols").
				Description("One symbol runs alone, several share a capital pool (e.g. BTCUSDT,ETHUSDT)").
				Value(&a.Symbols).
				Validate(notEmpty("symbols")),
		),
	).Run()
	if err != nil {
		return err
	}

	// data source
	screen("STEP 2: DATA")
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Where do the daily bars come from?").
				Options(
					huh.NewOption("CSV files (<dir>/<SYMBOL>.csv)", config.SourceCSV),
					huh.NewOption("Binance daily klines", config.SourceBinance),
					huh.NewOption("Bybit daily klines", config.SourceBybit),
					huh.NewOption("Hyperliquid daily candles", config.SourceHyperliquid),
				).
				Value(&a.Source),
			huh.NewInput().
				Title("From").
				Description("First day, 2006-01-02 (empty for all history)").
				Value(&a.From).
				Validate(validateDate),
			huh.NewInput().
				Title("To").
				Description("Last day, 2006-01-02 (empty for all history)").
				Value(&a.To).
				Validate(validateDate),
		),
	).Run()
	if err != nil {
		return err
	}
	if a.Source == config.SourceCSV {
		err = huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("CSV directory").
					Value(&a.DataDir).
					Validate(notEmpty("directory")),
			),
		).Run()
		if err != nil {
			return err
		}
	}

	// grid
	screen("STEP 3: GRID")
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Lot size, USD").Value(&a.LotSizeUsd).Validate(validatePositive),
			huh.NewInput().Title("Max lots").Value(&a.MaxLots).Validate(validateCount),
			huh.NewInput().Title("Max lots per sell").Value(&a.MaxLotsToSell).Validate(validateCount),
			huh.NewInput().
				Title("Grid interval").
				Description("Minimum distance between lots as a fraction (e.g. 0.10)").
				Value(&a.GridIntervalPercent).
				Validate(validateFraction),
			huh.NewInput().
				Title("Profit requirement").
				Description("Minimum gain over a lot's cost before selling it (e.g. 0.05)").
				Value(&a.ProfitRequirement).
				Validate(validateFraction),
		),
	).Run()
	if err != nil {
		return err
	}

	// trailing stops
	screen("STEP 4: TRAILING STOPS")
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Buy activation drop").Value(&a.TrailingBuyActivationPercent).Validate(validateFraction),
			huh.NewInput().Title("Buy rebound").Value(&a.TrailingBuyReboundPercent).Validate(validateFraction),
			huh.NewInput().Title("Sell activation rise").Value(&a.TrailingSellActivationPercent).Validate(validateFraction),
			huh.NewInput().Title("Sell pullback").Value(&a.TrailingSellPullbackPercent).Validate(validateFraction),
			huh.NewConfirm().Title("Adaptive consecutive buys?").Value(&a.AdaptiveBuy),
			huh.NewConfirm().Title("Adaptive consecutive sells?").Value(&a.AdaptiveSell),
		),
	).Run()
	if err != nil {
		return err
	}
	if a.AdaptiveBuy {
		err = huh.NewForm(
			huh.NewGroup(
				huh.NewSelect[string]().
					Title("Grid growth for consecutive buys").
					Options(
						huh.NewOption("Linear", "linear"),
						huh.NewOption("Quadratic", "quadratic"),
					).
					Value(&a.GridSequence),
				huh.NewInput().Title("Grid increment").Value(&a.GridIncrement).Validate(validateFraction),
			),
		).Run()
		if err != nil {
			return err
		}
	}

	// shared capital
	if strings.ContainsAny(strings.TrimSpace(a.Symbols), ", ") {
		screen("STEP 5: CAPITAL POOL")
		err = huh.NewForm(
			huh.NewGroup(
				huh.NewInput().Title("Total capital, USD").Value(&a.TotalCapitalUsd).Validate(validatePositive),
				huh.NewInput().
					Title("Margin %").
					Description("Whole percentage 0-100").
					Value(&a.MarginPercent),
			),
		).Run()
		if err != nil {
			return err
		}
	}

	cfgTmp, err := a.ToConfig()
	if err != nil {
		return err
	}

	// confirmation
	screen("FINAL CONFIRMATION")
	summary := fmt.Sprintf(
		"Name: %s\nMode: %s\nSymbols: %s\nSource: %s\nLot: %s USD x %s\n",
		cfgTmp.Name, cfgTmp.Mode, strings.Join(cfgTmp.Symbols, ", "), cfgTmp.Source, cfgTmp.LotSizeUsdStr, cfgTmp.MaxLotsStr,
	)
	fmt.Println(lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(1).Render(summary))

	err = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Save Configuration?").
				Affirmative("Yes, save").
				Negative("No, exit").
				Value(&confirm),
		),
	).Run()
	if err != nil {
		return err
	}

	if !confirm {
		return fmt.Errorf("setup cancelled by user")
	}

	if err := WriteConfig(path, []config.ConfigTmp{cfgTmp}); err != nil {
		return err
	}

	fmt.Println(lipgloss.NewStyle().Foreground(special).Render(fmt.Sprintf("\n✓ Configuration saved to %s\nRun: trailgrid -config %s", path, path)))
	time.Sleep(500 * time.Millisecond)
	return nil
}

func screen(step string) {
	fmt.Print("\033[H\033[2J") // Clear screen
	fmt.Println(headerStyle.Render("TRAILGRID CONFIG WIZARD"))
	fmt.Println(stepStyle.Render(step))
}

func notEmpty(field string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s cannot be empty", field)
		}
		return nil
	}
}

func validateDate(s string) error {
	if s == "" {
		return nil
	}
	if _, err := time.Parse(time.DateOnly, s); err != nil {
		return fmt.Errorf("must look like 2006-01-02")
	}
	return nil
}

func validatePositive(s string) error {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("must be a valid number")
	}
	if !d.IsPositive() {
		return fmt.Errorf("must be positive")
	}
	return nil
}

func validateFraction(s string) error {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("must be a valid number")
	}
	if d.IsNegative() || d.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("must be between 0 and 1")
	}
	return nil
}

func validateCount(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return fmt.Errorf("must be a whole number >= 1")
	}
	return nil
}
