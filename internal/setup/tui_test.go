package setup

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/trailgrid/config"
)

func TestDefaultAnswers_ProduceValidConfig(t *testing.T) {
	cfgTmp, err := DefaultAnswers().ToConfig()
	require.NoError(t, err)

	assert.Equal(t, config.ModeSingle, cfgTmp.Mode)
	assert.Equal(t, []string{"BTCUSDT"}, cfgTmp.Symbols)
	assert.Equal(t, "./data", cfgTmp.DataDir)
	assert.Empty(t, cfgTmp.GridSequence)
	assert.Empty(t, cfgTmp.TotalCapitalUsdStr)
}

func TestToConfig_Portfolio(t *testing.T) {
	a := DefaultAnswers()
	a.Symbols = "btcusdt, ethusdt"
	a.Source = config.SourceBinance
	a.TotalCapitalUsd = "50000"
	a.MarginPercent = "20"
	a.AdaptiveBuy = true
	a.GridSequence = "quadratic"

	cfgTmp, err := a.ToConfig()
	require.NoError(t, err)
	assert.Equal(t, config.ModePortfolio, cfgTmp.Mode)
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, cfgTmp.Symbols)
	assert.Empty(t, cfgTmp.DataDir)
	assert.Equal(t, "quadratic", cfgTmp.GridSequence)
	assert.Equal(t, "0.05", cfgTmp.GridConsecutiveIncrementStr)
	assert.Equal(t, "50000", cfgTmp.TotalCapitalUsdStr)
}

func TestToConfig_Invalid(t *testing.T) {
	a := DefaultAnswers()
	a.Symbols = "BTCUSDT,ETHUSDT"
	_, err := a.ToConfig()
	assert.ErrorContains(t, err, "total_capital_usd")

	a = DefaultAnswers()
	a.MaxLotsToSell = "20"
	_, err = a.ToConfig()
	assert.Error(t, err)
}

func TestWriteConfig_LoadsBack(t *testing.T) {
	a := DefaultAnswers()
	a.Name = "eth"
	a.Symbols = "ETHUSDT"
	a.From = "2024-01-01"
	cfgTmp, err := a.ToConfig()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), DefaultPath)
	require.NoError(t, WriteConfig(path, []config.ConfigTmp{cfgTmp}))

	configs, err := config.Load(path)
	require.NoError(t, err)
	require.Len(t, configs, 1)
	assert.Equal(t, "eth", configs[0].Name)
	assert.Equal(t, 2024, configs[0].From.Year())
	assert.Equal(t, 10, configs[0].Params.MaxLots)
}

func TestValidators(t *testing.T) {
	assert.NoError(t, validateDate(""))
	assert.Error(t, validateDate("2024/01/01"))
	assert.NoError(t, validateFraction("0"))
	assert.Error(t, validateFraction("1.01"))
	assert.Error(t, validatePositive("0"))
	assert.NoError(t, validateCount("3"))
	assert.Error(t, validateCount("0"))
	assert.Error(t, notEmpty("name")(" "))
}
