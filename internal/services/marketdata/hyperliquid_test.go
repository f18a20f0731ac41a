package marketdata

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHyperliquidCoin(t *testing.T) {
	tests := map[string]string{
		"BTCUSDT":  "BTC",
		"ethusdc":  "ETH",
		" SOLUSD ": "SOL",
		"HYPE":     "HYPE",
		"USDT":     "USDT",
	}
	for symbol, want := range tests {
		assert.Equal(t, want, hyperliquidCoin(symbol), symbol)
	}
}

func TestHyperliquidCandleToBar(t *testing.T) {
	bar, err := hyperliquidCandleToBar(1704067200000, "1", "2", "0.5", "1.5", "42")
	require.NoError(t, err)
	assert.Equal(t, klineDay0, bar.Date)
	assert.Equal(t, "1.5", bar.Close.String())
	assert.Equal(t, "42", bar.Volume.String())

	_, err = hyperliquidCandleToBar(1704067200000, "1", "2", "x", "1.5", "42")
	assert.ErrorContains(t, err, "low")
}

func TestWellFormed(t *testing.T) {
	assert.True(t, wellFormed(assert.AnError))
	assert.False(t, wellFormed(context.DeadlineExceeded))
	assert.False(t, wellFormed(errors.Wrap(malformedError{assert.AnError}, "page")))
}

func TestNewHyperliquidInfo_BadKey(t *testing.T) {
	_, err := NewHyperliquidInfo(context.Background(), HyperliquidMainnetURL, "0xnothex")
	assert.ErrorContains(t, err, "hyperliquid key")
}
