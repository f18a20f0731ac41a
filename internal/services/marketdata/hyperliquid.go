package marketdata

import (
	"context"
	"crypto/ecdsa"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	hyperliquid "github.com/sonirico/go-hyperliquid"
	"github.com/vadiminshakov/trailgrid/internal/domain"
	"github.com/vadiminshakov/trailgrid/pkg/retrier"
	"go.uber.org/zap"
)

const (
	HyperliquidMainnetURL = "https://api.hyperliquid.xyz"

	hyperliquidDailyInterval = "1d"
	hyperliquidPageSize      = 5000
)

// NewHyperliquidInfo builds a read-only info client on baseURL. Market data
// needs no account, so a throwaway key is generated when privateKeyHex is empty.
func NewHyperliquidInfo(ctx context.Context, baseURL, privateKeyHex string) (*hyperliquid.Info, error) {
	var (
		privateKey *ecdsa.PrivateKey
		err        error
	)
	if privateKeyHex == "" {
		privateKey, err = crypto.GenerateKey()
	} else {
		privateKey, err = crypto.HexToECDSA(strings.TrimPrefix(strings.TrimPrefix(privateKeyHex, "0x"), "0X"))
	}
	if err != nil {
		return nil, errors.Wrap(err, "hyperliquid key")
	}

	accountAddr := crypto.PubkeyToAddress(privateKey.PublicKey).Hex()
	ex := hyperliquid.NewExchange(ctx, privateKey, baseURL, nil, "", accountAddr, nil)

	return ex.Info(), nil
}

// HyperliquidSource downloads daily candles from Hyperliquid. Symbols are
// given in exchange pair form (BTCUSDT) and mapped to the coin name (BTC).
type HyperliquidSource struct {
	info *hyperliquid.Info
	paging
}

// NewHyperliquidSource creates a candle source on info.
func NewHyperliquidSource(info *hyperliquid.Info, l *zap.Logger, opts ...Option) *HyperliquidSource {
	return &HyperliquidSource{
		info:   info,
		paging: newPaging(l, hyperliquidPageSize, wellFormed, opts),
	}
}

// Bars implements Source. Pages walk forward from from; an unbounded from
// starts one page before to.
func (s *HyperliquidSource) Bars(ctx context.Context, symbol string, from, to time.Time) ([]domain.Bar, error) {
	coin := hyperliquidCoin(symbol)
	if to.IsZero() {
		to = time.Now().UTC()
	}
	start := from
	if start.IsZero() {
		start = domain.DayOf(to).AddDate(0, 0, -s.pageSize+1)
	}

	var (
		bars    []domain.Bar
		startMs = start.UnixMilli()
		endMs   = to.UnixMilli()
	)
	for startMs <= endMs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page, err := retrier.DoWithData(s.retrier, ctx, func(ctx context.Context) ([]domain.Bar, error) {
			candles, err := s.info.CandlesSnapshot(ctx, coin, hyperliquidDailyInterval, startMs, endMs)
			if err != nil {
				return nil, err
			}
			out := make([]domain.Bar, 0, len(candles))
			for i, c := range candles {
				bar, err := hyperliquidCandleToBar(c.TimeOpen, c.Open, c.High, c.Low, c.Close, c.Volume)
				if err != nil {
					return nil, malformedError{errors.Wrapf(err, "candle %d", i)}
				}
				out = append(out, bar)
			}
			return out, nil
		})
		if err != nil {
			return nil, errors.Wrapf(err, "failed to fetch candles from Hyperliquid for %s", coin)
		}

		last := startMs - 1
		for _, bar := range page {
			if ms := bar.Date.UnixMilli(); ms > last {
				last = ms
			}
			if inRange(bar.Day(), from, to) {
				bars = append(bars, bar)
			}
		}

		if len(page) < s.pageSize || last < startMs {
			break
		}
		startMs = last + 1
	}

	bars = sortBars(bars)

	s.l.Debug("hyperliquid bars loaded", zap.String("coin", coin), zap.Int("bars", len(bars)))

	return bars, nil
}

// wellFormed retries transport failures but not candles that failed to parse.
func wellFormed(err error) bool {
	var m malformedError
	return notCancelled(err) && !errors.As(err, &m)
}

var hyperliquidQuotes = []string{"USDT", "USDC", "USD"}

func hyperliquidCoin(symbol string) string {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	for _, q := range hyperliquidQuotes {
		if coin, ok := strings.CutSuffix(symbol, q); ok && coin != "" {
			return coin
		}
	}
	return symbol
}

func hyperliquidCandleToBar(openMs int64, open, high, low, closePrice, volume string) (domain.Bar, error) {
	bar := domain.Bar{Date: time.UnixMilli(openMs).UTC()}

	for _, f := range []struct {
		name string
		raw  string
		dst  *decimal.Decimal
	}{
		{"open", open, &bar.Open},
		{"high", high, &bar.High},
		{"low", low, &bar.Low},
		{"close", closePrice, &bar.Close},
		{"volume", volume, &bar.Volume},
	} {
		v, err := decimal.NewFromString(f.raw)
		if err != nil {
			return domain.Bar{}, errors.Wrapf(err, "failed to parse %s price", f.name)
		}
		*f.dst = v
	}

	return bar, nil
}
