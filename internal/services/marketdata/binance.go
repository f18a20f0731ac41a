package marketdata

import (
	"context"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/trailgrid/internal/domain"
	"github.com/vadiminshakov/trailgrid/pkg/retrier"
	"go.uber.org/zap"
)

const (
	dailyInterval   = "1d"
	binancePageSize = 1000
)

// BinanceSource downloads daily klines from Binance spot.
type BinanceSource struct {
	client *binance.Client
	paging
}

// NewBinanceSource creates a kline source on client.
func NewBinanceSource(client *binance.Client, l *zap.Logger, opts ...Option) *BinanceSource {
	return &BinanceSource{
		client: client,
		paging: newPaging(l, binancePageSize, retryable, opts),
	}
}

// Bars implements Source. Pages are requested from from until to or
// until Binance returns a short page.
func (s *BinanceSource) Bars(ctx context.Context, symbol string, from, to time.Time) ([]domain.Bar, error) {
	symbol = strings.ToUpper(symbol)
	if to.IsZero() {
		to = time.Now().UTC()
	}

	var (
		bars  []domain.Bar
		start = from
	)
	for {
		page, err := retrier.DoWithData(s.retrier, ctx, func(ctx context.Context) ([]*binance.Kline, error) {
			svc := s.client.NewKlinesService().
				Symbol(symbol).
				Interval(dailyInterval).
				Limit(s.pageSize).
				EndTime(to.UnixMilli())
			if !start.IsZero() {
				svc = svc.StartTime(start.UnixMilli())
			}
			return svc.Do(ctx)
		})
		if err != nil {
			return nil, errors.Wrapf(err, "failed to fetch klines from Binance for %s", symbol)
		}

		for i, k := range page {
			bar, err := klineToBar(k)
			if err != nil {
				return nil, errors.Wrapf(err, "kline %d of %s", i, symbol)
			}
			if inRange(bar.Day(), from, to) {
				bars = append(bars, bar)
			}
		}

		if len(page) < s.pageSize {
			break
		}
		start = time.UnixMilli(page[len(page)-1].OpenTime).Add(24 * time.Hour)
		if start.After(to) {
			break
		}
	}

	s.l.Debug("binance bars loaded", zap.String("symbol", symbol), zap.Int("bars", len(bars)))

	return bars, nil
}

func klineToBar(k *binance.Kline) (domain.Bar, error) {
	bar := domain.Bar{Date: time.UnixMilli(k.OpenTime).UTC()}

	for _, f := range []struct {
		name string
		raw  string
		dst  *decimal.Decimal
	}{
		{"open", k.Open, &bar.Open},
		{"high", k.High, &bar.High},
		{"low", k.Low, &bar.Low},
		{"close", k.Close, &bar.Close},
		{"volume", k.Volume, &bar.Volume},
	} {
		v, err := decimal.NewFromString(f.raw)
		if err != nil {
			return domain.Bar{}, errors.Wrapf(err, "failed to parse %s price", f.name)
		}
		*f.dst = v
	}

	return bar, nil
}

// retryable treats coded API errors other than rate limits as permanent.
func retryable(err error) bool {
	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == 0 || apiErr.Code == -1003 || apiErr.Code == -1015
	}
	return true
}
