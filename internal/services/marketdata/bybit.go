package marketdata

import (
	"context"
	"strconv"
	"strings"
	"time"

	bybit "github.com/hirokisan/bybit/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/trailgrid/internal/domain"
	"github.com/vadiminshakov/trailgrid/pkg/retrier"
	"go.uber.org/zap"
)

const (
	bybitDailyInterval = bybit.Interval("D")
	bybitPageSize      = 1000
)

// BybitSource downloads daily spot klines from Bybit V5. Market endpoints
// are public, so the client needs no credentials.
type BybitSource struct {
	client *bybit.Client
	paging
}

// NewBybitSource creates a kline source on client.
func NewBybitSource(client *bybit.Client, l *zap.Logger, opts ...Option) *BybitSource {
	return &BybitSource{
		client: client,
		paging: newPaging(l, bybitPageSize, notCancelled, opts),
	}
}

// Bars implements Source. Bybit returns the newest klines of a window first,
// so pages walk backwards from to.
func (s *BybitSource) Bars(ctx context.Context, symbol string, from, to time.Time) ([]domain.Bar, error) {
	symbol = strings.ToUpper(symbol)
	if to.IsZero() {
		to = time.Now().UTC()
	}

	var (
		bars []domain.Bar
		end  = to.UnixMilli()
	)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		param := bybit.V5GetKlineParam{
			Category: bybit.CategoryV5Spot,
			Symbol:   bybit.SymbolV5(symbol),
			Interval: bybitDailyInterval,
			End:      &end,
			Limit:    &s.pageSize,
		}
		if !from.IsZero() {
			start := from.UnixMilli()
			param.Start = &start
		}

		page, err := retrier.DoWithData(s.retrier, ctx, func(context.Context) (bybit.V5GetKlineList, error) {
			res, err := s.client.V5().Market().GetKline(param)
			if err != nil {
				return nil, err
			}
			if res == nil {
				return nil, errors.New("empty result")
			}
			return res.Result.List, nil
		})
		if err != nil {
			return nil, errors.Wrapf(err, "failed to fetch klines from Bybit for %s", symbol)
		}

		oldest := end
		for i, k := range page {
			bar, err := bybitKlineToBar(k)
			if err != nil {
				return nil, errors.Wrapf(err, "kline %d of %s", i, symbol)
			}
			if ms := bar.Date.UnixMilli(); ms < oldest {
				oldest = ms
			}
			if inRange(bar.Day(), from, to) {
				bars = append(bars, bar)
			}
		}

		if len(page) < s.pageSize || oldest >= end {
			break
		}
		end = oldest - 1
		if !from.IsZero() && end < from.UnixMilli() {
			break
		}
	}

	bars = sortBars(bars)

	s.l.Debug("bybit bars loaded", zap.String("symbol", symbol), zap.Int("bars", len(bars)))

	return bars, nil
}

func bybitKlineToBar(k bybit.V5GetKlineItem) (domain.Bar, error) {
	msec, err := strconv.ParseInt(k.StartTime, 10, 64)
	if err != nil {
		return domain.Bar{}, errors.Wrapf(err, "failed to parse timestamp: %s", k.StartTime)
	}
	bar := domain.Bar{Date: time.UnixMilli(msec).UTC()}

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

func notCancelled(err error) bool {
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}
