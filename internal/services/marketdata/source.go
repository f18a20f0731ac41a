// Package marketdata loads daily bars for the engine from files or exchanges.
package marketdata

import (
	"context"
	"slices"
	"time"

	"github.com/vadiminshakov/trailgrid/internal/domain"
	"github.com/vadiminshakov/trailgrid/pkg/retrier"
	"go.uber.org/zap"
)

// Source returns the daily bars of symbol within [from, to], ascending.
// A zero from or to leaves that side unbounded.
type Source interface {
	Bars(ctx context.Context, symbol string, from, to time.Time) ([]domain.Bar, error)
}

func inRange(day, from, to time.Time) bool {
	if !from.IsZero() && day.Before(domain.DayOf(from)) {
		return false
	}
	if !to.IsZero() && day.After(domain.DayOf(to)) {
		return false
	}
	return true
}

// sortBars orders bars by date and drops duplicate days returned by
// overlapping pages.
func sortBars(bars []domain.Bar) []domain.Bar {
	slices.SortFunc(bars, func(a, b domain.Bar) int { return a.Date.Compare(b.Date) })
	return slices.CompactFunc(bars, func(a, b domain.Bar) bool { return a.Date.Equal(b.Date) })
}

// malformedError marks a response that arrived but could not be decoded.
type malformedError struct{ error }

// paging is the download policy shared by the exchange sources.
type paging struct {
	retrier  *retrier.Retrier
	pageSize int
	l        *zap.Logger
}

// Option configures an exchange source.
type Option func(*paging)

// WithPageSize sets how many klines are requested per call.
func WithPageSize(n int) Option {
	return func(p *paging) {
		p.pageSize = n
	}
}

// WithRetrier replaces the default retry policy.
func WithRetrier(r *retrier.Retrier) Option {
	return func(p *paging) {
		p.retrier = r
	}
}

func newPaging(l *zap.Logger, pageSize int, retryIf func(error) bool, opts []Option) paging {
	if l == nil {
		l = zap.NewNop()
	}

	p := paging{pageSize: pageSize, l: l}
	p.retrier = retrier.New(
		retrier.WithMaxRetries(3),
		retrier.WithRetryIf(retryIf),
		retrier.WithOnRetry(func(attempt int, err error) {
			l.Warn("retrying kline download", zap.Int("attempt", attempt), zap.Error(err))
		}),
	)
	for _, opt := range opts {
		opt(&p)
	}

	return p
}
