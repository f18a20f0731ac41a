package main

import (
	"context"
	"os"
	"sync"

	"github.com/adshao/go-binance/v2"
	bybit "github.com/hirokisan/bybit/v2"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	hyperliquid "github.com/sonirico/go-hyperliquid"
	"github.com/vadiminshakov/trailgrid/config"
	"github.com/vadiminshakov/trailgrid/internal/report"
	"github.com/vadiminshakov/trailgrid/internal/services/backtest"
	"github.com/vadiminshakov/trailgrid/internal/services/marketdata"
	"github.com/vadiminshakov/trailgrid/internal/services/metrics"
	"github.com/vadiminshakov/trailgrid/internal/storage/resultfile"
	"github.com/vadiminshakov/trailgrid/internal/storage/runlog"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// runner executes configured backtests and persists their results.
type runner struct {
	l           *zap.Logger
	parallelism int
	metricsFile string

	runs     *runlog.WALStore
	results  *resultfile.Store
	registry *prometheus.Registry
	observer *metrics.PrometheusObserver

	binanceOnce   sync.Once
	binanceClient *binance.Client
	bybitOnce     sync.Once
	bybitClient   *bybit.Client

	hyperliquidOnce sync.Once
	hyperliquidInfo *hyperliquid.Info
	hyperliquidErr  error
}

func newRunner(flags config.Flags, l *zap.Logger) (*runner, error) {
	r := &runner{
		l:           l,
		parallelism: flags.Parallelism,
		metricsFile: flags.MetricsFile,
		registry:    prometheus.NewRegistry(),
	}

	observer, err := metrics.NewPrometheusObserver(r.registry)
	if err != nil {
		return nil, errors.Wrap(err, "register metrics")
	}
	r.observer = observer

	if flags.WALDir != "" {
		if r.runs, err = runlog.NewWALStore(flags.WALDir); err != nil {
			return nil, err
		}
	}
	if flags.ResultsDir != "" {
		if r.results, err = resultfile.NewStore(flags.ResultsDir); err != nil {
			r.Close()
			return nil, err
		}
	}

	return r, nil
}

// RunAll executes every config and returns the reports of the successful runs
// in config order. A failed run does not stop the others.
func (r *runner) RunAll(ctx context.Context, configs []config.Config) ([]report.Run, error) {
	reports := make([]report.Run, len(configs))
	errs := make([]error, len(configs))

	g := new(errgroup.Group)
	g.SetLimit(r.parallelism)
	for i, c := range configs {
		g.Go(func() error {
			rep, err := r.runOne(ctx, c)
			if err != nil {
				r.l.Error("run failed", zap.String("run", c.Name), zap.Error(err))
				errs[i] = errors.Wrapf(err, "run %s", c.Name)
				return nil
			}
			reports[i] = rep
			return nil
		})
	}
	_ = g.Wait()

	var (
		out      []report.Run
		firstErr error
		failed   int
	)
	for i := range configs {
		if errs[i] != nil {
			failed++
			if firstErr == nil {
				firstErr = errs[i]
			}
			continue
		}
		out = append(out, reports[i])
	}

	if r.metricsFile != "" {
		if err := prometheus.WriteToTextfile(r.metricsFile, r.registry); err != nil {
			r.l.Error("failed to write metrics", zap.String("file", r.metricsFile), zap.Error(err))
		}
	}

	if failed > 0 {
		return out, errors.Wrapf(firstErr, "%d of %d runs failed, first", failed, len(configs))
	}
	return out, nil
}

func (r *runner) runOne(ctx context.Context, c config.Config) (report.Run, error) {
	l := r.l.With(zap.String("run", c.Name))
	src, err := r.source(ctx, c, l)
	if err != nil {
		return report.Run{}, err
	}

	series := make([]backtest.SymbolBars, 0, len(c.Symbols))
	for _, symbol := range c.Symbols {
		bars, err := src.Bars(ctx, symbol, c.From, c.To)
		if err != nil {
			return report.Run{}, errors.Wrapf(err, "load %s bars", symbol)
		}
		series = append(series, backtest.SymbolBars{Symbol: symbol, Bars: bars})
	}

	engine := backtest.NewEngine(l, backtest.WithObserver(r.observer.ForRun(c.Name)))

	var res backtest.Result
	if c.Mode == config.ModePortfolio {
		res, err = engine.RunPortfolio(ctx, series, c.Params, c.Capital)
	} else {
		res, err = engine.Run(ctx, series[0].Symbol, series[0].Bars, c.Params)
	}
	if err != nil {
		return report.Run{}, err
	}

	l.Info("run finished",
		zap.Int("transactions", len(res.Transactions)),
		zap.Int("day_errors", len(res.DayErrors)),
		zap.String("final_value", res.Summary.FinalValue.String()))

	if err := r.persist(c, res, l); err != nil {
		return report.Run{}, err
	}

	return report.Run{
		Name:      c.Name,
		Mode:      c.Mode,
		Symbols:   res.Symbols,
		Summary:   res.Summary,
		PerSymbol: res.PerSymbol,
		DayErrors: len(res.DayErrors),
	}, nil
}

func (r *runner) persist(c config.Config, res backtest.Result, l *zap.Logger) error {
	if r.runs != nil {
		rec, err := r.runs.Save(runlog.Record{
			Name:      c.Name,
			Mode:      c.Mode,
			Symbols:   res.Symbols,
			Params:    c.Params,
			Summary:   res.Summary,
			PerSymbol: res.PerSymbol,
			DayErrors: len(res.DayErrors),
		})
		if err != nil {
			return err
		}
		l.Debug("run logged", zap.String("id", rec.ID))
	}

	if r.results != nil {
		path, err := r.results.Save(c.Name, res)
		if err != nil {
			return err
		}
		l.Info("result saved", zap.String("path", path))
	}

	return nil
}

func (r *runner) source(ctx context.Context, c config.Config, l *zap.Logger) (marketdata.Source, error) {
	switch c.Source {
	case config.SourceBinance:
		r.binanceOnce.Do(func() {
			// public kline endpoints work without keys
			r.binanceClient = binance.NewClient(os.Getenv("BINANCE_API_KEY"), os.Getenv("BINANCE_API_SECRET"))
		})
		return marketdata.NewBinanceSource(r.binanceClient, l), nil
	case config.SourceBybit:
		r.bybitOnce.Do(func() {
			r.bybitClient = bybit.NewClient()
		})
		return marketdata.NewBybitSource(r.bybitClient, l), nil
	case config.SourceHyperliquid:
		r.hyperliquidOnce.Do(func() {
			baseURL := os.Getenv("HYPERLIQUID_URL")
			if baseURL == "" {
				baseURL = marketdata.HyperliquidMainnetURL
			}
			r.hyperliquidInfo, r.hyperliquidErr = marketdata.NewHyperliquidInfo(ctx, baseURL, os.Getenv("HYPERLIQUID_PRIVATE_KEY"))
		})
		if r.hyperliquidErr != nil {
			return nil, r.hyperliquidErr
		}
		return marketdata.NewHyperliquidSource(r.hyperliquidInfo, l), nil
	default:
		return marketdata.NewCSVSource(c.DataDir, l), nil
	}
}

// Close releases the run log.
func (r *runner) Close() {
	if r.runs == nil {
		return
	}
	if err := r.runs.Close(); err != nil {
		r.l.Error("failed to close run log", zap.Error(err))
	}
}
