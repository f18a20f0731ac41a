// Command trailgrid backtests the grid trailing-stop DCA strategy on daily bars.
// Each entry of the YAML config is an independent run; runs execute in parallel.
//
// Usage:
//
//	trailgrid setup [path]          interactive config wizard
//	trailgrid -config config.yaml   run every backtest in the config
//
// Optional environment variables (bybit klines need none):
//
//	BINANCE_API_KEY, BINANCE_API_SECRET  binance source
//	HYPERLIQUID_PRIVATE_KEY              hyperliquid source, a throwaway key is used when unset
//	HYPERLIQUID_URL                      hyperliquid API base, mainnet by default
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/vadiminshakov/trailgrid/config"
	"github.com/vadiminshakov/trailgrid/internal/report"
	"github.com/vadiminshakov/trailgrid/internal/setup"
	"go.uber.org/zap"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "setup" {
		path := setup.DefaultPath
		if len(os.Args) > 2 {
			path = os.Args[2]
		}
		if err := setup.RunTUI(path); err != nil {
			log.Fatal(err)
		}
		return
	}

	flags, configs, err := config.Get(os.Args[1:])
	if err != nil {
		log.Fatal(err)
	}

	logger := newLogger(flags.Debug)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	r, err := newRunner(flags, logger)
	if err != nil {
		logger.Fatal("failed to prepare runner", zap.Error(err))
	}
	defer r.Close()

	runs, err := r.RunAll(ctx, configs)
	for _, run := range runs {
		fmt.Println(report.Render(run))
		fmt.Println()
	}
	if err != nil {
		logger.Fatal("backtest failed", zap.Error(err))
	}
}

func newLogger(debug bool) *zap.Logger {
	var (
		logger *zap.Logger
		err    error
	)
	if debug {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		log.Fatal(err)
	}
	return logger
}
