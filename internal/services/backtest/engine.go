// Package backtest replays daily bars through the grid trailing-stop strategy.
package backtest

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/trailgrid/internal/domain"
	"github.com/vadiminshakov/trailgrid/internal/services/capital"
	"github.com/vadiminshakov/trailgrid/internal/services/metrics"
	"github.com/vadiminshakov/trailgrid/internal/services/trailing"
	"go.uber.org/zap"
)

// day phases
const (
	PhaseSell = "sell"
	PhaseBuy  = "buy"
)

// SymbolBars is the daily history of one symbol.
type SymbolBars struct {
	Symbol string       `json:"symbol"`
	Bars   []domain.Bar `json:"bars"`
}

// Result is the full output of one run.
type Result struct {
	Symbols            []string                   `json:"symbols"`
	Transactions       []domain.Transaction       `json:"transactions"`
	Events             []domain.OrderEvent        `json:"events"`
	QuestionableEvents []domain.QuestionableEvent `json:"questionable_events"`
	DayErrors          []domain.DayError          `json:"day_errors"`
	OpenLots           []domain.Lot               `json:"open_lots"`
	ValueSeries        []domain.ValuePoint        `json:"value_series"`
	Capital            capital.Snapshot           `json:"capital"`
	Summary            metrics.Summary            `json:"summary"`
	PerSymbol          []metrics.SymbolSummary    `json:"per_symbol"`
}

// Engine runs backtests. It holds no run state, so one engine may serve
// many concurrent runs.
type Engine struct {
	l         *zap.Logger
	observers []Observer
}

// Option configures an Engine.
type Option func(*Engine)

// WithObserver streams every run's output to o.
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		e.observers = append(e.observers, o)
	}
}

// NewEngine creates an engine.
func NewEngine(l *zap.Logger, opts ...Option) *Engine {
	if l == nil {
		l = zap.NewNop()
	}

	e := &Engine{l: l}
	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Run simulates one symbol with unconstrained capital.
func (e *Engine) Run(ctx context.Context, symbol string, bars []domain.Bar, params domain.StrategyParams) (Result, error) {
	if err := params.Validate(); err != nil {
		return Result{}, err
	}
	if err := domain.ValidateBars(symbol, bars); err != nil {
		return Result{}, err
	}

	alloc := capital.NewUnconstrained(params)

	return e.run(ctx, []SymbolBars{{Symbol: symbol, Bars: bars}}, params, alloc)
}

// RunPortfolio simulates several symbols sharing one capital pool.
// Symbols are processed in the given order every day.
func (e *Engine) RunPortfolio(ctx context.Context, series []SymbolBars, params domain.StrategyParams, cp domain.CapitalParams) (Result, error) {
	if err := params.Validate(); err != nil {
		return Result{}, err
	}
	if len(series) == 0 {
		return Result{}, errors.Wrap(domain.ErrInsufficientData, "portfolio has no symbols")
	}

	seen := make(map[string]bool, len(series))
	for _, s := range series {
		if seen[s.Symbol] {
			return Result{}, errors.Wrapf(domain.ErrInvalidParams, "duplicate symbol %s", s.Symbol)
		}
		seen[s.Symbol] = true

		if err := domain.ValidateBars(s.Symbol, s.Bars); err != nil {
			return Result{}, err
		}
	}

	pool, err := capital.NewPool(cp, e.l)
	if err != nil {
		return Result{}, err
	}

	return e.run(ctx, series, params, pool)
}

func (e *Engine) run(ctx context.Context, series []SymbolBars, params domain.StrategyParams, alloc capital.Allocator) (Result, error) {
	r := &run{
		params: params,
		alloc:  alloc,
		rec:    NewRecorder(e.l, e.observers...),
		l:      e.l,
	}

	for _, s := range series {
		grid, err := gridGenerator(params)
		if err != nil {
			return Result{}, errors.Wrap(domain.ErrInvalidParams, err.Error())
		}
		r.states = append(r.states, newSymbolState(s, grid))
	}

	days := calendar(r.states)
	e.l.Info("backtest started",
		zap.Strings("symbols", r.symbols()),
		zap.Int("days", len(days)),
		zap.String("lot_size", params.LotSizeUsd.String()),
		zap.Int("max_lots", params.MaxLots))

	for _, day := range days {
		if err := ctx.Err(); err != nil {
			return r.result(), errors.Wrapf(err, "backtest stopped before %s", day.Format(time.DateOnly))
		}
		r.day(day)
	}

	res := r.result()
	e.l.Info("backtest finished",
		zap.Strings("symbols", res.Symbols),
		zap.Int("transactions", len(res.Transactions)),
		zap.String("final_value", res.Summary.FinalValue.StringFixed(2)),
		zap.String("total_return", res.Summary.TotalReturn.StringFixed(4)))

	return res, nil
}

// run is the mutable state of a single backtest.
type run struct {
	params domain.StrategyParams
	alloc  capital.Allocator
	rec    *Recorder
	l      *zap.Logger
	states []*symbolState
}

// day processes one calendar day: all sells, then all buys, then bookkeeping.
func (r *run) day(day time.Time) {
	active := make([]*symbolState, 0, len(r.states))
	for _, s := range r.states {
		if s.advance(day) {
			active = append(active, s)
		}
	}

	for _, s := range active {
		r.guard(day, s.symbol, PhaseSell, func() error { return r.stepSell(day, s) })
	}
	for _, s := range active {
		r.guard(day, s.symbol, PhaseBuy, func() error { return r.stepBuy(day, s) })
	}

	for _, s := range active {
		if s.soldToday && s.boughtToday {
			r.rec.Questionable(domain.QuestionableEvent{
				Date:      day,
				Symbol:    s.symbol,
				SellPrice: s.soldAt,
				BuyPrice:  s.boughtAt,
			})
		}
	}

	r.rec.Value(r.valuation(day))
}

// guard contains any failure of fn to the given day and symbol.
func (r *run) guard(day time.Time, symbol, phase string, fn func() error) {
	defer func() {
		if rec := recover(); rec != nil {
			r.rec.DayError(day, symbol, phase, errors.Errorf("panic: %v", rec))
		}
	}()

	if err := fn(); err != nil {
		r.rec.DayError(day, symbol, phase, err)
	}
}

func (r *run) stepSell(day time.Time, s *symbolState) error {
	price := s.today.ClosePrice()

	adaptive := domain.CalculateAdaptive(domain.AdaptiveInput{
		Side:             domain.SideSell,
		CurrentPrice:     price,
		LastTradePrice:   s.sellAdaptive.LastTradePrice,
		StaticThreshold:  r.params.TrailingSellPullbackPercent,
		LastThreshold:    s.sellAdaptive.LastThreshold,
		ConsecutiveCount: s.sellAdaptive.ConsecutiveCount,
		Enabled:          r.params.EnableConsecutiveIncrementalSellProfit,
	})

	order, out, err := trailing.StepSell(s.sell, trailing.SellInput{
		Date:              day,
		Price:             price,
		Bottom:            s.bottom,
		ActivationPercent: r.params.TrailingSellActivationPercent,
		ProfitRequirement: r.params.ProfitRequirement,
		MaxLotsToSell:     r.params.MaxLotsToSell,
		Adaptive:          adaptive,
	}, s.ledger)
	if err != nil {
		return errors.Wrap(err, "step sell order")
	}
	s.sell = order
	r.rec.Transitions(day, s.symbol, domain.SideSell, price, out.Transitions)

	if out.Rejected {
		r.rec.Transaction(domain.Transaction{
			Date:     day,
			Symbol:   s.symbol,
			Type:     domain.TransactionRejectedSell,
			Price:    price,
			Quantity: totalQuantity(out.Lots),
			Reason:   out.Reason,
			Detail:   out.Detail,
			LotIDs:   domain.LotIDs(out.Lots),
		})
		return nil
	}
	if !out.Executed {
		return nil
	}

	ids := domain.LotIDs(out.Lots)
	closed, err := s.ledger.Close(ids)
	if err != nil {
		return errors.Wrap(err, "close sold lots")
	}

	qty, cost, pnl := decimal.Zero, decimal.Zero, decimal.Zero
	for _, lot := range closed {
		qty = qty.Add(lot.Quantity)
		cost = cost.Add(lot.CostBasisUsd)
		pnl = pnl.Add(lot.PnL(price))
	}
	r.alloc.OnSell(s.symbol, cost, qty.Mul(price))

	detail := fmt.Sprintf("floor %s", out.Floor.StringFixed(4))
	if out.SkipProfit {
		detail = "adaptive"
	}
	pullback := out.Pullback
	r.rec.Transaction(domain.Transaction{
		Date:        day,
		Symbol:      s.symbol,
		Type:        domain.TransactionSell,
		Price:       price,
		Quantity:    qty,
		RealizedPnL: &pnl,
		Threshold:   &pullback,
		Detail:      detail,
		LotIDs:      ids,
	})

	s.sellAdaptive = s.sellAdaptive.Record(price, out.Pullback)
	s.buyAdaptive = domain.AdaptiveState{}

	buy, transitions, err := trailing.CancelBuy(s.buy, trailing.ReasonSellExecuted)
	if err != nil {
		return errors.Wrap(err, "cancel buy after sell")
	}
	s.buy = buy
	r.rec.Transitions(day, s.symbol, domain.SideBuy, price, transitions)

	s.traded(price)
	s.soldToday, s.soldAt = true, price

	return r.alloc.Invariant()
}

func (r *run) stepBuy(day time.Time, s *symbolState) error {
	price := s.today.ClosePrice()
	interval := s.gridInterval(r.params)

	adaptive := domain.CalculateAdaptive(domain.AdaptiveInput{
		Side:             domain.SideBuy,
		CurrentPrice:     price,
		LastTradePrice:   s.buyAdaptive.LastTradePrice,
		StaticThreshold:  r.params.TrailingBuyReboundPercent,
		LastThreshold:    s.buyAdaptive.LastThreshold,
		ConsecutiveCount: s.buyAdaptive.ConsecutiveCount,
		Enabled:          r.params.EnableConsecutiveIncrementalBuyGrid,
	})

	gate := trailing.GateFunc(func(p decimal.Decimal) trailing.Verdict {
		return r.admit(s, p, interval)
	})

	order, out, err := trailing.StepBuy(s.buy, trailing.BuyInput{
		Date:              day,
		Price:             price,
		Peak:              s.peak,
		ActivationPercent: r.params.TrailingBuyActivationPercent,
		Adaptive:          adaptive,
		CanAdd:            s.ledger.Len() < r.params.MaxLots,
	}, gate)
	if err != nil {
		return errors.Wrap(err, "step buy order")
	}
	s.buy = order
	r.rec.Transitions(day, s.symbol, domain.SideBuy, price, out.Transitions)

	if out.Rejected {
		r.rec.Transaction(domain.Transaction{
			Date:     day,
			Symbol:   s.symbol,
			Type:     domain.TransactionRejectedBuy,
			Price:    price,
			Quantity: r.params.LotSizeUsd.Div(price),
			Reason:   out.Verdict.Reason,
			Detail:   out.Verdict.Detail,
		})
		return nil
	}
	if !out.Executed {
		return nil
	}

	lot, err := s.ledger.Open(day, price, r.params.LotSizeUsd, interval)
	if err != nil {
		return err
	}
	r.alloc.OnBuy(s.symbol, r.params.LotSizeUsd)

	detail := "momentum"
	if out.Limit.IsPositive() {
		detail = fmt.Sprintf("limit %s", out.Limit.String())
	}
	rebound := out.Rebound
	r.rec.Transaction(domain.Transaction{
		Date:         day,
		Symbol:       s.symbol,
		Type:         domain.TransactionBuy,
		Price:        price,
		Quantity:     lot.Quantity,
		Threshold:    &rebound,
		GridInterval: &lot.GridInterval,
		Detail:       detail,
		LotIDs:       []int{lot.ID},
	})

	s.buyAdaptive = s.buyAdaptive.Record(price, out.Rebound)
	s.sellAdaptive = domain.AdaptiveState{}

	s.traded(price)
	s.boughtToday, s.boughtAt = true, price

	return r.alloc.Invariant()
}

// admit checks lot count, spacing and capital, in that order.
func (r *run) admit(s *symbolState, price, interval decimal.Decimal) trailing.Verdict {
	if s.ledger.Len() >= r.params.MaxLots {
		return trailing.Verdict{
			Reason: domain.ReasonMaxLots,
			Detail: fmt.Sprintf("%d open lots, max %d", s.ledger.Len(), r.params.MaxLots),
		}
	}

	if spacing := s.ledger.CheckSpacing(price, interval); !spacing.OK {
		return trailing.Verdict{
			Reason: domain.ReasonGridSpacing,
			Detail: spacing.Detail(price, interval),
		}
	}

	if dec := r.alloc.Admit(s.symbol, r.params.LotSizeUsd); !dec.Admitted {
		return trailing.Verdict{Reason: dec.Reason, Detail: dec.Detail}
	}

	return trailing.Verdict{OK: true}
}

// valuation is cash plus open lots at their last close, less any margin borrowed.
func (r *run) valuation(day time.Time) domain.ValuePoint {
	snap := r.alloc.Snapshot()

	market := decimal.Zero
	for _, s := range r.states {
		market = market.Add(s.ledger.MarketValue(s.lastClose))
	}
	borrowed := snap.EffectiveCapital.Sub(snap.TotalCapital)

	return domain.ValuePoint{
		Date:        day,
		Value:       snap.CashReserve.Add(market).Sub(borrowed),
		Cash:        snap.CashReserve,
		Deployed:    snap.DeployedCapital,
		MarketValue: market,
	}
}

func (r *run) symbols() []string {
	out := make([]string, 0, len(r.states))
	for _, s := range r.states {
		out = append(out, s.symbol)
	}
	return out
}

func (r *run) result() Result {
	snap := r.alloc.Snapshot()

	res := Result{
		Symbols:            r.symbols(),
		Transactions:       r.rec.Transactions(),
		Events:             r.rec.events,
		QuestionableEvents: r.rec.questionable,
		DayErrors:          r.rec.dayErrors,
		ValueSeries:        r.rec.Values(),
		Capital:            snap,
	}
	for _, s := range r.states {
		res.OpenLots = append(res.OpenLots, s.ledger.Lots()...)
	}

	res.Summary = metrics.Summarize(snap.TotalCapital, snap.EffectiveCapital, res.Transactions, res.ValueSeries)
	for _, s := range r.states {
		res.PerSymbol = append(res.PerSymbol, metrics.SummarizeSymbol(s.symbol, res.Transactions, res.OpenLots, s.lastClose))
	}

	return res
}

func totalQuantity(lots []domain.Lot) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lots {
		total = total.Add(l.Quantity)
	}
	return total
}
