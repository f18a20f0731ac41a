// Package capital gates lot purchases against available capital.
package capital

import (
	"fmt"
	"sync"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/trailgrid/internal/domain"
	"go.uber.org/zap"
)

// ErrCeilingBreached is returned by Invariant when deployed capital exceeds the ceiling.
var ErrCeilingBreached = errors.New("deployed capital above effective capital")

// Decision is the answer to a candidate buy.
type Decision struct {
	Admitted bool
	Reason   string
	Detail   string
}

// Snapshot is the allocator's bookkeeping at a point in time.
type Snapshot struct {
	TotalCapital     decimal.Decimal `json:"total_capital"`
	EffectiveCapital decimal.Decimal `json:"effective_capital"`
	CashReserve      decimal.Decimal `json:"cash_reserve"`
	DeployedCapital  decimal.Decimal `json:"deployed_capital"`
}

// Allocator admits buys and tracks cash and deployed capital.
type Allocator interface {
	Admit(symbol string, notional decimal.Decimal) Decision
	OnBuy(symbol string, notional decimal.Decimal)
	OnSell(symbol string, costBasis, proceeds decimal.Decimal)
	Snapshot() Snapshot
	Invariant() error
}

type book struct {
	cash     decimal.Decimal
	deployed decimal.Decimal
}

func (b *book) buy(notional decimal.Decimal) {
	b.cash = b.cash.Sub(notional)
	b.deployed = b.deployed.Add(notional)
}

func (b *book) sell(costBasis, proceeds decimal.Decimal) {
	b.cash = b.cash.Add(proceeds)
	b.deployed = b.deployed.Sub(costBasis)
	if b.deployed.IsNegative() {
		b.deployed = decimal.Zero
	}
}

// Unconstrained admits every buy. It still keeps the books so that
// utilization can be reported for single-symbol runs.
type Unconstrained struct {
	initial decimal.Decimal
	book
}

// NewUnconstrained returns an allocator sized for one symbol holding every lot.
func NewUnconstrained(params domain.StrategyParams) *Unconstrained {
	initial := params.InitialCapital()
	return &Unconstrained{initial: initial, book: book{cash: initial, deployed: decimal.Zero}}
}

// Admit always admits.
func (u *Unconstrained) Admit(string, decimal.Decimal) Decision {
	return Decision{Admitted: true}
}

// OnBuy records a filled buy.
func (u *Unconstrained) OnBuy(_ string, notional decimal.Decimal) {
	u.buy(notional)
}

// OnSell records a filled sell.
func (u *Unconstrained) OnSell(_ string, costBasis, proceeds decimal.Decimal) {
	u.sell(costBasis, proceeds)
}

// Snapshot returns the current books.
func (u *Unconstrained) Snapshot() Snapshot {
	return Snapshot{
		TotalCapital:     u.initial,
		EffectiveCapital: u.initial,
		CashReserve:      u.cash,
		DeployedCapital:  u.deployed,
	}
}

// Invariant never fails for an unconstrained allocator.
func (u *Unconstrained) Invariant() error {
	return nil
}

// Pool is the cash and margin pool shared by all symbols of a portfolio run.
// deployed <= total × (1 + margin/100) holds after every operation.
type Pool struct {
	mu        sync.Mutex
	total     decimal.Decimal
	margin    decimal.Decimal
	effective decimal.Decimal
	book
	l *zap.Logger
}

// NewPool validates params and funds the pool with the effective capital.
func NewPool(params domain.CapitalParams, l *zap.Logger) (*Pool, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if l == nil {
		l = zap.NewNop()
	}

	effective := params.EffectiveCapital()
	l.Debug("capital pool init",
		zap.String("total", params.TotalCapitalUsd.String()),
		zap.String("margin_percent", params.MarginPercent.String()),
		zap.String("effective", effective.String()))

	return &Pool{
		total:     params.TotalCapitalUsd,
		margin:    params.MarginPercent,
		effective: effective,
		book:      book{cash: effective, deployed: decimal.Zero},
		l:         l,
	}, nil
}

// Admit checks the margin ceiling first, then the cash reserve.
func (p *Pool) Admit(symbol string, notional decimal.Decimal) Decision {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.deployed.Add(notional).GreaterThan(p.effective) {
		return Decision{
			Reason: domain.ReasonMarginExceeded,
			Detail: fmt.Sprintf("%s + %s > %s", p.deployed.String(), notional.String(), p.effective.String()),
		}
	}
	if p.cash.LessThan(notional) {
		return Decision{
			Reason: domain.ReasonInsufficientCash,
			Detail: fmt.Sprintf("cash %s < %s", p.cash.StringFixed(2), notional.String()),
		}
	}

	return Decision{Admitted: true}
}

// OnBuy debits cash and credits deployed capital by the lot notional.
func (p *Pool) OnBuy(symbol string, notional decimal.Decimal) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.buy(notional)
	p.l.Debug("pool debit",
		zap.String("symbol", symbol),
		zap.String("notional", notional.String()),
		zap.String("cash", p.cash.String()),
		zap.String("deployed", p.deployed.String()))
}

// OnSell credits cash by proceeds and releases the sold lots' cost basis.
func (p *Pool) OnSell(symbol string, costBasis, proceeds decimal.Decimal) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.sell(costBasis, proceeds)
	p.l.Debug("pool credit",
		zap.String("symbol", symbol),
		zap.String("cost_basis", costBasis.String()),
		zap.String("proceeds", proceeds.String()),
		zap.String("cash", p.cash.String()),
		zap.String("deployed", p.deployed.String()))
}

// Snapshot returns the current books.
func (p *Pool) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	return Snapshot{
		TotalCapital:     p.total,
		EffectiveCapital: p.effective,
		CashReserve:      p.cash,
		DeployedCapital:  p.deployed,
	}
}

// Invariant reports a breach of the margin ceiling.
func (p *Pool) Invariant() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.deployed.GreaterThan(p.effective) {
		return errors.Wrapf(ErrCeilingBreached, "%s > %s", p.deployed.String(), p.effective.String())
	}
	return nil
}
