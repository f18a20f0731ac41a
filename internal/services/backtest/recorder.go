package backtest

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/trailgrid/internal/domain"
	"github.com/vadiminshakov/trailgrid/internal/services/trailing"
	"go.uber.org/zap"
)

// Observer receives engine output as it is produced.
type Observer interface {
	ObserveTransaction(tx domain.Transaction)
	ObserveOrderEvent(ev domain.OrderEvent)
	ObserveQuestionable(ev domain.QuestionableEvent)
}

// Recorder accumulates the ordered output of one run.
type Recorder struct {
	l         *zap.Logger
	observers []Observer

	transactions []domain.Transaction
	events       []domain.OrderEvent
	questionable []domain.QuestionableEvent
	dayErrors    []domain.DayError
	values       []domain.ValuePoint
}

// NewRecorder creates an empty recorder.
func NewRecorder(l *zap.Logger, observers ...Observer) *Recorder {
	if l == nil {
		l = zap.NewNop()
	}
	return &Recorder{l: l, observers: observers}
}

// Transaction appends tx to the log.
func (r *Recorder) Transaction(tx domain.Transaction) {
	r.transactions = append(r.transactions, tx)

	fields := []zap.Field{
		zap.String("date", tx.Date.Format(time.DateOnly)),
		zap.String("symbol", tx.Symbol),
		zap.String("price", tx.Price.String()),
		zap.String("quantity", tx.Quantity.String()),
	}
	if tx.IsRejection() {
		r.l.Warn(string(tx.Type), append(fields, zap.String("reason", tx.Reason), zap.String("detail", tx.Detail))...)
	} else {
		if tx.RealizedPnL != nil {
			fields = append(fields, zap.String("pnl", tx.RealizedPnL.String()))
		}
		r.l.Info(string(tx.Type), append(fields, zap.Ints("lots", tx.LotIDs))...)
	}

	for _, o := range r.observers {
		o.ObserveTransaction(tx)
	}
}

// Transitions appends order events for every transition of one machine step.
func (r *Recorder) Transitions(date time.Time, symbol string, side domain.Side, price decimal.Decimal, ts []trailing.Transition) {
	for _, t := range ts {
		ev := domain.OrderEvent{
			Date:   date,
			Symbol: symbol,
			Side:   side,
			From:   t.From,
			To:     t.To,
			Price:  price,
			Stop:   t.Stop,
			Reason: t.Reason,
		}
		r.events = append(r.events, ev)

		r.l.Debug("order transition",
			zap.String("date", date.Format(time.DateOnly)),
			zap.String("symbol", symbol),
			zap.String("side", side.String()),
			zap.String("from", t.From.String()),
			zap.String("to", t.To.String()),
			zap.String("stop", t.Stop.String()),
			zap.String("reason", t.Reason))

		for _, o := range r.observers {
			o.ObserveOrderEvent(ev)
		}
	}
}

// Questionable flags a day where symbol both sold and bought.
func (r *Recorder) Questionable(ev domain.QuestionableEvent) {
	r.questionable = append(r.questionable, ev)

	r.l.Warn("sell and buy on the same day",
		zap.String("date", ev.Date.Format(time.DateOnly)),
		zap.String("symbol", ev.Symbol),
		zap.String("sell_price", ev.SellPrice.String()),
		zap.String("buy_price", ev.BuyPrice.String()))

	for _, o := range r.observers {
		o.ObserveQuestionable(ev)
	}
}

// DayError records a fault contained to one day and symbol.
func (r *Recorder) DayError(date time.Time, symbol, phase string, err error) {
	r.dayErrors = append(r.dayErrors, domain.DayError{
		Date:   date,
		Symbol: symbol,
		Phase:  phase,
		Error:  err.Error(),
	})

	r.l.Error("day processing failed",
		zap.String("date", date.Format(time.DateOnly)),
		zap.String("symbol", symbol),
		zap.String("phase", phase),
		zap.Error(err))
}

// Value appends an end-of-day valuation.
func (r *Recorder) Value(v domain.ValuePoint) {
	r.values = append(r.values, v)
}

// Transactions returns the log recorded so far.
func (r *Recorder) Transactions() []domain.Transaction {
	return r.transactions
}

// Values returns the valuation series recorded so far.
func (r *Recorder) Values() []domain.ValuePoint {
	return r.values
}
