// Package sequence generates the grid interval used for the n-th consecutive buy.
package sequence

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Generator returns the grid interval after n consecutive buys.
type Generator interface {
	Interval(n int) decimal.Decimal
}

// Linear grows the interval by a constant step per consecutive buy.
type Linear struct {
	Start decimal.Decimal
	Step  decimal.Decimal
}

// Interval returns Start + n × Step.
func (g Linear) Interval(n int) decimal.Decimal {
	if n < 0 {
		n = 0
	}
	return g.Start.Add(g.Step.Mul(decimal.NewFromInt(int64(n))))
}

// Quadratic is a precomputed sequence v(i) = a·i² + b·i + start whose first
// step is firstDelta and whose last element is end.
type Quadratic struct {
	values []decimal.Decimal
}

// NewQuadratic builds a quadratic sequence of length n (n >= 3).
func NewQuadratic(n int, start, firstDelta, end decimal.Decimal) (Quadratic, error) {
	if n < 3 {
		return Quadratic{}, fmt.Errorf("quadratic sequence needs at least 3 elements, got %d", n)
	}

	last := decimal.NewFromInt(int64(n - 1))
	span := decimal.NewFromInt(int64((n - 1) * (n - 2)))
	a := end.Sub(start).Sub(firstDelta.Mul(last)).Div(span)
	b := firstDelta.Sub(a)

	values := make([]decimal.Decimal, n)
	for i := range values {
		x := decimal.NewFromInt(int64(i))
		values[i] = a.Mul(x).Mul(x).Add(b.Mul(x)).Add(start)
	}

	// pin the anchors so rounding in a and b never moves them
	values[0] = start
	values[1] = start.Add(firstDelta)
	values[n-1] = end

	return Quadratic{values: values}, nil
}

// Interval returns element n, clamped to the sequence bounds.
func (q Quadratic) Interval(n int) decimal.Decimal {
	if len(q.values) == 0 {
		return decimal.Zero
	}
	if n < 0 {
		n = 0
	}
	if n >= len(q.values) {
		n = len(q.values) - 1
	}
	return q.values[n]
}

// Values returns a copy of the whole sequence.
func (q Quadratic) Values() []decimal.Decimal {
	out := make([]decimal.Decimal, len(q.values))
	copy(out, q.values)
	return out
}
