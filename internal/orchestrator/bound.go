package orchestrator

import (
	"context"
	"fmt"
	"time"
)

// BoundType tells whether a bound limits the solution value from above or below.
type BoundType string

const (
	BoundUpper BoundType = "UPPER"
	BoundLower BoundType = "LOWER"
)

// Bound is an estimate of the best solution value a problem can reach.
type Bound struct {
	Value                 float64   `json:"bound"`
	Type                  BoundType `json:"boundType"`
	ExecutionMilliseconds int64     `json:"executionTime"`
}

// Comparison relates a solution value to the bound estimated for it.
// Ratio is 1 when the solution reaches the bound and shrinks as it moves away.
type Comparison struct {
	Bound Bound   `json:"bound"`
	Value float64 `json:"value"`
	Ratio float64 `json:"comparison"`
}

// Estimator computes a bound for an input without solving it.
type Estimator[I any] func(ctx context.Context, input I) (Bound, error)

// ValueFunc extracts the numeric value of a solution. ok is false for
// results that carry no value.
type ValueFunc[O any] func(result O) (value float64, ok bool)

// Compare returns the ratio of value to the bound, oriented so that 1 means
// the bound is met.
func (t BoundType) Compare(bound, value float64) (float64, error) {
	num, den := value, bound
	if t == BoundLower {
		num, den = bound, value
	}
	switch {
	case num == 0 && den == 0:
		return 1, nil
	case den == 0:
		return 0, fmt.Errorf("%w: cannot relate %v to a zero bound", ErrBoundUnavailable, num)
	}
	return num / den, nil
}

// EstimateBound runs the type's estimator on the current input and keeps the
// result until the input changes.
func (p *Problem[I, O]) EstimateBound(ctx context.Context) (Bound, error) {
	estimate := p.typ.estimator
	if estimate == nil {
		return Bound{}, fmt.Errorf("estimate %s: %w for %s", p.id, ErrNoEstimator, p.typ.ID())
	}
	p.mu.RLock()
	input := p.input
	p.mu.RUnlock()
	if input == nil {
		return Bound{}, fmt.Errorf("estimate %s (input set: false): %w", p.id, ErrNotConfigured)
	}

	start := time.Now()
	bound, err := estimate(ctx, *input)
	if err != nil {
		return Bound{}, fmt.Errorf("estimate %s: %w", p.id, err)
	}
	bound.ExecutionMilliseconds = time.Since(start).Milliseconds()

	p.mu.Lock()
	// The input may have been replaced while estimating.
	if p.input == input {
		p.bound = &bound
	}
	p.mu.Unlock()
	return bound, nil
}

// Bound returns the last estimated bound.
func (p *Problem[I, O]) Bound() (Bound, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.bound == nil {
		return Bound{}, false
	}
	return *p.bound, true
}

// CompareBound relates the solved result to the estimated bound.
func (p *Problem[I, O]) CompareBound() (Comparison, error) {
	valueOf := p.typ.value
	if valueOf == nil {
		return Comparison{}, fmt.Errorf("compare %s: %w: %s results have no value", p.id, ErrBoundUnavailable, p.typ.ID())
	}
	bound, ok := p.Bound()
	if !ok {
		return Comparison{}, fmt.Errorf("compare %s: %w: bound not estimated yet", p.id, ErrBoundUnavailable)
	}
	solution := p.Solution()
	result, ok := solution.Result()
	if !ok || solution.Status != StatusSolved {
		return Comparison{}, fmt.Errorf("compare %s: %w: problem not solved yet", p.id, ErrBoundUnavailable)
	}
	value, ok := valueOf(result)
	if !ok {
		return Comparison{}, fmt.Errorf("compare %s: %w: result has no value", p.id, ErrBoundUnavailable)
	}

	ratio, err := bound.Type.Compare(bound.Value, value)
	if err != nil {
		return Comparison{}, fmt.Errorf("compare %s: %w", p.id, err)
	}
	return Comparison{Bound: bound, Value: value, Ratio: ratio}, nil
}
