package positions

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// KnockOutBarrierOption pays Payoff(S_T) at Maturity only if the underlying
// stays inside [LowerBarrier, UpperBarrier] at every lattice time up to and
// including maturity. Use -Inf or +Inf for a one-sided barrier.
type KnockOutBarrierOption struct {
	Maturity     float64
	Payoff       Payoff
	LowerBarrier float64
	UpperBarrier float64
}

func NewKnockOutBarrierOption(maturity float64, payoff Payoff, lowerBarrier, upperBarrier float64) *KnockOutBarrierOption {
	return &KnockOutBarrierOption{
		Maturity:     maturity,
		Payoff:       payoff,
		LowerBarrier: lowerBarrier,
		UpperBarrier: upperBarrier,
	}
}

// NewDownAndOutOption knocks out below lowerBarrier only.
func NewDownAndOutOption(maturity float64, payoff Payoff, lowerBarrier float64) *KnockOutBarrierOption {
	return NewKnockOutBarrierOption(maturity, payoff, lowerBarrier, math.Inf(1))
}

// NewUpAndOutOption knocks out above upperBarrier only.
func NewUpAndOutOption(maturity float64, payoff Payoff, upperBarrier float64) *KnockOutBarrierOption {
	return NewKnockOutBarrierOption(maturity, payoff, math.Inf(-1), upperBarrier)
}

func (o *KnockOutBarrierOption) Name() string {
	return "Knock-Out Barrier"
}

// Value zeroes the terminal payoff outside the corridor and then, stepping
// back one index at a time, zeroes every conditional expectation whose node
// lies outside it.
func (o *KnockOutBarrierOption) Value(lattice Lattice) (float64, error) {
	if o.Payoff == nil {
		return 0, ErrNilPayoff
	}
	if math.IsNaN(o.LowerBarrier) || math.IsNaN(o.UpperBarrier) || o.LowerBarrier > o.UpperBarrier {
		return 0, fmt.Errorf("barriers [%v, %v]: %w", o.LowerBarrier, o.UpperBarrier, ErrInvalidBarrier)
	}

	inside := insideBarrier(o.LowerBarrier, o.UpperBarrier)

	maturityIndex, err := lattice.TimeIndex(o.Maturity)
	if err != nil {
		return 0, fmt.Errorf("barrier maturity %v: %w", o.Maturity, err)
	}
	optionValues, err := lattice.TransformedValuesAtTimeIndex(maturityIndex, o.Payoff)
	if err != nil {
		return 0, err
	}
	alive, err := lattice.TransformedValuesAtTimeIndex(maturityIndex, inside)
	if err != nil {
		return 0, err
	}
	floats.Mul(optionValues, alive)

	for timeIndex := maturityIndex - 1; timeIndex >= 0; timeIndex-- {
		optionValues = lattice.ConditionalExpectation(optionValues)
		alive, err = lattice.TransformedValuesAtTimeIndex(timeIndex, inside)
		if err != nil {
			return 0, err
		}
		floats.Mul(optionValues, alive)
	}

	return optionValues[0], nil
}
