package positions

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// EuropeanOption is a contract paying Payoff(S_T) at Maturity only.
type EuropeanOption struct {
	Maturity float64
	Payoff   Payoff
}

func NewEuropeanOption(maturity float64, payoff Payoff) *EuropeanOption {
	return &EuropeanOption{
		Maturity: maturity,
		Payoff:   payoff,
	}
}

func (o *EuropeanOption) Name() string {
	return "European"
}

// Value is the discounted risk-neutral expectation of the payoff, taken in
// one shot against the probabilities at the maturity index.
func (o *EuropeanOption) Value(lattice Lattice) (float64, error) {
	if o.Payoff == nil {
		return 0, ErrNilPayoff
	}

	maturityIndex, err := lattice.TimeIndex(o.Maturity)
	if err != nil {
		return 0, fmt.Errorf("european maturity %v: %w", o.Maturity, err)
	}
	payoffs, err := lattice.TransformedValuesAtTimeIndex(maturityIndex, o.Payoff)
	if err != nil {
		return 0, err
	}
	probabilities, err := lattice.ProbabilitiesAtTimeIndex(maturityIndex)
	if err != nil {
		return 0, err
	}

	return lattice.DiscountFactor(maturityIndex) * floats.Dot(payoffs, probabilities), nil
}
