package positions

import (
	"fmt"
)

// AmericanOption may be exercised at any lattice time up to Maturity for
// Payoff of the prevailing price.
type AmericanOption struct {
	Maturity float64
	Payoff   Payoff
}

func NewAmericanOption(maturity float64, payoff Payoff) *AmericanOption {
	return &AmericanOption{
		Maturity: maturity,
		Payoff:   payoff,
	}
}

func (o *AmericanOption) Name() string {
	return "American"
}

// Value runs backward induction from maturity, keeping at every node the
// larger of holding (the conditional expectation) and exercising now.
// Exercise wins ties.
func (o *AmericanOption) Value(lattice Lattice) (float64, error) {
	if o.Payoff == nil {
		return 0, ErrNilPayoff
	}

	maturityIndex, err := lattice.TimeIndex(o.Maturity)
	if err != nil {
		return 0, fmt.Errorf("american maturity %v: %w", o.Maturity, err)
	}
	optionValues, err := lattice.TransformedValuesAtTimeIndex(maturityIndex, o.Payoff)
	if err != nil {
		return 0, err
	}

	for timeIndex := maturityIndex - 1; timeIndex >= 0; timeIndex-- {
		continuation := lattice.ConditionalExpectation(optionValues)
		exercise, err := lattice.TransformedValuesAtTimeIndex(timeIndex, o.Payoff)
		if err != nil {
			return 0, err
		}
		for j := range continuation {
			if exercise[j] >= continuation[j] {
				continuation[j] = exercise[j]
			}
		}
		optionValues = continuation
	}

	return optionValues[0], nil
}
