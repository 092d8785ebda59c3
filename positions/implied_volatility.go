package positions

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/optimize"
)

const impliedVolatilityTolerance = 1e-4

// ImpliedVolatility finds the volatility at which v, priced on a lattice
// built by factory with numberOfTimes times, matches targetPrice. The
// search minimizes the squared pricing error with Nelder-Mead starting from
// market.Volatility (or 0.3 when that is unset); market.Volatility itself is
// otherwise ignored.
func ImpliedVolatility(v Valuator, factory LatticeFactory, market Market, numberOfTimes int, targetPrice float64) (float64, error) {
	if math.IsNaN(targetPrice) || targetPrice <= 0 {
		return 0, fmt.Errorf("target price %v: %w", targetPrice, ErrNoConvergence)
	}

	initial := market.Volatility
	if initial <= 0 || math.IsNaN(initial) {
		initial = 0.3
	}

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			trial := market
			trial.Volatility = math.Abs(x[0])
			price, err := priceOn(v, factory, trial, numberOfTimes)
			if err != nil {
				return math.Inf(1)
			}
			return (price - targetPrice) * (price - targetPrice)
		},
	}

	result, err := optimize.Minimize(problem, []float64{initial}, nil, &optimize.NelderMead{})
	if err != nil {
		return 0, err
	}

	sigma := math.Abs(result.X[0])
	if math.Sqrt(result.F) > impliedVolatilityTolerance*math.Max(1, targetPrice) {
		return sigma, fmt.Errorf("implied volatility stopped at %v with error %v: %w", sigma, math.Sqrt(result.F), ErrNoConvergence)
	}
	return sigma, nil
}
