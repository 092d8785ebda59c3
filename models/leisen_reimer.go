package models

import (
	"fmt"
	"math"
)

// LeisenReimer matches the lattice's terminal probabilities to the
// Black-Scholes N(d1) and N(d2) through the Peizer-Pratt inversion (method
// 2), which removes most of the odd-even oscillation of CRR. The factors
// depend on strike and maturity, so a lattice built with it belongs to one
// contract. Odd step counts converge best; OddStepTimes picks one.
type LeisenReimer struct {
	Strike   float64 // Strike of the contract the lattice is fitted to
	Maturity float64 // Maturity of that contract in years
}

func NewLeisenReimer(strike, maturity float64) *LeisenReimer {
	return &LeisenReimer{
		Strike:   strike,
		Maturity: maturity,
	}
}

func (lr *LeisenReimer) Name() string {
	return "Leisen-Reimer"
}

func (lr *LeisenReimer) UpDownFactors(grid Grid) (float64, float64, error) {
	switch {
	case !(lr.Strike > 0):
		return 0, 0, fmt.Errorf("strike %v: %w", lr.Strike, ErrInvalidParameter)
	case !(lr.Maturity > 0):
		return 0, 0, fmt.Errorf("maturity %v: %w", lr.Maturity, ErrInvalidParameter)
	case !(grid.Volatility > 0):
		return 0, 0, fmt.Errorf("volatility %v: %w", grid.Volatility, ErrInvalidParameter)
	case !(grid.TimeStep > 0):
		return 0, 0, fmt.Errorf("time step %v: %w", grid.TimeStep, ErrInvalidParameter)
	}

	steps := int(math.Round(lr.Maturity / grid.TimeStep))
	if steps < 1 {
		return 0, 0, fmt.Errorf("maturity %v shorter than half a step %v: %w", lr.Maturity, grid.TimeStep, ErrInvalidParameter)
	}

	d1, d2 := blackScholesD1D2(grid.InitialPrice, lr.Strike, grid.RiskFreeRate, grid.Volatility, lr.Maturity)

	p := PeizerPrattInversion(d2, steps)
	pPrime := PeizerPrattInversion(d1, steps)
	growth := math.Exp(grid.RiskFreeRate * grid.TimeStep)

	up := growth * pPrime / p
	down := growth * (1 - pPrime) / (1 - p)
	return up, down, nil
}

// OddStepTimes returns the smallest number of times at or above
// numberOfTimes whose step count is odd. A single time is left alone.
func OddStepTimes(numberOfTimes int) int {
	if numberOfTimes > 1 && (numberOfTimes-1)%2 == 0 {
		return numberOfTimes + 1
	}
	return numberOfTimes
}

// PeizerPrattInversion approximates the binomial probability whose
// n-step tail matches the standard normal tail at z.
func PeizerPrattInversion(z float64, steps int) float64 {
	n := float64(steps)
	x := z / (n + 1.0/3.0 + 0.1/(n+1))
	return 0.5 + math.Copysign(0.5, z)*math.Sqrt(1-math.Exp(-x*x*(n+1.0/6.0)))
}

func blackScholesD1D2(spot, strike, rate, volatility, maturity float64) (float64, float64) {
	volSqrtT := volatility * math.Sqrt(maturity)
	d1 := (math.Log(spot/strike) + (rate+0.5*volatility*volatility)*maturity) / volSqrtT
	return d1, d1 - volSqrtT
}
