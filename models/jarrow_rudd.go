package models

import (
	"fmt"
	"math"
)

// JarrowRudd centres the log moves on the risk-neutral drift (r - sigma^2/2)dt
// so both moves are roughly equally likely. Contract agnostic.
type JarrowRudd struct{}

func NewJarrowRudd() *JarrowRudd {
	return &JarrowRudd{}
}

func (JarrowRudd) Name() string {
	return "Jarrow-Rudd"
}

func (JarrowRudd) UpDownFactors(grid Grid) (float64, float64, error) {
	if !(grid.TimeStep > 0) {
		return 0, 0, fmt.Errorf("time step %v: %w", grid.TimeStep, ErrInvalidParameter)
	}

	drift := (grid.RiskFreeRate - grid.Volatility*grid.Volatility/2) * grid.TimeStep
	diffusion := grid.Volatility * math.Sqrt(grid.TimeStep)

	return math.Exp(drift + diffusion), math.Exp(drift - diffusion), nil
}
