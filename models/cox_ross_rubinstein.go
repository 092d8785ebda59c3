package models

import (
	"fmt"
	"math"
)

// CoxRossRubinstein picks symmetric log moves, u = exp(sigma*sqrt(dt)) and
// d = 1/u. It does not depend on the contract being priced.
type CoxRossRubinstein struct{}

func NewCoxRossRubinstein() *CoxRossRubinstein {
	return &CoxRossRubinstein{}
}

func (CoxRossRubinstein) Name() string {
	return "Cox-Ross-Rubinstein"
}

func (CoxRossRubinstein) UpDownFactors(grid Grid) (float64, float64, error) {
	if !(grid.TimeStep > 0) {
		return 0, 0, fmt.Errorf("time step %v: %w", grid.TimeStep, ErrInvalidParameter)
	}

	up := math.Exp(grid.Volatility * math.Sqrt(grid.TimeStep))
	return up, 1 / up, nil
}
