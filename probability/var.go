package probability

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// CalculateVaR is the loss not exceeded with probability confidenceLevel
// over the simulated profit and loss outcomes.
func CalculateVaR(pnl []float64, confidenceLevel float64) (float64, error) {
	if len(pnl) == 0 {
		return 0, fmt.Errorf("no outcomes: %w", ErrInvalidSimulation)
	}
	if !(confidenceLevel > 0 && confidenceLevel < 1) {
		return 0, fmt.Errorf("confidence level %v: %w", confidenceLevel, ErrInvalidSimulation)
	}

	// Convert profit to loss
	losses := make([]float64, len(pnl))
	for i, p := range pnl {
		losses[i] = -p
	}
	sort.Float64s(losses)

	return stat.Quantile(confidenceLevel, stat.Empirical, losses, nil), nil
}

// ValueAtRisk is the horizon VaR of a long position bought for premium
// that pays payoff(S_T) at maturity.
func (s *Simulator) ValueAtRisk(payoff func(float64) float64, premium, confidenceLevel float64) (float64, error) {
	if math.IsNaN(premium) {
		return 0, fmt.Errorf("premium %v: %w", premium, ErrInvalidSimulation)
	}
	pnl, err := s.simulate(func(path []float64) float64 {
		return payoff(path[len(path)-1]) - premium
	})
	if err != nil {
		return 0, err
	}
	return CalculateVaR(pnl, confidenceLevel)
}
