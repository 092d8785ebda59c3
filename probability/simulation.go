package probability

import (
	"errors"
	"fmt"
	"math"
	"runtime"
	"sync"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

const batchSize = 1000

var ErrInvalidSimulation = errors.New("invalid simulation parameters")

// Simulator draws discretised paths of a scheme. Paths are split into
// fixed batches and batch b draws from a source seeded with Seed+b, so a
// seed gives the same paths whatever the number of workers.
type Simulator struct {
	Scheme              Scheme
	InitialValue        float64
	TimeStep            float64
	NumberOfSteps       int
	NumberOfSimulations int
	Seed                uint64
	Workers             int // 0 uses every CPU
}

// Estimate is a Monte Carlo mean with its standard error.
type Estimate struct {
	Price  float64 `json:"price"`
	StdErr float64 `json:"std_err"`
}

// Maturity is the time of the last simulated step.
func (s *Simulator) Maturity() float64 {
	return s.TimeStep * float64(s.NumberOfSteps)
}

// EuropeanPrice discounts payoff(S_T) at the continuous rate r.
func (s *Simulator) EuropeanPrice(payoff func(float64) float64, r float64) (Estimate, error) {
	discount := math.Exp(-r * s.Maturity())
	outcomes, err := s.simulate(func(path []float64) float64 {
		return discount * payoff(path[len(path)-1])
	})
	if err != nil {
		return Estimate{}, err
	}
	return estimate(outcomes), nil
}

// BarrierPrice is EuropeanPrice for a knock-out contract: a path pays
// nothing once any simulated value, the initial one included, leaves
// [lower, upper].
func (s *Simulator) BarrierPrice(payoff func(float64) float64, r, lower, upper float64) (Estimate, error) {
	if math.IsNaN(lower) || math.IsNaN(upper) || lower > upper {
		return Estimate{}, fmt.Errorf("barriers [%v, %v]: %w", lower, upper, ErrInvalidSimulation)
	}

	discount := math.Exp(-r * s.Maturity())
	outcomes, err := s.simulate(func(path []float64) float64 {
		for _, x := range path {
			if x < lower || x > upper {
				return 0
			}
		}
		return discount * payoff(path[len(path)-1])
	})
	if err != nil {
		return Estimate{}, err
	}
	return estimate(outcomes), nil
}

// TerminalValues returns S_T for every simulated path, in path order.
func (s *Simulator) TerminalValues() ([]float64, error) {
	return s.simulate(func(path []float64) float64 {
		return path[len(path)-1]
	})
}

func (s *Simulator) validate() error {
	switch {
	case s.Scheme == nil:
		return fmt.Errorf("nil scheme: %w", ErrInvalidSimulation)
	case !(s.InitialValue > 0) || math.IsInf(s.InitialValue, 0):
		return fmt.Errorf("initial value %v: %w", s.InitialValue, ErrInvalidSimulation)
	case !(s.TimeStep > 0) || math.IsInf(s.TimeStep, 0):
		return fmt.Errorf("time step %v: %w", s.TimeStep, ErrInvalidSimulation)
	case s.NumberOfSteps < 1:
		return fmt.Errorf("number of steps %d: %w", s.NumberOfSteps, ErrInvalidSimulation)
	case s.NumberOfSimulations < 2:
		return fmt.Errorf("number of simulations %d: %w", s.NumberOfSimulations, ErrInvalidSimulation)
	}
	return nil
}

// simulate evaluates outcome on every path. The path slice passed to
// outcome holds NumberOfSteps+1 values and is reused between calls.
func (s *Simulator) simulate(outcome func(path []float64) float64) ([]float64, error) {
	if err := s.validate(); err != nil {
		return nil, err
	}

	numWorkers := s.Workers
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	numBatches := (s.NumberOfSimulations + batchSize - 1) / batchSize

	outcomes := make([]float64, s.NumberOfSimulations)
	var wg sync.WaitGroup
	semaphore := make(chan struct{}, numWorkers)

	for b := 0; b < numBatches; b++ {
		wg.Add(1)
		go func(b int) {
			defer wg.Done()
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			first := b * batchSize
			last := first + batchSize
			if last > s.NumberOfSimulations {
				last = s.NumberOfSimulations
			}
			s.simulateBatch(s.Seed+uint64(b), outcomes[first:last], outcome)
		}(b)
	}

	wg.Wait()
	return outcomes, nil
}

func (s *Simulator) simulateBatch(seed uint64, outcomes []float64, outcome func(path []float64) float64) {
	normal := distuv.Normal{
		Mu:    0,
		Sigma: math.Sqrt(s.TimeStep),
		Src:   rand.NewSource(seed),
	}

	path := make([]float64, s.NumberOfSteps+1)
	for i := range outcomes {
		path[0] = s.InitialValue
		for k := 1; k <= s.NumberOfSteps; k++ {
			path[k] = s.Scheme.Step(path[k-1], s.TimeStep, normal.Rand())
		}
		outcomes[i] = outcome(path)
	}
}

func estimate(outcomes []float64) Estimate {
	mean, std := stat.MeanStdDev(outcomes, nil)
	return Estimate{
		Price:  mean,
		StdErr: std / math.Sqrt(float64(len(outcomes))),
	}
}
