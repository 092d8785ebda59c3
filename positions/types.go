package positions

import (
	"errors"

	"github.com/bcdannyboy/lattice/models"
)

var (
	// ErrNilPayoff is returned when a contract has no payoff function.
	ErrNilPayoff = errors.New("nil payoff function")
	// ErrInvalidBarrier is returned when the lower barrier exceeds the upper one.
	ErrInvalidBarrier = errors.New("lower barrier above upper barrier")
	// ErrNoConvergence is returned when an iterative solve misses its target.
	ErrNoConvergence = errors.New("solver did not converge")
)

// Payoff maps the underlying price to the contract's cash flow.
type Payoff func(underlying float64) float64

// Lattice is what a valuator needs from a binomial model. It is satisfied
// by *models.BinomialModel.
type Lattice interface {
	TimeIndex(time float64) (int, error)
	ValuesAtTimeIndex(timeIndex int) ([]float64, error)
	TransformedValuesAtTimeIndex(timeIndex int, transform func(float64) float64) ([]float64, error)
	ProbabilitiesAtTimeIndex(timeIndex int) ([]float64, error)
	ConditionalExpectation(values []float64) []float64
	DiscountFactor(timeIndex int) float64
}

// Valuator prices one contract on a lattice. Implementations hold only
// contract terms and may be reused across lattices.
type Valuator interface {
	Name() string
	Value(lattice Lattice) (float64, error)
}

// Market holds the Black-Scholes inputs a lattice is fitted to.
type Market struct {
	Spot         float64 `json:"spot"`
	RiskFreeRate float64 `json:"risk_free_rate"`
	Volatility   float64 `json:"volatility"`
}

// LatticeFactory builds lattices over a fixed horizon with one calibration,
// letting callers vary the market and the number of times.
type LatticeFactory struct {
	LastTime    float64
	Calibration models.Calibration
}

func NewLatticeFactory(lastTime float64, calibration models.Calibration) LatticeFactory {
	return LatticeFactory{
		LastTime:    lastTime,
		Calibration: calibration,
	}
}

func (f LatticeFactory) Build(market Market, numberOfTimes int) (*models.BinomialModel, error) {
	return models.NewBinomialModel(market.Spot, market.RiskFreeRate, market.Volatility, f.LastTime, numberOfTimes, f.Calibration)
}

type Greeks struct {
	Price float64 `json:"price"`
	Delta float64 `json:"delta"`
	Gamma float64 `json:"gamma"`
	Vega  float64 `json:"vega"`
	Rho   float64 `json:"rho"`
}
