package models

import (
	"fmt"
	"math"
	"sync"
)

// Grid is the discretisation a Calibration fits its up and down factors to.
type Grid struct {
	InitialPrice  float64 // Spot at time index 0
	RiskFreeRate  float64 // Continuously compounded annual rate
	Volatility    float64 // Annualised Black-Scholes volatility
	TimeStep      float64 // Length of one lattice step in years
	NumberOfTimes int     // Time indices on the lattice, so NumberOfTimes-1 steps
}

// Steps returns the number of moves between the first and last time index.
func (g Grid) Steps() int {
	return g.NumberOfTimes - 1
}

// Calibration maps the continuous-time model onto the multiplicative
// factors of a single lattice step.
type Calibration interface {
	Name() string
	UpDownFactors(grid Grid) (up, down float64, err error)
}

// BinomialModel is a recombining binomial lattice approximating a
// Black-Scholes asset. Node values and node probabilities are generated on
// first demand and cached; both caches are generated at most once and are
// safe for concurrent readers.
//
// Row k of either lattice has k+1 entries indexed by the number of down
// moves j, so entry 0 is the highest price.
type BinomialModel struct {
	initialPrice  float64
	lastTime      float64
	timeStep      float64
	numberOfTimes int

	upFactor        float64
	downFactor      float64
	riskFreeFactor  float64 // rho = exp(r*dt) - 1, not the rate itself
	probabilityUp   float64
	probabilityDown float64
	calibration     Calibration

	valuesOnce        sync.Once
	values            [][]float64
	probabilitiesOnce sync.Once
	probabilities     [][]float64
}

// NewBinomialModel builds a lattice over [0, lastTime] with numberOfTimes
// time indices, so the time step is lastTime/(numberOfTimes-1).
func NewBinomialModel(initialPrice, riskFreeRate, volatility, lastTime float64, numberOfTimes int, calibration Calibration) (*BinomialModel, error) {
	if numberOfTimes < 1 {
		return nil, fmt.Errorf("number of times %d must be at least 1: %w", numberOfTimes, ErrInvalidParameter)
	}

	timeStep := 0.0
	if numberOfTimes > 1 {
		timeStep = lastTime / float64(numberOfTimes-1)
	}

	return newBinomialModel(initialPrice, riskFreeRate, volatility, lastTime, timeStep, numberOfTimes, calibration)
}

// NewBinomialModelWithTimeStep builds a lattice over [0, lastTime] with the
// given time step; the number of time indices is round(lastTime/timeStep)+1.
func NewBinomialModelWithTimeStep(initialPrice, riskFreeRate, volatility, lastTime, timeStep float64, calibration Calibration) (*BinomialModel, error) {
	if !(timeStep > 0) || math.IsInf(timeStep, 0) {
		return nil, fmt.Errorf("time step %v must be positive and finite: %w", timeStep, ErrInvalidParameter)
	}
	if !(lastTime >= 0) || math.IsInf(lastTime, 0) {
		return nil, fmt.Errorf("last time %v must be non-negative and finite: %w", lastTime, ErrInvalidParameter)
	}

	numberOfTimes := int(math.Round(lastTime/timeStep)) + 1

	return newBinomialModel(initialPrice, riskFreeRate, volatility, lastTime, timeStep, numberOfTimes, calibration)
}

func newBinomialModel(initialPrice, riskFreeRate, volatility, lastTime, timeStep float64, numberOfTimes int, calibration Calibration) (*BinomialModel, error) {
	switch {
	case calibration == nil:
		return nil, fmt.Errorf("nil calibration: %w", ErrInvalidParameter)
	case !(initialPrice > 0) || math.IsInf(initialPrice, 0):
		return nil, fmt.Errorf("initial price %v must be positive and finite: %w", initialPrice, ErrInvalidParameter)
	case math.IsNaN(riskFreeRate) || math.IsInf(riskFreeRate, 0):
		return nil, fmt.Errorf("risk-free rate %v must be finite: %w", riskFreeRate, ErrInvalidParameter)
	case !(volatility >= 0) || math.IsInf(volatility, 0):
		return nil, fmt.Errorf("volatility %v must be non-negative and finite: %w", volatility, ErrInvalidParameter)
	case !(lastTime >= 0) || math.IsInf(lastTime, 0):
		return nil, fmt.Errorf("last time %v must be non-negative and finite: %w", lastTime, ErrInvalidParameter)
	case numberOfTimes > 1 && !(timeStep > 0):
		return nil, fmt.Errorf("time step %v must be positive when the lattice has steps: %w", timeStep, ErrInvalidParameter)
	}

	m := &BinomialModel{
		initialPrice:    initialPrice,
		lastTime:        lastTime,
		timeStep:        timeStep,
		numberOfTimes:   numberOfTimes,
		upFactor:        1,
		downFactor:      1,
		probabilityUp:   1,
		probabilityDown: 0,
		calibration:     calibration,
	}

	// A single time index has no steps to calibrate.
	if numberOfTimes == 1 {
		return m, nil
	}

	up, down, err := calibration.UpDownFactors(Grid{
		InitialPrice:  initialPrice,
		RiskFreeRate:  riskFreeRate,
		Volatility:    volatility,
		TimeStep:      timeStep,
		NumberOfTimes: numberOfTimes,
	})
	if err != nil {
		return nil, fmt.Errorf("%s calibration: %w", calibration.Name(), err)
	}
	if math.IsNaN(up) || math.IsNaN(down) || math.IsInf(up, 0) || math.IsInf(down, 0) || !(down > 0) {
		return nil, fmt.Errorf("%s calibration produced u=%v d=%v: %w", calibration.Name(), up, down, ErrInvalidParameter)
	}
	if up <= down {
		return nil, fmt.Errorf("%s calibration produced u=%v d=%v: %w", calibration.Name(), up, down, ErrDegenerateLattice)
	}

	rho := math.Expm1(riskFreeRate * timeStep)
	q := (1 + rho - down) / (up - down)
	if !(q >= 0 && q <= 1) {
		return nil, fmt.Errorf("%s calibration: q=%v with d=%v, 1+rho=%v, u=%v: %w", calibration.Name(), q, down, 1+rho, up, ErrArbitrage)
	}

	m.upFactor = up
	m.downFactor = down
	m.riskFreeFactor = rho
	m.probabilityUp = q
	m.probabilityDown = 1 - q

	return m, nil
}

// TimeIndex snaps a time to the nearest lattice index, rounding halves away
// from zero. Times that snap outside the lattice are an error.
func (m *BinomialModel) TimeIndex(time float64) (int, error) {
	if math.IsNaN(time) || math.IsInf(time, 0) {
		return 0, fmt.Errorf("time %v: %w", time, ErrTimeIndexOutOfRange)
	}

	if m.numberOfTimes == 1 {
		if time < 0 || time > m.lastTime {
			return 0, fmt.Errorf("time %v outside [0, %v]: %w", time, m.lastTime, ErrTimeIndexOutOfRange)
		}
		return 0, nil
	}

	index := math.Round(time / m.timeStep)
	if index < 0 || index >= float64(m.numberOfTimes) {
		return 0, fmt.Errorf("time %v rounds to index %v, lattice has %d times: %w", time, index, m.numberOfTimes, ErrTimeIndexOutOfRange)
	}
	return int(index), nil
}

func (m *BinomialModel) checkTimeIndex(timeIndex int) error {
	if timeIndex < 0 || timeIndex >= m.numberOfTimes {
		return fmt.Errorf("index %d, lattice has %d times: %w", timeIndex, m.numberOfTimes, ErrTimeIndexOutOfRange)
	}
	return nil
}

// ValuesAtTimeIndex returns the timeIndex+1 possible prices after timeIndex
// moves, ordered by number of down moves.
func (m *BinomialModel) ValuesAtTimeIndex(timeIndex int) ([]float64, error) {
	if err := m.checkTimeIndex(timeIndex); err != nil {
		return nil, err
	}
	m.valuesOnce.Do(m.generateValues)

	return append([]float64(nil), m.values[timeIndex]...), nil
}

// ValuesAtTime is ValuesAtTimeIndex at the index nearest to time.
func (m *BinomialModel) ValuesAtTime(time float64) ([]float64, error) {
	timeIndex, err := m.TimeIndex(time)
	if err != nil {
		return nil, err
	}
	return m.ValuesAtTimeIndex(timeIndex)
}

// TransformedValuesAtTimeIndex applies transform to every price at
// timeIndex, typically to turn prices into payoffs.
func (m *BinomialModel) TransformedValuesAtTimeIndex(timeIndex int, transform func(float64) float64) ([]float64, error) {
	values, err := m.ValuesAtTimeIndex(timeIndex)
	if err != nil {
		return nil, err
	}
	for i, v := range values {
		values[i] = transform(v)
	}
	return values, nil
}

// TransformedValuesAtTime is TransformedValuesAtTimeIndex at the index
// nearest to time.
func (m *BinomialModel) TransformedValuesAtTime(time float64, transform func(float64) float64) ([]float64, error) {
	timeIndex, err := m.TimeIndex(time)
	if err != nil {
		return nil, err
	}
	return m.TransformedValuesAtTimeIndex(timeIndex, transform)
}

// ProbabilitiesAtTimeIndex returns the risk-neutral probability of reaching
// each node at timeIndex. The row sums to one.
func (m *BinomialModel) ProbabilitiesAtTimeIndex(timeIndex int) ([]float64, error) {
	if err := m.checkTimeIndex(timeIndex); err != nil {
		return nil, err
	}
	m.probabilitiesOnce.Do(m.generateProbabilities)

	return append([]float64(nil), m.probabilities[timeIndex]...), nil
}

// ProbabilitiesAtTime is ProbabilitiesAtTimeIndex at the index nearest to
// time.
func (m *BinomialModel) ProbabilitiesAtTime(time float64) ([]float64, error) {
	timeIndex, err := m.TimeIndex(time)
	if err != nil {
		return nil, err
	}
	return m.ProbabilitiesAtTimeIndex(timeIndex)
}

// ConditionalExpectation steps a row of m values one index back in time,
// returning the m-1 discounted risk-neutral expectations
// (v[j]*q + v[j+1]*(1-q)) / (1+rho). It does not know which index the row
// belongs to.
func (m *BinomialModel) ConditionalExpectation(values []float64) []float64 {
	if len(values) < 2 {
		return []float64{}
	}

	growth := 1 + m.riskFreeFactor
	expectations := make([]float64, len(values)-1)
	for j := range expectations {
		expectations[j] = (values[j]*m.probabilityUp + values[j+1]*m.probabilityDown) / growth
	}
	return expectations
}

// DiscountFactor is (1+rho)^-timeIndex.
func (m *BinomialModel) DiscountFactor(timeIndex int) float64 {
	return math.Pow(1+m.riskFreeFactor, -float64(timeIndex))
}

func (m *BinomialModel) generateValues() {
	upPowers := make([]float64, m.numberOfTimes)
	downPowers := make([]float64, m.numberOfTimes)
	for i := range upPowers {
		upPowers[i] = math.Pow(m.upFactor, float64(i))
		downPowers[i] = math.Pow(m.downFactor, float64(i))
	}

	values := make([][]float64, m.numberOfTimes)
	for k := range values {
		row := make([]float64, k+1)
		for numberOfDowns := 0; numberOfDowns <= k; numberOfDowns++ {
			row[numberOfDowns] = m.initialPrice * upPowers[k-numberOfDowns] * downPowers[numberOfDowns]
		}
		values[k] = row
	}
	m.values = values
}

// generateProbabilities builds C(k,j) q^(k-j) (1-q)^j row by row. The
// binomial coefficient follows C(k,j+1) = C(k,j)(k-j)/(j+1) from C(k,0) = 1,
// accumulated in log space so large rows neither overflow nor underflow.
func (m *BinomialModel) generateProbabilities() {
	logUp := math.Log(m.probabilityUp)
	logDown := math.Log(m.probabilityDown)

	probabilities := make([][]float64, m.numberOfTimes)
	for k := range probabilities {
		row := make([]float64, k+1)
		logBinomial := 0.0
		for numberOfDowns := 0; numberOfDowns <= k; numberOfDowns++ {
			numberOfUps := k - numberOfDowns
			row[numberOfDowns] = math.Exp(logBinomial + logPower(numberOfUps, logUp) + logPower(numberOfDowns, logDown))
			if numberOfUps > 0 {
				logBinomial += math.Log(float64(numberOfUps)) - math.Log(float64(numberOfDowns+1))
			}
		}
		probabilities[k] = row
	}
	m.probabilities = probabilities
}

// logPower is n*log(p) with 0*log(0) taken as 0.
func logPower(n int, logP float64) float64 {
	if n == 0 {
		return 0
	}
	return float64(n) * logP
}

func (m *BinomialModel) InitialPrice() float64 { return m.initialPrice }

func (m *BinomialModel) LastTime() float64 { return m.lastTime }

func (m *BinomialModel) TimeStep() float64 { return m.timeStep }

func (m *BinomialModel) NumberOfTimes() int { return m.numberOfTimes }

func (m *BinomialModel) UpFactor() float64 { return m.upFactor }

func (m *BinomialModel) DownFactor() float64 { return m.downFactor }

// RiskFreeFactor is rho = exp(r*dt) - 1, the growth of one unit of cash over
// one step minus one.
func (m *BinomialModel) RiskFreeFactor() float64 { return m.riskFreeFactor }

// UpAndDownProbabilities returns the risk-neutral q and 1-q.
func (m *BinomialModel) UpAndDownProbabilities() (up, down float64) {
	return m.probabilityUp, m.probabilityDown
}

func (m *BinomialModel) Calibration() Calibration { return m.calibration }
