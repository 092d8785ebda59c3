package models

import (
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
)

func newCRR(t *testing.T, numberOfTimes int) *BinomialModel {
	t.Helper()
	m, err := NewBinomialModel(100, 0.03, 0.2, 1, numberOfTimes, NewCoxRossRubinstein())
	require.NoError(t, err)
	return m
}

func TestBinomialModel_Parameters(t *testing.T) {
	m := newCRR(t, 11)

	assert.InDelta(t, 0.1, m.TimeStep(), 1e-15)
	assert.Equal(t, 11, m.NumberOfTimes())
	assert.Equal(t, 100.0, m.InitialPrice())
	assert.Equal(t, 1.0, m.LastTime())
	assert.InDelta(t, math.Exp(0.2*math.Sqrt(0.1)), m.UpFactor(), 1e-15)
	assert.InDelta(t, 1/m.UpFactor(), m.DownFactor(), 1e-15)
	assert.InDelta(t, math.Exp(0.003)-1, m.RiskFreeFactor(), 1e-15)

	up, down := m.UpAndDownProbabilities()
	assert.InDelta(t, (1+m.RiskFreeFactor()-m.DownFactor())/(m.UpFactor()-m.DownFactor()), up, 1e-15)
	assert.InDelta(t, 1.0, up+down, 1e-15)
	assert.Equal(t, "Cox-Ross-Rubinstein", m.Calibration().Name())
}

func TestBinomialModel_ValuesShapeAndOrder(t *testing.T) {
	m := newCRR(t, 50)

	for k := 0; k < m.NumberOfTimes(); k++ {
		values, err := m.ValuesAtTimeIndex(k)
		require.NoError(t, err)
		require.Len(t, values, k+1)
		for j := 1; j < len(values); j++ {
			assert.Less(t, values[j], values[j-1], "k=%d j=%d", k, j)
		}
	}

	values, err := m.ValuesAtTimeIndex(3)
	require.NoError(t, err)
	u, d := m.UpFactor(), m.DownFactor()
	assert.InDelta(t, 100*u*u*u, values[0], 1e-9)
	assert.InDelta(t, 100*u*u*d, values[1], 1e-9)
	assert.InDelta(t, 100*d*d*d, values[3], 1e-9)
}

func TestBinomialModel_ProbabilitiesSumToOne(t *testing.T) {
	for _, numberOfTimes := range []int{1, 2, 10, 500, 1500} {
		m := newCRR(t, numberOfTimes)
		for k := 0; k < numberOfTimes; k += 1 + numberOfTimes/50 {
			probabilities, err := m.ProbabilitiesAtTimeIndex(k)
			require.NoError(t, err)
			require.Len(t, probabilities, k+1)
			assert.InDelta(t, 1.0, floats.Sum(probabilities), 1e-9, "N=%d k=%d", numberOfTimes, k)
		}
		last, err := m.ProbabilitiesAtTimeIndex(numberOfTimes - 1)
		require.NoError(t, err)
		assert.InDelta(t, 1.0, floats.Sum(last), 1e-9, "N=%d last row", numberOfTimes)
	}
}

func TestBinomialModel_ProbabilitiesMatchBinomialLaw(t *testing.T) {
	m := newCRR(t, 5)
	q, p := m.UpAndDownProbabilities()

	row, err := m.ProbabilitiesAtTimeIndex(4)
	require.NoError(t, err)
	coefficients := []float64{1, 4, 6, 4, 1}
	for j, c := range coefficients {
		assert.InDelta(t, c*math.Pow(q, float64(4-j))*math.Pow(p, float64(j)), row[j], 1e-14)
	}
}

func TestBinomialModel_Idempotent(t *testing.T) {
	m := newCRR(t, 30)

	first, err := m.ValuesAtTimeIndex(20)
	require.NoError(t, err)
	first[0] = -1 // callers get copies

	second, err := m.ValuesAtTimeIndex(20)
	require.NoError(t, err)
	third, err := m.ValuesAtTimeIndex(20)
	require.NoError(t, err)
	assert.Equal(t, second, third)
	assert.Greater(t, second[0], 0.0)

	p1, err := m.ProbabilitiesAtTimeIndex(29)
	require.NoError(t, err)
	p2, err := m.ProbabilitiesAtTimeIndex(29)
	require.NoError(t, err)
	assert.Equal(t, p1, p2)
}

func TestBinomialModel_ConcurrentReaders(t *testing.T) {
	m := newCRR(t, 200)
	want, err := newCRR(t, 200).ValuesAtTimeIndex(199)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			values, err := m.ValuesAtTimeIndex(199)
			assert.NoError(t, err)
			assert.Equal(t, want, values)
			probabilities, err := m.ProbabilitiesAtTimeIndex(199)
			assert.NoError(t, err)
			assert.InDelta(t, 1.0, floats.Sum(probabilities), 1e-9)
		}()
	}
	wg.Wait()
}

func TestBinomialModel_ConditionalExpectation(t *testing.T) {
	m := newCRR(t, 11)
	q, _ := m.UpAndDownProbabilities()
	growth := 1 + m.RiskFreeFactor()

	t.Run("constant row has no drift once discount is folded out", func(t *testing.T) {
		out := m.ConditionalExpectation([]float64{7, 7, 7, 7})
		require.Len(t, out, 3)
		for _, v := range out {
			assert.InDelta(t, 7.0, v*growth, 1e-12)
		}
	})

	t.Run("arithmetic", func(t *testing.T) {
		out := m.ConditionalExpectation([]float64{10, 4})
		require.Len(t, out, 1)
		assert.InDelta(t, (10*q+4*(1-q))/growth, out[0], 1e-14)
	})

	t.Run("discounted prices are a martingale", func(t *testing.T) {
		next, err := m.ValuesAtTimeIndex(6)
		require.NoError(t, err)
		current, err := m.ValuesAtTimeIndex(5)
		require.NoError(t, err)
		assert.InDeltaSlice(t, current, m.ConditionalExpectation(next), 1e-10)
	})

	t.Run("short rows", func(t *testing.T) {
		assert.Empty(t, m.ConditionalExpectation([]float64{3}))
		assert.Empty(t, m.ConditionalExpectation(nil))
	})
}

func TestBinomialModel_TransformedValues(t *testing.T) {
	m := newCRR(t, 11)
	payoff := func(x float64) float64 { return math.Max(x-100, 0) }

	values, err := m.ValuesAtTimeIndex(10)
	require.NoError(t, err)
	transformed, err := m.TransformedValuesAtTimeIndex(10, payoff)
	require.NoError(t, err)
	for j := range values {
		assert.Equal(t, payoff(values[j]), transformed[j])
	}

	byTime, err := m.TransformedValuesAtTime(1, payoff)
	require.NoError(t, err)
	assert.Equal(t, transformed, byTime)
}

func TestBinomialModel_OutOfRange(t *testing.T) {
	m := newCRR(t, 11)

	for _, k := range []int{-1, 11, 100} {
		_, err := m.ValuesAtTimeIndex(k)
		assert.ErrorIs(t, err, ErrTimeIndexOutOfRange, "k=%d", k)
		_, err = m.ProbabilitiesAtTimeIndex(k)
		assert.ErrorIs(t, err, ErrTimeIndexOutOfRange, "k=%d", k)
	}

	for _, time := range []float64{-1, 1.06, math.NaN(), math.Inf(1)} {
		_, err := m.ValuesAtTime(time)
		assert.ErrorIs(t, err, ErrTimeIndexOutOfRange, "t=%v", time)
	}
}

func TestBinomialModel_TimeRounding(t *testing.T) {
	m, err := NewBinomialModel(1, 0, 0.3, 1, 5, NewCoxRossRubinstein())
	require.NoError(t, err)
	require.Equal(t, 0.25, m.TimeStep())

	cases := []struct {
		time float64
		want int
	}{
		{0, 0},
		{0.1, 0},
		{0.125, 1}, // half step rounds up
		{0.375, 2},
		{0.625, 3},
		{0.874, 3},
		{0.875, 4},
		{1.1, 4},
	}
	for _, tc := range cases {
		index, err := m.TimeIndex(tc.time)
		require.NoError(t, err, "t=%v", tc.time)
		assert.Equal(t, tc.want, index, "t=%v", tc.time)
	}

	byTime, err := m.ValuesAtTime(0.625)
	require.NoError(t, err)
	byIndex, err := m.ValuesAtTimeIndex(3)
	require.NoError(t, err)
	assert.Equal(t, byIndex, byTime)

	_, err = m.TimeIndex(1.125)
	assert.ErrorIs(t, err, ErrTimeIndexOutOfRange)
}

func TestBinomialModel_ConstructorsAgree(t *testing.T) {
	calibrations := []Calibration{NewCoxRossRubinstein(), NewJarrowRudd(), NewLeisenReimer(1.1, 2)}
	for _, calibration := range calibrations {
		byCount, err := NewBinomialModel(1, 0.04, 0.35, 2, 41, calibration)
		require.NoError(t, err)
		byStep, err := NewBinomialModelWithTimeStep(1, 0.04, 0.35, 2, 2.0/40, calibration)
		require.NoError(t, err)

		assert.Equal(t, byCount.NumberOfTimes(), byStep.NumberOfTimes(), calibration.Name())
		assert.Equal(t, byCount.TimeStep(), byStep.TimeStep(), calibration.Name())
		assert.Equal(t, byCount.UpFactor(), byStep.UpFactor(), calibration.Name())
		assert.Equal(t, byCount.DownFactor(), byStep.DownFactor(), calibration.Name())

		a, err := byCount.ProbabilitiesAtTimeIndex(40)
		require.NoError(t, err)
		b, err := byStep.ProbabilitiesAtTimeIndex(40)
		require.NoError(t, err)
		assert.Equal(t, a, b, calibration.Name())
	}
}

func TestBinomialModel_SingleTime(t *testing.T) {
	m, err := NewBinomialModel(42, 0.05, 0.2, 1, 1, NewCoxRossRubinstein())
	require.NoError(t, err)

	values, err := m.ValuesAtTimeIndex(0)
	require.NoError(t, err)
	assert.Equal(t, []float64{42}, values)

	probabilities, err := m.ProbabilitiesAtTime(1)
	require.NoError(t, err)
	assert.Equal(t, []float64{1}, probabilities)

	assert.Equal(t, 1.0, m.DiscountFactor(0))
	assert.Empty(t, m.ConditionalExpectation(values))

	_, err = m.TimeIndex(1.5)
	assert.ErrorIs(t, err, ErrTimeIndexOutOfRange)
}

func TestBinomialModel_Validation(t *testing.T) {
	t.Run("zero volatility is degenerate", func(t *testing.T) {
		_, err := NewBinomialModel(100, 0, 0, 1, 11, NewCoxRossRubinstein())
		assert.ErrorIs(t, err, ErrDegenerateLattice)
	})

	t.Run("rate outrunning volatility is arbitrage", func(t *testing.T) {
		_, err := NewBinomialModel(100, 0.5, 0.01, 1, 11, NewCoxRossRubinstein())
		assert.ErrorIs(t, err, ErrArbitrage)
	})

	cases := []struct {
		name string
		make func() (*BinomialModel, error)
	}{
		{"nil calibration", func() (*BinomialModel, error) { return NewBinomialModel(100, 0, 0.2, 1, 11, nil) }},
		{"zero spot", func() (*BinomialModel, error) { return NewBinomialModel(0, 0, 0.2, 1, 11, NewCoxRossRubinstein()) }},
		{"negative volatility", func() (*BinomialModel, error) { return NewBinomialModel(100, 0, -0.2, 1, 11, NewJarrowRudd()) }},
		{"no times", func() (*BinomialModel, error) { return NewBinomialModel(100, 0, 0.2, 1, 0, NewCoxRossRubinstein()) }},
		{"zero horizon with steps", func() (*BinomialModel, error) { return NewBinomialModel(100, 0, 0.2, 0, 11, NewCoxRossRubinstein()) }},
		{"zero time step", func() (*BinomialModel, error) {
			return NewBinomialModelWithTimeStep(100, 0, 0.2, 1, 0, NewCoxRossRubinstein())
		}},
		{"nan rate", func() (*BinomialModel, error) {
			return NewBinomialModel(100, math.NaN(), 0.2, 1, 11, NewCoxRossRubinstein())
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m, err := tc.make()
			assert.Nil(t, m)
			assert.True(t, errors.Is(err, ErrInvalidParameter), "got %v", err)
		})
	}
}
