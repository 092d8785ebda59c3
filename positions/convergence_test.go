package positions

import (
	"context"
	"io"
	"math"
	"testing"

	"github.com/bcdannyboy/lattice/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func sweepCases() []ConvergenceCase {
	crr := NewLatticeFactory(1, models.NewCoxRossRubinstein())
	return []ConvergenceCase{
		{
			Name:      "call",
			Valuator:  NewEuropeanOption(1, Call(100)),
			Factory:   crr,
			Market:    atTheMoney,
			Benchmark: BlackScholesCall(100, 100, 1, 0.05, 0.2),
		},
		{
			Name:      "american put",
			Valuator:  NewAmericanOption(1, Put(100)),
			Factory:   crr,
			Market:    atTheMoney,
			Benchmark: math.NaN(),
		},
		{
			Name:      "flat",
			Valuator:  NewEuropeanOption(1, Call(100)),
			Factory:   crr,
			Market:    Market{Spot: 100, RiskFreeRate: 0.05},
			Benchmark: math.NaN(),
		},
	}
}

func TestConvergenceRunner_Run(t *testing.T) {
	runner := &ConvergenceRunner{
		Workers: 3,
		Output:  io.Discard,
		Logger:  zap.NewNop(),
	}

	points, err := runner.Run(context.Background(), sweepCases(), []int{201, 51, 101})
	require.NoError(t, err)
	require.Len(t, points, 9)

	for i, want := range []struct {
		name string
		n    int
	}{
		{"call", 51}, {"call", 101}, {"call", 201},
		{"american put", 51}, {"american put", 101}, {"american put", 201},
		{"flat", 51}, {"flat", 101}, {"flat", 201},
	} {
		assert.Equal(t, want.name, points[i].Case)
		assert.Equal(t, want.n, points[i].NumberOfTimes)
	}

	for _, point := range points[:3] {
		assert.Empty(t, point.Failure)
		assert.Equal(t, "European", point.Product)
		assert.Equal(t, "Cox-Ross-Rubinstein", point.Calibration)
		require.NotNil(t, point.Benchmark)
		require.NotNil(t, point.Error)
		assert.InDelta(t, point.Price-*point.Benchmark, *point.Error, 1e-15)
		assert.Less(t, math.Abs(*point.Error), 0.1)
	}
	assert.Less(t, math.Abs(*points[2].Error), math.Abs(*points[0].Error))

	for _, point := range points[3:6] {
		assert.Empty(t, point.Failure)
		assert.Nil(t, point.Benchmark)
		assert.Nil(t, point.Error)
		assert.Greater(t, point.Price, 0.0)
	}

	for _, point := range points[6:] {
		assert.Contains(t, point.Failure, "degenerate")
		assert.Zero(t, point.Price)
	}
}

func TestConvergenceRunner_Empty(t *testing.T) {
	runner := NewConvergenceRunner(nil)

	points, err := runner.Run(context.Background(), nil, []int{10})
	require.NoError(t, err)
	assert.Empty(t, points)
}

func TestConvergenceRunner_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	runner := &ConvergenceRunner{Workers: 2, Output: io.Discard}
	_, err := runner.Run(ctx, sweepCases(), []int{51, 101})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConvergenceRunner_OddSteps(t *testing.T) {
	c := ConvergenceCase{
		Name:      "lr call",
		Valuator:  NewEuropeanOption(1, Call(100)),
		Factory:   NewLatticeFactory(1, models.NewLeisenReimer(100, 1)),
		Market:    atTheMoney,
		Benchmark: BlackScholesCall(100, 100, 1, 0.05, 0.2),
		OddSteps:  true,
	}
	runner := &ConvergenceRunner{Workers: 2, Output: io.Discard}

	points, err := runner.Run(context.Background(), []ConvergenceCase{c}, []int{51, 101})
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.Equal(t, 52, points[0].NumberOfTimes)
	assert.Equal(t, 102, points[1].NumberOfTimes)
	assert.Less(t, math.Abs(*points[1].Error), 1e-3)
}
