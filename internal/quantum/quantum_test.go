package quantum

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qfleet/internal/distmat"
	"qfleet/internal/model"
	"qfleet/internal/qubo"
)

// quadratic has its minimum at (1, 2) with value 0, inside the bounds.
func quadratic(params []float64) (float64, error) {
	x, y := params[0], params[1]
	return (x-1)*(x-1) + (y-2)*(y-2), nil
}

func TestStrategiesImproveQuadratic(t *testing.T) {
	initial := []float64{0.1, 0.1}
	startVal, _ := quadratic(initial)

	for _, strategy := range []string{model.SPSA, model.COBYLA, model.ADAM, model.Powell, model.Ensemble} {
		t.Run(strategy, func(t *testing.T) {
			rng := rand.New(rand.NewSource(42))
			res, err := search(strategy, quadratic, initial, 200, rng)
			require.NoError(t, err)
			assert.Less(t, res.Value, startVal, "strategy should improve on the starting point")
			assert.Greater(t, res.Iterations, 0)
		})
	}
}

func TestSPSADeterministicWithSeed(t *testing.T) {
	initial := []float64{0.3, 0.7}
	first, err := runSPSA(quadratic, initial, 100, rand.New(rand.NewSource(9)))
	require.NoError(t, err)
	second, err := runSPSA(quadratic, initial, 100, rand.New(rand.NewSource(9)))
	require.NoError(t, err)

	assert.Equal(t, first.Value, second.Value)
	assert.Equal(t, first.Params, second.Params)
	assert.Equal(t, first.Iterations, second.Iterations)
}

func TestAdaptiveStrategySelection(t *testing.T) {
	assert.Equal(t, model.Powell, adaptiveStrategy(4))
	assert.Equal(t, model.SPSA, adaptiveStrategy(6))
	assert.Equal(t, model.COBYLA, adaptiveStrategy(12))
}

func TestSearchUnknownStrategy(t *testing.T) {
	_, err := search("nelder_mead", quadratic, []float64{0}, 10, rand.New(rand.NewSource(1)))
	require.Error(t, err)
}

func TestStallTrackerStopsAfterPatience(t *testing.T) {
	tr := newStallTracker(10)
	for i := 0; i < convergePatience-1; i++ {
		assert.False(t, tr.observe(10))
	}
	assert.True(t, tr.observe(10))

	tr = newStallTracker(10)
	tr.observe(10)
	assert.False(t, tr.observe(5), "an improvement resets the stall counter")
}

func driverProblem() model.Problem {
	return model.Problem{
		Locations:   [][2]float64{{0, 0}, {0, 3}, {4, 0}, {4, 3}},
		NumVehicles: 1,
		DepotIndex:  0,
	}
}

func TestOptimizeProducesMatrixCost(t *testing.T) {
	p := driverProblem()
	matrix := distmat.Compute(p.Locations, distmat.Euclidean)
	m, err := qubo.Build(p, matrix)
	require.NoError(t, err)

	oracle := NewSimulatorOracle(m, 256, 42)
	res, err := Optimize(oracle, m, matrix, p, model.COBYLA, Options{MaxIterations: 30, Shots: 256})
	require.NoError(t, err)

	assert.Equal(t, model.COBYLA, res.Algorithm)
	assert.Equal(t, m.NumVars, res.NumQubits)
	assert.Equal(t, defaultPLayers, res.PLayers)
	assert.Equal(t, 256, res.Shots)
	assert.Len(t, res.OptimalParams, 2*defaultPLayers)
	assert.Greater(t, res.TotalCost, 0.0)
	assert.NotEmpty(t, res.Solution)
	for _, route := range res.Solution {
		assert.Equal(t, p.DepotIndex, route[0])
		assert.Equal(t, p.DepotIndex, route[len(route)-1])
	}
}

func TestOptimizeDeterministicForSeed(t *testing.T) {
	p := driverProblem()
	matrix := distmat.Compute(p.Locations, distmat.Euclidean)
	m, err := qubo.Build(p, matrix)
	require.NoError(t, err)

	opts := Options{MaxIterations: 20, Shots: 128, Seed: 7}
	first, err := Optimize(NewSimulatorOracle(m, 128, 7), m, matrix, p, model.SPSA, opts)
	require.NoError(t, err)
	second, err := Optimize(NewSimulatorOracle(m, 128, 7), m, matrix, p, model.SPSA, opts)
	require.NoError(t, err)

	assert.Equal(t, first.TotalCost, second.TotalCost)
	assert.Equal(t, first.Solution, second.Solution)
	assert.Equal(t, first.OptimalParams, second.OptimalParams)
}

func TestDecodeFlagsConstraintViolations(t *testing.T) {
	p := model.Problem{
		Locations:   [][2]float64{{0, 0}, {1, 1}, {2, 2}},
		NumVehicles: 2,
		DepotIndex:  0,
	}
	matrix := distmat.Compute(p.Locations, distmat.Euclidean)
	m, err := qubo.Build(p, matrix)
	require.NoError(t, err)

	// All-zero bitstring violates every one-hot constraint.
	sol, feasible := decode(make([]int, m.NumVars), m, matrix, p)
	assert.False(t, feasible)
	assert.NotEmpty(t, sol, "a route structure is still produced for inspection")

	// One set outgoing and incoming bit per customer is feasible.
	bits := make([]int, m.NumVars)
	for ci := range m.Customers {
		bits[m.Outgoing[ci][0]] = 1
		bits[m.Incoming[ci][0]] = 1
	}
	_, feasible = decode(bits, m, matrix, p)
	assert.True(t, feasible)
}
