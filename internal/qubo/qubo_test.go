package qubo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qfleet/internal/distmat"
	"qfleet/internal/model"
)

func lineProblem(n, vehicles int) (model.Problem, distmat.Matrix) {
	locs := make([][2]float64, n)
	for i := range locs {
		locs[i] = [2]float64{float64(i), 0}
	}
	p := model.Problem{Locations: locs, NumVehicles: vehicles}
	return p, distmat.Compute(locs, distmat.Euclidean)
}

func TestCapacityThreshold(t *testing.T) {
	// (7-1)*2*2 = 24 exceeds the 20-qubit ceiling.
	p, m := lineProblem(7, 2)
	_, err := Build(p, m)
	var cerr *CapacityError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, 24, cerr.NumQubits)
	assert.Equal(t, MaxQubits, cerr.MaxQubits)
	assert.LessOrEqual(t, cerr.MaxLocations, 5)

	// One location fewer fits.
	p, m = lineProblem(6, 2)
	built, err := Build(p, m)
	require.NoError(t, err)
	assert.Equal(t, 20, built.NumVars)
}

func TestVariableArenaLayout(t *testing.T) {
	p, m := lineProblem(4, 2)
	built, err := Build(p, m)
	require.NoError(t, err)

	assert.Equal(t, NumVarsFor(4, 2), built.NumVars)
	assert.Equal(t, []int{1, 2, 3}, built.Customers)

	seen := map[int]bool{}
	for ci := range built.Customers {
		require.Len(t, built.Outgoing[ci], p.NumVehicles)
		require.Len(t, built.Incoming[ci], p.NumVehicles)
		for side, indices := range [][]int{built.Outgoing[ci], built.Incoming[ci]} {
			for k, idx := range indices {
				require.False(t, seen[idx], "arena indices are unique")
				seen[idx] = true
				v := built.VarAt(idx)
				assert.Equal(t, built.Customers[ci], v.Customer)
				assert.Equal(t, k, v.Vehicle)
				assert.Equal(t, side == 1, v.Inbound)
				assert.Equal(t, idx, built.VarIndex(v))
			}
		}
	}
	assert.Len(t, seen, built.NumVars)
}

func TestEnergyPrefersFeasibleAssignments(t *testing.T) {
	p, m := lineProblem(4, 2)
	built, err := Build(p, m)
	require.NoError(t, err)

	// One-hot satisfied: each customer has exactly one outgoing and one
	// incoming variable set.
	feasible := make([]int, built.NumVars)
	for ci := range built.Customers {
		feasible[built.Outgoing[ci][0]] = 1
		feasible[built.Incoming[ci][0]] = 1
	}

	assert.Less(t, built.Energy(feasible), built.Energy(make([]int, built.NumVars)),
		"all-zero assignment pays the full constraint penalty")

	overfull := append([]int(nil), feasible...)
	overfull[built.Outgoing[0][1]] = 1
	assert.Less(t, built.Energy(feasible), built.Energy(overfull),
		"double assignment is penalized above any distance gain")
}

func TestPenaltyDominatesDistances(t *testing.T) {
	p, m := lineProblem(5, 1)
	built, err := Build(p, m)
	require.NoError(t, err)

	maxDist := 0.0
	for i := range m {
		for j := range m[i] {
			if m[i][j] > maxDist {
				maxDist = m[i][j]
			}
		}
	}
	assert.GreaterOrEqual(t, built.Penalty, maxDist*float64(len(p.Locations)))
}
